package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/custrisk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
)

func TestMitigationRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewMitigationRepo(db, testutil.Logger(t))
	c := testutil.SeedCustomer(t, ctx, tx, "c", testutil.At(0))
	other := testutil.SeedCustomer(t, ctx, tx, "other", testutil.At(0))

	m, err := repo.Create(dbc, &types.Mitigation{
		CustomerID:  c.ID,
		RiskLevel:   types.RiskHigh,
		Type:        types.MitigationFlag,
		Description: "freeze credit line",
		AssignedTo:  testutil.PtrString("ops"),
		Status:      types.StatusPending,
		CreatedAt:   testutil.At(time.Minute),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Fatalf("Create: expected generated id")
	}
	second := testutil.SeedMitigation(t, ctx, tx, c.ID, types.StatusCompleted, nil, testutil.At(2*time.Minute))
	testutil.SeedMitigation(t, ctx, tx, other.ID, types.StatusPending, nil, testutil.At(3*time.Minute))

	got, err := repo.GetByID(dbc, m.ID)
	if err != nil || got == nil || got.Description != "freeze credit line" || got.UpdatedAt != nil {
		t.Fatalf("GetByID: %+v %v", got, err)
	}

	byCustomer, err := repo.List(dbc, MitigationFilter{CustomerID: &c.ID}, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byCustomer) != 2 || byCustomer[0].ID != second.ID {
		t.Fatalf("List: expected newest first, got %+v", byCustomer)
	}

	pending := types.StatusPending
	pend, err := repo.List(dbc, MitigationFilter{Status: &pending}, 0, 10)
	if err != nil || len(pend) != 2 {
		t.Fatalf("List(Pending): %d %v", len(pend), err)
	}

	at := testutil.At(time.Hour)
	ok, err := repo.UpdateStatus(dbc, m.ID, types.StatusInProgress, at)
	if err != nil || !ok {
		t.Fatalf("UpdateStatus: %v %v", ok, err)
	}
	got, _ = repo.GetByID(dbc, m.ID)
	if got.Status != types.StatusInProgress || got.UpdatedAt == nil || !got.UpdatedAt.Equal(at) {
		t.Fatalf("UpdateStatus: unexpected %+v", got)
	}

	ok, err = repo.UpdateStatus(dbc, uuid.New(), types.StatusCompleted, at)
	if err != nil || ok {
		t.Fatalf("UpdateStatus(missing): %v %v", ok, err)
	}

	n, err := repo.DeleteByCustomer(dbc, c.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByCustomer: %d %v", n, err)
	}
}

func TestMitigationRepoDueBy(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewMitigationRepo(db, testutil.Logger(t))
	c := testutil.SeedCustomer(t, ctx, tx, "c", testutil.At(0))

	day := 24 * time.Hour
	late := testutil.SeedMitigation(t, ctx, tx, c.ID, types.StatusInProgress, testutil.PtrTime(testutil.At(5*day)), testutil.At(0))
	early := testutil.SeedMitigation(t, ctx, tx, c.ID, types.StatusPending, testutil.PtrTime(testutil.At(day)), testutil.At(0))
	testutil.SeedMitigation(t, ctx, tx, c.ID, types.StatusCompleted, testutil.PtrTime(testutil.At(day)), testutil.At(0))
	testutil.SeedMitigation(t, ctx, tx, c.ID, types.StatusPending, testutil.PtrTime(testutil.At(30*day)), testutil.At(0))
	testutil.SeedMitigation(t, ctx, tx, c.ID, types.StatusPending, nil, testutil.At(0))

	got, err := repo.DueBy(dbc, []types.MitigationStatus{types.StatusPending, types.StatusInProgress}, testutil.At(7*day))
	if err != nil {
		t.Fatalf("DueBy: %v", err)
	}
	if len(got) != 2 || got[0].ID != early.ID || got[1].ID != late.ID {
		t.Fatalf("DueBy: unexpected %+v", got)
	}
}
