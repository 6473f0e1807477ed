package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/custrisk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/oracle/stub"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
)

func TestCustomerCreateValidates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stub.NewRules(), time.Second)

	_, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("   ")}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.customers.Create(ctx, CustomerInput{}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.customers.Create(ctx, CustomerInput{Name: strPtr("Nan")}, map[string]float64{"age": math.NaN()})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.customers.Create(ctx, CustomerInput{Name: strPtr("Blank")}, map[string]float64{" ": 1})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.customers.Create(ctx, CustomerInput{Name: strPtr("Dup")}, map[string]float64{"age": 30, "age ": 31})
	assert.ErrorIs(t, err, types.ErrInvalidValue)

	all, err := h.workflow.ListCustomers(ctx, nil, Page{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCustomerUpdatePatchesAndAppendsFeatures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stub.NewRules(), time.Second)

	c, err := h.customers.Create(ctx, CustomerInput{
		Name:       strPtr(" Lee "),
		Email:      strPtr("lee@example.com"),
		ExternalID: strPtr("ext-1"),
	}, map[string]float64{"income": 40000})
	require.NoError(t, err)
	assert.Equal(t, "Lee", c.Name)
	assert.Nil(t, c.Phone)
	assert.Nil(t, c.UpdatedAt)

	h.clock.Set(testutil.At(time.Hour))
	updated, err := h.customers.Update(ctx, c.ID, CustomerInput{
		Phone: strPtr("555-0100"),
		Email: strPtr(""),
	}, map[string]float64{"income": 45000, "age": 33})
	require.NoError(t, err)
	assert.Equal(t, "Lee", updated.Name)
	assert.Nil(t, updated.Email)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "555-0100", *updated.Phone)
	require.NotNil(t, updated.ExternalID)
	assert.Equal(t, "ext-1", *updated.ExternalID)
	require.NotNil(t, updated.UpdatedAt)
	assert.True(t, updated.UpdatedAt.Equal(testutil.At(time.Hour)))

	feats, err := h.features.CurrentFeatures(dbctx.New(ctx), c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"income": 45000, "age": 33}, feats)

	var rows int64
	require.NoError(t, h.db.Model(&types.CustomerFeature{}).Where("customer_id = ?", c.ID).Count(&rows).Error)
	assert.Equal(t, int64(3), rows)

	_, err = h.customers.Update(ctx, c.ID, CustomerInput{Name: strPtr("")}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.customers.Update(ctx, uuid.New(), CustomerInput{Name: strPtr("Ghost")}, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCustomerDeleteCascades(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	h := newHarness(t, orc, time.Second)
	dbc := dbctx.New(ctx)

	keep, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Keep")}, map[string]float64{"age": 50})
	require.NoError(t, err)
	id := highRiskCustomer(t, h, orc, "Gone")
	m, err := h.mitigations.Create(dbc, MitigationInput{CustomerID: id, RiskLevel: "High", Type: "Flag", Description: "d"})
	require.NoError(t, err)
	_, err = h.features.RecordFeature(dbc, id, "age", 61)
	require.NoError(t, err)

	require.NoError(t, h.customers.Delete(ctx, id))

	_, err = h.workflow.CustomerSnapshot(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = h.mitigations.Get(dbc, m.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = h.workflow.RiskHistory(ctx, id, 10)
	assert.ErrorIs(t, err, types.ErrNotFound)

	for _, model := range []any{&types.CustomerFeature{}, &types.RiskPrediction{}, &types.Mitigation{}} {
		var n int64
		require.NoError(t, h.db.Model(model).Where("customer_id = ?", id).Count(&n).Error)
		assert.Zero(t, n)
	}

	snap, err := h.workflow.CustomerSnapshot(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"age": 50}, snap.Features)

	stats, err := h.workflow.Statistics(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalCustomers)
	assert.Zero(t, stats.HighRiskCount)

	assert.ErrorIs(t, h.customers.Delete(ctx, id), types.ErrNotFound)
	assert.Contains(t, h.events.Types(), types.EventCustomerDeleted)
}

func TestFeatureStoreRejectsUnknownCustomer(t *testing.T) {
	h := newHarness(t, stub.NewRules(), time.Second)
	_, err := h.features.RecordFeature(dbctx.New(context.Background()), uuid.New(), "age", 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = h.features.RecordFeature(dbctx.New(context.Background()), uuid.New(), "age", math.Inf(1))
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestLedgerRecordPredictionValidates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stub.NewRules(), time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("L")}, nil)
	require.NoError(t, err)
	dbc := dbctx.New(ctx)

	_, err = h.ledger.RecordPrediction(dbc, PredictionInput{CustomerID: c.ID, Level: "Extreme"})
	assert.ErrorIs(t, err, types.ErrInvalidRiskLevel)
	over := 1.5
	_, err = h.ledger.RecordPrediction(dbc, PredictionInput{CustomerID: c.ID, Level: types.RiskLow, Confidence: &over})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.ledger.RecordPrediction(dbc, PredictionInput{CustomerID: uuid.New(), Level: types.RiskLow})
	assert.ErrorIs(t, err, types.ErrNotFound)

	p, err := h.ledger.RecordPrediction(dbc, PredictionInput{CustomerID: c.ID, Level: types.RiskMedium})
	require.NoError(t, err)
	assert.Nil(t, p.ConfidenceScore)
	level, err := h.ledger.CurrentRiskLevel(dbc, c.ID)
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, types.RiskMedium, *level)
}
