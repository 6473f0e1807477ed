package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type MitigationInput struct {
	CustomerID  uuid.UUID
	RiskLevel   string
	Type        string
	Description string
	AssignedTo  *string
	DueDate     *time.Time
}

type MitigationQuery struct {
	CustomerID *uuid.UUID
	// Status is matched exactly against the four status labels; empty means any.
	Status string
	Page   Page
}

type MitigationTracker interface {
	// Create is allowed only for a High label on a customer whose current ledger level is High.
	// The check and the insert are not serialised against a concurrent prediction.
	Create(dbc dbctx.Context, in MitigationInput) (*types.Mitigation, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Mitigation, error)
	// UpdateStatus accepts any transition, including to the current status.
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) (*types.Mitigation, error)
	List(dbc dbctx.Context, q MitigationQuery) ([]*types.Mitigation, error)
	PendingDueSoon(dbc dbctx.Context, days int) ([]*types.Mitigation, error)
}

type mitigationTracker struct {
	db          *gorm.DB
	log         *logger.Logger
	customers   repos.CustomerRepo
	mitigations repos.MitigationRepo
	ledger      RiskLedger
	publisher   EventPublisher
	metrics     *observability.Metrics
	clock       Clock
}

func NewMitigationTracker(
	db *gorm.DB,
	baseLog *logger.Logger,
	customers repos.CustomerRepo,
	mitigations repos.MitigationRepo,
	ledger RiskLedger,
	publisher EventPublisher,
	metrics *observability.Metrics,
	clock Clock,
) MitigationTracker {
	return &mitigationTracker{
		db:          db,
		log:         baseLog.With("service", "MitigationTracker"),
		customers:   customers,
		mitigations: mitigations,
		ledger:      ledger,
		publisher:   publisher,
		metrics:     metrics,
		clock:       clock,
	}
}

func (t *mitigationTracker) Create(dbc dbctx.Context, in MitigationInput) (*types.Mitigation, error) {
	level, err := types.ParseRiskLevel(in.RiskLevel)
	if err != nil {
		return nil, err
	}
	if level != types.RiskHigh {
		return nil, fmt.Errorf("%w: mitigations can only be created for High risk (got %s)", types.ErrInvalidState, level)
	}
	mtype, err := types.ParseMitigationType(in.Type)
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: description is required", types.ErrInvalidValue)
	}
	var assignee *string
	if in.AssignedTo != nil {
		if a := strings.TrimSpace(*in.AssignedTo); a != "" {
			assignee = &a
		}
	}
	var due *time.Time
	if in.DueDate != nil {
		d := in.DueDate.UTC().Truncate(time.Microsecond)
		due = &d
	}

	now := t.clock.now()
	row := &types.Mitigation{
		ID:          uuid.New(),
		CustomerID:  in.CustomerID,
		RiskLevel:   level,
		Type:        mtype,
		Description: desc,
		AssignedTo:  assignee,
		DueDate:     due,
		Status:      types.StatusPending,
		CreatedAt:   now,
	}
	err = dbctx.InTx(dbc, t.db, func(inner dbctx.Context) error {
		ok, err := t.customers.Exists(inner, in.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: customer %s", types.ErrNotFound, in.CustomerID)
		}
		current, err := t.ledger.CurrentRiskLevel(inner, in.CustomerID)
		if err != nil {
			return err
		}
		if current == nil || *current != types.RiskHigh {
			got := "unassessed"
			if current != nil {
				got = current.String()
			}
			return fmt.Errorf("%w: customer %s is not currently High risk (%s)", types.ErrInvalidState, in.CustomerID, got)
		}
		_, err = t.mitigations.Create(inner, row)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.metrics.IncMitigation("created", string(row.Status))
	t.afterCommit(dbc.Ctx, types.Event{
		Type:       types.EventMitigationCreated,
		CustomerID: row.CustomerID,
		EntityID:   row.ID,
		RiskLevel:  row.RiskLevel,
		Status:     row.Status,
		OccurredAt: now,
		Attributes: map[string]string{"mitigation_type": string(row.Type)},
	})
	return row, nil
}

func (t *mitigationTracker) Get(dbc dbctx.Context, id uuid.UUID) (*types.Mitigation, error) {
	m, err := t.mitigations.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: mitigation %s", types.ErrNotFound, id)
	}
	return m, nil
}

func (t *mitigationTracker) UpdateStatus(dbc dbctx.Context, id uuid.UUID, raw string) (*types.Mitigation, error) {
	status, err := types.ParseMitigationStatus(raw)
	if err != nil {
		return nil, err
	}
	now := t.clock.now()
	var out *types.Mitigation
	err = dbctx.InTx(dbc, t.db, func(inner dbctx.Context) error {
		ok, err := t.mitigations.UpdateStatus(inner, id, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: mitigation %s", types.ErrNotFound, id)
		}
		out, err = t.mitigations.GetByID(inner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: mitigation %s", types.ErrNotFound, id)
	}

	t.metrics.IncMitigation("status_changed", string(status))
	t.afterCommit(dbc.Ctx, types.Event{
		Type:       types.EventMitigationStatusChanged,
		CustomerID: out.CustomerID,
		EntityID:   out.ID,
		RiskLevel:  out.RiskLevel,
		Status:     out.Status,
		OccurredAt: now,
	})
	return out, nil
}

func (t *mitigationTracker) List(dbc dbctx.Context, q MitigationQuery) ([]*types.Mitigation, error) {
	page, err := q.Page.Normalize()
	if err != nil {
		return nil, err
	}
	filter := repos.MitigationFilter{CustomerID: q.CustomerID}
	if strings.TrimSpace(q.Status) != "" {
		status, err := types.ParseMitigationStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	return t.mitigations.List(dbc, filter, page.Skip, page.Limit)
}

func (t *mitigationTracker) PendingDueSoon(dbc dbctx.Context, days int) ([]*types.Mitigation, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be >= 0", types.ErrInvalidValue)
	}
	cutoff := t.clock.now().Add(time.Duration(days) * 24 * time.Hour)
	return t.mitigations.DueBy(dbc, []types.MitigationStatus{types.StatusPending, types.StatusInProgress}, cutoff)
}

func (t *mitigationTracker) afterCommit(ctx context.Context, ev types.Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	emit(ctx, t.log, t.publisher, t.metrics, ev)
}
