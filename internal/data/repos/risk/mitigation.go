package risk

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type MitigationFilter struct {
	CustomerID *uuid.UUID
	Status     *types.MitigationStatus
}

type MitigationRepo interface {
	Create(dbc dbctx.Context, m *types.Mitigation) (*types.Mitigation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Mitigation, error)
	// List orders by created_at desc, id desc.
	List(dbc dbctx.Context, filter MitigationFilter, skip, limit int) ([]*types.Mitigation, error)
	// DueBy returns rows in one of statuses with a due date at or before cutoff, earliest first.
	DueBy(dbc dbctx.Context, statuses []types.MitigationStatus, cutoff time.Time) ([]*types.Mitigation, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.MitigationStatus, at time.Time) (bool, error)
	DeleteByCustomer(dbc dbctx.Context, customerID uuid.UUID) (int64, error)
}

type mitigationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMitigationRepo(db *gorm.DB, baseLog *logger.Logger) MitigationRepo {
	return &mitigationRepo{db: db, log: baseLog.With("repo", "MitigationRepo")}
}

func (r *mitigationRepo) Create(dbc dbctx.Context, m *types.Mitigation) (*types.Mitigation, error) {
	if m == nil {
		return nil, nil
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := dbc.DB(r.db).Create(m).Error; err != nil {
		return nil, mapWriteError("mitigation.create", err)
	}
	return m, nil
}

func (r *mitigationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Mitigation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var m types.Mitigation
	err := dbc.DB(r.db).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mitigationRepo) List(dbc dbctx.Context, filter MitigationFilter, skip, limit int) ([]*types.Mitigation, error) {
	q := dbc.DB(r.db).Model(&types.Mitigation{})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var out []*types.Mitigation
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mitigationRepo) DueBy(dbc dbctx.Context, statuses []types.MitigationStatus, cutoff time.Time) ([]*types.Mitigation, error) {
	var out []*types.Mitigation
	if len(statuses) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("status IN ?", statuses).
		Where("due_date IS NOT NULL AND due_date <= ?", cutoff).
		Order("due_date ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mitigationRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.MitigationStatus, at time.Time) (bool, error) {
	res := dbc.DB(r.db).Model(&types.Mitigation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, mapWriteError("mitigation.update_status", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *mitigationRepo) DeleteByCustomer(dbc dbctx.Context, customerID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("customer_id = ?", customerID).Delete(&types.Mitigation{})
	return res.RowsAffected, res.Error
}
