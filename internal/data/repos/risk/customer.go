package risk

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type CustomerRepo interface {
	Create(dbc dbctx.Context, customers []*types.Customer) ([]*types.Customer, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Customer, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Customer, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)
	// List orders by created_at desc, id desc. A non-nil level keeps only customers
	// whose latest prediction carries that level.
	List(dbc dbctx.Context, level *types.RiskLevel, skip, limit int) ([]*types.Customer, error)
	Count(dbc dbctx.Context) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type customerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCustomerRepo(db *gorm.DB, baseLog *logger.Logger) CustomerRepo {
	return &customerRepo{db: db, log: baseLog.With("repo", "CustomerRepo")}
}

func (r *customerRepo) Create(dbc dbctx.Context, customers []*types.Customer) ([]*types.Customer, error) {
	if len(customers) == 0 {
		return []*types.Customer{}, nil
	}
	if err := dbc.DB(r.db).Create(&customers).Error; err != nil {
		return nil, mapWriteError("customer.create", err)
	}
	return customers, nil
}

func (r *customerRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Customer, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Customer
	err := dbc.DB(r.db).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Customer, error) {
	var out []*types.Customer
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *customerRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := dbc.DB(r.db).Model(&types.Customer{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *customerRepo) List(dbc dbctx.Context, level *types.RiskLevel, skip, limit int) ([]*types.Customer, error) {
	t := dbc.DB(r.db)
	q := t.Model(&types.Customer{}).Select("customer.*")
	if level != nil {
		q = q.Joins("JOIN (?) AS latest ON latest.customer_id = customer.id AND latest.rn = 1", rankedPredictions(t)).
			Where("latest.risk_level = ?", *level)
	}
	var out []*types.Customer
	if err := q.Order("customer.created_at DESC").
		Order("customer.id DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *customerRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.Customer{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *customerRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	if len(updates) == 0 {
		return r.Exists(dbc, id)
	}
	res := dbc.DB(r.db).Model(&types.Customer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return false, mapWriteError("customer.update", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *customerRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Customer{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
