package risk

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type CustomerFeatureRepo interface {
	Append(dbc dbctx.Context, rows []*types.CustomerFeature) ([]*types.CustomerFeature, error)
	// Current returns the latest value per feature name; equal recorded_at resolves to the higher seq.
	Current(dbc dbctx.Context, customerID uuid.UUID) (map[string]float64, error)
	CurrentFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]map[string]float64, error)
	DeleteByCustomer(dbc dbctx.Context, customerID uuid.UUID) (int64, error)
}

type customerFeatureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCustomerFeatureRepo(db *gorm.DB, baseLog *logger.Logger) CustomerFeatureRepo {
	return &customerFeatureRepo{db: db, log: baseLog.With("repo", "CustomerFeatureRepo")}
}

func (r *customerFeatureRepo) Append(dbc dbctx.Context, rows []*types.CustomerFeature) ([]*types.CustomerFeature, error) {
	if len(rows) == 0 {
		return []*types.CustomerFeature{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, mapWriteError("customer_feature.append", err)
	}
	return rows, nil
}

func rankedFeatures(t *gorm.DB) *gorm.DB {
	return t.Model(&types.CustomerFeature{}).
		Select("customer_id, feature_name, feature_value, ROW_NUMBER() OVER (PARTITION BY customer_id, feature_name ORDER BY recorded_at DESC, seq DESC) AS rn")
}

type currentFeatureRow struct {
	CustomerID   uuid.UUID
	FeatureName  string
	FeatureValue float64
}

func (r *customerFeatureRepo) current(dbc dbctx.Context, customerIDs []uuid.UUID) ([]currentFeatureRow, error) {
	t := dbc.DB(r.db)
	var rows []currentFeatureRow
	err := t.Table("(?) AS latest", rankedFeatures(t).Where("customer_id IN ?", customerIDs)).
		Select("latest.customer_id, latest.feature_name, latest.feature_value").
		Where("latest.rn = 1").
		Order("latest.feature_name ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *customerFeatureRepo) Current(dbc dbctx.Context, customerID uuid.UUID) (map[string]float64, error) {
	out := map[string]float64{}
	if customerID == uuid.Nil {
		return out, nil
	}
	rows, err := r.current(dbc, []uuid.UUID{customerID})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.FeatureName] = row.FeatureValue
	}
	return out, nil
}

func (r *customerFeatureRepo) CurrentFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]map[string]float64, error) {
	out := make(map[uuid.UUID]map[string]float64, len(customerIDs))
	if len(customerIDs) == 0 {
		return out, nil
	}
	rows, err := r.current(dbc, customerIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		m := out[row.CustomerID]
		if m == nil {
			m = map[string]float64{}
			out[row.CustomerID] = m
		}
		m[row.FeatureName] = row.FeatureValue
	}
	return out, nil
}

func (r *customerFeatureRepo) DeleteByCustomer(dbc dbctx.Context, customerID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("customer_id = ?", customerID).Delete(&types.CustomerFeature{})
	return res.RowsAffected, res.Error
}
