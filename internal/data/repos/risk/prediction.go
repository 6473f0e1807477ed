package risk

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type RiskPredictionRepo interface {
	Create(dbc dbctx.Context, p *types.RiskPrediction) (*types.RiskPrediction, error)
	// Latest returns the newest prediction by timestamp, ties broken by insertion order; nil if none.
	Latest(dbc dbctx.Context, customerID uuid.UUID) (*types.RiskPrediction, error)
	LatestFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]*types.RiskPrediction, error)
	History(dbc dbctx.Context, customerID uuid.UUID, limit int) ([]*types.RiskPrediction, error)
	// CountLatestByLevel buckets customers by the level of their latest prediction.
	CountLatestByLevel(dbc dbctx.Context) (map[types.RiskLevel]int64, error)
	// ListLatestByLevel pages latest predictions carrying level, newest first.
	ListLatestByLevel(dbc dbctx.Context, level types.RiskLevel, skip, limit int) ([]*types.RiskPrediction, error)
	DeleteByCustomer(dbc dbctx.Context, customerID uuid.UUID) (int64, error)
}

type riskPredictionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRiskPredictionRepo(db *gorm.DB, baseLog *logger.Logger) RiskPredictionRepo {
	return &riskPredictionRepo{db: db, log: baseLog.With("repo", "RiskPredictionRepo")}
}

// rankedPredictions numbers each customer's predictions newest first; rn = 1 is the current one.
func rankedPredictions(t *gorm.DB) *gorm.DB {
	return t.Model(&types.RiskPrediction{}).
		Select("risk_prediction.*, ROW_NUMBER() OVER (PARTITION BY customer_id ORDER BY prediction_timestamp DESC, seq DESC) AS rn")
}

func latestColumns() string {
	return "latest.seq, latest.id, latest.customer_id, latest.risk_level, latest.confidence_score, latest.prediction_timestamp, latest.source, latest.features"
}

func (r *riskPredictionRepo) Create(dbc dbctx.Context, p *types.RiskPrediction) (*types.RiskPrediction, error) {
	if p == nil {
		return nil, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := dbc.DB(r.db).Create(p).Error; err != nil {
		return nil, mapWriteError("risk_prediction.create", err)
	}
	return p, nil
}

func (r *riskPredictionRepo) Latest(dbc dbctx.Context, customerID uuid.UUID) (*types.RiskPrediction, error) {
	if customerID == uuid.Nil {
		return nil, nil
	}
	var p types.RiskPrediction
	err := dbc.DB(r.db).
		Where("customer_id = ?", customerID).
		Order("prediction_timestamp DESC").
		Order("seq DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *riskPredictionRepo) LatestFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]*types.RiskPrediction, error) {
	out := make(map[uuid.UUID]*types.RiskPrediction, len(customerIDs))
	if len(customerIDs) == 0 {
		return out, nil
	}
	t := dbc.DB(r.db)
	var rows []*types.RiskPrediction
	if err := t.Table("(?) AS latest", rankedPredictions(t).Where("customer_id IN ?", customerIDs)).
		Select(latestColumns()).
		Where("latest.rn = 1").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.CustomerID] = p
	}
	return out, nil
}

func (r *riskPredictionRepo) History(dbc dbctx.Context, customerID uuid.UUID, limit int) ([]*types.RiskPrediction, error) {
	var out []*types.RiskPrediction
	if customerID == uuid.Nil {
		return out, nil
	}
	q := dbc.DB(r.db).
		Where("customer_id = ?", customerID).
		Order("prediction_timestamp DESC").
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type levelCount struct {
	RiskLevel types.RiskLevel
	N         int64
}

func (r *riskPredictionRepo) CountLatestByLevel(dbc dbctx.Context) (map[types.RiskLevel]int64, error) {
	t := dbc.DB(r.db)
	var rows []levelCount
	if err := t.Table("(?) AS latest", rankedPredictions(t)).
		Select("latest.risk_level AS risk_level, COUNT(*) AS n").
		Where("latest.rn = 1").
		Group("latest.risk_level").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[types.RiskLevel]int64, len(rows))
	for _, row := range rows {
		out[row.RiskLevel] += row.N
	}
	return out, nil
}

func (r *riskPredictionRepo) ListLatestByLevel(dbc dbctx.Context, level types.RiskLevel, skip, limit int) ([]*types.RiskPrediction, error) {
	t := dbc.DB(r.db)
	var out []*types.RiskPrediction
	if err := t.Table("(?) AS latest", rankedPredictions(t)).
		Select(latestColumns()).
		Where("latest.rn = 1 AND latest.risk_level = ?", level).
		Order("latest.prediction_timestamp DESC").
		Order("latest.seq DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *riskPredictionRepo) DeleteByCustomer(dbc dbctx.Context, customerID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("customer_id = ?", customerID).Delete(&types.RiskPrediction{})
	return res.RowsAffected, res.Error
}
