package services

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type PredictionInput struct {
	CustomerID uuid.UUID
	Level      types.RiskLevel
	Confidence *float64
	// Source names the oracle that produced the level.
	Source string
	// Features is the oracle input, stored as a JSON snapshot.
	Features map[string]float64
}

type RiskLedger interface {
	RecordPrediction(dbc dbctx.Context, in PredictionInput) (*types.RiskPrediction, error)
	// CurrentRiskLevel returns nil when the customer has never been assessed.
	CurrentRiskLevel(dbc dbctx.Context, customerID uuid.UUID) (*types.RiskLevel, error)
	Latest(dbc dbctx.Context, customerID uuid.UUID) (*types.RiskPrediction, error)
	LatestFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]*types.RiskPrediction, error)
	Distribution(dbc dbctx.Context) (*types.RiskDistribution, error)
	RegisteredDistribution(dbc dbctx.Context) (*types.RiskDistribution, error)
	History(dbc dbctx.Context, customerID uuid.UUID, limit int) ([]*types.RiskPrediction, error)
	HighRisk(dbc dbctx.Context, page Page) ([]*types.HighRiskEntry, error)
}

type riskLedger struct {
	db          *gorm.DB
	log         *logger.Logger
	customers   repos.CustomerRepo
	predictions repos.RiskPredictionRepo
	clock       Clock
}

func NewRiskLedger(db *gorm.DB, baseLog *logger.Logger, customers repos.CustomerRepo, predictions repos.RiskPredictionRepo, clock Clock) RiskLedger {
	return &riskLedger{
		db:          db,
		log:         baseLog.With("service", "RiskLedger"),
		customers:   customers,
		predictions: predictions,
		clock:       clock,
	}
}

func (l *riskLedger) RecordPrediction(dbc dbctx.Context, in PredictionInput) (*types.RiskPrediction, error) {
	row, err := l.newPrediction(in, l.clock.now())
	if err != nil {
		return nil, err
	}
	err = dbctx.InTx(dbc, l.db, func(inner dbctx.Context) error {
		ok, err := l.customers.Exists(inner, in.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: customer %s", types.ErrNotFound, in.CustomerID)
		}
		_, err = l.predictions.Create(inner, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (l *riskLedger) newPrediction(in PredictionInput, at time.Time) (*types.RiskPrediction, error) {
	if !in.Level.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidRiskLevel, string(in.Level))
	}
	if c := in.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return nil, fmt.Errorf("%w: confidence_score must be within [0,1]", types.ErrInvalidValue)
	}
	row := &types.RiskPrediction{
		ID:              uuid.New(),
		CustomerID:      in.CustomerID,
		RiskLevel:       in.Level,
		ConfidenceScore: in.Confidence,
		PredictedAt:     at,
		Source:          in.Source,
	}
	if in.Features != nil {
		raw, err := json.Marshal(in.Features)
		if err != nil {
			return nil, fmt.Errorf("%w: features snapshot: %v", types.ErrInvalidValue, err)
		}
		row.Features = datatypes.JSON(raw)
	}
	return row, nil
}

func (l *riskLedger) CurrentRiskLevel(dbc dbctx.Context, customerID uuid.UUID) (*types.RiskLevel, error) {
	latest, err := l.predictions.Latest(dbc, customerID)
	if err != nil || latest == nil {
		return nil, err
	}
	level := latest.RiskLevel
	return &level, nil
}

func (l *riskLedger) Latest(dbc dbctx.Context, customerID uuid.UUID) (*types.RiskPrediction, error) {
	return l.predictions.Latest(dbc, customerID)
}

func (l *riskLedger) LatestFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]*types.RiskPrediction, error) {
	return l.predictions.LatestFor(dbc, customerIDs)
}

func (l *riskLedger) buckets(dbc dbctx.Context, scope string) (*types.RiskDistribution, error) {
	counts, err := l.predictions.CountLatestByLevel(dbc)
	if err != nil {
		return nil, err
	}
	dist := &types.RiskDistribution{
		LowRiskCount:    counts[types.RiskLow],
		MediumRiskCount: counts[types.RiskMedium],
		HighRiskCount:   counts[types.RiskHigh],
		Scope:           scope,
		LastUpdated:     l.clock.now(),
	}
	return dist, nil
}

func (l *riskLedger) Distribution(dbc dbctx.Context) (*types.RiskDistribution, error) {
	dist, err := l.buckets(dbc, types.ScopeAssessed)
	if err != nil {
		return nil, err
	}
	dist.TotalCustomers = dist.Assessed()
	return dist, nil
}

func (l *riskLedger) RegisteredDistribution(dbc dbctx.Context) (*types.RiskDistribution, error) {
	var dist *types.RiskDistribution
	// Buckets and row count come from one transaction.
	err := dbctx.InTx(dbc, l.db, func(inner dbctx.Context) error {
		var err error
		dist, err = l.buckets(inner, types.ScopeRegistered)
		if err != nil {
			return err
		}
		total, err := l.customers.Count(inner)
		if err != nil {
			return err
		}
		unassessed := total - dist.Assessed()
		if unassessed < 0 {
			unassessed = 0
		}
		dist.TotalCustomers = total
		dist.Unassessed = &unassessed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dist, nil
}

func (l *riskLedger) History(dbc dbctx.Context, customerID uuid.UUID, limit int) ([]*types.RiskPrediction, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be >= 0", types.ErrInvalidValue)
	}
	return l.predictions.History(dbc, customerID, limit)
}

func (l *riskLedger) HighRisk(dbc dbctx.Context, page Page) ([]*types.HighRiskEntry, error) {
	page, err := page.Normalize()
	if err != nil {
		return nil, err
	}
	latest, err := l.predictions.ListLatestByLevel(dbc, types.RiskHigh, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return []*types.HighRiskEntry{}, nil
	}
	ids := make([]uuid.UUID, 0, len(latest))
	for _, p := range latest {
		ids = append(ids, p.CustomerID)
	}
	customers, err := l.customers.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	out := make([]*types.HighRiskEntry, 0, len(latest))
	for _, p := range latest {
		c, ok := byID[p.CustomerID]
		if !ok {
			l.log.Warn("high-risk prediction without customer", "customer_id", p.CustomerID)
			continue
		}
		out = append(out, &types.HighRiskEntry{Customer: *c, Prediction: *p})
	}
	return out, nil
}
