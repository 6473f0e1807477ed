package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

const DefaultOracleTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/yungbote/custrisk-backend/internal/services")

type RiskWorkflowService interface {
	// Predict scores features, then appends the prediction and every numeric feature in one transaction.
	Predict(ctx context.Context, customerID uuid.UUID, features map[string]any) (*types.RiskPrediction, error)
	CustomerSnapshot(ctx context.Context, customerID uuid.UUID) (*types.CustomerSnapshot, error)
	ListCustomers(ctx context.Context, level *types.RiskLevel, page Page) ([]*types.CustomerSnapshot, error)
	HighRiskCustomers(ctx context.Context, page Page) ([]*types.HighRiskEntry, error)
	// Statistics returns the assessed distribution for "" or "assessed" and the registered one for "all".
	Statistics(ctx context.Context, scope string) (*types.RiskDistribution, error)
	RiskHistory(ctx context.Context, customerID uuid.UUID, limit int) ([]*types.RiskPrediction, error)
}

type WorkflowOptions struct {
	OracleTimeout time.Duration
	Cache         StatsCache
	Publisher     EventPublisher
	Metrics       *observability.Metrics
	Clock         Clock
}

type riskWorkflowService struct {
	db            *gorm.DB
	log           *logger.Logger
	customers     repos.CustomerRepo
	featureRepo   repos.CustomerFeatureRepo
	features      FeatureStore
	ledger        RiskLedger
	oracle        oracle.Oracle
	oracleTimeout time.Duration
	cache         StatsCache
	publisher     EventPublisher
	metrics       *observability.Metrics
	clock         Clock
}

func NewRiskWorkflowService(
	db *gorm.DB,
	baseLog *logger.Logger,
	customers repos.CustomerRepo,
	featureRepo repos.CustomerFeatureRepo,
	features FeatureStore,
	ledger RiskLedger,
	orc oracle.Oracle,
	opts WorkflowOptions,
) RiskWorkflowService {
	timeout := opts.OracleTimeout
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	return &riskWorkflowService{
		db:            db,
		log:           baseLog.With("service", "RiskWorkflowService"),
		customers:     customers,
		featureRepo:   featureRepo,
		features:      features,
		ledger:        ledger,
		oracle:        orc,
		oracleTimeout: timeout,
		cache:         opts.Cache,
		publisher:     opts.Publisher,
		metrics:       opts.Metrics,
		clock:         opts.Clock,
	}
}

func (s *riskWorkflowService) Predict(ctx context.Context, customerID uuid.UUID, raw map[string]any) (*types.RiskPrediction, error) {
	ctx, span := tracer.Start(ctx, "risk.predict")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID.String()))

	pred, err := s.predict(ctx, customerID, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("risk.level", pred.RiskLevel.String()))
	return pred, nil
}

func (s *riskWorkflowService) predict(ctx context.Context, customerID uuid.UUID, raw map[string]any) (*types.RiskPrediction, error) {
	features, err := numericFeatures(raw)
	if err != nil {
		return nil, err
	}
	ok, err := s.customers.Exists(dbctx.New(ctx), customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", types.ErrNotFound, customerID)
	}

	start := time.Now()
	res, err := s.callOracle(ctx, features)
	dur := time.Since(start)
	if err != nil {
		s.metrics.ObservePrediction(s.oracleName(), "", outcomeOf(err), dur)
		s.log.Warn("prediction failed", "customer_id", customerID, "oracle", s.oracleName(), "error", err)
		return nil, err
	}

	var pred *types.RiskPrediction
	err = dbctx.InTx(dbctx.New(ctx), s.db, func(inner dbctx.Context) error {
		var err error
		pred, err = s.ledger.RecordPrediction(inner, PredictionInput{
			CustomerID: customerID,
			Level:      res.Level,
			Confidence: res.Confidence,
			Source:     s.oracleName(),
			Features:   features,
		})
		if err != nil {
			return err
		}
		if len(features) == 0 {
			return nil
		}
		_, err = appendFeatures(inner, s.featureRepo, customerID, features, pred.PredictedAt)
		return err
	})
	if err != nil {
		s.metrics.ObservePrediction(s.oracleName(), "", "store_error", dur)
		return nil, err
	}

	s.metrics.ObservePrediction(s.oracleName(), pred.RiskLevel.String(), "ok", dur)
	s.log.Info("prediction recorded",
		"customer_id", customerID,
		"risk_level", pred.RiskLevel,
		"oracle", pred.Source,
		"features", len(features),
		"oracle_ms", dur.Milliseconds(),
	)
	invalidateStats(ctx, s.log, s.cache)
	emit(ctx, s.log, s.publisher, s.metrics, types.Event{
		Type:       types.EventPredictionRecorded,
		CustomerID: customerID,
		EntityID:   pred.ID,
		RiskLevel:  pred.RiskLevel,
		Confidence: pred.ConfidenceScore,
		OccurredAt: pred.PredictedAt,
		Attributes: map[string]string{"oracle": pred.Source},
	})
	return pred, nil
}

func (s *riskWorkflowService) oracleName() string {
	if s.oracle == nil {
		return "none"
	}
	return s.oracle.Name()
}

type oracleReply struct {
	res *oracle.Result
	err error
}

// callOracle bounds the oracle by oracleTimeout even when the implementation ignores ctx.
func (s *riskWorkflowService) callOracle(ctx context.Context, features map[string]float64) (*oracle.Result, error) {
	if s.oracle == nil {
		return nil, fmt.Errorf("%w: no oracle configured", types.ErrOracleUnavailable)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()
	callCtx, span := tracer.Start(callCtx, "oracle.predict")
	defer span.End()
	span.SetAttributes(attribute.String("oracle.name", s.oracle.Name()))

	// Buffered so the goroutine never blocks after a timeout.
	done := make(chan oracleReply, 1)
	input := make(map[string]float64, len(features))
	for k, v := range features {
		input[k] = v
	}
	go func() {
		res, err := s.oracle.Predict(callCtx, input)
		done <- oracleReply{res: res, err: err}
	}()

	var reply oracleReply
	select {
	case reply = <-done:
	case <-callCtx.Done():
		reply = oracleReply{err: callCtx.Err()}
	}
	if reply.err != nil {
		span.RecordError(reply.err)
		span.SetStatus(codes.Error, reply.err.Error())
		return nil, classifyOracleError(reply.err)
	}
	res := reply.res
	if res == nil {
		return nil, fmt.Errorf("%w: oracle returned no result", types.ErrPredictionFailed)
	}
	if !res.Level.Valid() {
		return nil, fmt.Errorf("%w: oracle returned risk level %q", types.ErrPredictionFailed, string(res.Level))
	}
	if c := res.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return nil, fmt.Errorf("%w: oracle returned confidence %v", types.ErrPredictionFailed, *c)
	}
	return res, nil
}

func classifyOracleError(err error) error {
	switch {
	case errors.Is(err, types.ErrPredictionFailed):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", types.ErrOracleTimeout, err)
	default:
		return fmt.Errorf("%w: %v", types.ErrOracleUnavailable, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, types.ErrOracleTimeout):
		return "timeout"
	case errors.Is(err, types.ErrOracleUnavailable):
		return "unavailable"
	case errors.Is(err, types.ErrPredictionFailed):
		return "failed"
	default:
		return "error"
	}
}

// numericFeatures keeps numeric values, skips nulls and rejects anything else.
func numericFeatures(raw map[string]any) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, rawName := range names {
		name := strings.TrimSpace(rawName)
		if name == "" {
			return nil, fmt.Errorf("%w: %w: feature name is blank", types.ErrPredictionFailed, types.ErrInvalidValue)
		}
		var v float64
		switch x := raw[rawName].(type) {
		case nil:
			continue
		case float64:
			v = x
		case float32:
			v = float64(x)
		case int:
			v = float64(x)
		case int64:
			v = float64(x)
		case int32:
			v = float64(x)
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %w: feature %q: %v", types.ErrPredictionFailed, types.ErrInvalidValue, name, err)
			}
			v = f
		default:
			return nil, fmt.Errorf("%w: %w: feature %q must be numeric", types.ErrPredictionFailed, types.ErrInvalidValue, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %w: feature %q is not finite", types.ErrPredictionFailed, types.ErrInvalidValue, name)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: %w: feature %q is supplied more than once", types.ErrPredictionFailed, types.ErrInvalidValue, name)
		}
		out[name] = v
	}
	return out, nil
}

func (s *riskWorkflowService) CustomerSnapshot(ctx context.Context, customerID uuid.UUID) (*types.CustomerSnapshot, error) {
	dbc := dbctx.New(ctx)
	c, err := s.customers.GetByID(dbc, customerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: customer %s", types.ErrNotFound, customerID)
	}
	feats, err := s.features.CurrentFeatures(dbc, customerID)
	if err != nil {
		return nil, err
	}
	latest, err := s.ledger.Latest(dbc, customerID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(c, feats, latest), nil
}

func snapshotOf(c *types.Customer, feats map[string]float64, latest *types.RiskPrediction) *types.CustomerSnapshot {
	if feats == nil {
		feats = map[string]float64{}
	}
	snap := &types.CustomerSnapshot{Customer: *c, Features: feats}
	if latest != nil {
		level := latest.RiskLevel
		at := latest.PredictedAt
		snap.RiskLevel = &level
		snap.ConfidenceScore = latest.ConfidenceScore
		snap.LastPrediction = &at
	}
	return snap
}

func (s *riskWorkflowService) ListCustomers(ctx context.Context, level *types.RiskLevel, page Page) ([]*types.CustomerSnapshot, error) {
	page, err := page.Normalize()
	if err != nil {
		return nil, err
	}
	if level != nil && !level.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidRiskLevel, string(*level))
	}
	dbc := dbctx.New(ctx)
	rows, err := s.customers.List(dbc, level, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []*types.CustomerSnapshot{}, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.ID)
	}
	feats, err := s.features.CurrentFeaturesFor(dbc, ids)
	if err != nil {
		return nil, err
	}
	latest, err := s.ledger.LatestFor(dbc, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*types.CustomerSnapshot, 0, len(rows))
	for _, c := range rows {
		out = append(out, snapshotOf(c, feats[c.ID], latest[c.ID]))
	}
	return out, nil
}

func (s *riskWorkflowService) HighRiskCustomers(ctx context.Context, page Page) ([]*types.HighRiskEntry, error) {
	return s.ledger.HighRisk(dbctx.New(ctx), page)
}

func (s *riskWorkflowService) Statistics(ctx context.Context, scope string) (*types.RiskDistribution, error) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		scope = types.ScopeAssessed
	}
	if scope != types.ScopeAssessed && scope != types.ScopeRegistered {
		return nil, fmt.Errorf("%w: scope must be %q or %q", types.ErrInvalidValue, types.ScopeAssessed, types.ScopeRegistered)
	}

	var gen int64
	cached := s.cache != nil
	if cached {
		g, err := s.cache.Generation(ctx)
		if err != nil {
			cached = false
			s.metrics.IncStatsCache("error")
			s.log.Warn("stats cache generation read failed", "scope", scope, "error", err)
		} else {
			gen = g
		}
	}
	if cached {
		dist, hit, err := s.cache.Get(ctx, gen, scope)
		switch {
		case err != nil:
			s.metrics.IncStatsCache("error")
			s.log.Warn("stats cache read failed", "scope", scope, "error", err)
		case hit:
			s.metrics.IncStatsCache("hit")
			return dist, nil
		default:
			s.metrics.IncStatsCache("miss")
		}
	}

	dbc := dbctx.New(ctx)
	var (
		dist *types.RiskDistribution
		err  error
	)
	if scope == types.ScopeRegistered {
		dist, err = s.ledger.RegisteredDistribution(dbc)
	} else {
		dist, err = s.ledger.Distribution(dbc)
	}
	if err != nil {
		return nil, err
	}
	if cached {
		if err := s.cache.Set(ctx, gen, scope, dist); err != nil {
			s.log.Warn("stats cache write failed", "scope", scope, "error", err)
		}
	}
	return dist, nil
}

func (s *riskWorkflowService) RiskHistory(ctx context.Context, customerID uuid.UUID, limit int) ([]*types.RiskPrediction, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", types.ErrInvalidValue, MaxPageLimit)
	}
	dbc := dbctx.New(ctx)
	ok, err := s.customers.Exists(dbc, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", types.ErrNotFound, customerID)
	}
	return s.ledger.History(dbc, customerID, limit)
}
