package services

import (
	"context"
	"errors"
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

func TestJaneDoeScenario(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	h := newHarness(t, orc, time.Second)

	jane, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Jane Doe")}, nil)
	require.NoError(t, err)

	h.clock.Set(testutil.At(time.Minute))
	_, err = h.features.RecordFeatures(dbctx.New(ctx), jane.ID, map[string]float64{"credit_score": 550, "income": 25000})
	require.NoError(t, err)

	h.clock.Set(testutil.At(2 * time.Minute))
	pred, err := h.workflow.Predict(ctx, jane.ID, map[string]any{"credit_score": 550.0, "income": 25000.0})
	require.NoError(t, err)
	assert.Equal(t, types.RiskHigh, pred.RiskLevel)
	require.NotNil(t, pred.ConfidenceScore)
	assert.InDelta(t, 0.9, *pred.ConfidenceScore, 1e-9)
	assert.Equal(t, orc.Name(), pred.Source)
	assert.Equal(t, map[string]float64{"credit_score": 550, "income": 25000}, orc.LastFeatures())

	level, err := h.ledger.CurrentRiskLevel(dbctx.New(ctx), jane.ID)
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, types.RiskHigh, *level)

	stats, err := h.workflow.Statistics(ctx, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.HighRiskCount, int64(1))
	assert.Equal(t, types.ScopeAssessed, stats.Scope)

	m, err := h.mitigations.Create(dbctx.New(ctx), MitigationInput{
		CustomerID:  jane.ID,
		RiskLevel:   "High",
		Type:        "Action",
		Description: "Call Jane about overdraft",
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, m.Status)

	_, err = h.mitigations.Create(dbctx.New(ctx), MitigationInput{
		CustomerID:  jane.ID,
		RiskLevel:   "Low",
		Type:        "Action",
		Description: "should not be created",
	})
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.ErrorIs(t, err, types.ErrInvalidState)

	assert.Equal(t, []string{types.EventPredictionRecorded, types.EventMitigationCreated}, h.events.Types())
}

func TestPredictAppendsFeaturesAtomically(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stub.NewFixed(types.RiskMedium, 0.6), time.Second)

	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Sam")}, map[string]float64{"age": 40})
	require.NoError(t, err)

	h.clock.Set(testutil.At(time.Hour))
	pred, err := h.workflow.Predict(ctx, c.ID, map[string]any{"age": 41.0, "segment": nil, "income": 52000})
	require.NoError(t, err)

	snap, err := h.workflow.CustomerSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"age": 41, "income": 52000}, snap.Features)
	require.NotNil(t, snap.RiskLevel)
	assert.Equal(t, types.RiskMedium, *snap.RiskLevel)
	require.NotNil(t, snap.LastPrediction)
	assert.True(t, snap.LastPrediction.Equal(pred.PredictedAt))
	assert.JSONEq(t, `{"age":41,"income":52000}`, string(pred.Features))
}

func TestPredictRejectsMalformedFeatures(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskLow, 0.5)
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Ann")}, nil)
	require.NoError(t, err)

	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": "forty"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPredictionFailed)
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	assert.Zero(t, orc.Calls())
}

func TestPredictUnknownCustomer(t *testing.T) {
	orc := stub.NewFixed(types.RiskLow, 0.5)
	h := newHarness(t, orc, time.Second)

	_, err := h.workflow.Predict(context.Background(), uuid.New(), map[string]any{"age": 30.0})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Zero(t, orc.Calls())
}

func TestPredictOracleTimeout(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	orc.Delay = 300 * time.Millisecond
	h := newHarness(t, orc, 20*time.Millisecond)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Slow")}, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
	require.Error(t, err)
	assert.Less(t, time.Since(start), orc.Delay)
	assert.ErrorIs(t, err, types.ErrOracleTimeout)
	assert.ErrorIs(t, err, types.ErrPredictionFailed)

	history, err := h.workflow.RiskHistory(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPredictOracleError(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	orc.Err = errors.New("model exploded")
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Err")}, nil)
	require.NoError(t, err)

	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
	assert.ErrorIs(t, err, types.ErrOracleUnavailable)
	assert.ErrorIs(t, err, types.ErrPredictionFailed)
}

func TestPredictRejectsInvalidOracleLevel(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskLevel("Severe"), 0.9)
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Odd")}, nil)
	require.NoError(t, err)

	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
	assert.ErrorIs(t, err, types.ErrPredictionFailed)
	assert.NotErrorIs(t, err, types.ErrOracleUnavailable)
}

func TestLatestPredictionWinsAndHistoryIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskLow, 0.7)
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Tia")}, nil)
	require.NoError(t, err)

	h.clock.Set(testutil.At(time.Hour))
	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
	require.NoError(t, err)

	orc.Level = types.RiskHigh
	h.clock.Set(testutil.At(2 * time.Hour))
	second, err := h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
	require.NoError(t, err)

	level, err := h.ledger.CurrentRiskLevel(dbctx.New(ctx), c.ID)
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, types.RiskHigh, *level)

	history, err := h.workflow.RiskHistory(ctx, c.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, second.ID, history[0].ID)

	all, err := h.workflow.RiskHistory(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, types.RiskLow, all[1].RiskLevel)
}

func TestSnapshotWithoutPredictionOmitsRisk(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stub.NewRules(), time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("New")}, map[string]float64{"age": 22})
	require.NoError(t, err)

	snap, err := h.workflow.CustomerSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.RiskLevel)
	assert.Nil(t, snap.ConfidenceScore)
	assert.Nil(t, snap.LastPrediction)
	assert.Equal(t, map[string]float64{"age": 22}, snap.Features)

	_, err = h.workflow.CustomerSnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStatisticsScopes(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskLow, 0.8)
	h := newHarness(t, orc, time.Second)

	var ids []uuid.UUID
	for _, name := range []string{"a", "b", "c", "d"} {
		c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr(name)}, nil)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	// a: Low then High; b: Medium; c: High; d: never assessed.
	steps := []struct {
		id    uuid.UUID
		level types.RiskLevel
	}{
		{ids[0], types.RiskLow},
		{ids[1], types.RiskMedium},
		{ids[2], types.RiskHigh},
		{ids[0], types.RiskHigh},
	}
	for i, st := range steps {
		orc.Level = st.level
		h.clock.Set(testutil.At(time.Duration(i+1) * time.Minute))
		_, err := h.workflow.Predict(ctx, st.id, map[string]any{})
		require.NoError(t, err)
	}

	assessed, err := h.workflow.Statistics(ctx, "assessed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), assessed.LowRiskCount)
	assert.Equal(t, int64(1), assessed.MediumRiskCount)
	assert.Equal(t, int64(2), assessed.HighRiskCount)
	assert.Equal(t, int64(3), assessed.TotalCustomers)
	assert.Nil(t, assessed.Unassessed)

	all, err := h.workflow.Statistics(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalCustomers)
	require.NotNil(t, all.Unassessed)
	assert.Equal(t, int64(1), *all.Unassessed)
	assert.Equal(t, all.Assessed()+*all.Unassessed, all.TotalCustomers)

	_, err = h.workflow.Statistics(ctx, "everyone")
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestStatisticsCacheIsInvalidatedByPredict(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Cache")}, nil)
	require.NoError(t, err)

	first, err := h.workflow.Statistics(ctx, "assessed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.TotalCustomers)

	gen, err := h.cache.Generation(ctx)
	require.NoError(t, err)
	cached, hit, err := h.cache.Get(ctx, gen, "assessed")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, int64(0), cached.TotalCustomers)

	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
	require.NoError(t, err)

	second, err := h.workflow.Statistics(ctx, "assessed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.HighRiskCount)
}

func TestStatisticsIgnoresResultComputedBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Racer")}, nil)
	require.NoError(t, err)

	// The prediction commits after the distribution was read but before it is cached.
	h.cache.beforeSet = func() {
		_, err := h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0})
		require.NoError(t, err)
	}
	stale, err := h.workflow.Statistics(ctx, "assessed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stale.HighRiskCount)

	fresh, err := h.workflow.Statistics(ctx, "assessed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.HighRiskCount)
}

func TestPredictRejectsFeatureNamesThatCollideAfterTrimming(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskLow, 0.5)
	h := newHarness(t, orc, time.Second)
	c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr("Dup")}, nil)
	require.NoError(t, err)

	_, err = h.workflow.Predict(ctx, c.ID, map[string]any{"age": 30.0, " age": 31.0})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	assert.Zero(t, orc.Calls())
}

func TestListCustomersAndHighRisk(t *testing.T) {
	ctx := context.Background()
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	h := newHarness(t, orc, time.Second)

	var created []uuid.UUID
	for i, name := range []string{"first", "second", "third"} {
		h.clock.Set(testutil.At(time.Duration(i) * time.Minute))
		c, err := h.customers.Create(ctx, CustomerInput{Name: strPtr(name)}, map[string]float64{"age": float64(30 + i)})
		require.NoError(t, err)
		created = append(created, c.ID)
	}
	h.clock.Set(testutil.At(time.Hour))
	_, err := h.workflow.Predict(ctx, created[0], map[string]any{})
	require.NoError(t, err)
	h.clock.Set(testutil.At(2 * time.Hour))
	_, err = h.workflow.Predict(ctx, created[2], map[string]any{})
	require.NoError(t, err)

	all, err := h.workflow.ListCustomers(ctx, nil, Page{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, created[2], all[0].ID)
	assert.Nil(t, all[1].RiskLevel)
	assert.Equal(t, map[string]float64{"age": 31}, all[1].Features)

	high := types.RiskHigh
	filtered, err := h.workflow.ListCustomers(ctx, &high, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	entries, err := h.workflow.HighRiskCustomers(ctx, Page{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, created[2], entries[0].Customer.ID)
	assert.Equal(t, created[0], entries[1].Customer.ID)

	_, err = h.workflow.ListCustomers(ctx, nil, Page{Limit: 501})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	_, err = h.workflow.ListCustomers(ctx, nil, Page{Skip: -1})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestRiskHistoryUnknownCustomer(t *testing.T) {
	h := newHarness(t, stub.NewRules(), time.Second)
	_, err := h.workflow.RiskHistory(context.Background(), uuid.New(), 5)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
