package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	"github.com/yungbote/custrisk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/oracle"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock(t time.Time) *manualClock { return &manualClock{t: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type cacheKey struct {
	gen   int64
	scope string
}

type memoryCache struct {
	mu          sync.Mutex
	gen         int64
	entries     map[cacheKey]types.RiskDistribution
	invalidated int
	// beforeSet runs once, outside the lock, ahead of the next Set.
	beforeSet func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[cacheKey]types.RiskDistribution{}}
}

func (c *memoryCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *memoryCache) Get(_ context.Context, gen int64, scope string) (*types.RiskDistribution, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[cacheKey{gen, scope}]
	if !ok {
		return nil, false, nil
	}
	return &d, true, nil
}

func (c *memoryCache) Set(_ context.Context, gen int64, scope string, dist *types.RiskDistribution) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{gen, scope}] = *dist
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	db          *gorm.DB
	clock       *manualClock
	cache       *memoryCache
	events      *recordingPublisher
	customers   CustomerService
	features    FeatureStore
	ledger      RiskLedger
	mitigations MitigationTracker
	workflow    RiskWorkflowService
}

func newHarness(t *testing.T, orc oracle.Oracle, oracleTimeout time.Duration) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	h := &harness{
		db:     db,
		clock:  newManualClock(testutil.Base),
		cache:  newMemoryCache(),
		events: &recordingPublisher{},
	}
	clock := Clock(h.clock.Now)

	customerRepo := repos.NewCustomerRepo(db, log)
	featureRepo := repos.NewCustomerFeatureRepo(db, log)
	predictionRepo := repos.NewRiskPredictionRepo(db, log)
	mitigationRepo := repos.NewMitigationRepo(db, log)

	opts := WorkflowOptions{
		OracleTimeout: oracleTimeout,
		Cache:         h.cache,
		Publisher:     h.events,
		Clock:         clock,
	}
	h.features = NewFeatureStore(db, log, customerRepo, featureRepo, clock)
	h.ledger = NewRiskLedger(db, log, customerRepo, predictionRepo, clock)
	h.mitigations = NewMitigationTracker(db, log, customerRepo, mitigationRepo, h.ledger, h.events, nil, clock)
	h.workflow = NewRiskWorkflowService(db, log, customerRepo, featureRepo, h.features, h.ledger, orc, opts)
	h.customers = NewCustomerService(db, log, customerRepo, featureRepo, predictionRepo, mitigationRepo, opts)
	return h
}

func strPtr(v string) *string { return &v }
