package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type fakeKV struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, exp time.Duration) *goredis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = exp
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Incr(_ context.Context, key string) *goredis.IntCmd {
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return goredis.NewIntResult(n, nil)
}

func (f *fakeKV) Close() error { return nil }

func TestStatsCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeKV()
	c := newStatsCache(logger.Nop(), fake, Config{KeyPrefix: "t", TTL: time.Minute})

	gen, err := c.Generation(ctx)
	if err != nil || gen != 0 {
		t.Fatalf("Generation: gen=%d err=%v", gen, err)
	}
	if _, hit, err := c.Get(ctx, gen, types.ScopeAssessed); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}
	in := &types.RiskDistribution{HighRiskCount: 2, TotalCustomers: 2, Scope: types.ScopeAssessed}
	if err := c.Set(ctx, gen, types.ScopeAssessed, in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if fake.ttls["t:stats:0:assessed"] != time.Minute {
		t.Fatalf("ttl=%v", fake.ttls["t:stats:0:assessed"])
	}
	out, hit, err := c.Get(ctx, gen, types.ScopeAssessed)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if out.HighRiskCount != 2 || out.Scope != types.ScopeAssessed {
		t.Fatalf("unexpected %+v", out)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	next, err := c.Generation(ctx)
	if err != nil || next != 1 {
		t.Fatalf("Generation after invalidate: gen=%d err=%v", next, err)
	}
	if _, hit, _ := c.Get(ctx, next, types.ScopeAssessed); hit {
		t.Fatal("expected miss after invalidate")
	}
}

func TestStatsCacheDropsWritesFromBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeKV()
	c := newStatsCache(logger.Nop(), fake, Config{})

	stale, err := c.Generation(ctx)
	if err != nil {
		t.Fatalf("Generation: %v", err)
	}
	// A write commits and invalidates while the reader is still computing.
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := c.Set(ctx, stale, types.ScopeAssessed, &types.RiskDistribution{LowRiskCount: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	current, err := c.Generation(ctx)
	if err != nil {
		t.Fatalf("Generation: %v", err)
	}
	if current == stale {
		t.Fatalf("generation did not move: %d", current)
	}
	if _, hit, err := c.Get(ctx, current, types.ScopeAssessed); hit || err != nil {
		t.Fatalf("stale entry served: hit=%v err=%v", hit, err)
	}
}

func TestStatsCacheErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeKV()
	c := newStatsCache(logger.Nop(), fake, Config{})

	fake.data["custrisk:stats:0:all"] = "{not json"
	if _, hit, err := c.Get(ctx, 0, types.ScopeRegistered); hit || err != nil {
		t.Fatalf("corrupt payload should be a miss, got hit=%v err=%v", hit, err)
	}

	fake.data["custrisk:stats:gen"] = "seven"
	if _, err := c.Generation(ctx); err == nil {
		t.Fatal("expected error for malformed generation")
	}

	fake.getErr = errors.New("connection reset")
	if _, _, err := c.Get(ctx, 0, types.ScopeRegistered); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Generation(ctx); err == nil {
		t.Fatal("expected generation error")
	}
}

func TestNilStatsCache(t *testing.T) {
	var c *StatsCache
	if _, hit, err := c.Get(context.Background(), 0, "assessed"); hit || err != nil {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
	if gen, err := c.Generation(context.Background()); gen != 0 || err != nil {
		t.Fatalf("gen=%d err=%v", gen, err)
	}
	if err := c.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
}
