package stub

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/oracle"
)

// band classifies one feature. Values at or past highAt vote High, at or past
// mediumAt vote Medium, everything else votes Low. rising=false flips the
// comparison for features where smaller values are riskier.
type band struct {
	name     string
	mediumAt float64
	highAt   float64
	rising   bool
}

var bands = []band{
	{name: "age", mediumAt: 35, highAt: 25, rising: false},
	{name: "income", mediumAt: 80000, highAt: 40000, rising: false},
	{name: "credit_score", mediumAt: 720, highAt: 620, rising: false},
	{name: "account_balance", mediumAt: 10000, highAt: 2000, rising: false},
	{name: "num_transactions", mediumAt: 51, highAt: 151, rising: true},
	{name: "transaction_frequency", mediumAt: 11, highAt: 21, rising: true},
	{name: "average_transaction_amount", mediumAt: 201, highAt: 501, rising: true},
}

func (b band) vote(v float64) types.RiskLevel {
	if b.rising {
		switch {
		case v >= b.highAt:
			return types.RiskHigh
		case v >= b.mediumAt:
			return types.RiskMedium
		}
		return types.RiskLow
	}
	switch {
	case v < b.highAt:
		return types.RiskHigh
	case v < b.mediumAt:
		return types.RiskMedium
	}
	return types.RiskLow
}

// Rules is a deterministic majority-vote scorer over the canonical features.
// Ties go to the riskier level; confidence is the winning share of votes.
type Rules struct{}

func NewRules() *Rules { return &Rules{} }

func (r *Rules) Name() string { return "stub-rules" }

func (r *Rules) Predict(ctx context.Context, features map[string]float64) (*oracle.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	votes := map[types.RiskLevel]int{}
	total := 0
	for _, b := range bands {
		v, ok := features[b.name]
		if !ok {
			continue
		}
		votes[b.vote(v)]++
		total++
	}
	if total == 0 {
		return &oracle.Result{Level: types.RiskLow}, nil
	}

	best := types.RiskLow
	for _, l := range []types.RiskLevel{types.RiskLow, types.RiskMedium, types.RiskHigh} {
		if votes[l] >= votes[best] {
			best = l
		}
	}
	conf := float64(votes[best]) / float64(total)
	return &oracle.Result{Level: best, Confidence: &conf}, nil
}

// Fixed returns the same answer for every call. Delay is slept without
// watching ctx so callers can exercise their own deadline handling.
type Fixed struct {
	Level      types.RiskLevel
	Confidence *float64
	Err        error
	Delay      time.Duration

	calls atomic.Int64
	last  atomic.Pointer[map[string]float64]
}

func NewFixed(level types.RiskLevel, confidence float64) *Fixed {
	return &Fixed{Level: level, Confidence: &confidence}
}

func (f *Fixed) Name() string { return fmt.Sprintf("stub-fixed-%s", f.Level) }

func (f *Fixed) Predict(_ context.Context, features map[string]float64) (*oracle.Result, error) {
	f.calls.Add(1)
	cp := make(map[string]float64, len(features))
	for k, v := range features {
		cp[k] = v
	}
	f.last.Store(&cp)
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &oracle.Result{Level: f.Level, Confidence: f.Confidence}, nil
}

func (f *Fixed) Calls() int64 { return f.calls.Load() }

// LastFeatures is the feature map of the most recent call, or nil.
func (f *Fixed) LastFeatures() map[string]float64 {
	p := f.last.Load()
	if p == nil {
		return nil
	}
	return *p
}
