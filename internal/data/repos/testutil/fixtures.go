package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
)

// Base is a fixed instant used by fixtures so ordering assertions stay deterministic.
var Base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func At(offset time.Duration) time.Time { return Base.Add(offset) }

func SeedCustomer(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, createdAt time.Time) *types.Customer {
	tb.Helper()
	c := &types.Customer{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: createdAt,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed customer: %v", err)
	}
	return c
}

func SeedFeature(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID uuid.UUID, name string, value float64, at time.Time) *types.CustomerFeature {
	tb.Helper()
	f := &types.CustomerFeature{
		CustomerID: customerID,
		Name:       name,
		Value:      value,
		RecordedAt: at,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed feature: %v", err)
	}
	return f
}

func SeedPrediction(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID uuid.UUID, level types.RiskLevel, confidence *float64, at time.Time) *types.RiskPrediction {
	tb.Helper()
	p := &types.RiskPrediction{
		ID:              uuid.New(),
		CustomerID:      customerID,
		RiskLevel:       level,
		ConfidenceScore: confidence,
		PredictedAt:     at,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed prediction: %v", err)
	}
	return p
}

func SeedMitigation(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID uuid.UUID, status types.MitigationStatus, due *time.Time, createdAt time.Time) *types.Mitigation {
	tb.Helper()
	m := &types.Mitigation{
		ID:          uuid.New(),
		CustomerID:  customerID,
		RiskLevel:   types.RiskHigh,
		Type:        types.MitigationAction,
		Description: "call customer",
		DueDate:     due,
		Status:      status,
		CreatedAt:   createdAt,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed mitigation: %v", err)
	}
	return m
}

func PtrFloat(v float64) *float64 { return &v }

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
