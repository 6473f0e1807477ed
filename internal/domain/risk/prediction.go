package risk

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RiskPrediction struct {
	Seq             int64          `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID              uuid.UUID      `gorm:"type:uuid;column:id;uniqueIndex;not null" json:"id"`
	CustomerID      uuid.UUID      `gorm:"type:uuid;column:customer_id;not null;index:idx_risk_prediction_customer_ts,priority:1" json:"customer_id"`
	RiskLevel       Level          `gorm:"column:risk_level;not null" json:"risk_level"`
	ConfidenceScore *float64       `gorm:"column:confidence_score" json:"confidence_score"`
	PredictedAt     time.Time      `gorm:"column:prediction_timestamp;not null;index:idx_risk_prediction_customer_ts,priority:2" json:"prediction_timestamp"`
	Source          string         `gorm:"column:source" json:"source,omitempty"`
	Features        datatypes.JSON `gorm:"column:features" json:"-"`
}

func (RiskPrediction) TableName() string { return "risk_prediction" }

// RiskDistribution counts customers by the level of their latest prediction.
// Total depends on the operation that produced it: the assessed total is
// Low+Medium+High, the registered total counts every customer row.
type RiskDistribution struct {
	LowRiskCount    int64     `json:"low_risk_count"`
	MediumRiskCount int64     `json:"medium_risk_count"`
	HighRiskCount   int64     `json:"high_risk_count"`
	TotalCustomers  int64     `json:"total_customers"`
	Unassessed      *int64    `json:"unassessed_customers,omitempty"`
	Scope           string    `json:"scope"`
	LastUpdated     time.Time `json:"last_updated"`
}

const (
	ScopeAssessed   = "assessed"
	ScopeRegistered = "all"
)

func (d RiskDistribution) Assessed() int64 {
	return d.LowRiskCount + d.MediumRiskCount + d.HighRiskCount
}

// HighRiskEntry pairs a customer with the prediction that makes it high risk.
type HighRiskEntry struct {
	Customer   Customer       `json:"customer"`
	Prediction RiskPrediction `json:"prediction"`
}
