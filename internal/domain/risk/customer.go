package risk

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID *string    `gorm:"column:external_id;index" json:"external_id"`
	Name       string     `gorm:"column:name;not null" json:"name"`
	Email      *string    `gorm:"column:email" json:"email"`
	Phone      *string    `gorm:"column:phone" json:"phone"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt  *time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Customer) TableName() string { return "customer" }

// CustomerSnapshot is the read-only composed view of a customer.
// The risk fields stay nil until the customer has at least one prediction.
type CustomerSnapshot struct {
	Customer
	Features        map[string]float64 `json:"features"`
	RiskLevel       *Level             `json:"risk_level,omitempty"`
	ConfidenceScore *float64           `json:"confidence_score,omitempty"`
	LastPrediction  *time.Time         `json:"last_prediction,omitempty"`
}
