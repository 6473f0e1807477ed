package risk

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventPredictionRecorded      = "risk.prediction.recorded"
	EventMitigationCreated       = "risk.mitigation.created"
	EventMitigationStatusChanged = "risk.mitigation.status_changed"
	EventCustomerDeleted         = "risk.customer.deleted"
)

// Event is the payload published after a committed write.
type Event struct {
	Type       string            `json:"type"`
	CustomerID uuid.UUID         `json:"customer_id"`
	EntityID   uuid.UUID         `json:"entity_id"`
	RiskLevel  Level             `json:"risk_level,omitempty"`
	Status     MitigationStatus  `json:"status,omitempty"`
	Confidence *float64          `json:"confidence_score,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
