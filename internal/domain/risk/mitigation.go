package risk

import (
	"time"

	"github.com/google/uuid"
)

type Mitigation struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID  uuid.UUID        `gorm:"type:uuid;column:customer_id;not null;index" json:"customer_id"`
	RiskLevel   Level            `gorm:"column:risk_level;not null" json:"risk_level"`
	Type        MitigationType   `gorm:"column:mitigation_type;not null" json:"mitigation_type"`
	Description string           `gorm:"column:description;type:text;not null" json:"description"`
	AssignedTo  *string          `gorm:"column:assigned_to" json:"assigned_to"`
	DueDate     *time.Time       `gorm:"column:due_date;index" json:"due_date"`
	Status      MitigationStatus `gorm:"column:status;not null;index" json:"status"`
	CreatedAt   time.Time        `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   *time.Time       `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Mitigation) TableName() string { return "mitigation" }
