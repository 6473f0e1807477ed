package risk

import (
	"time"

	"github.com/google/uuid"
)

// CustomerFeature is one append-only observation of a named feature.
// Seq orders rows that share a RecordedAt.
type CustomerFeature struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	CustomerID uuid.UUID `gorm:"type:uuid;column:customer_id;not null;index:idx_customer_feature_name,priority:1" json:"customer_id"`
	Name       string    `gorm:"column:feature_name;not null;index:idx_customer_feature_name,priority:2" json:"feature_name"`
	Value      float64   `gorm:"column:feature_value;not null" json:"feature_value"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null" json:"recorded_at"`
}

func (CustomerFeature) TableName() string { return "customer_feature" }
