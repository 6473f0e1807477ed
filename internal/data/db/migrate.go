package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.AllModels()...)
}

// EnsureRiskIndexes adds the composite indexes the read paths rely on.
// Plain CREATE INDEX IF NOT EXISTS so both Postgres and SQLite accept it.
func EnsureRiskIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		{"idx_risk_prediction_customer_seq", `CREATE INDEX IF NOT EXISTS idx_risk_prediction_customer_seq ON risk_prediction (customer_id, seq);`},
		{"idx_customer_feature_recorded", `CREATE INDEX IF NOT EXISTS idx_customer_feature_recorded ON customer_feature (customer_id, feature_name, recorded_at, seq);`},
		{"idx_mitigation_status_due", `CREATE INDEX IF NOT EXISTS idx_mitigation_status_due ON mitigation (status, due_date);`},
		{"idx_mitigation_created", `CREATE INDEX IF NOT EXISTS idx_mitigation_created ON mitigation (created_at, id);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "dialect", s.dialect)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureRiskIndexes(s.db); err != nil {
		s.log.Error("Risk index migration failed", "error", err)
		return err
	}
	return nil
}
