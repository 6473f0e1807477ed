package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/custrisk-backend/internal/http/handlers"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Customer   *httpH.CustomerHandler
	Prediction *httpH.PredictionHandler
	Mitigation *httpH.MitigationHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(pingDB(db)),
		Customer:   httpH.NewCustomerHandler(log, services.Customers, services.Workflow),
		Prediction: httpH.NewPredictionHandler(log, services.Workflow),
		Mitigation: httpH.NewMitigationHandler(log, services.Mitigations),
	}
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
