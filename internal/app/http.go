package app

import (
	"strings"

	"github.com/yungbote/custrisk-backend/internal/http"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *http.Server {
	log.Info("Wiring router...")
	return http.NewServer(http.RouterConfig{
		Log:               log,
		ServiceName:       cfg.Otel.ServiceName,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		Metrics:           metrics,
		ExposeMetrics:     metrics != nil && strings.TrimSpace(cfg.Metrics.Addr) == "",
		CustomerHandler:   handlers.Customer,
		PredictionHandler: handlers.Prediction,
		MitigationHandler: handlers.Mitigation,
		HealthHandler:     handlers.Health,
	})
}
