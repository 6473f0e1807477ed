package http

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/custrisk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/custrisk-backend/internal/http/middleware"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics
	// ExposeMetrics mounts GET /metrics on the API router.
	ExposeMetrics bool

	CustomerHandler   *httpH.CustomerHandler
	PredictionHandler *httpH.PredictionHandler
	MitigationHandler *httpH.MitigationHandler
	HealthHandler     *httpH.HealthHandler
}

var validatorOnce sync.Once

// useJSONFieldNames makes validation messages name the wire field instead of the Go field.
func useJSONFieldNames() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "custrisk"
	}

	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/", cfg.HealthHandler.HealthCheck)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.ExposeMetrics && cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Customers
		if cfg.CustomerHandler != nil {
			api.GET("/customers", cfg.CustomerHandler.List)
			api.POST("/customers", cfg.CustomerHandler.Create)
			api.GET("/customers/:id", cfg.CustomerHandler.Get)
			api.PUT("/customers/:id", cfg.CustomerHandler.Update)
			api.DELETE("/customers/:id", cfg.CustomerHandler.Delete)
			api.GET("/customers/:id/predictions", cfg.CustomerHandler.History)
		}

		// Predictions
		if cfg.PredictionHandler != nil {
			api.POST("/predictions/predict", cfg.PredictionHandler.Predict)
			api.GET("/predictions/statistics", cfg.PredictionHandler.Statistics)
			api.GET("/predictions/high-risk", cfg.PredictionHandler.HighRisk)
		}

		// Mitigations
		if cfg.MitigationHandler != nil {
			api.POST("/mitigations", cfg.MitigationHandler.Create)
			api.GET("/mitigations", cfg.MitigationHandler.List)
			api.GET("/mitigations/due-soon", cfg.MitigationHandler.DueSoon)
			api.GET("/mitigations/:id", cfg.MitigationHandler.Get)
			api.PUT("/mitigations/:id/status", cfg.MitigationHandler.UpdateStatus)
		}
	}

	return r
}
