package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/oracle/remote"
	"github.com/yungbote/custrisk-backend/internal/oracle/softmax"
	"github.com/yungbote/custrisk-backend/internal/oracle/stub"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/services"
)

type Services struct {
	Features    services.FeatureStore
	Ledger      services.RiskLedger
	Mitigations services.MitigationTracker
	Workflow    services.RiskWorkflowService
	Customers   services.CustomerService
}

// NewOracle builds the configured oracle. Any error here is fatal at startup.
func NewOracle(cfg oracle.Config, log *logger.Logger) (oracle.Oracle, error) {
	switch cfg.Type {
	case oracle.TypeSoftmax:
		m, err := softmax.Load(cfg.ModelPath, log)
		if err != nil {
			return nil, fmt.Errorf("load softmax model: %w", err)
		}
		return m, nil
	case oracle.TypeRemote:
		c, err := remote.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("init remote oracle: %w", err)
		}
		return c, nil
	case oracle.TypeStub:
		return stub.NewRules(), nil
	default:
		return nil, fmt.Errorf("unknown oracle type %q", cfg.Type)
	}
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, clients Clients, metrics *observability.Metrics, orc oracle.Oracle) Services {
	log.Info("Wiring services...")

	opts := services.WorkflowOptions{
		OracleTimeout: cfg.Oracle.Timeout,
		Metrics:       metrics,
	}
	if clients.StatsCache != nil {
		opts.Cache = clients.StatsCache
	}
	if clients.Events != nil {
		opts.Publisher = clients.Events
	}

	features := services.NewFeatureStore(db, log, r.Customer, r.CustomerFeature, opts.Clock)
	ledger := services.NewRiskLedger(db, log, r.Customer, r.RiskPrediction, opts.Clock)
	mitigations := services.NewMitigationTracker(db, log, r.Customer, r.Mitigation, ledger, opts.Publisher, metrics, opts.Clock)
	workflow := services.NewRiskWorkflowService(db, log, r.Customer, r.CustomerFeature, features, ledger, orc, opts)
	customers := services.NewCustomerService(db, log, r.Customer, r.CustomerFeature, r.RiskPrediction, r.Mitigation, opts)

	return Services{
		Features:    features,
		Ledger:      ledger,
		Mitigations: mitigations,
		Workflow:    workflow,
		Customers:   customers,
	}
}
