package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/db"
	"github.com/yungbote/custrisk-backend/internal/http"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Metrics  *observability.Metrics
	Oracle   oracle.Oracle
	Server   *http.Server

	store         *db.Service
	shutdownTrace func(context.Context) error
}

// New opens the store, loads the oracle and wires every layer. Errors are fatal.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	a := &App{Log: log, Cfg: cfg}

	a.shutdownTrace = observability.InitOTel(ctx, log, cfg.Otel)

	store, err := db.NewService(cfg.Database, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.store = store
	if err := store.AutoMigrateAll(); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	a.DB = store.DB()

	orc, err := NewOracle(cfg.Oracle, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Oracle = orc
	log.Info("Prediction oracle loaded", "oracle", orc.Name(), "type", cfg.Oracle.Type)

	if cfg.Metrics.Enabled {
		a.Metrics = observability.NewMetrics()
		a.Metrics.RegisterDBStats(log, a.DB, store.Dialect())
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Clients = clients

	a.Repos = wireRepos(a.DB, log)
	a.Services = wireServices(a.DB, log, cfg, a.Repos, a.Clients, a.Metrics, a.Oracle)
	handlers := wireHandlers(log, a.DB, a.Services)
	a.Server = wireServer(log, cfg, handlers, a.Metrics)
	return a, nil
}

// Run serves the API, and the metrics listener when configured, until ctx is done
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Run(gctx, a.Cfg.HTTP.Addr, a.Cfg.HTTP.ShutdownTimeout)
	})
	if a.Metrics != nil && strings.TrimSpace(a.Cfg.Metrics.Addr) != "" {
		g.Go(func() error {
			return a.Metrics.StartServer(gctx, a.Log, a.Cfg.Metrics.Addr)
		})
	}
	if a.Clients.StatsCache != nil {
		a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.StatsCache.Client(), 15*time.Second)
	}

	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.shutdownTrace != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTrace(ctx); err != nil {
			a.Log.Warn("tracer shutdown failed", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}
