package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"terminal-core/internal/api"
	"terminal-core/internal/engine"
	"terminal-core/internal/events"
	"terminal-core/internal/market"
	"terminal-core/internal/monitor"
	"terminal-core/internal/persistence"
	"terminal-core/internal/reconciliation"
	"terminal-core/internal/state"
	"terminal-core/internal/symbols"
	"terminal-core/pkg/cache"
	"terminal-core/pkg/config"
	"terminal-core/pkg/db"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/logger"
	binance "terminal-core/pkg/market/binance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet; the Nop default would swallow this
		_ = logger.Init("info", "json")
		logger.Fatal(i18n.Get("ConfigLoadFailed"), err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		_ = logger.Init("info", "json")
		logger.Fatal(i18n.Get("ConfigLoadFailed"), err)
	}
	defer logger.Sync()
	logger.SetServiceName(cfg.ServiceName)

	i18n.SetLanguage(i18n.ParseLanguage(cfg.Language))
	logger.Info("%s", i18n.Get("Starting"))
	logger.Info(i18n.Get("ConfigLoaded"), cfg.Port)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		appOptions(cfg),
	)
	app.Run()
	logger.Info("%s", i18n.Get("ShuttingDown"))
}

// appOptions is the full dependency graph of the service.
func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newAppContext,
			openDatabase,
			newBinanceClient,
			loadCatalog,
			events.NewBus,
			cache.NewPriceCache,
			newMetrics,
			newStateManager,
			newReconciler,
			newPayloadWriter,
			newEngine,
			newAPIServer,
		),
		fx.Invoke(
			startMonitor,
			startFeed,
			startReconciler,
			runHTTP,
		),
	)
}

// newAppContext outlives OnStart hooks and is cancelled on shutdown.
func newAppContext(lc fx.Lifecycle) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return ctx
}

func openDatabase(lc fx.Lifecycle, cfg *config.Config) (*db.Database, error) {
	logger.Info(i18n.Get("UsingDBPath"), cfg.DBPath)
	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Error(i18n.Get("DBInitFailed"), err)
		return nil, err
	}
	if err := db.ApplyMigrations(database); err != nil {
		logger.Error(i18n.Get("DBMigrationsFailed"), err)
		_ = database.Close()
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return database.Close() },
	})
	return database, nil
}

func newBinanceClient(cfg *config.Config) *binance.Client {
	return binance.NewClient(cfg.BinanceTestnet)
}

// loadCatalog reads the symbol file and, with a live feed, refreshes the
// exchange limits of every feed symbol. Sync failures keep the file values.
func loadCatalog(ctx context.Context, cfg *config.Config, client *binance.Client) (*symbols.Catalog, error) {
	catalog, err := symbols.LoadCatalog(cfg.SymbolsFile)
	if err != nil {
		logger.Error(i18n.Get("SymbolsLoadFailed"), err)
		return nil, err
	}
	if !cfg.UseMockFeed {
		sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if _, err := market.SyncCatalog(sctx, client, catalog, cfg.FeedSymbols); err != nil {
			logger.Warn(i18n.Get("SymbolsLoadFailed"), err)
		}
	}
	logger.Info(i18n.Get("SymbolsLoaded"), len(catalog.IDs()), cfg.SymbolsFile)
	return catalog, nil
}

func newMetrics() *monitor.Metrics {
	m := monitor.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("%s", i18n.Get("MetricsInit"))
	return m
}

func newStateManager(ctx context.Context, database *db.Database, bus *events.Bus) (*state.Manager, error) {
	mgr := state.NewManager(database.Queries(), bus)
	if err := mgr.Load(ctx); err != nil {
		logger.Error(i18n.Get("StateLoadFailed"), err)
		return nil, err
	}
	return mgr, nil
}

func newReconciler(cfg *config.Config, database *db.Database, stateMgr *state.Manager, metrics *monitor.Metrics) *reconciliation.Service {
	var source reconciliation.PositionSource = reconciliation.StoreSource{Queries: database.Queries()}
	if cfg.PositionServiceURL != "" {
		source = reconciliation.NewHTTPSource(cfg.PositionServiceURL)
	}
	return reconciliation.NewService(source, stateMgr, metrics, cfg.ReconcileInterval)
}

// newPayloadWriter is stopped after the engine so the last batch still lands.
func newPayloadWriter(lc fx.Lifecycle, database *db.Database) *persistence.BatchWriter {
	w := persistence.NewBatchWriter(database.Queries(), 50, time.Second)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return w.Close() },
	})
	return w
}

func feedName(cfg *config.Config) string {
	switch {
	case cfg.UseMockFeed:
		return "mock"
	case cfg.BinanceTestnet:
		return "binance-testnet"
	default:
		return "binance"
	}
}

func newEngine(
	lc fx.Lifecycle,
	cfg *config.Config,
	catalog *symbols.Catalog,
	prices *cache.PriceCache,
	stateMgr *state.Manager,
	recon *reconciliation.Service,
	bus *events.Bus,
	database *db.Database,
	writer *persistence.BatchWriter,
	metrics *monitor.Metrics,
) *engine.Impl {
	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}
	impl := engine.NewImpl(engine.Config{
		Catalog:  catalog,
		Prices:   prices,
		StateMgr: stateMgr,
		Recon:    recon,
		Bus:      bus,
		Queries:  database.Queries(),
		Writer:   writer,
		Metrics:  metrics,
		Defaults: cfg.Defaults(),
		Meta: engine.SystemStatus{
			Version: buildVersion,
			Feed:    feedName(cfg),
		},
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			impl.Close()
			return nil
		},
	})
	logger.Info("%s", i18n.Get("EngineServiceInit"))
	return impl
}

func newAPIServer(cfg *config.Config, svc *engine.Impl, metrics *monitor.Metrics) *api.Server {
	return api.NewServer(svc, metrics, api.Options{
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
	})
}

func startMonitor(lc fx.Lifecycle, appCtx context.Context, bus *events.Bus, metrics *monitor.Metrics) {
	mon := &monitor.Monitor{Bus: bus, Metrics: metrics}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mon.Start(appCtx)
			return nil
		},
	})
}

func startFeed(lc fx.Lifecycle, appCtx context.Context, cfg *config.Config, bus *events.Bus, prices *cache.PriceCache, client *binance.Client) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go market.EvictStale(appCtx, prices, time.Minute, cfg.PriceMaxAge)
			if cfg.UseMockFeed {
				mock := &market.MockFeed{
					Bus:      bus,
					Prices:   prices,
					Symbols:  cfg.FeedSymbols,
					Interval: cfg.MockFeedInterval,
				}
				mock.Start(appCtx)
				return nil
			}
			feed := &market.Feed{
				Client:  client,
				Stream:  binance.NewStreamClient(cfg.BinanceTestnet, logger.Named("binance")),
				Bus:     bus,
				Prices:  prices,
				Symbols: cfg.FeedSymbols,
			}
			go feed.Start(appCtx)
			return nil
		},
	})
}

func startReconciler(lc fx.Lifecycle, appCtx context.Context, recon *reconciliation.Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			recon.Start(appCtx)
			return nil
		},
	})
}

func runHTTP(lc fx.Lifecycle, cfg *config.Config, server *api.Server) {
	srv := server.HTTPServer(":" + cfg.Port)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(i18n.Get("APIServerError"), err)
				}
			}()
			logger.Info(i18n.Get("ServerListening"), cfg.Port)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
