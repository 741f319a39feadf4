package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Ramsey-B/thistle/config"
	"github.com/Ramsey-B/thistle/pkg/events"
	"github.com/Ramsey-B/thistle/pkg/kafka"
	"github.com/Ramsey-B/thistle/pkg/matching"
	"github.com/Ramsey-B/thistle/pkg/merging"
	"github.com/Ramsey-B/thistle/pkg/middleware"
	"github.com/Ramsey-B/thistle/pkg/redis"
	"github.com/Ramsey-B/thistle/pkg/registry"
	"github.com/Ramsey-B/thistle/pkg/routes/duplicates"
	"github.com/Ramsey-B/thistle/pkg/routes/health"
	"github.com/Ramsey-B/thistle/pkg/routes/identifiers"
	"github.com/Ramsey-B/thistle/pkg/routes/listings"
	"github.com/Ramsey-B/thistle/pkg/startup"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"github.com/Ramsey-B/thistle/pkg/tracing/exporters"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "thistle: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &application{cfg: cfg, logger: logger}
	deps := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	deps.AddDependency(startup.Func{Name: "tracing", StartFunc: app.startTracing, StopFunc: app.stopTracing})
	deps.AddDependency(startup.Func{Name: "redis", StartFunc: app.startRedis, StopFunc: app.stopRedis})
	deps.AddDependency(startup.Func{Name: "kafka", StartFunc: app.startKafka, StopFunc: app.stopKafka})

	if err := deps.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := deps.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
	}()

	lookup, err := app.registryLookup()
	if err != nil {
		return err
	}

	checker := health.NewChecker(cfg.Version)
	if app.redis != nil {
		checker.AddCheck("redis", app.redis.Ping)
	}

	e := newServer(cfg, logger, checker, app.handlers(lookup))

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        e,
		ReadTimeout:    time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting %s on %s", cfg.AppName, srv.Addr)
		checker.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

type routeHandlers struct {
	duplicates  *duplicates.Handler
	identifiers *identifiers.Handler
	listings    *listings.Handler
}

func newServer(cfg config.Config, logger ectologger.Logger, checker *health.Checker, h routeHandlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	h.duplicates.Register(api.Group("/duplicates"))
	h.identifiers.Register(api.Group("/identifiers"))
	h.listings.Register(api.Group("/listings"))

	return e
}

// application holds the dependencies started before the server
type application struct {
	cfg            config.Config
	logger         ectologger.Logger
	redis          *redis.Client
	producer       *kafka.Producer
	stopTracerFunc func(context.Context) error
}

func (a *application) startTracing(ctx context.Context) error {
	if !a.cfg.TracingEnabled {
		return nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: a.cfg.TracingEndpoint,
		Protocol: a.cfg.TracingProtocol,
		Insecure: a.cfg.TracingInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	shutdown, err := tracing.Setup(a.cfg.AppName, a.cfg.Version, exporter)
	if err != nil {
		return err
	}
	a.stopTracerFunc = shutdown
	return nil
}

func (a *application) stopTracing(ctx context.Context) error {
	if a.stopTracerFunc == nil {
		return nil
	}
	return a.stopTracerFunc(ctx)
}

func (a *application) startRedis(ctx context.Context) error {
	if !a.cfg.RedisEnabled {
		return nil
	}

	client, err := redis.Connect(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *application) stopRedis(context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *application) startKafka(context.Context) error {
	if !a.cfg.KafkaEnabled {
		return nil
	}

	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	return nil
}

func (a *application) stopKafka(context.Context) error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}

// registryLookup builds the lookup chain: fixtures, rate limit, then cache. A nil
// lookup means identifiers are only checksum-verified.
func (a *application) registryLookup() (registry.Lookup, error) {
	if a.cfg.RegistryFixturesPath == "" {
		a.logger.Warn("No registry configured, identifiers are checksum-verified only")
		return nil, nil
	}

	static, err := registry.LoadStaticLookup(a.cfg.RegistryFixturesPath)
	if err != nil {
		return nil, err
	}

	var lookup registry.Lookup = registry.NewRateLimitedLookup(static, a.cfg.RegistryRateLimit, a.cfg.RegistryRateBurst)
	if a.redis != nil {
		cache := redis.NewLookupCache(a.redis, a.cfg.RedisPrefix, a.cfg.RegistryCacheTTL)
		lookup = registry.NewCachedLookup(a.logger, lookup, cache, a.cfg.RegistryLookupTimeout)
	}
	return lookup, nil
}

func (a *application) handlers(lookup registry.Lookup) routeHandlers {
	var publisher events.Publisher = events.NoopPublisher{}
	if a.producer != nil {
		publisher = a.producer
	}
	emitter := events.NewEmitter(publisher, a.logger)

	detector := matching.NewDetector(a.logger, matching.Config{
		MinMatchScore:   a.cfg.MinMatchScore,
		MediumThreshold: a.cfg.MediumThreshold,
		HighThreshold:   a.cfg.HighThreshold,
	})
	validator := registry.NewValidator(a.logger, registry.Config{LookupTimeout: a.cfg.RegistryLookupTimeout}, lookup)

	return routeHandlers{
		duplicates:  duplicates.NewHandler(detector, emitter, a.logger),
		identifiers: identifiers.NewHandler(validator, a.logger),
		listings:    listings.NewHandler(merging.NewMerger(a.logger), emitter, a.logger),
	}
}
