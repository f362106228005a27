package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mailadmin/pkg/bus"
	"mailadmin/pkg/db"
	"mailadmin/pkg/telemetry"
	"mailadmin/services/api"
	"mailadmin/services/api/internal/config"
	"mailadmin/services/audit"
	"mailadmin/services/directory"
	"mailadmin/services/directory/memstore"
)

const serviceName = "mailadmin-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg)
	log.Logger = logger

	shutdownTelemetry, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	repo, events, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer closeStores()

	opts := api.Options{Repo: repo, Events: events, Logger: logger}
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect nats")
		}
		defer b.Close()
		if err := b.EnsureStream(audit.StreamName, cfg.AuditSubject); err != nil {
			logger.Fatal().Err(err).Msg("ensure audit stream")
		}
		publisher, err := audit.NewBusPublisher(b, cfg.AuditSubject)
		if err != nil {
			logger.Fatal().Err(err).Msg("init audit publisher")
		}
		opts.Publisher = publisher
	}

	if cfg.SeedAdmin {
		seeder := directory.NewSeeder(repo, audit.NewLedger(events, logger), logger)
		if _, err := seeder.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			logger.Fatal().Err(err).Msg("seed admin")
		}
	}

	server, err := api.New(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("init api")
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.Router(api.RouterOptions{
			AllowedOrigins:          cfg.AllowedOrigins,
			RateLimitPerMinute:      cfg.RateLimitPerMinute,
			LoginRateLimitPerMinute: cfg.LoginRateLimitPerMinute,
			ServiceName:             serviceName,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("store", cfg.StoreDriver).Msg("starting mailadmin-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(cfg.Level()).With().Timestamp().Str("service", serviceName).Logger()
}

// openStores returns the directory and audit repositories for the configured
// driver, plus a function releasing their connections.
func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (directory.Repository, audit.Repository, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store; data is lost on exit")
		store := memstore.New()
		return store, store, func() {}, nil
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	events, err := audit.NewPostgresRepository(pool)
	if err != nil {
		_ = db.CloseORM(orm)
		pool.Close()
		return nil, nil, nil, err
	}
	closeAll := func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Error().Err(err).Msg("close orm")
		}
		pool.Close()
	}
	return directory.NewStore(orm), events, closeAll, nil
}
