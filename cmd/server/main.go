// Command server runs the lead operations backend: the HTTP API, the
// background jobs, and their outbound integrations.
//
//	@title						LeadOps API
//	@version					1.0
//	@description				Lead ingestion, zip-code scrape requests and category tracking for the ops dashboard.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				"Bearer <INGEST_API_KEY>" for the scraper, "Bearer <jwt>" for dashboard users.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/leadops-backend/internal/auth"
	"github.com/tbourn/leadops-backend/internal/config"
	httpapi "github.com/tbourn/leadops-backend/internal/http"
	"github.com/tbourn/leadops-backend/internal/jobs"
	"github.com/tbourn/leadops-backend/internal/notify"
	"github.com/tbourn/leadops-backend/internal/observability"
	"github.com/tbourn/leadops-backend/internal/repo"
	"github.com/tbourn/leadops-backend/internal/sysutil"
	"github.com/tbourn/leadops-backend/internal/workflow"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, dsnFor(cfg))
	if err != nil {
		return err
	}
	if err := observability.InstrumentDB(db, cfg.OTEL); err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	trigger, err := workflow.New(cfg.Workflow)
	if err != nil {
		return err
	}
	if c, ok := trigger.(io.Closer); ok {
		defer c.Close()
	}

	authMgr := auth.NewManager(cfg.Auth.IngestAPIKey, cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	svcs := httpapi.NewServices(db, cfg, authMgr, trigger)

	created, err := svcs.Users.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("email", cfg.Auth.AdminEmail).Msg("bootstrap admin created")
	}

	opts := httpapi.Options{Auth: authMgr, Services: svcs}
	if mailer := notify.NewMailer(cfg.Mail); mailer.Enabled() {
		opts.Notifier = mailer
	}

	sched, err := jobs.New(ctx, jobs.Schedules{
		Reconcile:        cfg.ReconcileCron,
		IdempotencyPurge: cfg.IdempotencyPurgeCron,
	}, db, svcs.Categories)
	if err != nil {
		return err
	}
	sched.Start()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Str("db", cfg.DBDriver).
			Str("workflow", trigger.Name()).
			Bool("mail", opts.Notifier != nil).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sched.Stop(sctx)
	return srv.Shutdown(sctx)
}

// dsnFor picks the connection string for the configured driver.
func dsnFor(cfg config.Config) string {
	if cfg.DBDriver == "postgres" {
		return cfg.DatabaseURL
	}
	return cfg.DBPath
}
