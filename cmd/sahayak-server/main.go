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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sahayak/sahayak/internal/config"
	"github.com/sahayak/sahayak/internal/domain/emergency"
	"github.com/sahayak/sahayak/internal/domain/identity"
	"github.com/sahayak/sahayak/internal/domain/portal"
	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/report"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/domain/workitem"
	"github.com/sahayak/sahayak/internal/platform/ai"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/internal/platform/blobstore"
	"github.com/sahayak/sahayak/internal/platform/db"
	"github.com/sahayak/sahayak/internal/platform/metrics"
	"github.com/sahayak/sahayak/internal/platform/middleware"
	"github.com/sahayak/sahayak/internal/platform/notification"
	"github.com/sahayak/sahayak/internal/platform/outbox"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sahayak-server",
		Short: "Sahayak care-coordination API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", cfg.DBSchema)
			count, err := db.NewMigrator(pool, dir).Up(ctx, cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", cfg.DBSchema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrations are forward-only. Write a new numbered migration to undo a change.")
			return nil
		},
	})

	return cmd
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox maintenance",
	}

	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Deliver pending outbox messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			people := identity.NewService(identity.NewPersonRepoPG(pool), logger)
			sink, closeSink, err := newSink(cfg, logger, people)
			if err != nil {
				return err
			}
			defer closeSink()

			relay := newRelay(cfg, outbox.NewPGStore(pool), sink, logger)
			if !once {
				return relay.Run(ctx)
			}
			res, err := relay.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("published=%d retried=%d dead=%d\n", res.Published, res.Retried, res.Dead)
			return nil
		},
	}
	relayCmd.Flags().Bool("once", false, "Deliver one batch and exit")
	cmd.AddCommand(relayCmd)
	return cmd
}

func newRelay(cfg *config.Config, store outbox.Store, sink outbox.Sink, logger zerolog.Logger) *outbox.Relay {
	return outbox.NewRelay(store, sink, logger,
		outbox.WithInterval(cfg.OutboxPollInterval),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
	)
}

// newSink builds the configured outbox sink. The returned func releases
// whatever the sink holds open.
func newSink(cfg *config.Config, logger zerolog.Logger, people *identity.Service) (outbox.Sink, func(), error) {
	noop := func() {}
	switch cfg.OutboxSink {
	case "log":
		return outbox.LogSink{Logger: logger}, noop, nil
	case "kafka":
		k := outbox.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		return k, func() {
			if err := k.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing kafka writer")
			}
		}, nil
	case "webhook":
		return outbox.NewWebhookSink(cfg.WebhookURL, cfg.WebhookSecret), noop, nil
	case "notify":
		dispatcher := notification.NewDispatcher(
			notification.LogSMSSender{Logger: logger},
			notification.LogEmailSender{Logger: logger},
			notification.NewTemplateEngine(),
		)
		contacts := outbox.ContactFunc(func(ctx context.Context, id uuid.UUID) (outbox.Contact, error) {
			p, err := people.GetPerson(ctx, id)
			if err != nil {
				return outbox.Contact{}, err
			}
			c := outbox.Contact{Name: p.Name, Phone: p.Phone}
			if p.Email != nil {
				c.Email = *p.Email
			}
			return c, nil
		})
		return outbox.NewNotifySink(dispatcher, contacts), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown outbox sink %q", cfg.OutboxSink)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.BlobBackend == "s3" {
		return blobstore.NewS3BlobStore(ctx, blobstore.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}
	return blobstore.NewInMemoryBlobStore(""), nil
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		l := newLogger(nil)
		l.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open blob store")
		return err
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", metrics.Handler())

	var authn echo.MiddlewareFunc
	if cfg.IsDev() {
		authn = auth.DevAuthMiddleware()
	} else {
		authn = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1 := e.Group("/api/v1", authn, middleware.RateLimit(rateLimitCfg))

	// Stores and services
	tx := db.NewTransactor(pool)
	events := outbox.NewPGStore(pool)

	identitySvc := identity.NewService(identity.NewPersonRepoPG(pool), logger)
	vitalsSvc := vitals.NewService(vitals.NewReadingRepoPG(pool), logger)
	prescriptionSvc := prescription.NewService(prescription.NewPrescriptionRepoPG(pool), logger)
	workSvc := workitem.NewService(
		workitem.NewWorkItemRepoPG(pool), identitySvc, vitalsSvc, prescriptionSvc, events, tx, logger,
		workitem.WithMaxConsultationMinutes(cfg.MaxConsultationMinutes),
	)

	var gen ai.Generator
	if cfg.AIEnabled() {
		gen = ai.NewClient(ai.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.AITimeout,
		})
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, assistant endpoints will answer 503")
	}
	assistant := ai.NewAssistant(gen, logger)

	reportSvc := report.NewService(report.NewReportRepoPG(pool), blobs, assistant, logger)
	emergencySvc := emergency.NewService(
		emergency.NewFacilityRepoPG(pool), emergency.NewRequestRepoPG(pool), events, tx, logger)
	portalSvc := portal.NewService(identitySvc, vitalsSvc, reportSvc, prescriptionSvc, workSvc, logger)

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	vitals.NewHandler(vitalsSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(apiV1)
	workitem.NewHandler(workSvc).RegisterRoutes(apiV1)
	report.NewHandler(reportSvc).RegisterRoutes(apiV1)
	emergency.NewHandler(emergencySvc).RegisterRoutes(apiV1)
	portal.NewHandler(portalSvc).RegisterRoutes(apiV1)
	ai.NewHandler(assistant).RegisterRoutes(apiV1)

	// Outbox relay
	sink, closeSink, err := newSink(cfg, logger, identitySvc)
	if err != nil {
		return err
	}
	defer closeSink()
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := newRelay(cfg, events, sink, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("outbox relay exited")
		}
	}()

	// Start
	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	<-relayDone
	logger.Info().Msg("server stopped")
	return nil
}
