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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantumcare/clinical/internal/config"
	"github.com/quantumcare/clinical/internal/domain/assist"
	"github.com/quantumcare/clinical/internal/domain/records"
	"github.com/quantumcare/clinical/internal/platform/cache"
	"github.com/quantumcare/clinical/internal/platform/db"
	"github.com/quantumcare/clinical/internal/platform/events"
	"github.com/quantumcare/clinical/internal/platform/fhir"
	"github.com/quantumcare/clinical/internal/platform/gemini"
	"github.com/quantumcare/clinical/internal/platform/metrics"
	"github.com/quantumcare/clinical/migrations"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinical-server",
		Short:         "Clinical record API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
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
			schema, _ := cmd.Flags().GetString("schema")
			to, _ := cmd.Flags().GetInt("to")

			migrator, closePool, err := openMigrator(cmd.Context(), schema)
			if err != nil {
				return err
			}
			defer closePool()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running migrations on schema: %s\n", schema)
			count, err := migrator.UpTo(cmd.Context(), to)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			migrator, closePool, err := openMigrator(cmd.Context(), schema)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, schema string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateMigrate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS, schema), pool.Close, nil
}

func printStatus(cmd *cobra.Command, schema string, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	registry := fhir.NewRegistry()
	deps := serverDeps{cfg: cfg, logger: logger}

	// Store
	var store records.Store
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		store = records.NewPGStore(pool, registry)
		deps.dbHealth = db.HealthHandler(pool, logger)
	default:
		logger.Warn().Msg("using in-memory store; documents are lost on restart")
		store = records.NewMemoryStore(registry)
	}

	// Linkage cache
	var patientCache records.PatientCache
	if cfg.RedisURL != "" {
		lc, err := cache.New(ctx, cfg.RedisURL, cfg.LinkageCacheTTL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		defer lc.Close()
		patientCache = lc
		deps.cacheHealth = lc.Health
		logger.Info().Dur("ttl", cfg.LinkageCacheTTL).Msg("linkage cache enabled")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.metrics = metrics.New(reg)

	svc, err := records.NewService(fhir.NewEngine(registry), store, patientCache, logger)
	if err != nil {
		return err
	}
	svc.SetMetrics(deps.metrics)

	// Resource events
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		svc.SetEventPublisher(pub)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing resource events")
	} else {
		svc.SetEventPublisher(events.Noop{})
	}
	deps.records = svc

	llm, err := gemini.New(ctx, cfg.GeminiAPIKey,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithTimeout(cfg.LLMTimeout),
	)
	if err != nil {
		return err
	}
	deps.forwarder = assist.NewForwarder(llm, logger)
	deps.forwarder.SetMetrics(deps.metrics)

	e := newServer(deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr()).Str("store", cfg.StoreDriver).Str("model", llm.Model()).Msg("starting server")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
