package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Alp4ka/searchpager"
	"github.com/Alp4ka/searchpager/config"
	"github.com/Alp4ka/searchpager/engine/breaker"
	"github.com/Alp4ka/searchpager/engine/elastic"
	"github.com/Alp4ka/searchpager/engine/opensearch"
	"github.com/Alp4ka/searchpager/engine/sqlsearch"
	logpkg "github.com/Alp4ka/searchpager/internal/logger"
	"github.com/Alp4ka/searchpager/internal/transport/rest"
	"github.com/Alp4ka/searchpager/metrics"
)

const configEnv = "SEARCHPAGER_CONFIG"

// NewServeCommand runs the HTTP API until SIGINT or SIGTERM.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}

	defaultPath := os.Getenv(configEnv)
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultPath, "path to the YAML config (env "+configEnv+")")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logpkg.NewLogger(cfg.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting searchpagerd",
		zap.String("env", cfg.Env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("engine", cfg.Engine.Driver),
		zap.String("index", cfg.Index.Name),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	searchMetrics, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("register search metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTP(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	searcher, closeSearcher, err := newSearcher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSearcher()

	index, err := newIndex(cfg, searcher, logger, searchMetrics)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(rest.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(rest.RequestLogger(logger))
	r.Use(httpMetrics.Middleware)
	rest.NewServer(index, cfg.Index.SortMapping()).Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server stopped gracefully")

	return nil
}

// newSearcher builds the engine adapter selected by engine.driver, wrapped in
// a circuit breaker when enabled. The returned func releases its resources.
func newSearcher(cfg config.Config, logger *zap.Logger) (searchpager.Searcher, func(), error) {
	var (
		searcher searchpager.Searcher
		closer   = func() {}
	)

	engineLogger := logger.Named(cfg.Engine.Driver)

	switch cfg.Engine.Driver {
	case "elasticsearch":
		client, err := elastic.NewClient(elastic.Config{
			Addresses:  cfg.Engine.Addresses,
			Username:   cfg.Engine.Username,
			Password:   cfg.Engine.Password,
			Insecure:   cfg.Engine.Insecure,
			MaxRetries: cfg.Engine.MaxRetries,
		})
		if err != nil {
			return nil, nil, err
		}
		if searcher, err = elastic.New(client, engineLogger); err != nil {
			return nil, nil, err
		}
	case "opensearch":
		client, err := opensearch.NewClient(opensearch.Config{
			Addresses:  cfg.Engine.Addresses,
			Username:   cfg.Engine.Username,
			Password:   cfg.Engine.Password,
			Insecure:   cfg.Engine.Insecure,
			MaxRetries: cfg.Engine.MaxRetries,
		})
		if err != nil {
			return nil, nil, err
		}
		if searcher, err = opensearch.New(client, engineLogger); err != nil {
			return nil, nil, err
		}
	case "mysql", "postgres":
		dialector := mysql.Open(cfg.Engine.DSN)
		if cfg.Engine.Driver == "postgres" {
			dialector = postgres.Open(cfg.Engine.DSN)
		}

		db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Engine.Driver, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get %s connection pool: %w", cfg.Engine.Driver, err)
		}
		closer = func() { _ = sqlDB.Close() }

		searcher, err = sqlsearch.New(db,
			sqlsearch.WithKeyColumn(cfg.Index.KeyName),
			sqlsearch.WithTextColumns(cfg.Engine.TextColumns...),
			sqlsearch.WithFieldMapping(cfg.Engine.Columns),
			sqlsearch.WithLogger(engineLogger),
		)
		if err != nil {
			closer()
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown engine driver '%s'", cfg.Engine.Driver)
	}

	if b := cfg.Engine.Breaker; b.Enabled {
		searcher = breaker.New(searcher, breaker.Settings{
			Name:         cfg.Index.Name,
			MaxRequests:  b.MaxRequests,
			Interval:     secondsToDuration(b.IntervalSec),
			Timeout:      secondsToDuration(b.TimeoutSec),
			MinRequests:  b.MinRequests,
			FailureRatio: b.FailureRatio,
		}, logger.Named("breaker"))
	}

	return searcher, closer, nil
}

func newIndex(
	cfg config.Config,
	searcher searchpager.Searcher,
	logger *zap.Logger,
	collector searchpager.Collector,
) (*searchpager.Index, error) {
	sort, err := cfg.Index.Sort()
	if err != nil {
		return nil, err
	}

	hydrator := searchpager.NewHydrator(cfg.Index.EntityType).
		WithKeyName(cfg.Index.KeyName).
		WithMaxDepth(cfg.Index.MaxDepth).
		WithRelations(cfg.Index.RelationGraph())

	return searchpager.NewIndex(cfg.Index.Name, cfg.Index.EntityType, searcher,
		searchpager.WithDefaultSort(sort),
		searchpager.WithPerPage(cfg.Index.PerPage, cfg.Index.MaxPerPage),
		searchpager.WithCursorParam(cfg.Index.CursorParam),
		searchpager.WithPageParam(cfg.Index.PageParam),
		searchpager.WithHydrator(hydrator),
		searchpager.WithLogger(logger.Named("index")),
		searchpager.WithCollector(collector),
	)
}

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
