package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"todolists/api/internal/app"
	"todolists/api/internal/config"
	"todolists/api/internal/search"
	"todolists/api/internal/session"
	"todolists/api/internal/store"
)

var (
	verbose  bool
	addrFlag string

	rootCmd = &cobra.Command{
		Use:           "todo-api",
		Short:         "Multi-user todolist API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (default)",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations and exit",
		RunE:  runMigrate,
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Push every stored todolist to Meilisearch and exit",
		RunE:  runReindex,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "listen address (overrides API_ADDR)")
	rootCmd.AddCommand(serveCmd, migrateCmd, reindexCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "todo-api:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if strings.TrimSpace(addrFlag) != "" {
		cfg.Addr = addrFlag
	}
	return cfg, nil
}

// backend is an opened data store plus whatever releases it.
type backend struct {
	store app.DataStore
	close func(context.Context) error
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.Store {
	case config.StoreMongo:
		mongoStore, err := store.OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return backend{}, err
		}
		logger.Info("using mongo store", zap.String("database", cfg.MongoDatabase))
		return backend{store: mongoStore, close: mongoStore.Close}, nil
	case config.StorePostgres:
		db, err := openMigratedPostgres(ctx, cfg, logger)
		if err != nil {
			return backend{}, err
		}
		logger.Info("using postgres store")
		return backend{store: store.NewPostgresStore(db), close: func(context.Context) error { return db.Close() }}, nil
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return backend{store: store.NewMemoryStore(), close: func(context.Context) error { return nil }}, nil
	}
}

func openMigratedPostgres(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	for _, version := range applied {
		logger.Info("applied migration", zap.String("version", version))
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		logger.Info("store has no migrations", zap.String("store", cfg.Store))
		return nil
	}
	db, err := openMigratedPostgres(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	return db.Close()
}

func runReindex(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.MeiliURL) == "" {
		return errors.New("MEILI_URL is not set")
	}

	ctx := cmd.Context()
	data, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = data.close(context.Background()) }()

	meili := search.NewMeili(logger, cfg.MeiliURL, cfg.MeiliMasterKey)
	defer meili.Close()
	service := app.New(cfg, logger, data.store, app.Options{
		Search: search.NewService(logger, meili, search.NewScanner(data.store)),
	})
	count, err := service.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d todolists\n", count)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := data.close(closeCtx); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("using redis for refresh sessions")
		sessions = redisStore
	} else {
		logger.Info("using in-process refresh sessions")
		sessions = session.NewMemoryStore(0, cfg.RefreshTTL())
	}
	defer func() { _ = sessions.Close() }()

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(logger, cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
	}
	searchService := search.NewService(logger, meili, search.NewScanner(data.store))
	defer searchService.Wait()

	metrics := app.NewMetrics()
	service := app.New(cfg, logger, data.store, app.Options{
		Sessions: sessions,
		Search:   searchService,
		Metrics:  metrics,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, logger, metrics, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if meili != nil && meili.Healthy() {
		group.Go(func() error {
			if _, err := service.Reindex(groupCtx); err != nil {
				logger.Warn("startup reindex", zap.Error(err))
			}
			return nil
		})
	}
	group.Go(func() error {
		logger.Info("todolist API listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	})
	return group.Wait()
}
