package main

import (
	"context"
	"fmt"
	"os"
	"time"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/api"
	"github.com/example/catalog-service/modules/auth"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/example/catalog-service/modules/media"
	"github.com/example/catalog-service/modules/observability"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "catalog-service",
		Short:        "Product catalog service with a read-through cache",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $CONFIG_FILE)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd, configPath)
			},
		},
		newCacheCmd(&configPath),
		newTokenCmd(&configPath),
	)
	return root
}

func newCacheCmd(configPath *string) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache administration",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Delete every catalog cache entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			cacheCfg := cfg.cacheConfig()
			svc, err := cache.NewService(cache.NewStore(cacheCfg), cacheCfg, logger.Named("cache"), nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			n, err := svc.Flush(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to flush cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys\n", n)
			return nil
		},
	})
	return cacheCmd
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			token, err := auth.NewJWTManager(cfg.jwtConfig()).Generate(userID, auth.Role(role), ttl)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried by the token")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleUser), "user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// setup loads the configuration and builds the logger.
func setup(configPath string) (*Config, *zap.Logger, error) {
	cfg, warnings, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := domain.Open(cfg.dbConfig())
	if err != nil {
		return err
	}
	store := domain.NewStore(db, cfg.Database.Timeout)
	defer store.Close()

	if err := domain.Migrate(db); err != nil {
		return err
	}
	logger.Info("schema migrated", zap.String("driver", cfg.Database.Driver))
	return nil
}

func runServe(configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("=== Catalog Service ===",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("nats_port", cfg.NATS.Port))

	metrics := observability.NewCollector("catalog")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithNATSPort(cfg.NATS.Port),
		mono.WithJetStreamStorageDir(cfg.NATS.JetStreamDir),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Plugins start before regular modules and are injected via SetPlugin.
	cachePlugin, err := cache.NewPluginModule(cfg.cacheConfig(), logger.Named("cache"), metrics)
	if err != nil {
		return err
	}
	if err := app.RegisterPlugin(cachePlugin, "cache"); err != nil {
		return fmt.Errorf("failed to register cache plugin: %w", err)
	}
	mediaPlugin := media.NewPluginModule(cfg.mediaConfig(), logger.Named("media"))
	if err := app.RegisterPlugin(mediaPlugin, "media"); err != nil {
		return fmt.Errorf("failed to register media plugin: %w", err)
	}

	// Order: catalog first, api depends on it.
	catalogModule := catalog.NewModule(cfg.catalogConfig(), logger.Named("catalog"), metrics)
	apiModule := api.NewModule(cfg.apiConfig(), auth.NewJWTManager(cfg.jwtConfig()), metrics, logger.Named("api"))
	apiModule.SetCatalogModule(catalogModule)
	if err := app.Register(catalogModule); err != nil {
		return fmt.Errorf("failed to register catalog module: %w", err)
	}
	if err := app.Register(apiModule); err != nil {
		return fmt.Errorf("failed to register api module: %w", err)
	}

	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	logger.Info("application started",
		zap.String("api", fmt.Sprintf("http://localhost:%d/api/v1", cfg.HTTPPort)),
		zap.String("metrics", fmt.Sprintf("http://localhost:%d/metrics", cfg.HTTPPort)))

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("application exited", zap.Int("exit_code", exitCode))
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return nil
}
