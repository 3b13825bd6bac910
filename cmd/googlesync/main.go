package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/Thiwanka-Sandakalum/vidsage-google/internal/adapter/cache"
	googleadapter "github.com/Thiwanka-Sandakalum/vidsage-google/internal/adapter/google"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/crypto"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/database"
	httptransport "github.com/Thiwanka-Sandakalum/vidsage-google/internal/http"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/http/handler"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/middleware"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/repository"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/server"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/export"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/tokens"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newMetrics,
			newSnowflake,
			newPGXPool,
			newCryptoBox,
			newCredentialRepository,
			newRedisClient,
			newNonceStore,
			newOAuthClient,
			newDocsClient,
			newStateSigner,
			newRateLimiter,
			tokens.NewService,
			export.NewService,
			handler.NewGoogleHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, startHTTPServer, startSweeper),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics()
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newCryptoBox(cfg config.Config, logger *zap.Logger) (*crypto.Box, error) {
	crypto.WarnIfDefaultKey(cfg.EncryptionKey, logger)
	return crypto.New(cfg.EncryptionKey)
}

func newCredentialRepository(pool *pgxpool.Pool, box *crypto.Box, node *snowflake.Node) repository.CredentialRepository {
	return repository.NewPostgresCredentialRepo(pool, box, node)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newNonceStore(client redis.UniversalClient) repository.NonceStore {
	return cacheadapter.NewRedisNonceStore(client)
}

func newOAuthClient(cfg config.Config) googleadapter.OAuthClient {
	return googleadapter.NewOAuthClient(cfg)
}

func newDocsClient(logger *zap.Logger) googleadapter.DocsClient {
	return googleadapter.NewDocsClient(logger)
}

func newStateSigner(cfg config.Config) *tokens.StateSigner {
	return tokens.NewStateSigner(cfg.StateSigningSecret, cfg.StateTTL)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func runMigrations(cfg config.Config, logger *zap.Logger) error {
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	logger.Info("database migrations applied")
	return nil
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startSweeper(lc fx.Lifecycle, svc *tokens.Service, cfg config.Config, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				logger.Info("credential sweeper started", zap.Duration("interval", cfg.TokenCleanupInterval))
				svc.RunSweeper(runCtx, cfg.TokenCleanupInterval)
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
