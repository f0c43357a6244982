package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/terrasense/agrigate/internal/adapter/cache"
	"github.com/terrasense/agrigate/internal/bootstrap"
	"github.com/terrasense/agrigate/internal/config"
	httptransport "github.com/terrasense/agrigate/internal/http"
	"github.com/terrasense/agrigate/internal/http/handler"
	httpmiddleware "github.com/terrasense/agrigate/internal/http/middleware"
	apimiddleware "github.com/terrasense/agrigate/internal/middleware"
	"github.com/terrasense/agrigate/internal/provider"
	"github.com/terrasense/agrigate/internal/repository"
	"github.com/terrasense/agrigate/internal/server"
	"github.com/terrasense/agrigate/internal/service"
	"github.com/terrasense/agrigate/internal/telemetry"
	"github.com/terrasense/agrigate/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newUserRepository,
			newRedisClient,
			newConversationStore,
			newTokenCodec,
			newOpenWeather,
			newAgroMonitoring,
			newOpenRouter,
			newRateLimiter,
			service.NewAuthService,
			service.NewEnvironmentService,
			service.NewChatService,
			handler.NewAuthHandler,
			handler.NewEnvHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.SeedDemoUser, startHTTPServer),
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

// newPGXPool connects to Postgres when DATABASE_URL is set. A nil pool
// selects the in-memory user store.
func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}

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

func newUserRepository(pool *pgxpool.Pool, logger *zap.Logger) repository.UserRepository {
	if pool == nil {
		logger.Info("user store: in-memory")
		return repository.NewMemoryUserRepo()
	}
	logger.Info("user store: postgres")
	return repository.NewPostgresUserRepo(pool)
}

// newRedisClient connects to Redis when REDIS_ADDR is set. A nil client
// selects the in-memory conversation store.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

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

func newConversationStore(client redis.UniversalClient, logger *zap.Logger) service.ConversationStore {
	if client == nil {
		logger.Info("conversation store: in-memory")
		return cacheadapter.NewMemoryConversationStore()
	}
	logger.Info("conversation store: redis")
	return cacheadapter.NewRedisConversationStore(client)
}

func newTokenCodec(cfg config.Config) *token.Codec {
	return token.NewCodec(cfg.AuthSecret, cfg.TokenTTL)
}

func newOpenWeather(cfg config.Config) *provider.OpenWeather {
	return provider.NewOpenWeather(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, nil)
}

func newAgroMonitoring(cfg config.Config) *provider.AgroMonitoring {
	return provider.NewAgroMonitoring(cfg.OpenWeatherAPIKey, cfg.AgroBaseURL, nil)
}

func newOpenRouter(cfg config.Config) *provider.OpenRouter {
	return provider.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.ChatModel, nil)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthMiddleware(authService *service.AuthService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{AuthService: authService}
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

			logger.Info("http server listening", zap.String("addr", addr))
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
