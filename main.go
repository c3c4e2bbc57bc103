package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"devconnector/config"
	"devconnector/database"
	"devconnector/handlers"
	"devconnector/logger"
	"devconnector/middleware"
	"devconnector/routes"
	"devconnector/service"
	"devconnector/store"
	"devconnector/websocket"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}
	logger.Init(cfg.Env, cfg.IsRelease())
	logger.Log.Info("starting devconnector")

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to open store")
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	svc := service.New(st, hub)
	h := handlers.New(svc, cfg.JWTSecret, cfg.JWTTTL)

	router := routes.SetupRouter(h, routes.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     newLimiter(ctx, cfg),
		Activity:    hub.Handler(cfg.JWTSecret),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Infof("server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("forced shutdown")
	}
	if err := st.Close(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("closing store")
	}
	logger.Log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Log.Warn("using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	}

	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.EnsureIndexes(indexCtx, client.Database(cfg.MongoDB)); err != nil {
		database.DisconnectMongo(client)
		return nil, err
	}
	return store.NewMongoStore(client, cfg.MongoDB), nil
}

// newLimiter prefers a shared Redis counter and falls back to a per-process
// window when Redis is not configured or not reachable.
func newLimiter(ctx context.Context, cfg *config.Config) middleware.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client, err := middleware.NewRedisClient(pingCtx, cfg.RedisAddr, cfg.RedisPassword)
		if err == nil {
			logger.Log.WithField("addr", cfg.RedisAddr).Info("rate limiting through redis")
			return middleware.NewRedisRateLimiter(client, cfg.RateLimit, cfg.RateLimitWindow)
		}
		logger.Log.WithError(err).Warn("redis unavailable, rate limiting per process")
	}
	return middleware.NewIPRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
}
