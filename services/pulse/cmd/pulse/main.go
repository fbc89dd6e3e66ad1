package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"learningpulse/internal/ratelimit"
	"learningpulse/internal/util"
	"learningpulse/pkg/kv"
	"learningpulse/services/pulse/internal/app"
	"learningpulse/services/pulse/internal/config"
	"learningpulse/services/pulse/internal/security"
	"learningpulse/services/pulse/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, nil)
	appCfg, err := cfg.AppConfig(logger)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCore, err := app.New(ctx, appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	if err := appCore.Restore(ctx); err != nil {
		log.Fatalf("failed to restore state: %v", err)
	}

	srvCfg := server.Config{App: appCore, AllowedOrigins: cfg.AllowedOrigins}
	if rdb := redisClient(cfg, appCore.Store()); rdb != nil {
		if cfg.LoginRateLimit > 0 {
			window, err := config.ParseDuration(cfg.LoginRateWindow, time.Minute)
			if err != nil {
				log.Fatalf("failed to parse login rate window: %v", err)
			}
			limiter, err := ratelimit.NewFixedWindowLimiter(rdb, cfg.RedisPrefix+":ratelimit:login", cfg.LoginRateLimit, window)
			if err != nil {
				log.Fatalf("failed to init login limiter: %v", err)
			}
			srvCfg.LoginLimiter = limiter
		}
		alerter, err := security.NewAuditAlerter(rdb, cfg.RedisPrefix+":alerts")
		if err != nil {
			log.Fatalf("failed to init security alerter: %v", err)
		}
		srvCfg.Alerter = alerter
	} else {
		logger.Info("redis not configured, login throttling disabled")
	}

	proxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	srvCfg.TrustedProxies = proxies

	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("pulse server listening", "addr", addr, "storage", cfg.StorageDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := appCore.Close(closeCtx); err != nil {
		logger.Error("close app", "err", err)
	}
}

// redisClient reuses the connection of a redis-backed store, or dials
// redisAddr when only the HTTP guards need redis.
func redisClient(cfg config.FileConfig, store kv.Store) *redis.Client {
	if rs, ok := store.(*kv.RedisStore); ok {
		return rs.Client()
	}
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
}
