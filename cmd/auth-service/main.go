package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/literati-app/auth-service/internal/audit"
	"github.com/literati-app/auth-service/internal/auth"
	"github.com/literati-app/auth-service/internal/config"
	"github.com/literati-app/auth-service/internal/httpapi"
	"github.com/literati-app/auth-service/internal/metrics"
	"github.com/literati-app/auth-service/internal/password"
	"github.com/literati-app/auth-service/internal/store"
	"github.com/literati-app/auth-service/internal/store/memory"
	"github.com/literati-app/auth-service/internal/store/postgres"
	redisstore "github.com/literati-app/auth-service/internal/store/redis"
	"github.com/literati-app/auth-service/internal/token"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := newLogger(cfg.Env)
	log.WithField("env", cfg.Env).Info("starting auth service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// User datastore.
	users, err := postgres.New(ctx, cfg.DB.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer users.Close()

	if err := postgres.Migrate(ctx, cfg.DB.DatabaseURL); err != nil {
		log.WithError(err).Fatal("failed to apply migrations")
	}

	// Token family and lockout state. Redis when configured, otherwise
	// in-process memory (single replica only).
	var (
		families  store.FamilyStore
		lockouts  store.LockoutStore
		readiness = []httpapi.Pinger{users}
	)
	if cfg.Redis.RedisURL != "" {
		redisOpts, err := goredis.ParseURL(cfg.Redis.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid redis url")
		}
		client := goredis.NewClient(redisOpts)
		defer client.Close()

		rs := redisstore.New(client)
		if _, err := rs.Ping(ctx); err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		families, lockouts = rs, rs
		readiness = append(readiness, redisPinger{rs})
	} else {
		log.Warn("no redis configured, using in-memory token stores")
		mem := memory.New()
		families, lockouts = mem, mem
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		log.WithError(err).Fatal("invalid token configuration")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditor := audit.NewDispatcher(audit.NewLogSink(log), cfg.Audit.BufferSize)
	defer auditor.Close()

	svc := auth.New(
		auth.Config{
			StoreTimeout:       cfg.Auth.StoreTimeout,
			LockoutMaxAttempts: cfg.Lockout.MaxAttempts,
			LockoutWindow:      cfg.Lockout.Window,
			ReuseInterval:      cfg.Auth.ReuseInterval,
		},
		codec, users, families, lockouts,
		password.NewHasher(password.Params{}),
		log, auditor, metrics.New(registry),
	)

	api := httpapi.New(svc, log, httpapi.Options{
		CookiePolicy:   cfg.CookiePolicy(),
		AccessTTL:      cfg.Auth.AccessTokenTTL,
		RefreshTTL:     cfg.Auth.RefreshTokenTTL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Readiness:      readiness,
		Gatherer:       registry,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// redisPinger adapts the redis store's latency-reporting ping to the
// readiness interface.
type redisPinger struct {
	store *redisstore.Store
}

func (p redisPinger) Ping(ctx context.Context) error {
	_, err := p.store.Ping(ctx)
	return err
}

func newLogger(env string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if env == config.EnvProduction {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}
