// Command photoauth-server serves the photo-sharing authentication API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoshare/photoauth"
	"github.com/photoshare/photoauth/internal/config"
	"github.com/photoshare/photoauth/internal/httpapi"
	"github.com/photoshare/photoauth/internal/logger"
	"github.com/photoshare/photoauth/mail"
	promexport "github.com/photoshare/photoauth/metrics/export/prometheus"
	"github.com/photoshare/photoauth/store/bunstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("photoauth-server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := config.LoadDotEnv(""); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	log := logger.SetupDefault(os.Stdout, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Info("configuration loaded",
		"port", cfg.ServerPort,
		"cache_backend", cfg.CacheBackend,
		"database_driver", cfg.DatabaseDriver,
		"cache_ttl", cfg.CacheTTL)

	// Store
	db, err := bunstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	store := bunstore.New(db)
	if err := store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	builder := photoauth.New().
		WithConfig(cfg.EngineConfig()).
		WithUserStore(store).
		WithLogger(log)

	// Cache
	if cfg.CacheBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The engine falls back to the store while the cache is down.
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		builder = builder.WithRedis(rdb)
	}

	// Mail
	if cfg.SMTPHost != "" {
		mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return fmt.Errorf("smtp mailer: %w", err)
		}
		builder = builder.WithMailer(mailer)
	} else {
		log.Warn("SMTP_HOST not set, verification mail is logged instead of sent")
		builder = builder.WithMailer(mail.NewLogMailer(log))
	}

	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(photoauth.NewSlogSink(log))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if _, err := promexport.Register(reg, engine); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsHandler = promexport.Handler(reg)
	}

	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: httpapi.NewRouter(httpapi.RouterDeps{
			Engine:  engine,
			Logger:  log,
			BaseURL: cfg.BaseURL,
			Metrics: metricsHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting photoauth server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server exited properly")
	return nil
}
