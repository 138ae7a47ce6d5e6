package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"

	"github.com/ignite/mailroom/internal/api"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/delivery"
	"github.com/ignite/mailroom/internal/dispatch"
	"github.com/ignite/mailroom/internal/notify"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/provider"
	"github.com/ignite/mailroom/internal/repository/postgres"
	"github.com/ignite/mailroom/internal/throttle"
	"github.com/ignite/mailroom/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	logger.Info("connected to database")

	// Provider
	p, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}

	// Stores
	logRepo := postgres.NewDeliveryLogRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	subscriberRepo := postgres.NewSubscriberRepo(db)
	auditRepo := postgres.NewAuditRepo(db)
	prefRepo := postgres.NewPreferenceRepo(db)

	// Throttle cache: Redis when configured, in-process otherwise.
	var cache throttle.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("ping redis: %v", err)
		}
		cache = throttle.NewRedisCache(rdb)
		logger.Info("throttle cache using redis", "addr", cfg.Redis.Addr)
	} else {
		mem := throttle.NewMemoryCache(time.Now)
		mem.StartSweeper(context.Background(), time.Hour)
		cache = mem
		logger.Info("throttle cache using in-process memory")
	}

	// Services
	client := delivery.NewClient(p, logRepo, cfg.Server.TrackingBaseURL,
		delivery.WithCompany(cfg.Sending.CompanyName, cfg.Sending.AbuseAddress))

	dispatcher := dispatch.NewDispatcher(campaignRepo, subscriberRepo, logRepo, client,
		dispatch.WithPace(cfg.Sending.Pace(), 2*time.Second))

	gate := notify.NewGate(notify.DefaultRules(), client, auditRepo, prefRepo, cache,
		cfg.Sending.FromName, cfg.Sending.FromEmail)

	trackingSvc := tracking.NewService(logRepo, campaignRepo)
	trackingHandler := tracking.NewHandler(trackingSvc)

	// HTTP server
	handlers := api.NewHandlers(dispatcher, gate)
	router := api.SetupRoutes(handlers, trackingHandler, cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Sending.Provider {
	case "sparkpost":
		if cfg.SparkPost.APIKey == "" {
			return nil, fmt.Errorf("sparkpost.api_key is required")
		}
		return provider.NewSparkPostSender(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL), nil
	case "ses":
		return provider.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
	default:
		return nil, fmt.Errorf("unknown sending provider %q", cfg.Sending.Provider)
	}
}
