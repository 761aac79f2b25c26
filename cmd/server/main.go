package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropvault/backend/docs"
	"github.com/dropvault/backend/internal/audit"
	"github.com/dropvault/backend/internal/config"
	"github.com/dropvault/backend/internal/database"
	"github.com/dropvault/backend/internal/handlers"
	mW "github.com/dropvault/backend/internal/middleware"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

// @title DropVault Ledger API
// @version 1.0
// @description Balance ledger, content entitlements and notifications
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	docs.SwaggerInfo.Host = viper.GetString("swagger.host")
	if docs.SwaggerInfo.Host == "" {
		docs.SwaggerInfo.Host = "localhost:8080"
	}

	ctx := context.Background()
	cfg := config.LoadLedgerConfig()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	retry := repository.RetryPolicy{
		MaxAttempts: cfg.MaxTxAttempts,
		Backoff:     cfg.RetryBackoff,
		OnRetry:     metrics.IncTxRetry,
	}

	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Println("Using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore(retry)
	case config.StoreDriverPostgres:
		db, err := database.OpenLedgerDB(ctx, database.GetConfig())
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		store = repository.NewPostgresStore(db, retry)
	default:
		log.Fatalf("Unknown store driver %q", cfg.StoreDriver)
	}

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}
	mW.InitAuthMiddleware(redisClient)

	auditLogger := audit.NewAuditLogger()
	ledgerService := services.NewLedgerService(store, auditLogger, metrics, cfg)
	if redisClient != nil {
		ledgerService.WithCache(services.NewAdjustmentCache(redisClient, cfg.IdempotencyTTL))
	}
	entitlementService := services.NewEntitlementService(store, ledgerService, auditLogger, metrics, cfg)
	notificationService := services.NewNotificationService(store, metrics, cfg)
	reportService := services.NewReportService(store)

	r := handlers.NewRouter(handlers.Handlers{
		Ledger:       handlers.NewLedgerHandler(ledgerService),
		Content:      handlers.NewContentHandler(entitlementService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Report:       handlers.NewReportHandler(reportService),
	}, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
