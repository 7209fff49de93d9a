package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/musejewels/storefront/internal/api"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/logger"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/musejewels/storefront/internal/services"
	"github.com/musejewels/storefront/internal/session"
	"github.com/musejewels/storefront/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger.Initialize(cfg.Environment)
	defer logger.Sync()

	// Initialize OpenTelemetry metrics
	ctx := context.Background()
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("error shutting down meter provider", zap.Error(err))
		}
	}()

	// Initialize database
	database, err := db.Open(cfg.GetDSN(), cfg.OTELServiceName)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize schema and sample catalog
	schemaSQL, err := os.ReadFile("schema.sql")
	if err != nil {
		logger.Log.Warn("could not read schema.sql, assuming schema already exists", zap.Error(err))
	} else {
		if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
			logger.Log.Warn("could not initialize schema, assuming it already exists", zap.Error(err))
		}
		if err := database.SeedProducts(ctx); err != nil {
			logger.Log.Warn("could not seed sample products", zap.Error(err))
		}
	}

	// Initialize services
	sessionManager := session.NewManager([]byte(cfg.SessionSecret))
	catalogService := services.NewCatalogService(database, appMetrics)
	cartService := services.NewCartService(database, appMetrics)
	orderService := services.NewOrderService(database, appMetrics)
	userService := services.NewUserService(database, appMetrics)

	// Initialize app and router
	app := api.NewApp(cfg, database, appMetrics, sessionManager, catalogService, cartService, orderService, userService)
	router := mux.NewRouter()
	app.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Log.Info("server starting", zap.String("port", cfg.AppPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("server exited")
}
