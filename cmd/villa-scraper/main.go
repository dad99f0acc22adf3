package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/caribvillas/villa-scraper/internal/api"
	"github.com/caribvillas/villa-scraper/internal/config"
	"github.com/caribvillas/villa-scraper/internal/database"
	"github.com/caribvillas/villa-scraper/internal/events"
	"github.com/caribvillas/villa-scraper/internal/fetcher"
	"github.com/caribvillas/villa-scraper/internal/ratelimit"
	"github.com/caribvillas/villa-scraper/internal/scraper"
	"github.com/caribvillas/villa-scraper/internal/storage"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env in local development; ignore when absent
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Property store selection
	var (
		store     scraper.PropertyStore
		catalog   api.PropertyReader
		publisher scraper.EventPublisher
		relay     *database.Relay
	)

	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := database.NewPropertyRepository(db)
		store = repo
		catalog = repo
		publisher = events.NewPublisher(db, logger)

		// Redis client for the outbox relay
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		relay = database.NewRelay(db, redisClient, logger, database.RelayConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		})
		go func() {
			if err := relay.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("relay stopped with error", "error", err)
			}
		}()

	case config.StoreBackendMemory:
		ms, err := storage.NewMemoryStore(cfg.Store.SnapshotFile)
		if err != nil {
			logger.Error("failed to open memory store", "error", err)
			os.Exit(1)
		}
		store = ms
		catalog = ms
		logger.Info("using in-memory property store; import events disabled")
	}

	// Scrape pipeline
	metrics := scraper.NewMetrics()
	fetchClient := fetcher.New(time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second, logger)
	limiter := ratelimit.NewPolitenessLimiter(
		time.Duration(cfg.Scraper.DelayMinMillis)*time.Millisecond,
		time.Duration(cfg.Scraper.DelayMaxMillis)*time.Millisecond,
	)
	scraperService := scraper.NewService(fetchClient, store, publisher, limiter, metrics, logger)

	handlers := api.NewHandlers(scraperService, catalog, logger)

	// Setup Chi router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		health := map[string]interface{}{
			"status": "ok",
			"store":  cfg.Store.Backend,
		}
		status := http.StatusOK

		if relay != nil {
			pendingCount, _ := relay.GetPendingCount(context.Background())
			deadLetterCount, _ := relay.GetDeadLetterCount(context.Background())
			health["outbox"] = map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			}
			if pendingCount > 1000 {
				health["status"] = "warning"
				health["message"] = "High number of pending outbox events"
			}
			if deadLetterCount > 100 {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", handlers.Scrape)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", handlers.ListProperties)
			r.Get("/{propertyID}", handlers.GetProperty)
		})

		r.Get("/destinations", handlers.GetDestinations)
		r.Get("/stats", handlers.GetStats)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port, "store", cfg.Store.Backend)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
