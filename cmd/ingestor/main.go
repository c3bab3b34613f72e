package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/kalshi-store/internal/config"
	"github.com/rickgao/kalshi-store/internal/connection"
	"github.com/rickgao/kalshi-store/internal/feed"
	"github.com/rickgao/kalshi-store/internal/market"
	"github.com/rickgao/kalshi-store/internal/metadata"
	"github.com/rickgao/kalshi-store/internal/schema"
	"github.com/rickgao/kalshi-store/internal/store"
	"github.com/rickgao/kalshi-store/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestor.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingestor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"store_addr", cfg.Store.Addr(),
		"feed_url", cfg.Feed.URL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	policy, err := cfg.Connection.Policy()
	if err != nil {
		logger.Error("invalid reconnect policy", "error", err)
		os.Exit(1)
	}

	// Connect to the store
	logger.Info("connecting to store", "addr", cfg.Store.Addr(), "db", cfg.Store.DB)

	manager := connection.NewManager(
		connection.Config{
			PingTimeout:         cfg.Connection.PingTimeout,
			HealthCheckInterval: cfg.Connection.HealthCheckInterval,
		},
		store.NewDialer(cfg.Store),
		policy,
		logger,
	)
	defer manager.Close()

	if _, ok := manager.EnsureConnection(ctx); !ok {
		logger.Error("failed to connect to store", "addr", cfg.Store.Addr())
		os.Exit(1)
	}
	logger.Info("store connected")

	// Assemble the market store
	engine := metadata.NewEngine(metadata.NewStaticStationResolver(nil), logger)
	st := market.New(manager, engine, logger)

	// Start health server
	healthServer := &http.Server{
		Addr:    ":8080",
		Handler: createHealthHandler(manager, st, logger),
	}

	go func() {
		logger.Info("starting health server", "port", 8080)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Run the feed consumer until shutdown
	consumer := feed.NewConsumer(cfg.Feed.Client(), st, policy, logger)

	logger.Info("ingestor running",
		"instance_id", cfg.Instance.ID,
		"health_url", "http://localhost:8080/health",
	)

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("feed consumer stopped", "error", err)
	}

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("ingestor stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(manager connection.Manager, st *market.Store, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check store connection
		conn, err := manager.Handle()
		if err == nil {
			err = conn.Ping(ctx)
		}
		if err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}

		// Check tracked subscriptions
		if health.Status == "healthy" {
			subs, err := st.Subscriptions.Subscribed(ctx)
			if err != nil {
				health.Status = "degraded"
				health.Components["subscriptions"] = map[string]string{"error": err.Error()}
			} else {
				health.Components["subscriptions"] = map[string]interface{}{
					"markets": len(subs),
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/markets", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		keys, err := st.MarketKeys(ctx, schema.VenueKalshi)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Limit to first 100 for debugging
		total := len(keys)
		limit := 100
		if len(keys) > limit {
			keys = keys[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   total,
			"showing": len(keys),
			"keys":    keys,
		})
	})

	return mux
}
