package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/config"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/consumer"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/handlers"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/hub"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/middleware"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/publisher"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	warmupTimeout   = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serve(cmd *cobra.Command, _ []string) error {
	fmt.Println("=== Statsboard ===")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the statistics database
	dbClient, err := openDB(cfg)
	if err != nil {
		fmt.Printf("❌ Failed to connect to %s: %v\n", cfg.Database.Driver, err)
		return err
	}
	defer closeDB(dbClient)

	fmt.Printf("✓ Connected to %s database\n", dbClient.Driver())

	// Redis is optional: without it the snapshot stays process-local
	var redisClient *redis.Client
	var shared cache.SharedStore
	if cfg.RedisEnabled() {
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			fmt.Printf("❌ Failed to connect to Redis: %v\n", err)
			return errors.Join(err, errApp)
		}
		defer redisClient.Close()

		shared = cache.NewRedisStore(redisClient, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL)
		fmt.Println("✓ Connected to Redis")
	} else {
		fmt.Println("⚠️  Redis not configured, refreshes stay local to this instance")
	}

	snapshots := cache.NewSnapshotCache(dbClient, shared)

	h := hub.NewHub()
	snapshots.OnRefresh(h.SnapshotRefreshed)

	instanceID := uuid.NewString()
	if redisClient != nil {
		pub := publisher.NewStreamPublisher(redisClient, cfg.Stream.Refresh, instanceID)
		snapshots.OnRefresh(func(ctx context.Context, snapshot *cache.Snapshot) {
			if err := pub.Publish(ctx, snapshot); err != nil {
				slog.Error("Failed to publish refresh event", slog.String("error", err.Error()))
			}
		})
	}

	warmup(ctx, snapshots)

	// Initialize handlers
	handler := handlers.NewHandler(dbClient, snapshots, cfg.Dashboard.TopN)
	liveHandler := handlers.NewLiveHandler(ctx, h, snapshots)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(cfg, handler, liveHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.Run(gctx)
	})

	if redisClient != nil {
		streamConsumer := consumer.NewStreamConsumer(redisClient, cfg.Stream.Refresh, instanceID, snapshots, h)
		g.Go(func() error {
			return streamConsumer.Start(gctx)
		})
	}

	g.Go(func() error {
		printEndpoints(cfg.Server.Addr, instanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\n⚠️  Shutting down...")

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("⚠️  Graceful shutdown failed: %v\n", err)
			return srv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Printf("❌ Server error: %v\n", err)
		return errors.Join(err, errApp)
	}

	fmt.Println("✓ Shutdown complete")

	return nil
}

func newRouter(cfg config.Config, handler *handlers.Handler, liveHandler *handlers.LiveHandler) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WebSocket connections outlive the request timeout
	r.Get("/ws", liveHandler.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Get("/health", handler.HealthCheck)
		r.Get("/metrics", liveHandler.HandleMetrics)
		r.Get("/", handler.DashboardPage)

		// Chart images
		r.Route("/charts", func(r chi.Router) {
			r.Get("/top-goals.png", handler.TopGoalsChart)
			r.Get("/top-combined.png", handler.TopCombinedChart)
			r.Get("/team-goals.png", handler.TeamGoalsChart)
		})

		// API v1
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/dashboard", handler.GetDashboard)
			r.Get("/summary", handler.GetSummary)
			r.Post("/refresh", handler.Refresh)

			// Players
			r.Get("/players/top-goals", handler.GetTopGoals)
			r.Get("/players/top-combined", handler.GetTopCombined)

			// Teams
			r.Get("/teams", handler.GetTeams)
			r.Get("/teams/goals", handler.GetTeamGoals)
			r.Get("/teams/search", handler.SearchTeams)
		})
	})

	return r
}

// connectRedis accepts either a redis:// URL or a bare host:port address
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{Addr: cfg.URL, Password: cfg.Password}
	if strings.Contains(cfg.URL, "://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.Password != "" {
			parsed.Password = cfg.Password
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// warmup loads the first snapshot so the first page view is served from memory.
// An empty or unreachable source is not fatal; requests retry the load.
func warmup(ctx context.Context, snapshots *cache.SnapshotCache) {
	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	snapshot, err := snapshots.Get(warmCtx)
	switch {
	case errors.Is(err, stats.ErrEmptyDataset):
		fmt.Println("⚠️  No player statistics yet, run `statsboard seed` to load some")
	case err != nil:
		fmt.Printf("⚠️  Initial snapshot load failed: %v\n", err)
	default:
		fmt.Printf("✓ Loaded %d player rows across %d teams\n", snapshot.Dataset.Len(), len(snapshot.Teams))
	}
}

func printEndpoints(addr, instanceID string) {
	fmt.Printf("✓ Statsboard listening on %s (instance %s)\n", addr, instanceID)
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /")
	fmt.Println("    GET  /health")
	fmt.Println("    GET  /metrics")
	fmt.Println("    GET  /ws")
	fmt.Println("    GET  /charts/top-goals.png")
	fmt.Println("    GET  /charts/top-combined.png")
	fmt.Println("    GET  /charts/team-goals.png")
	fmt.Println("    GET  /api/v1/dashboard")
	fmt.Println("    GET  /api/v1/summary")
	fmt.Println("    POST /api/v1/refresh")
	fmt.Println("    GET  /api/v1/players/top-goals")
	fmt.Println("    GET  /api/v1/players/top-combined")
	fmt.Println("    GET  /api/v1/teams")
	fmt.Println("    GET  /api/v1/teams/goals")
	fmt.Println("    GET  /api/v1/teams/search")
}
