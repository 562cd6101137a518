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
	"github.com/grafana/pyroscope-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/gateway-sim/internal/api"
	"github.com/atmx/gateway-sim/internal/auth"
	"github.com/atmx/gateway-sim/internal/config"
	"github.com/atmx/gateway-sim/internal/history"
	"github.com/atmx/gateway-sim/internal/hub"
	"github.com/atmx/gateway-sim/internal/marketdata"
	"github.com/atmx/gateway-sim/internal/metrics"
	"github.com/atmx/gateway-sim/internal/order"
	"github.com/atmx/gateway-sim/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Profiling ---
	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			slog.Error("pyroscope start failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { _ = profiler.Stop() })
		slog.Info("continuous profiling enabled", "server", cfg.Profiling.ServerAddress)
	}

	// --- Initialize store ---
	st := store.NewMemoryStore()
	if err := store.Seed(ctx, st, store.SeedConfig{
		NumAccounts:  cfg.MockData.NumAccounts,
		NumContracts: cfg.MockData.NumContracts,
		Seed:         cfg.MockData.Seed,
	}); err != nil {
		slog.Error("seed reference data", "err", err)
		os.Exit(1)
	}

	var journal store.Journal = store.NopJournal{}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		journal = store.NewPostgresJournal(pool)
		slog.Info("fill journal enabled", "sink", "postgres")
	}

	// --- Hub mirror ---
	var mirror hub.Mirror
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		rm := hub.NewRedisMirror(rdb, cfg.Redis.ChannelPrefix)
		go rm.Run(ctx)
		mirror = rm
		slog.Info("hub mirror enabled", "prefix", cfg.Redis.ChannelPrefix)
	}

	// --- Hubs, market data, engine ---
	userHub := hub.NewUserHub(mirror)
	marketHub := hub.NewMarketHub(mirror)

	synth := marketdata.New(marketHub, st, marketdata.Options{
		Interval: cfg.MarketData.Interval,
		Seed:     cfg.MockData.Seed,
	})
	if cfg.MarketData.Enabled {
		synth.Start()
	}

	engine := order.NewEngine(st, userHub, synth, order.Options{
		FillDelay: cfg.Trading.FillDelay,
		Journal:   journal,
	})
	bars := history.NewGenerator(st, cfg.MockData.Seed)
	mode, err := auth.ParseMode(cfg.Auth.Mode)
	if err != nil {
		slog.Error("invalid auth mode", "error", err)
		os.Exit(1)
	}
	sessions := auth.NewManager(mode, cfg.Auth.TokenExpiry)
	slog.Info("session issuance configured", "mode", mode, "token_expiry", cfg.Auth.TokenExpiry)
	handler := api.NewHandler(st, engine, bars, sessions, cfg.HTTP.ResponseDelay)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS middleware for cross-origin test clients.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"service":       "gateway-sim",
			"store":         st.Stats(r.Context()),
			"userClients":   userHub.Clients(),
			"marketClients": marketHub.Clients(),
			"pendingFills":  engine.PendingFills(),
		})
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// Hubs hold long-lived connections and stay outside the request timeout.
	r.Get("/hubs/user", userHub.ServeHTTP)
	r.Get("/hubs/market", marketHub.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		handler.Register(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("gateway-sim listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down gateway-sim...")
	synth.Stop()
	engine.Close()
	userHub.Close()
	marketHub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stop()
	fmt.Println("gateway-sim stopped")
}
