package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/config"
	"github.com/luckyspin/rewards-engine/internal/fairness"
	"github.com/luckyspin/rewards-engine/internal/httpapi"
	"github.com/luckyspin/rewards-engine/internal/ledger"
	"github.com/luckyspin/rewards-engine/internal/lottery"
	"github.com/luckyspin/rewards-engine/internal/notify"
	"github.com/luckyspin/rewards-engine/internal/referral"
	"github.com/luckyspin/rewards-engine/internal/settings"
	"github.com/luckyspin/rewards-engine/internal/slide"
	"github.com/luckyspin/rewards-engine/internal/store"
	"github.com/luckyspin/rewards-engine/internal/ticket"
	"github.com/luckyspin/rewards-engine/internal/wheel"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rewards-engine failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var rdb *redis.Client

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			slog.Info("migrations applied")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Events ---
	hub := notify.NewHub()
	var pub notify.Publisher = hub
	var relay *notify.RedisRelay
	if rdb != nil {
		relay = notify.NewRedisRelay(rdb, cfg.EventsChannel, hub)
		pub = relay
	}

	// --- Services ---
	rng := fairness.Secure()
	cfgSvc := settings.NewService(st, cfg.TicketPrice)
	lotteries := lottery.NewEngine(st, rng, pub)
	api := httpapi.New(httpapi.Deps{
		Store:     st,
		Ledger:    ledger.New(st),
		Chances:   chance.NewBank(st),
		Tickets:   ticket.NewService(st, cfgSvc),
		Settings:  cfgSvc,
		Lotteries: lotteries,
		Wheel:     wheel.NewEngine(st, rng),
		Slide: slide.NewEngine(st, rng, pub, slide.Config{
			LivePayout: cfg.SlideLivePayout,
			AutoPayout: cfg.SlideAutoPayout,
			RoundTTL:   cfg.SlideRoundTTL,
		}),
		Referrals: referral.NewService(st, rng, cfg.FrontendURL),
		Auth:      httpapi.NewAuthenticator(cfg.JWTSecret),
		WS:        hub.HandleWS,
	})
	scheduler := lottery.NewScheduler(lotteries, cfg.SchedulerSpec, cfg.AutoDraw)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		slog.Info("rewards-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down rewards-engine...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("rewards-engine stopped")
	return nil
}
