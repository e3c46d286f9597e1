package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Interview/internal/adapters/http"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	sessions, err := store.GetStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session store")
	}
	defer sessions.Close()

	clock := clockwork.NewRealClock()
	var o *orch.Orchestrator
	rooms := core.NewRoomManager(ctx, clock, core.RoomConfig{
		TickInterval:  cfg.Rooms.TickInterval,
		EmptyGrace:    cfg.Rooms.EmptyGrace,
		TeardownGrace: cfg.Rooms.TeardownGrace,
	},
		core.WithExpiredHook(func(id domain.RoomID, at time.Time) { o.OnRoomExpired(id, at) }),
		core.WithDropHook(func(r *core.Room, res core.PublishResult) { o.ApplyPolicy(r, res) }),
	)
	o = &orch.Orchestrator{
		Registry:        app.NewRegistry(),
		Rooms:           rooms,
		Policy:          app.PolicyFor(cfg.WS.Backpressure),
		Sessions:        sessions,
		DefaultDuration: cfg.Timer.DefaultDuration,
		MaxDuration:     cfg.Timer.MaxDuration,
	}

	limiter := app.NewRateLimiter(clock, cfg.RateLimit.Limit, cfg.RateLimit.Interval)
	go pruneLimiter(ctx, limiter, cfg.RateLimit.Interval)

	r := router.SetupRouter(ctx, cfg, o, limiter)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Interview server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	n := o.Registry.CancelAll()
	rooms.Shutdown()
	log.Info().Int("connections", n).Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = newLogger(cfg.Mode, os.Stderr)
}

// newLogger writes human readable lines in debug mode and JSON otherwise.
func newLogger(mode string, w io.Writer) zerolog.Logger {
	if mode == "debug" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func pruneLimiter(ctx context.Context, rl *app.RateLimiter, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := rl.Prune(); n > 0 {
				log.Debug().Str("module", "app.ratelimit").Int("pruned", n).Msg("rate limiter pruned")
			}
		}
	}
}
