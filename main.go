package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/merchtrax/internal/alarm"
	"github.com/msomdec/merchtrax/internal/config"
	"github.com/msomdec/merchtrax/internal/handler"
	"github.com/msomdec/merchtrax/internal/repository/sqlite"
	"github.com/msomdec/merchtrax/internal/service"
	"github.com/msomdec/merchtrax/internal/timer"
)

func main() {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Notifications left over from a previous run are re-armed; overdue ones
	// are delivered right away.
	hub := alarm.NewHub()
	scheduler := alarm.NewScheduler(sqlite.NewAlarmRepository(db), hub, nil)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("failed to start alarm scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Close()

	var planner *alarm.Planner
	switch cfg.AlarmStrategy {
	case config.AlarmStrategySingle:
		planner = alarm.Single(scheduler, cfg.AlarmMinLead)
	default:
		planner = alarm.Burst(scheduler, cfg.AlarmBurstCount, cfg.AlarmBurstSpacing, cfg.AlarmMinLead)
	}

	engine := timer.New(sqlite.NewTimerStore(db), planner,
		timer.WithTickInterval(cfg.TimerTickInterval),
		timer.WithPersistPaused(cfg.TimerPersistPaused),
		timer.WithLogger(logger.With("component", "timer")),
	)

	authService := service.NewAuthService(sqlite.NewUserRepository(db), cfg.JWTSecret, cfg.BcryptCost)
	visitService := service.NewVisitService(sqlite.NewVisitRepository(db))
	timerHost := service.NewTimerHost(engine, visitService)

	loginLimiter := service.NewTokenBucket(cfg.LoginRate, float64(cfg.LoginBurst), nil)
	go loginLimiter.Run(ctx, time.Minute, 10*time.Minute)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:         authService,
		Visits:       visitService,
		Timer:        timerHost,
		Alarms:       hub,
		LoginLimiter: loginLimiter,
		DB:           db,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	// The timer stream is long-lived; cancel it when shutting down.
	srv.BaseContext = func(_ net.Listener) context.Context { return ctx }

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "alarm_strategy", cfg.AlarmStrategy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
