package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jlancaster7/allocator-go/internal/config"
	"github.com/jlancaster7/allocator-go/internal/modules/allocation"
	"github.com/jlancaster7/allocator-go/internal/scheduler"
	"github.com/jlancaster7/allocator-go/internal/server"
	"github.com/jlancaster7/allocator-go/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting allocation engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	history, err := allocation.NewHistoryRepository(cfg.HistoryDBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open allocation history store")
	}
	defer history.Close()

	handler := allocation.NewHandler(history, cfg.DevMode, log)

	sched := scheduler.New(log)
	if cfg.SchedulerIntervalMinutes > 0 {
		// The re-evaluation job needs a PendingOrderStore and
		// AccountSnapshotProvider backed by a durable order queue; this
		// service only exposes a synchronous /allocate endpoint today, so
		// no job is registered yet. The scheduler still starts so one can
		// be added (AddJob) once that queue exists.
		log.Warn().Msg("SCHEDULER_INTERVAL_MINUTES set but no pending-order store is wired; no jobs registered")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:               log,
		Config:            cfg,
		Port:              cfg.Port,
		DevMode:           cfg.DevMode,
		AllocationHandler: handler,
		Scheduler:         sched,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("allocation engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down allocation engine")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("allocation engine stopped")
}
