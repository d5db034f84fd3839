package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"
	"lanepilot/internal/repository/sqlite"
	"lanepilot/internal/route"
	"lanepilot/internal/service/camera"
	"lanepilot/internal/service/journal"
	"lanepilot/internal/service/lane"
	"lanepilot/internal/service/pilot"
	routemgr "lanepilot/internal/service/route"
	"lanepilot/internal/service/segmentation"
	"lanepilot/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	events   *sqlite.EventRepository
	runs     *sqlite.RunRepository
	journal  *journal.Service
	hub      *websocket.HubService
	follower *lane.Follower
	worker   *segmentation.Worker
	source   *camera.Source
	pilot    *pilot.Pilot
}

// NewApp loads the configuration and builds every component of the drive
// loop and the operator console.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	events := sqlite.NewEventRepository(db)
	runs := sqlite.NewRunRepository(db)

	router, err := routemgr.NewManager(cfg, log, nil)
	if err != nil {
		db.Close()
		log.Close()
		return nil, fmt.Errorf("failed to create route manager: %w", err)
	}

	source, err := camera.Open(cfg, log)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	jrn := journal.NewService(cfg, log, events, runs, nil)
	if err := jrn.Begin(cfg.DriveMode); err != nil {
		source.Close()
		db.Close()
		log.Close()
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	hub := websocket.NewHubService(log)
	follower := lane.NewFollower(cfg, log)
	worker := segmentation.NewWorker(cfg, log)
	plt := pilot.New(cfg, log, follower, router, worker, jrn, hub, pilot.NewLogActuator(log, time.Second))

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		events:   events,
		runs:     runs,
		journal:  jrn,
		hub:      hub,
		follower: follower,
		worker:   worker,
		source:   source,
		pilot:    plt,
	}, nil
}

// Run starts the background services and the console server and blocks
// until SIGINT/SIGTERM or a server failure.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.hub.Run(ctx)
	a.journal.Start(ctx)
	a.worker.Start(ctx)

	var loop sync.WaitGroup
	loop.Add(1)
	go func() {
		defer loop.Done()
		a.pilot.Run(ctx, a.source)
	}()

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", a.config.Port),
		Handler: route.SetupRoutes(route.Deps{
			Config: a.config,
			Logger: a.logger,
			Hub:    a.hub,
			Pilot:  a.pilot,
			Events: a.events,
			Runs:   a.runs,
			RunID:  a.journal.RunID(),
		}),
	}

	a.logger.Info("🚗 Lane pilot %s", a.journal.RunID())
	a.logger.Info("📍 Console: http://localhost:%d", a.config.Port)
	a.logger.Info("🧭 Mode: %s, plan: %v", a.config.DriveMode, a.config.RoutePlan)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case s := <-sig:
		a.logger.Info("Received %s, shutting down", s)
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("console server failed: %w", err)
		}
	}

	cancel()
	loop.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("Console shutdown: %v", err)
	}

	a.close()
	return runErr
}

// close releases resources in reverse start order.
func (a *App) close() {
	a.worker.Stop()
	if err := a.journal.Stop(a.pilot.Ticks()); err != nil {
		a.logger.Error("Error closing journal: %v", err)
	}
	if err := a.source.Close(); err != nil {
		a.logger.Warning("Error closing camera: %v", err)
	}
	a.follower.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Error closing database: %v", err)
	}
	a.logger.Close()
}
