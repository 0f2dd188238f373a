package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"agentdesk/internal/config"
	"agentdesk/internal/database"
	"agentdesk/internal/event"
	"agentdesk/internal/handler"
	"agentdesk/internal/metrics"
	"agentdesk/internal/middleware"
	"agentdesk/internal/model"
	"agentdesk/internal/platform"
	"agentdesk/internal/repository"
	"agentdesk/internal/router"
	"agentdesk/internal/service"
	"agentdesk/internal/undo"
	"agentdesk/internal/websocket"
)

type deletionJournal interface {
	undo.Journal
	Query(ctx context.Context, q model.DeletionQuery) ([]model.DeletionEntry, model.Meta, error)
}

type App struct {
	server       *http.Server
	desk         *service.DeskService
	pollInterval time.Duration
	// run in order after the HTTP server stopped
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	var (
		db      *database.DB
		journal deletionJournal
		health  router.HealthFunc
	)
	if cfg.DatabaseURL != "" {
		slog.Info("connecting to PostgreSQL")
		var err error
		db, err = database.Open(context.Background(), database.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		journal = repository.NewDeletionRepository(db.Pool)
		health = db.Health
		slog.Info("database ready")
	} else {
		slog.Warn("DATABASE_URL not set; deletion journal is kept in memory")
		journal = repository.NewMemoryDeletionRepository()
	}
	closeDB := db.Close

	authService, err := service.NewAuthService(cfg.OperatorsFile, cfg.JWTSecret, cfg.JWTAccessTTL)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	deskMetrics := metrics.New(bus)
	metricEvents, unsubscribeMetrics := bus.Subscribe()
	go deskMetrics.Consume(hubCtx, metricEvents)

	desk, err := service.NewDeskService(platform.New(cfg.PlatformBaseURL, cfg.PlatformToken, cfg.PlatformTimeout), service.DeskOptions{
		Resources:     cfg.Resources,
		Window:        cfg.UndoWindow,
		Tick:          cfg.UndoTick,
		RemoteTimeout: cfg.PlatformTimeout,
		Collation:     language.Make(cfg.NameCollation),
		Journal:       journal,
		Bus:           bus,
	})
	if err != nil {
		unsubscribeMetrics()
		hubCancel()
		closeDB()
		return nil, fmt.Errorf("failed to initialize desk service: %w", err)
	}

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Desk:      handler.NewDeskHandler(desk),
		Deletions: handler.NewDeletionHandler(journal),
		Metrics:   deskMetrics,
	}, hub, health)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		desk:         desk,
		pollInterval: cfg.PollInterval,
		cleanupFuncs: []func(){
			// restores anything still pending before the journal goes away
			desk.Close,
			unsubscribeMetrics,
			hubCancel,
			closeDB,
		},
	}, nil
}

func (a *App) Run() error {
	pollCtx, pollCancel := context.WithCancel(context.Background())
	a.desk.StartPolling(pollCtx, a.pollInterval)

	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	pollCancel()
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
