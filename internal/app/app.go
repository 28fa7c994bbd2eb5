package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "swapgrid/libs/db"
	libredis "swapgrid/libs/redis"

	"swapgrid/internal/alerts"
	"swapgrid/internal/config"
	"swapgrid/internal/fleet"
	httpserver "swapgrid/internal/http"
	"swapgrid/internal/http/handlers"
	"swapgrid/internal/http/middleware"
	"swapgrid/internal/redisstore"
	"swapgrid/internal/repository"
)

// App wires fleet-engine dependencies.
type App struct {
	server      *httpserver.Server
	coordinator *fleet.Coordinator
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph: storage, engine, HTTP surface.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := libredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	fleetRepo := repository.NewFleetRepository(sqlDB)
	records, err := fleetRepo.LoadStations(context.Background())
	if err != nil {
		sqlDB.Close()
		redisClient.Close()
		return nil, err
	}
	logger.Info("fleet loaded", zap.Int("stations", len(records)))

	registry := alerts.NewRegistry(cfg.Engine.SubscriberQueueDepth, logger)
	snapshotStore := redisstore.NewSnapshotStore(redisClient, cfg.SnapshotTTL())

	coordinator, err := fleet.New(fleet.Config{
		Alerts: alerts.Config{
			LowAvailabilityThreshold:    cfg.Engine.LowAvailabilityThreshold,
			LowAvailabilityHysteresis:   cfg.Engine.LowAvailabilityHysteresis,
			MaintenanceBacklogThreshold: cfg.Engine.MaintenanceBacklogThreshold,
			MaintenanceGracePeriod:      cfg.MaintenanceGracePeriod(),
			LivenessWindow:              cfg.LivenessWindow(),
		},
		ReservationTimeout: cfg.ReservationTimeout(),
	}, records, registry, snapshotStore, logger)
	if err != nil {
		sqlDB.Close()
		redisClient.Close()
		return nil, err
	}

	swapHandler := handlers.NewSwapHandler(coordinator, logger)
	stationsHandler := handlers.NewStationsHandler(coordinator)
	streamHandler := handlers.NewAlertStreamHandler(coordinator, logger)

	routes := httpserver.Routes{
		Reserve:             swapHandler.HandleReserve,
		ConfirmWithdrawal:   swapHandler.HandleConfirm,
		ReturnBattery:       swapHandler.HandleReturn,
		ChargeComplete:      swapHandler.HandleChargeComplete,
		CancelReservation:   swapHandler.HandleCancel,
		FlagMaintenance:     swapHandler.HandleFlagMaintenance,
		CompleteMaintenance: swapHandler.HandleCompleteMaintenance,
		Snapshot:            stationsHandler.HandleSnapshot,
		Rollup:              stationsHandler.HandleRollup,
		ActiveAlerts:        stationsHandler.HandleActiveAlerts,
		Search:              stationsHandler.HandleSearch,
		AlertStream:         streamHandler.HandleStream,
		Health:              handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes, middleware.AuthMiddleware(cfg.Auth.Secret))
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		coordinator: coordinator,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the background loops and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	go a.coordinator.RunReservationSweeper(ctx, 0)
	go a.coordinator.RunLivenessCheck(ctx, 0)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
