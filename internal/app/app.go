// Package app wires the prediction service together: configuration, storage,
// cache, upstream providers, the scoring engine, and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/safeascent/safeascent/internal/accidents"
	"github.com/safeascent/safeascent/internal/cache"
	"github.com/safeascent/safeascent/internal/controllers/restserver"
	"github.com/safeascent/safeascent/internal/database"
	"github.com/safeascent/safeascent/internal/elevation"
	"github.com/safeascent/safeascent/internal/kernels"
	"github.com/safeascent/safeascent/internal/log"
	"github.com/safeascent/safeascent/internal/metrics"
	"github.com/safeascent/safeascent/internal/prediction"
	"github.com/safeascent/safeascent/internal/weather"
	"github.com/safeascent/safeascent/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfgData, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	params, err := cfgData.Params()
	if err != nil {
		return err
	}

	matrixJSON, err := cfgData.RouteMatrixJSON()
	if err != nil {
		return err
	}
	matrix, err := kernels.ParseRouteMatrix(matrixJSON)
	if err != nil {
		return err
	}
	set := kernels.New(params, matrix)

	requestTimeout, err := cfgData.RequestTimeout()
	if err != nil {
		return err
	}

	m := metrics.New()

	dbClient := database.NewClient(&cfgData.Storage, a.logger.Named("database"))
	if err := dbClient.Connect(); err != nil {
		return fmt.Errorf("could not connect to accident database: %w", err)
	}
	defer dbClient.Close()
	store := accidents.NewStore(dbClient, a.logger.Named("accidents"))

	cacheClient := cache.New(cfgData.Cache.Redis, a.logger.Named("cache"), m)
	defer cacheClient.Close()

	fetcher := weather.NewFetcher(cfgData.Providers.Weather, cacheClient, a.logger.Named("weather"), m)
	elevations := elevation.NewResolver(cfgData.Providers.Elevation, a.logger.Named("elevation"), m)

	engine := prediction.NewEngine(store, fetcher, elevations, cacheClient, set, m,
		a.logger.Named("prediction"), cfgData.Cache.PredictionsEnabled)

	restController, err := restserver.NewController(ctx, &wg, cfgData.Server,
		engine, cacheClient, dbClient, m, requestTimeout, a.logger.Named("restserver"))
	if err != nil {
		return err
	}
	if err := restController.StartController(); err != nil {
		return err
	}

	log.Infof("Application started successfully (aggregator: %s)", engine.Aggregator())

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
