// Package restserver exposes the prediction engine over HTTP: the predict
// endpoint, liveness and status, and the metrics scrape target.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/safeascent/safeascent/internal/cache"
	"github.com/safeascent/safeascent/internal/log"
	"github.com/safeascent/safeascent/internal/metrics"
	"github.com/safeascent/safeascent/pkg/config"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData,
	engine Predictor, c *cache.Cache, db Pinger, m *metrics.Metrics,
	requestTimeout time.Duration, logger *zap.SugaredLogger) (*Controller, error) {

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		logger:       logger,
	}

	// If a listen address was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if sc.HTTPPort == 0 {
		logger.Info("server.http_port not provided; defaulting to 8080")
		sc.HTTPPort = 8080
	}

	ctrl.handlers = NewHandlers(engine, c, db, requestTimeout, logger)

	router := ctrl.setupRouter(m)
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.HTTPPort)
	ctrl.Server.Handler = router
	ctrl.Server.ReadHeaderTimeout = 5 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.TLSCertPath != "" && c.serverConfig.TLSKeyPath != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.TLSCertPath, c.serverConfig.TLSKeyPath); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter(m *metrics.Metrics) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(c.logger))

	router.HandleFunc("/api/v1/predict", c.handlers.Predict).Methods(http.MethodPost)
	router.HandleFunc("/api/status", c.handlers.Status).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet)

	if m != nil {
		router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	return router
}
