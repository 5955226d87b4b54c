// Package database manages the GORM connection to the accident store.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/safeascent/safeascent/internal/log"
	"github.com/safeascent/safeascent/pkg/config"
	"go.uber.org/zap"
)

// Client holds the connection to the accident database
type Client struct {
	config *config.StorageData
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(c *config.StorageData, logger *zap.SugaredLogger) *Client {
	return &Client{
		config: c,
		logger: logger,
	}
}

// Connect connects to the accident database
func (c *Client) Connect() error {
	if c.config == nil || c.config.TimescaleDB == nil || c.config.TimescaleDB.ConnectionString == "" {
		return fmt.Errorf("no storage.timescaledb connection string configured")
	}

	db, err := CreateConnection(c.config.TimescaleDB.ConnectionString)
	if err != nil {
		return err
	}
	c.DB = db

	log.Info("accident database connection successful")
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the connection is still usable; the status endpoint calls it.
func (c *Client) Ping() error {
	if c.DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to accident database...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a database connection:", err)
		return nil, err
	}

	return db, nil
}

// NewClientFromGorm wraps an existing GORM handle; tests use it with sqlmock.
func NewClientFromGorm(db *gorm.DB, logger *zap.SugaredLogger) *Client {
	return &Client{DB: db, logger: logger}
}
