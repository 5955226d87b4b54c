package config

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	server, err := s.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	config.Server = *server

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	cache, err := s.GetCacheConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load cache config: %w", err)
	}
	config.Cache = *cache

	providers, err := s.GetProviderConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load provider config: %w", err)
	}
	config.Providers = *providers

	prediction, err := s.GetPredictionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction config: %w", err)
	}
	config.Prediction = *prediction

	return config, nil
}

// GetServerConfig returns the server configuration from the database
func (s *SQLiteProvider) GetServerConfig() (*ServerData, error) {
	query := `
		SELECT listen_addr, http_port, tls_cert_path, tls_key_path, request_timeout
		FROM server_config
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var server ServerData
	var listenAddr, tlsCertPath, tlsKeyPath, requestTimeout sql.NullString
	var httpPort sql.NullInt64

	err := s.db.QueryRow(query).Scan(&listenAddr, &httpPort, &tlsCertPath, &tlsKeyPath, &requestTimeout)
	if err != nil {
		if err == sql.ErrNoRows {
			return &server, nil
		}
		return nil, fmt.Errorf("failed to query server config: %w", err)
	}

	if listenAddr.Valid {
		server.ListenAddr = listenAddr.String
	}
	if httpPort.Valid {
		server.HTTPPort = int(httpPort.Int64)
	}
	if tlsCertPath.Valid {
		server.TLSCertPath = tlsCertPath.String
	}
	if tlsKeyPath.Valid {
		server.TLSKeyPath = tlsKeyPath.String
	}
	if requestTimeout.Valid {
		server.RequestTimeout = requestTimeout.String
	}

	return &server, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT timescale_connection_string
		FROM storage_config
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var storage StorageData
	var connString sql.NullString

	err := s.db.QueryRow(query).Scan(&connString)
	if err != nil {
		if err == sql.ErrNoRows {
			return &storage, nil
		}
		return nil, fmt.Errorf("failed to query storage config: %w", err)
	}

	if connString.Valid && connString.String != "" {
		storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: connString.String,
		}
	}

	return &storage, nil
}

// GetCacheConfig returns the cache configuration from the database
func (s *SQLiteProvider) GetCacheConfig() (*CacheData, error) {
	query := `
		SELECT redis_addr, redis_password, redis_db, predictions_enabled
		FROM cache_config
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var cache CacheData
	var redisAddr, redisPassword sql.NullString
	var redisDB sql.NullInt64
	var predictionsEnabled sql.NullBool

	err := s.db.QueryRow(query).Scan(&redisAddr, &redisPassword, &redisDB, &predictionsEnabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return &cache, nil
		}
		return nil, fmt.Errorf("failed to query cache config: %w", err)
	}

	if redisAddr.Valid && redisAddr.String != "" {
		cache.Redis = &RedisData{
			Addr: redisAddr.String,
		}
		if redisPassword.Valid {
			cache.Redis.Password = redisPassword.String
		}
		if redisDB.Valid {
			cache.Redis.DB = int(redisDB.Int64)
		}
	}
	if predictionsEnabled.Valid {
		cache.PredictionsEnabled = predictionsEnabled.Bool
	}

	return &cache, nil
}

// GetProviderConfig returns the upstream provider configuration from the database
func (s *SQLiteProvider) GetProviderConfig() (*ProvidersData, error) {
	query := `
		SELECT weather_base_url, weather_archive_url, elevation_base_url
		FROM provider_config
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var providers ProvidersData
	var weatherBase, weatherArchive, elevationBase sql.NullString

	err := s.db.QueryRow(query).Scan(&weatherBase, &weatherArchive, &elevationBase)
	if err != nil {
		if err == sql.ErrNoRows {
			return &providers, nil
		}
		return nil, fmt.Errorf("failed to query provider config: %w", err)
	}

	if weatherBase.Valid {
		providers.Weather.BaseURL = weatherBase.String
	}
	if weatherArchive.Valid {
		providers.Weather.ArchiveURL = weatherArchive.String
	}
	if elevationBase.Valid {
		providers.Elevation.BaseURL = elevationBase.String
	}

	return &providers, nil
}

// GetPredictionConfig returns the scoring configuration from the database
func (s *SQLiteProvider) GetPredictionConfig() (*PredictionData, error) {
	query := `
		SELECT vectorized, normalization_k, seasonal_boost, max_contributors, matrix_path
		FROM prediction_config
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var prediction PredictionData
	var vectorized sql.NullBool
	var normalizationK, seasonalBoost sql.NullFloat64
	var maxContributors sql.NullInt64
	var matrixPath sql.NullString

	err := s.db.QueryRow(query).Scan(&vectorized, &normalizationK, &seasonalBoost, &maxContributors, &matrixPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return &prediction, nil
		}
		return nil, fmt.Errorf("failed to query prediction config: %w", err)
	}

	if vectorized.Valid {
		v := vectorized.Bool
		prediction.Vectorized = &v
	}
	if normalizationK.Valid {
		prediction.NormalizationK = normalizationK.Float64
	}
	if seasonalBoost.Valid {
		prediction.SeasonalBoost = seasonalBoost.Float64
	}
	if maxContributors.Valid {
		prediction.MaxContributors = int(maxContributors.Int64)
	}
	if matrixPath.Valid {
		prediction.MatrixPath = matrixPath.String
	}

	return &prediction, nil
}

// IsReadOnly returns false since SQLite configuration can be updated in place
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
