package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetServerConfig() (*ServerData, error)
	GetStorageConfig() (*StorageData, error)
	GetCacheConfig() (*CacheData, error)
	GetProviderConfig() (*ProvidersData, error)
	GetPredictionConfig() (*PredictionData, error)

	// Configuration management (SQLite supports writes, YAML does not)
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server     ServerData     `json:"server"`
	Storage    StorageData    `json:"storage,omitempty"`
	Cache      CacheData      `json:"cache,omitempty"`
	Providers  ProvidersData  `json:"providers,omitempty"`
	Prediction PredictionData `json:"prediction,omitempty"`
}

// ServerData holds the HTTP server configuration
type ServerData struct {
	ListenAddr     string `json:"listen_addr,omitempty"`
	HTTPPort       int    `json:"http_port,omitempty"`
	TLSCertPath    string `json:"tls_cert,omitempty"`
	TLSKeyPath     string `json:"tls_key,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// StorageData holds the configuration for the accident database
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// CacheData holds the configuration for the shared key-value cache
type CacheData struct {
	Redis              *RedisData `json:"redis,omitempty"`
	PredictionsEnabled bool       `json:"predictions_enabled,omitempty"`
}

type RedisData struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// ProvidersData holds the upstream provider endpoints
type ProvidersData struct {
	Weather   WeatherProviderData   `json:"weather,omitempty"`
	Elevation ElevationProviderData `json:"elevation,omitempty"`
}

type WeatherProviderData struct {
	BaseURL    string `json:"base_url,omitempty"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

type ElevationProviderData struct {
	BaseURL string `json:"base_url,omitempty"`
}

// PredictionData holds the tunable knobs of the scoring core. Zero values
// mean "use the default"; the full parameter set with defaults applied is
// materialized by ConfigData.Params.
type PredictionData struct {
	Vectorized      *bool   `json:"vectorized,omitempty"`
	NormalizationK  float64 `json:"normalization_k,omitempty"`
	SeasonalBoost   float64 `json:"seasonal_boost,omitempty"`
	MaxContributors int     `json:"max_contributors,omitempty"`
	MatrixPath      string  `json:"matrix_path,omitempty"`
}
