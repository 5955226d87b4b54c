package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Server     ServerYAML     `yaml:"server,omitempty"`
		Storage    StorageYAML    `yaml:"storage,omitempty"`
		Cache      CacheYAML      `yaml:"cache,omitempty"`
		Providers  ProvidersYAML  `yaml:"providers,omitempty"`
		Prediction PredictionYAML `yaml:"prediction,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Server: ServerData{
			ListenAddr:     yamlConfig.Server.ListenAddr,
			HTTPPort:       yamlConfig.Server.HTTPPort,
			TLSCertPath:    yamlConfig.Server.TLSCertPath,
			TLSKeyPath:     yamlConfig.Server.TLSKeyPath,
			RequestTimeout: yamlConfig.Server.RequestTimeout,
		},
	}

	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}

	if yamlConfig.Cache.Redis != nil {
		config.Cache.Redis = &RedisData{
			Addr:     yamlConfig.Cache.Redis.Addr,
			Password: yamlConfig.Cache.Redis.Password,
			DB:       yamlConfig.Cache.Redis.DB,
		}
	}
	config.Cache.PredictionsEnabled = yamlConfig.Cache.PredictionsEnabled

	config.Providers = ProvidersData{
		Weather: WeatherProviderData{
			BaseURL:    yamlConfig.Providers.Weather.BaseURL,
			ArchiveURL: yamlConfig.Providers.Weather.ArchiveURL,
		},
		Elevation: ElevationProviderData{
			BaseURL: yamlConfig.Providers.Elevation.BaseURL,
		},
	}

	config.Prediction = PredictionData{
		Vectorized:      yamlConfig.Prediction.Vectorized,
		NormalizationK:  yamlConfig.Prediction.NormalizationK,
		SeasonalBoost:   yamlConfig.Prediction.SeasonalBoost,
		MaxContributors: yamlConfig.Prediction.MaxContributors,
		MatrixPath:      yamlConfig.Prediction.MatrixPath,
	}

	y.config = config
	return config, nil
}

// GetServerConfig returns the server configuration
func (y *YAMLProvider) GetServerConfig() (*ServerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Server, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetCacheConfig returns the cache configuration
func (y *YAMLProvider) GetCacheConfig() (*CacheData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Cache, nil
}

// GetProviderConfig returns the upstream provider configuration
func (y *YAMLProvider) GetProviderConfig() (*ProvidersData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Providers, nil
}

// GetPredictionConfig returns the scoring configuration
func (y *YAMLProvider) GetPredictionConfig() (*PredictionData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Prediction, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the on-disk format
type ServerYAML struct {
	ListenAddr     string `yaml:"listen-addr,omitempty"`
	HTTPPort       int    `yaml:"http-port,omitempty"`
	TLSCertPath    string `yaml:"tls-cert,omitempty"`
	TLSKeyPath     string `yaml:"tls-key,omitempty"`
	RequestTimeout string `yaml:"request-timeout,omitempty"`
}

type StorageYAML struct {
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type CacheYAML struct {
	Redis              *RedisYAML `yaml:"redis,omitempty"`
	PredictionsEnabled bool       `yaml:"predictions-enabled,omitempty"`
}

type RedisYAML struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type ProvidersYAML struct {
	Weather   WeatherProviderYAML   `yaml:"weather,omitempty"`
	Elevation ElevationProviderYAML `yaml:"elevation,omitempty"`
}

type WeatherProviderYAML struct {
	BaseURL    string `yaml:"base-url,omitempty"`
	ArchiveURL string `yaml:"archive-url,omitempty"`
}

type ElevationProviderYAML struct {
	BaseURL string `yaml:"base-url,omitempty"`
}

type PredictionYAML struct {
	Vectorized      *bool   `yaml:"vectorized,omitempty"`
	NormalizationK  float64 `yaml:"normalization-k,omitempty"`
	SeasonalBoost   float64 `yaml:"seasonal-boost,omitempty"`
	MaxContributors int     `yaml:"max-contributors,omitempty"`
	MatrixPath      string  `yaml:"matrix-path,omitempty"`
}
