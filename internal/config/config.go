// Package config loads process configuration from the environment, with an
// optional yaml overlay for deployments that prefer files.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs at startup.
type Config struct {
	DatabaseURL     string   `yaml:"database_url"`
	HTTPAddr        string   `yaml:"http_addr"`
	IngestBatchSize int      `yaml:"ingest_batch_size"`
	ConflictPolicy  string   `yaml:"conflict_policy"`
	WeatherCacheTTL Duration `yaml:"weather_cache_ttl"`
	CacheDir        string   `yaml:"cache_dir"`
	QueryLimit      int      `yaml:"query_limit"`
}

// Duration decodes yaml duration literals like "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads configuration from the environment, then applies the yaml file
// named by SOLAR_CONFIG when present. File values win over env values.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8090"),
		IngestBatchSize: getenvIntDefault("INGEST_BATCH_SIZE", 1000),
		ConflictPolicy:  getenvDefault("INGEST_CONFLICT_POLICY", "skip"),
		WeatherCacheTTL: Duration(getenvDurationDefault("WEATHER_CACHE_TTL", 15*time.Minute)),
		CacheDir:        getenvDefault("CACHE_DIR", "var/cache/weather"),
		QueryLimit:      getenvIntDefault("QUERY_LIMIT", 10000),
	}

	if path := os.Getenv("SOLAR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL required")
	}
	if cfg.IngestBatchSize <= 0 {
		return cfg, errors.New("config: ingest batch size must be positive")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
