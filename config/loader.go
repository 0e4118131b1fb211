package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kwatlas/kwcache/types"
)

const envPrefix = "KWCACHE_"

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load reads the YAML config file, layers KWCACHE_* environment overrides on
// top, and validates the result. Invalid configuration is fatal at startup.
func (l *Loader) Load(configPath string) (*types.Config, error) {
	config := Defaults()

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, types.Errorf(types.ErrConfigNotFound, "file: %s", configPath)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, types.WrapError(err, "failed to read config file")
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
		}
	}

	l.applyEnvOverrides(config)

	if err := l.validator.Struct(config); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return config, nil
}

func Defaults() *types.Config {
	return &types.Config{
		Name:    "kwcache",
		Version: "1.0.0",
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Redis: &types.RedisConfig{
			Host:               "localhost",
			Port:               6379,
			DB:                 0,
			PoolSize:           10,
			MinIdleConnections: 2,
			DialTimeout:        5 * time.Second,
			ReadTimeout:        3 * time.Second,
			WriteTimeout:       3 * time.Second,
		},
		Cache: &types.CacheConfig{
			Enabled:              true,
			KeyPrefix:            "kwcache",
			MaxKeyLength:         250,
			DefaultTTL:           time.Hour,
			OperationTimeout:     3 * time.Second,
			CompressionEnabled:   true,
			CompressionThreshold: 1024,
			FallbackTTL:          5 * time.Minute,
			FallbackCleanup:      time.Minute,
		},
		Warming: &types.WarmingConfig{
			Enabled:        false,
			Interval:       6 * time.Hour,
			MaxTime:        10 * time.Minute,
			MaxCostDollars: 5,
		},
		Monitoring: &types.MonitoringConfig{
			Enabled:        true,
			SampleInterval: 60 * time.Second,
			MetricHistory:  1440,
			AlertHistory:   500,
		},
	}
}

func (l *Loader) applyEnvOverrides(config *types.Config) {
	if v, ok := lookupEnv("REDIS_HOST"); ok {
		config.Redis.Host = v
	}
	if v, ok := lookupEnvInt("REDIS_PORT"); ok {
		config.Redis.Port = v
	}
	if v, ok := lookupEnv("REDIS_PASSWORD"); ok {
		config.Redis.Password = v
	}
	if v, ok := lookupEnvInt("REDIS_DB"); ok {
		config.Redis.DB = v
	}
	if v, ok := lookupEnv("REDIS_CLUSTER_NODES"); ok {
		config.Redis.ClusterNodes = splitNonEmpty(v)
	}
	if v, ok := lookupEnv("KEY_PREFIX"); ok {
		config.Cache.KeyPrefix = v
	}
	if v, ok := lookupEnvDuration("DEFAULT_TTL"); ok {
		config.Cache.DefaultTTL = v
	}
	if v, ok := lookupEnvBool("COMPRESSION_ENABLED"); ok {
		config.Cache.CompressionEnabled = v
	}
	if v, ok := lookupEnvInt("COMPRESSION_THRESHOLD"); ok {
		config.Cache.CompressionThreshold = v
	}
	if v, ok := lookupEnvInt("MAX_KEY_LENGTH"); ok {
		config.Cache.MaxKeyLength = v
	}
	if v, ok := lookupEnvBool("MONITORING_ENABLED"); ok {
		config.Monitoring.Enabled = v
	}
	if v, ok := lookupEnvDuration("MONITORING_INTERVAL"); ok {
		config.Monitoring.SampleInterval = v
	}
	if v, ok := lookupEnvBool("WARMING_ENABLED"); ok {
		config.Warming.Enabled = v
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func lookupEnvInt(name string) (int, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvBool(name string) (bool, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupEnvDuration(name string) (time.Duration, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
