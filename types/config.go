package types

import (
	"time"
)

type Config struct {
	Name       string            `yaml:"name" json:"name" validate:"required"`
	Version    string            `yaml:"version" json:"version"`
	Logger     *LoggerConfig     `yaml:"logger" json:"logger"`
	Redis      *RedisConfig      `yaml:"redis" json:"redis"`
	Cache      *CacheConfig      `yaml:"cache" json:"cache"`
	Warming    *WarmingConfig    `yaml:"warming" json:"warming"`
	Monitoring *MonitoringConfig `yaml:"monitoring" json:"monitoring"`
}

type LoggerConfig struct {
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type RedisConfig struct {
	Host               string        `yaml:"host" json:"host"`
	Port               int           `yaml:"port" json:"port" validate:"min=0,max=65535"`
	Password           string        `yaml:"password" json:"password"`
	DB                 int           `yaml:"db" json:"db"`
	ClusterNodes       []string      `yaml:"cluster_nodes" json:"cluster_nodes"`
	PoolSize           int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConnections int           `yaml:"min_idle_connections" json:"min_idle_connections"`
	DialTimeout        time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

type CacheConfig struct {
	Enabled              bool          `yaml:"enabled" json:"enabled"`
	KeyPrefix            string        `yaml:"key_prefix" json:"key_prefix"`
	MaxKeyLength         int           `yaml:"max_key_length" json:"max_key_length" validate:"min=0"`
	DefaultTTL           time.Duration `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	OperationTimeout     time.Duration `yaml:"operation_timeout" json:"operation_timeout"`
	CompressionEnabled   bool          `yaml:"compression_enabled" json:"compression_enabled"`
	CompressionThreshold int           `yaml:"compression_threshold" json:"compression_threshold" validate:"min=0"`
	FallbackTTL          time.Duration `yaml:"fallback_ttl" json:"fallback_ttl"`
	FallbackCleanup      time.Duration `yaml:"fallback_cleanup" json:"fallback_cleanup"`
}

type WarmingConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Interval       time.Duration `yaml:"interval" json:"interval"`
	MaxTime        time.Duration `yaml:"max_time" json:"max_time"`
	MaxCostDollars float64       `yaml:"max_cost_dollars" json:"max_cost_dollars" validate:"min=0"`
}

type MonitoringConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`
	MetricHistory  int           `yaml:"metric_history" json:"metric_history" validate:"min=0"`
	AlertHistory   int           `yaml:"alert_history" json:"alert_history" validate:"min=0"`
}
