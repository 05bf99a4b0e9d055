package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	S3        S3Config        `mapstructure:"s3"`
	Overrides OverridesConfig `mapstructure:"overrides"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	External  ExternalConfig  `mapstructure:"external"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// InputConfig locates upstream case documents
type InputConfig struct {
	Source      string `mapstructure:"source"` // "fs" or "s3"
	Schema      string `mapstructure:"schema"` // "bulk" or "lab"
	CaseDir     string `mapstructure:"case_dir"`
	CasesKind   string `mapstructure:"cases_kind"`
	EntriesKind string `mapstructure:"entries_kind"`
	OverrideDir string `mapstructure:"override_dir"`
}

// S3Config represents object storage configuration for the s3 input source
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	PathStyle bool   `mapstructure:"path_style"`
}

// OverridesConfig represents override store configuration
type OverridesConfig struct {
	Driver     string `mapstructure:"driver"` // "json" or "sqlite"
	Path       string `mapstructure:"path"`
	MinVersion int    `mapstructure:"min_version"`
}

// ResolverConfig represents variant resolver configuration
type ResolverConfig struct {
	EnableRSLookup bool `mapstructure:"enable_rs_lookup"`
}

// QualityConfig represents quality gate configuration
type QualityConfig struct {
	ConvertFailed bool `mapstructure:"convert_failed"`
	ExcludeBenign bool `mapstructure:"exclude_benign"`
}

// PipelineConfig represents batch runner configuration
type PipelineConfig struct {
	Workers    int    `mapstructure:"workers"`
	VerdictLog string `mapstructure:"verdict_log"`
	ExportDir  string `mapstructure:"export_dir"`
	ProjectVCF bool   `mapstructure:"project_vcf"`
}

// ExternalConfig groups the external collaborators
type ExternalConfig struct {
	Mutalyzer ServiceConfig `mapstructure:"mutalyzer"`
	OMIM      ServiceConfig `mapstructure:"omim"`
	VCF       ServiceConfig `mapstructure:"vcf"`
}

// ServiceConfig represents one external HTTP service
type ServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents lookup cache configuration
type CacheConfig struct {
	MemoryItems int           `mapstructure:"memory_items"`
	RedisURL    string        `mapstructure:"redis_url"`
	TTL         time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig represents verdict database configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ScheduleConfig represents periodic batch runs in serve mode
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
