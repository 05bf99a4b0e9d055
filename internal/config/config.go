package config

import (
	"fmt"
	"strings"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. CASEQC_PIPELINE_WORKERS.
const EnvPrefix = "CASEQC"

// Manager loads the configuration from defaults, an optional YAML file and the environment.
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a configuration manager. configFile may be empty, in which
// case caseqc.yaml is looked up in the usual places.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(configFile); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(configFile string) error {
	v := m.v
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("caseqc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/caseqc/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Input defaults
	v.SetDefault("input.source", "fs")
	v.SetDefault("input.schema", "bulk")
	v.SetDefault("input.case_dir", "data")
	v.SetDefault("input.cases_kind", "cases")
	v.SetDefault("input.entries_kind", "genomic_entries")
	v.SetDefault("input.override_dir", "")

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.path_style", false)

	// Override store defaults
	v.SetDefault("overrides.driver", "json")
	v.SetDefault("overrides.path", "hgvs_errors.json")
	v.SetDefault("overrides.min_version", 1)

	v.SetDefault("resolver.enable_rs_lookup", true)

	v.SetDefault("quality.convert_failed", false)
	v.SetDefault("quality.exclude_benign", false)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.verdict_log", "qc_output.json")
	v.SetDefault("pipeline.export_dir", "")
	v.SetDefault("pipeline.project_vcf", false)

	// External API defaults
	v.SetDefault("external.mutalyzer.base_url", "https://mutalyzer.nl/json")
	v.SetDefault("external.mutalyzer.timeout", "30s")
	v.SetDefault("external.mutalyzer.rate_limit", 5)
	v.SetDefault("external.mutalyzer.retry_count", 5)

	v.SetDefault("external.omim.api_key", "")
	v.SetDefault("external.omim.base_url", "https://api.omim.org/api")
	v.SetDefault("external.omim.timeout", "30s")
	v.SetDefault("external.omim.rate_limit", 4)
	v.SetDefault("external.omim.retry_count", 3)

	v.SetDefault("external.vcf.base_url", "http://localhost:8888")
	v.SetDefault("external.vcf.timeout", "60s")
	v.SetDefault("external.vcf.rate_limit", 10)
	v.SetDefault("external.vcf.retry_count", 2)

	// Cache defaults
	v.SetDefault("cache.memory_items", 10000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "postgres://postgres@localhost:5432/caseqc?sslmode=disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("schedule.cron", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Set overrides a single key, as done by command line flags, and re-reads the struct.
func (m *Manager) Set(key string, value interface{}) error {
	m.v.Set(key, value)
	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = config
	return nil
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	switch config.Input.Source {
	case "fs":
		if config.Input.CaseDir == "" {
			return fmt.Errorf("input case_dir is required for the fs source")
		}
	case "s3":
		if config.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 source")
		}
	default:
		return fmt.Errorf("invalid input source: %s", config.Input.Source)
	}

	switch config.Input.Schema {
	case "bulk", "lab":
	default:
		return fmt.Errorf("invalid input schema: %s", config.Input.Schema)
	}

	switch config.Overrides.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid overrides driver: %s", config.Overrides.Driver)
	}
	if config.Overrides.Path == "" {
		return fmt.Errorf("overrides path is required")
	}
	if config.Overrides.MinVersion < 0 {
		return fmt.Errorf("invalid overrides min_version: %d", config.Overrides.MinVersion)
	}

	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("invalid pipeline workers: %d", config.Pipeline.Workers)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Enabled && config.Database.URL == "" {
		return fmt.Errorf("database url is required when the database is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
