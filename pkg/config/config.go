package config

import (
	"fmt"
	"math"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for querylens-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8780"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis cache configuration
	Redis RedisConfig `yaml:"redis"`

	// Health supervisor configuration
	Health HealthConfig `yaml:"health"`

	// Model provider endpoints, tried in priority order
	Providers []ProviderEndpointConfig `yaml:"providers"`

	// Circuit breaker settings shared by all provider endpoints
	Breaker BreakerConfig `yaml:"breaker"`

	// Job orchestrator settings
	Jobs JobsConfig `yaml:"jobs"`

	// Policy cache settings for the query safety engine
	Policy PolicyConfig `yaml:"policy"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"querylens"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"querylens_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis cache configuration.
// An empty host disables the cache (and its probe reports unavailable).
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// HealthConfig holds health supervisor tuning.
// Weights must sum to 1.0; Load validates this.
type HealthConfig struct {
	WeightStorage  float64 `yaml:"weight_storage" env:"HEALTH_WEIGHT_STORAGE" env-default:"0.40"`
	WeightProvider float64 `yaml:"weight_provider" env:"HEALTH_WEIGHT_PROVIDER" env-default:"0.30"`
	WeightCache    float64 `yaml:"weight_cache" env:"HEALTH_WEIGHT_CACHE" env-default:"0.15"`
	WeightIndex    float64 `yaml:"weight_index" env:"HEALTH_WEIGHT_INDEX" env-default:"0.15"`

	// Mode thresholds: score >= threshold selects the mode.
	ThresholdFull     float64 `yaml:"threshold_full" env:"HEALTH_THRESHOLD_FULL" env-default:"85"`
	ThresholdLimited  float64 `yaml:"threshold_limited" env:"HEALTH_THRESHOLD_LIMITED" env-default:"60"`
	ThresholdReadOnly float64 `yaml:"threshold_read_only" env:"HEALTH_THRESHOLD_READ_ONLY" env-default:"40"`
	ThresholdConfig   float64 `yaml:"threshold_config" env:"HEALTH_THRESHOLD_CONFIG" env-default:"10"`

	TickInterval time.Duration `yaml:"tick_interval" env:"HEALTH_TICK_INTERVAL" env-default:"10s"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"HEALTH_PROBE_TIMEOUT" env-default:"2s"`
	SLALatency   time.Duration `yaml:"sla_latency" env:"HEALTH_SLA_LATENCY" env-default:"500ms"`

	// MaxConcurrentProbes bounds how many probes run at once per tick.
	MaxConcurrentProbes int `yaml:"max_concurrent_probes" env:"HEALTH_MAX_CONCURRENT_PROBES" env-default:"4"`

	// SampleWindow is how many recent samples are retained per dependency.
	SampleWindow int `yaml:"sample_window" env:"HEALTH_SAMPLE_WINDOW" env-default:"10"`
}

// ProviderEndpointConfig describes one ranked model provider endpoint.
type ProviderEndpointConfig struct {
	ID            string `yaml:"id"`
	Kind          string `yaml:"kind"` // "openai", "anthropic", or "fallback"
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	APIKeyEnv     string `yaml:"api_key_env"` // Name of the env var holding the key
	Priority      int    `yaml:"priority"`
	MaxConcurrent int    `yaml:"max_concurrent"`

	Timeout time.Duration `yaml:"timeout"`
}

// BreakerConfig holds circuit breaker settings for provider endpoints.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	Cooldown         time.Duration `yaml:"cooldown" env:"BREAKER_COOLDOWN" env-default:"30s"`
	CooldownMax      time.Duration `yaml:"cooldown_max" env:"BREAKER_COOLDOWN_MAX" env-default:"10m"`
}

// JobsConfig holds job orchestrator settings.
type JobsConfig struct {
	Workers     int           `yaml:"workers" env:"JOBS_WORKERS" env-default:"2"`
	LeaseTTL    time.Duration `yaml:"lease_ttl" env:"JOBS_LEASE_TTL" env-default:"60s"`
	MaxAttempts int           `yaml:"max_attempts" env:"JOBS_MAX_ATTEMPTS" env-default:"3"`
	BackoffBase time.Duration `yaml:"backoff_base" env:"JOBS_BACKOFF_BASE" env-default:"2s"`
	BackoffCap  time.Duration `yaml:"backoff_cap" env:"JOBS_BACKOFF_CAP" env-default:"5m"`
	PollEvery   time.Duration `yaml:"poll_every" env:"JOBS_POLL_EVERY" env-default:"1s"`

	// BackupDir is where backup jobs write their export files.
	BackupDir string `yaml:"backup_dir" env:"JOBS_BACKUP_DIR" env-default:"./backups"`
}

// PolicyConfig holds policy cache settings for the safety engine.
type PolicyConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"POLICY_REFRESH_INTERVAL" env-default:"30s"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	sum := c.Health.WeightStorage + c.Health.WeightProvider + c.Health.WeightCache + c.Health.WeightIndex
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("health weights must sum to 1.0, got %.4f", sum)
	}

	if c.Health.ThresholdFull <= c.Health.ThresholdLimited ||
		c.Health.ThresholdLimited <= c.Health.ThresholdReadOnly ||
		c.Health.ThresholdReadOnly <= c.Health.ThresholdConfig {
		return fmt.Errorf("health thresholds must be strictly decreasing: full > limited > read_only > config")
	}

	if c.Health.TickInterval <= 0 {
		return fmt.Errorf("health tick_interval must be positive")
	}
	if c.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health probe_timeout must be positive")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.ID == "" {
			return fmt.Errorf("providers[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider endpoint id %q", p.ID)
		}
		seen[p.ID] = true
		switch p.Kind {
		case "openai", "anthropic", "fallback":
		default:
			return fmt.Errorf("provider %q: unknown kind %q", p.ID, p.Kind)
		}
		if p.MaxConcurrent <= 0 {
			p.MaxConcurrent = 4
		}
		if p.Timeout <= 0 {
			p.Timeout = 30 * time.Second
		}
	}

	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("jobs max_attempts must be at least 1")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs workers must be at least 1")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}
