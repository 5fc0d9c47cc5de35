package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Edgar      EdgarConfig      `yaml:"edgar" mapstructure:"edgar"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for classification and
// justification generation.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EdgarConfig holds SEC EDGAR settings for company enrichment.
type EdgarConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IngestConfig configures the ingestion gate.
type IngestConfig struct {
	// MinAffectedEmployees is the person-count proxy for the 100+ device
	// gate (~67 persons * 1.5 devices/person).
	MinAffectedEmployees int `yaml:"min_affected_employees" mapstructure:"min_affected_employees"`
}

// PipelineConfig configures batch processing of raw events.
type PipelineConfig struct {
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	DedupWindowDays  int    `yaml:"dedup_window_days" mapstructure:"dedup_window_days"`
	ScheduleCron     string `yaml:"schedule_cron" mapstructure:"schedule_cron"`
	DisableScheduler bool   `yaml:"disable_scheduler" mapstructure:"disable_scheduler"`
}

// ScoringConfig configures read-path aggregate scoring.
type ScoringConfig struct {
	MaxConcurrentCompanies int     `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	PricePerDevice         float64 `yaml:"price_per_device" mapstructure:"price_per_device"`
}

// MonitoringConfig configures source-health alerting.
type MonitoringConfig struct {
	CheckIntervalSecs  int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	MaxConsecutiveErrs int    `yaml:"max_consecutive_errors" mapstructure:"max_consecutive_errors"`
	StaleAfterHours    int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	WebhookURL         string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISPOSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "disposight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("edgar.user_agent", "DispoSight ops@disposight.com")
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("ingest.min_affected_employees", 67)
	v.SetDefault("pipeline.batch_size", 20)
	v.SetDefault("pipeline.dedup_window_days", 2)
	v.SetDefault("pipeline.schedule_cron", "*/15 * * * *")
	v.SetDefault("scoring.max_concurrent_companies", 8)
	v.SetDefault("scoring.price_per_device", 45.0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.max_consecutive_errors", 3)
	v.SetDefault("monitoring.stale_after_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
