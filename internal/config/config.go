// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Capture   CaptureConfig   `yaml:"capture" mapstructure:"capture"`
	Agent     AgentConfig     `yaml:"agent" mapstructure:"agent"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the judge.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	JudgeModel string `yaml:"judge_model" mapstructure:"judge_model"`
}

// SearchConfig holds the web-search recall client settings.
type SearchConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// CaptureConfig configures the page-capture provider.
type CaptureConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // http | browser | stub
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetainRaw   bool   `yaml:"retain_raw" mapstructure:"retain_raw"`
	ArtifactDir string `yaml:"artifact_dir" mapstructure:"artifact_dir"`
}

// AgentConfig configures the pipeline itself.
type AgentConfig struct {
	MaxCandidates  int    `yaml:"max_candidates" mapstructure:"max_candidates"`
	RecallProvider string `yaml:"recall_provider" mapstructure:"recall_provider"` // web_search | stub
	OfferProvider  string `yaml:"offer_provider" mapstructure:"offer_provider"`   // stub
	JudgeStub      bool   `yaml:"judge_stub" mapstructure:"judge_stub"`
}

// ServerConfig configures the HTTP surface.
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
	v.SetEnvPrefix("COMPARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.judge_model", "claude-haiku-4-5-20251001")
	v.SetDefault("search.base_url", "https://s.jina.ai")
	v.SetDefault("search.rate_per_second", 2)
	v.SetDefault("search.burst", 4)
	v.SetDefault("capture.provider", "http")
	v.SetDefault("capture.timeout_secs", 30)
	v.SetDefault("capture.retain_raw", false)
	v.SetDefault("capture.artifact_dir", "artifacts")
	v.SetDefault("agent.max_candidates", 10)
	v.SetDefault("agent.recall_provider", "web_search")
	v.SetDefault("agent.offer_provider", "stub")
	v.SetDefault("agent.judge_stub", false)

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
