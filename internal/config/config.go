package config

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once
// per process and passed down; nothing reads viper ad hoc mid-pipeline.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Backup     BackupConfig     `yaml:"backup" mapstructure:"backup"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`

	mu sync.Mutex
	v  *viper.Viper
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DataConfig configures on-disk state locations.
type DataConfig struct {
	CheckpointDir string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
	BackupDir     string `yaml:"backup_dir" mapstructure:"backup_dir"`
	ExportDir     string `yaml:"export_dir" mapstructure:"export_dir"`
}

// SchedulerConfig configures task admission and the worker pool.
type SchedulerConfig struct {
	MaxPerOwner int `yaml:"max_per_owner" mapstructure:"max_per_owner"`
	MaxWorkers  int `yaml:"max_workers" mapstructure:"max_workers"`
}

// BackupConfig configures the backup manager.
type BackupConfig struct {
	MaxBackups   int `yaml:"max_backups" mapstructure:"max_backups"`
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// SearchConfig configures source-provider search behavior.
type SearchConfig struct {
	ResultsPerQuery int     `yaml:"results_per_query" mapstructure:"results_per_query"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond   float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// FetchConfig configures content fetching in the extractor.
type FetchConfig struct {
	MaxConcurrent    int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	TimeoutSecs      int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxContentLength int `yaml:"max_content_length" mapstructure:"max_content_length"`
}

// PipelineConfig configures the research graph.
type PipelineConfig struct {
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	PolicyPath     string `yaml:"policy_path" mapstructure:"policy_path"`
	GenerativeMode bool   `yaml:"generative_mode" mapstructure:"generative_mode"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JinaConfig holds Jina AI reader and search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fetch fallback).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// NotionConfig holds the optional report-sink settings.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
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

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

// Refresh re-reads the config file in place for long-lived processes.
func (c *Config) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.v == nil {
		return eris.New("config: not loaded from viper")
	}
	if err := c.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return eris.Wrap(err, "config: re-read file")
		}
	}
	return eris.Wrap(c.v.Unmarshal(c), "config: re-unmarshal")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "research.db")
	v.SetDefault("data.checkpoint_dir", "data/checkpoints")
	v.SetDefault("data.backup_dir", "data/backups")
	v.SetDefault("data.export_dir", "data/exports")
	v.SetDefault("scheduler.max_per_owner", 3)
	v.SetDefault("scheduler.max_workers", 4)
	v.SetDefault("backup.max_backups", 10)
	v.SetDefault("backup.interval_secs", 30)
	v.SetDefault("search.results_per_query", 5)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.rate_per_second", 2)
	v.SetDefault("fetch.max_concurrent", 3)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_content_length", 20000)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.generative_mode", true)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
