package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Requester RequesterConfig `yaml:"requester" mapstructure:"requester"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig configures the bulk registry source.
type SourceConfig struct {
	BulkURL       string `yaml:"bulk_url" mapstructure:"bulk_url"`
	CountURL      string `yaml:"count_url" mapstructure:"count_url"`
	SearchURL     string `yaml:"search_url" mapstructure:"search_url"`
	CAUrl         string `yaml:"ca_url" mapstructure:"ca_url"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	CacheDir      string `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	BatchSize     int    `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// RequesterConfig configures the shared rate-limited HTTP requester.
// The user-agent pool, delay range, and randomness seed are injected here
// rather than read from process-wide state so tests can pin them down.
type RequesterConfig struct {
	UserAgents         []string `yaml:"user_agents" mapstructure:"user_agents"`
	MinDelayMillis     int      `yaml:"min_delay_millis" mapstructure:"min_delay_millis"`
	MaxDelayMillis     int      `yaml:"max_delay_millis" mapstructure:"max_delay_millis"`
	TimeoutSecs        int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ConnectTimeoutSecs int      `yaml:"connect_timeout_secs" mapstructure:"connect_timeout_secs"`
	Seed               uint64   `yaml:"seed" mapstructure:"seed"`
}

// MinDelay returns the configured minimum inter-request delay.
func (c RequesterConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMillis) * time.Millisecond
}

// MaxDelay returns the configured maximum inter-request delay.
func (c RequesterConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMillis) * time.Millisecond
}

// EnrichConfig configures the enrichment coordinator.
type EnrichConfig struct {
	BatchSize          int      `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency        int      `yaml:"concurrency" mapstructure:"concurrency"`
	StageTimeoutSecs   int      `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	HomeCountry        string   `yaml:"home_country" mapstructure:"home_country"`
	DirectoryBlocklist []string `yaml:"directory_blocklist" mapstructure:"directory_blocklist"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// ServerConfig configures the read-only JSON API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// defaultUserAgents is the rotation pool used when none are configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("source.bulk_url", "https://organic.ams.usda.gov/integrity/api/GetAllOperationsPublicData")
	v.SetDefault("source.count_url", "https://organic.ams.usda.gov/integrity/api/Operations/Count")
	v.SetDefault("source.search_url", "https://organic.ams.usda.gov/integrity/api/Operations")
	v.SetDefault("source.ca_url", "https://www.cdph.ca.gov/Programs/CEH/DFDCS/CDPH%20Document%20Library/FDB/FoodSafetyProgram/Organic/RegisteredOrganic.xlsx")
	v.SetDefault("source.cache_dir", "/tmp/leadgen")
	v.SetDefault("source.cache_ttl_hours", 24)
	v.SetDefault("source.batch_size", 100)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("requester.user_agents", defaultUserAgents)
	v.SetDefault("requester.min_delay_millis", 2000)
	v.SetDefault("requester.max_delay_millis", 5000)
	v.SetDefault("requester.timeout_secs", 10)
	v.SetDefault("requester.connect_timeout_secs", 5)
	v.SetDefault("enrich.batch_size", 50)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.stage_timeout_secs", 30)
	v.SetDefault("enrich.home_country", "USA")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
