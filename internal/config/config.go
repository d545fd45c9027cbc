package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatasetsConfig configures where yearly expense tables are read from.
type DatasetsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	MaxRows     int    `yaml:"max_rows" mapstructure:"max_rows"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
	AutoRefresh bool   `yaml:"auto_refresh" mapstructure:"auto_refresh"`
	Watch       bool   `yaml:"watch" mapstructure:"watch"`
}

// MatchConfig configures the cross-year join.
type MatchConfig struct {
	// DescriptionKey is "action" or "program".
	DescriptionKey string `yaml:"description_key" mapstructure:"description_key"`
}

// ReportConfig configures the declaration PDF.
type ReportConfig struct {
	LogoPath  string `yaml:"logo_path" mapstructure:"logo_path"`
	Signature string `yaml:"signature" mapstructure:"signature"`
}

// StoreConfig configures the declaration log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DSN returns the connection target for the configured driver.
func (s StoreConfig) DSN() string {
	if strings.EqualFold(s.Driver, "postgres") {
		return s.DatabaseURL
	}
	return s.Path
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// SyncConfig configures downloads of yearly expense tables.
type SyncConfig struct {
	Sources          []SourceConfig `yaml:"sources" mapstructure:"sources"`
	TimeoutSecs      int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int            `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec       float64        `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent        string         `yaml:"user_agent" mapstructure:"user_agent"`
	BreakerThreshold int            `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int            `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SourceConfig is one remote yearly file.
type SourceConfig struct {
	Year string `yaml:"year" mapstructure:"year"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RETIFICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("datasets.dir", "dados")
	v.SetDefault("datasets.max_rows", 500000)
	v.SetDefault("datasets.workers", 4)
	v.SetDefault("datasets.auto_refresh", true)
	v.SetDefault("datasets.watch", false)
	v.SetDefault("match.description_key", "action")
	v.SetDefault("report.logo_path", "static/logo_secretaria.png")
	v.SetDefault("report.signature", "Diretoria de Planejamento Orçamentário")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "retifica.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("sync.timeout_secs", 120)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.rate_per_sec", 2.0)
	v.SetDefault("sync.user_agent", "retifica-cli/1.0")
	v.SetDefault("sync.breaker_threshold", 3)
	v.SetDefault("sync.breaker_reset_secs", 300)
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

// Validate checks the settings needed by the given command mode
// ("serve", "match", "datasets", "history" or "sync") and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch strings.ToLower(c.Match.DescriptionKey) {
	case "", "action", "program":
	default:
		problems = append(problems, fmt.Sprintf("match.description_key must be action or program, got %q", c.Match.DescriptionKey))
	}

	switch strings.ToLower(c.Store.Driver) {
	case "", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Datasets.Dir == "" {
		problems = append(problems, "datasets.dir is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case "sync":
		if len(c.Sync.Sources) == 0 {
			problems = append(problems, "sync.sources is empty")
		}
		for i, src := range c.Sync.Sources {
			if src.Year == "" || src.URL == "" {
				problems = append(problems, fmt.Sprintf("sync.sources[%d] needs both year and url", i))
			}
		}
	case "match", "datasets", "history":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
