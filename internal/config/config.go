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
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings used for vendor extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	Recency string `yaml:"recency" mapstructure:"recency"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// JinaConfig holds Jina AI Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// ResearchConfig selects the research provider and tunes the pipeline.
type ResearchConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	DefaultPhase     string `yaml:"default_phase" mapstructure:"default_phase"`
	CatalogPath      string `yaml:"catalog_path" mapstructure:"catalog_path"`
	SweepDelaySecs   int    `yaml:"sweep_delay_secs" mapstructure:"sweep_delay_secs"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	CacheTTLMins     int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// RedisConfig configures the optional research cache. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Research providers.
const (
	ProviderPerplexity = "perplexity"
	ProviderFirecrawl  = "firecrawl"
	ProviderJina       = "jina"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VENDOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4000)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-deep-research")
	v.SetDefault("perplexity.recency", "month")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("firecrawl.max_pages", 20)
	v.SetDefault("firecrawl.concurrency", 3)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("research.provider", ProviderPerplexity)
	v.SetDefault("research.default_phase", "Pre-Construction Planning & Design")
	v.SetDefault("research.sweep_delay_secs", 2)
	v.SetDefault("research.breaker_threshold", 5)
	v.SetDefault("research.breaker_reset_secs", 60)
	v.SetDefault("research.cache_ttl_mins", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Keys without a default are invisible to AutomaticEnv until bound.
	for _, key := range []string{
		"store.database_url",
		"anthropic.key",
		"perplexity.key",
		"firecrawl.key",
		"jina.key",
		"research.catalog_path",
		"redis.url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

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

// Validate checks the keys a command needs. Modes: "research" (needs a
// store and the selected provider's key), "serve" (research plus a port),
// "store" (commands that only touch the database).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "research":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateResearch()...)
	case "serve":
		// Research keys are optional here; without them research requests
		// fail with a configuration error while the read routes keep working.
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.MinConns > c.Store.MaxConns {
		errs = append(errs, "store.min_conns must be <= store.max_conns")
	}
	return errs
}

func (c *Config) validateResearch() []string {
	var errs []string
	switch c.Research.Provider {
	case ProviderPerplexity:
		if c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required")
		}
	case ProviderFirecrawl:
		if c.Firecrawl.Key == "" {
			errs = append(errs, "firecrawl.key is required")
		}
	case ProviderJina:
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
	default:
		errs = append(errs, "research.provider must be perplexity, firecrawl or jina")
	}
	if c.Research.SweepDelaySecs < 0 {
		errs = append(errs, "research.sweep_delay_secs must be >= 0")
	}
	return errs
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
