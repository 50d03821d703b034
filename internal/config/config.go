// Package config loads the agent's configuration from an optional
// config.yaml and RESEARCH_AGENT_* environment variables, and builds the
// global zap logger.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable the agent reads.
const EnvPrefix = "RESEARCH_AGENT"

// maxNumberedKeys bounds the RESEARCH_AGENT_LLM_KEY_<n> scan.
const maxNumberedKeys = 9

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Lookup     LookupConfig     `yaml:"lookup" mapstructure:"lookup"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	SeedFile    string `yaml:"seed_file" mapstructure:"seed_file"` // memory driver only; empty loads the demo fixture
}

// SearchConfig selects and tunes the web search provider.
type SearchConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"` // serpapi, jina or mock
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Results          int     `yaml:"results" mapstructure:"results"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// LLMConfig selects the reasoning model. Keys form the credential pool.
type LLMConfig struct {
	Provider    string   `yaml:"provider" mapstructure:"provider"` // gemini, anthropic, perplexity, openai, mock, none
	Keys        []string `yaml:"keys" mapstructure:"keys"`
	Model       string   `yaml:"model" mapstructure:"model"`
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int      `yaml:"retries" mapstructure:"retries"`
	Temperature float64  `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int64    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Grounding   bool     `yaml:"grounding" mapstructure:"grounding"`
	Selection   string   `yaml:"selection" mapstructure:"selection"` // random or round_robin
}

// AgentConfig shapes the enrichment loop.
type AgentConfig struct {
	Schema        string `yaml:"schema" mapstructure:"schema"`
	SchemaFile    string `yaml:"schema_file" mapstructure:"schema_file"`
	MaxIterations int    `yaml:"max_iterations" mapstructure:"max_iterations"`
	QueryPolicy   string `yaml:"query_policy" mapstructure:"query_policy"`
	Extractor     string `yaml:"extractor" mapstructure:"extractor"`
	SnippetEntity string `yaml:"snippet_entity" mapstructure:"snippet_entity"`
}

// ExtractConfig tunes field extraction.
type ExtractConfig struct {
	MaxValueLen int `yaml:"max_value_len" mapstructure:"max_value_len"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	Username     string  `yaml:"username" mapstructure:"username"`
	KeyPath      string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL     string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// LookupConfig selects where people and companies are resolved.
type LookupConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // store or salesforce
}

// BatchConfig configures the batch command.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP service.
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
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to "" so AutomaticEnv can see them.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.seed_file", "")
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.key", "")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.results", 5)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.retries", 2)
	v.SetDefault("search.rate_limit_rps", 0)
	v.SetDefault("search.breaker_threshold", 5)
	v.SetDefault("search.breaker_reset_secs", 30)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.keys", []string{})
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("llm.retries", 3)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.grounding", true)
	v.SetDefault("llm.selection", "random")
	v.SetDefault("agent.schema", "deep_search")
	v.SetDefault("agent.schema_file", "")
	v.SetDefault("agent.max_iterations", 3)
	v.SetDefault("agent.query_policy", "batch")
	v.SetDefault("agent.extractor", "keyword")
	v.SetDefault("agent.snippet_entity", "company")
	v.SetDefault("extract.max_value_len", 2000)
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit_rps", 5)
	v.SetDefault("lookup.driver", "store")
	v.SetDefault("batch.max_concurrent", 4)
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

	cfg.LLM.Keys = append(cfg.LLM.Keys, numberedKeys(os.Getenv)...)
	return &cfg, nil
}

// numberedKeys collects RESEARCH_AGENT_LLM_KEY_1..9 and the legacy
// GEMINI_API_KEY_1..9 variables, in that order.
func numberedKeys(getenv func(string) string) []string {
	var keys []string
	for _, prefix := range []string{EnvPrefix + "_LLM_KEY_", "GEMINI_API_KEY_"} {
		for i := 1; i <= maxNumberedKeys; i++ {
			if k := strings.TrimSpace(getenv(fmt.Sprintf("%s%d", prefix, i))); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Validation modes.
const (
	ModeEnrich = "enrich" // run and batch
	ModeServe  = "serve"
	ModeStore  = "store" // migrate, seed, logs, snippets
)

// Validate checks that the settings needed by mode are present and sane.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case ModeStore:
		errs = c.validateStore(errs)
	case ModeEnrich, ModeServe:
		errs = c.validateStore(errs)
		errs = c.validateEnrich(errs)
		if mode == ModeServe && c.Server.Port <= 0 {
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

func (c *Config) validateStore(errs []string) []string {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateEnrich(errs []string) []string {
	switch c.Search.Provider {
	case "mock":
	case "serpapi", "jina":
		if c.Search.Key == "" {
			errs = append(errs, "search.key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("search.provider %q is not supported", c.Search.Provider))
	}

	switch c.LLM.Provider {
	case "none", "mock":
	case "gemini", "anthropic", "perplexity", "openai":
		if !hasKey(c.LLM.Keys) {
			errs = append(errs, "llm.keys is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch c.LLM.Selection {
	case "", "random", "round_robin":
	default:
		errs = append(errs, fmt.Sprintf("llm.selection %q is not supported", c.LLM.Selection))
	}

	switch c.Lookup.Driver {
	case "", "store":
	case "salesforce":
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("lookup.driver %q is not supported", c.Lookup.Driver))
	}

	if c.Agent.Schema == "" && c.Agent.SchemaFile == "" {
		errs = append(errs, "agent.schema or agent.schema_file is required")
	}
	switch c.Agent.SnippetEntity {
	case "", "company", "person":
	default:
		errs = append(errs, fmt.Sprintf("agent.snippet_entity %q must be company or person", c.Agent.SnippetEntity))
	}
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
		errs = append(errs, "batch.max_concurrent must be between 1 and 50")
	}
	return errs
}

func hasKey(keys []string) bool {
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

// InitLogger initializes the global zap logger. Output goes to stderr so
// command output on stdout stays machine readable.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}

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
