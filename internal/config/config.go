package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration, loaded once at startup and
// passed explicitly to every component.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	LLM         LLMConfig         `yaml:"llm"`
	Feeds       []Source          `yaml:"feeds"`
	Agent       AgentConfig       `yaml:"agent"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Log         LogConfig         `yaml:"log"`
}

// TelegramConfig holds the bot credentials and the destination chat.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// LLMConfig holds the model provider settings.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Source is a single RSS feed endpoint.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AgentConfig bounds the report-generation run.
type AgentConfig struct {
	MaxSteps     int `yaml:"max_steps"`     // reasoning/tool-call iteration cap
	MaxEntries   int `yaml:"max_entries"`   // entries taken per feed source
	ExcerptLimit int `yaml:"excerpt_limit"` // character budget per excerpt
}

// ConcurrencyConfig controls the provider rate limiter.
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads the config file at path, applies environment overrides and
// fills defaults. A missing file is not an error: the required values can
// come entirely from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// env-only operation
	default:
		return nil, err
	}

	applyEnv(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets environment variables override file values. The secrets
// are expected to arrive this way when run from a CI scheduler.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
}

func setDefaults(cfg *Config) {
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = []Source{
			{Name: "Livemint", URL: "http://livemint.com/rss/markets"},
			{Name: "ET", URL: "https://economictimes.indiatimes.com/rssfeeds/1977021501.cms"},
		}
	}
	if cfg.Agent.MaxSteps <= 0 {
		cfg.Agent.MaxSteps = 5
	}
	if cfg.Agent.MaxEntries <= 0 {
		cfg.Agent.MaxEntries = 6
	}
	if cfg.Agent.ExcerptLimit <= 0 {
		cfg.Agent.ExcerptLimit = 300
	}
	if cfg.Concurrency.QPS <= 0 {
		cfg.Concurrency.QPS = 1
	}
	if cfg.Concurrency.RPM <= 0 {
		cfg.Concurrency.RPM = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate fails fast on missing delivery credentials. The LLM key is
// deliberately not checked here: its absence surfaces as a provider-side
// auth failure, which the run reports through the normal error path.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("missing telegram token (set TELEGRAM_TOKEN)")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("missing telegram chat id (set CHAT_ID)")
	}
	return nil
}
