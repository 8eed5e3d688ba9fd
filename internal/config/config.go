// Package config loads the standalone server configuration from a YAML
// file. Values in the form ${VAR_NAME} are expanded from the
// environment before parsing, and duration fields accept Go duration
// strings ("45m", "1h").
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete standalone server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	App      AppConfig      `yaml:"app"`
	Store    StoreConfig    `yaml:"store"`
}

// ServerConfig holds the listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WhatsAppConfig holds the Cloud API credentials.
type WhatsAppConfig struct {
	Token         string `yaml:"token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
}

// OpenAIConfig holds the completion/transcription credentials.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AppConfig points at the web client receiving handoff links.
type AppConfig struct {
	BaseURL string `yaml:"base_url"`
}

// StoreConfig selects the conversation store driver.
type StoreConfig struct {
	Driver    string `yaml:"driver"` // "memory" or "redis"
	RedisAddr string `yaml:"redis_addr"`

	ConversationTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	ConversationTTLRaw string `yaml:"conversation_ttl"`
}

// Load reads, expands, parses and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment values.
// Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func parseDurations(cfg *Config) error {
	if cfg.Store.ConversationTTLRaw != "" {
		ttl, err := time.ParseDuration(cfg.Store.ConversationTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing conversation_ttl %q: %w", cfg.Store.ConversationTTLRaw, err)
		}
		cfg.Store.ConversationTTL = ttl
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.ConversationTTL <= 0 {
		cfg.Store.ConversationTTL = time.Hour
	}
}

// Validate checks required fields and returns the first failure.
func (c *Config) Validate() error {
	if c.WhatsApp.Token == "" {
		return fmt.Errorf("whatsapp.token is required")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp.phone_number_id is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required when driver is redis")
		}
	default:
		return fmt.Errorf("store.driver must be memory or redis, got %q", c.Store.Driver)
	}
	return nil
}
