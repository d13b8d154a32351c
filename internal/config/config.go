// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Escalation routing policies.
const (
	PolicyOpenOrInProgress = "open_or_in_progress"
	PolicyInProgress       = "in_progress"
)

// Config holds all application configuration.
type Config struct {
	Port               string           `yaml:"port"`
	DBPath             string           `yaml:"db_path"`
	LogLevel           string           `yaml:"log_level"`
	CORSAllowedOrigins []string         `yaml:"cors_allowed_origins"`
	HistoryLimit       int              `yaml:"history_limit"`
	RedactPII          bool             `yaml:"redact_pii"`
	MaxBodyBytes       int64            `yaml:"max_body_bytes"`
	ChatRateLimit      int              `yaml:"chat_rate_limit"`
	LLM                LLMConfig        `yaml:"llm"`
	TTS                TTSConfig        `yaml:"tts"`
	Escalation         EscalationConfig `yaml:"escalation"`
	Kafka              KafkaConfig      `yaml:"kafka"`
	Twilio             TwilioConfig     `yaml:"twilio"`
}

// LLMConfig selects and tunes the completion model.
type LLMConfig struct {
	Provider           string        `yaml:"provider"`
	Model              string        `yaml:"model"`
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxTokens          int           `yaml:"max_tokens"`
	Temperature        float64       `yaml:"temperature"`
	Retries            int           `yaml:"retries"`
	TranslateMaxTokens int           `yaml:"translate_max_tokens"`
}

// Enabled reports whether a completion model is configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" || c.BaseURL != ""
}

// TTSConfig controls speech synthesis of replies.
type TTSConfig struct {
	Enabled bool          `yaml:"enabled"`
	Region  string        `yaml:"region"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// EscalationConfig controls live handoff routing and stale ticket cleanup.
type EscalationConfig struct {
	ActivePolicy  string        `yaml:"active_policy"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// KafkaConfig configures ticket lifecycle event publishing.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TicketTopic string   `yaml:"ticket_topic"`
}

// Enabled reports whether ticket events should be published.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.TicketTopic != ""
}

// TwilioConfig configures SMS alerts for emergency tickets.
type TwilioConfig struct {
	AccountSID   string   `yaml:"account_sid"`
	AuthToken    string   `yaml:"auth_token"`
	FromNumber   string   `yaml:"from_number"`
	AlertNumbers []string `yaml:"alert_numbers"`
}

// Enabled reports whether emergency SMS alerts can be sent.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != "" && len(c.AlertNumbers) > 0
}

// Defaults returns the configuration used before any file or environment overrides.
func Defaults() *Config {
	return &Config{
		Port:               "8000",
		DBPath:             "./data/voicebot.db",
		LogLevel:           "info",
		CORSAllowedOrigins: []string{"*"},
		HistoryLimit:       50,
		RedactPII:          true,
		MaxBodyBytes:       64 << 10,
		ChatRateLimit:      30,
		LLM: LLMConfig{
			Provider:           "openai",
			Model:              "gpt-4o-mini",
			Timeout:            20 * time.Second,
			MaxTokens:          512,
			Temperature:        0.1,
			Retries:            0,
			TranslateMaxTokens: 512,
		},
		TTS: TTSConfig{
			Enabled: false,
			Region:  "us-east-1",
			Timeout: 10 * time.Second,
			Retries: 0,
		},
		Escalation: EscalationConfig{
			ActivePolicy:  PolicyInProgress,
			StaleAfter:    0,
			SweepInterval: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			TicketTopic: "voicebot-escalations",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	path := getEnv("CONFIG_FILE", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if cfg.LLM.Provider == "googleai" && cfg.LLM.Model == Defaults().LLM.Model {
		cfg.LLM.Model = "gemini-1.5-flash"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)
	c.HistoryLimit = getEnvInt("HISTORY_LIMIT", c.HistoryLimit)
	c.RedactPII = getEnvBool("REDACT_PII", c.RedactPII)
	c.ChatRateLimit = getEnvInt("CHAT_RATE_LIMIT", c.ChatRateLimit)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Retries = getEnvInt("LLM_RETRIES", c.LLM.Retries)
	c.LLM.TranslateMaxTokens = getEnvInt("TRANSLATE_MAX_TOKENS", c.LLM.TranslateMaxTokens)

	c.TTS.Enabled = getEnvBool("TTS_ENABLED", c.TTS.Enabled)
	c.TTS.Region = getEnv("AWS_REGION", c.TTS.Region)
	c.TTS.Timeout = getEnvDuration("TTS_TIMEOUT", c.TTS.Timeout)
	c.TTS.Retries = getEnvInt("TTS_RETRIES", c.TTS.Retries)

	c.Escalation.ActivePolicy = strings.ToLower(getEnv("ESCALATION_ACTIVE_POLICY", c.Escalation.ActivePolicy))
	c.Escalation.StaleAfter = getEnvDuration("ESCALATION_STALE_AFTER", c.Escalation.StaleAfter)
	c.Escalation.SweepInterval = getEnvDuration("ESCALATION_SWEEP_INTERVAL", c.Escalation.SweepInterval)

	c.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.TicketTopic = getEnv("KAFKA_TICKET_TOPIC", c.Kafka.TicketTopic)

	c.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.Twilio.AccountSID)
	c.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.Twilio.AuthToken)
	c.Twilio.FromNumber = getEnv("TWILIO_FROM_NUMBER", c.Twilio.FromNumber)
	c.Twilio.AlertNumbers = getEnvList("EMERGENCY_ALERT_NUMBERS", c.Twilio.AlertNumbers)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be > 0")
	}
	if c.ChatRateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	switch c.LLM.Provider {
	case "openai", "googleai":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or googleai, got %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.LLM.TranslateMaxTokens <= 0 {
		return fmt.Errorf("TRANSLATE_MAX_TOKENS must be > 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.LLM.Retries < 0 || c.TTS.Retries < 0 {
		return fmt.Errorf("LLM_RETRIES and TTS_RETRIES must be >= 0")
	}
	if c.TTS.Enabled && c.TTS.Timeout <= 0 {
		return fmt.Errorf("TTS_TIMEOUT must be > 0")
	}
	switch c.Escalation.ActivePolicy {
	case PolicyOpenOrInProgress, PolicyInProgress:
	default:
		return fmt.Errorf("ESCALATION_ACTIVE_POLICY must be %s or %s, got %q",
			PolicyOpenOrInProgress, PolicyInProgress, c.Escalation.ActivePolicy)
	}
	if c.Escalation.StaleAfter < 0 {
		return fmt.Errorf("ESCALATION_STALE_AFTER must be >= 0")
	}
	if c.Escalation.StaleAfter > 0 && c.Escalation.SweepInterval <= 0 {
		return fmt.Errorf("ESCALATION_SWEEP_INTERVAL must be > 0 when stale sweeping is enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
