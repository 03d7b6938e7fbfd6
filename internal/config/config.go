package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Workspace string          `mapstructure:"workspace"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Gate      GateConfig      `mapstructure:"gate"`
	Reviewers ReviewersConfig `mapstructure:"reviewers"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Log       LogConfig       `mapstructure:"log"`
}

// PolicyConfig decision policy settings
type PolicyConfig struct {
	BlockSeverities []string `mapstructure:"block_severities"`
}

// GateConfig approval gate settings
type GateConfig struct {
	MaxWaitMinutes      int      `mapstructure:"max_wait_minutes"`
	PollIntervalSeconds int      `mapstructure:"poll_interval_seconds"`
	Marker              string   `mapstructure:"marker"`
	Approvers           []string `mapstructure:"approvers"`
}

// MaxWait returns the configured wait window as a duration.
func (g GateConfig) MaxWait() time.Duration {
	return time.Duration(g.MaxWaitMinutes) * time.Minute
}

// PollInterval returns the configured poll interval as a duration.
func (g GateConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

// ReviewersConfig reviewer pipeline settings
type ReviewersConfig struct {
	Order            []string `mapstructure:"order"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	CriticalElements []string `mapstructure:"critical_elements"`
}

// Timeout returns the per-reviewer timeout as a duration.
func (r ReviewersConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ProvidersConfig LLM provider settings for the semantic reviewer
type ProvidersConfig struct {
	Claude      ProviderConfig `mapstructure:"claude"`
	OpenAI      ProviderConfig `mapstructure:"openai"`
	Ollama      ProviderConfig `mapstructure:"ollama"`
	Model       string         `mapstructure:"model"`
	MaxTokens   int            `mapstructure:"max_tokens"`
	Temperature float64        `mapstructure:"temperature"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ChannelsConfig notification channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Token     string   `mapstructure:"token"`
	ChatID    string   `mapstructure:"chat_id"`
	AllowFrom []string `mapstructure:"allow_from"`
}

// DeployConfig publish webhook settings
type DeployConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Token      string `mapstructure:"token"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Workspace: filepath.Join(homeDir, ".shipgate", "workspace"),
		Policy: PolicyConfig{
			BlockSeverities: []string{"critical", "high"},
		},
		Gate: GateConfig{
			MaxWaitMinutes:      60,
			PollIntervalSeconds: 30,
			Marker:              "approve",
			Approvers:           []string{},
		},
		Reviewers: ReviewersConfig{
			Order:            []string{"structural", "baseline", "semantic"},
			TimeoutSeconds:   60,
			CriticalElements: []string{"count", "increment", "decrement", "reset"},
		},
		Providers: ProvidersConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				AllowFrom: []string{},
			},
		},
		Deploy: DeployConfig{},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18791,
			Token: "",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the shipgate config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".shipgate")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path, creating it with defaults
// when missing.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("SHIPGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to an explicit path
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

var validSeverities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
	"info":     true,
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	for _, severity := range c.Policy.BlockSeverities {
		if !validSeverities[strings.ToLower(strings.TrimSpace(severity))] {
			return fmt.Errorf("policy.block_severities contains unknown severity %q", severity)
		}
	}

	if c.Gate.MaxWaitMinutes < 0 {
		return fmt.Errorf("gate.max_wait_minutes must not be negative, got %d", c.Gate.MaxWaitMinutes)
	}
	if c.Gate.MaxWaitMinutes == 0 {
		c.Gate.MaxWaitMinutes = 60
	}
	if c.Gate.PollIntervalSeconds < 0 {
		return fmt.Errorf("gate.poll_interval_seconds must not be negative, got %d", c.Gate.PollIntervalSeconds)
	}
	if c.Gate.PollIntervalSeconds == 0 {
		c.Gate.PollIntervalSeconds = 30
	}
	if c.Gate.PollIntervalSeconds < 1 {
		c.Gate.PollIntervalSeconds = 1
	}
	if strings.TrimSpace(c.Gate.Marker) == "" {
		c.Gate.Marker = "approve"
	}

	if len(c.Reviewers.Order) == 0 {
		return fmt.Errorf("reviewers.order must name at least one reviewer")
	}
	seen := map[string]bool{}
	for _, name := range c.Reviewers.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return fmt.Errorf("reviewers.order contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("reviewers.order lists %q twice", name)
		}
		seen[name] = true
	}
	if c.Reviewers.TimeoutSeconds < 0 {
		return fmt.Errorf("reviewers.timeout_seconds must not be negative, got %d", c.Reviewers.TimeoutSeconds)
	}
	if c.Reviewers.TimeoutSeconds == 0 {
		c.Reviewers.TimeoutSeconds = 60
	}

	if c.Providers.MaxTokens <= 0 {
		return fmt.Errorf("providers.max_tokens must be > 0, got %d", c.Providers.MaxTokens)
	}
	if c.Providers.Temperature < 0 || c.Providers.Temperature > 2.0 {
		return fmt.Errorf("providers.temperature must be between 0 and 2.0, got %f", c.Providers.Temperature)
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path, err := c.WorkspacePathChecked()
	if err != nil {
		return filepath.Join(ConfigDir(), "workspace")
	}
	return path
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	workspace := strings.TrimSpace(c.Workspace)
	if workspace == "" {
		return filepath.Join(ConfigDir(), "workspace"), nil
	}
	if workspace[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory for workspace path: %w", err)
		}
		rest := workspace[1:]
		rest = strings.TrimPrefix(rest, string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest), nil
	}
	return workspace, nil
}
