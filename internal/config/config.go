// Package config handles Atelier configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./atelier.yaml, ~/.config/atelier/atelier.yaml, /etc/atelier/atelier.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"atelier.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "atelier", "atelier.yaml"))
	}

	paths = append(paths, "/etc/atelier/atelier.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Atelier configuration.
type Config struct {
	Listen      ListenConfig      `yaml:"listen"`
	Models      ModelsConfig      `yaml:"models"`
	Agent       AgentConfig       `yaml:"agent"`
	Session     SessionConfig     `yaml:"session"`
	Inspiration InspirationConfig `yaml:"inspiration"`
	DataDir     string            `yaml:"data_dir"`
	UploadsDir  string            `yaml:"uploads_dir"`
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"` // text or json
}

// ListenConfig defines the HTTP server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelsConfig defines the reasoning model settings.
type ModelsConfig struct {
	Default   string `yaml:"default"`
	OllamaURL string `yaml:"ollama_url"`
}

// AgentConfig bounds a single agent turn.
type AgentConfig struct {
	// MaxToolIterations caps reason/act cycles per user turn. Exceeding it
	// forces a best-effort final answer instead of failing the turn.
	MaxToolIterations int `yaml:"max_tool_iterations"`
	// DecisionTimeoutSec bounds how long the loop waits for a single
	// reasoning decision. Zero disables the per-decision timeout.
	DecisionTimeoutSec int `yaml:"decision_timeout_sec"`
}

// SessionConfig controls conversation memory and compaction.
type SessionConfig struct {
	MaxTokens    int     `yaml:"max_tokens"`    // Context budget before compaction
	TriggerRatio float64 `yaml:"trigger_ratio"` // Compact at this fill ratio
	KeepRecent   int     `yaml:"keep_recent"`   // Entries always kept verbatim
	MinEntries   int     `yaml:"min_entries"`   // Don't compact tiny sessions
}

// InspirationConfig defines the external inspiration provider.
type InspirationConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"` // Empty token enables mock results
}

// DecisionTimeout returns the per-decision timeout as a duration.
func (a AgentConfig) DecisionTimeout() time.Duration {
	return time.Duration(a.DecisionTimeoutSec) * time.Second
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that yaml decoding can't express.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	if c.Agent.MaxToolIterations < 0 {
		return fmt.Errorf("agent.max_tool_iterations must not be negative")
	}
	if c.Session.TriggerRatio < 0 || c.Session.TriggerRatio > 1 {
		return fmt.Errorf("session.trigger_ratio must be between 0 and 1")
	}
	return nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:     ListenConfig{Port: 8080},
		DataDir:    "data",
		UploadsDir: "data/uploads",
		Models: ModelsConfig{
			Default:   "qwen3:4b",
			OllamaURL: "http://localhost:11434",
		},
		Agent: AgentConfig{
			MaxToolIterations:  8,
			DecisionTimeoutSec: 120,
		},
		Session: SessionConfig{
			MaxTokens:    8000,
			TriggerRatio: 0.7,
			KeepRecent:   10,
			MinEntries:   20,
		},
	}
}
