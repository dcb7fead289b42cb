// Package config holds all concierge configuration. Config is loaded
// from a YAML file, overlaid with environment variables for secrets,
// and validated before any pipeline stage runs: a missing role model
// is a fatal configuration error, not a runtime surprise.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all concierge configuration.
type Config struct {
	// Core settings
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace"`

	// Generative model configuration
	LLM LLMConfig `yaml:"llm"`

	// File locations for templates, registry and artifacts
	Paths PathsConfig `yaml:"paths"`

	// Cross-run action history (optional)
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generative call gateway.
type LLMConfig struct {
	Provider  string  `yaml:"provider"` // openai, zai, gemini
	APIKey    string  `yaml:"api_key"`
	BaseURL   string  `yaml:"base_url"`
	Timeout   string  `yaml:"timeout"`
	MaxTokens int     `yaml:"max_tokens"`
	Models    Models  `yaml:"models"`
	Tuning    Tunings `yaml:"tuning"`
}

// Models maps each gateway role to a model name. All four are required.
type Models struct {
	Extraction     string `yaml:"extraction"`
	Classification string `yaml:"classification"`
	Synthesis      string `yaml:"synthesis"`
	Worker         string `yaml:"worker"`
}

// Tunings holds per-role generation temperatures.
type Tunings struct {
	Extraction     float64 `yaml:"extraction"`
	Classification float64 `yaml:"classification"`
	Synthesis      float64 `yaml:"synthesis"`
	Worker         float64 `yaml:"worker"`
}

// PathsConfig locates the on-disk collaborators of the pipeline.
type PathsConfig struct {
	// Templates is the prompt template directory. Worker templates live
	// in a "workers" subdirectory of it.
	Templates string `yaml:"templates"`

	// Capabilities is the worker capability registry YAML file.
	Capabilities string `yaml:"capabilities"`

	// Artifacts is the per-run artifact directory root.
	Artifacts string `yaml:"artifacts"`

	// Transcript is where the external audio agent drops its result.
	Transcript string `yaml:"transcript"`
}

// HistoryConfig configures the cross-run action history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// Limit is how many recent accepted actions feed back into the
	// extraction prompt. Zero means the placeholder stays empty.
	Limit int `yaml:"limit"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "concierge",
		Workspace: ".",
		LLM: LLMConfig{
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			Timeout:   "120s",
			MaxTokens: 2048,
			Models: Models{
				Extraction:     "gpt-4o-mini",
				Classification: "gpt-4o-mini",
				Synthesis:      "gpt-4o",
				Worker:         "gpt-4o",
			},
			Tuning: Tunings{
				Extraction:     0.1,
				Classification: 0.1,
				Synthesis:      0.5,
				Worker:         0.3,
			},
		},
		Paths: PathsConfig{
			Templates:    "templates",
			Capabilities: "templates/worker_capabilities.yaml",
			Artifacts:    "process_results",
			Transcript:   "process_results/transcription_result.json",
		},
		History: HistoryConfig{
			Enabled: false,
			DBPath:  ".concierge/history.db",
			Limit:   20,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads config from a YAML file, applies defaults for absent
// sections, overlays environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides fills the API key from provider-specific
// environment variables when the config file omits it.
func (c *Config) applyEnvOverrides() {
	if c.LLM.APIKey != "" {
		return
	}
	envVars := map[string]string{
		"openai": "OPENAI_API_KEY",
		"zai":    "ZAI_API_KEY",
		"gemini": "GEMINI_API_KEY",
	}
	if envVar, ok := envVars[c.LLM.Provider]; ok {
		c.LLM.APIKey = os.Getenv(envVar)
	}
}

// Validate checks that every key the pipeline depends on is present.
// It reports all missing keys at once rather than one per run.
func (c *Config) Validate() error {
	var missing []string

	if c.LLM.Provider == "" {
		missing = append(missing, "llm.provider")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key (or provider API key env var)")
	}
	if c.LLM.MaxTokens <= 0 {
		missing = append(missing, "llm.max_tokens")
	}
	if c.LLM.Models.Extraction == "" {
		missing = append(missing, "llm.models.extraction")
	}
	if c.LLM.Models.Classification == "" {
		missing = append(missing, "llm.models.classification")
	}
	if c.LLM.Models.Synthesis == "" {
		missing = append(missing, "llm.models.synthesis")
	}
	if c.LLM.Models.Worker == "" {
		missing = append(missing, "llm.models.worker")
	}
	if c.Paths.Templates == "" {
		missing = append(missing, "paths.templates")
	}
	if c.Paths.Capabilities == "" {
		missing = append(missing, "paths.capabilities")
	}
	if c.Paths.Artifacts == "" {
		missing = append(missing, "paths.artifacts")
	}

	if len(missing) > 0 {
		return fmt.Errorf("configuration incomplete, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DefaultConfigPath returns the conventional config location inside a
// workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".concierge", "config.yaml")
}
