package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete pyfix configuration (v1 schema)
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Similarity SimilarityConfig `json:"similarity" mapstructure:"similarity"`
	Passes     PassesConfig     `json:"passes" mapstructure:"passes"`
	Tools      ToolsConfig      `json:"tools" mapstructure:"tools"`
	Index      IndexConfig      `json:"index" mapstructure:"index"`
	Exclude    []string         `json:"exclude" mapstructure:"exclude"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// SimilarityConfig controls the resolver's acceptance policy
type SimilarityConfig struct {
	// Threshold is the minimum score for the best candidate
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
	// Margin is the required lead over the second-best candidate
	Margin float64 `json:"margin" mapstructure:"margin"`
	// TopK caps how many candidates are ranked
	TopK int `json:"topK" mapstructure:"topK"`
}

// PassesConfig bounds the repair loop
type PassesConfig struct {
	Max int `json:"max" mapstructure:"max"`
}

// ToolsConfig controls external tool invocation
type ToolsConfig struct {
	// Enabled lists tool names to run, in order. Empty means the full default registry.
	Enabled []string `json:"enabled" mapstructure:"enabled"`
	// TimeoutMs bounds each tool invocation; 0 disables the timeout.
	TimeoutMs int `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// IndexConfig controls optional SCIP index enrichment of the scope index
type IndexConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	ScipPath string `json:"scipPath" mapstructure:"scipPath"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Similarity: SimilarityConfig{
			Threshold: 0.80,
			Margin:    0.05,
			TopK:      5,
		},
		Passes: PassesConfig{
			Max: 1,
		},
		Tools: ToolsConfig{
			Enabled:   []string{},
			TimeoutMs: 0,
		},
		Index: IndexConfig{
			Enabled:  true,
			ScipPath: ".scip/index.scip",
		},
		Exclude: []string{
			"venv", ".venv", "site-packages", "__pycache__",
			".git", "node_modules", ".pyfix", ".tox", ".eggs",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from <root>/.pyfix/config.json.
// A missing config file yields the defaults.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".pyfix"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to <root>/.pyfix/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".pyfix")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Similarity.Threshold < 0 || c.Similarity.Threshold > 1 {
		return &ConfigError{Field: "similarity.threshold", Message: "must be in [0,1]"}
	}
	if c.Similarity.Margin < 0 || c.Similarity.Margin > 1 {
		return &ConfigError{Field: "similarity.margin", Message: "must be in [0,1]"}
	}
	if c.Similarity.TopK < 1 || c.Similarity.TopK > 5 {
		return &ConfigError{Field: "similarity.topK", Message: "must be between 1 and 5"}
	}
	if c.Passes.Max < 1 {
		return &ConfigError{Field: "passes.max", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
