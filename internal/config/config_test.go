package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Similarity.Threshold != 0.80 {
		t.Errorf("threshold = %v, want 0.80", cfg.Similarity.Threshold)
	}
	if cfg.Similarity.Margin != 0.05 {
		t.Errorf("margin = %v, want 0.05", cfg.Similarity.Margin)
	}
	if cfg.Passes.Max != 1 {
		t.Errorf("passes.max = %d, want 1", cfg.Passes.Max)
	}
	if len(cfg.Exclude) == 0 {
		t.Error("default exclude list should not be empty")
	}
}

func TestSaveAndReload(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Similarity.Threshold = 0.9
	cfg.Passes.Max = 3
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, ".pyfix", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Similarity.Threshold != 0.9 {
		t.Errorf("threshold = %v, want 0.9", loaded.Similarity.Threshold)
	}
	if loaded.Passes.Max != 3 {
		t.Errorf("passes.max = %d, want 3", loaded.Passes.Max)
	}
	// Fields absent from the file keep their defaults
	if loaded.Similarity.Margin != 0.05 {
		t.Errorf("margin = %v, want default 0.05", loaded.Similarity.Margin)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults are valid", func(c *Config) {}, true},
		{"bad version", func(c *Config) { c.Version = 2 }, false},
		{"threshold out of range", func(c *Config) { c.Similarity.Threshold = 1.5 }, false},
		{"negative margin", func(c *Config) { c.Similarity.Margin = -0.1 }, false},
		{"topK too large", func(c *Config) { c.Similarity.TopK = 10 }, false},
		{"zero passes", func(c *Config) { c.Passes.Max = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
