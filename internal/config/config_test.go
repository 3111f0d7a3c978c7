package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DYNAMODB_TABLE_NAME", "")
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("STEP_CLASSIFICATIONS_FILTER", "")
	t.Setenv("SCAN_PAGE_SIZE", "")
	t.Setenv("BULK_JOB_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DynamoDBTable != "TestSteps" {
		t.Fatalf("expected default table TestSteps, got %q", cfg.DynamoDBTable)
	}
	if cfg.SimilarityThreshold != 0.75 {
		t.Fatalf("expected default threshold 0.75, got %v", cfg.SimilarityThreshold)
	}
	if len(cfg.StepClassifications) != 2 || cfg.StepClassifications[0] != "TAP" || cfg.StepClassifications[1] != "TEXT" {
		t.Fatalf("expected default classifications [TAP TEXT], got %v", cfg.StepClassifications)
	}
	if cfg.ScanPageSize != 1000 {
		t.Fatalf("expected default page size 1000, got %d", cfg.ScanPageSize)
	}
	if cfg.BulkJobTimeout != 30*time.Minute {
		t.Fatalf("expected default job timeout 30m, got %v", cfg.BulkJobTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DYNAMODB_TABLE_NAME", "StepsStaging")
	t.Setenv("SIMILARITY_THRESHOLD", "0.85")
	t.Setenv("STEP_CLASSIFICATIONS_FILTER", "TAP, TEXT, SWIPE")
	t.Setenv("SCAN_PAGE_SIZE", "250")
	t.Setenv("BULK_JOB_TIMEOUT", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DynamoDBTable != "StepsStaging" {
		t.Fatalf("expected table override, got %q", cfg.DynamoDBTable)
	}
	if cfg.SimilarityThreshold != 0.85 {
		t.Fatalf("expected threshold 0.85, got %v", cfg.SimilarityThreshold)
	}
	if len(cfg.StepClassifications) != 3 || cfg.StepClassifications[2] != "SWIPE" {
		t.Fatalf("expected trimmed three-entry filter, got %v", cfg.StepClassifications)
	}
	if cfg.ScanPageSize != 250 {
		t.Fatalf("expected page size 250, got %d", cfg.ScanPageSize)
	}
	if cfg.BulkJobTimeout != 45*time.Minute {
		t.Fatalf("expected job timeout 45m, got %v", cfg.BulkJobTimeout)
	}
}

func TestLoadSeedsFromYAMLFileWithEnvWinning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "DYNAMODB_TABLE_NAME: StepsFromFile\nSCAN_PAGE_SIZE: 500\nSIMILARITY_THRESHOLD: 0.6\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DYNAMODB_TABLE_NAME", "StepsFromEnv")
	t.Setenv("SCAN_PAGE_SIZE", "")
	t.Setenv("SIMILARITY_THRESHOLD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DynamoDBTable != "StepsFromEnv" {
		t.Fatalf("env should win over file, got %q", cfg.DynamoDBTable)
	}
	if cfg.ScanPageSize != 500 {
		t.Fatalf("expected file-seeded page size 500, got %d", cfg.ScanPageSize)
	}
	if cfg.SimilarityThreshold != 0.6 {
		t.Fatalf("expected file-seeded threshold 0.6, got %v", cfg.SimilarityThreshold)
	}
}

func TestLoadFailsOnUnreadableConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRejectsUnusableConfiguration(t *testing.T) {
	base := func() Config {
		return Config{
			DynamoDBTable:       "TestSteps",
			SimilarityThreshold: 0.75,
			StepClassifications: []string{"TAP"},
			ScanPageSize:        1000,
			ScanPagesPerSecond:  4,
			OutputDir:           "./cache_reports",
			BulkJobTimeout:      time.Minute,
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold zero", func(c *Config) { c.SimilarityThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"empty table", func(c *Config) { c.DynamoDBTable = " " }},
		{"non-positive page size", func(c *Config) { c.ScanPageSize = 0 }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"empty classifications", func(c *Config) { c.StepClassifications = nil }},
		{"non-positive timeout", func(c *Config) { c.BulkJobTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
