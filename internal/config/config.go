package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr          string
	WorkerMetricsAddr string
	LogLevel          string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	DynamoDBTable      string
	DynamoDBEndpoint   string

	SimilarityThreshold float64
	StepClassifications []string
	ScanPageSize        int
	ScanPagesPerSecond  float64

	OutputDir string

	NATSURL        string
	NATSSubject    string
	BulkJobTimeout time.Duration

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
}

// Load resolves configuration from an optional YAML file (CONFIG_FILE)
// overlaid with environment variables. YAML keys mirror the env names;
// env always wins.
func Load() (Config, error) {
	file, err := loadConfigFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:          file.get("HTTP_ADDR", ":8000"),
		WorkerMetricsAddr: file.get("WORKER_METRICS_ADDR", ":9100"),
		LogLevel:          file.get("LOG_LEVEL", "info"),

		AWSRegion:          file.get("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:     file.get("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: file.get("AWS_SECRET_ACCESS_KEY", ""),
		DynamoDBTable:      file.get("DYNAMODB_TABLE_NAME", "TestSteps"),
		DynamoDBEndpoint:   file.get("DYNAMODB_ENDPOINT", ""),

		SimilarityThreshold: file.getFloat("SIMILARITY_THRESHOLD", 0.75),
		StepClassifications: splitList(file.get("STEP_CLASSIFICATIONS_FILTER", "TAP,TEXT")),
		ScanPageSize:        file.getInt("SCAN_PAGE_SIZE", 1000),
		ScanPagesPerSecond:  file.getFloat("SCAN_PAGES_PER_SECOND", 4),

		OutputDir: file.get("OUTPUT_DIR", "./cache_reports"),

		NATSURL:        file.get("NATS_URL", "nats://localhost:4222"),
		NATSSubject:    file.get("NATS_SUBJECT", "analysis.bulk.requested"),
		BulkJobTimeout: file.getDuration("BULK_JOB_TIMEOUT", 30*time.Minute),

		APIRateLimitRPS:   file.getFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: file.getInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    file.getInt("API_MAX_IN_FLIGHT", 64),
	}
	return cfg, nil
}

// Validate reports configuration that cannot support a run. Mains treat
// a failure here as fatal; nothing is re-validated mid-run.
func (c Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %v outside (0, 1]", c.SimilarityThreshold)
	}
	if strings.TrimSpace(c.DynamoDBTable) == "" {
		return fmt.Errorf("dynamodb table name is empty")
	}
	if c.ScanPageSize <= 0 {
		return fmt.Errorf("scan page size %d is not positive", c.ScanPageSize)
	}
	if c.ScanPagesPerSecond <= 0 {
		return fmt.Errorf("scan pages per second %v is not positive", c.ScanPagesPerSecond)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory is empty")
	}
	if len(c.StepClassifications) == 0 {
		return fmt.Errorf("step classifications filter is empty")
	}
	if c.BulkJobTimeout <= 0 {
		return fmt.Errorf("bulk job timeout %v is not positive", c.BulkJobTimeout)
	}
	return nil
}

// fileValues holds the flattened YAML file contents; lookups fall
// through env first, then the file, then the fallback.
type fileValues map[string]string

func loadConfigFile(path string) (fileValues, error) {
	if path == "" {
		return fileValues{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	parsed := make(map[string]any)
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(fileValues, len(parsed))
	for key, value := range parsed {
		if value == nil {
			continue
		}
		values[key] = fmt.Sprint(value)
	}
	return values, nil
}

func (f fileValues) get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v, ok := f[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (f fileValues) getInt(key string, fallback int) int {
	v := f.get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (f fileValues) getFloat(key string, fallback float64) float64 {
	v := f.get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (f fileValues) getDuration(key string, fallback time.Duration) time.Duration {
	v := f.get(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
