package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Ledger LedgerConfig
	OCR    OCRConfig
	Output OutputConfig
}

// LedgerConfig holds scan-ledger database configuration.
// An empty DSN selects a local SQLite file under the data directory;
// a postgres:// DSN selects the pgx pool instead.
type LedgerConfig struct {
	DSN              string
	DataDir          string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds OCR-provider configuration.
type OCRConfig struct {
	Provider          string // "worker" | "cloud"
	WorkerScript      string
	PythonBin         string
	CloudURL          string
	CloudToken        string
	Timeout           time.Duration
	HeicConverter     string
	ArtifactCacheDir  string
	ReviewThreshold   float32
	MinLineConfidence float32
}

// OutputConfig holds roster CSV output configuration.
type OutputConfig struct {
	Dir        string
	CoursesCSV string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Ledger: LedgerConfig{
			DSN:              getEnv("LEDGER_DSN", ""),
			DataDir:          getEnv("ENROLL_DATA_DIR", "./data"),
			MaxConns:         getEnvAsInt32("LEDGER_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("LEDGER_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("LEDGER_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("LEDGER_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("LEDGER_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("LEDGER_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Provider:          getEnv("OCR_PROVIDER", "worker"),
			WorkerScript:      getEnv("OCR_WORKER_SCRIPT", "./ocr-service/main.py"),
			PythonBin:         getEnv("OCR_PYTHON", "python3"),
			CloudURL:          getEnv("OCR_CLOUD_URL", ""),
			CloudToken:        getEnv("OCR_CLOUD_TOKEN", ""),
			Timeout:           getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
			HeicConverter:     getEnv("HEIC_CONVERTER", "magick"),
			ArtifactCacheDir:  getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			ReviewThreshold:   getEnvAsFloat32("OCR_REVIEW_THRESHOLD", 0.6),
			MinLineConfidence: getEnvAsFloat32("OCR_MIN_LINE_CONFIDENCE", 0.4),
		},
		Output: OutputConfig{
			Dir:        getEnv("ENROLL_OUTPUT_DIR", "./out"),
			CoursesCSV: getEnv("ENROLL_COURSES_CSV", "./out/courses.csv"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("OCR_PROVIDER", c.OCR.Provider, Required, OneOf("worker", "cloud"))
	switch c.OCR.Provider {
	case "worker":
		v.Field("OCR_WORKER_SCRIPT", c.OCR.WorkerScript, Required)
	case "cloud":
		v.Field("OCR_CLOUD_URL", c.OCR.CloudURL, Required)
	}
	v.Field("ENROLL_OUTPUT_DIR", c.Output.Dir, Required)
	v.Field("ENROLL_COURSES_CSV", c.Output.CoursesCSV, Required)
	return ValidateAndReturnError(v)
}
