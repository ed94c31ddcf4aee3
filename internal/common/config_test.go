package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// blank values fall through to the defaults
	for _, key := range []string{
		"LEDGER_DSN", "ENROLL_DATA_DIR", "LEDGER_MAX_CONNS",
		"OCR_PROVIDER", "OCR_PYTHON", "OCR_TIMEOUT",
		"OCR_REVIEW_THRESHOLD", "OCR_MIN_LINE_CONFIDENCE", "ENROLL_OUTPUT_DIR",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "", cfg.Ledger.DSN)
	assert.Equal(t, "./data", cfg.Ledger.DataDir)
	assert.Equal(t, int32(10), cfg.Ledger.MaxConns)

	assert.Equal(t, "worker", cfg.OCR.Provider)
	assert.Equal(t, "python3", cfg.OCR.PythonBin)
	assert.Equal(t, 2*time.Minute, cfg.OCR.Timeout)
	assert.InDelta(t, 0.6, cfg.OCR.ReviewThreshold, 0.001)
	assert.InDelta(t, 0.4, cfg.OCR.MinLineConfidence, 0.001)

	assert.Equal(t, "./out", cfg.Output.Dir)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LEDGER_DSN", "postgres://u:p@localhost:5432/enroll")
	t.Setenv("LEDGER_MAX_CONNS", "25")
	t.Setenv("OCR_PROVIDER", "cloud")
	t.Setenv("OCR_CLOUD_URL", "https://ocr.example.com/v1/recognize")
	t.Setenv("OCR_TIMEOUT", "45s")
	t.Setenv("OCR_REVIEW_THRESHOLD", "0.75")
	t.Setenv("ENROLL_OUTPUT_DIR", "/var/lib/enroll/out")

	cfg := LoadConfig()

	assert.Equal(t, "postgres://u:p@localhost:5432/enroll", cfg.Ledger.DSN)
	assert.Equal(t, int32(25), cfg.Ledger.MaxConns)
	assert.Equal(t, "cloud", cfg.OCR.Provider)
	assert.Equal(t, 45*time.Second, cfg.OCR.Timeout)
	assert.InDelta(t, 0.75, cfg.OCR.ReviewThreshold, 0.001)
	assert.Equal(t, "/var/lib/enroll/out", cfg.Output.Dir)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	t.Setenv("LEDGER_MAX_CONNS", "lots")
	t.Setenv("OCR_TIMEOUT", "soon")
	t.Setenv("OCR_REVIEW_THRESHOLD", "high")

	cfg := LoadConfig()

	assert.Equal(t, int32(10), cfg.Ledger.MaxConns)
	assert.Equal(t, 2*time.Minute, cfg.OCR.Timeout)
	assert.InDelta(t, 0.6, cfg.OCR.ReviewThreshold, 0.001)
}

func TestConfigValidate(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("OCR_PROVIDER", "carrier-pigeon")
		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorContains(t, err, "OCR_PROVIDER")
	})

	t.Run("cloud provider needs a url", func(t *testing.T) {
		t.Setenv("OCR_PROVIDER", "cloud")
		t.Setenv("OCR_CLOUD_URL", "")
		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.ErrorContains(t, err, "OCR_CLOUD_URL")
	})

	t.Run("worker provider needs a script", func(t *testing.T) {
		t.Setenv("OCR_PROVIDER", "worker")
		t.Setenv("OCR_WORKER_SCRIPT", " ")
		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.ErrorContains(t, err, "OCR_WORKER_SCRIPT")
	})
}
