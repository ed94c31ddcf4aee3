package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// CloudConfig configures the cloud OCR HTTP client.
type CloudConfig struct {
	URL     string // full endpoint URL (required)
	Token   string // bearer token; empty sends no Authorization header
	Timeout time.Duration
}

// Cloud posts the image to a line-segmenting OCR endpoint and decodes the
// response into lines. The request body carries the image base64-encoded.
type Cloud struct {
	cfg    CloudConfig
	client *http.Client
	logger *slog.Logger
}

func NewCloud(cfg CloudConfig, logger *slog.Logger) *Cloud {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Cloud{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Cloud) Name() string { return "cloud" }

func (c *Cloud) RecognizeLines(ctx context.Context, imagePath string) ([]Line, error) {
	reqID := uuid.New().String()
	start := time.Now()

	img, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	body := map[string]any{
		"image":    base64.StdEncoding.EncodeToString(img),
		"filename": filepath.Base(imagePath),
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	c.logger.Info("ocr.cloud.request",
		"req_id", reqID,
		"image", filepath.Base(imagePath),
		"content_length", len(bs),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("ocr.cloud.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			c.logger.Warn("ocr.cloud.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Info("ocr.cloud.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ocr cloud status %d: %s", resp.StatusCode, truncate(string(raw), 2<<10))
	}

	if err := ValidateJSONAgainstSchema(cloudPayloadSchema, raw); err != nil {
		return nil, fmt.Errorf("ocr cloud payload: %w", err)
	}
	var out struct {
		Lines []Line `json:"lines"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode cloud payload: %w", err)
	}
	return out.Lines, nil
}
