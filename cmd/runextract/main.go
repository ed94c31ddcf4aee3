// Command runextract OCRs a single scan image and dumps the extracted
// enrollment record as JSON, without touching the ledger or roster.
// Useful for checking what the pipeline would make of one form.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"enrollscan/internal/common"
	"enrollscan/internal/extract"
	"enrollscan/internal/ocr"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runextract <image-path>")
		os.Exit(2)
	}
	imagePath := os.Args[1]
	if _, err := os.Stat(imagePath); err != nil {
		logger.Error("cannot read image", "path", imagePath, "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var provider ocr.Provider
	switch cfg.OCR.Provider {
	case "cloud":
		provider = ocr.NewCloud(ocr.CloudConfig{
			URL:     cfg.OCR.CloudURL,
			Token:   cfg.OCR.CloudToken,
			Timeout: cfg.OCR.Timeout,
		}, logger)
	default:
		provider = ocr.NewWorker(ocr.WorkerConfig{
			Script:    cfg.OCR.WorkerScript,
			PythonBin: cfg.OCR.PythonBin,
			Timeout:   cfg.OCR.Timeout,
		}, logger)
	}
	extractor := ocr.NewExtractor(ocr.Config{
		HeicConverter:     cfg.OCR.HeicConverter,
		ArtifactCacheDir:  cfg.OCR.ArtifactCacheDir,
		MinLineConfidence: float64(cfg.OCR.MinLineConfidence),
	}, provider, logger)

	start := time.Now()
	res, err := extractor.Extract(ctx, imagePath)
	dur := time.Since(start)

	if err != nil {
		logger.Error("text extraction failed", "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}
	logger.Info("text extraction OK",
		"provider", res.Method,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", dur.Milliseconds(),
	)

	rec := extract.NewExtractor(logger).Extract(res.Text, imagePath)

	dump := struct {
		Record     extract.Record `json:"record"`
		FormScore  int            `json:"formScore"`
		Confidence float32        `json:"confidence"`
		Provider   string         `json:"provider"`
		Warnings   []string       `json:"warnings,omitempty"`
	}{
		Record:     rec,
		FormScore:  ocr.FormScore(res.Text),
		Confidence: res.Confidence,
		Provider:   res.Method,
		Warnings:   res.Warnings,
	}
	out, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		logger.Error("marshal record", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
