package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"enrollscan/constants"
)

// DefaultMinLineConfidence matches the worker's own line filter so both
// providers are trimmed to the same floor.
const DefaultMinLineConfidence = 0.4

type Config struct {
	HeicConverter     string // "heif-convert" | "magick" | "sips"
	ArtifactCacheDir  string
	MinLineConfidence float64 // 0 means DefaultMinLineConfidence
}

// Result is the outcome of recognizing one image.
type Result struct {
	Text       string
	Lines      []Line
	Method     string // provider name
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// Extractor wires HEIC transcoding, a Provider, line filtering, text
// normalization, and confidence blending into one call.
type Extractor struct {
	cfg      Config
	provider Provider
	runner   Runner
	logger   *slog.Logger
}

func NewExtractor(cfg Config, provider Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	if cfg.MinLineConfidence == 0 {
		cfg.MinLineConfidence = DefaultMinLineConfidence
	}
	return &Extractor{cfg: cfg, provider: provider, runner: execRunner{}, logger: logger}
}

// Extract recognizes path, transcoding HEIC to JPEG first when needed.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "provider", e.provider.Name(), "ext", ext)

	if _, ok := constants.AllowedExtensions[ext]; !ok {
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}

	if constants.IsHEICExt(ext) {
		hashHex, _ := contentHashFromCtx(ctx)
		jpeg, cleanup, err := transcodeHEIC(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
		if err != nil {
			e.logger.Error("heic conversion failed", "path", path, "error", err)
			return Result{}, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		path = jpeg
	}

	lines, err := e.provider.RecognizeLines(ctx, path)
	if err != nil {
		return Result{Method: e.provider.Name(), Duration: time.Since(start)}, err
	}

	var warns []string
	lines, dropped := FilterLines(lines, e.cfg.MinLineConfidence)
	if dropped > 0 {
		warns = append(warns, fmt.Sprintf("dropped %d low-confidence lines", dropped))
	}

	txt := Normalize(JoinLines(lines))
	conf := BlendConfidence(MeanConfidence(lines), heuristicConfidence(txt))

	return Result{
		Text:       txt,
		Lines:      lines,
		Method:     e.provider.Name(),
		Duration:   time.Since(start),
		Warnings:   warns,
		Confidence: conf,
	}, nil
}
