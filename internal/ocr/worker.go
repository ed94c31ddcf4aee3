package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// WorkerConfig configures the local OCR worker subprocess.
type WorkerConfig struct {
	Script    string // path to the worker script (required)
	PythonBin string // interpreter; if empty -> "python3"
	Timeout   time.Duration
}

// Worker runs the PaddleOCR worker script as a one-shot subprocess per
// image and decodes its stdout.
//
// Protocol: `python3 <script> <image> [--exhaustive]`. Stdout is a JSON
// array of {"text","confidence"} objects; a JSON object with an "error"
// key signals worker failure. Stderr carries debug noise and is ignored
// except in error reports.
type Worker struct {
	cfg    WorkerConfig
	runner Runner
	logger *slog.Logger
}

func NewWorker(cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Worker{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (w *Worker) Name() string { return "worker" }

// RecognizeLines runs the worker and, when the first pass scores below the
// keyword threshold, retries once in exhaustive mode and keeps the
// better-scoring pass.
func (w *Worker) RecognizeLines(ctx context.Context, imagePath string) ([]Line, error) {
	start := time.Now()

	lines, err := w.runOnce(ctx, imagePath, false)
	if err != nil {
		w.logger.Error("ocr.worker.failed", "image", imagePath, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	score := FormScore(JoinLines(lines))
	if score < MinKeywordMatches {
		w.logger.Info("ocr.worker.retry_exhaustive", "image", imagePath, "score", score)
		retry, err2 := w.runOnce(ctx, imagePath, true)
		if err2 == nil && FormScore(JoinLines(retry)) > score {
			lines = retry
			score = FormScore(JoinLines(retry))
		}
	}

	w.logger.Info("ocr.worker.ok",
		"image", imagePath,
		"lines", len(lines),
		"score", score,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return lines, nil
}

func (w *Worker) runOnce(ctx context.Context, imagePath string, exhaustive bool) ([]Line, error) {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	args := []string{w.cfg.Script, imagePath}
	if exhaustive {
		args = append(args, "--exhaustive")
	}

	out, errb, err := w.runner.Run(ctx, w.logger, w.cfg.PythonBin, args...)
	if err != nil {
		// the worker reports missing dependencies as an error object on
		// stdout together with a non-zero exit
		if msg, ok := decodeWorkerError(out); ok {
			return nil, fmt.Errorf("ocr worker: %s", msg)
		}
		return nil, fmt.Errorf("ocr worker: %w: %s", err, truncate(string(errb), 2<<10))
	}
	return decodeWorkerLines(out)
}

type workerError struct {
	Error string `json:"error"`
}

func decodeWorkerError(out []byte) (string, bool) {
	var we workerError
	if err := json.Unmarshal(out, &we); err != nil || we.Error == "" {
		return "", false
	}
	return we.Error, true
}

// decodeWorkerLines validates the worker payload against its schema, then
// unmarshals it. An error object is surfaced as a worker failure.
func decodeWorkerLines(out []byte) ([]Line, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("ocr worker: empty stdout")
	}
	if msg, ok := decodeWorkerError(out); ok {
		return nil, fmt.Errorf("ocr worker: %s", msg)
	}
	if err := ValidateJSONAgainstSchema(workerPayloadSchema, out); err != nil {
		return nil, fmt.Errorf("ocr worker payload: %w", err)
	}
	var lines []Line
	if err := json.Unmarshal(out, &lines); err != nil {
		return nil, fmt.Errorf("decode worker payload: %w", err)
	}
	return lines, nil
}
