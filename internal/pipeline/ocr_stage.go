package processor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"enrollscan/constants"
	"enrollscan/internal/common"
	"enrollscan/internal/entity"
	"enrollscan/internal/ocr"
	"enrollscan/internal/repository"
)

type OCRStage struct {
	JobsRepo  repository.ExtractJobRepository
	Extractor *ocr.Extractor
	Threshold float32 // confidence below this flags the job for review
	Logger    *slog.Logger
}

func NewOCRStage(jobs repository.ExtractJobRepository, ex *ocr.Extractor, threshold float32, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = 0.60
	}
	return &OCRStage{JobsRepo: jobs, Extractor: ex, Threshold: threshold, Logger: logger}
}

// Run starts an extract_job, runs OCR, and persists the OCR text.
// Returns the job ID and the extraction summary. Field extraction is NOT called.
func (s *OCRStage) Run(ctx context.Context, file *entity.ScanFile) (uuid.UUID, ocr.Result, error) {
	ext := constants.NormalizeExt(file.FileExt)
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return uuid.Nil, ocr.Result{}, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, file.FileExt)
	}

	// Start job in RUNNING
	job, err := s.JobsRepo.Start(ctx, file.ID)
	if err != nil {
		return uuid.Nil, ocr.Result{}, err
	}

	// OCR; the content hash keys the HEIC conversion cache
	ctx = ocr.WithContentHash(ctx, hex.EncodeToString(file.ContentHash))
	res, err := s.Extractor.Extract(ctx, file.SourcePath)
	if err != nil {
		_ = s.JobsRepo.FinishFailure(ctx, job.ID, err.Error())
		return job.ID, res, err
	}
	if strings.TrimSpace(res.Text) == "" {
		err := errors.New("ocr produced no text")
		_ = s.JobsRepo.FinishFailure(ctx, job.ID, err.Error())
		return job.ID, res, err
	}

	// Decide if review is needed
	needsReview := false
	if res.Confidence > 0 && res.Confidence < s.Threshold {
		s.Logger.Warn("ocr confidence low; needs review", "file_id", file.ID, "job_id", job.ID, "conf", res.Confidence)
		needsReview = true
	}

	// Persist OCR result (mark OCR_OK)
	out := repository.OCROutcome{
		Text:        res.Text,
		Provider:    res.Method,
		Confidence:  res.Confidence,
		NeedsReview: needsReview,
	}
	if err := s.JobsRepo.FinishOCR(ctx, job.ID, out); err != nil {
		return job.ID, res, err
	}

	return job.ID, res, nil
}
