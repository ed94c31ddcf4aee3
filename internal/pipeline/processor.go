package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"enrollscan/internal/common"
	"enrollscan/internal/repository"
	"enrollscan/internal/roster"
)

// Processor coordinates OCR (text extract) then field extraction for a
// single scan, recording failures so the batch can keep moving.
type Processor struct {
	Logger  *slog.Logger
	Files   repository.ScanFileRepository
	Roster  *roster.Assembler
	OCR     *OCRStage
	Extract *ExtractStage
}

func NewProcessor(logger *slog.Logger, files repository.ScanFileRepository, ros *roster.Assembler, ocr *OCRStage, extract *ExtractStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Files: files, Roster: ros, OCR: ocr, Extract: extract}
}

// ProcessFile runs OCR for a fileID (creating/advancing extract_job),
// then extracts and validates the form fields and appends roster rows.
// Returns the final jobID (same one started by OCR).
func (p *Processor) ProcessFile(ctx context.Context, fileID uuid.UUID) (uuid.UUID, error) {
	log := p.Logger
	if batchID := common.BatchIDFromContext(ctx); batchID != "" {
		log = log.With("batch_id", batchID)
	}

	file, err := p.Files.GetByID(ctx, fileID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get file: %w", err)
	}

	// 1) OCR stage → creates job + stores ocr_text + confidence
	jobID, ocrRes, err := p.OCR.Run(ctx, file)
	if err != nil {
		log.Error("processor.ocr.failed", "file_id", fileID, "err", err)
		if rerr := p.Roster.AddFailure(file.Filename, err.Error()); rerr != nil {
			log.Error("processor.failure_row.failed", "file_id", fileID, "err", rerr)
		}
		return jobID, err
	}
	log.Info("processor.ocr.ok",
		"file_id", fileID,
		"job_id", jobID,
		"provider", ocrRes.Method,
		"confidence", ocrRes.Confidence,
	)

	// 2) extract stage → reads job.ocr_text, validates fields, and
	// appends to the roster (or records the rejection).
	verdict, err := p.Extract.Run(ctx, jobID, file)
	if err != nil {
		log.Error("processor.extract.failed", "job_id", jobID, "err", err)
		return jobID, err
	}
	if verdict == VerdictRejected {
		log.Warn("processor.extract.rejected", "job_id", jobID, "file", file.Filename)
		return jobID, nil
	}
	log.Info("processor.extract.ok", "job_id", jobID)
	return jobID, nil
}
