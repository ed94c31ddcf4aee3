package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"enrollscan/constants"
	"enrollscan/internal/common"
	"enrollscan/internal/entity"
)

// OCROutcome carries what the OCR stage learned about one image.
type OCROutcome struct {
	Text        string
	Provider    string
	Confidence  float32
	NeedsReview bool
}

type ExtractJobRepository interface {
	Start(ctx context.Context, fileID uuid.UUID) (*entity.ExtractJob, error)
	FinishOCR(ctx context.Context, jobID uuid.UUID, out OCROutcome) error
	FinishExtracted(ctx context.Context, jobID uuid.UUID, extracted json.RawMessage) error
	FinishRejected(ctx context.Context, jobID uuid.UUID, reason string, extracted json.RawMessage) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, fileID uuid.UUID) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		FileID:    fileID,
		StartedAt: time.Now().UTC(),
		Status:    string(constants.JobStatusRunning),
	}
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.rebind(`INSERT INTO extract_jobs (id, file_id, status, started_at) VALUES ($1, $2, $3, $4)`),
		job.ID.String(), job.FileID.String(), job.Status, job.StartedAt)
	if err != nil {
		r.log.Error("extract_job start failed", "file_id", fileID, "err", err)
		return nil, common.WrapError(err, "start extract job")
	}
	r.log.Info("extract_job started", "job_id", job.ID, "file_id", fileID)
	return job, nil
}

func (r *extractJobRepo) FinishOCR(ctx context.Context, jobID uuid.UUID, out OCROutcome) error {
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.rebind(`UPDATE extract_jobs
			SET status = $1, ocr_text = $2, provider = $3, confidence = $4, needs_review = $5
			WHERE id = $6`),
		string(constants.JobStatusOCROK), out.Text, out.Provider, out.Confidence, out.NeedsReview,
		jobID.String())
	if err != nil {
		r.log.Error("extract_job finish(OCR_OK) failed", "job_id", jobID, "err", err)
		return common.WrapError(err, "update extract job")
	}
	r.log.Info("extract_job ocr done", "job_id", jobID, "provider", out.Provider, "confidence", out.Confidence)
	return nil
}

func (r *extractJobRepo) FinishExtracted(ctx context.Context, jobID uuid.UUID, extracted json.RawMessage) error {
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.rebind(`UPDATE extract_jobs SET status = $1, extracted_json = $2, finished_at = $3 WHERE id = $4`),
		string(constants.JobStatusExtracted), string(extracted), time.Now().UTC(), jobID.String())
	if err != nil {
		r.log.Error("extract_job finish(EXTRACTED) failed", "job_id", jobID, "err", err)
		return common.WrapError(err, "update extract job")
	}
	r.log.Info("extract_job finished (EXTRACTED)", "job_id", jobID)
	return nil
}

func (r *extractJobRepo) FinishRejected(ctx context.Context, jobID uuid.UUID, reason string, extracted json.RawMessage) error {
	// keep whatever was extracted so rejects can be inspected later
	var extractedStr sql.NullString
	if len(extracted) > 0 {
		extractedStr = sql.NullString{String: string(extracted), Valid: true}
	}
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.rebind(`UPDATE extract_jobs
			SET status = $1, error_message = $2, extracted_json = $3, finished_at = $4
			WHERE id = $5`),
		string(constants.JobStatusRejected), reason, extractedStr, time.Now().UTC(), jobID.String())
	if err != nil {
		r.log.Error("extract_job finish(REJECTED) failed", "job_id", jobID, "err", err)
		return common.WrapError(err, "update extract job")
	}
	r.log.Warn("extract_job finished (REJECTED)", "job_id", jobID, "reason", reason)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.rebind(`UPDATE extract_jobs SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4`),
		string(constants.JobStatusFailed), message, time.Now().UTC(), jobID.String())
	if err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return common.WrapError(err, "update extract job")
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

// CountJobsByStatus reports how many extract jobs sit in each status.
func CountJobsByStatus(ctx context.Context, db *DB) (map[string]int, error) {
	rows, err := db.SQL.QueryContext(ctx, `SELECT status, COUNT(*) FROM extract_jobs GROUP BY status`)
	if err != nil {
		return nil, common.WrapError(err, "count extract jobs")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, common.WrapError(err, "scan job count")
		}
		out[status] = n
	}
	return out, rows.Err()
}

// CountScanFiles reports how many files the ledger has seen.
func CountScanFiles(ctx context.Context, db *DB) (int, error) {
	var n int
	if err := db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_files`).Scan(&n); err != nil {
		return 0, common.WrapError(err, "count scan files")
	}
	return n, nil
}

func (r *extractJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		r.db.rebind(`SELECT id, file_id, status, started_at, finished_at, error_message,
			confidence, needs_review, ocr_text, extracted_json, provider
			FROM extract_jobs WHERE id = $1`),
		jobID.String())

	var (
		job        entity.ExtractJob
		id, fileID string
		finishedAt sql.NullTime
		errMsg     sql.NullString
		confidence sql.NullFloat64
		ocrText    sql.NullString
		extracted  sql.NullString
		provider   sql.NullString
	)
	err := row.Scan(&id, &fileID, &job.Status, &job.StartedAt, &finishedAt, &errMsg,
		&confidence, &job.NeedsReview, &ocrText, &extracted, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "extract job")
	}
	if err != nil {
		return nil, common.WrapError(err, "read extract job")
	}
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, common.WrapError(err, "invalid extract job id")
	}
	if job.FileID, err = uuid.Parse(fileID); err != nil {
		return nil, common.WrapError(err, "invalid extract job file id")
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if confidence.Valid {
		c := float32(confidence.Float64)
		job.Confidence = &c
	}
	if ocrText.Valid {
		job.OCRText = &ocrText.String
	}
	if extracted.Valid {
		job.ExtractedJSON = json.RawMessage(extracted.String)
	}
	if provider.Valid {
		job.Provider = &provider.String
	}
	return &job, nil
}
