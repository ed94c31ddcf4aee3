package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"enrollscan/internal/common"
	"enrollscan/internal/entity"
)

// ScanFileRepository is the ledger of ingested scan images.
type ScanFileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ScanFile, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.ScanFile, error)
	Create(ctx context.Context, f *entity.ScanFile) (*entity.ScanFile, error)
	// UpsertByHash returns the existing row for an already-seen content
	// hash, reporting dedup=true, or records a new one.
	UpsertByHash(ctx context.Context, f *entity.ScanFile) (*entity.ScanFile, bool, error)
}

type scanFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewScanFileRepository(db *DB, logger *slog.Logger) ScanFileRepository {
	return &scanFileRepo{db: db, logger: logger}
}

const scanFileColumns = `id, source_path, filename, file_ext, file_size, content_hash, year, uploaded_at`

func (r *scanFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScanFile, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		r.db.rebind(`SELECT `+scanFileColumns+` FROM scan_files WHERE id = $1`), id.String())
	return scanScanFile(row)
}

func (r *scanFileRepo) GetByHash(ctx context.Context, hash []byte) (*entity.ScanFile, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		r.db.rebind(`SELECT `+scanFileColumns+` FROM scan_files WHERE content_hash = $1`),
		hex.EncodeToString(hash))
	return scanScanFile(row)
}

func (r *scanFileRepo) Create(ctx context.Context, f *entity.ScanFile) (*entity.ScanFile, error) {
	out := *f
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.UploadedAt.IsZero() {
		out.UploadedAt = time.Now().UTC()
	}
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.rebind(`INSERT INTO scan_files (`+scanFileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		out.ID.String(), out.SourcePath, out.Filename, out.FileExt, out.FileSize,
		hex.EncodeToString(out.ContentHash), out.Year, out.UploadedAt)
	if err != nil {
		r.logger.Error("failed to record scan file", "source_path", out.SourcePath, "error", err)
		return nil, common.WrapError(err, "record scan file")
	}
	return &out, nil
}

func (r *scanFileRepo) UpsertByHash(ctx context.Context, f *entity.ScanFile) (*entity.ScanFile, bool, error) {
	existing, err := r.GetByHash(ctx, f.ContentHash)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}
	created, err := r.Create(ctx, f)
	if err != nil {
		r.logger.Error("failed to upsert scan file by hash", "source_path", f.SourcePath, "error", err)
		return nil, false, err
	}
	return created, false, nil
}

func scanScanFile(row *sql.Row) (*entity.ScanFile, error) {
	var (
		f       entity.ScanFile
		id      string
		hashHex string
	)
	err := row.Scan(&id, &f.SourcePath, &f.Filename, &f.FileExt, &f.FileSize, &hashHex, &f.Year, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "scan file")
	}
	if err != nil {
		return nil, common.WrapError(err, "read scan file")
	}
	if f.ID, err = uuid.Parse(id); err != nil {
		return nil, common.WrapError(err, "invalid scan file id")
	}
	if f.ContentHash, err = hex.DecodeString(hashHex); err != nil {
		return nil, common.WrapError(err, "invalid content hash")
	}
	return &f, nil
}
