package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"enrollscan/constants"
	"enrollscan/internal/common"
	"enrollscan/internal/entity"
	"enrollscan/internal/repository"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	FilesRepo   repository.ScanFileRepository
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> default set
	logger      *slog.Logger
}

func NewFSIngestor(files repository.ScanFileRepository, logger *slog.Logger) *FSIngestor {
	return &FSIngestor{
		FilesRepo: files,
		logger:    logger,
	}
}

// IngestPath hashes one image and records it in the ledger. A file whose
// content hash is already known comes back with Deduplicated set.
func (i *FSIngestor) IngestPath(ctx context.Context, path, year string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("ingest.abs_path_error", "path", path, "error", err)
		return out, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !i.allowedExt(ext) {
		i.logger.Warn("ingest.skipped_extension", "path", abs, "ext", ext)
		return out, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		i.logger.Error("ingest.open_error", "path", abs, "error", err)
		return out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close_error", "path", abs, "error", err)
		}
	}(f)

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		i.logger.Error("ingest.hash_error", "path", abs, "error", err)
		return out, err
	}
	sum := h.Sum(nil)

	row, dedup, err := i.FilesRepo.UpsertByHash(ctx, &entity.ScanFile{
		SourcePath:  abs,
		ContentHash: sum,
		Filename:    filepath.Base(abs),
		FileExt:     ext,
		FileSize:    int(size),
		Year:        year,
		UploadedAt:  time.Now().UTC(),
	})
	if err != nil {
		return out, err
	}

	out = IngestionResult{
		SourcePath:   row.SourcePath,
		FileID:       row.ID.String(),
		HashHex:      hex.EncodeToString(sum),
		FileExt:      row.FileExt,
		Year:         row.Year,
		UploadedAt:   row.UploadedAt,
		Deduplicated: dedup,
	}
	return out, nil
}

// IngestDirectory walks root and ingests every image it finds. Per-file
// failures are collected in the results, never aborting the sweep.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root, year string,
	skipHidden bool,
) ([]IngestionResult, WalkStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, WalkStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats WalkStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Walked++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Errored++
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !i.allowedExt(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Images++

		r, err := i.IngestPath(ctx, path, year)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Errored++
			return nil
		}

		results = append(results, r)
		stats.Ingested++
		if r.Deduplicated {
			stats.Duplicates++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func (i *FSIngestor) allowedExt(ext string) bool {
	if i.AllowedExts != nil {
		_, ok := i.AllowedExts[ext]
		return ok
	}
	return AllowedExt(ext)
}

// AllowedExt reports whether ext (with or without a dot) is an image type
// the pipeline accepts.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden reports whether the path's base name is dot-prefixed.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
