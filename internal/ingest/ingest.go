// Package ingest discovers scan images on disk and records them in the
// ledger, deduplicating by content hash.
package ingest

import (
	"context"
	"time"
)

// IngestionResult describes the outcome for a single file.
type IngestionResult struct {
	SourcePath   string
	FileID       string
	HashHex      string
	FileExt      string
	Year         string
	UploadedAt   time.Time
	Deduplicated bool   // content hash was already in the ledger
	Err          string // per-file failure, recorded instead of aborting the walk
}

// WalkStats aggregates one directory sweep.
type WalkStats struct {
	Walked     uint32 // every dirent visited
	Images     uint32 // files with an accepted extension
	Ingested   uint32 // recorded in the ledger (new or deduplicated)
	Duplicates uint32
	Errored    uint32
}

type Ingestor interface {
	IngestPath(ctx context.Context, path, year string) (IngestionResult, error)
	IngestDirectory(ctx context.Context, root, year string, skipHidden bool) ([]IngestionResult, WalkStats, error)
}
