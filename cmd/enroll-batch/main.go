package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"enrollscan/internal/common"
	"enrollscan/internal/course"
	"enrollscan/internal/export"
	"enrollscan/internal/extract"
	"enrollscan/internal/ingest"
	"enrollscan/internal/ocr"
	processor "enrollscan/internal/pipeline"
	repo "enrollscan/internal/repository"
	"enrollscan/internal/roster"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		inmem     = flag.Bool("inmem", false, "use in-memory SQLite ledger")
		dir       = flag.String("dir", "", "directory of scanned enrollment forms (required)")
		yearFlag  = flag.String("year", "", "enrollment year label (default: derived from the directory name)")
		out       = flag.String("out", "", "output directory for roster CSVs (default from config)")
		courses   = flag.String("courses", "", "master courses CSV path (default from config)")
		xlsx      = flag.String("xlsx", "", "XLSX export path (default <out>/roster.xlsx)")
		watch     = flag.Bool("watch", false, "keep watching the directory for new scans after the batch")
		reprocess = flag.Bool("reprocess", false, "re-run extraction for files already in the ledger")
	)
	flag.Parse()

	// Validate required flags
	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *out == "" {
		*out = cfg.Output.Dir
	}
	if *courses == "" {
		*courses = cfg.Output.CoursesCSV
	}
	if *xlsx == "" {
		*xlsx = filepath.Join(*out, "roster.xlsx")
	}

	year := *yearFlag
	if year == "" {
		year = deriveYear(*dir)
	}

	batchID := uuid.New().String()
	ctx = common.WithBatchID(ctx, batchID)
	logger = logger.With("batch_id", batchID)

	// Initialize the scan ledger
	ledgerCfg := repo.Config{
		DSN:              cfg.Ledger.DSN,
		DataDir:          cfg.Ledger.DataDir,
		MaxConns:         cfg.Ledger.MaxConns,
		MinConns:         cfg.Ledger.MinConns,
		MaxConnLifetime:  cfg.Ledger.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Ledger.MaxConnIdleTime,
		DialTimeout:      cfg.Ledger.DialTimeout,
		StatementTimeout: cfg.Ledger.StatementTimeout,
	}
	if *inmem {
		ledgerCfg.DSN = ":memory:"
	}
	db, err := repo.Open(ctx, ledgerCfg, logger)
	if err != nil {
		logger.Error("failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	// Wire repositories
	filesRepo := repo.NewScanFileRepository(db, logger)
	jobsRepo := repo.NewExtractJobRepository(db, logger)

	// Load course catalog and roster writers
	catalog, err := course.Load(*courses, logger)
	if err != nil {
		logger.Error("failed to load course catalog", "path", *courses, "error", err)
		os.Exit(1)
	}
	assembler, err := roster.NewAssembler(*out, logger)
	if err != nil {
		logger.Error("failed to prepare roster output", "dir", *out, "error", err)
		os.Exit(1)
	}

	// Setup OCR
	var provider ocr.Provider
	switch cfg.OCR.Provider {
	case "cloud":
		provider = ocr.NewCloud(ocr.CloudConfig{
			URL:     cfg.OCR.CloudURL,
			Token:   cfg.OCR.CloudToken,
			Timeout: cfg.OCR.Timeout,
		}, logger)
		logger.Info("cloud OCR client initialized", "url", cfg.OCR.CloudURL)
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

	// Setup processor
	ocrStage := processor.NewOCRStage(jobsRepo, extractor, cfg.OCR.ReviewThreshold, logger)
	extractStage := processor.NewExtractStage(logger, jobsRepo, extract.NewExtractor(logger), catalog, assembler)
	proc := processor.NewProcessor(logger, filesRepo, assembler, ocrStage, extractStage)

	// Setup ingestor
	ingestor := ingest.NewFSIngestor(filesRepo, logger)

	// Ingest directory
	logger.Info("starting ingestion", "dir", *dir, "year", year)
	ingestionResults, stats, err := ingestor.IngestDirectory(ctx, *dir, year, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}

	// Extract file IDs from ingestion results
	var ingested []uuid.UUID
	skipped := 0
	for _, result := range ingestionResults {
		if result.Err != "" {
			continue
		}
		if result.Deduplicated && !*reprocess {
			skipped++
			continue
		}
		fileID, err := uuid.Parse(result.FileID)
		if err != nil {
			logger.Error("failed to parse file ID", "file_id", result.FileID, "error", err)
			continue
		}
		ingested = append(ingested, fileID)
	}
	logger.Info("ingestion complete",
		"files_to_process", len(ingested),
		"walked", stats.Walked,
		"images", stats.Images,
		"ingested", stats.Ingested,
		"duplicates", stats.Duplicates,
		"errored", stats.Errored,
		"skipped", skipped)

	// Process each ingested file
	processed := 0
	failures := 0

	for _, fileID := range ingested {
		logger.Info("processing file", "file_id", fileID)
		if _, err := proc.ProcessFile(ctx, fileID); err != nil {
			logger.Error("failed to process file", "file_id", fileID, "error", err)
			failures++
		} else {
			processed++
		}
	}

	// Keep watching the directory for freshly dropped scans
	if *watch {
		logger.Info("watching for new scans", "dir", *dir)
		evCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:    []string{*dir},
			Debounce: 2 * time.Second,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}

	watchLoop:
		for {
			select {
			case <-ctx.Done():
				break watchLoop
			case path, ok := <-evCh:
				if !ok {
					break watchLoop
				}
				res, err := ingestor.IngestPath(ctx, path, year)
				if err != nil {
					logger.Error("failed to ingest new file", "path", path, "error", err)
					continue
				}
				if res.Deduplicated && !*reprocess {
					continue
				}
				fileID, err := uuid.Parse(res.FileID)
				if err != nil {
					logger.Error("failed to parse file ID", "file_id", res.FileID, "error", err)
					continue
				}
				if _, err := proc.ProcessFile(ctx, fileID); err != nil {
					logger.Error("failed to process file", "file_id", fileID, "error", err)
					failures++
				} else {
					processed++
				}
			case werr, ok := <-errCh:
				if !ok {
					break watchLoop
				}
				logger.Error("watcher reported error", "error", werr)
			}
		}
		logger.Info("watch stopped")
	}

	// Export to XLSX
	logger.Info("exporting to XLSX", "output", *xlsx)
	exportService := export.NewService(*out, catalog, logger)

	xlsxBytes, err := exportService.ExportRosterXLSX(ctx)
	if err != nil {
		logger.Error("failed to export roster workbook", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*xlsx, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	// Log summary
	rosterStats := assembler.Stats()
	logger.Info("batch processing complete",
		"files_processed", processed,
		"process_failures", failures,
		"students", rosterStats.Students,
		"parents", rosterStats.Parents,
		"sessions", rosterStats.Sessions,
		"rejected_or_failed", rosterStats.Failures,
		"output_dir", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Students: %d (duplicates skipped: %d)\n", rosterStats.Students, rosterStats.DupStudents)
	fmt.Printf("- Parents: %d (duplicates skipped: %d)\n", rosterStats.Parents, rosterStats.DupParents)
	fmt.Printf("- Sessions: %d\n", rosterStats.Sessions)
	fmt.Printf("- Failures: %d\n", rosterStats.Failures)
	fmt.Printf("- Output: %s\n", *out)
}

// deriveYear labels the batch from its folder name when that name looks
// like a four-digit year (Gregorian or Buddhist-era).
func deriveYear(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if len(base) == 4 {
		if _, err := strconv.Atoi(base); err == nil {
			return base
		}
	}
	return ""
}
