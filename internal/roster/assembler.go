package roster

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"enrollscan/internal/extract"
)

// BatchStats summarizes one batch run's roster output.
type BatchStats struct {
	Processed   uint32
	Students    uint32
	Parents     uint32
	Sessions    uint32
	DupStudents uint32
	DupParents  uint32
	Failures    uint32
}

// Assembler accumulates accepted records and appends roster rows.
// Students are deduplicated by student id and parents by (name, mobile);
// duplicates are skipped, never merged. Dedup state is seeded from the
// CSVs already on disk, so re-running over an unchanged image set
// produces zero new rows.
type Assembler struct {
	students *Writer
	parents  *Writer
	sessions *Writer
	failures *Writer

	seenStudents map[string]struct{}
	seenParents  map[string]struct{}

	stats  BatchStats
	logger *slog.Logger
}

// NewAssembler prepares writers under outDir and seeds the dedup sets
// from any existing students and parents CSVs.
func NewAssembler(outDir string, logger *slog.Logger) (*Assembler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	a := &Assembler{
		students:     NewWriter(filepath.Join(outDir, StudentsCSV), logger),
		parents:      NewWriter(filepath.Join(outDir, ParentsCSV), logger),
		sessions:     NewWriter(filepath.Join(outDir, SessionsCSV), logger),
		failures:     NewWriter(filepath.Join(outDir, FailuresCSV), logger),
		seenStudents: make(map[string]struct{}),
		seenParents:  make(map[string]struct{}),
		logger:       logger,
	}

	existing, err := ReadStudents(filepath.Join(outDir, StudentsCSV))
	if err != nil {
		return nil, err
	}
	for _, s := range existing {
		a.seenStudents[s.StudentID] = struct{}{}
	}

	parents, err := ReadParents(filepath.Join(outDir, ParentsCSV))
	if err != nil {
		return nil, err
	}
	for _, p := range parents {
		a.seenParents[parentKey(p.Name, p.Mobile)] = struct{}{}
	}

	logger.Info("roster.assembler.ready",
		"out_dir", outDir,
		"known_students", len(a.seenStudents),
		"known_parents", len(a.seenParents),
	)
	return a, nil
}

// AddRecord appends the roster rows for one accepted record. A student id
// seen before (this run or a previous one) skips the whole record.
// courseID 0 means no course was matched and no session row is written.
func (a *Assembler) AddRecord(rec extract.Record, courseID int, year string) error {
	a.stats.Processed++

	if _, dup := a.seenStudents[rec.StudentID]; dup {
		a.stats.DupStudents++
		a.logger.Info("roster.student.duplicate", "student_id", rec.StudentID, "source_image", rec.SourceImage)
		return nil
	}

	student := StudentRow{
		StudentID:   rec.StudentID,
		Name:        rec.StudentName,
		Nickname:    rec.Nickname,
		DOB:         rec.DOB,
		Sex:         rec.Sex,
		School:      rec.School,
		SourceImage: rec.SourceImage,
	}
	if err := a.students.Append(student); err != nil {
		return err
	}
	a.seenStudents[rec.StudentID] = struct{}{}
	a.stats.Students++

	if rec.ParentName != "" {
		key := parentKey(rec.ParentName, rec.Mobile)
		if _, dup := a.seenParents[key]; dup {
			a.stats.DupParents++
		} else {
			parent := ParentRow{
				Name:      rec.ParentName,
				Mobile:    rec.Mobile,
				StudentID: rec.StudentID,
			}
			if err := a.parents.Append(parent); err != nil {
				return err
			}
			a.seenParents[key] = struct{}{}
			a.stats.Parents++
		}
	}

	if courseID > 0 {
		session := SessionRow{
			StudentID:   rec.StudentID,
			CourseID:    courseID,
			Year:        year,
			SourceImage: rec.SourceImage,
		}
		if err := a.sessions.Append(session); err != nil {
			return err
		}
		a.stats.Sessions++
	}

	return nil
}

// AddFailure records one skipped or rejected image. Every failure lands
// here; nothing is dropped silently.
func (a *Assembler) AddFailure(sourceImage, reason string) error {
	a.stats.Failures++
	a.logger.Warn("roster.failure", "source_image", sourceImage, "reason", reason)
	return a.failures.Append(FailureRow{
		SourceImage: sourceImage,
		Reason:      reason,
		FailedAt:    time.Now().UTC(),
	})
}

func (a *Assembler) Stats() BatchStats {
	return a.stats
}

// parentKey builds the (name, mobile) dedup key. Name casing and phone
// separators vary between scans of the same parent, so both normalize.
func parentKey(name, mobile string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, mobile)
	return strings.ToLower(strings.TrimSpace(name)) + "|" + digits
}
