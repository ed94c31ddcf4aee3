package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrollscan/constants"
	"enrollscan/internal/course"
	"enrollscan/internal/extract"
	"enrollscan/internal/ingest"
	"enrollscan/internal/ocr"
	"enrollscan/internal/repository"
	"enrollscan/internal/roster"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider plays back canned OCR lines keyed by image base name.
type scriptedProvider struct {
	byBase map[string][]ocr.Line
	errs   map[string]error
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) RecognizeLines(_ context.Context, imagePath string) ([]ocr.Line, error) {
	base := filepath.Base(imagePath)
	if err := s.errs[base]; err != nil {
		return nil, err
	}
	return s.byBase[base], nil
}

func formLines(texts ...string) []ocr.Line {
	lines := make([]ocr.Line, len(texts))
	for i, t := range texts {
		lines[i] = ocr.Line{Text: t, Confidence: 0.9}
	}
	return lines
}

type pipelineEnv struct {
	proc     *Processor
	ingestor *ingest.FSIngestor
	jobs     repository.ExtractJobRepository
	db       *repository.DB
	catalog  *course.Catalog
	scans    string
	out      string
}

// newPipelineEnv wires the full batch pipeline against an in-memory
// ledger, a temp roster directory, and a catalog that knows "Robotics".
func newPipelineEnv(t *testing.T, provider *scriptedProvider) *pipelineEnv {
	t.Helper()
	logger := discardLogger()

	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	out := t.TempDir()
	coursesCSV := filepath.Join(out, "courses.csv")
	require.NoError(t, os.WriteFile(coursesCSV, []byte("id,title\n1,Robotics\n"), 0o644))
	catalog, err := course.Load(coursesCSV, logger)
	require.NoError(t, err)

	assembler, err := roster.NewAssembler(out, logger)
	require.NoError(t, err)

	files := repository.NewScanFileRepository(db, logger)
	jobs := repository.NewExtractJobRepository(db, logger)

	textExtractor := ocr.NewExtractor(ocr.Config{}, provider, logger)
	ocrStage := NewOCRStage(jobs, textExtractor, 0, logger)
	extractStage := NewExtractStage(logger, jobs, extract.NewExtractor(logger), catalog, assembler)

	return &pipelineEnv{
		proc:     NewProcessor(logger, files, assembler, ocrStage, extractStage),
		ingestor: ingest.NewFSIngestor(files, logger),
		jobs:     jobs,
		db:       db,
		catalog:  catalog,
		scans:    t.TempDir(),
		out:      out,
	}
}

// ingest writes a fake image under the scans dir and records it in the
// ledger, returning the file ID the processor operates on.
func (e *pipelineEnv) ingest(t *testing.T, name string) uuid.UUID {
	t.Helper()
	path := filepath.Join(e.scans, name)
	require.NoError(t, os.WriteFile(path, []byte("image-bytes-"+name), 0o644))
	res, err := e.ingestor.IngestPath(context.Background(), path, "2025")
	require.NoError(t, err)
	id, err := uuid.Parse(res.FileID)
	require.NoError(t, err)
	return id
}

func (e *pipelineEnv) jobStatuses(t *testing.T) map[string]int {
	t.Helper()
	counts, err := repository.CountJobsByStatus(context.Background(), e.db)
	require.NoError(t, err)
	return counts
}

func (e *pipelineEnv) failureRows(t *testing.T) []roster.FailureRow {
	t.Helper()
	rows, err := roster.ReadFailures(filepath.Join(e.out, roster.FailuresCSV))
	require.NoError(t, err)
	return rows
}

func TestProcessFile_AcceptedRecord(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"form1.jpg": formLines(
			"Student ID: 202345678",
			"Name: Somchai Prasert",
			"Nickname: Tom",
			"Date of Birth: 12/03/2015",
			"Sex: male",
			"Parent Name: Niran Prasert",
			"Mobile: 081-234-5678",
			"School: Bangkok Primary",
			"Course: Robotics",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "form1.jpg")

	jobID, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	job, err := env.jobs.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusExtracted), job.Status)
	assert.False(t, job.NeedsReview)
	require.NotNil(t, job.Provider)
	assert.Equal(t, "scripted", *job.Provider)
	assert.NotEmpty(t, job.ExtractedJSON)

	students, err := roster.ReadStudents(filepath.Join(env.out, roster.StudentsCSV))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "202345678", students[0].StudentID)
	assert.Equal(t, "Somchai Prasert", students[0].Name)
	assert.Equal(t, "Tom", students[0].Nickname)
	assert.Equal(t, "12/03/2015", students[0].DOB)
	assert.Equal(t, "M", students[0].Sex)
	assert.Equal(t, "Bangkok Primary", students[0].School)
	assert.Equal(t, "form1.jpg", students[0].SourceImage)

	parents, err := roster.ReadParents(filepath.Join(env.out, roster.ParentsCSV))
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, "Niran Prasert", parents[0].Name)
	assert.Equal(t, "0812345678", parents[0].Mobile)
	assert.Equal(t, "202345678", parents[0].StudentID)

	sessions, err := roster.ReadSessions(filepath.Join(env.out, roster.SessionsCSV))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].CourseID)
	assert.Equal(t, "2025", sessions[0].Year)

	assert.Empty(t, env.failureRows(t))
}

func TestProcessFile_AppendsUnknownCourse(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"form2.jpg": formLines(
			"Student ID: 203456789",
			"Name: Malee Chaiyo",
			"Course: Advanced Pottery",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "form2.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	courses := env.catalog.Courses()
	require.Len(t, courses, 2)
	assert.Equal(t, course.Course{ID: 2, Title: "Advanced Pottery"}, courses[1])

	sessions, err := roster.ReadSessions(filepath.Join(env.out, roster.SessionsCSV))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].CourseID)
}

func TestProcessFile_ScrubsSuspectFields(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"form3.jpg": formLines(
			"Student ID: 202345678",
			"Name: Somchai Prasert",
			"Nickname: XY", // too short to be a real nickname
			"Sex: unknown",
			"Parent: Niran Prasert",
			"Course: Robotics",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "form3.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	students, err := roster.ReadStudents(filepath.Join(env.out, roster.StudentsCSV))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Somchai Prasert", students[0].Name)
	assert.Empty(t, students[0].Nickname)
	assert.Empty(t, students[0].Sex)

	parents, err := roster.ReadParents(filepath.Join(env.out, roster.ParentsCSV))
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, "Niran Prasert", parents[0].Name)
	assert.Empty(t, parents[0].Mobile)
}

func TestProcessFile_RejectsThaiText(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"thai.jpg": formLines(
			"Student ID: 202345678",
			"Name: สมชาย",
			"Course: Robotics",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "thai.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	assert.Equal(t, 1, env.jobStatuses(t)[string(constants.JobStatusRejected)])

	failures := env.failureRows(t)
	require.Len(t, failures, 1)
	assert.Equal(t, "thai.jpg", failures[0].SourceImage)
	assert.Contains(t, failures[0].Reason, "Thai text")

	students, err := roster.ReadStudents(filepath.Join(env.out, roster.StudentsCSV))
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestProcessFile_RejectsMissingStudentID(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"noid.jpg": formLines(
			"Name: Somchai Prasert",
			"School: Bangkok Primary",
			"Course: Robotics",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "noid.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	assert.Equal(t, 1, env.jobStatuses(t)[string(constants.JobStatusRejected)])

	failures := env.failureRows(t)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Reason, "no student id")
}

func TestProcessFile_RejectsNonFormImage(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"poster.jpg": formLines(
			"Shopping for the week",
			"eggs and milk",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "poster.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	assert.Equal(t, 1, env.jobStatuses(t)[string(constants.JobStatusRejected)])

	failures := env.failureRows(t)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Reason, "not recognizable as an enrollment form")
}

func TestProcessFile_OCRFailureRecorded(t *testing.T) {
	provider := &scriptedProvider{
		errs: map[string]error{"broken.jpg": errors.New("ocr backend offline")},
	}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "broken.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.Error(t, err)

	assert.Equal(t, 1, env.jobStatuses(t)[string(constants.JobStatusFailed)])

	failures := env.failureRows(t)
	require.Len(t, failures, 1)
	assert.Equal(t, "broken.jpg", failures[0].SourceImage)
	assert.Contains(t, failures[0].Reason, "ocr backend offline")
}

func TestProcessFile_EmptyOCRTextFails(t *testing.T) {
	// provider has no lines scripted for the file, so OCR yields no text
	provider := &scriptedProvider{}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "blank.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no text")

	assert.Equal(t, 1, env.jobStatuses(t)[string(constants.JobStatusFailed)])
}

func TestProcessFile_RerunAddsNothing(t *testing.T) {
	provider := &scriptedProvider{byBase: map[string][]ocr.Line{
		"form1.jpg": formLines(
			"Student ID: 202345678",
			"Name: Somchai Prasert",
			"Parent Name: Niran Prasert",
			"Mobile: 081-234-5678",
			"Course: Robotics",
		),
	}}
	env := newPipelineEnv(t, provider)
	fileID := env.ingest(t, "form1.jpg")

	_, err := env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)
	_, err = env.proc.ProcessFile(context.Background(), fileID)
	require.NoError(t, err)

	// the second pass runs a fresh job but the roster dedup swallows it
	assert.Equal(t, 2, env.jobStatuses(t)[string(constants.JobStatusExtracted)])

	students, err := roster.ReadStudents(filepath.Join(env.out, roster.StudentsCSV))
	require.NoError(t, err)
	assert.Len(t, students, 1)

	parents, err := roster.ReadParents(filepath.Join(env.out, roster.ParentsCSV))
	require.NoError(t, err)
	assert.Len(t, parents, 1)

	sessions, err := roster.ReadSessions(filepath.Join(env.out, roster.SessionsCSV))
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
