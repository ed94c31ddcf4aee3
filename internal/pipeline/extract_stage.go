package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"enrollscan/constants"
	"enrollscan/internal/course"
	"enrollscan/internal/entity"
	"enrollscan/internal/extract"
	"enrollscan/internal/ocr"
	"enrollscan/internal/repository"
	"enrollscan/internal/roster"
	"enrollscan/internal/validate"
)

// Verdict is the outcome of the extract stage for one scan.
type Verdict string

const (
	VerdictAccepted Verdict = "ACCEPTED"
	VerdictRejected Verdict = "REJECTED"
)

type ExtractStage struct {
	Logger   *slog.Logger
	JobsRepo repository.ExtractJobRepository
	Fields   *extract.Extractor
	Catalog  *course.Catalog
	Roster   *roster.Assembler
}

func NewExtractStage(
	logger *slog.Logger,
	jobs repository.ExtractJobRepository,
	fields *extract.Extractor,
	catalog *course.Catalog,
	ros *roster.Assembler,
) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{
		Logger:   logger,
		JobsRepo: jobs,
		Fields:   fields,
		Catalog:  catalog,
		Roster:   ros,
	}
}

// Run executes field extraction for an existing OCR job (jobID).
// Preconditions: job is OCR_OK with non-empty ocr_text.
// Effects: validates the extracted record, appends roster rows (or a
// failure row when rejected), and finishes the job.
//
// Soft fields that fail validation are blanked with a warning; the
// record is rejected outright only when it cannot identify a student,
// contains Thai text, or does not look like an enrollment form at all.
func (s *ExtractStage) Run(ctx context.Context, jobID uuid.UUID, file *entity.ScanFile) (Verdict, error) {
	job, err := s.JobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("load job: %w", err)
	}
	if job.Status != string(constants.JobStatusOCROK) || job.OCRText == nil {
		return "", fmt.Errorf("job not ready for extract: status=%s ocr_text_empty=%t", job.Status, job.OCRText == nil)
	}

	if score := ocr.FormScore(*job.OCRText); score < ocr.MinKeywordMatches {
		return s.reject(ctx, jobID, file, nil,
			fmt.Sprintf("not recognizable as an enrollment form (keyword score %d)", score))
	}

	s.Logger.Info("extract fields start",
		"job_id", job.ID, "file_id", file.ID, "ocr_bytes", len(*job.OCRText))

	rec := s.Fields.Extract(*job.OCRText, file.Filename)

	// Thai values cannot be carried into the roster; check before any
	// field is blanked so the reason names the real problem.
	for _, v := range []string{rec.StudentName, rec.Nickname, rec.ParentName, rec.School, rec.CourseTitle} {
		if validate.ContainsThai(v) {
			return s.reject(ctx, jobID, file, marshalRecord(rec), "extracted fields contain Thai text")
		}
	}

	if rec.StudentID == "" {
		return s.reject(ctx, jobID, file, marshalRecord(rec), "no student id found")
	}
	if ok, reason := validate.IsValidStudentID(rec.StudentID); !ok {
		return s.reject(ctx, jobID, file, marshalRecord(rec), reason)
	}

	s.scrubSoftFields(&rec, jobID)

	if rec.StudentName == "" && rec.CourseTitle == "" {
		return s.reject(ctx, jobID, file, marshalRecord(rec), "no usable student name or course title")
	}

	courseID := 0
	if rec.CourseTitle != "" {
		c, _, err := s.Catalog.MatchOrAppend(rec.CourseTitle)
		if err != nil {
			s.Logger.Warn("course match failed", "job_id", jobID, "title", rec.CourseTitle, "err", err)
		} else {
			courseID = c.ID
		}
	}

	if err := s.Roster.AddRecord(rec, courseID, file.Year); err != nil {
		_ = s.JobsRepo.FinishFailure(ctx, jobID, err.Error())
		return "", fmt.Errorf("append roster: %w", err)
	}

	if err := s.JobsRepo.FinishExtracted(ctx, jobID, marshalRecord(rec)); err != nil {
		return "", err
	}

	s.Logger.Info("extracted fields successfully",
		"job_id", jobID,
		"student_id", rec.StudentID,
		"student", rec.StudentName,
		"course_id", courseID,
		"needs_review", job.NeedsReview,
	)
	return VerdictAccepted, nil
}

// scrubSoftFields blanks values the validators distrust. The record
// survives with a warning; only identity problems reject it.
func (s *ExtractStage) scrubSoftFields(rec *extract.Record, jobID uuid.UUID) {
	if rec.StudentName != "" && validate.IsBadName(rec.StudentName) {
		s.Logger.Warn("dropping suspicious student name", "job_id", jobID, "value", rec.StudentName)
		rec.StudentName = ""
	}
	if rec.Nickname != "" && validate.IsBadName(rec.Nickname) {
		s.Logger.Warn("dropping suspicious nickname", "job_id", jobID, "value", rec.Nickname)
		rec.Nickname = ""
	}
	if rec.ParentName != "" && validate.IsBadName(rec.ParentName) {
		s.Logger.Warn("dropping suspicious parent name", "job_id", jobID, "value", rec.ParentName)
		rec.ParentName = ""
	}
	if rec.Mobile != "" {
		if ok, reason := validate.IsValidPhone(rec.Mobile); !ok {
			s.Logger.Warn("dropping invalid mobile", "job_id", jobID, "value", rec.Mobile, "reason", reason)
			rec.Mobile = ""
		}
	}
	if rec.Sex != "" && rec.Sex != "M" && rec.Sex != "F" {
		s.Logger.Warn("dropping unrecognized sex value", "job_id", jobID, "value", rec.Sex)
		rec.Sex = ""
	}
}

func (s *ExtractStage) reject(ctx context.Context, jobID uuid.UUID, file *entity.ScanFile, raw json.RawMessage, reason string) (Verdict, error) {
	if err := s.JobsRepo.FinishRejected(ctx, jobID, reason, raw); err != nil {
		return "", err
	}
	if err := s.Roster.AddFailure(file.Filename, reason); err != nil {
		return "", err
	}
	return VerdictRejected, nil
}

func marshalRecord(rec extract.Record) json.RawMessage {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	return raw
}
