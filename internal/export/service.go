// Package export renders the roster CSVs into a reviewable XLSX
// workbook, one sheet per output table.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"enrollscan/internal/course"
	"enrollscan/internal/roster"
)

// Service is a tiny façade over the roster files that produces XLSX bytes for exports.
type Service struct {
	outDir  string
	catalog *course.Catalog
	logger  *slog.Logger
}

func NewService(outDir string, catalog *course.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{outDir: outDir, catalog: catalog, logger: logger}
}

// ExportRosterXLSX returns a workbook (as bytes) with Students, Parents,
// Sessions, Courses and Failures sheets built from the current roster
// files. Missing roster files yield empty sheets.
func (s *Service) ExportRosterXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	students, err := roster.ReadStudents(filepath.Join(s.outDir, roster.StudentsCSV))
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	parents, err := roster.ReadParents(filepath.Join(s.outDir, roster.ParentsCSV))
	if err != nil {
		return nil, fmt.Errorf("load parents: %w", err)
	}
	sessions, err := roster.ReadSessions(filepath.Join(s.outDir, roster.SessionsCSV))
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	failures, err := roster.ReadFailures(filepath.Join(s.outDir, roster.FailuresCSV))
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}

	f := excelize.NewFile()
	sheets := []string{"Students", "Parents", "Sessions", "Courses", "Failures"}
	for _, sheet := range sheets {
		if index, _ := f.GetSheetIndex(sheet); index == -1 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex("Students")
	f.SetActiveSheet(activeIndex)

	writeHeaders := func(sheet string, headers []string) {
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
	}
	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	writeHeaders("Students", []string{"Student ID", "Name", "Nickname", "Date of Birth", "Sex", "School", "Source Image"})
	for i, r := range students {
		row := i + 2
		write("Students", 1, row, r.StudentID)
		write("Students", 2, row, r.Name)
		write("Students", 3, row, r.Nickname)
		write("Students", 4, row, r.DOB)
		write("Students", 5, row, r.Sex)
		write("Students", 6, row, truncate(r.School, 60))
		write("Students", 7, row, r.SourceImage)
	}
	_ = f.SetColWidth("Students", "A", "A", 14)
	_ = f.SetColWidth("Students", "B", "B", 28)
	_ = f.SetColWidth("Students", "C", "C", 14)
	_ = f.SetColWidth("Students", "D", "E", 12)
	_ = f.SetColWidth("Students", "F", "F", 32)
	_ = f.SetColWidth("Students", "G", "G", 40)

	writeHeaders("Parents", []string{"Name", "Mobile", "Student ID"})
	for i, r := range parents {
		row := i + 2
		write("Parents", 1, row, r.Name)
		write("Parents", 2, row, r.Mobile)
		write("Parents", 3, row, r.StudentID)
	}
	_ = f.SetColWidth("Parents", "A", "A", 28)
	_ = f.SetColWidth("Parents", "B", "C", 16)

	writeHeaders("Sessions", []string{"Student ID", "Course ID", "Course Title", "Year", "Source Image"})
	for i, r := range sessions {
		row := i + 2
		title := ""
		if c, ok := s.catalog.ByID(r.CourseID); ok {
			title = c.Title
		}
		write("Sessions", 1, row, r.StudentID)
		write("Sessions", 2, row, r.CourseID)
		write("Sessions", 3, row, title)
		write("Sessions", 4, row, r.Year)
		write("Sessions", 5, row, r.SourceImage)
	}
	_ = f.SetColWidth("Sessions", "A", "B", 14)
	_ = f.SetColWidth("Sessions", "C", "C", 32)
	_ = f.SetColWidth("Sessions", "D", "D", 10)
	_ = f.SetColWidth("Sessions", "E", "E", 40)

	writeHeaders("Courses", []string{"ID", "Title"})
	for i, c := range s.catalog.Courses() {
		row := i + 2
		write("Courses", 1, row, c.ID)
		write("Courses", 2, row, c.Title)
	}
	_ = f.SetColWidth("Courses", "A", "A", 8)
	_ = f.SetColWidth("Courses", "B", "B", 40)

	writeHeaders("Failures", []string{"Source Image", "Reason", "Failed At"})
	for i, r := range failures {
		row := i + 2
		write("Failures", 1, row, r.SourceImage)
		write("Failures", 2, row, truncate(r.Reason, 140))
		if !r.FailedAt.IsZero() {
			write("Failures", 3, row, r.FailedAt.Format("2006-01-02 15:04:05"))
		} else {
			write("Failures", 3, row, "")
		}
	}
	_ = f.SetColWidth("Failures", "A", "A", 40)
	_ = f.SetColWidth("Failures", "B", "B", 64)
	_ = f.SetColWidth("Failures", "C", "C", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"students", len(students),
		"parents", len(parents),
		"sessions", len(sessions),
		"failures", len(failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
