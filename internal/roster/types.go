// Package roster accumulates accepted enrollment rows across a batch and
// appends them to the output CSVs, plus a failures CSV for everything
// rejected along the way.
package roster

import "time"

// StudentRow is one line of students.csv, keyed by StudentID.
type StudentRow struct {
	StudentID   string `csv:"student_id"`
	Name        string `csv:"name"`
	Nickname    string `csv:"nickname"`
	DOB         string `csv:"dob"`
	Sex         string `csv:"sex"`
	School      string `csv:"school"`
	SourceImage string `csv:"source_image"`
}

// ParentRow is one line of parents.csv, deduplicated by (Name, Mobile).
type ParentRow struct {
	Name      string `csv:"name"`
	Mobile    string `csv:"mobile"`
	StudentID string `csv:"student_id"`
}

// SessionRow links a student to a matched course for a batch year.
type SessionRow struct {
	StudentID   string `csv:"student_id"`
	CourseID    int    `csv:"course_id"`
	Year        string `csv:"year"`
	SourceImage string `csv:"source_image"`
}

// FailureRow records one skipped or rejected image and why.
type FailureRow struct {
	SourceImage string    `csv:"source_image"`
	Reason      string    `csv:"reason"`
	FailedAt    time.Time `csv:"failed_at"`
}

// Output file names within the batch output directory.
const (
	StudentsCSV = "students.csv"
	ParentsCSV  = "parents.csv"
	SessionsCSV = "sessions.csv"
	FailuresCSV = "failures.csv"
)
