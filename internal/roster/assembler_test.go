package roster

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrollscan/internal/extract"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord(studentID string) extract.Record {
	return extract.Record{
		SourceImage: "scan1.jpg",
		StudentID:   studentID,
		StudentName: "Somchai Jaidee",
		Nickname:    "Tom",
		DOB:         "15/03/2015",
		Sex:         "M",
		ParentName:  "Somsri Jaidee",
		Mobile:      "0812345678",
		School:      "Anuban Bangkok",
		CourseTitle: "Robotics 101",
	}
}

func TestAddRecord_WritesAllRows(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)

	require.NoError(t, a.AddRecord(sampleRecord("202345678"), 3, "2024"))

	students, err := ReadStudents(filepath.Join(dir, StudentsCSV))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, StudentRow{
		StudentID:   "202345678",
		Name:        "Somchai Jaidee",
		Nickname:    "Tom",
		DOB:         "15/03/2015",
		Sex:         "M",
		School:      "Anuban Bangkok",
		SourceImage: "scan1.jpg",
	}, students[0])

	parents, err := ReadParents(filepath.Join(dir, ParentsCSV))
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, ParentRow{Name: "Somsri Jaidee", Mobile: "0812345678", StudentID: "202345678"}, parents[0])

	sessions, err := ReadSessions(filepath.Join(dir, SessionsCSV))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, SessionRow{StudentID: "202345678", CourseID: 3, Year: "2024", SourceImage: "scan1.jpg"}, sessions[0])

	st := a.Stats()
	assert.Equal(t, uint32(1), st.Processed)
	assert.Equal(t, uint32(1), st.Students)
	assert.Equal(t, uint32(1), st.Parents)
	assert.Equal(t, uint32(1), st.Sessions)
}

func TestAddRecord_DuplicateStudentSkipsWholeRecord(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)

	require.NoError(t, a.AddRecord(sampleRecord("202345678"), 3, "2024"))

	// same student id again, different parent; nothing may be written
	dup := sampleRecord("202345678")
	dup.ParentName = "Another Parent"
	dup.Mobile = "0898765432"
	require.NoError(t, a.AddRecord(dup, 4, "2024"))

	students, _ := ReadStudents(filepath.Join(dir, StudentsCSV))
	parents, _ := ReadParents(filepath.Join(dir, ParentsCSV))
	sessions, _ := ReadSessions(filepath.Join(dir, SessionsCSV))
	assert.Len(t, students, 1)
	assert.Len(t, parents, 1)
	assert.Len(t, sessions, 1)

	st := a.Stats()
	assert.Equal(t, uint32(2), st.Processed)
	assert.Equal(t, uint32(1), st.DupStudents)
}

func TestAddRecord_SharedParentWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)

	first := sampleRecord("202345678")
	require.NoError(t, a.AddRecord(first, 3, "2024"))

	// sibling: same parent, name cased differently and mobile formatted
	// differently, still one parent row
	sibling := sampleRecord("202345679")
	sibling.ParentName = "somsri jaidee"
	sibling.Mobile = "081-234-5678"
	require.NoError(t, a.AddRecord(sibling, 3, "2024"))

	students, _ := ReadStudents(filepath.Join(dir, StudentsCSV))
	parents, _ := ReadParents(filepath.Join(dir, ParentsCSV))
	assert.Len(t, students, 2)
	assert.Len(t, parents, 1)

	st := a.Stats()
	assert.Equal(t, uint32(1), st.DupParents)
}

func TestAddRecord_NoParentName(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)

	rec := sampleRecord("202345678")
	rec.ParentName = ""
	require.NoError(t, a.AddRecord(rec, 3, "2024"))

	parents, err := ReadParents(filepath.Join(dir, ParentsCSV))
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestAddRecord_NoCourse(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)

	require.NoError(t, a.AddRecord(sampleRecord("202345678"), 0, "2024"))

	sessions, err := ReadSessions(filepath.Join(dir, SessionsCSV))
	require.NoError(t, err)
	assert.Empty(t, sessions)

	students, _ := ReadStudents(filepath.Join(dir, StudentsCSV))
	assert.Len(t, students, 1)
}

func TestAssembler_RerunAddsNothing(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)
	require.NoError(t, a.AddRecord(sampleRecord("202345678"), 3, "2024"))

	// a fresh assembler over the same directory seeds its dedup state
	// from the CSVs, so replaying the same record is a no-op
	b, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)
	require.NoError(t, b.AddRecord(sampleRecord("202345678"), 3, "2024"))

	students, _ := ReadStudents(filepath.Join(dir, StudentsCSV))
	parents, _ := ReadParents(filepath.Join(dir, ParentsCSV))
	sessions, _ := ReadSessions(filepath.Join(dir, SessionsCSV))
	assert.Len(t, students, 1)
	assert.Len(t, parents, 1)
	assert.Len(t, sessions, 1)

	st := b.Stats()
	assert.Equal(t, uint32(1), st.DupStudents)
	assert.Equal(t, uint32(0), st.Students)
}

func TestAddFailure(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(dir, discardLogger())
	require.NoError(t, err)

	require.NoError(t, a.AddFailure("scan9.jpg", "no student id found"))

	failures, err := ReadFailures(filepath.Join(dir, FailuresCSV))
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "scan9.jpg", failures[0].SourceImage)
	assert.Equal(t, "no student id found", failures[0].Reason)
	assert.False(t, failures[0].FailedAt.IsZero())

	assert.Equal(t, uint32(1), a.Stats().Failures)
}

func TestWriter_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ParentsCSV)
	w := NewWriter(path, discardLogger())

	require.NoError(t, w.Append(ParentRow{Name: "A", Mobile: "0812345678", StudentID: "202345678"}))
	require.NoError(t, w.Append(ParentRow{Name: "B", Mobile: "0898765432", StudentID: "202345679"}))

	rows, err := ReadParents(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Name)
	assert.Equal(t, "B", rows[1].Name)
}
