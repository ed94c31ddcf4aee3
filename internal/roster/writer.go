package roster

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/jszwec/csvutil"
)

// Writer appends rows of one type to a CSV file. The header is written
// only when the file is new or empty, so appends across runs never
// repeat it.
type Writer struct {
	path   string
	logger *slog.Logger
}

func NewWriter(path string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{path: path, logger: logger}
}

// Append writes rows to the end of the file. All rows must share one
// struct type; the header is derived from the first.
func (w *Writer) Append(rows ...any) error {
	if len(rows) == 0 {
		return nil
	}

	st, err := os.Stat(w.path)
	writeHeader := os.IsNotExist(err) || (err == nil && st.Size() == 0)

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			w.logger.Warn("roster.writer.close_error", "path", w.path, "error", cerr)
		}
	}()

	cw := csv.NewWriter(f)
	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false

	if writeHeader {
		if err := enc.EncodeHeader(rows[0]); err != nil {
			return fmt.Errorf("write header %s: %w", w.path, err)
		}
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("append row %s: %w", w.path, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadStudents loads students.csv rows; a missing file yields no rows.
func ReadStudents(path string) ([]StudentRow, error) {
	var rows []StudentRow
	if err := readCSV(path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadParents loads parents.csv rows; a missing file yields no rows.
func ReadParents(path string) ([]ParentRow, error) {
	var rows []ParentRow
	if err := readCSV(path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadSessions loads sessions.csv rows; a missing file yields no rows.
func ReadSessions(path string) ([]SessionRow, error) {
	var rows []SessionRow
	if err := readCSV(path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadFailures loads failures.csv rows; a missing file yields no rows.
func ReadFailures(path string) ([]FailureRow, error) {
	var rows []FailureRow
	if err := readCSV(path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func readCSV(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := csvutil.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
