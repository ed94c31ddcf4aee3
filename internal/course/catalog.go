// Package course maintains the master course catalog shared across batch
// runs. Titles extracted from forms are matched against it; unmatched
// titles grow the catalog, in memory and on disk.
package course

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
)

// Course is one catalog row.
type Course struct {
	ID    int    `csv:"id" json:"id"`
	Title string `csv:"title" json:"title"`
}

// Catalog holds the known courses ordered by ascending id. Matching scans
// in that order, so resolution of ambiguous substring matches is
// deterministic across runs.
type Catalog struct {
	path    string
	courses []Course
	logger  *slog.Logger
}

// Load reads the master CSV at path. A missing or empty file yields an
// empty catalog; the file is created on the first append.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("course.catalog.new", "path", path)
			return c, nil
		}
		return nil, fmt.Errorf("read courses csv: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return c, nil
	}

	if err := csvutil.Unmarshal(data, &c.courses); err != nil {
		return nil, fmt.Errorf("parse courses csv: %w", err)
	}
	sort.Slice(c.courses, func(i, j int) bool { return c.courses[i].ID < c.courses[j].ID })

	logger.Info("course.catalog.loaded", "path", path, "courses", len(c.courses))
	return c, nil
}

// Courses returns a copy of the catalog rows in ascending-id order.
func (c *Catalog) Courses() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	return out
}

// ByID looks up a course by id.
func (c *Catalog) ByID(id int) (Course, bool) {
	for _, crs := range c.courses {
		if crs.ID == id {
			return crs, true
		}
	}
	return Course{}, false
}

// Match finds an existing course for title: case-insensitive exact match
// first, then case-insensitive substring containment in either direction.
// Candidates are scanned in ascending-id order and the first hit wins.
func (c *Catalog) Match(title string) (Course, bool) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return Course{}, false
	}

	for _, crs := range c.courses {
		if strings.ToLower(crs.Title) == needle {
			return crs, true
		}
	}
	for _, crs := range c.courses {
		known := strings.ToLower(crs.Title)
		if strings.Contains(known, needle) || strings.Contains(needle, known) {
			return crs, true
		}
	}
	return Course{}, false
}

// MatchOrAppend matches title or synthesizes a new course with id
// max(existing)+1, appending it to memory and to the master CSV.
func (c *Catalog) MatchOrAppend(title string) (Course, bool, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return Course{}, false, fmt.Errorf("empty course title")
	}

	if crs, ok := c.Match(trimmed); ok {
		return crs, false, nil
	}

	crs := Course{ID: c.maxID() + 1, Title: trimmed}
	if err := c.appendToFile(crs); err != nil {
		return Course{}, false, err
	}
	c.courses = append(c.courses, crs)

	c.logger.Info("course.catalog.appended", "id", crs.ID, "title", crs.Title)
	return crs, true, nil
}

func (c *Catalog) maxID() int {
	max := 0
	for _, crs := range c.courses {
		if crs.ID > max {
			max = crs.ID
		}
	}
	return max
}

// appendToFile appends one row to the master CSV, writing the header
// only when the file is new or empty.
func (c *Catalog) appendToFile(crs Course) error {
	st, err := os.Stat(c.path)
	writeHeader := os.IsNotExist(err) || (err == nil && st.Size() == 0)

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open courses csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			c.logger.Warn("course.catalog.close_error", "path", c.path, "error", cerr)
		}
	}()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false

	if writeHeader {
		if err := enc.EncodeHeader(Course{}); err != nil {
			return fmt.Errorf("write courses header: %w", err)
		}
	}
	if err := enc.Encode(crs); err != nil {
		return fmt.Errorf("append course: %w", err)
	}
	w.Flush()
	return w.Error()
}
