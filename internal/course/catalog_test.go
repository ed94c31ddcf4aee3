package course

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCatalog(t *testing.T, rows string) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courses.csv")
	if rows != "" {
		require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	}
	cat, err := Load(path, discardLogger())
	require.NoError(t, err)
	return cat, path
}

func TestLoad_MissingFile(t *testing.T) {
	cat, _ := seedCatalog(t, "")
	assert.Empty(t, cat.Courses())
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.csv")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))
	cat, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Empty(t, cat.Courses())
}

func TestLoad_SortsByID(t *testing.T) {
	cat, _ := seedCatalog(t, "id,title\n3,Robotics 101\n1,Junior Coding\n2,Art Club\n")
	got := cat.Courses()
	require.Len(t, got, 3)
	assert.Equal(t, Course{ID: 1, Title: "Junior Coding"}, got[0])
	assert.Equal(t, Course{ID: 2, Title: "Art Club"}, got[1])
	assert.Equal(t, Course{ID: 3, Title: "Robotics 101"}, got[2])
}

func TestMatch(t *testing.T) {
	cat, _ := seedCatalog(t, "id,title\n1,Robotics 101\n2,Junior Coding\n3,Robotics\n")

	tests := []struct {
		name   string
		title  string
		wantID int
		wantOK bool
	}{
		{"exact", "Robotics 101", 1, true},
		{"exact case insensitive", "robotics 101", 1, true},
		{"exact beats substring", "Robotics", 3, true},
		{"needle inside known", "Junior", 2, true},
		{"known inside needle", "Junior Coding Camp 2026", 2, true},
		{"lowest id wins among substring hits", "Robotics 101 Advanced", 1, true},
		{"no match", "Swimming", 0, false},
		{"empty", "", 0, false},
		{"blank", "   ", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crs, ok := cat.Match(tt.title)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, crs.ID)
			}
		})
	}
}

func TestByID(t *testing.T) {
	cat, _ := seedCatalog(t, "id,title\n1,Robotics 101\n")

	crs, ok := cat.ByID(1)
	assert.True(t, ok)
	assert.Equal(t, "Robotics 101", crs.Title)

	_, ok = cat.ByID(99)
	assert.False(t, ok)
}

func TestMatchOrAppend_ExistingCourse(t *testing.T) {
	cat, path := seedCatalog(t, "id,title\n1,Robotics 101\n")

	crs, appended, err := cat.MatchOrAppend("robotics 101")
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Equal(t, 1, crs.ID)

	// no new row on disk
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,title\n1,Robotics 101\n", string(data))
}

func TestMatchOrAppend_NewCourse(t *testing.T) {
	cat, path := seedCatalog(t, "id,title\n2,Robotics 101\n5,Junior Coding\n")

	crs, appended, err := cat.MatchOrAppend("Swimming")
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, Course{ID: 6, Title: "Swimming"}, crs)

	// in memory
	found, ok := cat.Match("Swimming")
	assert.True(t, ok)
	assert.Equal(t, 6, found.ID)

	// and persisted, visible to a fresh load
	reloaded, err := Load(path, discardLogger())
	require.NoError(t, err)
	got, ok := reloaded.Match("Swimming")
	assert.True(t, ok)
	assert.Equal(t, 6, got.ID)
}

func TestMatchOrAppend_CreatesFileWithHeader(t *testing.T) {
	cat, path := seedCatalog(t, "")

	crs, appended, err := cat.MatchOrAppend("Art Club")
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, 1, crs.ID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,title\n1,Art Club\n", string(data))
}

func TestMatchOrAppend_EmptyTitle(t *testing.T) {
	cat, _ := seedCatalog(t, "")
	_, _, err := cat.MatchOrAppend("   ")
	require.Error(t, err)
}
