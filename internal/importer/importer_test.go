package importer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeforge/gradeforge/internal/store"
)

type memWriter struct {
	grades []store.Grade
}

func (w *memWriter) SaveGrade(ctx context.Context, g store.Grade) error {
	w.grades = append(w.grades, g)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImportReader(t *testing.T) {
	input := strings.Join([]string{
		"# grades export 2026-02",
		"S001,MATH101,87.5",
		"",
		"S001,PHYS101,91,2026-02-10",
		"S002,CHEM101,74.25,2026-02-11,core",
		"S003,MATH101,notanumber",
		"S003,MATH101",
		"S004,BIO101,140",
	}, "\n")

	w := &memWriter{}
	im := &Importer{Writer: w, Logger: testLogger()}

	res, err := im.ImportReader(context.Background(), strings.NewReader(input), "grades.csv")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, w.grades, 3)

	first := w.grades[0]
	assert.Equal(t, "S001", first.StudentID)
	assert.Equal(t, "MATH101", first.SubjectCode)
	assert.Equal(t, 87.5, first.Score)
	assert.NotEmpty(t, first.ID)

	second := w.grades[1]
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), second.RecordedAt)

	third := w.grades[2]
	assert.Equal(t, "core", third.SubjectType)
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("S001,MATH101,80\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.CSV"), []byte("S002,MATH101,70\nbad line\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("S003,MATH101,60\n"), 0o644))

	w := &memWriter{}
	im := &Importer{Writer: w, Logger: testLogger()}

	res, err := im.ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestImportDirEmpty(t *testing.T) {
	im := &Importer{Writer: &memWriter{}, Logger: testLogger()}
	res, err := im.ImportDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
}

func TestParseLineValidation(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"too few fields", "S001,MATH101"},
		{"too many fields", "S001,MATH101,80,2026-01-01,core,extra"},
		{"empty student", ",MATH101,80"},
		{"bad score", "S001,MATH101,eighty"},
		{"score below range", "S001,MATH101,-1"},
		{"score above range", "S001,MATH101,100.5"},
		{"bad date", "S001,MATH101,80,02/10/2026"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseLine(tc.line)
			assert.Error(t, err)
		})
	}
}

func TestDiscoverCSVURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feeds/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<a href="grades_term1.csv">term 1</a>
			<a href="/data/grades_term2.CSV">term 2</a>
			<a href="notes.txt">notes</a>
			<a href="grades_term1.csv">duplicate</a>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	urls, err := DiscoverCSVURLs(context.Background(), srv.Client(),
		[]string{srv.URL + "/feeds/"}, testLogger())
	require.NoError(t, err)

	require.Len(t, urls, 2)
	assert.Equal(t, srv.URL+"/feeds/grades_term1.csv", urls[0])
	assert.Equal(t, srv.URL+"/data/grades_term2.CSV", urls[1])
}

func TestDiscoverCSVURLsBadFeedAccumulates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		io.WriteString(w, `<a href="ok.csv">ok</a>`)
	}))
	defer srv.Close()

	urls, err := DiscoverCSVURLs(context.Background(), srv.Client(),
		[]string{srv.URL + "/broken", srv.URL + "/good"}, testLogger())

	// The broken feed surfaces as an error but the good one still yields
	// its link.
	assert.Error(t, err)
	require.Len(t, urls, 1)
	assert.True(t, strings.HasSuffix(urls[0], "/ok.csv"))
}

func TestFetchFeeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<a href="/files/grades.csv">grades</a>`)
	})
	mux.HandleFunc("/files/grades.csv", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "S001,MATH101,88\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dest := t.TempDir()
	paths, err := FetchFeeds(context.Background(), srv.Client(),
		[]string{srv.URL + "/index"}, dest, testLogger())
	require.NoError(t, err)

	require.Len(t, paths, 1)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "S001,MATH101,88\n", string(data))
}
