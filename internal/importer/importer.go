// Package importer loads grade records in bulk from CSV files, either local
// or discovered from remote feed pages.
package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gradeforge/gradeforge/internal/store"
)

// Line format: studentId,subjectCode,score[,date][,subjectType]
// Lines starting with '#' are comments. Malformed lines are skipped and
// counted, never fatal.
const (
	minFields = 3
	maxFields = 5

	dateLayout = "2006-01-02"
)

// GradeWriter is the slice of the store the importer writes through.
type GradeWriter interface {
	SaveGrade(ctx context.Context, g store.Grade) error
}

// Result tallies one import run.
type Result struct {
	Imported int
	Skipped  int
}

func (r *Result) merge(other Result) {
	r.Imported += other.Imported
	r.Skipped += other.Skipped
}

// Importer parses grade CSVs and persists the rows.
type Importer struct {
	Writer GradeWriter
	Logger *slog.Logger
}

// ImportDir imports every *.csv file in dir, accumulating per-file errors
// without stopping the run.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Result, error) {
	pattern := filepath.Join(dir, "*.[cC][sS][vV]")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return Result{}, fmt.Errorf("glob csv files in %s: %w", dir, err)
	}
	if len(files) == 0 {
		im.Logger.Info("no csv files found to import", slog.String("dir", dir))
		return Result{}, nil
	}

	var total Result
	var runErr error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return total, errors.Join(runErr, err)
		}
		res, err := im.ImportFile(ctx, path)
		total.merge(res)
		if err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("%s: %w", filepath.Base(path), err))
		}
	}
	return total, runErr
}

// ImportFile imports one CSV file.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open import file %s: %w", path, err)
	}
	defer f.Close()
	return im.ImportReader(ctx, f, filepath.Base(path))
}

// ImportReader imports grade lines from r. name labels log output only.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, name string) (Result, error) {
	l := im.Logger.With(slog.String("source", name))

	var res Result
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		grade, err := parseLine(line)
		if err != nil {
			res.Skipped++
			l.Warn("skipping malformed import line",
				slog.Int("line", lineNumber), slog.Any("err", err))
			continue
		}
		if err := im.Writer.SaveGrade(ctx, grade); err != nil {
			return res, fmt.Errorf("save grade from line %d: %w", lineNumber, err)
		}
		res.Imported++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read import source %s: %w", name, err)
	}

	l.Info("import complete",
		slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))
	return res, nil
}

// parseLine converts one CSV line into a grade row.
func parseLine(line string) (store.Grade, error) {
	fields := strings.Split(line, ",")
	if len(fields) < minFields || len(fields) > maxFields {
		return store.Grade{}, fmt.Errorf("expected %d-%d fields, got %d", minFields, maxFields, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	studentID, subjectCode := fields[0], fields[1]
	if studentID == "" || subjectCode == "" {
		return store.Grade{}, errors.New("empty student id or subject code")
	}

	score, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return store.Grade{}, fmt.Errorf("invalid score %q: %w", fields[2], err)
	}
	if score < 0 || score > 100 {
		return store.Grade{}, fmt.Errorf("score %.2f out of range [0,100]", score)
	}

	g := store.Grade{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		SubjectCode: subjectCode,
		Score:       score,
	}
	if len(fields) >= 4 && fields[3] != "" {
		recorded, err := time.Parse(dateLayout, fields[3])
		if err != nil {
			return store.Grade{}, fmt.Errorf("invalid date %q: %w", fields[3], err)
		}
		g.RecordedAt = recorded.UTC()
	}
	if len(fields) == 5 {
		g.SubjectType = fields[4]
	}
	return g, nil
}
