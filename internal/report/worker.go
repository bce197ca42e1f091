package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gradeforge/gradeforge/internal/export"
	"github.com/gradeforge/gradeforge/internal/store"
)

// Outcome is the result of generating one student's report. Every submitted
// student yields exactly one Outcome, success or failure.
type Outcome struct {
	StudentID string
	Success   bool
	Elapsed   time.Duration
	Paths     []string
	Err       error
}

// StudentStore is the slice of the store the worker needs beyond the stats
// source: student lookup and event logging.
type StudentStore interface {
	FindByID(ctx context.Context, id string) (store.Student, bool, error)
	LogReportEvent(ctx context.Context, studentID, event, message string, duration *time.Duration) error
}

// Worker generates one report at a time: look the student up, pull the
// aggregates through the cache, and write all three export formats.
type Worker struct {
	Source   StatsSource
	Store    StudentStore
	Exporter *export.Exporter
	Logger   *slog.Logger
}

// Generate produces the report for one student. It never panics outward and
// always returns an Outcome; errors are wrapped into it rather than logged
// and dropped.
func (w *Worker) Generate(ctx context.Context, studentID string) Outcome {
	start := time.Now()
	w.logEvent(ctx, studentID, store.EventReportStart, "", nil)

	out := w.generate(ctx, studentID)
	out.Elapsed = time.Since(start)

	if out.Err != nil {
		w.Logger.Warn("report generation failed",
			slog.String("student", studentID), slog.Any("err", out.Err))
		w.logEvent(ctx, studentID, store.EventError, out.Err.Error(), &out.Elapsed)
	} else {
		w.Logger.Debug("report generated",
			slog.String("student", studentID), slog.Duration("elapsed", out.Elapsed))
		w.logEvent(ctx, studentID, store.EventReportEnd, "", &out.Elapsed)
	}
	return out
}

func (w *Worker) generate(ctx context.Context, studentID string) Outcome {
	fail := func(err error) Outcome {
		return Outcome{StudentID: studentID, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("report for '%s' aborted: %w", studentID, err))
	}

	student, found, err := w.Store.FindByID(ctx, studentID)
	if err != nil {
		return fail(fmt.Errorf("look up student '%s': %w", studentID, err))
	}
	if !found {
		return fail(fmt.Errorf("student '%s' not found", studentID))
	}

	grades, err := w.Source.GradesFor(ctx, studentID)
	if err != nil {
		return fail(err)
	}
	avg, err := w.Source.AverageFor(ctx, studentID)
	if err != nil {
		return fail(err)
	}

	paths, err := w.Exporter.ExportAll(export.Report{
		Student: student,
		Grades:  grades,
		Average: avg,
	})
	if err != nil {
		return fail(fmt.Errorf("export report for '%s': %w", studentID, err))
	}

	return Outcome{StudentID: studentID, Success: true, Paths: paths}
}

// logEvent records a report event, tolerating logging failures so a flaky
// event log never fails a report.
func (w *Worker) logEvent(ctx context.Context, studentID, event, message string, duration *time.Duration) {
	if err := w.Store.LogReportEvent(ctx, studentID, event, message, duration); err != nil {
		w.Logger.Warn("failed to record report event",
			slog.String("student", studentID), slog.String("event", event), slog.Any("err", err))
	}
}
