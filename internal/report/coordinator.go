package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MinParallelism and MaxParallelism bound the worker pool size.
	MinParallelism = 1
	MaxParallelism = 8

	// DefaultTaskTimeout is how long the coordinator waits on any single
	// report before recording it as failed.
	DefaultTaskTimeout = 10 * time.Second

	// DefaultShutdownGrace is how long in-flight workers get to drain after
	// the batch result is settled.
	DefaultShutdownGrace = 5 * time.Second

	// maxFailureReasons caps the failure detail carried in a Summary.
	maxFailureReasons = 10
)

// Generator produces one report outcome per student.
type Generator interface {
	Generate(ctx context.Context, studentID string) Outcome
}

// Summary is the settled result of one batch run. Succeeded+Failed always
// equals Total.
type Summary struct {
	Total          int
	Succeeded      int
	Failed         int
	WallTime       time.Duration
	Durations      []time.Duration
	FailureReasons []string
}

// Coordinator fans a batch of report requests out over a bounded worker pool
// and collects exactly one outcome per request, in submission order.
type Coordinator struct {
	worker Generator
	logger *slog.Logger

	// TaskTimeout and ShutdownGrace default to the package constants.
	TaskTimeout   time.Duration
	ShutdownGrace time.Duration

	// ProgressOut, when set, gets a console progress bar for the batch.
	ProgressOut io.Writer

	// Progress, when set, receives every outcome as it settles. Used by the
	// interactive console to drive its own progress display.
	Progress chan<- Outcome

	outstanding atomic.Int64
}

// NewCoordinator builds a coordinator around worker.
func NewCoordinator(worker Generator, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		worker:        worker,
		logger:        logger,
		TaskTimeout:   DefaultTaskTimeout,
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// clampParallelism bounds the requested pool size to [MinParallelism,
// MaxParallelism].
func clampParallelism(n int) int {
	if n < MinParallelism {
		return MinParallelism
	}
	if n > MaxParallelism {
		return MaxParallelism
	}
	return n
}

type task struct {
	studentID string
	result    chan Outcome // buffered so a late worker send never blocks
}

// Run generates reports for studentIDs using up to parallelism workers and
// returns once every request has settled. A report that produces no outcome
// within TaskTimeout is recorded as failed; its worker keeps the slot until
// it returns, and any outcome it produces afterwards is discarded.
func (c *Coordinator) Run(ctx context.Context, studentIDs []string, parallelism int) Summary {
	start := time.Now()
	total := len(studentIDs)
	workers := clampParallelism(parallelism)

	c.outstanding.Store(int64(total))
	c.logger.Info("starting report batch",
		slog.Int("students", total), slog.Int("workers", workers))

	var monitor *Monitor
	if c.ProgressOut != nil {
		monitor = NewMonitor(total, func() int { return int(c.outstanding.Load()) }, c.ProgressOut)
		monitor.Start()
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan task, total)
	handles := make([]task, 0, total)
	for _, id := range studentIDs {
		t := task{studentID: id, result: make(chan Outcome, 1)}
		handles = append(handles, t)
		jobs <- t
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				out := c.runOne(workCtx, t.studentID)
				t.result <- out
				if c.Progress != nil {
					select {
					case c.Progress <- out:
					case <-workCtx.Done():
					}
				}
			}
		}()
	}

	summary := Summary{Total: total}
	for _, t := range handles {
		timer := time.NewTimer(c.TaskTimeout)
		select {
		case out := <-t.result:
			timer.Stop()
			c.record(&summary, out)
		case <-timer.C:
			c.record(&summary, Outcome{
				StudentID: t.studentID,
				Err:       fmt.Errorf("report for '%s' timed out after %s", t.studentID, c.TaskTimeout),
			})
		}
	}

	// The batch result is settled; give straggling workers a bounded window
	// to wind down before returning.
	cancel()
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
	case <-time.After(c.ShutdownGrace):
		c.logger.Warn("report workers did not exit within shutdown grace",
			slog.Duration("grace", c.ShutdownGrace))
	}

	if monitor != nil {
		monitor.Stop()
	}

	summary.WallTime = time.Since(start)
	c.logger.Info("report batch finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Duration("wall_time", summary.WallTime))
	return summary
}

// runOne executes one report, guaranteeing a single outstanding decrement
// and converting a worker panic into a failed outcome.
func (c *Coordinator) runOne(ctx context.Context, studentID string) (out Outcome) {
	defer c.outstanding.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{StudentID: studentID, Err: fmt.Errorf("report worker panic: %v", r)}
		}
	}()
	return c.worker.Generate(ctx, studentID)
}

func (c *Coordinator) record(summary *Summary, out Outcome) {
	if out.Success {
		summary.Succeeded++
		summary.Durations = append(summary.Durations, out.Elapsed)
		return
	}
	summary.Failed++
	if len(summary.FailureReasons) < maxFailureReasons {
		summary.FailureReasons = append(summary.FailureReasons,
			fmt.Sprintf("%s: %v", out.StudentID, out.Err))
	}
}
