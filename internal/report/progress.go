package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	progressInterval = 100 * time.Millisecond
	progressBarWidth = 30
)

// Monitor samples batch completion on a fixed interval and renders a console
// progress bar. Frames are written only when the completed count changes, and
// the final 100% frame is rendered exactly once.
type Monitor struct {
	total    int
	sample   func() int
	out      io.Writer
	interval time.Duration

	stop     chan struct{}
	finished chan struct{}
}

// NewMonitor builds a monitor over total units of work. sample returns the
// number of units still outstanding.
func NewMonitor(total int, sample func() int, out io.Writer) *Monitor {
	return &Monitor{
		total:    total,
		sample:   sample,
		out:      out,
		interval: progressInterval,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start launches the sampling loop. The loop exits on its own once all work
// completes, or when Stop is called.
func (m *Monitor) Start() {
	go m.loop()
}

// Stop halts sampling, renders the final frame if it has not appeared yet,
// and blocks until the loop exits.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.finished
}

func (m *Monitor) loop() {
	defer close(m.finished)

	if m.total <= 0 {
		m.render(0)
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ticker.C:
			completed := m.completed()
			if completed != last {
				m.render(completed)
				last = completed
			}
			if completed >= m.total {
				return
			}
		case <-m.stop:
			if last < m.total {
				m.render(m.total)
			}
			return
		}
	}
}

func (m *Monitor) completed() int {
	done := m.total - m.sample()
	if done < 0 {
		done = 0
	}
	if done > m.total {
		done = m.total
	}
	return done
}

func (m *Monitor) render(completed int) {
	pct := 100
	filled := progressBarWidth
	if m.total > 0 {
		pct = completed * 100 / m.total
		filled = completed * progressBarWidth / m.total
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
	fmt.Fprintf(m.out, "\r[%s] %3d%% (%d/%d)", bar, pct, completed, m.total)
	if pct >= 100 {
		fmt.Fprintln(m.out)
	}
}
