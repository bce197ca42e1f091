package report

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncWriter makes a bytes.Buffer safe for the monitor goroutine to share
// with the test.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestMonitorRendersFinalFrameOnce(t *testing.T) {
	var outstanding atomic.Int64
	outstanding.Store(3)
	out := &syncWriter{}

	m := NewMonitor(3, func() int { return int(outstanding.Load()) }, out)
	m.interval = 2 * time.Millisecond
	m.Start()

	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		outstanding.Add(-1)
	}
	m.Stop()

	rendered := out.String()
	assert.Equal(t, 1, strings.Count(rendered, "100%"))
	assert.Contains(t, rendered, "(3/3)")
}

func TestMonitorRendersOnlyOnChange(t *testing.T) {
	var outstanding atomic.Int64
	outstanding.Store(2)
	out := &syncWriter{}

	m := NewMonitor(2, func() int { return int(outstanding.Load()) }, out)
	m.interval = 2 * time.Millisecond
	m.Start()

	// Many ticks with no completions must produce a single 0% frame.
	time.Sleep(30 * time.Millisecond)
	outstanding.Store(0)
	m.Stop()

	rendered := out.String()
	assert.Equal(t, 1, strings.Count(rendered, "(0/2)"))
	assert.Equal(t, 1, strings.Count(rendered, "(2/2)"))
}

func TestMonitorStopForcesFinalFrame(t *testing.T) {
	var outstanding atomic.Int64
	outstanding.Store(4)
	out := &syncWriter{}

	m := NewMonitor(4, func() int { return int(outstanding.Load()) }, out)
	m.interval = time.Hour // never ticks
	m.Start()
	m.Stop()

	rendered := out.String()
	assert.Equal(t, 1, strings.Count(rendered, "100%"))
	assert.Contains(t, rendered, "(4/4)")
}

func TestMonitorZeroTotal(t *testing.T) {
	out := &syncWriter{}
	m := NewMonitor(0, func() int { return 0 }, out)
	m.Start()
	m.Stop()

	assert.Equal(t, 1, strings.Count(out.String(), "100%"))
}
