package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeforge/gradeforge/internal/export"
	"github.com/gradeforge/gradeforge/internal/store"
)

// fakeStore backs worker tests with in-memory students and an event log.
type fakeStore struct {
	mu       sync.Mutex
	students map[string]store.Student
	grades   map[string][]store.Grade
	events   []string
	eventErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		students: map[string]store.Student{},
		grades:   map[string][]store.Grade{},
	}
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (store.Student, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.students[id]
	return st, ok, nil
}

func (f *fakeStore) AverageFor(ctx context.Context, id string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	grades := f.grades[id]
	if len(grades) == 0 {
		return 0, nil
	}
	var sum float64
	for _, g := range grades {
		sum += g.Score
	}
	return sum / float64(len(grades)), nil
}

func (f *fakeStore) GradesFor(ctx context.Context, id string) ([]store.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grades[id], nil
}

func (f *fakeStore) LogReportEvent(ctx context.Context, studentID, event, message string, duration *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, fmt.Sprintf("%s:%s", studentID, event))
	return nil
}

func (f *fakeStore) addStudent(st store.Student, scores ...float64) {
	f.students[st.ID] = st
	for i, score := range scores {
		f.grades[st.ID] = append(f.grades[st.ID], store.Grade{
			ID:          fmt.Sprintf("%s-g%d", st.ID, i),
			StudentID:   st.ID,
			SubjectCode: fmt.Sprintf("SUBJ%d", i),
			Score:       score,
			RecordedAt:  time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		})
	}
}

func newTestWorker(t *testing.T, fs *fakeStore) *Worker {
	t.Helper()
	exporter := export.New(t.TempDir())
	require.NoError(t, exporter.EnsureDirs())
	return &Worker{
		Source:   fs,
		Store:    fs,
		Exporter: exporter,
		Logger:   testLogger(),
	}
}

func TestWorkerGenerateSuccess(t *testing.T) {
	fs := newFakeStore()
	fs.addStudent(store.Student{ID: "S001", Name: "Ada", Type: store.TypeRegular, PassingGrade: store.PassingGradeRegular}, 80, 90)
	w := newTestWorker(t, fs)

	out := w.Generate(context.Background(), "S001")

	require.NoError(t, out.Err)
	assert.True(t, out.Success)
	assert.Equal(t, "S001", out.StudentID)
	assert.Greater(t, out.Elapsed, time.Duration(0))
	assert.Len(t, out.Paths, 3)
	assert.Contains(t, fs.events, "S001:"+store.EventReportStart)
	assert.Contains(t, fs.events, "S001:"+store.EventReportEnd)
}

func TestWorkerGenerateUnknownStudent(t *testing.T) {
	fs := newFakeStore()
	w := newTestWorker(t, fs)

	out := w.Generate(context.Background(), "missing")

	assert.False(t, out.Success)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "not found")
	assert.Contains(t, fs.events, "missing:"+store.EventError)
}

func TestWorkerGenerateCanceledContext(t *testing.T) {
	fs := newFakeStore()
	fs.addStudent(store.Student{ID: "S001", Type: store.TypeRegular, PassingGrade: store.PassingGradeRegular}, 70)
	w := newTestWorker(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := w.Generate(ctx, "S001")

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestWorkerEventLogFailureDoesNotFailReport(t *testing.T) {
	fs := newFakeStore()
	fs.addStudent(store.Student{ID: "S001", Type: store.TypeRegular, PassingGrade: store.PassingGradeRegular}, 75)
	fs.eventErr = errors.New("event log unavailable")
	w := newTestWorker(t, fs)

	out := w.Generate(context.Background(), "S001")

	assert.True(t, out.Success)
	require.NoError(t, out.Err)
}
