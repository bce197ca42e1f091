package app

import (
	"time"

	"github.com/gradeforge/gradeforge/internal/report"
)

// BatchStartedMsg announces the size of a report batch before any outcome
// arrives.
type BatchStartedMsg struct {
	Total int
}

// StudentProgressMsg carries one settled report outcome into the view.
type StudentProgressMsg struct {
	StudentID string
	Success   bool
	Elapsed   time.Duration
	ErrMsg    string
}

// BatchFinishedMsg signals that the whole batch has settled.
type BatchFinishedMsg struct {
	Summary report.Summary
	Err     error
}

// TaskFinishedMsg signals completion of a non-batch background task, carrying
// a summary text to display.
type TaskFinishedMsg struct {
	Tag     string
	Message string
	Err     error
}

// GeneralErrorMsg signals an error not tied to a running task.
type GeneralErrorMsg struct {
	Err error
}

func (e GeneralErrorMsg) Error() string { return e.Err.Error() }
