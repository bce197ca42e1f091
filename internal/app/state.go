package app

// AppState represents the different views/modes of the console.
type AppState int

const (
	ShowMenu AppState = iota
	GeneratingReports
	ImportingGrades
	RefreshingCache
	ShowSummary
	ShowError
	Exiting
)
