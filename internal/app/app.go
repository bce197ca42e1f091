// Package app is the interactive console: a bubbletea menu over the batch
// report engine, the bulk importer, and the access cache.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gradeforge/gradeforge/internal/cache"
	"github.com/gradeforge/gradeforge/internal/config"
	"github.com/gradeforge/gradeforge/internal/importer"
	"github.com/gradeforge/gradeforge/internal/report"
	"github.com/gradeforge/gradeforge/internal/store"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	menuStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("79"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	headerStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	statusStyle   = map[string]lipgloss.Style{
		"Success": lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		"Failed":  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// studentRow is one line of the live batch view.
type studentRow struct {
	StudentID string
	Status    string
	Elapsed   time.Duration
	ErrMsg    string
}

// Deps bundles everything the console drives.
type Deps struct {
	Cfg         config.Config
	Store       *store.Store
	Cache       *cache.Cache
	Coordinator *report.Coordinator
	Importer    *importer.Importer
	Logger      *slog.Logger
}

type Model struct {
	deps Deps

	state       AppState
	menuChoices []string
	menuCursor  int
	spinner     spinner.Model
	batchBar    progress.Model

	mu         sync.RWMutex
	rows       []studentRow
	batchTotal int
	batchDone  int

	summaryText string
	lastError   error
	quitting    bool

	termWidth  int
	termHeight int

	uiMsgChan chan tea.Msg
}

func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Model{
		deps:  deps,
		state: ShowMenu,
		menuChoices: []string{
			"Generate Batch Reports",
			"Import Grade CSVs",
			"Refresh Cache",
			"Cache Statistics",
			"Exit",
		},
		spinner:  s,
		batchBar: progress.New(progress.WithDefaultGradient()),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.state {
		case ShowMenu:
			cmds = append(cmds, m.handleMenuKey(msg))
		case ShowError, ShowSummary:
			if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc || msg.String() == "q" {
				m.state = ShowMenu
				m.lastError = nil
				m.summaryText = ""
			}
		case Exiting:
			return m, nil
		default:
			if msg.String() == "ctrl+c" || msg.String() == "q" {
				m.quitting = true
				m.state = Exiting
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.batchBar.Width = maxInt(0, m.termWidth-10)
	case BatchStartedMsg:
		m.mu.Lock()
		m.batchTotal = msg.Total
		m.mu.Unlock()
	case StudentProgressMsg:
		m.mu.Lock()
		status := "Success"
		if !msg.Success {
			status = "Failed"
		}
		m.rows = append(m.rows, studentRow{
			StudentID: msg.StudentID,
			Status:    status,
			Elapsed:   msg.Elapsed,
			ErrMsg:    msg.ErrMsg,
		})
		m.batchDone++
		var percent float64
		if m.batchTotal > 0 {
			percent = float64(m.batchDone) / float64(m.batchTotal)
		}
		m.mu.Unlock()
		cmds = append(cmds, m.batchBar.SetPercent(percent))
	case BatchFinishedMsg:
		m.uiMsgChan = nil
		if msg.Err != nil {
			m.lastError = msg.Err
			m.state = ShowError
		} else {
			m.summaryText = renderSummary(msg.Summary, m.deps.Cache)
			m.state = ShowSummary
		}
	case TaskFinishedMsg:
		m.uiMsgChan = nil
		if msg.Err != nil {
			m.lastError = fmt.Errorf("%s failed: %w", msg.Tag, msg.Err)
			m.state = ShowError
		} else {
			m.summaryText = msg.Message
			m.state = ShowSummary
		}
	case GeneralErrorMsg:
		m.uiMsgChan = nil
		m.lastError = msg.Err
		m.state = ShowError
	case spinner.TickMsg:
		if m.state != ShowMenu && m.state != ShowError && m.state != Exiting {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		barModel, frameCmd := m.batchBar.Update(msg)
		if newModel, ok := barModel.(progress.Model); ok {
			m.batchBar = newModel
			cmds = append(cmds, frameCmd)
		}
	}

	if m.uiMsgChan != nil {
		cmds = append(cmds, waitForActivity(m.uiMsgChan))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("--- GradeForge Console ---"))
	b.WriteString("\n\n")

	switch m.state {
	case ShowMenu:
		b.WriteString(m.viewMenu())
	case GeneratingReports:
		b.WriteString(m.viewBatch())
	case ImportingGrades, RefreshingCache:
		b.WriteString(fmt.Sprintf("%s Working...\n", m.spinner.View()))
	case ShowSummary:
		b.WriteString(m.summaryText)
	case ShowError:
		b.WriteString(m.viewError())
	case Exiting:
		b.WriteString(infoStyle.Render("Exiting..."))
	}

	b.WriteString("\n\n")
	switch m.state {
	case ShowMenu:
		b.WriteString(infoStyle.Render("Use up/down arrows and Enter to select. 'q' or Ctrl+C to quit."))
	case ShowSummary, ShowError:
		b.WriteString(infoStyle.Render("Press Enter or Esc to return to menu."))
	case Exiting:
	default:
		b.WriteString(infoStyle.Render("Task running... 'q' or Ctrl+C to force quit."))
	}
	return b.String()
}

func (m *Model) viewMenu() string {
	var b strings.Builder
	b.WriteString("Select an action:\n")
	for i, choice := range m.menuChoices {
		line := "  " + choice
		if m.menuCursor == i {
			line = "> " + selectedStyle.Render(choice)
		}
		b.WriteString(menuStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewBatch() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s Generating reports\n", m.spinner.View()))
	b.WriteString(m.batchBar.View())
	b.WriteString(fmt.Sprintf(" (%d/%d)\n\n", m.batchDone, m.batchTotal))

	maxLines := m.termHeight - 10
	if maxLines < 1 {
		maxLines = 1
	}
	start := 0
	if len(m.rows) > maxLines {
		start = len(m.rows) - maxLines
	}
	if len(m.rows) > 0 {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s | %-8s | %s", "Student", "Status", "Elapsed")))
		b.WriteString("\n")
		for _, row := range m.rows[start:] {
			style, ok := statusStyle[row.Status]
			if !ok {
				style = infoStyle
			}
			b.WriteString(fmt.Sprintf("%-12s | %-8s | %s\n",
				row.StudentID, style.Render(row.Status), row.Elapsed.Round(time.Millisecond)))
			if row.ErrMsg != "" {
				b.WriteString(errorStyle.Render("  -> " + row.ErrMsg))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (m *Model) viewError() string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("An error occurred:"))
	b.WriteString("\n\n")
	if m.lastError != nil {
		b.WriteString(m.lastError.Error())
	} else {
		b.WriteString("Unknown error.")
	}
	return b.String()
}

func (m *Model) handleMenuKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(m.menuChoices)-1 {
			m.menuCursor++
		}
	case "enter":
		m.lastError = nil
		m.mu.Lock()
		m.rows = nil
		m.batchTotal = 0
		m.batchDone = 0
		m.mu.Unlock()
		m.batchBar = progress.New(progress.WithDefaultGradient())
		m.batchBar.Width = maxInt(0, m.termWidth-10)

		choice := m.menuChoices[m.menuCursor]
		m.deps.Logger.Debug("menu selection", slog.String("choice", choice))
		switch choice {
		case "Generate Batch Reports":
			m.state = GeneratingReports
			m.uiMsgChan = make(chan tea.Msg)
			return tea.Batch(m.startBatchTask(m.uiMsgChan), waitForActivity(m.uiMsgChan))
		case "Import Grade CSVs":
			m.state = ImportingGrades
			m.uiMsgChan = make(chan tea.Msg)
			return tea.Batch(m.startImportTask(m.uiMsgChan), waitForActivity(m.uiMsgChan))
		case "Refresh Cache":
			m.state = RefreshingCache
			m.uiMsgChan = make(chan tea.Msg)
			return tea.Batch(m.startRefreshTask(m.uiMsgChan), waitForActivity(m.uiMsgChan))
		case "Cache Statistics":
			m.summaryText = renderCacheStats(m.deps.Cache)
			m.state = ShowSummary
		case "Exit":
			m.quitting = true
			m.state = Exiting
			return tea.Quit
		}
	case "ctrl+c", "q":
		m.quitting = true
		m.state = Exiting
		return tea.Quit
	}
	return nil
}

func waitForActivity(uiMsgChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-uiMsgChan
		if !ok {
			return nil
		}
		return msg
	}
}

// startBatchTask runs the full report batch in the background, translating
// coordinator outcomes into view updates.
func (m *Model) startBatchTask(uiMsgChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			ctx := context.Background()
			students, err := m.deps.Store.FindAll(ctx)
			if err != nil {
				uiMsgChan <- BatchFinishedMsg{Err: fmt.Errorf("load students: %w", err)}
				close(uiMsgChan)
				return
			}
			ids := make([]string, len(students))
			for i, st := range students {
				ids[i] = st.ID
			}
			uiMsgChan <- BatchStartedMsg{Total: len(ids)}

			progressChan := make(chan report.Outcome)
			translatorDone := make(chan struct{})
			go func() {
				defer close(translatorDone)
				for out := range progressChan {
					errMsg := ""
					if out.Err != nil {
						errMsg = out.Err.Error()
					}
					uiMsgChan <- StudentProgressMsg{
						StudentID: out.StudentID,
						Success:   out.Success,
						Elapsed:   out.Elapsed,
						ErrMsg:    errMsg,
					}
				}
			}()

			m.deps.Coordinator.Progress = progressChan
			summary := m.deps.Coordinator.Run(ctx, ids, m.deps.Cfg.NumWorkers)
			m.deps.Coordinator.Progress = nil
			close(progressChan)
			<-translatorDone

			uiMsgChan <- BatchFinishedMsg{Summary: summary}
			close(uiMsgChan)
		}()
		return nil
	}
}

func (m *Model) startImportTask(uiMsgChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			res, err := m.deps.Importer.ImportDir(context.Background(), m.deps.Cfg.ImportsDir)
			msg := fmt.Sprintf("Import complete.\n\n  Imported: %d\n  Skipped:  %d\n", res.Imported, res.Skipped)
			uiMsgChan <- TaskFinishedMsg{Tag: "Import", Message: msg, Err: err}
			close(uiMsgChan)
		}()
		return nil
	}
}

func (m *Model) startRefreshTask(uiMsgChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			err := m.deps.Cache.Refresh(context.Background())
			msg := fmt.Sprintf("Cache refreshed.\n\n%s", renderCacheStats(m.deps.Cache))
			uiMsgChan <- TaskFinishedMsg{Tag: "Refresh", Message: msg, Err: err}
			close(uiMsgChan)
		}()
		return nil
	}
}

func renderSummary(s report.Summary, c *cache.Cache) string {
	var b strings.Builder
	b.WriteString("Batch complete.\n\n")
	b.WriteString(fmt.Sprintf("  Total:     %d\n", s.Total))
	b.WriteString(fmt.Sprintf("  Succeeded: %d\n", s.Succeeded))
	b.WriteString(fmt.Sprintf("  Failed:    %d\n", s.Failed))
	b.WriteString(fmt.Sprintf("  Wall time: %s\n", s.WallTime.Round(time.Millisecond)))
	if len(s.FailureReasons) > 0 {
		b.WriteString("\nFailures:\n")
		for _, reason := range s.FailureReasons {
			b.WriteString("  - " + reason + "\n")
		}
	}
	b.WriteString(fmt.Sprintf("\nCache hit rate: %.1f%%\n", c.HitRate()*100))
	return b.String()
}

func renderCacheStats(c *cache.Cache) string {
	stats := c.Stats()
	var b strings.Builder
	b.WriteString("Cache statistics:\n\n")
	b.WriteString(fmt.Sprintf("  Entries:  %d\n", stats.Size))
	b.WriteString(fmt.Sprintf("  Hits:     %d\n", stats.Hits))
	b.WriteString(fmt.Sprintf("  Misses:   %d\n", stats.Misses))
	b.WriteString(fmt.Sprintf("  Hit rate: %.1f%%\n", c.HitRate()*100))

	contents := c.Contents()
	if len(contents) > 0 {
		b.WriteString("\nEntries:\n")
		shown := contents
		if len(shown) > 15 {
			shown = shown[:15]
		}
		for _, e := range shown {
			b.WriteString(fmt.Sprintf("  %-24s accesses=%-4d last=%s\n",
				e.Key, e.AccessCount, e.LastAccess.Format(time.TimeOnly)))
		}
		if len(contents) > len(shown) {
			b.WriteString(fmt.Sprintf("  ... and %d more\n", len(contents)-len(shown)))
		}
	}
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
