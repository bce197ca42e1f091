package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gradeforge/gradeforge/internal/app"
	"github.com/gradeforge/gradeforge/internal/report"
)

// uiCmd launches the interactive console.
var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive console",
	Long: `Opens a terminal UI with menus for generating report batches, importing
grade CSVs, refreshing the cache, and inspecting cache statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()

		worker, err := newWorker()
		if err != nil {
			return err
		}
		model := app.NewModel(app.Deps{
			Cfg:         getConfig(),
			Store:       getStore(),
			Cache:       getCache(),
			Coordinator: report.NewCoordinator(worker, logger),
			Importer:    newImporter(),
			Logger:      logger,
		})

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("console exited with error: %w", err)
		}
		return nil
	},
}
