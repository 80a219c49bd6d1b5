// Package tui is an interactive browser for the running compositor: the
// plugin stack, plugin options and managed windows.
package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/compwm/internal/config"
	"github.com/1broseidon/compwm/internal/ipc"
)

const statusTimeout = 3 * time.Second

// Run starts the TUI. configPath is only read when the daemon is not running,
// to show the configured plugin stack.
func Run(configPath string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	m := newModel(ipc.NewClient(), loadConfig(configPath))
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func loadConfig(path string) *config.Config {
	var (
		res *config.LoadResult
		err error
	)
	if path == "" {
		res, err = config.Load()
	} else {
		res, err = config.LoadFromPath(path)
	}
	if err != nil {
		return config.DefaultConfig()
	}
	return res.Config
}

// statusMsg is shown in the active tab until clearStatusMsg arrives.
type statusMsg struct {
	text string
}

type clearStatusMsg struct{}

// refreshMsg asks the root model to re-read daemon state after a change.
type refreshMsg struct{}

func clearStatusLater() tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func refresh() tea.Msg { return refreshMsg{} }
