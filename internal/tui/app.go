package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/compwm/internal/config"
	"github.com/1broseidon/compwm/internal/ipc"
)

// model is the root bubbletea model for the TUI.
type model struct {
	client ipc.API
	cfg    *config.Config

	activeTab Tab

	pluginsTab PluginsTab
	optionsTab OptionsTab
	windowsTab WindowsTab

	// status is nil while the daemon is unreachable.
	status *ipc.StatusData

	width  int
	height int
}

func newModel(client ipc.API, cfg *config.Config) model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	m := model{
		client:     client,
		cfg:        cfg,
		activeTab:  TabPlugins,
		pluginsTab: NewPluginsTab(client, cfg.ActivePlugins),
		optionsTab: NewOptionsTab(client),
		windowsTab: NewWindowsTab(client),
	}
	m.refresh()
	return m
}

// refresh re-reads daemon state into every tab.
func (m *model) refresh() {
	st, err := m.client.GetStatus()
	if err != nil {
		m.status = nil
		m.pluginsTab.online = false
		m.optionsTab.online = false
		m.windowsTab.online = false
		return
	}
	m.status = st
	m.pluginsTab.Load()
	m.optionsTab.SetStack(st.ActivePlugins, st.Screens)
	_ = m.windowsTab.Load()
}

func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// capturing reports whether the active tab owns the keyboard.
func (m model) capturing() bool {
	return (m.activeTab == TabOptions && m.optionsTab.editing) ||
		(m.activeTab == TabWindows && m.windowsTab.filtering)
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
		m.pluginsTab, _ = m.pluginsTab.Update(subMsg)
		m.optionsTab, _ = m.optionsTab.Update(subMsg)
		m.windowsTab, _ = m.windowsTab.Update(subMsg)
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.capturing() {
			break
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabPlugins
			return m, nil
		case "2":
			m.activeTab = TabOptions
			return m, nil
		case "3":
			m.activeTab = TabWindows
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabPlugins:
		m.pluginsTab, cmd = m.pluginsTab.Update(msg)
	case TabOptions:
		m.optionsTab, cmd = m.optionsTab.Update(msg)
	case TabWindows:
		m.windowsTab, cmd = m.windowsTab.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.activeTab, m.width)

	var content string
	switch m.activeTab {
	case TabPlugins:
		content = m.pluginsTab.View()
	case TabOptions:
		content = m.optionsTab.View()
	case TabWindows:
		content = m.windowsTab.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
