package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/compwm/internal/ipc"
)

type pluginItem struct {
	info ipc.PluginInfo
	top  bool
}

func (i pluginItem) Title() string {
	if !i.info.Active {
		return dimStyle.Render("  " + i.info.Name)
	}
	mark := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	if i.top {
		mark = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("▲")
	}
	return fmt.Sprintf("%s %d. %s", mark, i.info.Position+1, i.info.Name)
}

func (i pluginItem) Description() string {
	if !i.info.Active {
		return "available"
	}
	if len(i.info.Deps) == 0 {
		return "active"
	}
	return "active | needs " + strings.Join(i.info.Deps, ", ")
}

func (i pluginItem) FilterValue() string { return i.info.Name }

// buildPluginItems lists the stack bottom first, then the loadable plugins
// that are not active.
func buildPluginItems(plugins []ipc.PluginInfo) []list.Item {
	top := -1
	for _, p := range plugins {
		if p.Active && p.Position > top {
			top = p.Position
		}
	}
	items := make([]list.Item, 0, len(plugins))
	for _, p := range plugins {
		items = append(items, pluginItem{info: p, top: p.Active && p.Position == top})
	}
	return items
}

// configuredPluginItems describes the configured stack when there is no
// daemon to ask.
func configuredPluginItems(active []string) []list.Item {
	plugins := make([]ipc.PluginInfo, 0, len(active))
	for i, name := range active {
		plugins = append(plugins, ipc.PluginInfo{Name: name, Active: true, Position: i, Source: "config"})
	}
	return buildPluginItems(plugins)
}

// PluginsTab shows the plugin stack and lets the user push and pop plugins.
type PluginsTab struct {
	list       list.Model
	client     ipc.API
	online     bool
	statusText string

	width  int
	height int
}

// NewPluginsTab creates the tab; configured is shown until the daemon
// answers.
func NewPluginsTab(client ipc.API, configured []string) PluginsTab {
	return PluginsTab{
		list:   newList("Plugin Stack", configuredPluginItems(configured), true),
		client: client,
	}
}

// Load refreshes the list from the daemon. It keeps the current items when
// the daemon cannot be reached.
func (p *PluginsTab) Load() {
	data, err := p.client.ListPlugins()
	if err != nil {
		p.online = false
		return
	}
	p.online = true
	p.list.SetItems(buildPluginItems(data.Plugins))
}

// Update implements tea.Model.
func (p PluginsTab) Update(msg tea.Msg) (PluginsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.list.SetSize(splitWidth(p.width), p.height-1)
		return p, nil

	case statusMsg:
		p.statusText = msg.text
		return p, clearStatusLater()

	case clearStatusMsg:
		p.statusText = ""
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "a":
			return p.activateSelected()
		case "x", "delete":
			return p.deactivateSelected()
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p PluginsTab) selected() (pluginItem, bool) {
	item, ok := p.list.SelectedItem().(pluginItem)
	return item, ok
}

func (p PluginsTab) activateSelected() (PluginsTab, tea.Cmd) {
	item, ok := p.selected()
	if !ok {
		return p, nil
	}
	if item.info.Active {
		return p, status(item.info.Name + " is already active")
	}
	if !p.online {
		return p, status("daemon not connected")
	}
	if _, err := p.client.Activate(item.info.Name); err != nil {
		return p, status(fmt.Sprintf("error: %v", err))
	}
	return p, tea.Batch(refresh, status("activated: "+item.info.Name))
}

func (p PluginsTab) deactivateSelected() (PluginsTab, tea.Cmd) {
	item, ok := p.selected()
	if !ok || !item.info.Active {
		return p, nil
	}
	if !p.online {
		return p, status("daemon not connected")
	}
	if _, err := p.client.Deactivate(item.info.Name); err != nil {
		return p, status(fmt.Sprintf("error: %v", err))
	}
	return p, tea.Batch(refresh, status("deactivated: "+item.info.Name))
}

func status(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text} }
}

// View implements tea.Model.
func (p PluginsTab) View() string {
	if p.width == 0 || p.height == 0 {
		return ""
	}
	leftWidth := splitWidth(p.width)
	left := lipgloss.NewStyle().Width(leftWidth).Height(p.height - 1).Render(p.list.View())

	var right string
	if item, ok := p.selected(); ok {
		right = renderPluginDetail(item.info, p.width-leftWidth, p.height-1)
	} else {
		right = renderEmpty("No plugins", p.width-leftWidth, p.height-1)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		dimStyle.Padding(0, 1).Render(p.statusText),
	)
}

func renderPluginDetail(info ipc.PluginInfo, width, height int) string {
	state := "inactive"
	if info.Active {
		state = fmt.Sprintf("active, position %d", info.Position)
	}
	fields := [][2]string{
		{"state:", state},
		{"source:", info.Source},
		{"depends on:", strings.Join(info.Deps, ", ")},
		{"provides:", strings.Join(info.Capabilities, ", ")},
	}
	return renderDetail(info.Name, fields, "only the plugin on top can be deactivated", width, height)
}
