package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/compwm/internal/ipc"
	"github.com/1broseidon/compwm/internal/match"
)

type windowItem struct {
	info ipc.WindowInfo
}

func (i windowItem) Title() string {
	name := i.info.Class
	if name == "" {
		name = i.info.Title
	}
	if name == "" {
		return i.info.ID
	}
	return i.info.ID + " " + name
}

func (i windowItem) Description() string {
	parts := []string{i.info.Type}
	if i.info.State != "" {
		parts = append(parts, i.info.State)
	}
	if i.info.Screen >= 0 {
		parts = append(parts, fmt.Sprintf("screen %d", i.info.Screen))
	}
	if !i.info.Mapped {
		parts = append(parts, "unmapped")
	}
	return strings.Join(parts, " | ")
}

func (i windowItem) FilterValue() string { return i.info.ID }

// buildWindowItems keeps the windows whose ids are in keep; a nil keep keeps
// every window.
func buildWindowItems(windows []ipc.WindowInfo, keep map[string]bool) []list.Item {
	items := make([]list.Item, 0, len(windows))
	for _, w := range windows {
		if keep != nil && !keep[w.ID] {
			continue
		}
		items = append(items, windowItem{info: w})
	}
	return items
}

// WindowsTab lists managed windows and filters them with a match expression
// evaluated by the daemon.
type WindowsTab struct {
	list       list.Model
	client     ipc.API
	online     bool
	expr       string
	statusText string

	width  int
	height int

	filtering bool
	input     textinput.Model
}

// NewWindowsTab creates the windows tab.
func NewWindowsTab(client ipc.API) WindowsTab {
	ti := textinput.New()
	ti.Placeholder = "e.g. type=Normal & !class=^Firefox$"
	ti.CharLimit = 256

	return WindowsTab{
		list:   newList("Windows", nil, true),
		client: client,
		input:  ti,
	}
}

// Load re-reads the window list and re-applies the current filter.
func (w *WindowsTab) Load() error {
	data, err := w.client.ListWindows()
	if err != nil {
		w.online = false
		w.list.SetItems(nil)
		return err
	}
	w.online = true

	var keep map[string]bool
	title := "Windows"
	if w.expr != "" {
		res, err := w.client.EvalMatch(w.expr)
		if err != nil {
			return err
		}
		keep = make(map[string]bool, len(res.Matches))
		for _, id := range res.Matches {
			keep[id] = true
		}
		title = fmt.Sprintf("Windows: %d/%d match", len(res.Matches), res.Checked)
	}
	w.list.Title = title
	w.list.SetItems(buildWindowItems(data.Windows, keep))
	return nil
}

// Update implements tea.Model.
func (w WindowsTab) Update(msg tea.Msg) (WindowsTab, tea.Cmd) {
	if w.filtering {
		return w.updateFiltering(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		w.list.SetSize(splitWidth(w.width), w.height-1)
		return w, nil

	case statusMsg:
		w.statusText = msg.text
		return w, clearStatusLater()

	case clearStatusMsg:
		w.statusText = ""
		return w, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "/":
			w.filtering = true
			w.input.SetValue(w.expr)
			w.input.Focus()
			return w, textinput.Blink
		case "c":
			w.expr = ""
			if err := w.Load(); err != nil {
				return w, status(fmt.Sprintf("error: %v", err))
			}
			return w, nil
		}
	}

	var cmd tea.Cmd
	w.list, cmd = w.list.Update(msg)
	return w, cmd
}

func (w WindowsTab) updateFiltering(msg tea.Msg) (WindowsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			w.filtering = false
			w.input.Blur()
			prev := w.expr
			w.expr = match.Parse(w.input.Value()).String()
			if err := w.Load(); err != nil {
				w.expr = prev
				return w, status(fmt.Sprintf("error: %v", err))
			}
			return w, nil
		case "esc":
			w.filtering = false
			w.input.Blur()
			return w, nil
		}
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		return w, nil
	}

	var cmd tea.Cmd
	w.input, cmd = w.input.Update(msg)
	return w, cmd
}

// View implements tea.Model.
func (w WindowsTab) View() string {
	if w.width == 0 || w.height == 0 {
		return ""
	}
	if !w.online {
		return renderEmpty("daemon not running", w.width, w.height)
	}

	leftWidth := splitWidth(w.width)
	height := w.height - 1

	leftContent := w.list.View()
	if w.filtering {
		prompt := promptStyle.Render("Match expression:") + "\n" +
			w.input.View() + "\n" +
			dimStyle.Render("enter: apply  esc: cancel")
		block := lipgloss.NewStyle().Padding(0, 1).Width(leftWidth).Render(prompt)
		listHeight := height - lipgloss.Height(block)
		if listHeight < 1 {
			listHeight = 1
		}
		w.list.SetSize(leftWidth, listHeight)
		leftContent = block + "\n" + w.list.View()
	}
	left := lipgloss.NewStyle().Width(leftWidth).Height(height).Render(leftContent)

	var right string
	if item, ok := w.list.SelectedItem().(windowItem); ok {
		right = renderWindowDetail(item.info, w.width-leftWidth, height)
	} else {
		right = renderEmpty("No matching windows", w.width-leftWidth, height)
	}

	footer := w.statusText
	if footer == "" && w.expr != "" {
		footer = "filter: " + w.expr
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		dimStyle.Padding(0, 1).Render(footer),
	)
}

func renderWindowDetail(info ipc.WindowInfo, width, height int) string {
	flags := []string{}
	if info.OverrideRedirect {
		flags = append(flags, "override-redirect")
	}
	if info.Alpha {
		flags = append(flags, "argb")
	}
	if !info.Mapped {
		flags = append(flags, "unmapped")
	}
	fields := [][2]string{
		{"type:", info.Type},
		{"state:", info.State},
		{"title:", info.Title},
		{"class:", info.Class},
		{"instance:", info.Instance},
		{"role:", info.Role},
		{"geometry:", fmt.Sprintf("%dx%d+%d+%d", info.Width, info.Height, info.X, info.Y)},
		{"opacity:", fmt.Sprintf("%.0f%%", float64(info.Opacity)*100/0xffff)},
		{"flags:", strings.Join(flags, ", ")},
	}
	return renderDetail(info.ID, fields, "", width, height)
}
