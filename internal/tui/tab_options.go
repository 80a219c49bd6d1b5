package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/compwm/internal/ipc"
	"github.com/1broseidon/compwm/internal/option"
)

type optionItem struct {
	plugin string
	info   ipc.OptionInfo
}

func (i optionItem) Title() string {
	return i.plugin + "." + i.info.Name
}

func (i optionItem) Description() string {
	return i.info.Type + " = " + i.info.Text
}

func (i optionItem) FilterValue() string { return i.Title() }

func buildOptionItems(data []*ipc.OptionsData) []list.Item {
	var items []list.Item
	for _, d := range data {
		for _, o := range d.Options {
			items = append(items, optionItem{plugin: d.Plugin, info: o})
		}
	}
	return items
}

// scopeNames returns the scopes the options tab cycles through.
func scopeNames(screens int) []string {
	scopes := []string{"display"}
	for i := 0; i < screens; i++ {
		scopes = append(scopes, "screens."+strconv.Itoa(i))
	}
	return scopes
}

// editText is the initial form text for an option; lists are edited as
// comma separated text.
func editText(info ipc.OptionInfo) string {
	if info.Type == option.TypeList.String() {
		return strings.TrimSuffix(strings.TrimPrefix(info.Text, "["), "]")
	}
	return info.Text
}

// validateOptionText checks text against the option type before it is sent
// to the daemon. Range checks are left to the daemon.
func validateOptionText(info ipc.OptionInfo) func(string) error {
	typ := info.Type
	if typ == option.TypeList.String() {
		typ = info.ElementType
	}
	check := func(s string) error {
		s = strings.TrimSpace(s)
		switch typ {
		case "int":
			if _, err := strconv.Atoi(s); err != nil {
				return fmt.Errorf("not an integer")
			}
		case "float":
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return fmt.Errorf("not a number")
			}
		case "color":
			if _, err := option.ParseColor(s); err != nil {
				return err
			}
		}
		return nil
	}
	if info.Type != option.TypeList.String() {
		return check
	}
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		for _, part := range strings.Split(s, ",") {
			if err := check(part); err != nil {
				return err
			}
		}
		return nil
	}
}

// OptionsTab lists the options of every active plugin in one scope and edits
// them through SetOption.
type OptionsTab struct {
	list       list.Model
	client     ipc.API
	plugins    []string
	scopes     []string
	scope      int
	online     bool
	statusText string

	width  int
	height int

	editing bool
	form    *huh.Form
	target  optionItem
	fValue  string
}

// NewOptionsTab creates an empty options tab; SetStack fills it.
func NewOptionsTab(client ipc.API) OptionsTab {
	return OptionsTab{
		list:   newList("Options: display", nil, true),
		client: client,
		scopes: scopeNames(0),
	}
}

// SetStack records the active plugins and screen count and reloads the
// options.
func (o *OptionsTab) SetStack(plugins []string, screens int) {
	o.plugins = plugins
	o.scopes = scopeNames(screens)
	if o.scope >= len(o.scopes) {
		o.scope = 0
	}
	o.Load()
}

// Load re-reads the options of the current scope.
func (o *OptionsTab) Load() {
	scope := o.scopes[o.scope]
	o.list.Title = "Options: " + scope
	var data []*ipc.OptionsData
	o.online = false
	for _, p := range o.plugins {
		d, err := o.client.GetOptions(p, scope)
		if err != nil {
			continue
		}
		o.online = true
		data = append(data, d)
	}
	o.list.SetItems(buildOptionItems(data))
}

// Update implements tea.Model.
func (o OptionsTab) Update(msg tea.Msg) (OptionsTab, tea.Cmd) {
	if o.editing {
		return o.updateEditing(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height
		o.list.SetSize(splitWidth(o.width), o.height-1)
		return o, nil

	case statusMsg:
		o.statusText = msg.text
		return o, clearStatusLater()

	case clearStatusMsg:
		o.statusText = ""
		return o, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "s":
			o.scope = (o.scope + 1) % len(o.scopes)
			o.Load()
			return o, nil
		case "e", "enter":
			item, ok := o.list.SelectedItem().(optionItem)
			if !ok {
				return o, nil
			}
			o.startEditing(item)
			return o, o.form.Init()
		}
	}

	var cmd tea.Cmd
	o.list, cmd = o.list.Update(msg)
	return o, cmd
}

func (o OptionsTab) updateEditing(msg tea.Msg) (OptionsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			o.editing = false
			o.form = nil
			return o, nil
		}
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height
	}

	form, cmd := o.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		o.form = f
	}

	if o.form.State == huh.StateCompleted {
		o.editing = false
		o.form = nil
		return o, o.apply()
	}
	return o, cmd
}

func (o *OptionsTab) startEditing(item optionItem) {
	o.target = item
	o.fValue = editText(item.info)

	w := o.width - splitWidth(o.width) - 4
	if w < 30 {
		w = 30
	}

	title := item.Title()
	desc := item.info.Short
	if item.info.Restriction != "" {
		desc += " (" + item.info.Restriction + ")"
	}

	var field huh.Field
	switch {
	case item.info.Type == "bool":
		field = huh.NewSelect[string]().
			Key("value").
			Title(title).
			Description(desc).
			Options(huh.NewOptions("true", "false")...).
			Value(&o.fValue)
	case item.info.Type == "string" && item.info.Restriction != "":
		field = huh.NewSelect[string]().
			Key("value").
			Title(title).
			Description(item.info.Short).
			Options(huh.NewOptions(strings.Split(item.info.Restriction, "|")...)...).
			Value(&o.fValue)
	default:
		field = huh.NewInput().
			Key("value").
			Title(title).
			Description(desc).
			Validate(validateOptionText(item.info)).
			Value(&o.fValue)
	}

	o.form = huh.NewForm(huh.NewGroup(field)).
		WithWidth(w).
		WithShowHelp(true).
		WithShowErrors(true)
	o.editing = true
}

func (o *OptionsTab) apply() tea.Cmd {
	scope := o.scopes[o.scope]
	res, err := o.client.SetOption(o.target.plugin, scope, o.target.info.Name, o.fValue)
	if err != nil {
		return status(fmt.Sprintf("error: %v", err))
	}
	o.Load()
	if !res.Changed {
		return status(fmt.Sprintf("%s unchanged (%s)", o.target.Title(), res.Value))
	}
	return status(fmt.Sprintf("%s = %s", o.target.Title(), res.Value))
}

// View implements tea.Model.
func (o OptionsTab) View() string {
	if o.width == 0 || o.height == 0 {
		return ""
	}
	if !o.online {
		return renderEmpty("daemon not running: options are only shown for a live compositor", o.width, o.height)
	}

	leftWidth := splitWidth(o.width)
	left := lipgloss.NewStyle().Width(leftWidth).Height(o.height - 1).Render(o.list.View())

	var right string
	switch item, ok := o.list.SelectedItem().(optionItem); {
	case o.editing && o.form != nil:
		right = lipgloss.NewStyle().
			Width(o.width-leftWidth).
			Height(o.height-1).
			Padding(1, 2).
			Render(promptStyle.Render("Edit option") + "\n\n" + o.form.View())
	case ok:
		right = renderOptionDetail(item, o.width-leftWidth, o.height-1)
	default:
		right = renderEmpty("No options in this scope", o.width-leftWidth, o.height-1)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		dimStyle.Padding(0, 1).Render(o.statusText),
	)
}

func renderOptionDetail(item optionItem, width, height int) string {
	typ := item.info.Type
	if item.info.ElementType != "" {
		typ += " of " + item.info.ElementType
	}
	fields := [][2]string{
		{"type:", typ},
		{"value:", item.info.Text},
		{"default:", fmt.Sprint(item.info.Default)},
		{"allowed:", item.info.Restriction},
		{"about:", item.info.Long},
	}
	if item.info.Long == "" {
		fields[4][1] = item.info.Short
	}
	return renderDetail(item.Title(), fields, "changes are not written to the config file", width, height)
}
