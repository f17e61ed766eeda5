package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/embed-runtime/bridge"
	"github.com/wippyai/embed-runtime/mirror"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// listHeight is the number of rows shown in the class and method lists.
const listHeight = 15

type modelState int

const (
	stateSelectClass modelState = iota
	stateSelectMethod
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	ctx      context.Context
	b        *bridge.Bridge
	err      error
	mt       *mirror.MirroredType
	info     typeInfo
	result   string
	classes  []string
	methods  []string
	input    textinput.Model
	selected int
	method   int
	state    modelState
}

type describedMsg struct {
	err error
	mt  *mirror.MirroredType
}

type callResultMsg struct {
	err    error
	result string
}

func newInteractiveModel(ctx context.Context, b *bridge.Bridge) *interactiveModel {
	return &interactiveModel{
		ctx:     ctx,
		b:       b,
		classes: mirrorable(b.ClassPath()),
		state:   stateSelectClass,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) lookupClass() tea.Msg {
	mt, err := m.b.LookupClass(m.ctx, m.classes[m.selected])
	return describedMsg{err: err, mt: mt}
}

func (m *interactiveModel) callMethod() tea.Msg {
	args, err := parseArgs(m.input.Value())
	if err != nil {
		return callResultMsg{err: err}
	}
	out, err := invoke(m.ctx, m.b, m.mt, m.methods[m.method], args)
	return callResultMsg{err: err, result: out}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			switch m.state {
			case stateSelectClass:
				if m.selected > 0 {
					m.selected--
				}
			case stateSelectMethod:
				if m.method > 0 {
					m.method--
				}
			}

		case "down", "j":
			switch m.state {
			case stateSelectClass:
				if m.selected < len(m.classes)-1 {
					m.selected++
				}
			case stateSelectMethod:
				if m.method < len(m.methods)-1 {
					m.method++
				}
			}

		case "enter":
			switch m.state {
			case stateSelectClass:
				return m, m.lookupClass

			case stateSelectMethod:
				if len(m.methods) == 0 {
					return m, nil
				}
				m.input = textinput.New()
				m.input.Placeholder = "1, 2.5, true, \"text\""
				m.input.Prompt = "args: "
				m.input.Width = 40
				m.input.Focus()
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callMethod

			case stateShowResult:
				m.back()
			}

		case "esc":
			switch m.state {
			case stateSelectMethod:
				m.state = stateSelectClass
				m.mt = nil
			case stateInputArgs, stateShowResult:
				m.back()
			}
		}

	case describedMsg:
		m.err = msg.err
		if msg.err != nil {
			m.state = stateShowResult
			return m, nil
		}
		m.mt = msg.mt
		m.info = describe(msg.mt)
		m.methods = nil
		seen := make(map[string]bool)
		for _, e := range msg.mt.MRO() {
			for _, name := range e.MethodNames() {
				if !seen[name] {
					seen[name] = true
					m.methods = append(m.methods, name)
				}
			}
		}
		m.method = 0
		m.state = stateSelectMethod

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

// back leaves a result or argument prompt for the method list, or the
// class list when no class is loaded.
func (m *interactiveModel) back() {
	m.result = ""
	m.err = nil
	if m.mt == nil {
		m.state = stateSelectClass
		return
	}
	m.state = stateSelectMethod
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Mirror Inspector"))
	b.WriteString(" ")
	b.WriteString(m.b.Session())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectClass:
		b.WriteString("Select a class:\n\n")
		writeList(&b, m.classes, m.selected, typeStyle.Render)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter describe • q quit"))

	case stateSelectMethod:
		b.WriteString(m.info.render(titleStyle.Render, typeStyle.Render, funcStyle.Render))
		b.WriteString("\nSelect a method to call:\n\n")
		writeList(&b, m.methods, m.method, funcStyle.Render)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter arguments • esc back • q quit"))

	case stateInputArgs:
		b.WriteString(fmt.Sprintf("Calling %s.%s\n\n", typeStyle.Render(m.mt.Name()), funcStyle.Render(m.methods[m.method])))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

// writeList renders a window of items around the cursor.
func writeList(b *strings.Builder, items []string, cursor int, style styler) {
	start := 0
	if cursor >= listHeight {
		start = cursor - listHeight + 1
	}
	end := min(start+listHeight, len(items))
	for i := start; i < end; i++ {
		if i == cursor {
			b.WriteString(selectedStyle.Render("> " + items[i]))
		} else {
			b.WriteString("  " + style(items[i]))
		}
		b.WriteString("\n")
	}
}

func runInteractive(ctx context.Context, b *bridge.Bridge) error {
	p := tea.NewProgram(newInteractiveModel(ctx, b), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
