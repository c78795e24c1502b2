package terminal

import (
	"strings"

	"taskmate/pkg/tasks"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const panelWidth = 32

// Messages delivered to the program from outside the update loop.
type (
	replyMsg    struct{ text string }
	thinkingMsg struct{}
	panelMsg    struct{ panel tasks.Panel }
	sentMsg     struct{}
)

type line struct {
	who  string // "user", "assistant", "error"
	text string
}

// Model is the chat screen: transcript on the left, task panel on the right.
type Model struct {
	input    textinput.Model
	lines    []line
	panel    tasks.Panel
	loaded   bool
	thinking bool
	waiting  bool
	width    int
	height   int

	// submit hands a line to the gateway; it blocks until the reply was sent.
	submit func(text string)
	// fetch loads the task panel.
	fetch func() tasks.Panel
}

func NewModel(submit func(string), fetch func() tasks.Panel) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything or manage tasks"
	ti.Prompt = "you: "
	ti.CharLimit = 2000
	ti.Focus()

	return Model{
		input:  ti,
		submit: submit,
		fetch:  fetch,
		width:  100,
		height: 30,
	}
}

func (m Model) fetchCmd() tea.Cmd {
	if m.fetch == nil {
		return nil
	}
	fetch := m.fetch
	return func() tea.Msg {
		return panelMsg{panel: fetch()}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, m.chatWidth()-8)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.send()
		}

	case replyMsg:
		m.thinking = false
		m.lines = append(m.lines, line{who: "assistant", text: msg.text})
		return m, nil

	case thinkingMsg:
		m.thinking = true
		return m, nil

	// Every finished exchange reloads the task panel.
	case sentMsg:
		m.waiting = false
		m.thinking = false
		return m, m.fetchCmd()

	case panelMsg:
		m.panel = msg.panel
		m.loaded = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send posts the current input. One turn runs at a time.
func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	m.lines = append(m.lines, line{who: "user", text: text})
	m.waiting = true

	submit := m.submit
	return m, func() tea.Msg {
		if submit != nil {
			submit(text)
		}
		return sentMsg{}
	}
}

func (m Model) chatWidth() int {
	return max(20, m.width-panelWidth-2)
}

func (m Model) View() string {
	chatW := m.chatWidth()

	title := titleStyle.Render("AI Task Manager Assistant")
	status := ""
	if m.thinking || m.waiting {
		status = dimStyle.Render("Assistant is thinking…")
	}
	help := helpStyle.Render("Enter: send  /tasks  /help  Esc: quit")

	// title, status, input, help
	bodyH := max(3, m.height-4)
	body := lipgloss.NewStyle().Width(chatW).Height(bodyH).Render(m.renderTranscript(chatW, bodyH))

	chat := lipgloss.JoinVertical(lipgloss.Left, title, body, status, m.input.View(), help)
	return lipgloss.JoinHorizontal(lipgloss.Top, chat, m.renderPanel(bodyH))
}

// renderTranscript wraps the lines to width and keeps the last height rows.
func (m Model) renderTranscript(width, height int) string {
	wrap := lipgloss.NewStyle().Width(width)

	var rows []string
	for _, l := range m.lines {
		var label string
		switch l.who {
		case "user":
			label = userStyle.Render("You:")
		case "assistant":
			label = assistantStyle.Render("Assistant:")
		default:
			label = errorStyle.Render("Error:")
		}
		rendered := wrap.Render(label + " " + l.text)
		rows = append(rows, strings.Split(rendered, "\n")...)
	}
	if len(rows) > height {
		rows = rows[len(rows)-height:]
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderPanel(height int) string {
	var items []string
	if !m.loaded {
		items = []string{dimStyle.Render("Loading…")}
	} else {
		for _, l := range m.panel.Lines() {
			switch {
			case m.panel.Err != nil:
				items = append(items, errorStyle.Render(l))
			case m.panel.Empty():
				items = append(items, dimStyle.Render(l))
			default:
				items = append(items, l)
			}
		}
	}

	content := panelTitleStyle.Render(tasks.PanelTitle) + "\n\n" + strings.Join(items, "\n")
	return panelStyle.Width(panelWidth - 4).Height(height).Render(content)
}
