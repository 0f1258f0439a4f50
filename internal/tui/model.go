package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the assistant.
type ChatPort interface {
	Chat(ctx context.Context, sessionID, query string) (domain.Reply, error)
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryError
)

type entry struct {
	kind  entryKind
	text  string
	reply domain.Reply
}

// replyMsg carries the outcome of one chat turn back to Update.
type replyMsg struct {
	reply domain.Reply
	err   error
}

// Model is the Bubble Tea model for the chat window.
type Model struct {
	ctx       context.Context
	service   ChatPort
	sessionID string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	transcript []entry
	summary    string
	status     string
	busy       bool
	ready      bool
}

// New creates a chat model bound to one session. summary is shown under
// the title, typically the result of the startup folder scan.
func New(ctx context.Context, service ChatPort, sessionID, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type exit to quit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))

	return Model{
		ctx:       ctx,
		service:   service,
		sessionID: sessionID,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		summary:   summary,
		status:    "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-transcriptBoxStyle.GetHorizontalFrameSize())
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.transcript = append(m.transcript, entry{kind: entryError, text: msg.err.Error()})
			m.status = "The last question failed; you can ask again."
		} else {
			m.transcript = append(m.transcript, entry{kind: entryAssistant, reply: msg.reply})
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if isExit(q) {
				return m, tea.Quit
			}
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			m.transcript = append(m.transcript, entry{kind: entryUser, text: q})
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(query string) tea.Cmd {
	ctx, service, id := m.ctx, m.service, m.sessionID
	return func() tea.Msg {
		reply, err := service.Chat(ctx, id, query)
		return replyMsg{reply: reply, err: err}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Company Assistant")
	summary := summaryStyle.Render(m.summary)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.transcript, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderTranscript(entries []entry, width int) string {
	if len(entries) == 0 {
		return summaryStyle.Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width))
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(wrap.Render(userStyle.Render("You: ") + e.text))
		case entryError:
			b.WriteString(wrap.Render(errorStyle.Render("Error: " + e.text)))
		case entryAssistant:
			b.WriteString(ModeLabel(e.reply))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.reply.Answer))
			if len(e.reply.Sources) > 0 {
				b.WriteString("\n")
				b.WriteString(wrap.Render(sourcesStyle.Render("Sources: " + strings.Join(e.reply.Sources, ", "))))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ModeLabel renders the coloured mode and score tag shown above an answer.
func ModeLabel(r domain.Reply) string {
	if r.Mode == domain.ModeInternal {
		return internalStyle.Render(fmt.Sprintf("[INTERNAL RAG - Score: %.2f]", r.Score))
	}
	return externalStyle.Render(fmt.Sprintf("[WEB SEARCH - Score: %.2f]", r.Score))
}

func isExit(q string) bool {
	switch strings.ToLower(q) {
	case "exit", "quit":
		return true
	}
	return false
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	summaryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle          = lipgloss.NewStyle().Bold(true)
	internalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	externalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourcesStyle       = lipgloss.NewStyle().Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
