package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lexa/internal/domain"
	"lexa/internal/textutil"
)

const (
	title        = "Lexa - Nigerian Legal Assistant"
	thinkingText = "Lexa is thinking..."
	readyStatus  = "Enter to ask, Ctrl+L to clear, Ctrl+C to quit."
)

type role int

const (
	roleUser role = iota
	roleLexa
)

type message struct {
	role  role
	text  string
	query string // the question a Lexa reply answers
}

// answerMsg carries the result of an asynchronous ProcessQuery call.
type answerMsg struct {
	query  string
	answer string
	err    error
}

// Model is the Bubble Tea model for the chat window.
type Model struct {
	ctx       context.Context
	assistant domain.Assistant
	greeting  string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	messages []message
	status   string
	pending  bool
	ready    bool
}

// New creates a chat opened with greeting. ctx bounds every query.
func New(ctx context.Context, assistant domain.Assistant, greeting string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about Nigerian contract or land law"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return Model{
		ctx:       ctx,
		assistant: assistant,
		greeting:  greeting,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		messages:  []message{{role: roleLexa, text: greeting}},
		status:    readyStatus,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, spinner and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case answerMsg:
		m.pending = false
		m.messages = append(m.messages, message{role: roleLexa, text: msg.answer, query: msg.query})
		m.status = readyStatus
		if msg.err != nil {
			m.status = "Request failed. " + readyStatus
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlL:
			m.assistant.Reset()
			m.messages = []message{{role: roleLexa, text: m.greeting}}
			m.status = "Chat cleared. " + readyStatus
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.messages = append(m.messages, message{role: roleUser, text: q})
			m.pending = true
			m.status = thinkingText
			m.refresh()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	ctx, a := m.ctx, m.assistant
	return func() tea.Msg {
		answer, err := a.ProcessQuery(ctx, q)
		return answerMsg{query: q, answer: answer, err: err}
	}
}

// View renders the header, chat transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(title)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).
		MaxWidth(max(20, m.viewport.Width)).Render(firstLine(m.assistant.Summary()))
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	chat := chatBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + chat + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderChat())
	m.viewport.GotoBottom()
}

func (m Model) renderChat() string {
	width := max(20, m.viewport.Width-chatBoxStyle.GetHorizontalFrameSize())
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(wrap.Render(msg.text))
		case roleLexa:
			b.WriteString(lexaStyle.Render("Lexa: "))
			b.WriteString(wrap.Render(highlightBestSentence(msg.text, msg.query)))
		}
	}
	return b.String()
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	lexaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// highlightBestSentence emphasizes the sentence of text sharing the most
// non-stopword tokens with query. Layout is preserved.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(query) == "" {
		return text
	}
	sentences := textutil.Sentences(text)
	best := bestSentence(sentences, query)
	if best < 0 {
		return text
	}
	return strings.Replace(text, sentences[best], highlightStyle.Render(sentences[best]), 1)
}

// bestSentence returns the index of the first sentence with the highest
// token overlap with query, or -1 when nothing overlaps.
func bestSentence(sentences []string, query string) int {
	qTokens := textutil.TokenSet(query)
	best, bestScore := -1, 0
	for i, s := range sentences {
		score := 0
		for tok := range textutil.TokenSet(s) {
			if _, ok := qTokens[tok]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
