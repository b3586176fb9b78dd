package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeting = "Hello! Ask me about Contract Law or Land Law!"

type fakeAssistant struct {
	queries []string
	resets  int
	answer  string
	err     error
}

func (f *fakeAssistant) ProcessQuery(_ context.Context, q string) (string, error) {
	f.queries = append(f.queries, q)
	return f.answer, f.err
}

func (f *fakeAssistant) Reset() { f.resets++ }

func (f *fakeAssistant) Summary() string { return "6 documents from 2 sources.\nmore detail" }

func sized(t *testing.T, a *fakeAssistant) Model {
	t.Helper()
	m, _ := New(context.Background(), a, greeting).Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m.(Model)
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func TestView_BeforeSize(t *testing.T) {
	m := New(context.Background(), &fakeAssistant{}, greeting)
	assert.Equal(t, "Loading...", m.View())
}

func TestView_ShowsHeaderSummaryAndGreeting(t *testing.T) {
	view := sized(t, &fakeAssistant{}).View()
	assert.Contains(t, view, title)
	assert.Contains(t, view, "6 documents from 2 sources.")
	assert.NotContains(t, view, "more detail")
	assert.Contains(t, view, "Ask me about Contract Law")
}

func TestEnter_AsksAsynchronously(t *testing.T) {
	a := &fakeAssistant{answer: "A lease grants exclusive possession. Rent is payable."}
	m := sized(t, a)
	m.input.SetValue("  What is a lease?  ")

	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, thinkingText, m.status)
	assert.Empty(t, a.queries, "query runs in the command, not in Update")
	assert.Contains(t, m.View(), thinkingText)

	// a second Enter while pending is ignored
	m.input.SetValue("another")
	_, again := m.Update(key(tea.KeyEnter))
	assert.Nil(t, again)

	msg := m.ask("What is a lease?")()
	require.IsType(t, answerMsg{}, msg)
	assert.Equal(t, []string{"What is a lease?"}, a.queries)

	next, _ = m.Update(msg)
	m = next.(Model)
	assert.False(t, m.pending)
	assert.Equal(t, readyStatus, m.status)
	require.Len(t, m.messages, 3)
	assert.Equal(t, roleUser, m.messages[1].role)
	assert.Equal(t, "What is a lease?", m.messages[1].text)
	assert.Equal(t, a.answer, m.messages[2].text)
	assert.Equal(t, "What is a lease?", m.messages[2].query)
}

func TestEnter_EmptyInputIgnored(t *testing.T) {
	m := sized(t, &fakeAssistant{})
	m.input.SetValue("   ")
	next, cmd := m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Len(t, next.(Model).messages, 1)
}

func TestAnswer_FailureShownInStatus(t *testing.T) {
	m := sized(t, &fakeAssistant{})
	m.pending = true
	next, _ := m.Update(answerMsg{query: "q", answer: "Sorry, I encountered an error.", err: errors.New("boom")})
	m = next.(Model)
	assert.Contains(t, m.status, "Request failed")
	assert.Equal(t, "Sorry, I encountered an error.", m.messages[len(m.messages)-1].text)
}

func TestCtrlL_ClearsChatAndResets(t *testing.T) {
	a := &fakeAssistant{}
	m := sized(t, a)
	m.messages = append(m.messages, message{role: roleUser, text: "q"}, message{role: roleLexa, text: "a"})

	next, _ := m.Update(key(tea.KeyCtrlL))
	m = next.(Model)
	assert.Equal(t, 1, a.resets)
	require.Len(t, m.messages, 1)
	assert.Equal(t, greeting, m.messages[0].text)
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyCtrlD} {
		_, cmd := sized(t, &fakeAssistant{}).Update(key(k))
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestBestSentence(t *testing.T) {
	sentences := []string{
		"Legal Issue: the nature of a lease.",
		"A certificate of occupancy evidences a statutory right of occupancy.",
		"Conclusion: the certificate is valid.",
	}
	assert.Equal(t, 1, bestSentence(sentences, "What is a certificate of occupancy?"))
	assert.Equal(t, -1, bestSentence(sentences, "mortgage"))
	assert.Equal(t, -1, bestSentence(sentences, "what is the"))
}

func TestHighlightBestSentence_KeepsText(t *testing.T) {
	text := "A lease is a grant.\n\nRent is due."
	assert.Equal(t, text, highlightBestSentence(text, ""))
	assert.Equal(t, text, highlightBestSentence(text, "mortgage"))
	got := highlightBestSentence(text, "when is rent due")
	assert.Contains(t, got, "A lease is a grant.\n\n")
	assert.Contains(t, got, "Rent is due.")
}
