package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexa/internal/domain"
)

func TestNew_Validation(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate, c.template)

	_, err = New("Context: {{context}}")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New("Question: {{question}}")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCompose_DefaultTemplate(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	chunks := []domain.Chunk{
		{Title: "Offer", Text: "An offer is a definite promise."},
		{Title: "Acceptance", Text: "Acceptance must be unconditional."},
	}
	out := c.Compose(chunks, "What makes a contract valid?")

	assert.Contains(t, out, "Offer\n\nAn offer is a definite promise."+Separator+"Acceptance\n\nAcceptance must be unconditional.")
	assert.Contains(t, out, "Question: What makes a contract valid?")
	assert.Contains(t, out, "Nigerian Contract Law and Land Law")
	for _, section := range []string{"Legal Issue", "Applicable Law", "Application", "Conclusion"} {
		assert.Contains(t, out, section)
	}
	assert.NotContains(t, out, ContextPlaceholder)
	assert.NotContains(t, out, QuestionPlaceholder)
}

func TestCompose_PreservesOrderAndEmptyContext(t *testing.T) {
	c, err := New("[{{context}}] {{question}}")
	require.NoError(t, err)

	out := c.Compose([]domain.Chunk{{Text: "b"}, {Text: "a"}}, "q")
	assert.Equal(t, "[b"+Separator+"a] q", out)

	assert.Equal(t, "[] q", c.Compose(nil, "q"))
}

func TestCompose_PlaceholderInQuestionIsLiteral(t *testing.T) {
	c, err := New("{{context}}|{{question}}")
	require.NoError(t, err)
	out := c.Compose([]domain.Chunk{{Text: "ctx"}}, "what is {{context}}?")
	assert.Equal(t, "ctx|what is {{context}}?", out)
	assert.Equal(t, 1, strings.Count(out, "ctx|"))
}
