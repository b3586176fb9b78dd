// Package prompt assembles the instruction sent to the answer generator
// from retrieved chunks and the user's question.
package prompt

import (
	"fmt"
	"strings"

	"lexa/internal/domain"
)

// Template placeholders.
const (
	ContextPlaceholder  = "{{context}}"
	QuestionPlaceholder = "{{question}}"
)

// Separator joins chunk contents inside the context block.
const Separator = "\n\n---\n\n"

// DefaultTemplate restricts answers to the retrieved context and asks for
// the four-part structure.
const DefaultTemplate = `You are Lexa, a Nigerian legal assistant. You answer questions about Nigerian Contract Law and Land Law only.

Answer the question using only the legal context below. If the context does not cover the question, say that you do not have enough information instead of guessing. Do not invent statutes, cases or section numbers.

Structure your answer in four sections:
1. Legal Issue: restate the legal question raised.
2. Applicable Law: the rules, statutes or principles from the context that apply.
3. Application: apply those rules to the question.
4. Conclusion: a short conclusion or practical advice.

Context:
{{context}}

Question: {{question}}

Answer:`

// Composer fills a template with retrieved context and a question.
type Composer struct {
	template string
}

// New validates template, falling back to DefaultTemplate when it is empty.
func New(template string) (*Composer, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	for _, p := range []string{ContextPlaceholder, QuestionPlaceholder} {
		if !strings.Contains(template, p) {
			return nil, fmt.Errorf("%w: prompt template lacks %s", domain.ErrConfiguration, p)
		}
	}
	return &Composer{template: template}, nil
}

// Compose joins the chunk contents in order and substitutes them and the
// question into the template. An empty chunk list gives an empty context.
func (c *Composer) Compose(chunks []domain.Chunk, question string) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content()
	}
	r := strings.NewReplacer(
		ContextPlaceholder, strings.Join(parts, Separator),
		QuestionPlaceholder, question,
	)
	return r.Replace(c.template)
}
