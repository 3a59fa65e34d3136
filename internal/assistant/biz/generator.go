package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
	"github.com/kart-io/guideline-rag/pkg/llm"
)

// answerSystemPrompt keeps the model grounded: answers come from evidence
// only, with page citations, and insufficiency is disclosed rather than
// papered over.
const answerSystemPrompt = `You are a clinical guideline assistant.
Answer ONLY using the provided evidence. If evidence is insufficient, say so.
Keep the answer concise and cite page numbers from evidence when possible.
`

// Generator is the answer synthesizer. It is only invoked after the category
// gate returned a non-empty set; there is no safe fallback once a question
// was deemed in scope, so provider failures propagate.
type Generator struct {
	chatProvider llm.ChatProvider
}

// NewGenerator creates an answer synthesizer over the chat provider.
func NewGenerator(chatProvider llm.ChatProvider) *Generator {
	return &Generator{chatProvider: chatProvider}
}

// Synthesize builds a grounded prompt from the evidence and generates the
// answer. Output is trusted verbatim, trimmed of surrounding whitespace.
func (g *Generator) Synthesize(ctx context.Context, question string, evidence []Evidence) (string, error) {
	prompt := fmt.Sprintf("Question:\n%s\n\nEvidence:\n%s\n\nWrite an answer based on the evidence above.",
		question, buildEvidenceContext(evidence))

	answer, err := g.chatProvider.Generate(ctx, prompt, answerSystemPrompt)
	if err != nil {
		logger.Errorw("answer generation failed", "error", err.Error())
		return "", errno.ErrGenerationFailed.WithCause(err)
	}
	return strings.TrimSpace(answer), nil
}

// buildEvidenceContext labels each snippet with its page number so the model
// can cite pages.
func buildEvidenceContext(evidence []Evidence) string {
	lines := make([]string, 0, len(evidence))
	for _, e := range evidence {
		text := strings.TrimSpace(strings.ReplaceAll(e.Text, "\n", " "))
		lines = append(lines, fmt.Sprintf("[p%d] %s", e.Page, text))
	}
	return strings.Join(lines, "\n")
}
