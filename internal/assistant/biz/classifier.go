package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/guideline-rag/internal/pkg/textutil"
	"github.com/kart-io/guideline-rag/pkg/llm"
)

// Categories is the closed enumeration of guideline topics a question can be
// classified into. Matching is exact; anything else returned by the model is
// discarded.
var Categories = []string{
	"Lifestyle management recommendations",
	"Medication protocol guidance",
	"Complication screening schedules",
	"Referral criteria",
}

const (
	// classifierMaxSnippets bounds how much evidence the classifier prompt carries.
	classifierMaxSnippets = 5
	// classifierSnippetRunes truncates each evidence snippet in the prompt.
	classifierSnippetRunes = 500
)

// ClassifierConfig configures the category gate.
type ClassifierConfig struct {
	// ScoreThreshold is the minimum top evidence score required before the
	// chat provider is consulted at all.
	ScoreThreshold float32
}

// Classifier is the category gate: it decides which guideline topics a
// question concerns, validated against retrieved evidence. An empty result
// means the question is out of scope and answer generation must not run.
type Classifier struct {
	chatProvider llm.ChatProvider
	config       *ClassifierConfig
}

// NewClassifier creates a category gate over the chat provider.
func NewClassifier(chatProvider llm.ChatProvider, config *ClassifierConfig) *Classifier {
	return &Classifier{chatProvider: chatProvider, config: config}
}

// Classify returns 0..4 categories supported by the evidence. Empty evidence
// or a top score below the threshold short-circuits to the empty set without
// any provider call. Provider or parsing failures also degrade to the empty
// set; classification never fails a query.
func (c *Classifier) Classify(ctx context.Context, question string, evidence []Evidence) []string {
	if len(evidence) == 0 {
		return []string{}
	}
	if evidence[0].Score < c.config.ScoreThreshold {
		logger.Infow("top evidence score below threshold, skipping classification",
			"score", evidence[0].Score, "threshold", c.config.ScoreThreshold)
		return []string{}
	}

	raw, err := c.chatProvider.Generate(ctx, c.userPrompt(question, evidence), c.systemPrompt())
	if err != nil {
		logger.Warnw("category classification failed", "error", err.Error())
		return []string{}
	}

	var parsed struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		logger.Warnw("category classifier returned malformed output", "error", err.Error())
		return []string{}
	}

	allowed := make(map[string]struct{}, len(Categories))
	for _, cat := range Categories {
		allowed[cat] = struct{}{}
	}

	out := make([]string, 0, len(Categories))
	seen := make(map[string]struct{}, len(parsed.Categories))
	for _, cat := range parsed.Categories {
		if _, ok := allowed[cat]; !ok {
			continue
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

func (c *Classifier) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a classifier for clinician queries about diabetes guideline content.\n")
	b.WriteString("Choose ALL applicable categories from the allowed list, based on the QUESTION.\n")
	b.WriteString("Then validate each chosen category using the EVIDENCE.\n")
	b.WriteString("- Only keep categories that are supported by the evidence.\n")
	b.WriteString("- If the question is out-of-scope or evidence is insufficient, return an EMPTY list.\n\n")
	b.WriteString(fmt.Sprintf("Allowed categories (exact strings): %q\n", Categories))
	b.WriteString("Return STRICT JSON only. No prose.\n")
	b.WriteString(`Output format: {"categories": [ ... ]}` + "\n")
	b.WriteString("Rules:\n")
	b.WriteString("- categories may be empty\n")
	b.WriteString("- each item must exactly match one allowed category\n")
	return b.String()
}

func (c *Classifier) userPrompt(question string, evidence []Evidence) string {
	snippets := evidence
	if len(snippets) > classifierMaxSnippets {
		snippets = snippets[:classifierMaxSnippets]
	}

	var b strings.Builder
	b.WriteString("QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nEVIDENCE (top retrieved snippets):\n")
	for i, e := range snippets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] page=%d score=%.4f\n%s",
			i+1, e.Page, e.Score, textutil.TruncateString(e.Text, classifierSnippetRunes))
	}
	b.WriteString("\n\nReturn JSON only.")
	return b.String()
}
