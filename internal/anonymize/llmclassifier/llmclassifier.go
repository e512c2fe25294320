// Package llmclassifier provides a Recognizer backed by a chat-completion
// model, for deployments that have an LLM but no NER sidecar.
//
// We ask the model for the entity strings verbatim rather than offsets,
// because small models get offsets wrong. Go code locates every
// word-bounded occurrence in the original text itself.
package llmclassifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gonkalabs/deckanon/internal/anonymize"
	"github.com/gonkalabs/deckanon/internal/completion"
)

const systemPrompt = `Extract named entities from the text. Return a JSON array of objects {"text": "...", "label": "..."} where "text" is copied exactly from the input and "label" is one of:
PERSON, ORG, GPE, LOC, PRODUCT, MONEY, CARDINAL, DATE, TIME, PERCENT, QUANTITY, NORP, FAC, EVENT, WORK_OF_ART, LAW, LANGUAGE, ORDINAL.

Do NOT return placeholders in square brackets such as [PERSONNE] or [EMAIL].
Return [] if there are no entities. Return ONLY the JSON array. No explanation.

Example:
Input: "Jean Dupont a rencontré Nestlé à Casablanca le 3 mars."
Output: [{"text": "Jean Dupont", "label": "PERSON"}, {"text": "Nestlé", "label": "ORG"}, {"text": "Casablanca", "label": "GPE"}, {"text": "3 mars", "label": "DATE"}]`

// Classifier asks a completion model for entities.
type Classifier struct {
	completer completion.Completer
	model     string
}

// New creates a Classifier that sends requests for model through c.
func New(c completion.Completer, model string) *Classifier {
	return &Classifier{completer: c, model: model}
}

type entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Recognize implements anonymize.Recognizer. An unreachable model or an
// unreadable answer yields no spans.
func (c *Classifier) Recognize(ctx context.Context, text string) ([]anonymize.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	resp, err := c.completer.Complete(ctx, completion.Request{
		Model: c.model,
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: systemPrompt},
			// /no_think is Qwen3's control token to skip thinking and go straight to the answer.
			{Role: completion.RoleUser, Content: "Text:\n" + text + "\n/no_think"},
		},
		Temperature: 0,
		MaxTokens:   4096,
	})
	if err != nil {
		slog.Warn("llmclassifier: model unreachable, skipping", "model", c.model, "err", err)
		return nil, nil
	}

	content := completion.ExtractJSONArray(resp.Content)
	var entities []entity
	if err := json.Unmarshal([]byte(content), &entities); err != nil {
		slog.Warn("llmclassifier: could not parse model output", "content", content, "err", err)
		return nil, nil
	}

	known := make(map[string]bool, len(anonymize.EntityLabels))
	for _, l := range anonymize.EntityLabels {
		known[l] = true
	}

	seen := map[string]bool{}
	var spans []anonymize.Span
	for _, e := range entities {
		val := strings.TrimSpace(e.Text)
		label := anonymize.CanonicalLabel(e.Label)
		if val == "" || !known[label] || strings.HasPrefix(val, "[") {
			continue
		}
		key := label + "\x00" + val
		if seen[key] {
			continue
		}
		seen[key] = true
		spans = append(spans, anonymize.Locate(text, val, label)...)
	}

	if len(spans) > 0 {
		slog.Debug("llmclassifier: detected entities", "spans", len(spans), "entities", len(entities))
	}
	return spans, nil
}

// String identifies the classifier in logs.
func (c *Classifier) String() string {
	return fmt.Sprintf("llmclassifier(%s)", c.model)
}
