// Package prosener provides an in-process Recognizer built on prose's
// statistical English NER model. It needs no sidecar and is always
// available, at the price of English-only PERSON and GPE entities.
package prosener

import (
	"context"
	"fmt"

	"github.com/jdkato/prose/v2"

	"github.com/gonkalabs/deckanon/internal/anonymize"
)

// Recognizer runs prose's entity extractor.
type Recognizer struct{}

// New returns a Recognizer.
func New() *Recognizer {
	return &Recognizer{}
}

// Recognize implements anonymize.Recognizer. prose reports entity strings
// without offsets, so every word-bounded occurrence of an entity becomes
// a span.
func (r *Recognizer) Recognize(ctx context.Context, text string) ([]anonymize.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prosener: %w", err)
	}

	seen := map[string]bool{}
	var spans []anonymize.Span
	for _, ent := range doc.Entities() {
		key := ent.Label + "\x00" + ent.Text
		if ent.Text == "" || seen[key] {
			continue
		}
		seen[key] = true
		spans = append(spans, anonymize.Locate(text, ent.Text, ent.Label)...)
	}
	return spans, nil
}

// Provider is always available.
func Provider() anonymize.Provider {
	return anonymize.Static(New())
}
