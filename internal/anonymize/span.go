package anonymize

import (
	"context"
	"strings"
)

// Span describes a recognised entity within a text.
type Span struct {
	Start int    // byte offset of the first character (UTF-8)
	End   int    // byte offset one past the last character
	Label string // e.g. "PERSON", "ORG", "GPE", "MONEY"
}

// Recognizer detects named entities in a text string.
// Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}

// RecognizerFunc adapts a plain function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, text string) ([]Span, error)

// Recognize calls f(ctx, text).
func (f RecognizerFunc) Recognize(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// Provider hands out a working Recognizer, or reports that none can be used
// right now. Absence is a degraded mode, not an error.
type Provider interface {
	Recognizer(ctx context.Context) (Recognizer, bool)
}

// Static returns a Provider that always yields r. A nil r yields a
// Provider that is never available.
func Static(r Recognizer) Provider {
	return staticProvider{r: r}
}

// Unavailable is a Provider without a recognizer.
var Unavailable Provider = staticProvider{}

type staticProvider struct {
	r Recognizer
}

func (p staticProvider) Recognizer(context.Context) (Recognizer, bool) {
	return p.r, p.r != nil
}

// Locate returns a span for every word-bounded occurrence of needle in
// text. Recognizers that only report entity strings use it to recover
// offsets.
func Locate(text, needle, label string) []Span {
	if needle == "" {
		return nil
	}
	var spans []Span
	offset := 0
	for {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			break
		}
		start := offset + idx
		end := start + len(needle)
		if wordBounded(text, start, end) {
			spans = append(spans, Span{Start: start, End: end, Label: label})
		}
		offset = start + len(needle)
	}
	return spans
}
