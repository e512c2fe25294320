// Package post turns anonymized deck text into a social-media post with
// accompanying carousel slides, using a chat-completion model.
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gonkalabs/deckanon/internal/completion"
)

// Type selects the angle of the generated post.
type Type string

const (
	CaseStudy         Type = "case_study"
	ProductLaunch     Type = "product_launch"
	ThoughtLeadership Type = "thought_leadership"
)

// Types lists the supported post types.
var Types = []Type{CaseStudy, ProductLaunch, ThoughtLeadership}

// ParseType maps s onto a known Type; anything else is a case study.
func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case CaseStudy, ProductLaunch, ThoughtLeadership:
		return t
	}
	return CaseStudy
}

// DefaultStyle is used when no company style guidelines are given.
const DefaultStyle = `Our LinkedIn posts typically:
- Start with a thought-provoking question or bold statement
- Use professional but conversational language
- Include specific results and metrics when possible
- End with a clear call to action
- Use 3-5 relevant hashtags, including #YourCompanyName`

// Generation defaults.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 1500
	DefaultTemperature = 0.7
)

var (
	// ErrEmptyInput is returned when there is no anonymized text to work from.
	ErrEmptyInput = errors.New("post: anonymized text is empty")
	// ErrUnparsable is returned when the model answer holds neither a post nor slides.
	ErrUnparsable = errors.New("post: could not parse model output")
)

// Slide is one carousel slide.
type Slide struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Post is a generated post and its carousel.
type Post struct {
	Text   string  `json:"post_text"`
	Slides []Slide `json:"slides"`
}

// Clone returns a deep copy.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	return &Post{Text: p.Text, Slides: append([]Slide(nil), p.Slides...)}
}

// Request describes what to generate.
type Request struct {
	AnonymizedText string
	Type           Type
	CompanyStyle   string
}

// Generator drives a completion model to write posts.
type Generator struct {
	completer   completion.Completer
	model       string
	maxTokens   int
	temperature float32
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float32) Option {
	return func(g *Generator) { g.temperature = t }
}

// NewGenerator creates a Generator. An empty model uses DefaultModel.
func NewGenerator(c completion.Completer, model string, opts ...Option) *Generator {
	if model == "" {
		model = DefaultModel
	}
	g := &Generator{
		completer:   c,
		model:       model,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate writes a post for req. The text must already be anonymized:
// it is sent to the completion backend as is.
func (g *Generator) Generate(ctx context.Context, req Request) (*Post, error) {
	if strings.TrimSpace(req.AnonymizedText) == "" {
		return nil, ErrEmptyInput
	}
	msgs, err := BuildMessages(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.completer.Complete(ctx, completion.Request{
		Model:       g.model,
		Messages:    msgs,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("post: generate: %w", err)
	}

	p, err := Parse(resp.Content)
	if err != nil {
		slog.Warn("post: unparsable model output", "model", g.model, "finish_reason", resp.FinishReason, "len", len(resp.Content))
		return nil, err
	}
	slog.Info("post: generated", "type", ParseType(string(req.Type)), "slides", len(p.Slides), "words", len(strings.Fields(p.Text)))
	return p, nil
}
