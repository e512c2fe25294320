package post

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonkalabs/deckanon/internal/completion"
)

type fakeCompleter struct {
	content string
	err     error
	got     completion.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &completion.Response{Content: f.content, FinishReason: "stop"}, nil
}

const answer = `POST TEXT:
How do you cut onboarding time by [POURCENTAGE]?

We helped [ENTREPRISE] rethink its process. #Onboarding #Growth

CAROUSEL SLIDES:
Slide 1: The challenge
Manual steps everywhere
Slide 2: **The approach**
- Automate intake
- Measure weekly
Slide 3: Results
[POURCENTAGE] faster onboarding`

func TestParseType(t *testing.T) {
	assert.Equal(t, ProductLaunch, ParseType("product_launch"))
	assert.Equal(t, ThoughtLeadership, ParseType(" Thought_Leadership "))
	assert.Equal(t, CaseStudy, ParseType("case_study"))
	assert.Equal(t, CaseStudy, ParseType("webinar"))
	assert.Equal(t, CaseStudy, ParseType(""))
}

func TestParse(t *testing.T) {
	p, err := Parse(answer)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.Text, "How do you cut onboarding time"))
	assert.True(t, strings.HasSuffix(p.Text, "#Onboarding #Growth"))
	require.Len(t, p.Slides, 3)
	assert.Equal(t, Slide{Title: "The challenge", Content: "Manual steps everywhere"}, p.Slides[0])
	assert.Equal(t, Slide{Title: "The approach", Content: "- Automate intake\n- Measure weekly"}, p.Slides[1])
	assert.Equal(t, "Results", p.Slides[2].Title)
}

func TestParseMarkdownVariants(t *testing.T) {
	raw := "<think>planning</think>\n**POST TEXT:**\nBig news today.\n\n## CAROUSEL SLIDES:\n" +
		"**Slide 1:**\nTitle: Launch\nContent: Meet the product\n" +
		"**Slide 2: Why it matters**\nSpeed"
	p, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Big news today.", p.Text)
	require.Len(t, p.Slides, 2)
	assert.Equal(t, Slide{Title: "Launch", Content: "Meet the product"}, p.Slides[0])
	assert.Equal(t, Slide{Title: "Why it matters", Content: "Speed"}, p.Slides[1])
}

func TestParseWithoutSectionHeaders(t *testing.T) {
	p, err := Parse("Just a post with no layout at all.")
	require.NoError(t, err)
	assert.Equal(t, "Just a post with no layout at all.", p.Text)
	assert.Empty(t, p.Slides)

	p, err = Parse("Intro line\nSlide 1: One\nfirst\nSlide 2: Two\nsecond")
	require.NoError(t, err)
	assert.Equal(t, "Intro line", p.Text)
	assert.Len(t, p.Slides, 2)
}

func TestParseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "<think>only thoughts</think>", "```\n```"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrUnparsable, "raw=%q", raw)
	}
}

func TestBuildMessages(t *testing.T) {
	msgs, err := BuildMessages(Request{AnonymizedText: "  deck text  ", Type: ProductLaunch})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, completion.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "LinkedIn")
	assert.Equal(t, completion.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "new\n   product launch")
	assert.Contains(t, msgs[1].Content, DefaultStyle)
	assert.Contains(t, msgs[1].Content, "CAROUSEL SLIDES:")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "Content from presentation:\ndeck text\n"))

	msgs, err = BuildMessages(Request{AnonymizedText: "x", Type: "unknown", CompanyStyle: "Be brief."})
	require.NoError(t, err)
	assert.Contains(t, msgs[1].Content, "case study presentation")
	assert.Contains(t, msgs[1].Content, "Be brief.")
	assert.NotContains(t, msgs[1].Content, DefaultStyle)
}

func TestGenerate(t *testing.T) {
	fc := &fakeCompleter{content: answer}
	g := NewGenerator(fc, "")

	p, err := g.Generate(context.Background(), Request{AnonymizedText: "deck", Type: CaseStudy})
	require.NoError(t, err)
	assert.Len(t, p.Slides, 3)

	assert.Equal(t, DefaultModel, fc.got.Model)
	assert.Equal(t, DefaultMaxTokens, fc.got.MaxTokens)
	assert.InDelta(t, DefaultTemperature, fc.got.Temperature, 1e-6)
	assert.Len(t, fc.got.Messages, 2)
}

func TestGenerateOptions(t *testing.T) {
	fc := &fakeCompleter{content: answer}
	g := NewGenerator(fc, "llama3", WithMaxTokens(200), WithTemperature(0.1))
	_, err := g.Generate(context.Background(), Request{AnonymizedText: "deck"})
	require.NoError(t, err)
	assert.Equal(t, "llama3", fc.got.Model)
	assert.Equal(t, 200, fc.got.MaxTokens)
	assert.InDelta(t, 0.1, fc.got.Temperature, 1e-6)
}

func TestGenerateErrors(t *testing.T) {
	g := NewGenerator(&fakeCompleter{content: answer}, "")
	_, err := g.Generate(context.Background(), Request{AnonymizedText: " \n "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	boom := errors.New("boom")
	g = NewGenerator(&fakeCompleter{err: boom}, "")
	_, err = g.Generate(context.Background(), Request{AnonymizedText: "deck"})
	assert.ErrorIs(t, err, boom)

	g = NewGenerator(&fakeCompleter{content: "  "}, "")
	_, err = g.Generate(context.Background(), Request{AnonymizedText: "deck"})
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestPostClone(t *testing.T) {
	var nilPost *Post
	assert.Nil(t, nilPost.Clone())

	p := &Post{Text: "a", Slides: []Slide{{Title: "t"}}}
	c := p.Clone()
	c.Slides[0].Title = "changed"
	assert.Equal(t, "t", p.Slides[0].Title)
}
