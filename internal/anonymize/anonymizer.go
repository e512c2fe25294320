// Package anonymize removes personal and commercial identifiers from
// free-form text. A run layers an optional entity recognizer, per-call
// custom term rules, an ordered pattern library, fixed brand and city
// vocabularies and quoted-text suppression; each layer works on the
// output of the previous one.
package anonymize

import (
	"context"
	"log/slog"
	"sort"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
)

const instrumentationName = "github.com/gonkalabs/deckanon/internal/anonymize"

// Report describes what a run did.
type Report struct {
	RecognizerAvailable bool           `json:"recognizer_available"`
	Counts              map[string]int `json:"counts"`
	SkippedRules        []string       `json:"skipped_rules,omitempty"`
}

// Total is the number of replacements across all categories.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Anonymizer runs the redaction pipeline. It holds no per-call state and
// may be shared by concurrent callers.
type Anonymizer struct {
	lib      *Library
	provider Provider

	tracer     trace.Tracer
	redactions metric.Int64Counter
	degraded   metric.Int64Counter
}

// New returns an Anonymizer over lib. A nil provider runs without entity
// recognition.
func New(lib *Library, provider Provider) *Anonymizer {
	if provider == nil {
		provider = Unavailable
	}
	meter := otel.Meter(instrumentationName)
	redactions, err := meter.Int64Counter("anonymize.redactions",
		metric.WithDescription("Replacements made, by category"))
	if err != nil {
		redactions, _ = noop.Meter{}.Int64Counter("anonymize.redactions")
	}
	degraded, err := meter.Int64Counter("anonymize.recognizer.unavailable",
		metric.WithDescription("Runs that went ahead without an entity recognizer"))
	if err != nil {
		degraded, _ = noop.Meter{}.Int64Counter("anonymize.recognizer.unavailable")
	}
	return &Anonymizer{
		lib:        lib,
		provider:   provider,
		tracer:     otel.Tracer(instrumentationName),
		redactions: redactions,
		degraded:   degraded,
	}
}

// Library returns the library the Anonymizer was built with.
func (a *Anonymizer) Library() *Library {
	return a.lib
}

// RecognizerAvailable asks the provider whether entity recognition would
// run right now.
func (a *Anonymizer) RecognizerAvailable(ctx context.Context) bool {
	_, ok := a.recognizer(ctx)
	return ok
}

// Anonymize returns text with every recognised entity, custom term,
// library pattern, vocabulary term and long quotation replaced by its
// placeholder. It never fails: steps that cannot run are skipped.
func (a *Anonymizer) Anonymize(ctx context.Context, text string, rules CustomRules) string {
	out, _ := a.AnonymizeWithReport(ctx, text, rules)
	return out
}

// AnonymizeWithReport is Anonymize plus a summary of the run.
func (a *Anonymizer) AnonymizeWithReport(ctx context.Context, text string, rules CustomRules) (string, Report) {
	ctx, span := a.tracer.Start(ctx, "anonymize.run")
	defer span.End()

	rep := Report{Counts: map[string]int{}}
	out := norm.NFC.String(text)

	if rec, ok := a.recognizer(ctx); ok {
		rep.RecognizerAvailable = true
		out = a.applyEntities(ctx, out, rec, &rep)
	} else {
		a.degraded.Add(ctx, 1)
	}

	rules = rules.Clone()
	for _, term := range rules.Terms() {
		p, ok := literalPass([]string{norm.NFC.String(term)}, rules[term])
		if !ok {
			continue
		}
		out = a.step(&rep, "custom:"+term, "custom", out, p)
	}

	for _, r := range a.lib.Rules {
		out = a.step(&rep, "pattern:"+r.Category, r.Category, out, r.pass)
	}
	for _, v := range a.lib.Vocabularies {
		if v.empty {
			continue
		}
		out = a.step(&rep, "vocabulary:"+v.Category, v.Category, out, v.pass)
	}
	for _, q := range a.lib.Quotes {
		out = a.step(&rep, "quote:"+q.Category, q.Category, out, q.pass)
	}

	for category, n := range rep.Counts {
		a.redactions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", category)))
	}
	span.SetAttributes(
		attribute.Bool("anonymize.recognizer_available", rep.RecognizerAvailable),
		attribute.Int("anonymize.replacements", rep.Total()),
		attribute.Int("anonymize.skipped_rules", len(rep.SkippedRules)),
	)
	if rep.Total() == 0 {
		// Normal form only matters for matching; untouched input is returned as given.
		return text, rep
	}
	return out, rep
}

// step runs one pass. A pass that panics is skipped and the text it was
// given is carried forward unchanged.
func (a *Anonymizer) step(rep *Report, name, category, text string, p pass) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("anonymize: rule failed, skipping", "rule", name, "panic", r)
			rep.SkippedRules = append(rep.SkippedRules, name)
			out = text
		}
	}()
	res, n := p.apply(text, newGuard(text, a.lib.placeholders))
	if n > 0 {
		rep.Counts[category] += n
	}
	return res
}

func (a *Anonymizer) recognizer(ctx context.Context) (rec Recognizer, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("anonymize: recognizer provider failed", "panic", r)
			rec, ok = nil, false
		}
	}()
	return a.provider.Recognizer(ctx)
}

type entityReplacement struct {
	Span
	placeholder string
}

// applyEntities replaces recogniser spans right to left at their original
// offsets. Overlapping spans are not reconciled: later indices are
// clamped to the current text, so the result is best-effort but never
// panics.
func (a *Anonymizer) applyEntities(ctx context.Context, text string, rec Recognizer, rep *Report) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("anonymize: recognizer failed, skipping", "panic", r)
			rep.SkippedRules = append(rep.SkippedRules, "recognizer")
			out = text
		}
	}()

	spans, err := rec.Recognize(ctx, text)
	if err != nil {
		slog.Warn("anonymize: recognizer failed, continuing without entities", "err", err)
		return text
	}

	valid := make([]entityReplacement, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		ph, ok := a.lib.Entities.Placeholder(s.Label)
		if !ok {
			continue
		}
		s.Label = CanonicalLabel(s.Label)
		valid = append(valid, entityReplacement{Span: s, placeholder: ph})
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Start > valid[j].Start })

	out = text
	for _, r := range valid {
		start, end := clampSpan(out, r.Start, r.End)
		if start >= end {
			continue
		}
		out = out[:start] + r.placeholder + out[end:]
		rep.Counts[r.Label]++
	}
	return out
}

// clampSpan fits [start, end) into text and widens it to rune boundaries.
func clampSpan(text string, start, end int) (int, int) {
	start = min(max(start, 0), len(text))
	end = min(max(end, start), len(text))
	for start > 0 && start < len(text) && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return start, end
}
