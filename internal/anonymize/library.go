package anonymize

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/gonkalabs/deckanon/internal/patterns"
)

// PatternRule is one compiled entry of the library: every match of Pattern
// that passes the rule's vetting is replaced by Placeholder.
type PatternRule struct {
	Category    string
	Placeholder string
	Pattern     *regexp.Regexp
	pass        pass
}

// Vocabulary is a fixed list of terms replaced by a single placeholder,
// case-insensitively and on word boundaries.
type Vocabulary struct {
	Category    string
	Placeholder string
	Terms       []string
	pass        pass
	empty       bool
}

// Library is the ordered redaction configuration for one locale. It is
// immutable after LoadLibrary and safe to share between goroutines.
type Library struct {
	Locale       string
	Rules        []PatternRule
	Vocabularies []Vocabulary
	Quotes       []PatternRule
	Entities     EntityCategoryMap

	priceRange   *regexp.Regexp
	placeholders []string
}

type ruleDoc struct {
	Category string   `yaml:"category"`
	Regex    string   `yaml:"regex"`
	Vet      []string `yaml:"vet"`
	Rescan   bool     `yaml:"rescan"`
}

type vocabularyDoc struct {
	Category string   `yaml:"category"`
	Terms    []string `yaml:"terms"`
}

type libraryDoc struct {
	Rules        []ruleDoc       `yaml:"rules"`
	Vocabularies []vocabularyDoc `yaml:"vocabularies"`
	Quotes       []ruleDoc       `yaml:"quotes"`
}

type localeDoc struct {
	Locale       string            `yaml:"locale"`
	Months       []string          `yaml:"months"`
	RangeWords   []string          `yaml:"range_words"`
	StreetTypes  []string          `yaml:"street_types"`
	Placeholders map[string]string `yaml:"placeholders"`
	Entities     map[string]string `yaml:"entities"`
}

// overrideDoc is the shape of an operator library file. Placeholders and
// entity placeholders replace the locale's values; vocabulary terms are
// appended to the matching vocabulary, or start a new one.
type overrideDoc struct {
	Placeholders map[string]string `yaml:"placeholders"`
	Entities     map[string]string `yaml:"entities"`
	Vocabularies []vocabularyDoc   `yaml:"vocabularies"`
}

// LoadLibraryFile loads the embedded library for locale and, when path is
// not empty, layers the operator file at path on top of it.
func LoadLibraryFile(locale, path string) (*Library, error) {
	if path == "" {
		return LoadLibrary(locale)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anonymize: read library file: %w", err)
	}
	return LoadLibrary(locale, data)
}

// LoadLibrary compiles the embedded library for locale. Each override
// document is merged on top in order.
func LoadLibrary(locale string, overrides ...[]byte) (*Library, error) {
	rawLocale, err := patterns.Locale(locale)
	if err != nil {
		return nil, err
	}
	var loc localeDoc
	if err := yaml.Unmarshal(rawLocale, &loc); err != nil {
		return nil, fmt.Errorf("anonymize: parse locale %q: %w", locale, err)
	}
	var doc libraryDoc
	if err := yaml.Unmarshal(patterns.Library(), &doc); err != nil {
		return nil, fmt.Errorf("anonymize: parse library: %w", err)
	}
	if loc.Placeholders == nil {
		loc.Placeholders = map[string]string{}
	}
	if loc.Entities == nil {
		loc.Entities = map[string]string{}
	}

	for i, raw := range overrides {
		var o overrideDoc
		if err := yaml.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("anonymize: parse override %d: %w", i, err)
		}
		for k, v := range o.Placeholders {
			loc.Placeholders[k] = v
		}
		for k, v := range o.Entities {
			loc.Entities[CanonicalLabel(k)] = v
		}
		doc.Vocabularies = mergeVocabularies(doc.Vocabularies, o.Vocabularies)
	}

	return compileLibrary(loc, doc)
}

func mergeVocabularies(base, extra []vocabularyDoc) []vocabularyDoc {
	for _, e := range extra {
		idx := -1
		for i := range base {
			if base[i].Category == e.Category {
				idx = i
				break
			}
		}
		if idx < 0 {
			base = append(base, vocabularyDoc{Category: e.Category})
			idx = len(base) - 1
		}
	next:
		for _, term := range e.Terms {
			for _, have := range base[idx].Terms {
				if strings.EqualFold(have, term) {
					continue next
				}
			}
			base[idx].Terms = append(base[idx].Terms, term)
		}
	}
	return base
}

func compileLibrary(loc localeDoc, doc libraryDoc) (*Library, error) {
	lib := &Library{
		Locale:   loc.Locale,
		Entities: EntityCategoryMap{},
	}
	expand := strings.NewReplacer(
		"${months}", alternation(loc.Months),
		"${range_words}", alternation(loc.RangeWords),
		"${street_types}", alternation(loc.StreetTypes),
	)
	placeholder := func(category string) (string, error) {
		p, ok := loc.Placeholders[category]
		if !ok || strings.TrimSpace(p) == "" {
			return "", fmt.Errorf("anonymize: locale %q has no placeholder for %q", loc.Locale, category)
		}
		return norm.NFC.String(p), nil
	}

	// Patterns are compiled first: vetting checks may refer to them.
	rules := make([]PatternRule, 0, len(doc.Rules))
	for _, rd := range doc.Rules {
		re, err := regexp.Compile("(?i)" + expand.Replace(rd.Regex))
		if err != nil {
			return nil, fmt.Errorf("anonymize: compile rule %q: %w", rd.Category, err)
		}
		ph, err := placeholder(rd.Category)
		if err != nil {
			return nil, err
		}
		rules = append(rules, PatternRule{Category: rd.Category, Placeholder: ph, Pattern: re})
		if rd.Category == "price_range" {
			lib.priceRange = re
		}
	}
	quotes := make([]PatternRule, 0, len(doc.Quotes))
	for _, qd := range doc.Quotes {
		re, err := regexp.Compile(qd.Regex)
		if err != nil {
			return nil, fmt.Errorf("anonymize: compile quote rule: %w", err)
		}
		ph, err := placeholder(qd.Category)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, PatternRule{Category: qd.Category, Placeholder: ph, Pattern: re})
	}

	build := func(r PatternRule, rd ruleDoc) (PatternRule, error) {
		r.pass = pass{re: r.Pattern, replacement: r.Placeholder, rescan: rd.Rescan}
		for _, name := range rd.Vet {
			v, err := lib.vet(name)
			if err != nil {
				return r, err
			}
			r.pass.vets = append(r.pass.vets, v)
		}
		return r, nil
	}
	for i := range rules {
		r, err := build(rules[i], doc.Rules[i])
		if err != nil {
			return nil, err
		}
		lib.Rules = append(lib.Rules, r)
	}
	for i := range quotes {
		r, err := build(quotes[i], doc.Quotes[i])
		if err != nil {
			return nil, err
		}
		lib.Quotes = append(lib.Quotes, r)
	}

	for _, vd := range doc.Vocabularies {
		ph, err := placeholder(vd.Category)
		if err != nil {
			return nil, err
		}
		terms := make([]string, 0, len(vd.Terms))
		for _, t := range vd.Terms {
			if t = norm.NFC.String(strings.TrimSpace(t)); t != "" {
				terms = append(terms, t)
			}
		}
		v := Vocabulary{Category: vd.Category, Placeholder: ph, Terms: terms}
		p, ok := literalPass(terms, ph)
		v.pass, v.empty = p, !ok
		lib.Vocabularies = append(lib.Vocabularies, v)
	}

	for _, label := range EntityLabels {
		if p, ok := loc.Entities[label]; ok && strings.TrimSpace(p) != "" {
			lib.Entities[label] = norm.NFC.String(p)
		}
	}

	lib.placeholders = lib.collectPlaceholders()
	if err := lib.checkPlaceholders(); err != nil {
		return nil, err
	}
	return lib, nil
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(norm.NFC.String(w)))
		}
	}
	if len(quoted) == 0 {
		// matches nothing
		return `[^\x00-\x{10FFFF}]`
	}
	return strings.Join(quoted, "|")
}

func (l *Library) collectPlaceholders() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, r := range l.Rules {
		add(r.Placeholder)
	}
	for _, v := range l.Vocabularies {
		add(v.Placeholder)
	}
	for _, q := range l.Quotes {
		add(q.Placeholder)
	}
	for _, label := range EntityLabels {
		if p, ok := l.Entities[label]; ok {
			add(p)
		}
	}
	return out
}

// checkPlaceholders refuses a library whose placeholders would themselves
// be rewritten by one of its rules, which would break idempotence.
func (l *Library) checkPlaceholders() error {
	var g guard
	for _, p := range l.placeholders {
		for _, r := range l.Rules {
			if _, n := r.pass.apply(p, g); n > 0 {
				return fmt.Errorf("anonymize: placeholder %q is matched by rule %q", p, r.Category)
			}
		}
		for _, v := range l.Vocabularies {
			if v.empty {
				continue
			}
			if _, n := v.pass.apply(p, g); n > 0 {
				return fmt.Errorf("anonymize: placeholder %q is matched by vocabulary %q", p, v.Category)
			}
		}
		for _, q := range l.Quotes {
			if _, n := q.pass.apply(p, g); n > 0 {
				return fmt.Errorf("anonymize: placeholder %q is matched by quote rule", p)
			}
		}
	}
	return nil
}

// Placeholders returns every distinct placeholder the library can insert.
func (l *Library) Placeholders() []string {
	return append([]string(nil), l.placeholders...)
}

// Category summarises one redaction step for listings.
type Category struct {
	Kind        string `json:"kind"` // "entity", "pattern", "vocabulary" or "quote"
	Category    string `json:"category"`
	Placeholder string `json:"placeholder"`
	Terms       int    `json:"terms,omitempty"`
}

// Categories lists the redaction steps in the order they run.
func (l *Library) Categories() []Category {
	var out []Category
	for _, label := range EntityLabels {
		if p, ok := l.Entities[label]; ok {
			out = append(out, Category{Kind: "entity", Category: label, Placeholder: p})
		}
	}
	for _, r := range l.Rules {
		out = append(out, Category{Kind: "pattern", Category: r.Category, Placeholder: r.Placeholder})
	}
	for _, v := range l.Vocabularies {
		out = append(out, Category{Kind: "vocabulary", Category: v.Category, Placeholder: v.Placeholder, Terms: len(v.Terms)})
	}
	for _, q := range l.Quotes {
		out = append(out, Category{Kind: "quote", Category: q.Category, Placeholder: q.Placeholder})
	}
	return out
}
