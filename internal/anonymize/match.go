package anonymize

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Vet inspects a candidate match text[start:end] and reports whether it
// may be replaced.
type Vet func(text string, start, end int) bool

// isWordRune mirrors \w for Unicode text: letters, digits, combining marks
// and underscore.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// wordBounded reports whether text[start:end] is not glued to a word
// character on either side. RE2's \b only knows ASCII, so vocabulary and
// custom terms use this instead.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// guard rejects matches that start or end strictly inside a placeholder
// already present in the text, so inserted placeholders are never
// rewritten by a later pass.
type guard struct {
	ranges [][2]int
}

func newGuard(text string, placeholders []string) guard {
	var g guard
	for _, p := range placeholders {
		if p == "" {
			continue
		}
		offset := 0
		for {
			idx := strings.Index(text[offset:], p)
			if idx < 0 {
				break
			}
			start := offset + idx
			g.ranges = append(g.ranges, [2]int{start, start + len(p)})
			offset = start + len(p)
		}
	}
	return g
}

func (g guard) crosses(start, end int) bool {
	for _, r := range g.ranges {
		if (r[0] < start && start < r[1]) || (r[0] < end && end < r[1]) {
			return true
		}
	}
	return false
}

// pass is one replacement sweep of a compiled expression over a text.
type pass struct {
	re          *regexp.Regexp
	replacement string
	vets        []Vet
	// rescan retries one rune past a rejected candidate instead of
	// jumping over it. Expressions used this way must not rely on \b or
	// anchors, since matching restarts on a substring.
	rescan bool
}

// apply replaces every accepted match and returns the new text together
// with the number of replacements.
func (p pass) apply(text string, g guard) (string, int) {
	accept := func(start, end int) bool {
		if end == start || g.crosses(start, end) {
			return false
		}
		for _, v := range p.vets {
			if !v(text, start, end) {
				return false
			}
		}
		return true
	}

	var matches [][2]int
	if p.rescan {
		pos := 0
		for pos < len(text) {
			loc := p.re.FindStringIndex(text[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]
			if accept(start, end) {
				matches = append(matches, [2]int{start, end})
				pos = end
				continue
			}
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + max(size, 1)
		}
	} else {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if accept(loc[0], loc[1]) {
				matches = append(matches, [2]int{loc[0], loc[1]})
			}
		}
	}
	if len(matches) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		b.WriteString(p.replacement)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), len(matches)
}

// literalPass builds a case-insensitive, word-bounded pass over a set of
// literal terms. Longer terms are tried first so "LAGO PLAISIR" wins over
// a shorter prefix.
func literalPass(terms []string, replacement string) (pass, bool) {
	sorted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			sorted = append(sorted, regexp.QuoteMeta(t))
		}
	}
	if len(sorted) == 0 {
		return pass{}, false
	}
	slices.SortStableFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	re := regexp.MustCompile(`(?i)(?:` + strings.Join(sorted, "|") + `)`)
	return pass{
		re:          re,
		replacement: replacement,
		vets:        []Vet{wordBounded},
		rescan:      true,
	}, true
}
