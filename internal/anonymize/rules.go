package anonymize

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CustomRules maps a literal term to the text that replaces it. Terms
// match case-insensitively and only as whole words.
type CustomRules map[string]string

// Set records a rule, trimming the term. A rule whose term differs only in
// case is replaced. Empty terms are ignored and reported as false.
func (r CustomRules) Set(term, replacement string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	r.Delete(term)
	r[term] = replacement
	return true
}

// Delete removes the rule for term, ignoring case.
func (r CustomRules) Delete(term string) {
	term = strings.TrimSpace(term)
	for k := range r {
		if strings.EqualFold(strings.TrimSpace(k), term) {
			delete(r, k)
		}
	}
}

// Clone returns an independent copy.
func (r CustomRules) Clone() CustomRules {
	out := make(CustomRules, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Terms returns the usable terms in the order they are applied.
func (r CustomRules) Terms() []string {
	terms := make([]string, 0, len(r))
	for k := range r {
		if strings.TrimSpace(k) != "" {
			terms = append(terms, k)
		}
	}
	sort.Strings(terms)
	return terms
}

// ParseRules decodes a YAML or JSON mapping of term to replacement.
func ParseRules(data []byte) (CustomRules, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("anonymize: parse rules: %w", err)
	}
	rules := CustomRules{}
	for k, v := range raw {
		rules.Set(k, v)
	}
	return rules, nil
}

// LoadRulesFile reads a rules file from disk.
func LoadRulesFile(path string) (CustomRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anonymize: read rules: %w", err)
	}
	return ParseRules(data)
}
