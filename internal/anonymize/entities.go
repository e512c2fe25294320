package anonymize

import "strings"

// EntityLabels is the closed set of labels a recognizer may emit.
var EntityLabels = []string{
	"PERSON", "ORG", "GPE", "LOC", "PRODUCT", "MONEY", "CARDINAL", "DATE", "TIME",
	"PERCENT", "QUANTITY", "NORP", "FAC", "EVENT", "WORK_OF_ART", "LAW", "LANGUAGE", "ORDINAL",
}

// Several NER models use shorter or longer spellings for the same classes.
var labelAliases = map[string]string{
	"PER":          "PERSON",
	"PERS":         "PERSON",
	"ORGANIZATION": "ORG",
	"ORGANISATION": "ORG",
	"LOCATION":     "LOC",
}

// CanonicalLabel upper-cases label and folds known aliases (PER, LOCATION,
// ...) onto the closed label set.
func CanonicalLabel(label string) string {
	l := strings.ToUpper(strings.TrimSpace(label))
	if alias, ok := labelAliases[l]; ok {
		return alias
	}
	return l
}

// EntityCategoryMap maps a recognizer label to its placeholder.
// It is read-only once the library has been loaded.
type EntityCategoryMap map[string]string

// Placeholder returns the placeholder for label, folding aliases first.
func (m EntityCategoryMap) Placeholder(label string) (string, bool) {
	p, ok := m[CanonicalLabel(label)]
	return p, ok
}
