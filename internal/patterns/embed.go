// Package patterns ships the redaction library and its locale packs as
// embedded YAML documents.
package patterns

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed library.yaml
var libraryYAML []byte

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLocale is the locale used when none is configured.
const DefaultLocale = "fr"

// Library returns the embedded rule library (rules, vocabularies and quote styles).
func Library() []byte {
	return libraryYAML
}

// Locale returns the embedded locale pack (placeholders, entity placeholders,
// month names, range words and street types) for name.
func Locale(name string) ([]byte, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultLocale
	}
	data, err := localeFS.ReadFile(path.Join("locales", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("patterns: unknown locale %q (available: %s)", name, strings.Join(Locales(), ", "))
	}
	return data, nil
}

// Locales lists the embedded locale names in sorted order.
func Locales() []string {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
