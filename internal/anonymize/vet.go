package anonymize

import (
	"fmt"
	"regexp"
)

var (
	ipv4Shape        = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)
	nationalIDPrefix = regexp.MustCompile(`^\d\s\d{2}\s\d{2}\s\d{2}\s\d{3}\s\d{3}\s\d{2}\b`)
	amountSuffix     = regexp.MustCompile(`^\s?(?:%|€|\$|(?i:EUR|USD|MAD|dirhams?)\b)`)
)

// vet resolves a vetting check named in the library document.
func (l *Library) vet(name string) (Vet, error) {
	switch name {
	case "phone_shape":
		return phoneShape, nil
	case "not_amount":
		return notAmount, nil
	case "not_dotted_quad":
		return notDottedQuad, nil
	case "quote_edges", "word_bounded":
		return wordBounded, nil
	case "not_price_range":
		return l.notPriceRange, nil
	}
	return nil, fmt.Errorf("anonymize: unknown vet %q", name)
}

// phoneShape keeps digit runs that plausibly are phone numbers: 9 to 15
// digits, a trunk 0 when written without separators or country code, and
// not the shape of an IPv4 address or the head of a national id.
func phoneShape(text string, start, end int) bool {
	m := text[start:end]
	digits, plain := 0, true
	for i := 0; i < len(m); i++ {
		if isDigit(m[i]) {
			digits++
		} else {
			plain = false
		}
	}
	if digits < 9 || digits > 15 {
		return false
	}
	if plain && m[0] != '0' {
		return false
	}
	if ipv4Shape.MatchString(m) {
		return false
	}
	return !nationalIDPrefix.MatchString(text[start:])
}

func notAmount(text string, _, end int) bool {
	return !amountSuffix.MatchString(text[end:])
}

// notDottedQuad rejects d.d.d candidates that are really a slice of an
// IPv4 address.
func notDottedQuad(text string, start, end int) bool {
	if start >= 2 && text[start-1] == '.' && isDigit(text[start-2]) {
		return false
	}
	if end+1 < len(text) && text[end] == '.' && isDigit(text[end+1]) {
		return false
	}
	return true
}

// notPriceRange leaves numbers that belong to a price range for the
// price-range rule, which runs last.
func (l *Library) notPriceRange(text string, start, end int) bool {
	if l.priceRange == nil {
		return true
	}
	for _, loc := range l.priceRange.FindAllStringIndex(text, -1) {
		if start < loc[1] && loc[0] < end {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
