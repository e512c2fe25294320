package post

import (
	"regexp"
	"strings"

	"github.com/gonkalabs/deckanon/internal/completion"
)

var (
	postHeader   = regexp.MustCompile(`(?im)^[\s*#]*post text\s*:?[*]*`)
	slidesHeader = regexp.MustCompile(`(?im)^[\s*#]*carousel slides\s*:?[\s*]*$`)
	slideHeader  = regexp.MustCompile(`(?im)^[^\p{L}\p{N}\n]*slide\s+\d+\s*[:.)-]?(.*)$`)
	fieldPrefix  = regexp.MustCompile(`(?i)^(?:title|titre|content|contenu)\s*:\s*`)
)

// Parse splits a model answer into post text and slides. Markers are
// matched loosely; an answer with no markers at all is taken as the post
// text with no slides.
func Parse(raw string) (*Post, error) {
	s := strings.TrimSpace(completion.StripCodeFence(completion.StripThinkBlock(raw)))
	if s == "" {
		return nil, ErrUnparsable
	}

	postPart, slidesPart := s, ""
	if loc := slidesHeader.FindStringIndex(s); loc != nil {
		postPart, slidesPart = s[:loc[0]], s[loc[1]:]
	} else if loc := slideHeader.FindStringIndex(s); loc != nil {
		postPart, slidesPart = s[:loc[0]], s[loc[0]:]
	}
	if loc := postHeader.FindStringIndex(postPart); loc != nil {
		postPart = postPart[loc[1]:]
	}

	p := &Post{
		Text:   strings.TrimSpace(postPart),
		Slides: parseSlides(slidesPart),
	}
	if p.Text == "" && len(p.Slides) == 0 {
		return nil, ErrUnparsable
	}
	return p, nil
}

func parseSlides(s string) []Slide {
	heads := slideHeader.FindAllStringSubmatchIndex(s, -1)
	slides := make([]Slide, 0, len(heads))
	for i, m := range heads {
		end := len(s)
		if i+1 < len(heads) {
			end = heads[i+1][0]
		}
		title := clean(s[m[2]:m[3]])
		var lines []string
		for _, line := range strings.Split(s[m[1]:end], "\n") {
			if line = clean(line); line != "" {
				lines = append(lines, line)
			}
		}
		if title == "" && len(lines) > 0 {
			title, lines = lines[0], lines[1:]
		}
		if title == "" && len(lines) == 0 {
			continue
		}
		slides = append(slides, Slide{Title: title, Content: strings.Join(lines, "\n")})
	}
	return slides
}

func clean(s string) string {
	s = strings.Trim(s, " \t\r*_")
	return strings.Trim(fieldPrefix.ReplaceAllString(s, ""), " \t\r*_")
}
