package post

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/gonkalabs/deckanon/internal/completion"
)

const systemPrompt = "Vous êtes un créateur de contenu professionnel spécialisé dans le contenu LinkedIn. " +
	"Votre tâche est de créer du contenu concis, percutant et professionnel pour des posts et des carrousels " +
	"LinkedIn qui respectent le style de l'entreprise."

// formatInstructions pins the answer layout that Parse understands.
const formatInstructions = `Answer using exactly this layout:

POST TEXT:
<the post>

CAROUSEL SLIDES:
Slide 1: <title>
<content>
Slide 2: <title>
<content>`

var briefs = map[Type]string{
	CaseStudy: `Based on the following anonymized content from a case study presentation, create:

1. A compelling LinkedIn post text (300-400 words) that highlights the key achievements,
   challenges overcome, and business impact of this project
2. Content for 3-5 carousel slides that would accompany this LinkedIn post`,

	ProductLaunch: `Based on the following anonymized content from a product presentation, create:

1. An exciting LinkedIn post text (300-400 words) that builds anticipation for our new
   product launch, highlighting key features and benefits
2. Content for 3-5 carousel slides that would showcase the product's unique selling points`,

	ThoughtLeadership: `Based on the following anonymized content from a presentation, create:

1. A thought-provoking LinkedIn post text (300-400 words) that positions our company
   as an industry thought leader with valuable insights
2. Content for 3-5 carousel slides that would outline key industry trends or insights`,
}

var userPrompt = template.Must(template.New("post").Parse(`{{.Brief}}

Follow our company style guidelines:
{{.Style}}

{{.Format}}

Content from presentation:
{{.Text}}
`))

// BuildMessages renders the system and user turns for req.
func BuildMessages(req Request) ([]completion.Message, error) {
	style := strings.TrimSpace(req.CompanyStyle)
	if style == "" {
		style = DefaultStyle
	}
	var b strings.Builder
	err := userPrompt.Execute(&b, struct {
		Brief, Style, Format, Text string
	}{
		Brief:  briefs[ParseType(string(req.Type))],
		Style:  style,
		Format: formatInstructions,
		Text:   strings.TrimSpace(req.AnonymizedText),
	})
	if err != nil {
		return nil, fmt.Errorf("post: render prompt: %w", err)
	}
	return []completion.Message{
		{Role: completion.RoleSystem, Content: systemPrompt},
		{Role: completion.RoleUser, Content: b.String()},
	}, nil
}
