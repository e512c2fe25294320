package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gonkalabs/deckanon/internal/anonymize"
	"github.com/gonkalabs/deckanon/internal/post"
)

func (c *cli) postCmd() *cobra.Command {
	var (
		postType   string
		styleFile  string
		rulesFile  string
		anonymized bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "post [file|-]",
		Short: "Anonymize deck text and draft a LinkedIn post with carousel slides",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			comps, err := c.build()
			if err != nil {
				return err
			}
			if comps.gen == nil {
				return errors.New("post generation needs COMPLETION_BACKEND=openai or gonka")
			}

			if !anonymized {
				rules := anonymize.CustomRules{}
				if rulesFile != "" {
					if rules, err = anonymize.LoadRulesFile(rulesFile); err != nil {
						return err
					}
				}
				text = comps.anon.Anonymize(cmd.Context(), text, rules)
			}

			var style string
			if styleFile != "" {
				b, err := os.ReadFile(styleFile)
				if err != nil {
					return err
				}
				style = string(b)
			}

			p, err := comps.gen.Generate(cmd.Context(), post.Request{
				AnonymizedText: text,
				Type:           post.ParseType(postType),
				CompanyStyle:   style,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			return writePost(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&postType, "type", string(post.CaseStudy), "case_study, product_launch or thought_leadership")
	cmd.Flags().StringVar(&styleFile, "style", "", "file with company style guidelines")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML or JSON file mapping extra terms to their replacement")
	cmd.Flags().BoolVar(&anonymized, "anonymized", false, "input is already anonymized; send it as is")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writePost(w io.Writer, p *post.Post) error {
	if _, err := fmt.Fprintf(w, "POST TEXT:\n%s\n", p.Text); err != nil {
		return err
	}
	if len(p.Slides) == 0 {
		return nil
	}
	if _, err := fmt.Fprint(w, "\nCAROUSEL SLIDES:\n"); err != nil {
		return err
	}
	for i, s := range p.Slides {
		if _, err := fmt.Fprintf(w, "Slide %d: %s\n%s\n", i+1, s.Title, s.Content); err != nil {
			return err
		}
	}
	return nil
}
