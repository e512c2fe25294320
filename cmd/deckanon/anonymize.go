package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gonkalabs/deckanon/internal/anonymize"
)

func (c *cli) anonymizeCmd() *cobra.Command {
	var rulesFile string
	var report bool
	cmd := &cobra.Command{
		Use:   "anonymize [file|-]",
		Short: "Anonymize text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			rules := anonymize.CustomRules{}
			if rulesFile != "" {
				if rules, err = anonymize.LoadRulesFile(rulesFile); err != nil {
					return err
				}
			}
			comps, err := c.build()
			if err != nil {
				return err
			}

			out, rep := comps.anon.AnonymizeWithReport(cmd.Context(), text, rules)
			fmt.Fprint(cmd.OutOrStdout(), out)
			if report {
				enc := json.NewEncoder(cmd.ErrOrStderr())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML or JSON file mapping extra terms to their replacement")
	cmd.Flags().BoolVar(&report, "report", false, "print a JSON report of the replacements to stderr")
	return cmd
}

func (c *cli) libraryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List the redaction categories in the order they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := c.library()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(lib.Categories())
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCATEGORY\tPLACEHOLDER\tTERMS")
			for _, cat := range lib.Categories() {
				terms := ""
				if cat.Kind == "vocabulary" {
					terms = fmt.Sprint(cat.Terms)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cat.Kind, cat.Category, cat.Placeholder, terms)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
