package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gonkalabs/deckanon/internal/mcpserver"
)

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the anonymizer as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			comps, err := c.build()
			if err != nil {
				return err
			}
			slog.Info("mcp: serving on stdio", "locale", comps.anon.Library().Locale)
			return mcpserver.ServeStdio(cmd.Context(), mcpserver.New(comps.anon, version))
		},
	}
}
