// Package mcpserver exposes the anonymizer as Model Context Protocol tools
// so agents can redact text before it leaves the machine.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gonkalabs/deckanon/internal/anonymize"
)

// AnonymizeInput is the anonymize_text argument object.
type AnonymizeInput struct {
	Text        string            `json:"text" jsonschema:"the text to anonymize"`
	CustomRules map[string]string `json:"custom_rules,omitempty" jsonschema:"extra terms to replace, mapped to their replacement"`
}

// AnonymizeOutput is the anonymize_text result.
type AnonymizeOutput struct {
	AnonymizedText string           `json:"anonymized_text"`
	Report         anonymize.Report `json:"report"`
}

// CategoriesOutput is the list_redaction_categories result.
type CategoriesOutput struct {
	Locale              string               `json:"locale"`
	RecognizerAvailable bool                 `json:"recognizer_available"`
	Categories          []anonymize.Category `json:"categories"`
}

// New builds an MCP server backed by a.
func New(a *anonymize.Anonymizer, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "deckanon", Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "anonymize_text",
		Description: "Replace personal data, contact details, amounts, dates, brands, cities and long " +
			"quotations in the text with bracketed placeholders such as [EMAIL]. Runs locally.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AnonymizeInput) (*mcp.CallToolResult, AnonymizeOutput, error) {
		out, rep := a.AnonymizeWithReport(ctx, in.Text, anonymize.CustomRules(in.CustomRules))
		slog.Info("mcp: anonymize_text", "len", len(in.Text), "replacements", rep.Total())
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out}},
		}, AnonymizeOutput{AnonymizedText: out, Report: rep}, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_redaction_categories",
		Description: "List the redaction categories in the order they are applied, with their placeholders.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, CategoriesOutput, error) {
		lib := a.Library()
		return nil, CategoriesOutput{
			Locale:              lib.Locale,
			RecognizerAvailable: a.RecognizerAvailable(ctx),
			Categories:          lib.Categories(),
		}, nil
	})

	return srv
}

// ServeStdio runs srv over stdin/stdout until the client disconnects or
// ctx is done.
func ServeStdio(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}
