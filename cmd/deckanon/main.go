package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gonkalabs/deckanon/internal/config"
	"github.com/gonkalabs/deckanon/internal/telemetry"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	cfg      *config.Cfg
	logLevel string
	shutdown telemetry.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "deckanon",
		Short: "Anonymize presentation text and turn it into social-media posts",
		Long: `deckanon strips personal and commercial data from text extracted from
slide decks (people, contact details, amounts, dates, brands, cities and
long customer quotes) and can draft a LinkedIn post with carousel slides
from the anonymized result.`,
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	root.AddCommand(
		c.serveCmd(),
		c.anonymizeCmd(),
		c.libraryCmd(),
		c.postCmd(),
		c.mcpCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if c.logLevel != "" {
		if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	shutdown, err := telemetry.Setup("deckanon", version, cfg.OTelEnabled, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.cfg, c.shutdown = cfg, shutdown
	return nil
}

func (c *cli) teardown(*cobra.Command, []string) error {
	if c.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.shutdown(ctx)
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}
