package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gonkalabs/deckanon/internal/api"
	"github.com/gonkalabs/deckanon/internal/completion"
	"github.com/gonkalabs/deckanon/internal/session"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	comps, err := c.build()
	if err != nil {
		return err
	}

	if g, ok := comps.completer.(*completion.Gonka); ok {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := g.DiscoverEndpoints(dctx); err != nil {
			// Complete retries discovery on first use.
			slog.Warn("endpoint discovery failed", "err", err)
		}
		cancel()
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	sessions := session.NewStore(c.cfg.SessionTTL)
	go sessions.Janitor(ctx, time.Minute)

	handler := api.New(comps.anon, comps.gen, sessions, c.cfg.PostRatePerMinute)
	srv := &http.Server{
		Addr:         c.cfg.ListenAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
		case <-ctx.Done():
		}

		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()

		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("starting deckanon server",
		"addr", c.cfg.ListenAddr,
		"locale", comps.anon.Library().Locale,
		"recognizer", c.cfg.Recognizer,
		"recognizer_available", comps.anon.RecognizerAvailable(ctx),
		"backend", c.cfg.Backend,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
		return err
	}
	return nil
}
