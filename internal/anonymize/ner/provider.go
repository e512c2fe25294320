package ner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gonkalabs/deckanon/internal/anonymize"
)

// Provider gates the sidecar behind a model probe. When the model is
// missing and auto-install is on, it asks the sidecar to fetch the model
// once and probes again. Probe results are cached for the recheck interval;
// a zero interval caches the first result for the Provider's lifetime.
// Checks cut short by the caller's context are not cached.
type Provider struct {
	client      *Client
	autoInstall bool
	recheck     time.Duration
	now         func() time.Time

	mu        sync.Mutex
	probed    bool
	checkedAt time.Time
	available bool
}

// NewProvider wraps client.
func NewProvider(client *Client, autoInstall bool, recheck time.Duration) *Provider {
	return &Provider{
		client:      client,
		autoInstall: autoInstall,
		recheck:     recheck,
		now:         time.Now,
	}
}

// Recognizer returns the client when the sidecar reports the model as
// loaded.
func (p *Provider) Recognizer(ctx context.Context) (anonymize.Recognizer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.probed || (p.recheck > 0 && p.now().Sub(p.checkedAt) >= p.recheck) {
		available := p.probe(ctx)
		if !available && ctx.Err() != nil {
			// The caller gave up; that says nothing about the sidecar.
			return nil, false
		}
		p.available = available
		p.probed = true
		p.checkedAt = p.now()
	}
	if !p.available {
		return nil, false
	}
	return p.client, true
}

func (p *Provider) probe(ctx context.Context) bool {
	status, err := p.get(ctx)
	if err != nil {
		slog.Warn("anonymize-ner: sidecar unreachable, entity recognition disabled", "err", err)
		return false
	}
	switch {
	case status == http.StatusOK:
		return true
	case status == http.StatusNotFound && p.autoInstall:
		slog.Info("anonymize-ner: model missing, requesting install", "model", p.client.model)
		if err := p.install(ctx); err != nil {
			slog.Warn("anonymize-ner: model install failed, entity recognition disabled", "model", p.client.model, "err", err)
			return false
		}
		status, err = p.get(ctx)
		if err == nil && status == http.StatusOK {
			slog.Info("anonymize-ner: model installed", "model", p.client.model)
			return true
		}
	}
	slog.Warn("anonymize-ner: model unavailable, entity recognition disabled", "model", p.client.model, "status", status)
	return false
}

func (p *Provider) get(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.client.modelURL(""), nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.http.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (p *Provider) install(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.client.modelURL("/install"), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ner: install: unexpected status %d", resp.StatusCode)
	}
	return nil
}
