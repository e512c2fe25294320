package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gonkalabs/deckanon/internal/wallet"
)

// Endpoint is a Gonka network node with its transfer address.
type Endpoint struct {
	URL     string // e.g. http://node2.gonka.ai:8000/v1
	Address string // bech32 address of this host
}

// DefaultTransferAgents lists the nodes that accept proxied inference
// (Transfer Agent, v0.2.9+).
var DefaultTransferAgents = []string{
	"gonka1y2a9p56kv044327uycmqdexl7zs82fs5ryv5le",
	"gonka1dkl4mah5erqggvhqkpc8j3qs5tyuetgdy552cp",
	"gonka1kx9mca3xm8u8ypzfuhmxey66u0ufxhs7nm6wc5",
	"gonka1ddswmmmn38esxegjf6qw36mt4aqyw6etvysy5x",
	"gonka10fynmy2npvdvew0vj2288gz8ljfvmjs35lat8n",
	"gonka1v8gk5z7gcv72447yfcd2y8g78qk05yc4f3nk4w",
	"gonka1gndhek2h2y5849wf6tmw6gnw9qn4vysgljed0u",
}

const gonkaAttempts = 3

// Gonka is a Completer that sends signed requests to the Gonka network.
// Each request goes to a random whitelisted endpoint, signed by the next
// wallet of the pool; failed attempts move to a different endpoint.
type Gonka struct {
	sourceURL string
	pool      *wallet.Pool
	allowed   map[string]bool

	mu        sync.RWMutex
	endpoints []Endpoint

	http *http.Client
}

// NewGonka creates a backend. sourceURL is a bare node URL
// (e.g. http://node2.gonka.ai:8000) used to discover the participant
// list. A nil allowlist uses DefaultTransferAgents.
func NewGonka(sourceURL string, pool *wallet.Pool, allowlist []string) *Gonka {
	if allowlist == nil {
		allowlist = DefaultTransferAgents
	}
	allowed := make(map[string]bool, len(allowlist))
	for _, a := range allowlist {
		allowed[a] = true
	}
	return &Gonka{
		sourceURL: strings.TrimSuffix(strings.TrimRight(sourceURL, "/"), "/v1"),
		pool:      pool,
		allowed:   allowed,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type participantsResponse struct {
	ActiveParticipants struct {
		Participants []struct {
			Index        string `json:"index"`
			InferenceURL string `json:"inference_url"`
		} `json:"participants"`
	} `json:"active_participants"`
}

// DiscoverEndpoints fetches the active participant list from the source
// node. Call it once at startup; Complete calls it lazily otherwise.
func (g *Gonka) DiscoverEndpoints(ctx context.Context) error {
	url := g.sourceURL + "/v1/epochs/current/participants"
	slog.Info("completion: discovering gonka endpoints", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("completion: discover: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("completion: discover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("completion: discover: status %d: %s", resp.StatusCode, body)
	}

	var result participantsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("completion: discover: decode: %w", err)
	}

	var eps []Endpoint
	for _, p := range result.ActiveParticipants.Participants {
		if p.InferenceURL == "" || p.Index == "" || !g.allowed[p.Index] {
			continue
		}
		eps = append(eps, Endpoint{URL: strings.TrimRight(p.InferenceURL, "/") + "/v1", Address: p.Index})
	}
	if len(eps) == 0 {
		return errors.New("completion: discover: no whitelisted transfer-agent endpoints among active participants")
	}

	g.mu.Lock()
	g.endpoints = eps
	g.mu.Unlock()

	slog.Info("completion: gonka endpoints discovered", "count", len(eps))
	return nil
}

// pickEndpoint returns a random endpoint not in exclude, or any endpoint
// once every candidate has been tried.
func (g *Gonka) pickEndpoint(exclude map[string]bool) (Endpoint, bool) {
	g.mu.RLock()
	eps := g.endpoints
	g.mu.RUnlock()
	if len(eps) == 0 {
		return Endpoint{}, false
	}
	var candidates []Endpoint
	for _, ep := range eps {
		if !exclude[ep.Address] {
			candidates = append(candidates, ep)
		}
	}
	if len(candidates) == 0 {
		return eps[rand.Intn(len(eps))], true
	}
	return candidates[rand.Intn(len(candidates))], true
}

type gonkaChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete implements Completer.
func (g *Gonka) Complete(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "completion.gonka")
	defer span.End()
	span.SetAttributes(attribute.String("completion.model", req.Model))

	g.mu.RLock()
	discovered := len(g.endpoints) > 0
	g.mu.RUnlock()
	if !discovered {
		if err := g.DiscoverEndpoints(ctx); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("completion: gonka: marshal: %w", err)
	}

	body, err := g.do(ctx, "/chat/completions", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out gonkaChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("completion: gonka: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &Response{
		Content:      out.Choices[0].Message.Content,
		FinishReason: out.Choices[0].FinishReason,
		Model:        out.Model,
	}, nil
}

// do sends a signed POST, retrying on a different endpoint when the
// transport fails or the node answers 5xx.
func (g *Gonka) do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	var lastErr error
	tried := map[string]bool{}
	for attempt := 0; attempt < gonkaAttempts; attempt++ {
		ep, ok := g.pickEndpoint(tried)
		if !ok {
			return nil, errors.New("completion: gonka: no endpoints available")
		}
		tried[ep.Address] = true

		body, status, err := g.send(ctx, ep, g.pool.Next(), path, payload)
		switch {
		case err != nil:
			lastErr = err
		case status >= 500:
			lastErr = fmt.Errorf("completion: gonka: upstream %d: %s", status, truncate(body, 512))
		case status >= 400:
			return nil, fmt.Errorf("completion: gonka: upstream %d: %s", status, truncate(body, 512))
		default:
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("completion: gonka request failed, retrying with different endpoint", "attempt", attempt+1, "err", lastErr)
	}
	return nil, lastErr
}

// send executes one signed request against ep using wallet w.
func (g *Gonka) send(ctx context.Context, ep Endpoint, w *wallet.Wallet, path string, payload []byte) ([]byte, int, error) {
	sig, ts, err := w.Signer.Sign(payload, ep.Address)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", sig)
	req.Header.Set("X-Requester-Address", w.Address)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))

	slog.Debug("completion: gonka request", "url", ep.URL+path, "endpoint_addr", ep.Address, "wallet", w.Address)
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
