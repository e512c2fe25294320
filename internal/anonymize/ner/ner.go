// Package ner provides a Recognizer that calls the anonymize-ner sidecar
// (a spaCy model behind a small HTTP API). If the sidecar is unreachable it
// logs a warning and returns no spans so the rest of the pipeline still runs.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gonkalabs/deckanon/internal/anonymize"
)

// Client calls the NER sidecar's /classify endpoint.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// New creates a NER Client pointing at the given base URL
// (e.g. "http://anonymize-ner:8001"). A zero timeout leaves requests bounded
// only by the caller's context.
func New(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// Model is the spaCy model the sidecar is asked to use.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) modelURL(suffix string) string {
	return c.baseURL + "/models/" + url.PathEscape(c.model) + suffix
}

type classifyRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type classifyResponse struct {
	Spans []nerSpan `json:"spans"`
}

// nerSpan offsets count Unicode code points, as spaCy's start_char/end_char do.
type nerSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Recognize sends text to the sidecar and returns entity spans with byte
// offsets into text. It is safe for concurrent use.
func (c *Client) Recognize(ctx context.Context, text string) ([]anonymize.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	body, err := json.Marshal(classifyRequest{Text: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("anonymize-ner: sidecar unreachable, skipping NER layer", "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("anonymize-ner: unexpected status", "code", resp.StatusCode)
		return nil, nil
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	offsets := byteOffsets(text)
	spans := make([]anonymize.Span, 0, len(result.Spans))
	for _, s := range result.Spans {
		if s.Start < 0 || s.End > len(offsets)-1 || s.Start >= s.End {
			slog.Debug("anonymize-ner: dropping out-of-range span", "start", s.Start, "end", s.End, "label", s.Label)
			continue
		}
		spans = append(spans, anonymize.Span{
			Start: offsets[s.Start],
			End:   offsets[s.End],
			Label: s.Label,
		})
	}
	return spans, nil
}

// byteOffsets maps every code-point index of text (plus the end position)
// to its byte offset.
func byteOffsets(text string) []int {
	out := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		out = append(out, i)
	}
	return append(out, len(text))
}
