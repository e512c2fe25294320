// Package completion talks to chat-completion backends: any
// OpenAI-compatible API (OpenAI, Ollama, vLLM) or the Gonka network.
package completion

import (
	"context"
	"errors"
	"strings"
)

// ErrNoChoices is returned when a backend answers without any choice.
var ErrNoChoices = errors.New("completion: no choices returned")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a non-streaming chat completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Response carries the first choice of a completion.
type Response struct {
	Content      string
	FinishReason string
	Model        string
}

// Completer runs chat completions. Implementations must be safe for
// concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// StripThinkBlock removes a <think>...</think> block that reasoning models
// emit before the answer.
func StripThinkBlock(s string) string {
	const open, close = "<think>", "</think>"
	start := strings.Index(s, open)
	if start < 0 {
		return s
	}
	end := strings.Index(s, close)
	if end < 0 {
		// Unclosed block - drop everything from <think> onwards.
		return strings.TrimSpace(s[:start])
	}
	return strings.TrimSpace(s[:start] + s[end+len(close):])
}

// StripCodeFence removes ```json ... ``` or ``` ... ``` wrappers.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// ExtractJSONArray digs the first [...] out of a model answer, after
// removing think blocks and code fences. The input is returned trimmed
// when it holds no array.
func ExtractJSONArray(s string) string {
	s = StripCodeFence(StripThinkBlock(s))
	start := strings.Index(s, "[")
	if start < 0 {
		return s
	}
	end := strings.LastIndex(s, "]")
	if end < start {
		return s
	}
	return s[start : end+1]
}
