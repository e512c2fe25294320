package main

import (
	"fmt"
	"log/slog"

	"github.com/gonkalabs/deckanon/internal/anonymize"
	"github.com/gonkalabs/deckanon/internal/anonymize/llmclassifier"
	"github.com/gonkalabs/deckanon/internal/anonymize/ner"
	"github.com/gonkalabs/deckanon/internal/anonymize/prosener"
	"github.com/gonkalabs/deckanon/internal/completion"
	"github.com/gonkalabs/deckanon/internal/config"
	"github.com/gonkalabs/deckanon/internal/post"
	"github.com/gonkalabs/deckanon/internal/wallet"
)

// completer builds the configured completion backend, or nil for "none".
func (c *cli) completer() (completion.Completer, error) {
	switch c.cfg.Backend {
	case config.BackendOpenAI:
		slog.Info("completion: openai backend", "base_url", c.cfg.OpenAIBaseURL)
		return completion.NewOpenAI(c.cfg.OpenAIKey, c.cfg.OpenAIBaseURL), nil
	case config.BackendGonka:
		pool, err := wallet.FromCredentials(c.cfg.Wallets)
		if err != nil {
			return nil, err
		}
		slog.Info("completion: gonka backend", "source", c.cfg.SourceURL, "wallets", pool.Len())
		return completion.NewGonka(c.cfg.SourceURL, pool, c.cfg.TransferAgents), nil
	default:
		return nil, nil
	}
}

// provider builds the entity recognizer provider. comp is only used by
// the llm recognizer.
func (c *cli) provider(comp completion.Completer) (anonymize.Provider, error) {
	switch c.cfg.Recognizer {
	case config.RecognizerNER:
		client := ner.New(c.cfg.NERURL, c.cfg.NERModel, c.cfg.NERTimeout)
		return ner.NewProvider(client, c.cfg.NERAutoInstall, c.cfg.NERRecheck), nil
	case config.RecognizerProse:
		return prosener.Provider(), nil
	case config.RecognizerLLM:
		if comp == nil {
			return nil, fmt.Errorf("recognizer llm: no completion backend")
		}
		return anonymize.Static(llmclassifier.New(comp, c.cfg.LLMRecognizerModel)), nil
	default:
		return anonymize.Unavailable, nil
	}
}

func (c *cli) library() (*anonymize.Library, error) {
	if c.cfg.LibraryFile != "" {
		return anonymize.LoadLibraryFile(c.cfg.Locale, c.cfg.LibraryFile)
	}
	return anonymize.LoadLibrary(c.cfg.Locale)
}

type components struct {
	anon      *anonymize.Anonymizer
	gen       *post.Generator // nil without a completion backend
	completer completion.Completer
}

func (c *cli) build() (*components, error) {
	lib, err := c.library()
	if err != nil {
		return nil, err
	}
	comp, err := c.completer()
	if err != nil {
		return nil, err
	}
	prov, err := c.provider(comp)
	if err != nil {
		return nil, err
	}

	out := &components{anon: anonymize.New(lib, prov), completer: comp}
	if comp != nil {
		out.gen = post.NewGenerator(comp, c.cfg.PostModel)
	}
	slog.Debug("anonymizer ready", "locale", lib.Locale, "recognizer", c.cfg.Recognizer, "post_generation", out.gen != nil)
	return out, nil
}
