package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gonkalabs/deckanon/internal/wallet"
)

// Recognizer backends.
const (
	RecognizerNone  = "none"
	RecognizerNER   = "ner"
	RecognizerProse = "prose"
	RecognizerLLM   = "llm"
)

// Completion backends.
const (
	BackendNone   = "none"
	BackendOpenAI = "openai"
	BackendGonka  = "gonka"
)

// ErrNoWallets is returned when the gonka backend is selected without keys.
var ErrNoWallets = errors.New("config: either GONKA_WALLETS or GONKA_PRIVATE_KEY must be set")

// Cfg holds all runtime configuration loaded from environment variables.
type Cfg struct {
	// Server
	ListenAddr string // PORT, e.g. :8080
	LogLevel   slog.Level

	// Anonymizer
	Locale      string // ANONYMIZE_LOCALE, fr or en
	LibraryFile string // ANONYMIZE_LIBRARY_FILE, optional YAML overrides

	// Entity recognizer
	Recognizer     string        // RECOGNIZER=none|ner|prose|llm
	NERURL         string        // NER_URL=http://deckanon-ner:8001
	NERModel       string        // NER_MODEL=fr_core_news_sm
	NERAutoInstall bool          // NER_AUTO_INSTALL=true installs a missing model
	NERTimeout     time.Duration // NER_TIMEOUT=0 means no timeout
	NERRecheck     time.Duration // NER_RECHECK=5m re-probes a missing sidecar

	// Completion backend used for post generation and the llm recognizer
	Backend            string // COMPLETION_BACKEND=openai|gonka|none
	OpenAIKey          string // OPENAI_API_KEY
	OpenAIBaseURL      string // OPENAI_BASE_URL, also works for Ollama
	PostModel          string // POST_MODEL
	LLMRecognizerModel string // LLM_RECOGNIZER_MODEL

	// Gonka network. Wallets come from GONKA_WALLETS (multi) or
	// GONKA_PRIVATE_KEY / GONKA_ADDRESS (single).
	Wallets        []wallet.Credential
	SourceURL      string   // GONKA_SOURCE_URL
	TransferAgents []string // GONKA_TRANSFER_AGENTS, comma separated

	// Sessions and limits
	SessionTTL        time.Duration // SESSION_TTL=2h
	PostRatePerMinute int           // POST_RATE_PER_MINUTE=10, 0 disables the limit

	OTelEnabled bool // OTEL_ENABLED=true
}

// Load reads .env (if present) then environment variables and returns Cfg.
func Load() (*Cfg, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	var errs []error
	cfg := &Cfg{
		ListenAddr:         ":" + str("PORT", "8080"),
		Locale:             strings.ToLower(str("ANONYMIZE_LOCALE", "fr")),
		LibraryFile:        str("ANONYMIZE_LIBRARY_FILE", ""),
		Recognizer:         strings.ToLower(str("RECOGNIZER", RecognizerNER)),
		NERURL:             strings.TrimRight(str("NER_URL", "http://deckanon-ner:8001"), "/"),
		NERModel:           str("NER_MODEL", "fr_core_news_sm"),
		Backend:            strings.ToLower(str("COMPLETION_BACKEND", BackendOpenAI)),
		OpenAIKey:          str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		PostModel:          str("POST_MODEL", "gpt-3.5-turbo"),
		LLMRecognizerModel: str("LLM_RECOGNIZER_MODEL", "qwen2.5:0.5b"),
		SourceURL:          str("GONKA_SOURCE_URL", "http://node2.gonka.ai:8000"),
		TransferAgents:     list("GONKA_TRANSFER_AGENTS"),
	}
	cfg.SourceURL = strings.TrimSuffix(strings.TrimRight(cfg.SourceURL, "/"), "/v1")

	var err error
	if cfg.LogLevel, err = level(str("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, err)
	}
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	cfg.NERAutoInstall, err = boolean("NER_AUTO_INSTALL", true)
	collect(err)
	cfg.NERTimeout, err = duration("NER_TIMEOUT", 0)
	collect(err)
	cfg.NERRecheck, err = duration("NER_RECHECK", 5*time.Minute)
	collect(err)
	cfg.SessionTTL, err = duration("SESSION_TTL", 2*time.Hour)
	collect(err)
	cfg.PostRatePerMinute, err = integer("POST_RATE_PER_MINUTE", 10)
	collect(err)
	cfg.OTelEnabled, err = boolean("OTEL_ENABLED", false)
	collect(err)

	switch cfg.Recognizer {
	case RecognizerNone, RecognizerNER, RecognizerProse, RecognizerLLM:
	default:
		errs = append(errs, fmt.Errorf("config: RECOGNIZER %q: want none, ner, prose or llm", cfg.Recognizer))
	}
	switch cfg.Backend {
	case BackendNone, BackendOpenAI:
	case BackendGonka:
		wallets, err := loadWallets()
		collect(err)
		cfg.Wallets = wallets
	default:
		errs = append(errs, fmt.Errorf("config: COMPLETION_BACKEND %q: want openai, gonka or none", cfg.Backend))
	}
	if cfg.Recognizer == RecognizerLLM && cfg.Backend == BackendNone {
		errs = append(errs, errors.New("config: RECOGNIZER=llm needs a COMPLETION_BACKEND"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadWallets builds the wallet list from environment variables.
//
// Multi-wallet format (GONKA_WALLETS):
//
//	GONKA_WALLETS=privkey1:addr1,privkey2:addr2,privkey3
//
// Each entry is "private_key" or "private_key:address" separated by commas.
// The address part is optional and will be derived if omitted.
//
// Single-wallet fallback:
//
//	GONKA_PRIVATE_KEY=... GONKA_ADDRESS=...
func loadWallets() ([]wallet.Credential, error) {
	if multi := str("GONKA_WALLETS", ""); multi != "" {
		return parseMultiWallets(multi)
	}
	pk := str("GONKA_PRIVATE_KEY", "")
	if pk == "" {
		return nil, ErrNoWallets
	}
	return []wallet.Credential{{PrivateKey: pk, Address: str("GONKA_ADDRESS", "")}}, nil
}

// parseMultiWallets parses "key1:addr1,key2:addr2,key3" into credentials.
func parseMultiWallets(raw string) ([]wallet.Credential, error) {
	var creds []wallet.Credential
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Split on first colon only (private keys may have 0x prefix but no colons)
		pk, addr, _ := strings.Cut(part, ":")
		pk, addr = strings.TrimSpace(pk), strings.TrimSpace(addr)
		if pk == "" {
			return nil, fmt.Errorf("config: wallet entry %d has empty private key", i+1)
		}
		creds = append(creds, wallet.Credential{PrivateKey: pk, Address: addr})
	}
	if len(creds) == 0 {
		return nil, errors.New("config: GONKA_WALLETS is set but contains no valid entries")
	}
	return creds, nil
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func boolean(key string, def bool) (bool, error) {
	raw := str(key, "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	raw := str(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	if d < 0 {
		return def, fmt.Errorf("config: %s: negative duration %s", key, raw)
	}
	return d, nil
}

func integer(key string, def int) (int, error) {
	raw := str(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	if n < 0 {
		return def, fmt.Errorf("config: %s: must not be negative", key)
	}
	return n, nil
}

func level(raw string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return l, nil
}
