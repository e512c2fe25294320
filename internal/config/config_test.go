package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonkalabs/deckanon/internal/wallet"
)

var envKeys = []string{
	"PORT", "LOG_LEVEL", "ANONYMIZE_LOCALE", "ANONYMIZE_LIBRARY_FILE",
	"RECOGNIZER", "NER_URL", "NER_MODEL", "NER_AUTO_INSTALL", "NER_TIMEOUT", "NER_RECHECK",
	"COMPLETION_BACKEND", "OPENAI_API_KEY", "OPENAI_BASE_URL", "POST_MODEL", "LLM_RECOGNIZER_MODEL",
	"GONKA_WALLETS", "GONKA_PRIVATE_KEY", "GONKA_ADDRESS", "GONKA_SOURCE_URL", "GONKA_TRANSFER_AGENTS",
	"SESSION_TTL", "POST_RATE_PER_MINUTE", "OTEL_ENABLED",
}

// cleanEnv blanks every variable Load reads and moves into an empty
// directory so a developer's .env does not leak in.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	cleanEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "fr", cfg.Locale)
	assert.Equal(t, RecognizerNER, cfg.Recognizer)
	assert.Equal(t, "http://deckanon-ner:8001", cfg.NERURL)
	assert.True(t, cfg.NERAutoInstall)
	assert.Zero(t, cfg.NERTimeout)
	assert.Equal(t, 5*time.Minute, cfg.NERRecheck)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "gpt-3.5-turbo", cfg.PostModel)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.PostRatePerMinute)
	assert.False(t, cfg.OTelEnabled)
	assert.Empty(t, cfg.Wallets)
	assert.Empty(t, cfg.TransferAgents)
}

func TestLoadOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANONYMIZE_LOCALE", "EN")
	t.Setenv("RECOGNIZER", "prose")
	t.Setenv("NER_URL", "http://localhost:8001/")
	t.Setenv("NER_TIMEOUT", "3s")
	t.Setenv("NER_AUTO_INSTALL", "false")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("POST_RATE_PER_MINUTE", "0")
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("GONKA_TRANSFER_AGENTS", " a , ,b ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, RecognizerProse, cfg.Recognizer)
	assert.Equal(t, "http://localhost:8001", cfg.NERURL)
	assert.Equal(t, 3*time.Second, cfg.NERTimeout)
	assert.False(t, cfg.NERAutoInstall)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Zero(t, cfg.PostRatePerMinute)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, []string{"a", "b"}, cfg.TransferAgents)
}

func TestLoadGonka(t *testing.T) {
	cleanEnv(t)
	t.Setenv("COMPLETION_BACKEND", "gonka")

	_, err := Load()
	assert.ErrorIs(t, err, ErrNoWallets)

	t.Setenv("GONKA_PRIVATE_KEY", "0xabc")
	t.Setenv("GONKA_ADDRESS", "gonka1xyz")
	t.Setenv("GONKA_SOURCE_URL", "http://node:8000/v1/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []wallet.Credential{{PrivateKey: "0xabc", Address: "gonka1xyz"}}, cfg.Wallets)
	assert.Equal(t, "http://node:8000", cfg.SourceURL)

	t.Setenv("GONKA_WALLETS", "k1:a1, k2 ,")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []wallet.Credential{{PrivateKey: "k1", Address: "a1"}, {PrivateKey: "k2"}}, cfg.Wallets)
}

func TestLoadDotEnv(t *testing.T) {
	cleanEnv(t)
	require.NoError(t, os.Unsetenv("POST_MODEL"))
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("POST_MODEL=llama3\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.PostModel)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"RECOGNIZER":           "spacy",
		"COMPLETION_BACKEND":   "anthropic",
		"NER_TIMEOUT":          "soon",
		"NER_RECHECK":          "-1m",
		"POST_RATE_PER_MINUTE": "many",
		"OTEL_ENABLED":         "maybe",
		"LOG_LEVEL":            "loud",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLLMRecognizerNeedsBackend(t *testing.T) {
	cleanEnv(t)
	t.Setenv("RECOGNIZER", "llm")
	t.Setenv("COMPLETION_BACKEND", "none")
	_, err := Load()
	assert.ErrorContains(t, err, "RECOGNIZER=llm")
}

func TestParseMultiWallets(t *testing.T) {
	_, err := parseMultiWallets(" , ")
	assert.Error(t, err)

	_, err = parseMultiWallets("k1,:addr")
	assert.ErrorContains(t, err, "entry 2")
}
