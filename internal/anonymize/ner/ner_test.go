package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonkalabs/deckanon/internal/anonymize"
)

func TestRecognizeConvertsCodePointOffsets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		var req classifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fr_core_news_md", req.Model)

		// "Hélène Martin vit à Fès": code-point offsets
		json.NewEncoder(w).Encode(classifyResponse{Spans: []nerSpan{
			{Start: 0, End: 13, Label: "PER", Text: "Hélène Martin"},
			{Start: 20, End: 23, Label: "LOC", Text: "Fès"},
			{Start: 20, End: 99, Label: "LOC"},
		}})
	}))
	defer srv.Close()

	text := "Hélène Martin vit à Fès"
	spans, err := New(srv.URL, "fr_core_news_md", 0).Recognize(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "Hélène Martin", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "Fès", text[spans[1].Start:spans[1].End])
	assert.Equal(t, "PER", spans[0].Label)
}

func TestRecognizeUnreachableSidecar(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	spans, err := New(url, "m", time.Second).Recognize(context.Background(), "Jean")
	assert.NoError(t, err)
	assert.Nil(t, spans)
}

func TestRecognizeBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	spans, err := New(srv.URL, "m", 0).Recognize(context.Background(), "Jean")
	assert.NoError(t, err)
	assert.Nil(t, spans)
}

func TestRecognizeBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "m", 0).Recognize(context.Background(), "Jean")
	assert.Error(t, err)
}

type fakeSidecar struct {
	installed atomic.Bool
	probes    atomic.Int32
	installs  atomic.Int32
}

func (f *fakeSidecar) handler(allowInstall bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /models/{model}", func(w http.ResponseWriter, r *http.Request) {
		f.probes.Add(1)
		if !f.installed.Load() {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"model":"` + r.PathValue("model") + `","loaded":true}`))
	})
	mux.HandleFunc("POST /models/{model}/install", func(w http.ResponseWriter, r *http.Request) {
		f.installs.Add(1)
		if !allowInstall {
			http.Error(w, "download failed", http.StatusBadGateway)
			return
		}
		f.installed.Store(true)
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

func TestProvider(t *testing.T) {
	t.Run("model present", func(t *testing.T) {
		f := &fakeSidecar{}
		f.installed.Store(true)
		srv := httptest.NewServer(f.handler(true))
		defer srv.Close()

		p := NewProvider(New(srv.URL, "fr_core_news_md", 0), false, 0)
		rec, ok := p.Recognizer(context.Background())
		assert.True(t, ok)
		assert.NotNil(t, rec)

		p.Recognizer(context.Background())
		assert.Equal(t, int32(1), f.probes.Load(), "result is cached")
	})

	t.Run("missing model is installed", func(t *testing.T) {
		f := &fakeSidecar{}
		srv := httptest.NewServer(f.handler(true))
		defer srv.Close()

		_, ok := NewProvider(New(srv.URL, "fr_core_news_md", 0), true, 0).Recognizer(context.Background())
		assert.True(t, ok)
		assert.Equal(t, int32(1), f.installs.Load())
		assert.Equal(t, int32(2), f.probes.Load())
	})

	t.Run("missing model without auto-install", func(t *testing.T) {
		f := &fakeSidecar{}
		srv := httptest.NewServer(f.handler(true))
		defer srv.Close()

		_, ok := NewProvider(New(srv.URL, "fr_core_news_md", 0), false, 0).Recognizer(context.Background())
		assert.False(t, ok)
		assert.Zero(t, f.installs.Load())
	})

	t.Run("install failure", func(t *testing.T) {
		f := &fakeSidecar{}
		srv := httptest.NewServer(f.handler(false))
		defer srv.Close()

		_, ok := NewProvider(New(srv.URL, "fr_core_news_md", 0), true, 0).Recognizer(context.Background())
		assert.False(t, ok)
	})

	t.Run("unreachable sidecar", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, ok := NewProvider(New(url, "m", time.Second), true, 0).Recognizer(context.Background())
		assert.False(t, ok)
	})

	t.Run("cancelled caller is not cached", func(t *testing.T) {
		f := &fakeSidecar{}
		f.installed.Store(true)
		srv := httptest.NewServer(f.handler(true))
		defer srv.Close()

		p := NewProvider(New(srv.URL, "m", 0), false, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, ok := p.Recognizer(ctx)
		assert.False(t, ok)

		rec, ok := p.Recognizer(context.Background())
		assert.True(t, ok)
		assert.NotNil(t, rec)
	})

	t.Run("recheck picks up a late sidecar", func(t *testing.T) {
		f := &fakeSidecar{}
		srv := httptest.NewServer(f.handler(true))
		defer srv.Close()

		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		p := NewProvider(New(srv.URL, "m", 0), false, time.Minute)
		p.now = func() time.Time { return clock }

		_, ok := p.Recognizer(context.Background())
		assert.False(t, ok)

		f.installed.Store(true)
		_, ok = p.Recognizer(context.Background())
		assert.False(t, ok, "still cached")

		clock = clock.Add(2 * time.Minute)
		_, ok = p.Recognizer(context.Background())
		assert.True(t, ok)
	})
}

func TestProviderFeedsAnonymizer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /models/{model}", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /classify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Spans: []nerSpan{{Start: 8, End: 19, Label: "PER"}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	lib, err := anonymize.LoadLibrary("fr")
	require.NoError(t, err)
	a := anonymize.New(lib, NewProvider(New(srv.URL, "fr_core_news_md", 0), false, 0))

	out, rep := a.AnonymizeWithReport(context.Background(), "Contact Jean Dupont, jean@example.com", nil)
	assert.Equal(t, "Contact [PERSONNE], [EMAIL]", out)
	assert.True(t, rep.RecognizerAvailable)
}
