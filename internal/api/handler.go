package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/gonkalabs/deckanon/internal/anonymize"
	"github.com/gonkalabs/deckanon/internal/post"
	"github.com/gonkalabs/deckanon/internal/session"
	"github.com/gonkalabs/deckanon/internal/telemetry"
)

// maxBody caps request bodies; extracted decks are plain text.
const maxBody = 4 << 20

var errNoGenerator = errors.New("api: post generation is disabled (COMPLETION_BACKEND=none)")

// Handler implements all HTTP endpoints.
type Handler struct {
	anon     *anonymize.Anonymizer
	gen      *post.Generator // nil when no completion backend is configured
	sessions *session.Store
	limiter  *rate.Limiter // nil when post generation is unlimited
}

// New creates a Handler. postsPerMinute bounds the post generation
// endpoints across all clients; zero disables the limit.
func New(anon *anonymize.Anonymizer, gen *post.Generator, sessions *session.Store, postsPerMinute int) *Handler {
	h := &Handler{anon: anon, gen: gen, sessions: sessions}
	if postsPerMinute > 0 {
		h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(postsPerMinute)), postsPerMinute)
	}
	return h
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logRequests, middleware.Recoverer, telemetry.Middleware)

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/library", h.library)
		r.Post("/anonymize", h.anonymize)
		r.With(h.rateLimit).Post("/posts", h.createPost)

		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Put("/text", h.setText)
			r.Put("/rules/{term}", h.setRule)
			r.Delete("/rules/{term}", h.deleteRule)
			r.Post("/anonymize", h.anonymizeSession)
			r.Put("/anonymized", h.setAnonymized)
			r.Put("/style", h.setStyle)
			r.With(h.rateLimit).Post("/post", h.generateSessionPost)
			r.Put("/slides/{n}", h.setSlide)
		})
	})
	return r
}

// ---------- stateless endpoints ----------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) library(w http.ResponseWriter, r *http.Request) {
	lib := h.anon.Library()
	writeJSON(w, http.StatusOK, map[string]any{
		"locale":               lib.Locale,
		"recognizer_available": h.anon.RecognizerAvailable(r.Context()),
		"categories":           lib.Categories(),
	})
}

type anonymizeRequest struct {
	Text        string                `json:"text"`
	CustomRules anonymize.CustomRules `json:"custom_rules"`
}

type anonymizeResponse struct {
	AnonymizedText string           `json:"anonymized_text"`
	Report         anonymize.Report `json:"report"`
}

func (h *Handler) anonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !decode(w, r, &req) {
		return
	}
	out, rep := h.anon.AnonymizeWithReport(r.Context(), req.Text, req.CustomRules)
	slog.Info("api: anonymized", "len", len(req.Text), "replacements", rep.Total(), "recognizer", rep.RecognizerAvailable)
	writeJSON(w, http.StatusOK, anonymizeResponse{AnonymizedText: out, Report: rep})
}

type postRequest struct {
	AnonymizedText string `json:"anonymized_text"`
	PostType       string `json:"post_type"`
	CompanyStyle   string `json:"company_style"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.generate(r, post.Request{
		AnonymizedText: req.AnonymizedText,
		Type:           post.ParseType(req.PostType),
		CompanyStyle:   req.CompanyStyle,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) generate(r *http.Request, req post.Request) (*post.Post, error) {
	if h.gen == nil {
		return nil, errNoGenerator
	}
	return h.gen.Generate(r.Context(), req)
}

// ---------- session endpoints ----------

func (h *Handler) createSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, h.sessions.Create())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type textRequest struct {
	Text string `json:"text"`
}

// setText replaces the extracted deck text. Everything derived from the
// previous text is dropped.
func (h *Handler) setText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(s *session.Session) error {
		s.ExtractedText = req.Text
		s.AnonymizedText = ""
		s.Report = nil
		s.Post = nil
		return nil
	})
}

type ruleRequest struct {
	Replacement string `json:"replacement"`
}

func (h *Handler) setRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decode(w, r, &req) {
		return
	}
	term := chi.URLParam(r, "term")
	h.update(w, r, func(s *session.Session) error {
		if !s.Rules.Set(term, req.Replacement) {
			return badRequest("term must not be blank")
		}
		return nil
	})
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	h.update(w, r, func(s *session.Session) error {
		s.Rules.Delete(term)
		return nil
	})
}

// anonymizeSession runs outside the store lock because the recognizer may
// call a sidecar. The result is dropped if the text was replaced meanwhile.
func (h *Handler) anonymizeSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if s.ExtractedText == "" {
		writeErr(w, http.StatusBadRequest, "session has no extracted text")
		return
	}
	src := s.ExtractedText
	out, rep := h.anon.AnonymizeWithReport(r.Context(), src, s.Rules)
	h.update(w, r, func(s *session.Session) error {
		if s.ExtractedText != src {
			return conflict("extracted text changed during anonymization")
		}
		s.AnonymizedText = out
		s.Report = &rep
		return nil
	})
}

func (h *Handler) setAnonymized(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(s *session.Session) error {
		s.AnonymizedText = req.Text
		return nil
	})
}

type styleRequest struct {
	CompanyStyle *string `json:"company_style"`
	PostType     *string `json:"post_type"`
}

func (h *Handler) setStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(s *session.Session) error {
		if req.CompanyStyle != nil {
			s.CompanyStyle = *req.CompanyStyle
		}
		if req.PostType != nil {
			s.PostType = post.ParseType(*req.PostType)
		}
		return nil
	})
}

// generateSessionPost also runs outside the store lock. The stored post
// reflects the anonymized text as it was when generation started.
func (h *Handler) generateSessionPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.generate(r, post.Request{
		AnonymizedText: s.AnonymizedText,
		Type:           s.PostType,
		CompanyStyle:   s.CompanyStyle,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.update(w, r, func(s *session.Session) error {
		s.Post = p
		return nil
	})
}

func (h *Handler) setSlide(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		writeErr(w, http.StatusBadRequest, "slide number must be a positive integer")
		return
	}
	var req post.Slide
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(s *session.Session) error {
		if s.Post == nil {
			return conflict("session has no generated post")
		}
		if n > len(s.Post.Slides) {
			return notFound(fmt.Sprintf("slide %d does not exist", n))
		}
		s.Post.Slides[n-1] = req
		return nil
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	s, err := h.sessions.Update(chi.URLParam(r, "id"), fn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ---------- middleware ----------

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "post generation rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"dur", time.Since(start),
			"req_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ---------- helpers ----------

// httpError carries a status for failures that originate in the handler.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error { return &httpError{http.StatusBadRequest, msg} }
func conflict(msg string) error   { return &httpError{http.StatusConflict, msg} }
func notFound(msg string) error   { return &httpError{http.StatusNotFound, msg} }

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var he *httpError
	switch {
	case errors.As(err, &he):
		writeErr(w, he.status, he.msg)
	case errors.Is(err, session.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, post.ErrEmptyInput):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errNoGenerator):
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("api: post generation failed", "err", err)
		writeErr(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
