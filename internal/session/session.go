// Package session keeps the per-user working state of the deck-to-post
// workflow in memory. Nothing here is durable.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gonkalabs/deckanon/internal/anonymize"
	"github.com/gonkalabs/deckanon/internal/post"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL is how long an untouched session lives.
const DefaultTTL = 2 * time.Hour

// Session is one user's workflow state.
type Session struct {
	ID             string                `json:"id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	ExtractedText  string                `json:"extracted_text"`
	AnonymizedText string                `json:"anonymized_text"`
	Rules          anonymize.CustomRules `json:"custom_rules"`
	CompanyStyle   string                `json:"company_style"`
	PostType       post.Type             `json:"post_type"`
	Post           *post.Post            `json:"post,omitempty"`
	Report         *anonymize.Report     `json:"report,omitempty"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Rules = s.Rules.Clone()
	c.Post = s.Post.Clone()
	if s.Report != nil {
		r := *s.Report
		r.Counts = maps.Clone(s.Report.Counts)
		r.SkippedRules = append([]string(nil), s.Report.SkippedRules...)
		c.Report = &r
	}
	return &c
}

// Store is a TTL-bounded, concurrency-safe session map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a Store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts an empty session.
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Rules:     anonymize.CustomRules{},
		PostType:  post.CaseStudy,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s.clone()
}

// Get returns a copy of the session.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.clone(), nil
}

// Update applies fn to the session under the store lock and returns a
// copy of the result. If fn fails the session is left untouched.
func (st *Store) Update(id string, fn func(*Session) error) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	work := s.clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.ID, work.CreatedAt = s.ID, s.CreatedAt
	work.UpdatedAt = st.now()
	st.sessions[id] = work
	return work.clone(), nil
}

// Delete drops the session.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.lookup(id); err != nil {
		return err
	}
	delete(st.sessions, id)
	return nil
}

// Len reports the number of live sessions, expired ones included until
// the next Sweep.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep removes expired sessions and returns how many went.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if st.expired(s) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// Janitor sweeps every interval until ctx is done.
func (st *Store) Janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Sweep(); n > 0 {
				slog.Debug("session: swept expired sessions", "count", n)
			}
		}
	}
}

// lookup must be called with mu held.
func (st *Store) lookup(id string) (*Session, error) {
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if st.expired(s) {
		delete(st.sessions, id)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (st *Store) expired(s *Session) bool {
	return st.now().Sub(s.UpdatedAt) > st.ttl
}
