// Package search implements the storefront type-ahead: per-session
// debouncing, with every new keystroke cancelling the request it replaces.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"storefront/menu/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

// ErrSuperseded is returned to a query replaced by a newer one from the same session
var ErrSuperseded = errors.New("query superseded by a newer one")

// Backend is the part of the storefront client the suggester uses
type Backend interface {
	Suggest(ctx context.Context, query string) ([]domain.Suggestion, error)
}

type Options struct {
	Debounce       time.Duration
	MinQueryLength int
	MaxSessions    int
}

type session struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelCauseFunc
}

type Suggester struct {
	backend  Backend
	opts     Options
	mu       sync.Mutex
	sessions *lru.Cache[string, *session]
}

func NewSuggester(backend Backend, opts Options) (*Suggester, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 4096
	}
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = 1
	}

	sessions, err := lru.New[string, *session](opts.MaxSessions)
	if err != nil {
		return nil, err
	}

	return &Suggester{
		backend:  backend,
		opts:     opts,
		sessions: sessions,
	}, nil
}

func (s *Suggester) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(id); ok {
		return sess
	}
	sess := &session{}
	s.sessions.Add(id, sess)
	return sess
}

// Suggest returns suggestions for query once the session has been quiet for
// the debounce interval. Backend failures degrade to an empty result.
func (s *Suggester) Suggest(ctx context.Context, sessionID, query string) ([]domain.Suggestion, error) {
	sess := s.session(sessionID)

	ctx, cancel := context.WithCancelCause(ctx)
	sess.mu.Lock()
	if sess.cancel != nil {
		sess.cancel(ErrSuperseded)
	}
	sess.seq++
	mine := sess.seq
	sess.cancel = cancel
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		if sess.seq == mine {
			sess.cancel = nil
		}
		sess.mu.Unlock()
		cancel(nil)
	}()

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < s.opts.MinQueryLength {
		return []domain.Suggestion{}, nil
	}

	if s.opts.Debounce > 0 {
		timer := time.NewTimer(s.opts.Debounce)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, cause(ctx)
		case <-timer.C:
		}
	}

	suggestions, err := s.backend.Suggest(ctx, query)
	if ctx.Err() != nil {
		return nil, cause(ctx)
	}
	if err != nil {
		log.Errorf("❌ Suggestions for %q failed: %v", query, err)
		return []domain.Suggestion{}, nil
	}

	return suggestions, nil
}

func cause(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return ErrSuperseded
	}
	return ctx.Err()
}
