package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/gosuda/backoffice/internal/domain"
)

// Source holds the current bearer token in memory, backed by a TokenStore.
// It implements oauth2.TokenSource for the upstream client.
type Source struct {
	store TokenStore
	now   func() time.Time

	mu    sync.RWMutex
	token string
	info  Info
}

var _ oauth2.TokenSource = (*Source)(nil)

func NewSource(store TokenStore) *Source {
	return &Source{store: store, now: time.Now}
}

// Rehydrate loads the persisted token. An expired JWT is cleared from the
// store instead of being restored. It reports whether a session is active.
func (s *Source) Rehydrate(ctx context.Context) (bool, error) {
	tok, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("session.Source.Rehydrate: %w", err)
	}
	if tok == "" {
		return false, nil
	}

	info, err := Inspect(tok)
	if err != nil && !errors.Is(err, ErrOpaque) {
		return false, fmt.Errorf("session.Source.Rehydrate: %w", err)
	}
	if info.Expired(s.now()) {
		log.Info().Str("subject", info.Subject).Msg("stored token expired, clearing")
		if err := s.store.Clear(ctx); err != nil {
			return false, fmt.Errorf("session.Source.Rehydrate: %w", err)
		}
		return false, nil
	}

	s.mu.Lock()
	s.token, s.info = tok, info
	s.mu.Unlock()
	return true, nil
}

// Set persists token and makes it current.
func (s *Source) Set(ctx context.Context, token string) (Info, error) {
	info, err := Inspect(token)
	if err != nil && !errors.Is(err, ErrOpaque) {
		return Info{}, fmt.Errorf("session.Source.Set: %w", err)
	}
	if info.Expired(s.now()) {
		return Info{}, fmt.Errorf("session.Source.Set: %w", ErrExpired)
	}
	if err := s.store.Save(ctx, token); err != nil {
		return Info{}, fmt.Errorf("session.Source.Set: %w", err)
	}

	s.mu.Lock()
	s.token, s.info = token, info
	s.mu.Unlock()
	return info, nil
}

// Clear forgets the token in memory and in the store.
func (s *Source) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token, s.info = "", Info{}
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("session.Source.Clear: %w", err)
	}
	return nil
}

// Current returns the claims of the active token.
func (s *Source) Current() (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.info.Expired(s.now()) {
		return Info{}, false
	}
	return s.info, true
}

// Token implements oauth2.TokenSource. Without a live token it fails with
// domain.ErrMissingAuth so no request leaves the process unauthenticated.
func (s *Source) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" || s.info.Expired(s.now()) {
		return nil, domain.ErrMissingAuth
	}
	tok := &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}
	if s.info.ExpiresAt != nil {
		tok.Expiry = *s.info.ExpiresAt
	}
	return tok, nil
}
