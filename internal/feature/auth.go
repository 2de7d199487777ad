package feature

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/session"
	"github.com/gosuda/backoffice/internal/store"
)

// LoginFunc exchanges credentials for a bearer token.
type LoginFunc func(ctx context.Context, email, password string) (string, error)

// Auth drives the session: login persists the token, logout clears it and
// every feature region, rehydrate restores it at start.
type Auth struct {
	store   *store.Store
	source  *session.Source
	login   LoginFunc
	msgs    *Messages
	onReset func(ctx context.Context) error
}

func NewAuth(st *store.Store, source *session.Source, login LoginFunc, msgs *Messages) *Auth {
	return &Auth{store: st, source: source, login: login, msgs: msgs}
}

func (a *Auth) set(ctx context.Context, next store.AuthState) error {
	return a.store.Update(ctx, func(st *store.AppState) []store.Notice {
		st.Auth = next
		if !next.Status.Terminal() {
			return nil
		}
		return []store.Notice{{
			Feature:    store.FeatureAuth,
			Transition: remote.Transition{Status: next.Status, Error: next.Error},
			At:         time.Now(),
		}}
	})
}

func authenticated(info session.Info) store.AuthState {
	return store.AuthState{
		Authenticated: true,
		Subject:       info.Subject,
		ExpiresAt:     info.ExpiresAt,
		Status:        remote.StatusSucceeded,
	}
}

// Login validates the credentials locally, then authenticates against the
// backend. A rejected login is recorded on the auth state, not returned.
func (a *Auth) Login(ctx context.Context, email, password string) (store.AuthState, error) {
	v := &domain.ValidationError{}
	if strings.TrimSpace(email) == "" {
		v.Add("email", "required")
	}
	if password == "" {
		v.Add("password", "required")
	}
	if err := v.OrNil(); err != nil {
		return store.AuthState{}, fmt.Errorf("feature.Auth.Login: %w", err)
	}

	if err := a.set(ctx, store.AuthState{Status: remote.StatusLoading}); err != nil {
		return store.AuthState{}, fmt.Errorf("feature.Auth.Login: %w", err)
	}

	done := context.WithoutCancel(ctx)
	token, err := a.login(ctx, strings.TrimSpace(email), password)
	if err == nil {
		var info session.Info
		info, err = a.source.Set(done, token)
		if err == nil {
			next := authenticated(info)
			log.Info().Str("subject", info.Subject).Msg("signed in")
			return next, a.set(done, next)
		}
	}

	log.Warn().Err(err).Msg("login failed")
	next := store.AuthState{Status: remote.StatusFailed, Error: a.msgs.Describe(err, MsgLogin)}
	return next, a.set(done, next)
}

// Logout clears the token and returns every feature region to idle.
func (a *Auth) Logout(ctx context.Context) error {
	if err := a.source.Clear(ctx); err != nil {
		return fmt.Errorf("feature.Auth.Logout: %w", err)
	}
	if a.onReset != nil {
		if err := a.onReset(ctx); err != nil {
			return fmt.Errorf("feature.Auth.Logout: %w", err)
		}
	}
	if err := a.set(ctx, store.AuthState{Status: remote.StatusIdle}); err != nil {
		return fmt.Errorf("feature.Auth.Logout: %w", err)
	}
	log.Info().Msg("signed out")
	return nil
}

// Rehydrate restores the persisted token, if any.
func (a *Auth) Rehydrate(ctx context.Context) (store.AuthState, error) {
	ok, err := a.source.Rehydrate(ctx)
	if err != nil {
		return store.AuthState{}, fmt.Errorf("feature.Auth.Rehydrate: %w", err)
	}
	next := store.AuthState{Status: remote.StatusIdle}
	if ok {
		info, _ := a.source.Current()
		next = authenticated(info)
	}
	if err := a.set(ctx, next); err != nil {
		return store.AuthState{}, fmt.Errorf("feature.Auth.Rehydrate: %w", err)
	}
	return next, nil
}

func (a *Auth) State(ctx context.Context) (store.AuthState, error) {
	var out store.AuthState
	err := a.store.View(ctx, func(st store.AppState) { out = st.Auth })
	return out, err
}
