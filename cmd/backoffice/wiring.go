package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gosuda/backoffice/internal/config"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/session"
	"github.com/gosuda/backoffice/internal/upstream"
)

// tokenStore opens the configured session backend. redisStore is non-nil
// only for the redis backend, so callers can share its connection.
func tokenStore(ctx context.Context, cfg *config.Config) (session.TokenStore, *session.RedisStore, error) {
	switch cfg.Session.Backend {
	case config.SessionRedis:
		rs, err := session.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		return rs, rs, nil
	default:
		return session.NewFileStore(cfg.Session.File), nil, nil
	}
}

func closeStore(s session.TokenStore) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// clients builds the authenticated and the credential-free upstream clients.
func clients(cfg *config.Config, tokens *session.Source) (*upstream.Client, *upstream.Client, error) {
	authed, err := upstream.New(upstream.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		Timeout:       cfg.Upstream.Timeout,
		Tokens:        tokens,
		RatePerSecond: cfg.Upstream.Rate,
		Burst:         cfg.Upstream.Burst,
	})
	if err != nil {
		return nil, nil, err
	}
	public, err := upstream.New(upstream.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		Timeout:       cfg.Upstream.Timeout,
		RatePerSecond: cfg.Upstream.Rate,
		Burst:         cfg.Upstream.Burst,
	})
	if err != nil {
		return nil, nil, err
	}
	return authed, public, nil
}

// loginVia exchanges credentials on the public client so the login request
// never carries a stale token.
func loginVia(public *upstream.Client) feature.LoginFunc {
	return func(ctx context.Context, email, password string) (string, error) {
		return upstream.Login(ctx, public, email, password)
	}
}
