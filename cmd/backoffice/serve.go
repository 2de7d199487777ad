package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/backoffice/internal/config"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/notify"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/server"
	"github.com/gosuda/backoffice/internal/session"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/upstream"
	"github.com/gosuda/backoffice/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP and websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tokens, redisStore, err := tokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(tokens)

	source := session.NewSource(tokens)
	authed, publicClient, err := clients(cfg, source)
	if err != nil {
		return err
	}
	public, err := upstream.NewPublic(publicClient)
	if err != nil {
		return err
	}

	st := store.New()
	defer st.Close()

	msgs := feature.NewMessages(feature.ParseLocale(cfg.UI.Locale))
	features := feature.New(st, upstream.NewBackend(authed), source, loginVia(publicClient), msgs)
	if state, rerr := features.Auth.Rehydrate(ctx); rerr != nil {
		log.Warn().Err(rerr).Msg("session rehydrate failed")
	} else if state.Authenticated {
		log.Info().Str("subject", state.Subject).Msg("session restored")
	}

	flows := publicflow.NewService(public, msgs, cfg.UI.FileNameCache)

	// Prepare embedded dashboard assets (strip "build/" prefix from fs paths).
	webAssets, err := fs.Sub(web.Assets, "build")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	srv := server.New(ctx, cfg, features, flows, source, webAssets)
	hub := srv.Hub()

	sinks := notify.NewRegistry()
	sinks.Register("log", notify.LogSink{})

	g, gctx := errgroup.WithContext(ctx)

	// With a shared Redis, toasts travel through the relay so every process
	// sharing the session broadcasts them; otherwise the hub is a direct sink.
	if redisStore != nil {
		relay := notify.NewRelay(redisStore.Client(), cfg.Redis.KeyPrefix)
		sinks.Register("relay", relay)
		toasts, cleanup, serr := relay.Subscribe(gctx)
		if serr != nil {
			return serr
		}
		defer cleanup()
		g.Go(func() error { return hub.Forward(gctx, toasts) })
	} else {
		sinks.Register("ws", hub)
	}

	notices, unsubscribe := st.Subscribe(0)
	defer unsubscribe()
	notifier := notify.New(sinks, features)
	g.Go(func() error { return notifier.Run(gctx, notices) })

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Str("upstream", cfg.Upstream.BaseURL).Msg("starting server")
		return srv.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
