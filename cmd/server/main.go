// Command server exposes the engine to browsers: a websocket speaking the worker
// protocol and a small JSON API for one-shot requests.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"chess-worker/bridge"
	"chess-worker/config"
	"chess-worker/logging"
)

func main() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

	b, errs := bridge.NewFromConfig(cfg, log)
	for _, err := range errs {
		log.Warn().Err(err).Msg("book")
	}
	defer b.Close()

	store := config.NewStore(cfg)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(b, store, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
			return server.Close()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
