// Command worker serves the engine over stdin/stdout, one JSON request per line
// in and one JSON response or progress message per line out. Logs go to stderr.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chess-worker/bridge"
	"chess-worker/config"
	"chess-worker/logging"
)

const maxLine = 1 << 20

func main() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, log); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer, log zerolog.Logger) error {
	b, errs := bridge.NewFromConfig(cfg, log)
	for _, err := range errs {
		log.Warn().Err(err).Msg("book")
	}
	defer b.Close()

	lines := make(chan []byte)
	enc := json.NewEncoder(out)
	stream := bridge.NewStream(b, func(r bridge.Response) error { return enc.Encode(r) }, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), maxLine)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return nil
			}
		}
		return sc.Err()
	})
	g.Go(func() error {
		defer stream.Wait()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				dispatch(stream, line)
			case <-ctx.Done():
				stream.CancelAll()
				return nil
			}
		}
	})
	log.Info().Msg("worker ready")
	return g.Wait()
}

func dispatch(stream *bridge.Stream, line []byte) {
	if len(line) == 0 {
		return
	}
	var req bridge.Request
	if err := json.Unmarshal(line, &req); err != nil {
		stream.Reject(err)
		return
	}
	stream.Submit(req)
}
