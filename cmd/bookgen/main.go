// Command bookgen builds an opening book from PGN collections. Every game adds
// weight to the moves it played in its first plies, keyed by move history; the
// output loads directly as a book source.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"chess-worker/book"
	"chess-worker/logging"
)

type options struct {
	plies    int
	minGames int
	win      float64
	draw     float64
	loss     float64
}

// tally counts games and weight per history key and move.
type tally struct {
	opts   options
	games  int
	counts map[string]map[string]int
	weight map[string]map[string]float64
}

func newTally(opts options) *tally {
	return &tally{
		opts:   opts,
		counts: make(map[string]map[string]int),
		weight: make(map[string]map[string]float64),
	}
}

// add records the opening of g. A move scores win, draw or loss weight from the
// point of view of the side that played it; unfinished games count as draws.
func (t *tally) add(g *chess.Game) {
	t.games++
	var history []string
	for i, m := range g.Moves() {
		if i >= t.opts.plies {
			break
		}
		key := strings.Join(history, " ")
		uci := m.String()
		if t.counts[key] == nil {
			t.counts[key] = make(map[string]int)
			t.weight[key] = make(map[string]float64)
		}
		t.counts[key][uci]++
		t.weight[key][uci] += t.score(g.Outcome(), i%2 == 0)
		history = append(history, uci)
	}
}

func (t *tally) score(o chess.Outcome, white bool) float64 {
	switch o {
	case chess.WhiteWon:
		if white {
			return t.opts.win
		}
		return t.opts.loss
	case chess.BlackWon:
		if white {
			return t.opts.loss
		}
		return t.opts.win
	}
	return t.opts.draw
}

// file keeps moves seen in at least minGames games.
func (t *tally) file() book.File {
	out := make(book.File)
	for key, moves := range t.counts {
		for uci, n := range moves {
			w := t.weight[key][uci]
			if n < t.opts.minGames || w <= 0 {
				continue
			}
			e, ok := out[key]
			if !ok {
				e = book.Entry{Moves: make(map[string]float64)}
				out[key] = e
			}
			e.Moves[uci] = w
		}
	}
	return out
}

func (t *tally) read(r io.Reader) error {
	sc := chess.NewScanner(r)
	for sc.Scan() {
		t.add(sc.Next())
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func main() {
	var opts options
	out := flag.String("out", "", "output JSON file (default stdout)")
	flag.IntVar(&opts.plies, "plies", 16, "plies of each game to record")
	flag.IntVar(&opts.minGames, "min-games", 2, "drop moves seen in fewer games")
	flag.Float64Var(&opts.win, "win", 1, "weight for a move by the winning side")
	flag.Float64Var(&opts.draw, "draw", 0.5, "weight for a move in a drawn game")
	flag.Float64Var(&opts.loss, "loss", 0.1, "weight for a move by the losing side")
	verify := flag.Bool("verify", true, "load the result as a book and report unusable entries")
	flag.Parse()

	log := logging.New("info", true, os.Stderr)
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: bookgen [flags] games.pgn...")
		os.Exit(2)
	}

	t := newTally(opts)
	for _, path := range flag.Args() {
		f, err := os.Open(path)
		if err != nil {
			log.Fatal().Err(err).Msg("open")
		}
		err = t.read(f)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("read pgn")
		}
		log.Info().Str("file", path).Int("games", t.games).Msg("read")
	}

	data, err := json.MarshalIndent(t.file(), "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode")
	}
	if *verify {
		check(data, log)
	}
	if *out == "" {
		os.Stdout.Write(append(data, '\n'))
		return
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		log.Fatal().Err(err).Msg("write")
	}
}

func check(data []byte, log zerolog.Logger) {
	b, errs := book.Load(zerolog.Nop(), book.Source{Name: "generated", Data: data})
	for _, err := range errs {
		log.Warn().Err(err).Msg("generated book")
	}
	log.Info().Int("positions", b.Len()).Msg("generated book loads")
}
