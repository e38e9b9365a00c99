package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chess-worker/book"
	"chess-worker/engine"
	"chess-worker/logging"
	"chess-worker/rules"
)

const (
	engineName      = "chess-worker"
	infiniteDepth   = 64
	defaultMoveTime = 300 * time.Second
)

func main() {
	log := logging.New(os.Getenv("CHESS_WORKER_LOG"), false, os.Stderr)
	b, errs := book.Default(log)
	for _, err := range errs {
		log.Warn().Err(err).Msg("book")
	}
	newUCI(os.Stdout, b, log).loop(os.Stdin)
}

// uci speaks the UCI protocol. Searches run in the background so stop and
// isready are answered while thinking.
type uci struct {
	outMu sync.Mutex
	out   io.Writer
	log   zerolog.Logger

	searcher *engine.Searcher
	book     *book.Book
	picker   book.Picker
	ownBook  bool

	pos     rules.Position
	moves   []string
	history []uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func newUCI(out io.Writer, b *book.Book, log zerolog.Logger) *uci {
	return &uci{
		out:      out,
		log:      log,
		searcher: engine.NewSearcher(engine.NewTransTable(engine.DefaultTTMB), log),
		book:     b,
		picker:   book.NewPicker(0.2, 0.5),
		ownBook:  b != nil,
		pos:      rules.StartPosition(),
	}
}

func (u *uci) println(a ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintln(u.out, a...)
}

func (u *uci) loop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		tokens := strings.Fields(line)
		if len(tokens) == 0 { // ignore blank lines
			continue
		}
		switch strings.ToLower(tokens[0]) {
		case "uci":
			u.println("id name", engineName)
			u.println("id author", engineName, "authors")
			u.println("option name Hash type spin default", engine.DefaultTTMB, "min 1 max 4096")
			u.println("option name OwnBook type check default", u.ownBook)
			u.println("uciok")
		case "isready":
			u.println("readyok")
		case "ucinewgame":
			u.stop()
			u.searcher.NewGame()
			u.setPosition(rules.StartPosition(), nil)
		case "position":
			u.stop()
			u.position(tokens[1:])
		case "go":
			u.stop()
			u.goCommand(tokens[1:])
		case "stop":
			u.stop()
		case "setoption":
			u.stop()
			u.setOption(tokens[1:])
		case "d":
			u.println("info string fen", u.pos.FEN())
		case "eval":
			u.println("info string eval", engine.Evaluation(u.pos.Board()), "phase", engine.GamePhase(u.pos.Board()))
		case "perft":
			u.perft(tokens[1:])
		case "quit":
			u.stop()
			return
		default:
			u.println("info string Unknown command:", line)
		}
	}
	u.stop()
}

func (u *uci) setPosition(pos rules.Position, moves []string) {
	u.pos = pos
	u.moves = moves
	u.history = u.history[:0]
}

// position handles "position startpos|fen <fen> [moves ...]".
func (u *uci) position(args []string) {
	if len(args) == 0 {
		u.println("info string Malformed position command")
		return
	}
	var pos rules.Position
	rest := args[1:]
	switch strings.ToLower(args[0]) {
	case "startpos":
		pos = rules.StartPosition()
	case "fen":
		i := 0
		for i < len(rest) && strings.ToLower(rest[i]) != "moves" {
			i++
		}
		p, err := rules.ParsePosition(strings.Join(rest[:i], " "))
		if err != nil {
			u.println("info string Invalid fen position:", err)
			return
		}
		pos, rest = p, rest[i:]
	default:
		u.println("info string Invalid position subcommand")
		return
	}

	var history []uint64
	var played []string
	if len(rest) > 0 && strings.ToLower(rest[0]) == "moves" {
		for _, mv := range rest[1:] {
			next, err := pos.ApplyUCI(strings.ToLower(mv))
			if err != nil {
				u.println("info string Move", mv, "not found for position", pos.FEN())
				break
			}
			history = append(history, pos.Key())
			played = append(played, strings.ToLower(mv))
			pos = next
		}
	}
	u.pos, u.moves, u.history = pos, played, history
}

type goParams struct {
	wtime, btime, winc, binc, movetime time.Duration
	depth                              int
	infinite                           bool
}

func parseGo(args []string) (goParams, error) {
	var p goParams
	for i := 0; i < len(args); i++ {
		tok := strings.ToLower(args[i])
		if tok == "infinite" {
			p.infinite = true
			continue
		}
		if i+1 >= len(args) {
			return p, fmt.Errorf("go option %s needs a value", tok)
		}
		n, err := strconv.Atoi(args[i+1])
		if err != nil {
			return p, fmt.Errorf("go option %s: %w", tok, err)
		}
		i++
		ms := time.Duration(n) * time.Millisecond
		switch tok {
		case "wtime":
			p.wtime = ms
		case "btime":
			p.btime = ms
		case "winc":
			p.winc = ms
		case "binc":
			p.binc = ms
		case "movetime":
			p.movetime = ms
		case "depth":
			p.depth = n
		case "movestogo", "nodes":
		default:
			return p, fmt.Errorf("unknown go subcommand %s", tok)
		}
	}
	return p, nil
}

// limits turns go parameters into search limits for the side to move.
func (p goParams) limits(pos rules.Position) engine.Limits {
	switch {
	case p.infinite:
		return engine.Limits{Depth: infiniteDepth}
	case p.depth > 0:
		return engine.Limits{Depth: p.depth}
	case p.movetime > 0:
		return engine.Limits{Time: p.movetime}
	}
	remaining, inc := p.wtime, p.winc
	if pos.SideToMove() == rules.Black {
		remaining, inc = p.btime, p.binc
	}
	if remaining <= 0 {
		remaining = defaultMoveTime
	}
	return engine.Limits{Time: engine.AllocateMoveTime(remaining, inc, engine.GamePhase(pos.Board()))}
}

func (u *uci) goCommand(args []string) {
	params, err := parseGo(args)
	if err != nil {
		u.println("info string", err)
	}
	if mv, ok := u.bookMove(); ok {
		u.println("info string book move")
		u.println("bestmove", mv)
		return
	}

	limits := params.limits(u.pos)
	limits.History = append([]uint64(nil), u.history...)
	limits.OnProgress = func(p engine.Progress) {
		u.println(infoLine(p))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	u.cancel, u.done = cancel, done
	pos := u.pos
	go func() {
		defer close(done)
		res, err := u.searcher.Search(ctx, pos, limits)
		if err != nil {
			u.println("info string", err)
		}
		if res.Best == rules.NullMove {
			u.println("bestmove 0000")
			return
		}
		u.println("bestmove", res.Best)
	}()
}

func infoLine(p engine.Progress) string {
	ms := p.Elapsed.Milliseconds()
	nps := uint64(0)
	if ms > 0 {
		nps = p.Nodes * 1000 / uint64(ms)
	}
	return fmt.Sprintf("info depth %d score %s nodes %d time %d nps %d pv %s",
		p.Depth, engine.FormatScore(p.Score), p.Nodes, ms, nps, engine.PVLine{Moves: p.PV}.String())
}

func (u *uci) bookMove() (string, bool) {
	if !u.ownBook || u.book == nil {
		return "", false
	}
	c, ok := u.picker.Pick(u.book.Lookup(u.pos))
	return c.Move, ok
}

// stop cancels a running search and waits for its bestmove.
func (u *uci) stop() {
	if u.cancel == nil {
		return
	}
	u.cancel()
	<-u.done
	u.cancel, u.done = nil, nil
}

// setOption handles "setoption name <id> value <x>".
func (u *uci) setOption(args []string) {
	var name, value []string
	cur := &name
	for _, a := range args {
		switch strings.ToLower(a) {
		case "name":
			cur = &name
		case "value":
			cur = &value
		default:
			*cur = append(*cur, a)
		}
	}
	v := strings.Join(value, " ")
	switch strings.ToLower(strings.Join(name, " ")) {
	case "hash":
		mb, err := strconv.Atoi(v)
		if err != nil || mb < 1 {
			u.println("info string Invalid Hash value", v)
			return
		}
		u.searcher.TT().Resize(float64(mb))
	case "ownbook":
		u.ownBook = strings.EqualFold(v, "true")
	default:
		u.println("info string Unknown option", strings.Join(name, " "))
	}
}

func (u *uci) perft(args []string) {
	depth := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n >= 0 {
			depth = n
		}
	}
	start := time.Now()
	nodes := u.pos.Perft(depth)
	u.println("info string perft", depth, "nodes", nodes, "time", time.Since(start).Milliseconds())
}
