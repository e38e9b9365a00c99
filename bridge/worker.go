package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chess-worker/book"
	"chess-worker/config"
	"chess-worker/engine"
	"chess-worker/rules"
)

// progressInterval paces progress inside a long iteration.
const progressInterval = 250 * time.Millisecond

// Worker answers bridge requests with the rules, engine and book packages. It keeps
// one Searcher whose table survives between searches of the same game.
// Worker is driven by a single Bridge goroutine and is not safe for concurrent use.
type Worker struct {
	cfg      config.EngineConfig
	book     *book.Book
	picker   book.Picker
	sessions *book.Sessions
	log      zerolog.Logger

	searcher *engine.Searcher
	gameID   GameID
	ttMB     float64
}

type WorkerOptions struct {
	Engine   config.EngineConfig
	Book     *book.Book
	Picker   book.Picker
	Sessions *book.Sessions
}

func NewWorker(opts WorkerOptions, log zerolog.Logger) *Worker {
	if opts.Engine.TTMB <= 0 {
		opts.Engine.TTMB = engine.DefaultTTMB
	}
	if opts.Engine.MaxTTMB < opts.Engine.TTMB {
		opts.Engine.MaxTTMB = opts.Engine.TTMB
	}
	if opts.Sessions == nil {
		opts.Sessions = book.NewSessions(6 * time.Hour)
	}
	return &Worker{
		cfg:      opts.Engine,
		book:     opts.Book,
		picker:   opts.Picker,
		sessions: opts.Sessions,
		log:      log.With().Str("component", "worker").Logger(),
	}
}

func (w *Worker) Handle(ctx context.Context, req Request, progress func(Response)) (Response, error) {
	switch req.Action {
	case ActionMoves:
		return w.moves(req)
	case ActionApply:
		return w.apply(req)
	case ActionPerft:
		return w.perft(req)
	case ActionSearch:
		return w.search(ctx, req, progress)
	}
	return Response{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
}

func parse(fen string) (rules.Position, error) {
	pos, err := rules.ParsePosition(fen)
	if err != nil {
		return rules.Position{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return pos, nil
}

func square(name string, idx int) (rules.Square, error) {
	sq := rules.Square(idx)
	if !sq.Valid() {
		return rules.NoSquare, fmt.Errorf("%w: %s %d out of range", ErrBadRequest, name, idx)
	}
	return sq, nil
}

func (w *Worker) moves(req Request) (Response, error) {
	pos, err := parse(req.FEN)
	if err != nil {
		return Response{}, err
	}
	origin, err := square("field", int(req.Field))
	if err != nil {
		return Response{}, err
	}
	dests := pos.LegalDestinations(origin)
	out := make([]int, len(dests))
	for i, sq := range dests {
		out[i] = int(sq)
	}
	return Response{Action: ActionMoves, Moves: out}, nil
}

// apply plays a validated move. An illegal move or empty origin returns the
// position unchanged.
func (w *Worker) apply(req Request) (Response, error) {
	pos, err := parse(req.FEN)
	if err != nil {
		return Response{}, err
	}
	from, err := square("from", int(req.From))
	if err != nil {
		return Response{}, err
	}
	to, err := square("to", int(req.To))
	if err != nil {
		return Response{}, err
	}
	promo, err := rules.ParsePromotion(req.Promotion)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	m, ok := pos.Board().FindMove(from, to, promo)
	if !ok {
		w.log.Warn().Str("fen", req.FEN).Str("from", from.String()).Str("to", to.String()).Msg("illegal move ignored")
		return Response{Action: ActionApply, FEN: pos.FEN()}, nil
	}
	return Response{Action: ActionApply, FEN: pos.ApplyMove(m).FEN()}, nil
}

func (w *Worker) perft(req Request) (Response, error) {
	pos, err := parse(req.FEN)
	if err != nil {
		return Response{}, err
	}
	if req.Depth < 0 {
		return Response{}, fmt.Errorf("%w: depth %d", ErrBadRequest, req.Depth)
	}
	start := time.Now()
	nodes := pos.Perft(req.Depth)
	return Response{
		Action: ActionPerft,
		Nodes:  nodes,
		Depth:  req.Depth,
		Ms:     time.Since(start).Milliseconds(),
	}, nil
}

func (w *Worker) search(ctx context.Context, req Request, progress func(Response)) (Response, error) {
	pos, err := parse(req.FEN)
	if err != nil {
		return Response{}, err
	}
	depth, limit := req.Depth, time.Duration(req.TimeMs)*time.Millisecond
	if limit > 0 {
		depth = 0
	}
	if depth <= 0 && limit <= 0 {
		return Response{}, fmt.Errorf("%w: %w", ErrBadRequest, engine.ErrNoLimit)
	}

	if req.BookEnabled {
		if resp, ok := w.fromBook(req, pos); ok {
			return resp, nil
		}
	}

	s := w.searcherFor(req.GameID, w.tableSize(req.TTMb))
	res, err := s.Search(ctx, pos, engine.Limits{
		Depth:            depth,
		Time:             limit,
		History:          w.historyKeys(req.History),
		ProgressInterval: progressInterval,
		RootScores:       req.DebugRootEval,
		OnProgress: func(p engine.Progress) {
			progress(Response{
				Action:         ActionSearchProgress,
				Depth:          p.Depth,
				Nodes:          p.Nodes,
				NodesCompleted: p.NodesCompleted,
				NodesTotal:     p.NodesTotal,
				TimeMs:         p.Elapsed.Milliseconds(),
			})
		},
	})
	if err != nil {
		return Response{}, err
	}
	return searchResponse(res), nil
}

func searchResponse(res engine.Result) Response {
	score := res.Score
	resp := Response{
		Action:         ActionSearch,
		Depth:          res.Depth,
		Nodes:          res.Nodes,
		NodesCompleted: res.NodesCompleted,
		NodesTotal:     res.NodesTotal,
		TimeMs:         res.Elapsed.Milliseconds(),
		NPS:            res.NPS,
		Score:          &score,
		Mate:           res.Mate,
		PV:             engine.PVLine{Moves: res.PV}.String(),
		RepAvoid:       res.RepetitionAvoided,
	}
	if res.Best != rules.NullMove {
		resp.Best = res.Best.String()
	}
	for _, rs := range res.RootScores {
		resp.RootEval = append(resp.RootEval, RootEval{Move: rs.Move.String(), Score: rs.Score})
	}
	return resp
}

func (w *Worker) tableSize(mb float64) float64 {
	if mb <= 0 {
		return w.cfg.TTMB
	}
	if mb > w.cfg.MaxTTMB {
		return w.cfg.MaxTTMB
	}
	return mb
}

// searcherFor keeps the table while the game and size stay the same. Requests
// without a game id never share a table.
func (w *Worker) searcherFor(gameID GameID, mb float64) *engine.Searcher {
	switch {
	case w.searcher == nil:
		w.searcher = engine.NewSearcher(engine.NewTransTable(mb), w.log)
	case w.ttMB != mb:
		w.searcher.TT().Resize(mb)
		w.searcher.NewGame()
	case gameID == "" || gameID != w.gameID:
		w.searcher.NewGame()
	}
	w.gameID, w.ttMB = gameID, mb
	return w.searcher
}

// historyKeys turns newline separated FENs, oldest first, into Zobrist keys.
// Only the most recent HistoryLimit positions are kept.
func (w *Worker) historyKeys(history string) []uint64 {
	lines := strings.Split(strings.TrimSpace(history), "\n")
	if limit := w.cfg.HistoryLimit; limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	keys := make([]uint64, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pos, err := rules.ParsePosition(line)
		if err != nil {
			w.log.Debug().Err(err).Msg("history entry skipped")
			continue
		}
		keys = append(keys, pos.Key())
	}
	return keys
}

// fromBook answers from the opening book while the game's session is active. A
// miss ends book play for that game.
func (w *Worker) fromBook(req Request, pos rules.Position) (Response, bool) {
	if w.book == nil {
		return Response{}, false
	}
	id := string(req.GameID)
	history := strings.Fields(req.UCIHistory)
	if !w.sessions.Active(id, history) {
		return Response{}, false
	}
	log := w.log.With().Str("game", id).Int("ply", len(history)).Logger()

	if len(history) > 0 && !w.reaches(history, pos) {
		log.Debug().Msg("history does not reach the position")
		w.sessions.Deactivate(id)
		return Response{}, false
	}
	pick, ok := w.picker.Pick(w.book.Lookup(pos))
	if !ok {
		log.Debug().Msg("no book move")
		w.sessions.Deactivate(id)
		return Response{}, false
	}
	if _, err := pos.ApplyUCI(pick.Move); err != nil {
		w.sessions.Deactivate(id)
		return Response{}, false
	}
	log.Debug().Str("move", pick.Move).Float64("weight", pick.Weight).Msg("book move")
	score := int32(0)
	return Response{Action: ActionSearch, Best: pick.Move, PV: pick.Move, Score: &score, Book: true}, true
}

func (w *Worker) reaches(history []string, pos rules.Position) bool {
	replayed, err := rules.StartPosition().ApplyUCISequence(history)
	return err == nil && replayed.PositionKey() == pos.PositionKey()
}
