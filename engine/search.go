package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chess-worker/rules"
)

// =============================================================================
// SCORE CONSTANTS
// =============================================================================
const (
	MaxScore  int32 = 32500
	Checkmate int32 = 20000
	DrawScore int32 = 0
)

// MaxPly bounds the height of the search tree, extensions and quiescence included.
const MaxPly = 100

// maxIterDepth is the deepest iteration started when only a time limit is set.
const maxIterDepth = 64

// DefaultTTMB is used when a caller leaves the table budget unset.
const DefaultTTMB = 64

const nodeCheckMask = 2047

var ErrNoLimit = errors.New("engine: search needs a depth or time limit")

// =============================================================================
// MARGINS
// =============================================================================
var FutilityMargins = [8]int32{0, 120, 220, 320, 420, 520, 620, 720}
var RFPMargins = [8]int32{0, 100, 200, 300, 400, 500, 600, 700}
var LateMovePruningMargins = [9]int{0, 3, 5, 9, 14, 20, 27, 35, 44}

var NullMoveMinDepth int8 = 2
var QuiescenceSeeMargin = 100
var DeltaMargin int32 = 200
var aspirationWindowSize int32 = 35

// RepetitionMargin is the score from which declining an available repetition is reported.
var RepetitionMargin int32 = 100

// Limits bounds one search. At least one of Depth and Time must be set; zero means
// unbounded on that axis.
type Limits struct {
	Depth int
	Time  time.Duration

	// TTMB sizes the table for the package level Search. A Searcher keeps its own table.
	TTMB float64

	// History holds the Zobrist keys of the game so far, oldest first. The root may
	// be included as the last entry.
	History []uint64

	// OnProgress is called after every completed depth and, when ProgressInterval is
	// set, periodically while a depth is running. It runs on the search goroutine.
	OnProgress       func(Progress)
	ProgressInterval time.Duration

	// RootScores asks for a full-window score of every root move.
	RootScores bool
}

type Progress struct {
	Depth          int
	Nodes          uint64
	NodesCompleted uint64
	NodesTotal     uint64
	Elapsed        time.Duration
	Score          int32
	PV             []rules.Move
}

type RootScore struct {
	Move  rules.Move
	Score int32
}

// Result describes the last fully completed depth. NodesTotal also counts the work
// spent on an abandoned depth.
type Result struct {
	Best              rules.Move
	PV                []rules.Move
	Depth             int
	Nodes             uint64
	NodesCompleted    uint64
	NodesTotal        uint64
	Score             int32
	Mate              int
	Elapsed           time.Duration
	NPS               uint64
	Book              bool
	RepetitionAvoided bool
	RootScores        []RootScore
}

// Searcher owns a transposition table and the move ordering tables. It runs one
// search at a time and is not safe for concurrent use.
type Searcher struct {
	tt  *TransTable
	log zerolog.Logger

	killers [MaxPly + 1][2]rules.Move
	history [2][64][64]int
	counter [2][64][64]rules.Move

	states    []state
	rootIndex int

	moveBufs  [MaxPly + 1][]rules.Move
	quietBufs [MaxPly + 1][]rules.Move
	lists     [MaxPly + 1]moveList

	ctx            context.Context
	limits         Limits
	timer          TimeHandler
	nodes          uint64
	nodesCompleted uint64
	stopped        bool
	canStop        bool
	iterDepth      int
	lastProgress   time.Duration

	rootMoves    []rules.Move
	rootBest     rules.Move
	rootScores   []RootScore
	repAvailable bool
	bestIsRep    bool

	completed Result
	cuts      CutStats
}

// NewSearcher wraps tt; a nil table gets one of DefaultTTMB.
func NewSearcher(tt *TransTable, log zerolog.Logger) *Searcher {
	if tt == nil {
		tt = NewTransTable(DefaultTTMB)
	}
	return &Searcher{tt: tt, log: log.With().Str("component", "search").Logger()}
}

func (s *Searcher) TT() *TransTable { return s.tt }

// NewGame forgets everything learned from earlier positions.
func (s *Searcher) NewGame() {
	s.tt.Clear()
	s.history = [2][64][64]int{}
	s.counter = [2][64][64]rules.Move{}
	s.clearKillers()
}

// Search runs a one-off search on a fresh table sized from limits.TTMB.
func Search(ctx context.Context, pos rules.Position, limits Limits, log zerolog.Logger) (Result, error) {
	mb := limits.TTMB
	if mb <= 0 {
		mb = DefaultTTMB
	}
	return NewSearcher(NewTransTable(mb), log).Search(ctx, pos, limits)
}

// Search deepens iteratively from depth 1 until the depth or time limit is reached.
// Depth 1 always completes, so a position with legal moves always yields a best move.
// A position without legal moves returns at once: checkmate scores -MaxScore and
// stalemate scores DrawScore, both without a best move.
func (s *Searcher) Search(ctx context.Context, pos rules.Position, limits Limits) (Result, error) {
	if limits.Depth <= 0 && limits.Time <= 0 {
		return Result{}, ErrNoLimit
	}
	maxDepth := limits.Depth
	if maxDepth <= 0 || maxDepth > maxIterDepth {
		maxDepth = maxIterDepth
	}

	b := pos.Board()
	s.reset(ctx, b, limits)

	s.rootMoves = b.GenerateMoves()
	if len(s.rootMoves) == 0 {
		res := Result{Score: DrawScore, Elapsed: s.timer.Elapsed()}
		if b.InCheck(b.SideToMove()) {
			res.Score = -MaxScore
		}
		s.log.Debug().Str("fen", pos.FEN()).Int32("score", res.Score).Msg("no legal moves at root")
		return res, nil
	}

	var pv PVLine
	for depth := 1; depth <= maxDepth; depth++ {
		if depth > 1 && (s.timer.SoftTimeExceeded() || ctx.Err() != nil) {
			break
		}
		s.iterDepth = depth
		score := s.aspirate(b, int8(depth), &pv)
		if s.stopped {
			break
		}
		s.completeIteration(depth, score, pv)
		s.canStop = true

		if limits.Depth <= 0 && (score > Checkmate || score < -Checkmate) {
			break
		}
	}

	res := s.completed
	res.NodesTotal = s.nodes
	res.Elapsed = s.timer.Elapsed()
	res.NPS = nps(s.nodes, res.Elapsed)
	s.log.Debug().Object("cuts", s.cuts).Int("depth", res.Depth).Str("best", res.Best.String()).Msg("search done")
	return res, nil
}

func (s *Searcher) reset(ctx context.Context, b *rules.Board, limits Limits) {
	s.ctx = ctx
	s.limits = limits
	s.timer.Start(limits.Time)
	s.nodes, s.nodesCompleted = 0, 0
	s.stopped, s.canStop = false, false
	s.lastProgress = 0
	s.rootBest = rules.NullMove
	s.completed = Result{}
	s.cuts = CutStats{}
	s.clearKillers()
	s.resetStates(b, limits.History)
}

func (s *Searcher) completeIteration(depth int, score int32, pv PVLine) {
	s.nodesCompleted = s.nodes
	line := pv.Clone().Moves
	if len(line) == 0 || line[0] != s.rootBest {
		line = []rules.Move{s.rootBest}
	}
	res := Result{
		Best:              s.rootBest,
		PV:                line,
		Depth:             depth,
		Nodes:             s.nodesCompleted,
		NodesCompleted:    s.nodesCompleted,
		Score:             score,
		Mate:              MateIn(score),
		RepetitionAvoided: s.repAvailable && !s.bestIsRep && score >= RepetitionMargin,
	}
	if s.limits.RootScores {
		res.RootScores = append([]RootScore(nil), s.rootScores...)
	}
	s.completed = res

	elapsed := s.timer.Elapsed()
	s.log.Debug().
		Int("depth", depth).
		Uint64("nodes", s.nodes).
		Uint64("nps", nps(s.nodes, elapsed)).
		Str("score", FormatScore(score)).
		Str("pv", PVLine{Moves: line}.String()).
		Msg("depth complete")
	s.emitProgress(depth, elapsed)
}

func (s *Searcher) emitProgress(depth int, elapsed time.Duration) {
	if s.limits.OnProgress == nil {
		return
	}
	s.lastProgress = elapsed
	s.limits.OnProgress(Progress{
		Depth:          depth,
		Nodes:          s.nodes,
		NodesCompleted: s.nodesCompleted,
		NodesTotal:     s.nodes,
		Elapsed:        elapsed,
		Score:          s.completed.Score,
		PV:             s.completed.PV,
	})
}

// poll runs every few thousand nodes. Limits are only honoured once depth 1 is done.
func (s *Searcher) poll() {
	if s.limits.ProgressInterval > 0 && s.limits.OnProgress != nil {
		if elapsed := s.timer.Elapsed(); elapsed-s.lastProgress >= s.limits.ProgressInterval {
			s.emitProgress(s.iterDepth, elapsed)
		}
	}
	if !s.canStop {
		return
	}
	if s.timer.TimeStatus() || s.ctx.Err() != nil {
		s.stopped = true
	}
}

func nps(nodes uint64, elapsed time.Duration) uint64 {
	ms := elapsed.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return nodes * 1000 / uint64(ms)
}

// aspirate searches the root in a window around the previous score and widens it
// until the score falls inside.
func (s *Searcher) aspirate(b *rules.Board, depth int8, pv *PVLine) int32 {
	alpha, beta := -MaxScore, MaxScore
	if depth > 1 && !s.limits.RootScores {
		alpha = max(s.completed.Score-aspirationWindowSize, -MaxScore)
		beta = min(s.completed.Score+aspirationWindowSize, MaxScore)
	}
	window := aspirationWindowSize
	for {
		pv.Clear()
		score := s.searchRoot(b, depth, alpha, beta, pv)
		if s.stopped || (score > alpha && score < beta) || (alpha <= -MaxScore && beta >= MaxScore) {
			return score
		}
		window *= 2
		alpha = max(score-window, -MaxScore)
		beta = min(score+window, MaxScore)
	}
}

// searchRoot is alphabeta at ply 0. A root move that repeats an earlier position
// scores as a draw; with RootScores every move gets a full window.
func (s *Searcher) searchRoot(b *rules.Board, depth int8, alpha, beta int32, pv *PVLine) int32 {
	s.nodes++
	side := b.SideToMove()
	hash := b.Hash()

	ttMove := s.rootBest
	if ttMove == rules.NullMove {
		if e, found := s.tt.Probe(hash); found {
			ttMove = e.Move
		}
	}

	ml := &s.lists[0]
	s.scoreMoves(ml, s.rootMoves, side, 0, ttMove, rules.NullMove)
	collect := s.limits.RootScores
	s.rootScores = s.rootScores[:0]

	var child PVLine
	bestScore := -MaxScore
	bestMove := rules.NullMove
	repAvailable, bestIsRep := false, false
	flag := AlphaFlag

	for i := range ml.moves {
		orderNextMove(i, ml)
		m := ml.moves[i].move

		_, st := b.MakeMove(m)
		s.pushState(b)
		child.Clear()

		var score int32
		rep := s.repeatsEarlier()
		switch {
		case rep:
			score = DrawScore
			repAvailable = true
		case collect:
			score = -s.alphabeta(b, -MaxScore, MaxScore, depth-1, 1, &child, m, false)
		case i == 0:
			score = -s.alphabeta(b, -beta, -alpha, depth-1, 1, &child, m, false)
		default:
			score = -s.alphabeta(b, -alpha-1, -alpha, depth-1, 1, &child, m, false)
			if score > alpha && score < beta {
				score = -s.alphabeta(b, -beta, -alpha, depth-1, 1, &child, m, false)
			}
		}

		s.popState()
		b.UnmakeMove(m, st)
		if s.stopped {
			return bestScore
		}

		if collect {
			s.rootScores = append(s.rootScores, RootScore{Move: m, Score: score})
		}
		if score > bestScore {
			bestScore, bestMove, bestIsRep = score, m, rep
		}
		if score > alpha {
			alpha = score
			flag = ExactFlag
			pv.Update(m, child)
			if score >= beta {
				flag = BetaFlag
				break
			}
		}
	}

	s.rootBest = bestMove
	s.repAvailable, s.bestIsRep = repAvailable, bestIsRep
	s.tt.Store(hash, depth, 0, bestMove, bestScore, flag)
	return bestScore
}

func (s *Searcher) alphabeta(b *rules.Board, alpha, beta int32, depth, ply int8, pv *PVLine, prevMove rules.Move, didNull bool) int32 {
	s.nodes++
	if s.nodes&nodeCheckMask == 0 {
		s.poll()
	}
	if s.stopped {
		return 0
	}
	if ply >= MaxPly {
		return Evaluation(b)
	}

	isPVNode := beta-alpha > 1

	// Draw detection
	if s.isDraw() {
		return DrawScore
	}

	// Mate distance pruning
	alpha = max(alpha, -MaxScore+int32(ply))
	beta = min(beta, MaxScore-int32(ply)-1)
	if alpha >= beta {
		return alpha
	}

	side := b.SideToMove()
	inCheck := b.InCheck(side)

	// Check extension
	if inCheck {
		depth++
	}

	if depth <= 0 {
		return s.quiescence(b, alpha, beta, ply, pv)
	}

	hash := b.Hash()
	ttEntry, ttHit := s.tt.Probe(hash)
	usable, ttScore := useEntry(ttEntry, ttHit, depth, alpha, beta, ply)
	if usable && !isPVNode {
		s.cuts.TTCutoffs++
		return ttScore
	}
	var ttMove rules.Move
	if ttHit {
		ttMove = ttEntry.Move
	}

	staticScore := Evaluation(b)
	improving := ply >= 2 && !inCheck && staticScore > alpha

	/*
		If our position is so good that even after giving a margin to the opponent,
		we still beat beta, we can safely prune.
	*/
	if !inCheck && !isPVNode && depth <= 7 && abs32(beta) < Checkmate {
		rfpMargin := RFPMargins[depth]
		if !improving {
			rfpMargin -= 50
		}
		if staticScore-rfpMargin >= beta {
			s.cuts.ReverseFutility++
			return staticScore - rfpMargin
		}
	}

	/*
		NULL MOVE PRUNING
	*/
	if !inCheck && !isPVNode && !didNull && depth >= NullMoveMinDepth && staticScore >= beta && HasNonPawnMaterial(b, side) {
		R := 3 + depth/3
		if R > depth-1 {
			R = depth - 1
		}
		ns := b.MakeNullMove()
		s.pushNullState(b)
		var nullPV PVLine
		score := -s.alphabeta(b, -beta, -beta+1, depth-1-R, ply+1, &nullPV, rules.NullMove, true)
		s.popState()
		b.UnmakeNullMove(ns)
		if s.stopped {
			return 0
		}
		if score >= beta && score < Checkmate {
			s.cuts.NullMoveCutoffs++
			return score
		}
	}

	moves := b.GenerateMovesInto(s.moveBufs[ply])
	s.moveBufs[ply] = moves
	if len(moves) == 0 {
		if inCheck {
			return -MaxScore + int32(ply)
		}
		return DrawScore
	}

	ml := &s.lists[ply]
	s.scoreMoves(ml, moves, side, ply, ttMove, prevMove)

	var child PVLine
	bestScore := -MaxScore
	bestMove := rules.NullMove
	ttFlag := AlphaFlag
	legalMoves := 0
	quiets := s.quietBufs[ply][:0]

	for index := range ml.moves {
		orderNextMove(index, ml)
		move := ml.moves[index].move

		isQuiet := move.IsQuiet()
		givesCheck := b.GivesCheck(move)
		tactical := !isQuiet || givesCheck
		legalMoves++

		if !isPVNode && !tactical && !inCheck && legalMoves > 1 && bestScore > -Checkmate {
			// Late move pruning
			if depth <= 8 {
				lmpMargin := LateMovePruningMargins[depth]
				if !improving {
					lmpMargin = lmpMargin * 2 / 3
				}
				if legalMoves > lmpMargin {
					s.cuts.LateMovePrunes++
					continue
				}
			}
			// Futility pruning
			if depth <= 7 && abs32(alpha) < Checkmate {
				futilityMargin := FutilityMargins[depth]
				if !improving {
					futilityMargin -= 50
				}
				if staticScore+futilityMargin <= alpha {
					s.cuts.FutilityPrunes++
					continue
				}
			}
		}

		if isQuiet {
			quiets = append(quiets, move)
		}

		_, st := b.MakeMove(move)
		s.pushState(b)
		child.Clear()

		var score int32
		if legalMoves == 1 {
			score = -s.alphabeta(b, -beta, -alpha, depth-1, ply+1, &child, move, false)
		} else {
			var reduct int8
			if !tactical && !inCheck {
				reduct = lmrReduction(depth, legalMoves, isPVNode, s.history[side][move.From()][move.To()], s.isKiller(move, ply))
			}
			score = s.searchMoveWithPVS(b, move, depth-1, reduct, alpha, beta, ply, &child)
		}

		s.popState()
		b.UnmakeMove(move, st)
		if s.stopped {
			s.quietBufs[ply] = quiets
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move
		}

		// Beta cutoff
		if score >= beta {
			s.cuts.BetaCutoffs++
			ttFlag = BetaFlag
			if isQuiet {
				s.insertKiller(move, ply)
				s.storeCounter(side, prevMove, move)
				s.incrementHistory(side, move, depth)
				for _, failed := range quiets {
					if failed != move {
						s.decrementHistory(side, failed, depth)
					}
				}
			}
			break
		}

		if score > alpha {
			alpha = score
			ttFlag = ExactFlag
			pv.Update(move, child)
		}
	}
	s.quietBufs[ply] = quiets

	s.tt.Store(hash, depth, ply, bestMove, bestScore, ttFlag)
	return bestScore
}

// searchMoveWithPVS searches a non-first move with a null window, re-searching at
// full depth when a reduced search beats alpha and with the full window when the
// score lands inside it.
func (s *Searcher) searchMoveWithPVS(b *rules.Board, move rules.Move, depth, reduction int8, alpha, beta int32, ply int8, child *PVLine) int32 {
	score := -s.alphabeta(b, -alpha-1, -alpha, depth-reduction, ply+1, child, move, false)
	if score > alpha && reduction > 0 {
		score = -s.alphabeta(b, -alpha-1, -alpha, depth, ply+1, child, move, false)
	}
	if score > alpha && score < beta {
		score = -s.alphabeta(b, -beta, -alpha, depth, ply+1, child, move, false)
	}
	return score
}

func (s *Searcher) quiescence(b *rules.Board, alpha, beta int32, ply int8, pv *PVLine) int32 {
	s.nodes++
	if s.nodes&nodeCheckMask == 0 {
		s.poll()
	}
	if s.stopped {
		return 0
	}
	if ply >= MaxPly {
		return Evaluation(b)
	}

	side := b.SideToMove()
	inCheck := b.InCheck(side)
	standpat := Evaluation(b)

	// Stand-pat pruning (not when in check)
	if !inCheck {
		if standpat >= beta {
			s.cuts.QStandPatCutoffs++
			return standpat
		}
		if standpat > alpha {
			alpha = standpat
		}
	}

	bestScore := standpat
	var moves []rules.Move
	if inCheck {
		bestScore = -MaxScore + int32(ply)
		moves = b.GenerateMovesInto(s.moveBufs[ply])
		if len(moves) == 0 {
			s.moveBufs[ply] = moves
			return bestScore
		}
	} else {
		moves = b.GenerateCapturesInto(s.moveBufs[ply])
	}
	s.moveBufs[ply] = moves

	ml := &s.lists[ply]
	s.scoreMoves(ml, moves, side, ply, rules.NullMove, rules.NullMove)

	var child PVLine
	for index := range ml.moves {
		orderNextMove(index, ml)
		move := ml.moves[index].move

		if !inCheck {
			if see(b, move) < -QuiescenceSeeMargin {
				s.cuts.SEEPrunes++
				continue
			}
			// Delta pruning
			gain := int32(pieceValueMG[move.CapturedPiece().Type()])
			if promo := move.PromotionPieceType(); promo != rules.PieceTypeNone {
				gain += int32(pieceValueMG[promo] - pieceValueMG[rules.PieceTypePawn])
			}
			if standpat+gain+DeltaMargin < alpha {
				continue
			}
		}

		_, st := b.MakeMove(move)
		child.Clear()
		score := -s.quiescence(b, -beta, -alpha, ply+1, &child)
		b.UnmakeMove(move, st)
		if s.stopped {
			return 0
		}

		if score > bestScore {
			bestScore = score
		}
		if score >= beta {
			s.cuts.QBetaCutoffs++
			return score
		}
		if score > alpha {
			alpha = score
			pv.Update(move, child)
		}
	}
	return bestScore
}
