package engine

import "chess-worker/rules"

type move struct {
	move  rules.Move
	score uint16
}

type moveList struct {
	moves []move
}

// Most Valuable Victim - Least Valuable Aggressor; used to score & sort captures
var mvvLva = [7][7]uint16{
	{0, 0, 0, 0, 0, 0, 0},
	{0, 14, 13, 12, 11, 10, 0}, // victim Pawn
	{0, 24, 23, 22, 21, 20, 0}, // victim Knight
	{0, 34, 33, 32, 31, 30, 0}, // victim Bishop
	{0, 44, 43, 42, 41, 40, 0}, // victim Rook
	{0, 54, 53, 52, 51, 50, 0}, // victim Queen
	{0, 0, 0, 0, 0, 0, 0},      // victim King
}

// Ordering bands; quiet heuristics always stay below captures.
const (
	pvOffset        uint16 = 25000
	promotionOffset uint16 = 20000
	captureOffset   uint16 = 15000
	killerOffset    uint16 = 2000
	counterOffset   uint16 = 1000
)

// scoreMoves fills ml for the node at ply. ttMove is searched first.
func (s *Searcher) scoreMoves(ml *moveList, moves []rules.Move, side rules.Color, ply int8, ttMove, prevMove rules.Move) {
	ml.moves = ml.moves[:0]
	for _, m := range moves {
		var score uint16
		switch {
		case m == ttMove:
			score = pvOffset
		case m.PromotionPiece() != rules.NoPiece:
			score = promotionOffset + uint16(pieceValueEG[m.PromotionPieceType()]/10)
		case m.IsCapture():
			score = captureOffset + mvvLva[m.CapturedPiece().Type()][m.MovedPiece().Type()]
		case s.killers[ply][0] == m:
			score = killerOffset + 200
		case s.killers[ply][1] == m:
			score = killerOffset
		default:
			h := s.history[side][m.From()][m.To()]
			if h > historyMaxVal {
				h = historyMaxVal
			}
			score = uint16(h)
			if prevMove != rules.NullMove && s.counter[side][prevMove.From()][prevMove.To()] == m {
				score += counterOffset
			}
		}
		ml.moves = append(ml.moves, move{move: m, score: score})
	}
}

// orderNextMove selects the best remaining move into currIndex.
func orderNextMove(currIndex int, ml *moveList) {
	best := currIndex
	bestScore := ml.moves[best].score
	for i := currIndex + 1; i < len(ml.moves); i++ {
		if ml.moves[i].score > bestScore {
			best = i
			bestScore = ml.moves[i].score
		}
	}
	ml.moves[currIndex], ml.moves[best] = ml.moves[best], ml.moves[currIndex]
}
