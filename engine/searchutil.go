package engine

import (
	"fmt"
	"strings"

	"chess-worker/rules"
)

// PVLine is a principal variation, best move first.
type PVLine struct {
	Moves []rules.Move
}

func (pv *PVLine) Clear() { pv.Moves = pv.Moves[:0] }

// Update replaces the line with m followed by the child's line.
func (pv *PVLine) Update(m rules.Move, child PVLine) {
	pv.Moves = append(pv.Moves[:0], m)
	pv.Moves = append(pv.Moves, child.Moves...)
}

func (pv PVLine) Clone() PVLine {
	return PVLine{Moves: append([]rules.Move(nil), pv.Moves...)}
}

// BestMove returns the first move of the line or NullMove.
func (pv PVLine) BestMove() rules.Move {
	if len(pv.Moves) == 0 {
		return rules.NullMove
	}
	return pv.Moves[0]
}

func (pv PVLine) String() string {
	parts := make([]string, len(pv.Moves))
	for i, m := range pv.Moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

// MateIn converts a score into signed moves to mate; 0 means no mate was found.
func MateIn(score int32) int {
	switch {
	case score > Checkmate:
		return int(MaxScore-score+1) / 2
	case score < -Checkmate:
		return -int(MaxScore+score+1) / 2
	}
	return 0
}

// FormatScore renders a score the UCI way, "cp 35" or "mate -3".
func FormatScore(score int32) string {
	if score > Checkmate || score < -Checkmate {
		return fmt.Sprintf("mate %d", MateIn(score))
	}
	return fmt.Sprintf("cp %d", score)
}

var lmrTable [MaxPly + 1][100]int8

func init() {
	for d := 1; d <= MaxPly; d++ {
		for m := 1; m < 100; m++ {
			r := 1 + d/8 + m/16 // gentle growth with depth & lateness
			if r > d-2 {
				r = d - 2
			}
			if r < 0 {
				r = 0
			}
			lmrTable[d][m] = int8(r)
		}
	}
}

var (
	LMRDepthLimit          int8 = 2
	LMRMoveLimit                = 3
	LMRHistoryScale             = 300
	LMRHistoryLowThreshold      = 0
	LMRLegalMovesLimit          = 10
)

// lmrReduction picks the reduction for a late quiet move. Killers and moves with a
// decent history record are reduced less.
func lmrReduction(depth int8, legalMoves int, isPV bool, historyScore int, killer bool) int8 {
	if depth < LMRDepthLimit || legalMoves < LMRMoveLimit {
		return 0
	}
	d := min(int(depth), MaxPly)
	m := min(legalMoves-1, len(lmrTable[d])-1)
	r := lmrTable[d][m]

	if isPV && r > 0 {
		r--
	}
	if killer && r > 0 {
		r--
	}
	if r > 0 && historyScore > 0 {
		r -= min(int8(historyScore/LMRHistoryScale), 2, r)
	}
	if historyScore <= LMRHistoryLowThreshold && legalMoves > LMRLegalMovesLimit {
		r++
	}
	if r > depth-1 {
		r = depth - 1
	}
	if r < 0 {
		r = 0
	}
	return r
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
