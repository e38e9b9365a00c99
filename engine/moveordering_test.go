package engine

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestMoveOrderingBands(t *testing.T) {
	s := NewSearcher(NewTransTable(0), zerolog.Nop())
	b := mustBoard(t, "4k3/8/8/3q4/4P3/8/8/R3K3 w - - 0 1")
	moves := b.GenerateMoves()
	ttMove := mustMove(t, b, "a1a8")
	killer := mustMove(t, b, "a1a2")
	s.insertKiller(killer, 0)

	var ml moveList
	s.scoreMoves(&ml, moves, b.SideToMove(), 0, ttMove, 0)
	for i := range ml.moves {
		orderNextMove(i, &ml)
	}
	if ml.moves[0].move != ttMove {
		t.Fatalf("first got %v want tt move %v", ml.moves[0].move, ttMove)
	}
	if got := ml.moves[1].move.String(); got != "e4d5" {
		t.Fatalf("second got %s want capture e4d5", got)
	}
	if ml.moves[2].move != killer {
		t.Fatalf("third got %v want killer %v", ml.moves[2].move, killer)
	}
	for i := 1; i < len(ml.moves); i++ {
		if ml.moves[i].score > ml.moves[i-1].score {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestHistoryAgesAtCap(t *testing.T) {
	s := NewSearcher(NewTransTable(0), zerolog.Nop())
	b := mustBoard(t, "4k3/8/8/8/8/8/8/R3K3 w - - 0 1")
	m := mustMove(t, b, "a1a5")
	for i := 0; i < 20; i++ {
		s.incrementHistory(b.SideToMove(), m, 10)
	}
	if h := s.history[b.SideToMove()][m.From()][m.To()]; h >= historyMaxVal {
		t.Fatalf("history %d not aged below %d", h, historyMaxVal)
	}
	s.decrementHistory(b.SideToMove(), m, 100)
	if h := s.history[b.SideToMove()][m.From()][m.To()]; h < 0 {
		t.Fatalf("history went negative: %d", h)
	}
}
