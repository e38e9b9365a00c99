package rules_test

import (
	"errors"
	"testing"

	"chess-worker/rules"
)

func sq(t *testing.T, s string) rules.Square {
	t.Helper()
	v, err := rules.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return v
}

func mustParse(t *testing.T, fen string) rules.Position {
	t.Helper()
	pos, err := rules.ParsePosition(fen)
	if err != nil {
		t.Fatalf("ParsePosition(%q): %v", fen, err)
	}
	return pos
}

func TestApplyCases(t *testing.T) {
	cases := []struct {
		name     string
		fen      string
		from, to string
		promo    rules.PieceType
		want     string
	}{
		{"white king side castle", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "e1", "g1", rules.PieceTypeNone,
			"r3k2r/8/8/8/8/8/8/R4RK1 b kq - 1 1"},
		{"white queen side castle", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "e1", "c1", rules.PieceTypeNone,
			"r3k2r/8/8/8/8/8/8/2KR3R b kq - 1 1"},
		{"black queen side castle", "r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1", "e8", "c8", rules.PieceTypeNone,
			"2kr3r/8/8/8/8/8/8/R3K2R w KQ - 1 2"},
		{"rook capture clears both rights", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "a1", "a8", rules.PieceTypeNone,
			"R3k2r/8/8/8/8/8/8/4K2R b Kk - 0 1"},
		{"king step clears rights", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 5 1", "e1", "f1", rules.PieceTypeNone,
			"r3k2r/8/8/8/8/8/8/R4K1R b kq - 6 1"},
		{"en passant removes pawn behind", "k7/8/8/3pP3/8/8/8/7K w - d6 0 2", "e5", "d6", rules.PieceTypeNone,
			"k7/8/3P4/8/8/8/8/7K b - - 0 2"},
		{"promotion defaults to queen", "1n5k/P7/8/8/8/8/8/7K w - - 0 1", "a7", "a8", rules.PieceTypeNone,
			"Qn5k/8/8/8/8/8/8/7K b - - 0 1"},
		{"under promotion", "1n5k/P7/8/8/8/8/8/7K w - - 0 1", "a7", "a8", rules.PieceTypeKnight,
			"Nn5k/8/8/8/8/8/8/7K b - - 0 1"},
		{"capture promotion", "1n5k/P7/8/8/8/8/8/7K w - - 0 1", "a7", "b8", rules.PieceTypeRook,
			"1R5k/8/8/8/8/8/8/7K b - - 0 1"},
		{"black promotion", "7k/8/8/8/8/8/p7/7K b - - 0 1", "a2", "a1", rules.PieceTypeNone,
			"7k/8/8/8/8/8/8/q6K w - - 0 2"},
		{"double push sets target", rules.FENStartPos, "e2", "e4", rules.PieceTypeNone,
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"},
		{"empty origin is a no-op", rules.FENStartPos, "e4", "e5", rules.PieceTypeNone,
			rules.FENStartPos},
	}
	for _, tc := range cases {
		pos := mustParse(t, tc.fen)
		got := pos.Apply(sq(t, tc.from), sq(t, tc.to), tc.promo)
		if got.FEN() != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got.FEN(), tc.want)
		}
		if pos.FEN() != tc.fen {
			t.Fatalf("%s: input mutated to %q", tc.name, pos.FEN())
		}
		if !got.Board().Validate() {
			t.Fatalf("%s: result board inconsistent", tc.name)
		}
	}
}

func TestApplyMatchesGeneratedMoves(t *testing.T) {
	pos := mustParse(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	for _, m := range pos.LegalMoves() {
		viaApply := pos.Apply(m.From(), m.To(), m.PromotionPieceType())
		viaMove := pos.ApplyMove(m)
		if viaApply.FEN() != viaMove.FEN() || viaApply.Key() != viaMove.Key() {
			t.Fatalf("%s: Apply %q vs ApplyMove %q", m, viaApply.FEN(), viaMove.FEN())
		}
		if viaApply.SideToMove() == pos.SideToMove() {
			t.Fatalf("%s: side to move unchanged", m)
		}
		if pc := viaApply.PieceAt(m.From()); pc != rules.NoPiece {
			t.Fatalf("%s: origin still holds %v", m, pc)
		}
	}
}

func TestEnPassantTargetLastsOnePly(t *testing.T) {
	pos := rules.StartPosition()
	pos = pos.Apply(sq(t, "e2"), sq(t, "e4"), rules.PieceTypeNone)
	if pos.EnPassant() != sq(t, "e3") {
		t.Fatalf("target after e2e4: got %v want e3", pos.EnPassant())
	}
	pos = pos.Apply(sq(t, "g8"), sq(t, "f6"), rules.PieceTypeNone)
	if pos.EnPassant() != rules.NoSquare {
		t.Fatalf("target not cleared: %v", pos.EnPassant())
	}

	pos = mustParse(t, "k7/8/8/3pP3/8/8/8/7K w - d6 0 2")
	pos = pos.Apply(sq(t, "h1"), sq(t, "g1"), rules.PieceTypeNone)
	if pos.EnPassant() != rules.NoSquare {
		t.Fatalf("unused target not cleared: %v", pos.EnPassant())
	}
}

func TestClocks(t *testing.T) {
	pos := rules.StartPosition()
	steps := []struct {
		from, to       string
		half, fullmove int
	}{
		{"g1", "f3", 1, 1},
		{"g8", "f6", 2, 2},
		{"b1", "c3", 3, 2},
		{"e7", "e5", 0, 3},
		{"f3", "e5", 0, 3},
	}
	for _, s := range steps {
		pos = pos.Apply(sq(t, s.from), sq(t, s.to), rules.PieceTypeNone)
		if pos.HalfmoveClock() != s.half || pos.FullmoveNumber() != s.fullmove {
			t.Fatalf("after %s%s: clocks %d/%d want %d/%d", s.from, s.to,
				pos.HalfmoveClock(), pos.FullmoveNumber(), s.half, s.fullmove)
		}
	}
}

func TestFiftyMoveBoundary(t *testing.T) {
	pos := mustParse(t, "8/8/8/8/8/8/8/K6k w - - 99 80")
	if pos.IsDrawBy50() {
		t.Fatalf("halfmove 99 reported as draw")
	}
	pos = pos.Apply(sq(t, "a1"), sq(t, "a2"), rules.PieceTypeNone)
	if pos.HalfmoveClock() != 100 || !pos.IsDrawBy50() {
		t.Fatalf("halfmove %d draw=%v want 100/true", pos.HalfmoveClock(), pos.IsDrawBy50())
	}
}

func TestApplyUCIRejectsIllegal(t *testing.T) {
	pos := rules.StartPosition()
	if _, err := pos.ApplyUCI("e2e5"); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("e2e5: got %v want ErrIllegalMove", err)
	}
	next, err := pos.ApplyUCI("e2e4")
	if err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if next.PieceAt(sq(t, "e4")) != rules.WhitePawn {
		t.Fatalf("pawn not on e4")
	}
	promo := mustParse(t, "1n5k/P7/8/8/8/8/8/7K w - - 0 1")
	for _, s := range []string{"a7b8N", "a7b8n"} {
		got, err := promo.ApplyUCI(s)
		if err != nil || got.PieceAt(sq(t, "b8")) != rules.WhiteKnight {
			t.Fatalf("%s: got %v err %v", s, got.PieceAt(sq(t, "b8")), err)
		}
	}
}

func TestApplyUCISequence(t *testing.T) {
	pos, err := rules.StartPosition().ApplyUCISequence([]string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"})
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	want := "r1bqkbnr/pppp1ppp/2n5/1B2p3/4P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3"
	if pos.FEN() != want {
		t.Fatalf("got %q want %q", pos.FEN(), want)
	}
	if _, err := rules.StartPosition().ApplyUCISequence([]string{"e2e4", "e2e4"}); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("bad sequence: got %v", err)
	}
}
