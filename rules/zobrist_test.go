package rules

import "testing"

func TestZobristKeysDistinct(t *testing.T) {
	seen := map[uint64]string{zobristSide: "side"}
	add := func(k uint64, name string) {
		if k == 0 {
			t.Fatalf("%s: zero key", name)
		}
		if prev, ok := seen[k]; ok {
			t.Fatalf("%s shares a key with %s", name, prev)
		}
		seen[k] = name
	}
	for f, k := range zobristEnPassant {
		add(k, "en passant "+string(rune('a'+f)))
	}
	for cr, k := range zobristCastle {
		add(k, "castling "+CastlingRights(cr).String())
	}
	for _, c := range [2]Color{White, Black} {
		for pt := PieceTypePawn; pt <= PieceTypeKing; pt++ {
			p := MakePiece(c, pt)
			for sq := Square(0); sq < 64; sq++ {
				add(pieceKey(p, sq), string(charFromPiece(p))+sq.String())
			}
		}
	}
}

func TestZobristMatchesAfterSetPiece(t *testing.T) {
	b, err := ParseFEN(FENStartPos)
	if err != nil {
		t.Fatal(err)
	}
	b.SetPiece(NewSquare(4, 3), BlackQueen)
	b.SetPiece(NewSquare(3, 0), NoPiece)
	if b.Hash() != b.ComputeZobrist() {
		t.Fatalf("incremental key got %x want %x", b.Hash(), b.ComputeZobrist())
	}
}
