package rules

// Zobrist keys. Clocks are not hashed; positions differing only in counters share a key.
var (
	zobristPiece     [2][PieceTypeKing + 1][64]uint64
	zobristCastle    [16]uint64 // one key per castling-rights state
	zobristEnPassant [8]uint64  // by en-passant file
	zobristSide      uint64     // black to move
)

// keyStream is a splitmix64 generator. The keys only need to be well mixed and
// identical on every run.
type keyStream uint64

func (s *keyStream) next() uint64 {
	*s += 0x9E3779B97F4A7C15
	z := uint64(*s)
	z = (z ^ z>>30) * 0xBF58476D1CE4E5B9
	z = (z ^ z>>27) * 0x94D049BB133111EB
	return z ^ z>>31
}

func init() {
	ks := keyStream(0x5EED_C0FFEE)
	zobristSide = ks.next()
	for f := range zobristEnPassant {
		zobristEnPassant[f] = ks.next()
	}
	for cr := range zobristCastle {
		zobristCastle[cr] = ks.next()
	}
	for _, c := range [2]Color{White, Black} {
		for pt := PieceTypePawn; pt <= PieceTypeKing; pt++ {
			for sq := range zobristPiece[c][pt] {
				zobristPiece[c][pt][sq] = ks.next()
			}
		}
	}
}

// pieceKey is the key of piece p standing on sq.
func pieceKey(p Piece, sq Square) uint64 { return zobristPiece[p.Color()][p.Type()][sq] }

// ComputeZobrist recomputes the key from scratch.
func (b *Board) ComputeZobrist() uint64 {
	var key uint64
	for sq, p := range b.squares {
		if p != NoPiece {
			key ^= pieceKey(p, Square(sq))
		}
	}
	if b.sideToMove == Black {
		key ^= zobristSide
	}
	key ^= zobristCastle[b.castlingRights]
	if b.enPassantSquare != NoSquare {
		key ^= zobristEnPassant[b.enPassantSquare.File()]
	}
	return key
}
