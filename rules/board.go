package rules

import "math/bits"

// Piece constants and types for pieces and colors
type Piece uint8

const (
	NoPiece     Piece = 0
	WhitePawn   Piece = 1
	WhiteKnight Piece = 2
	WhiteBishop Piece = 3
	WhiteRook   Piece = 4
	WhiteQueen  Piece = 5
	WhiteKing   Piece = 6

	// Black pieces are the white code with bit 3 set, so p&7 is always the type.
	BlackPawn   Piece = 1 | 8
	BlackKnight Piece = 2 | 8
	BlackBishop Piece = 3 | 8
	BlackRook   Piece = 4 | 8
	BlackQueen  Piece = 5 | 8
	BlackKing   Piece = 6 | 8
)

// PieceType is a colorless representation of a chess piece used for table lookups.
type PieceType uint8

const (
	PieceTypeNone   PieceType = 0
	PieceTypePawn   PieceType = 1
	PieceTypeKnight PieceType = 2
	PieceTypeBishop PieceType = 3
	PieceTypeRook   PieceType = 4
	PieceTypeQueen  PieceType = 5
	PieceTypeKing   PieceType = 6
)

// Type returns the colorless type of the piece.
func (p Piece) Type() PieceType { return PieceType(p & 7) }

// Color returns the side that owns the piece. NoPiece reports White.
func (p Piece) Color() Color {
	if p&8 != 0 {
		return Black
	}
	return White
}

// MakePiece combines a side and a colorless type.
func MakePiece(c Color, pt PieceType) Piece {
	if pt == PieceTypeNone || pt > PieceTypeKing {
		return NoPiece
	}
	p := Piece(pt)
	if c == Black {
		p |= 8
	}
	return p
}

type Color uint8

const (
	White Color = 0
	Black Color = 1
)

// Other returns the opposing side.
func (c Color) Other() Color { return c ^ 1 }

func (c Color) String() string {
	if c == Black {
		return "b"
	}
	return "w"
}

// Castling rights bit flags
type CastlingRights uint8

const (
	CastlingWhiteK CastlingRights = 1 << iota
	CastlingWhiteQ
	CastlingBlackK
	CastlingBlackQ

	CastlingNone CastlingRights = 0
	CastlingAll                 = CastlingWhiteK | CastlingWhiteQ | CastlingBlackK | CastlingBlackQ
)

func (cr CastlingRights) String() string {
	if cr == CastlingNone {
		return "-"
	}
	out := make([]byte, 0, 4)
	for i, ch := range "KQkq" {
		if cr&(1<<uint(i)) != 0 {
			out = append(out, byte(ch))
		}
	}
	return string(out)
}

// Board is the mutable bitboard representation used by the generator, perft and search.
// It holds only arrays, so a plain value copy is a deep copy.
type Board struct {
	// per side, per PieceType; index 0 unused
	pieceBB   [2][7]uint64
	occupancy [2]uint64
	squares   [64]Piece

	sideToMove      Color
	castlingRights  CastlingRights
	enPassantSquare Square
	halfmoveClock   int
	fullmoveNumber  int

	zobristKey uint64
}

// HasLegalMoves reports whether the side to move has any legal moves.
func (b *Board) HasLegalMoves() bool {
	var buf [64]Move
	return len(b.GenerateMovesInto(buf[:0])) > 0
}

// InCheckmate reports whether the side to move is checkmated.
func (b *Board) InCheckmate() bool {
	return b.InCheck(b.sideToMove) && !b.HasLegalMoves()
}

// InStalemate reports whether the side to move is stalemated.
func (b *Board) InStalemate() bool {
	return !b.InCheck(b.sideToMove) && !b.HasLegalMoves()
}

// IsDrawBy50 reports a 50-move rule draw (halfmoveClock counts half-moves).
func (b *Board) IsDrawBy50() bool {
	return b.halfmoveClock >= 100
}

func (b *Board) HalfmoveClock() int             { return b.halfmoveClock }
func (b *Board) FullmoveNumber() int            { return b.fullmoveNumber }
func (b *Board) EnPassantSquare() Square        { return b.enPassantSquare }
func (b *Board) SideToMove() Color              { return b.sideToMove }
func (b *Board) CastlingRights() CastlingRights { return b.castlingRights }

// Hash returns the current Zobrist key.
func (b *Board) Hash() uint64 { return b.zobristKey }

// PieceAt returns the piece on a square.
func (b *Board) PieceAt(sq Square) Piece { return b.squares[int(sq)] }

// Pieces returns the bitboard of the given side's pieces of one type.
func (b *Board) Pieces(c Color, pt PieceType) uint64 { return b.pieceBB[c][pt] }

// AllOccupancy returns a bitboard of all occupied squares.
func (b *Board) AllOccupancy() uint64 { return b.occupancy[White] | b.occupancy[Black] }

// ColorOccupancy returns the occupancy bitboard for the given color.
func (b *Board) ColorOccupancy(c Color) uint64 { return b.occupancy[c] }

// KingSquare returns the king square of the given side, or NoSquare.
func (b *Board) KingSquare(c Color) Square {
	k := b.pieceBB[c][PieceTypeKing]
	if k == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(k))
}

// IsDrawByRepetition reports a threefold repetition of the current position in history.
// A trailing history entry equal to the current key is not double counted.
func (b *Board) IsDrawByRepetition(history []uint64) bool {
	target := b.zobristKey
	end := len(history)
	if end > 0 && history[end-1] == target {
		end--
	}
	matches := 0
	for i := 0; i < end; i++ {
		if history[i] == target {
			matches++
			if matches >= 2 {
				return true
			}
		}
	}
	return false
}

// PushMove makes a legal move and records it on the undo stack and in history.
// On an illegal move nothing changes and false is returned.
func (b *Board) PushMove(m Move, stack *[]MoveState, history *[]uint64) bool {
	ok, st := b.MakeMove(m)
	if !ok {
		return false
	}
	*stack = append(*stack, st)
	*history = append(*history, b.zobristKey)
	return true
}

// PopMove undoes the last PushMove. It panics on an empty stack.
func (b *Board) PopMove(stack *[]MoveState, history *[]uint64) {
	n := len(*stack)
	if n == 0 {
		panic("rules: PopMove on empty stack")
	}
	st := (*stack)[n-1]
	*stack = (*stack)[:n-1]
	b.UnmakeMove(st.move, st)
	if len(*history) > 0 {
		*history = (*history)[:len(*history)-1]
	}
}

func bb(sq Square) uint64 { return 1 << uint64(sq) }

func popLSB(mask *uint64) int {
	idx := bits.TrailingZeros64(*mask)
	*mask &= *mask - 1
	return idx
}

// addPiece places a piece on an empty square and keeps bitboards and hash in sync.
func (b *Board) addPiece(sq Square, p Piece) {
	if p == NoPiece {
		return
	}
	c := p.Color()
	b.squares[sq] = p
	b.occupancy[c] |= bb(sq)
	b.pieceBB[c][p.Type()] |= bb(sq)
	b.zobristKey ^= pieceKey(p, sq)
}

// removePiece clears a square and returns what was on it.
func (b *Board) removePiece(sq Square) Piece {
	p := b.squares[sq]
	if p == NoPiece {
		return NoPiece
	}
	c := p.Color()
	b.squares[sq] = NoPiece
	b.occupancy[c] &^= bb(sq)
	b.pieceBB[c][p.Type()] &^= bb(sq)
	b.zobristKey ^= pieceKey(p, sq)
	return p
}

// SetPiece replaces whatever is on sq.
func (b *Board) SetPiece(sq Square, p Piece) {
	b.removePiece(sq)
	b.addPiece(sq, p)
}

func (b *Board) setCastling(cr CastlingRights) {
	if cr == b.castlingRights {
		return
	}
	b.zobristKey ^= zobristCastle[b.castlingRights] ^ zobristCastle[cr]
	b.castlingRights = cr
}

func (b *Board) setEnPassant(sq Square) {
	if b.enPassantSquare != NoSquare {
		b.zobristKey ^= zobristEnPassant[b.enPassantSquare.File()]
	}
	b.enPassantSquare = sq
	if sq != NoSquare {
		b.zobristKey ^= zobristEnPassant[sq.File()]
	}
}

// Validate checks that squares, bitboards, occupancy and the hash agree.
func (b *Board) Validate() bool {
	var pieceBB [2][7]uint64
	var occ [2]uint64
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		if p == NoPiece {
			continue
		}
		if p.Type() == PieceTypeNone || p.Type() > PieceTypeKing {
			return false
		}
		occ[p.Color()] |= bb(sq)
		pieceBB[p.Color()][p.Type()] |= bb(sq)
	}
	if occ != b.occupancy || pieceBB != b.pieceBB {
		return false
	}
	return b.zobristKey == b.ComputeZobrist()
}
