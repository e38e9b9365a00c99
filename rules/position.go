package rules

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Position is an immutable game state. Every transform returns a new value; the
// receiver is never modified.
type Position struct {
	b Board
}

// ParsePosition parses a FEN string.
func ParsePosition(fen string) (Position, error) {
	b, err := ParseFEN(fen)
	if err != nil {
		return Position{}, err
	}
	return Position{b: *b}, nil
}

// StartPosition returns the standard initial position.
func StartPosition() Position {
	p, err := ParsePosition(FENStartPos)
	if err != nil {
		panic(err)
	}
	return p
}

// PositionOf snapshots a board.
func PositionOf(b *Board) Position { return Position{b: *b} }

// Board returns a mutable copy of the underlying board.
func (p Position) Board() *Board {
	b := p.b
	return &b
}

func (p Position) FEN() string         { return p.b.ToFEN() }
func (p Position) String() string      { return p.b.ToFEN() }
func (p Position) PositionKey() string { return p.b.PositionKey() }

// Key is the Zobrist key of placement, side, castling and en-passant file.
func (p Position) Key() uint64 { return p.b.zobristKey }

func (p Position) SideToMove() Color        { return p.b.sideToMove }
func (p Position) Castling() CastlingRights { return p.b.castlingRights }
func (p Position) EnPassant() Square        { return p.b.enPassantSquare }
func (p Position) HalfmoveClock() int       { return p.b.halfmoveClock }
func (p Position) FullmoveNumber() int      { return p.b.fullmoveNumber }
func (p Position) PieceAt(sq Square) Piece  { return p.b.squares[sq] }

func (p Position) InCheck() bool     { return p.b.InCheck(p.b.sideToMove) }
func (p Position) IsCheckmate() bool { return p.b.InCheckmate() }
func (p Position) IsStalemate() bool { return p.b.InStalemate() }

// IsDrawBy50 reports a halfmove clock of at least 100.
func (p Position) IsDrawBy50() bool { return p.b.IsDrawBy50() }

// LegalMoves returns every legal move, with promotions expanded to all four pieces.
func (p Position) LegalMoves() []Move {
	b := p.b
	return b.GenerateMoves()
}

// LegalDestinations returns the sorted destinations reachable from origin. An origin
// without a piece of the side to move yields an empty result.
func (p Position) LegalDestinations(origin Square) []Square {
	if !origin.Valid() {
		return nil
	}
	pc := p.b.squares[origin]
	if pc == NoPiece || pc.Color() != p.b.sideToMove {
		return nil
	}
	var out []Square
	for _, m := range p.LegalMoves() {
		if m.From() == origin {
			out = append(out, m.To())
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Apply moves the piece on from to to without checking legality. Castling and
// en passant are recognised from the board: a king leaving its home square by two
// files with its rook in the corner castles, and a pawn moving diagonally onto the
// empty en-passant square captures the pawn behind it. A pawn reaching the last rank
// promotes to promo, or to a queen when promo is PieceTypeNone. An empty origin,
// or from == to, returns p unchanged.
func (p Position) Apply(from, to Square, promo PieceType) Position {
	m := p.inferMove(from, to, promo)
	if m == NullMove {
		return p
	}
	next := p
	next.b.play(m)
	return next
}

// ApplyMove plays a move produced by LegalMoves or the search.
func (p Position) ApplyMove(m Move) Position {
	next := p
	next.b.play(m)
	return next
}

// ApplyUCI plays a long algebraic move, which must be legal.
func (p Position) ApplyUCI(s string) (Position, error) {
	b := p.b
	m, err := b.ParseMove(s)
	if err != nil {
		return p, err
	}
	return p.ApplyMove(m), nil
}

// ApplyUCISequence plays space-separated moves in order.
func (p Position) ApplyUCISequence(moves []string) (Position, error) {
	cur := p
	for i, s := range moves {
		next, err := cur.ApplyUCI(s)
		if err != nil {
			return p, fmt.Errorf("move %d: %w", i+1, err)
		}
		cur = next
	}
	return cur, nil
}

func (p Position) inferMove(from, to Square, promo PieceType) Move {
	if !from.Valid() || !to.Valid() || from == to {
		return NullMove
	}
	b := &p.b
	pc := b.squares[from]
	if pc == NoPiece {
		return NullMove
	}
	c := pc.Color()
	captured := b.squares[to]
	flag := uint8(FlagNone)
	promoPiece := NoPiece

	switch pc.Type() {
	case PieceTypeKing:
		home := castleSpecs[c][0].king
		if from == home && to.Rank() == from.Rank() && (to-from == 2 || from-to == 2) {
			if rf, _, ok := castleRook(c, to); ok && b.squares[rf] == MakePiece(c, PieceTypeRook) {
				flag = FlagCastle
			}
		}
	case PieceTypePawn:
		if to == b.enPassantSquare && to.File() != from.File() && captured == NoPiece {
			flag = FlagEnPassant
			captured = MakePiece(c.Other(), PieceTypePawn)
		}
		if lastRank := 7 * (1 - int(c)); to.Rank() == lastRank {
			if promo == PieceTypeNone || promo == PieceTypePawn || promo == PieceTypeKing {
				promo = PieceTypeQueen
			}
			promoPiece = MakePiece(c, promo)
		}
	}
	return NewMove(from, to, pc, captured, promoPiece, flag)
}
