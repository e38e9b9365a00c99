package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Move encodes a chess move in a 32-bit value.
type Move uint32

// Bitfield layout within Move (from LSB to MSB)
const (
	moveFromShift    = 0  // 6 bits
	moveToShift      = 6  // 6 bits
	movePieceShift   = 12 // 4 bits
	moveCaptureShift = 16 // 4 bits
	movePromoteShift = 20 // 4 bits
	moveFlagShift    = 24 // 2 bits
)

// Move flags. Promotion is indicated by a non-zero promotion piece.
const (
	FlagNone      = 0
	FlagCastle    = 1
	FlagEnPassant = 2
)

// NullMove is the zero move; it never matches a generated move.
const NullMove Move = 0

var ErrIllegalMove = errors.New("illegal move")

// NewMove constructs a Move value from components.
func NewMove(from, to Square, piece, captured, promotion Piece, flag uint8) Move {
	return Move(uint32(from&0x3F) |
		uint32(to&0x3F)<<moveToShift |
		uint32(piece&0xF)<<movePieceShift |
		uint32(captured&0xF)<<moveCaptureShift |
		uint32(promotion&0xF)<<movePromoteShift |
		uint32(flag&0x3)<<moveFlagShift)
}

func (m Move) From() Square          { return Square((uint32(m) >> moveFromShift) & 0x3F) }
func (m Move) To() Square            { return Square((uint32(m) >> moveToShift) & 0x3F) }
func (m Move) MovedPiece() Piece     { return Piece((uint32(m) >> movePieceShift) & 0xF) }
func (m Move) CapturedPiece() Piece  { return Piece((uint32(m) >> moveCaptureShift) & 0xF) }
func (m Move) PromotionPiece() Piece { return Piece((uint32(m) >> movePromoteShift) & 0xF) }
func (m Move) Flags() uint8          { return uint8((uint32(m) >> moveFlagShift) & 0x3) }

// PromotionPieceType returns the colorless promotion type (or PieceTypeNone).
func (m Move) PromotionPieceType() PieceType { return m.PromotionPiece().Type() }

// IsCapture reports captures including en passant.
func (m Move) IsCapture() bool { return m.CapturedPiece() != NoPiece }

// IsQuiet reports a move that neither captures nor promotes.
func (m Move) IsQuiet() bool { return !m.IsCapture() && m.PromotionPiece() == NoPiece }

// String returns long algebraic notation, e.g. "e2e4" or "e7e8q". The null move prints "0000".
func (m Move) String() string {
	if m == NullMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if pt := m.PromotionPieceType(); pt != PieceTypeNone {
		s += string(promotionLetter(pt))
	}
	return s
}

func promotionLetter(pt PieceType) byte {
	switch pt {
	case PieceTypeKnight:
		return 'n'
	case PieceTypeBishop:
		return 'b'
	case PieceTypeRook:
		return 'r'
	default:
		return 'q'
	}
}

// ParsePromotion maps a promotion letter in either case to a piece type.
// The empty string yields PieceTypeNone.
func ParsePromotion(s string) (PieceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PieceTypeNone, nil
	case "q":
		return PieceTypeQueen, nil
	case "r":
		return PieceTypeRook, nil
	case "b":
		return PieceTypeBishop, nil
	case "n":
		return PieceTypeKnight, nil
	}
	return PieceTypeNone, fmt.Errorf("invalid promotion piece %q", s)
}

// ParseUCI splits a long algebraic move ("e2e4", "e7e8q") into its parts.
func ParseUCI(s string) (from, to Square, promo PieceType, err error) {
	s = strings.TrimSpace(s)
	if len(s) < 4 || len(s) > 5 {
		return NoSquare, NoSquare, PieceTypeNone, fmt.Errorf("invalid move %q", s)
	}
	if from, err = ParseSquare(s[0:2]); err != nil {
		return NoSquare, NoSquare, PieceTypeNone, err
	}
	if to, err = ParseSquare(s[2:4]); err != nil {
		return NoSquare, NoSquare, PieceTypeNone, err
	}
	if promo, err = ParsePromotion(s[4:]); err != nil {
		return NoSquare, NoSquare, PieceTypeNone, err
	}
	return from, to, promo, nil
}

// FindMove returns the legal move matching from/to/promo. A missing promotion
// on a promoting move selects the queen.
func (b *Board) FindMove(from, to Square, promo PieceType) (Move, bool) {
	var buf [256]Move
	for _, m := range b.GenerateMovesInto(buf[:0]) {
		if m.From() != from || m.To() != to {
			continue
		}
		pt := m.PromotionPieceType()
		if pt == promo || (promo == PieceTypeNone && pt == PieceTypeQueen) {
			return m, true
		}
	}
	return NullMove, false
}

// ParseMove resolves a long algebraic string against the legal moves of b.
func (b *Board) ParseMove(s string) (Move, error) {
	from, to, promo, err := ParseUCI(s)
	if err != nil {
		return NullMove, err
	}
	m, ok := b.FindMove(from, to, promo)
	if !ok {
		return NullMove, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	return m, nil
}
