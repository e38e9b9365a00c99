package rules

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// FENStartPos is the FEN string for the standard initial chess position.
const FENStartPos = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN wraps every board-state parse failure.
var ErrInvalidFEN = errors.New("invalid FEN")

const pieceLetters = " PNBRQK  pnbrqk"

func pieceFromChar(ch byte) Piece {
	if i := strings.IndexByte(pieceLetters, ch); i > 0 {
		return Piece(i)
	}
	return NoPiece
}

func charFromPiece(p Piece) byte {
	if p == NoPiece || int(p) >= len(pieceLetters) {
		return '?'
	}
	return pieceLetters[p]
}

func fenError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFEN, fmt.Sprintf(format, args...))
}

// ParseFEN parses a FEN string into a new Board. Missing clock fields default
// to 0 and 1. On error no board is returned.
func ParseFEN(fen string) (*Board, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fenError("expected 4 to 6 fields, got %d", len(fields))
	}

	b := &Board{enPassantSquare: NoSquare, fullmoveNumber: 1}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, fenError("expected 8 ranks, got %d", len(ranks))
	}
	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(rankStr); j++ {
			ch := rankStr[j]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				if file > 8 {
					return nil, fenError("rank %d overflows", rank+1)
				}
				continue
			}
			p := pieceFromChar(ch)
			if p == NoPiece {
				return nil, fenError("unknown piece %q", ch)
			}
			if file >= 8 {
				return nil, fenError("rank %d overflows", rank+1)
			}
			if p.Type() == PieceTypePawn && (rank == 0 || rank == 7) {
				return nil, fenError("pawn on rank %d", rank+1)
			}
			b.addPiece(NewSquare(file, rank), p)
			file++
		}
		if file != 8 {
			return nil, fenError("rank %d has %d files", rank+1, file)
		}
	}
	for _, c := range [2]Color{White, Black} {
		if n := bits.OnesCount64(b.pieceBB[c][PieceTypeKing]); n != 1 {
			return nil, fenError("side %s has %d kings", c, n)
		}
	}

	switch fields[1] {
	case "w":
		b.sideToMove = White
	case "b":
		b.sideToMove = Black
	default:
		return nil, fenError("side to move %q", fields[1])
	}

	var cr CastlingRights
	if fields[2] != "-" {
		for j := 0; j < len(fields[2]); j++ {
			i := strings.IndexByte("KQkq", fields[2][j])
			if i < 0 {
				return nil, fenError("castling rights %q", fields[2])
			}
			cr |= 1 << uint(i)
		}
	}
	b.castlingRights = cr

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return nil, fenError("en passant: %v", err)
		}
		if sq.Rank() != 2 && sq.Rank() != 5 {
			return nil, fenError("en passant square %s not on rank 3 or 6", sq)
		}
		b.enPassantSquare = sq
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, fenError("halfmove clock %q", fields[4])
		}
		b.halfmoveClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 0 {
			return nil, fenError("fullmove number %q", fields[5])
		}
		b.fullmoveNumber = n
	}

	b.zobristKey = b.ComputeZobrist()
	return b, nil
}

// ToFEN serializes the board. Castling letters are always written in KQkq order.
func (b *Board) ToFEN() string {
	var sb strings.Builder
	sb.Grow(90)
	b.writePlacement(&sb)
	sb.WriteByte(' ')
	sb.WriteString(b.sideToMove.String())
	sb.WriteByte(' ')
	sb.WriteString(b.castlingRights.String())
	sb.WriteByte(' ')
	sb.WriteString(b.enPassantSquare.String())
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(b.halfmoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(b.fullmoveNumber))
	return sb.String()
}

// PositionKey is the first four FEN fields: placement, side, castling, en passant.
func (b *Board) PositionKey() string {
	var sb strings.Builder
	sb.Grow(80)
	b.writePlacement(&sb)
	sb.WriteByte(' ')
	sb.WriteString(b.sideToMove.String())
	sb.WriteByte(' ')
	sb.WriteString(b.castlingRights.String())
	sb.WriteByte(' ')
	sb.WriteString(b.enPassantSquare.String())
	return sb.String()
}

func (b *Board) writePlacement(sb *strings.Builder) {
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := b.squares[rank*8+file]
			if p == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte('0' + byte(empty))
				empty = 0
			}
			sb.WriteByte(charFromPiece(p))
		}
		if empty > 0 {
			sb.WriteByte('0' + byte(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
}

// NormalizeKey reduces a FEN (four or more fields) to its first four fields,
// re-serialized canonically. It is used to key books and caches by position.
func NormalizeKey(fen string) (string, error) {
	b, err := ParseFEN(fen)
	if err != nil {
		return "", err
	}
	return b.PositionKey(), nil
}
