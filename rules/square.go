package rules

import "fmt"

// Square represents a board position (0-63), a1 = 0, h8 = 63.
type Square int

const NoSquare Square = -1

// NewSquare builds a square from zero-based file and rank.
func NewSquare(file, rank int) Square { return Square(rank*8 + file) }

func (sq Square) File() int   { return int(sq) & 7 }
func (sq Square) Rank() int   { return int(sq) >> 3 }
func (sq Square) Valid() bool { return sq >= 0 && sq < 64 }

// String returns the coordinate form ("e4"), or "-" for NoSquare.
func (sq Square) String() string {
	if !sq.Valid() {
		return "-"
	}
	return string([]byte{'a' + byte(sq.File()), '1' + byte(sq.Rank())})
}

// ParseSquare converts "a1".."h8" into a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return NoSquare, fmt.Errorf("square %q out of range", s)
	}
	return NewSquare(int(file-'a'), int(rank-'1')), nil
}
