package rules

import "math/bits"

// Precomputed attack masks for knights and kings from each square.
var knightMoves [64]uint64
var kingMoves [64]uint64

// pawnAttacks[color][sq] is the set of squares a pawn of color attacks from sq.
var pawnAttacks [2][64]uint64

// Slider rays per square and direction, origin excluded.
// Rook directions: 0=N, 1=S, 2=E, 3=W
// Bishop directions: 0=NE, 1=NW, 2=SE, 3=SW
var rookRays [64][4]uint64
var bishopRays [64][4]uint64

var rookSteps = [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
var bishopSteps = [4][2]int{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}

// Whether a ray walks toward higher square indexes; decides which end is the nearest blocker.
var rookForward = [4]bool{true, false, true, false}
var bishopForward = [4]bool{true, true, false, false}

// segment[a][b] holds the squares from a (exclusive) to b (inclusive) when a and b
// share a rank, file or diagonal; otherwise 0.
var segment [64][64]uint64

// Occupancy masks and lookup tables for slider attacks, indexed with software pext.
var rookMask [64]uint64
var bishopMask [64]uint64
var rookAttTable [64][]uint64
var bishopAttTable [64][]uint64

func init() {
	initLeaperTables()
	initRays()
	initSliderTables()
}

func leaperMask(sq int, offsets [8][2]int) uint64 {
	var mask uint64
	file, rank := sq%8, sq/8
	for _, off := range offsets {
		f, r := file+off[0], rank+off[1]
		if f >= 0 && f < 8 && r >= 0 && r < 8 {
			mask |= 1 << uint(r*8+f)
		}
	}
	return mask
}

func initLeaperTables() {
	knightOffsets := [8][2]int{{1, 2}, {-1, 2}, {1, -2}, {-1, -2}, {2, 1}, {-2, 1}, {2, -1}, {-2, -1}}
	kingOffsets := [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
	for sq := 0; sq < 64; sq++ {
		knightMoves[sq] = leaperMask(sq, knightOffsets)
		kingMoves[sq] = leaperMask(sq, kingOffsets)

		file, rank := sq%8, sq/8
		if rank < 7 {
			if file > 0 {
				pawnAttacks[White][sq] |= 1 << uint(sq+7)
			}
			if file < 7 {
				pawnAttacks[White][sq] |= 1 << uint(sq+9)
			}
		}
		if rank > 0 {
			if file > 0 {
				pawnAttacks[Black][sq] |= 1 << uint(sq-9)
			}
			if file < 7 {
				pawnAttacks[Black][sq] |= 1 << uint(sq-7)
			}
		}
	}
}

func walkRay(sq int, step [2]int) uint64 {
	var ray uint64
	f, r := sq%8+step[0], sq/8+step[1]
	for f >= 0 && f < 8 && r >= 0 && r < 8 {
		ray |= 1 << uint(r*8+f)
		f += step[0]
		r += step[1]
	}
	return ray
}

func initRays() {
	for sq := 0; sq < 64; sq++ {
		for d := 0; d < 4; d++ {
			rookRays[sq][d] = walkRay(sq, rookSteps[d])
			bishopRays[sq][d] = walkRay(sq, bishopSteps[d])
		}
	}
	for a := 0; a < 64; a++ {
		for d := 0; d < 4; d++ {
			for ray := rookRays[a][d]; ray != 0; {
				b := popLSB(&ray)
				segment[a][b] = rookRays[a][d] &^ rookRays[b][d]
			}
			for ray := bishopRays[a][d]; ray != 0; {
				b := popLSB(&ray)
				segment[a][b] = bishopRays[a][d] &^ bishopRays[b][d]
			}
		}
	}
}

// trimRayEnd drops the far edge square of a ray; edge occupancy never changes the attack set.
func trimRayEnd(ray uint64, forward bool) uint64 {
	if ray == 0 {
		return 0
	}
	if forward {
		return ray &^ (1 << uint(63-bits.LeadingZeros64(ray)))
	}
	return ray &^ (ray & -ray)
}

func initSliderTables() {
	for sq := 0; sq < 64; sq++ {
		var rm, bm uint64
		for d := 0; d < 4; d++ {
			rm |= trimRayEnd(rookRays[sq][d], rookForward[d])
			bm |= trimRayEnd(bishopRays[sq][d], bishopForward[d])
		}
		rookMask[sq], bishopMask[sq] = rm, bm

		rookAttTable[sq] = make([]uint64, 1<<bits.OnesCount64(rm))
		for idx := range rookAttTable[sq] {
			rookAttTable[sq][idx] = slide(&rookRays, &rookForward, sq, pdep(uint64(idx), rm))
		}
		bishopAttTable[sq] = make([]uint64, 1<<bits.OnesCount64(bm))
		for idx := range bishopAttTable[sq] {
			bishopAttTable[sq][idx] = slide(&bishopRays, &bishopForward, sq, pdep(uint64(idx), bm))
		}
	}
}

func nearest(blockers uint64, forward bool) int {
	if forward {
		return bits.TrailingZeros64(blockers)
	}
	return 63 - bits.LeadingZeros64(blockers)
}

// slide computes slider attacks by cutting each ray at its first blocker.
func slide(rays *[64][4]uint64, forward *[4]bool, sq int, occ uint64) uint64 {
	var attacks uint64
	for d := 0; d < 4; d++ {
		ray := rays[sq][d]
		if blockers := ray & occ; blockers != 0 {
			ray &^= rays[nearest(blockers, forward[d])][d]
		}
		attacks |= ray
	}
	return attacks
}

// software pext: extract bits of x at positions where mask has 1s, packed into low bits
func pext(x, mask uint64) uint64 {
	var res uint64
	for idx := uint(0); mask != 0; idx++ {
		bit := uint(bits.TrailingZeros64(mask))
		res |= ((x >> bit) & 1) << idx
		mask &= mask - 1
	}
	return res
}

// software pdep: deposit low bits of x into positions of mask
func pdep(x, mask uint64) uint64 {
	var res uint64
	for idx := uint(0); mask != 0; idx++ {
		bit := uint(bits.TrailingZeros64(mask))
		res |= ((x >> idx) & 1) << bit
		mask &= mask - 1
	}
	return res
}

func rookAttacks(sq int, occ uint64) uint64 {
	return rookAttTable[sq][pext(occ, rookMask[sq])]
}

func bishopAttacks(sq int, occ uint64) uint64 {
	return bishopAttTable[sq][pext(occ, bishopMask[sq])]
}

// RookAttacks exposes rook attacks for a square and occupancy.
func RookAttacks(sq Square, occ uint64) uint64 { return rookAttacks(int(sq), occ) }

// BishopAttacks exposes bishop attacks for a square and occupancy.
func BishopAttacks(sq Square, occ uint64) uint64 { return bishopAttacks(int(sq), occ) }

// KnightAttacks exposes the knight table.
func KnightAttacks(sq Square) uint64 { return knightMoves[sq] }

// IsSquareAttacked reports whether the given square is attacked by the given color.
func (b *Board) IsSquareAttacked(sq Square, by Color) bool {
	return b.attackedWithOcc(int(sq), by, b.AllOccupancy())
}

func (b *Board) attackedWithOcc(s int, by Color, occ uint64) bool {
	theirs := &b.pieceBB[by]
	// a pawn of `by` attacks s iff a pawn of the other color on s would attack it back;
	// masking with occ drops a pawn just taken en passant
	if pawnAttacks[by.Other()][s]&theirs[PieceTypePawn]&occ != 0 {
		return true
	}
	if knightMoves[s]&theirs[PieceTypeKnight] != 0 {
		return true
	}
	if kingMoves[s]&theirs[PieceTypeKing] != 0 {
		return true
	}
	if rq := theirs[PieceTypeRook] | theirs[PieceTypeQueen]; rq != 0 && rookAttacks(s, occ)&rq != 0 {
		return true
	}
	if bq := theirs[PieceTypeBishop] | theirs[PieceTypeQueen]; bq != 0 && bishopAttacks(s, occ)&bq != 0 {
		return true
	}
	return false
}

// InCheck reports whether the specified color's king is currently in check.
func (b *Board) InCheck(color Color) bool {
	ks := b.KingSquare(color)
	if ks == NoSquare {
		return false
	}
	return b.IsSquareAttacked(ks, color.Other())
}

// AttackersTo returns the pieces of both sides attacking sq, given the occupancy occ.
// Pieces outside occ are ignored, which lets exchange evaluation lift captured pieces.
func (b *Board) AttackersTo(sq Square, occ uint64) uint64 {
	s := int(sq)
	w, bl := &b.pieceBB[White], &b.pieceBB[Black]
	att := pawnAttacks[Black][s]&w[PieceTypePawn] | pawnAttacks[White][s]&bl[PieceTypePawn]
	att |= knightMoves[s] & (w[PieceTypeKnight] | bl[PieceTypeKnight])
	att |= kingMoves[s] & (w[PieceTypeKing] | bl[PieceTypeKing])
	att |= rookAttacks(s, occ) & (w[PieceTypeRook] | bl[PieceTypeRook] | w[PieceTypeQueen] | bl[PieceTypeQueen])
	att |= bishopAttacks(s, occ) & (w[PieceTypeBishop] | bl[PieceTypeBishop] | w[PieceTypeQueen] | bl[PieceTypeQueen])
	return att & occ
}
