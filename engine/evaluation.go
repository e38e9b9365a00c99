package engine

import (
	"math/bits"

	"chess-worker/rules"
)

// Non-material evaluation terms
var (
	BishopPairBonusMG = 10
	BishopPairBonusEG = 50

	RookSemiOpenMG = 13
	RookOpenMG     = 30

	TempoBonus = 10

	DrawDivider int32 = 8
)

var fileMasks [8]uint64

// passedMask[c][sq] covers the squares in front of a pawn of color c on sq, on its
// own and both neighbouring files.
var passedMask [2][64]uint64

func init() {
	for f := 0; f < 8; f++ {
		fileMasks[f] = 0x0101010101010101 << uint(f)
	}
	for sq := 0; sq < 64; sq++ {
		f, r := sq%8, sq/8
		span := fileMasks[f]
		if f > 0 {
			span |= fileMasks[f-1]
		}
		if f < 7 {
			span |= fileMasks[f+1]
		}
		var ahead, behind uint64
		for rr := r + 1; rr < 8; rr++ {
			ahead |= uint64(0xFF) << uint(rr*8)
		}
		for rr := r - 1; rr >= 0; rr-- {
			behind |= uint64(0xFF) << uint(rr*8)
		}
		passedMask[rules.White][sq] = span & ahead
		passedMask[rules.Black][sq] = span & behind
	}
}

// sideTerms accumulates midgame/endgame scores for one side, white oriented.
type sideTerms struct {
	mg, eg int
}

func (t *sideTerms) add(mg, eg int) {
	t.mg += mg
	t.eg += eg
}

// Evaluation returns a tapered static score in centipawns from the side to move's view.
func Evaluation(b *rules.Board) int32 {
	var terms [2]sideTerms
	occ := b.AllOccupancy()

	for _, c := range [2]rules.Color{rules.White, rules.Black} {
		t := &terms[c]
		own := b.ColorOccupancy(c)
		enemyPawns := b.Pieces(c.Other(), rules.PieceTypePawn)
		ownPawns := b.Pieces(c, rules.PieceTypePawn)

		for pt := rules.PieceTypePawn; pt <= rules.PieceTypeKing; pt++ {
			for x := b.Pieces(c, pt); x != 0; x &= x - 1 {
				sq := bits.TrailingZeros64(x)
				view := sq
				if c == rules.Black {
					view = flipView[sq]
				}
				t.add(pieceValueMG[pt]+psqtMG[pt][view], pieceValueEG[pt]+psqtEG[pt][view])

				var mobility uint64
				switch pt {
				case rules.PieceTypePawn:
					if passedMask[c][sq]&enemyPawns == 0 {
						t.add(passedPawnMG[view], passedPawnEG[view])
					}
				case rules.PieceTypeKnight:
					mobility = rules.KnightAttacks(rules.Square(sq))
				case rules.PieceTypeBishop:
					mobility = rules.BishopAttacks(rules.Square(sq), occ)
				case rules.PieceTypeRook:
					mobility = rules.RookAttacks(rules.Square(sq), occ)
					file := fileMasks[sq%8]
					if file&ownPawns == 0 {
						if file&enemyPawns == 0 {
							t.add(RookOpenMG, 0)
						} else {
							t.add(RookSemiOpenMG, 0)
						}
					}
				case rules.PieceTypeQueen:
					mobility = rules.RookAttacks(rules.Square(sq), occ) | rules.BishopAttacks(rules.Square(sq), occ)
				}
				if mobility != 0 {
					n := bits.OnesCount64(mobility &^ own)
					t.add(n*mobilityValueMG[pt], n*mobilityValueEG[pt])
				}
			}
		}
		if bits.OnesCount64(b.Pieces(c, rules.PieceTypeBishop)) > 1 {
			t.add(BishopPairBonusMG, BishopPairBonusEG)
		}
	}
	piecePhase := GamePhase(b)

	toMove := b.SideToMove()
	terms[toMove].add(TempoBonus, TempoBonus)

	mgScore := terms[rules.White].mg - terms[rules.Black].mg
	egScore := terms[rules.White].eg - terms[rules.Black].eg
	score := int32((mgScore*piecePhase + egScore*(TotalPhase-piecePhase)) / TotalPhase)

	if isTheoreticalDraw(b) {
		score /= DrawDivider
	}
	if toMove == rules.Black {
		score = -score
	}
	return score
}

// isTheoreticalDraw flags pawnless material balances that are generally drawn.
func isTheoreticalDraw(b *rules.Board) bool {
	if b.Pieces(rules.White, rules.PieceTypePawn)|b.Pieces(rules.Black, rules.PieceTypePawn) != 0 {
		return false
	}
	var n, bsh, r, q [2]int
	for _, c := range [2]rules.Color{rules.White, rules.Black} {
		n[c] = bits.OnesCount64(b.Pieces(c, rules.PieceTypeKnight))
		bsh[c] = bits.OnesCount64(b.Pieces(c, rules.PieceTypeBishop))
		r[c] = bits.OnesCount64(b.Pieces(c, rules.PieceTypeRook))
		q[c] = bits.OnesCount64(b.Pieces(c, rules.PieceTypeQueen))
	}
	minors := [2]int{n[0] + bsh[0], n[1] + bsh[1]}
	total := minors[0] + minors[1] + r[0] + r[1] + q[0] + q[1]

	switch total {
	case 0, 1:
		return r[0]+r[1]+q[0]+q[1] == 0
	case 2:
		if n[0] == 2 || n[1] == 2 {
			return true
		}
		if minors[0] == 1 && minors[1] == 1 {
			return true
		}
		if r[0] == 1 && (minors[1] == 1 || r[1] == 1) || r[1] == 1 && minors[0] == 1 {
			return true
		}
		return q[0] == 1 && q[1] == 1
	}
	return false
}

// HasNonPawnMaterial reports whether c has a piece other than pawns and king; null-move
// pruning is skipped without one.
func HasNonPawnMaterial(b *rules.Board, c rules.Color) bool {
	return b.Pieces(c, rules.PieceTypeKnight)|b.Pieces(c, rules.PieceTypeBishop)|
		b.Pieces(c, rules.PieceTypeRook)|b.Pieces(c, rules.PieceTypeQueen) != 0
}

// GamePhase runs from 0 with only kings and pawns left to TotalPhase with all pieces on.
func GamePhase(b *rules.Board) int {
	phase := 0
	for _, c := range [2]rules.Color{rules.White, rules.Black} {
		phase += KnightPhase*bits.OnesCount64(b.Pieces(c, rules.PieceTypeKnight)) +
			BishopPhase*bits.OnesCount64(b.Pieces(c, rules.PieceTypeBishop)) +
			RookPhase*bits.OnesCount64(b.Pieces(c, rules.PieceTypeRook)) +
			QueenPhase*bits.OnesCount64(b.Pieces(c, rules.PieceTypeQueen))
	}
	return min(phase, TotalPhase)
}
