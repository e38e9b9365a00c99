package engine

import (
	"math/bits"

	"chess-worker/rules"
)

var SeePieceValue = [7]int{
	rules.PieceTypePawn:   100,
	rules.PieceTypeKnight: 300,
	rules.PieceTypeBishop: 300,
	rules.PieceTypeRook:   500,
	rules.PieceTypeQueen:  900,
	rules.PieceTypeKing:   5000,
}

// see runs a static exchange on the destination of m and returns the material the
// mover can expect to keep. Sliders behind a capturer join as it leaves the square.
func see(b *rules.Board, m rules.Move) int {
	var gain [32]int
	to := m.To()
	occ := b.AllOccupancy()

	attacker := m.MovedPiece().Type()
	gain[0] = SeePieceValue[m.CapturedPiece().Type()]
	if m.Flags() == rules.FlagEnPassant {
		capSq := rules.NewSquare(to.File(), m.From().Rank())
		occ &^= 1 << uint(capSq)
	}
	if promo := m.PromotionPieceType(); promo != rules.PieceTypeNone {
		gain[0] += SeePieceValue[promo] - SeePieceValue[rules.PieceTypePawn]
		attacker = promo
	}

	fromBB := uint64(1) << uint(m.From())
	side := b.SideToMove().Other()
	d := 0
	for {
		d++
		gain[d] = SeePieceValue[attacker] - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 || d == len(gain)-1 {
			break
		}
		occ &^= fromBB
		fromBB, attacker = leastValuableAttacker(b, b.AttackersTo(to, occ)&b.ColorOccupancy(side))
		if fromBB == 0 {
			break
		}
		side = side.Other()
	}
	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

func leastValuableAttacker(b *rules.Board, attackers uint64) (uint64, rules.PieceType) {
	if attackers == 0 {
		return 0, rules.PieceTypeNone
	}
	side := b.PieceAt(rules.Square(bits.TrailingZeros64(attackers))).Color()
	for pt := rules.PieceTypePawn; pt <= rules.PieceTypeKing; pt++ {
		if subset := attackers & b.Pieces(side, pt); subset != 0 {
			return subset & -subset, pt
		}
	}
	return 0, rules.PieceTypeNone
}
