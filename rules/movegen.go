package rules

import "math/bits"

// castleSpec describes one castling option: rights bit, king and rook travel,
// squares that must be empty and squares the king may not cross while attacked.
type castleSpec struct {
	right        CastlingRights
	king, kingTo Square
	rook, rookTo Square
	empty        uint64
	path0, path1 Square
}

var castleSpecs = [2][2]castleSpec{
	White: {
		{CastlingWhiteK, 4, 6, 7, 5, bb(5) | bb(6), 5, 6},
		{CastlingWhiteQ, 4, 2, 0, 3, bb(1) | bb(2) | bb(3), 3, 2},
	},
	Black: {
		{CastlingBlackK, 60, 62, 63, 61, bb(61) | bb(62), 61, 62},
		{CastlingBlackQ, 60, 58, 56, 59, bb(57) | bb(58) | bb(59), 59, 58},
	},
}

// castleRook returns the rook relocation for a king landing on kingTo, if any.
func castleRook(c Color, kingTo Square) (from, to Square, ok bool) {
	for _, cs := range castleSpecs[c] {
		if cs.kingTo == kingTo {
			return cs.rook, cs.rookTo, true
		}
	}
	return NoSquare, NoSquare, false
}

// castleMask[sq] keeps the rights that survive a move touching sq (as origin or destination).
var castleMask [64]CastlingRights

func init() {
	for sq := range castleMask {
		castleMask[sq] = CastlingAll
	}
	castleMask[4] &^= CastlingWhiteK | CastlingWhiteQ
	castleMask[7] &^= CastlingWhiteK
	castleMask[0] &^= CastlingWhiteQ
	castleMask[60] &^= CastlingBlackK | CastlingBlackQ
	castleMask[63] &^= CastlingBlackK
	castleMask[56] &^= CastlingBlackQ
}

// computeCheckAndPins computes check state and pin masks for side.
// checkMask is the set of squares a non-king move must land on while in single check;
// pinLine[sq] is the line a pinned piece on sq may travel (0 when not pinned).
func (b *Board) computeCheckAndPins(side Color, occ uint64) (inCheck, doubleCheck bool, checkMask uint64, pinLine [64]uint64) {
	ksq := b.KingSquare(side)
	if ksq == NoSquare {
		return false, false, 0, pinLine
	}
	k := int(ksq)
	them := &b.pieceBB[side.Other()]
	rq := them[PieceTypeRook] | them[PieceTypeQueen]
	bq := them[PieceTypeBishop] | them[PieceTypeQueen]

	checkers := pawnAttacks[side][k] & them[PieceTypePawn]
	checkers |= knightMoves[k] & them[PieceTypeKnight]
	checkers |= rookAttacks(k, occ) & rq
	checkers |= bishopAttacks(k, occ) & bq

	inCheck = checkers != 0
	doubleCheck = checkers&(checkers-1) != 0
	if inCheck && !doubleCheck {
		c := bits.TrailingZeros64(checkers)
		switch b.squares[c].Type() {
		case PieceTypeBishop, PieceTypeRook, PieceTypeQueen:
			checkMask = segment[k][c]
		default:
			checkMask = uint64(1) << uint(c)
		}
	}

	own := b.occupancy[side]
	pin := func(rays *[64][4]uint64, forward *[4]bool, sliders uint64) {
		for d := 0; d < 4; d++ {
			blockers := rays[k][d] & occ
			if blockers == 0 {
				continue
			}
			first := nearest(blockers, forward[d])
			if own&(uint64(1)<<uint(first)) == 0 {
				continue
			}
			beyond := rays[first][d] & occ
			if beyond == 0 {
				continue
			}
			if next := nearest(beyond, forward[d]); sliders&(uint64(1)<<uint(next)) != 0 {
				pinLine[first] = segment[k][next]
			}
		}
	}
	pin(&rookRays, &rookForward, rq)
	pin(&bishopRays, &bishopForward, bq)
	return inCheck, doubleCheck, checkMask, pinLine
}

// filter modes for selective generation
const (
	genAll = iota
	genCaptures
	genQuiets
)

var promotionOrder = [4]PieceType{PieceTypeQueen, PieceTypeRook, PieceTypeBishop, PieceTypeKnight}

// generateMovesFilteredInto is the core generator. It appends legal moves matching the filter into dst.
func (b *Board) generateMovesFilteredInto(dst []Move, filter int) []Move {
	moves := dst[:0]
	side := b.sideToMove
	us := &b.pieceBB[side]
	ownOcc := b.occupancy[side]
	oppOcc := b.occupancy[side.Other()]
	allOcc := ownOcc | oppOcc
	ks := b.KingSquare(side)

	inCheck, doubleCheck, checkMask, pinLine := b.computeCheckAndPins(side, allOcc)

	// allowed narrows the destinations of a non-king piece on from.
	allowed := func(from int, targets uint64) uint64 {
		if pin := pinLine[from]; pin != 0 {
			targets &= pin
		}
		if inCheck {
			targets &= checkMask
		}
		switch filter {
		case genCaptures:
			targets &= oppOcc
		case genQuiets:
			targets &^= oppOcc
		}
		return targets
	}
	emit := func(from int, targets uint64) {
		piece := b.squares[from]
		for targets != 0 {
			to := popLSB(&targets)
			moves = append(moves, NewMove(Square(from), Square(to), piece, b.squares[to], NoPiece, FlagNone))
		}
	}

	if !doubleCheck {
		moves = b.pawnMoves(moves, side, filter, allOcc, oppOcc, ks, inCheck, checkMask, &pinLine)

		for pieces := us[PieceTypeKnight]; pieces != 0; {
			from := popLSB(&pieces)
			emit(from, allowed(from, knightMoves[from]&^ownOcc))
		}
		for pieces := us[PieceTypeBishop] | us[PieceTypeQueen]; pieces != 0; {
			from := popLSB(&pieces)
			emit(from, allowed(from, bishopAttacks(from, allOcc)&^ownOcc))
		}
		for pieces := us[PieceTypeRook] | us[PieceTypeQueen]; pieces != 0; {
			from := popLSB(&pieces)
			emit(from, allowed(from, rookAttacks(from, allOcc)&^ownOcc))
		}
	}

	if ks == NoSquare {
		return moves
	}
	from := int(ks)
	king := b.squares[from]
	targets := kingMoves[from] &^ ownOcc
	switch filter {
	case genCaptures:
		targets &= oppOcc
	case genQuiets:
		targets &^= oppOcc
	}
	// the king must not hide behind itself on a slider line
	occNoKing := allOcc &^ (uint64(1) << uint(from))
	for targets != 0 {
		to := popLSB(&targets)
		if b.attackedWithOcc(to, side.Other(), occNoKing|uint64(1)<<uint(to)) {
			continue
		}
		moves = append(moves, NewMove(ks, Square(to), king, b.squares[to], NoPiece, FlagNone))
	}

	if filter == genCaptures || inCheck || ks != castleSpecs[side][0].king {
		return moves
	}
	rook := MakePiece(side, PieceTypeRook)
	for _, cs := range castleSpecs[side] {
		if b.castlingRights&cs.right == 0 || allOcc&cs.empty != 0 || b.squares[cs.rook] != rook {
			continue
		}
		if b.attackedWithOcc(int(cs.path0), side.Other(), allOcc) || b.attackedWithOcc(int(cs.path1), side.Other(), allOcc) {
			continue
		}
		moves = append(moves, NewMove(cs.king, cs.kingTo, king, NoPiece, NoPiece, FlagCastle))
	}
	return moves
}

// pawnMoves appends legal pawn pushes, captures, promotions and en passant.
func (b *Board) pawnMoves(moves []Move, side Color, filter int, allOcc, oppOcc uint64, ks Square,
	inCheck bool, checkMask uint64, pinLine *[64]uint64) []Move {

	forward, startRank, lastRank := 8, 1, 7
	if side == Black {
		forward, startRank, lastRank = -8, 6, 0
	}
	ok := func(from, to int) bool {
		toBB := uint64(1) << uint(to)
		if pin := pinLine[from]; pin != 0 && pin&toBB == 0 {
			return false
		}
		return !inCheck || checkMask&toBB != 0
	}
	add := func(from, to int, captured Piece) {
		pawn := b.squares[from]
		if to/8 == lastRank {
			for _, pt := range promotionOrder {
				moves = append(moves, NewMove(Square(from), Square(to), pawn, captured, MakePiece(side, pt), FlagNone))
			}
			return
		}
		moves = append(moves, NewMove(Square(from), Square(to), pawn, captured, NoPiece, FlagNone))
	}

	for pawns := b.pieceBB[side][PieceTypePawn]; pawns != 0; {
		from := popLSB(&pawns)

		if filter != genCaptures {
			one := from + forward
			if allOcc&(uint64(1)<<uint(one)) == 0 {
				if ok(from, one) {
					add(from, one, NoPiece)
				}
				two := one + forward
				if from/8 == startRank && allOcc&(uint64(1)<<uint(two)) == 0 && ok(from, two) {
					add(from, two, NoPiece)
				}
			}
		}
		if filter == genQuiets {
			continue
		}

		caps := pawnAttacks[side][from]
		for targets := caps & oppOcc; targets != 0; {
			to := popLSB(&targets)
			if ok(from, to) {
				add(from, to, b.squares[to])
			}
		}

		ep := b.enPassantSquare
		if ep == NoSquare || caps&bb(ep) == 0 {
			continue
		}
		capSq := int(ep) - forward
		if b.squares[capSq] != MakePiece(side.Other(), PieceTypePawn) {
			continue
		}
		if pin := pinLine[from]; pin != 0 && pin&bb(ep) == 0 {
			continue
		}
		// simulate the capture; this also covers the rank pin through both pawns
		if ks != NoSquare {
			occ := allOcc&^(uint64(1)<<uint(from))&^(uint64(1)<<uint(capSq)) | bb(ep)
			if b.attackedWithOcc(int(ks), side.Other(), occ) {
				continue
			}
		}
		moves = append(moves, NewMove(Square(from), ep, b.squares[from], b.squares[capSq], NoPiece, FlagEnPassant))
	}
	return moves
}

// GenerateMoves generates all legal moves for the side to move into a fresh slice.
func (b *Board) GenerateMoves() []Move { return b.GenerateMovesInto(make([]Move, 0, 128)) }

// GenerateMovesInto appends all legal moves for the side to move into dst[:0] and returns it.
func (b *Board) GenerateMovesInto(dst []Move) []Move {
	return b.generateMovesFilteredInto(dst, genAll)
}

// GenerateCapturesInto appends legal captures, including en passant and capture promotions.
func (b *Board) GenerateCapturesInto(dst []Move) []Move {
	return b.generateMovesFilteredInto(dst, genCaptures)
}

// GenerateQuietsInto appends legal non-captures, including quiet promotions and castling.
func (b *Board) GenerateQuietsInto(dst []Move) []Move {
	return b.generateMovesFilteredInto(dst, genQuiets)
}

// GivesCheck reports whether the legal move m checks the opponent.
func (b *Board) GivesCheck(m Move) bool {
	child := *b
	child.play(m)
	return child.InCheck(child.sideToMove)
}
