package rules

// MoveState holds what is needed to undo a move.
type MoveState struct {
	move     Move
	captured Piece
	capSq    Square
	castling CastlingRights
	ep       Square
	halfmove int
	fullmove int
	hash     uint64
}

// Move returns the move this state undoes.
func (st MoveState) Move() Move { return st.move }

// NullState stores what is needed to undo a null move.
type NullState struct {
	ep       Square
	halfmove int
	hash     uint64
}

// play applies m without any legality check. The piece is taken from the board,
// not from the move encoding; flags on m decide castling and en passant.
func (b *Board) play(m Move) MoveState {
	st := MoveState{
		move:     m,
		capSq:    NoSquare,
		castling: b.castlingRights,
		ep:       b.enPassantSquare,
		halfmove: b.halfmoveClock,
		fullmove: b.fullmoveNumber,
		hash:     b.zobristKey,
	}
	from, to := m.From(), m.To()
	moved := b.squares[from]
	mover := moved.Color()

	b.setEnPassant(NoSquare)

	if m.Flags() == FlagEnPassant {
		capSq := to - 8
		if mover == Black {
			capSq = to + 8
		}
		st.captured, st.capSq = b.removePiece(capSq), capSq
	} else if b.squares[to] != NoPiece {
		st.captured, st.capSq = b.removePiece(to), to
	}

	b.removePiece(from)
	placed := moved
	if promo := m.PromotionPiece(); promo != NoPiece {
		placed = MakePiece(mover, promo.Type())
	}
	b.addPiece(to, placed)

	if m.Flags() == FlagCastle {
		if rf, rt, ok := castleRook(mover, to); ok {
			if rook := b.removePiece(rf); rook != NoPiece {
				b.SetPiece(rt, rook)
			}
		}
	}

	b.setCastling(b.castlingRights & castleMask[from] & castleMask[to])

	if moved.Type() == PieceTypePawn && (to-from == 16 || from-to == 16) {
		b.setEnPassant((from + to) / 2)
	}
	if moved.Type() == PieceTypePawn || st.captured != NoPiece {
		b.halfmoveClock = 0
	} else {
		b.halfmoveClock++
	}
	if b.sideToMove == Black {
		b.fullmoveNumber++
	}
	b.sideToMove = b.sideToMove.Other()
	b.zobristKey ^= zobristSide
	return st
}

// MakeMove applies a generated move. It returns ok=false, with the board restored,
// if the move leaves the mover's king in check.
func (b *Board) MakeMove(m Move) (ok bool, st MoveState) {
	mover := b.sideToMove
	st = b.play(m)
	if b.InCheck(mover) {
		b.UnmakeMove(m, st)
		return false, st
	}
	return true, st
}

// UnmakeMove reverts a move made with MakeMove.
func (b *Board) UnmakeMove(m Move, st MoveState) {
	from, to := m.From(), m.To()
	placed := b.squares[to]
	mover := placed.Color()

	if m.Flags() == FlagCastle {
		if rf, rt, ok := castleRook(mover, to); ok {
			b.addPiece(rf, b.removePiece(rt))
		}
	}
	b.removePiece(to)
	moved := placed
	if m.PromotionPiece() != NoPiece {
		moved = MakePiece(mover, PieceTypePawn)
	}
	b.addPiece(from, moved)
	if st.captured != NoPiece {
		b.addPiece(st.capSq, st.captured)
	}

	b.sideToMove = b.sideToMove.Other()
	b.castlingRights = st.castling
	b.enPassantSquare = st.ep
	b.halfmoveClock = st.halfmove
	b.fullmoveNumber = st.fullmove
	b.zobristKey = st.hash
}

// MakeNullMove passes the turn. Callers must not use it while in check.
func (b *Board) MakeNullMove() NullState {
	st := NullState{ep: b.enPassantSquare, halfmove: b.halfmoveClock, hash: b.zobristKey}
	b.setEnPassant(NoSquare)
	b.halfmoveClock++
	b.sideToMove = b.sideToMove.Other()
	b.zobristKey ^= zobristSide
	return st
}

// UnmakeNullMove reverts MakeNullMove.
func (b *Board) UnmakeNullMove(st NullState) {
	b.sideToMove = b.sideToMove.Other()
	b.enPassantSquare = st.ep
	b.halfmoveClock = st.halfmove
	b.zobristKey = st.hash
}
