package rules

// Perft counts leaf nodes reachable in exactly depth plies. Each promotion choice
// is a separate leaf. depth <= 0 yields 1.
func Perft(b *Board, depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	bufs := make([][]Move, depth+1)
	for i := range bufs {
		bufs[i] = make([]Move, 0, 256)
	}
	return perftRec(b, depth, bufs)
}

func perftRec(b *Board, depth int, bufs [][]Move) uint64 {
	moves := b.GenerateMovesInto(bufs[depth])
	bufs[depth] = moves[:0]
	// generated moves are legal, so the last ply needs no make/unmake
	if depth == 1 {
		return uint64(len(moves))
	}
	var nodes uint64
	for _, m := range moves {
		st := b.play(m)
		nodes += perftRec(b, depth-1, bufs)
		b.UnmakeMove(m, st)
	}
	return nodes
}

// PerftDivide maps each legal root move to its leaf count at depth.
func PerftDivide(b *Board, depth int) map[Move]uint64 {
	result := make(map[Move]uint64)
	if depth <= 0 {
		return result
	}
	for _, m := range b.GenerateMoves() {
		st := b.play(m)
		result[m] = Perft(b, depth-1)
		b.UnmakeMove(m, st)
	}
	return result
}

// Perft counts leaf nodes from p without modifying it.
func (p Position) Perft(depth int) uint64 {
	b := p.b
	return Perft(&b, depth)
}

// PerftDivide is PerftDivide on a copy of p's board.
func (p Position) PerftDivide(depth int) map[Move]uint64 {
	b := p.b
	return PerftDivide(&b, depth)
}
