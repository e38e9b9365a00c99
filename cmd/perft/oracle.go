package main

import "github.com/dylhunn/dragontoothmg"

// oracleDivide counts with dragontoothmg, which shares no code with rules.
func oracleDivide(fen string, depth int) map[string]uint64 {
	b := dragontoothmg.ParseFen(fen)
	out := make(map[string]uint64)
	for _, m := range b.GenerateLegalMoves() {
		undo := b.Apply(m)
		out[m.String()] = oracleCount(&b, depth-1)
		undo()
	}
	return out
}

func oracleCount(b *dragontoothmg.Board, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := b.GenerateLegalMoves()
	if depth == 1 {
		return uint64(len(moves))
	}
	var n uint64
	for _, m := range moves {
		undo := b.Apply(m)
		n += oracleCount(b, depth-1)
		undo()
	}
	return n
}
