package engine

import "chess-worker/rules"

const historyMaxVal = 900 // keeps quiet scores under killerOffset + counterOffset

func (s *Searcher) insertKiller(m rules.Move, ply int8) {
	if m != s.killers[ply][0] {
		s.killers[ply][1] = s.killers[ply][0]
		s.killers[ply][0] = m
	}
}

func (s *Searcher) isKiller(m rules.Move, ply int8) bool {
	return s.killers[ply][0] == m || s.killers[ply][1] == m
}

func (s *Searcher) storeCounter(side rules.Color, prevMove, m rules.Move) {
	if prevMove == rules.NullMove {
		return
	}
	s.counter[side][prevMove.From()][prevMove.To()] = m
}

// incrementHistory rewards a quiet move that caused a beta cutoff.
func (s *Searcher) incrementHistory(side rules.Color, m rules.Move, depth int8) {
	h := &s.history[side][m.From()][m.To()]
	*h += int(depth) * int(depth)
	if *h >= historyMaxVal {
		s.ageHistory(side)
	}
}

// decrementHistory penalises quiet moves searched before the cutoff move.
func (s *Searcher) decrementHistory(side rules.Color, m rules.Move, depth int8) {
	h := &s.history[side][m.From()][m.To()]
	*h -= int(depth)
	if *h < 0 {
		*h = 0
	}
}

// ageHistory halves one side's table.
func (s *Searcher) ageHistory(side rules.Color) {
	for from := range s.history[side] {
		for to := range s.history[side][from] {
			s.history[side][from][to] /= 2
		}
	}
}

func (s *Searcher) clearKillers() {
	for i := range s.killers {
		s.killers[i] = [2]rules.Move{}
	}
}
