package engine

import "chess-worker/rules"

const fiftyMoveLimit = 100

// state captures what is needed to reason about repetitions and the fifty-move rule.
type state struct {
	hash   uint64
	rule50 int
}

// resetStates seeds the stack with the game history (oldest first) followed by the root.
// A trailing history entry equal to the root is not duplicated.
func (s *Searcher) resetStates(b *rules.Board, history []uint64) {
	s.states = s.states[:0]
	if n := len(history); n > 0 && history[n-1] == b.Hash() {
		history = history[:n-1]
	}
	for _, h := range history {
		s.states = append(s.states, state{hash: h})
	}
	s.pushState(b)
	s.rootIndex = len(s.states) - 1
}

func (s *Searcher) pushState(b *rules.Board) {
	s.states = append(s.states, state{hash: b.Hash(), rule50: b.HalfmoveClock()})
}

func (s *Searcher) popState() {
	if len(s.states) > 0 {
		s.states = s.states[:len(s.states)-1]
	}
}

// isDraw reports a fifty-move draw, a threefold repetition, or a repetition of a
// position already reached inside the current search tree.
func (s *Searcher) isDraw() bool {
	if len(s.states) == 0 {
		return false
	}
	curr := s.states[len(s.states)-1]
	if curr.rule50 >= fiftyMoveLimit {
		return true
	}
	count, firstIdx := s.repetitionInfo(curr)
	if count >= 2 {
		return true
	}
	return count >= 1 && firstIdx >= s.rootIndex
}

// repetitionInfo counts earlier occurrences of curr within the reversible window.
func (s *Searcher) repetitionInfo(curr state) (count int, firstIdx int) {
	firstIdx = -1
	top := len(s.states) - 1
	start := top - curr.rule50
	if start < 0 {
		start = 0
	}
	for i := start; i < top; i++ {
		if s.states[i].hash == curr.hash {
			count++
			if firstIdx == -1 {
				firstIdx = i
			}
		}
	}
	return count, firstIdx
}

// pushNullState records a null move. It resets the reversible window so positions
// on either side of the null move never count as repetitions of each other.
func (s *Searcher) pushNullState(b *rules.Board) {
	s.states = append(s.states, state{hash: b.Hash()})
}

// repeatsEarlier reports whether the current position already occurred, in the game
// history or in the tree.
func (s *Searcher) repeatsEarlier() bool {
	if len(s.states) == 0 {
		return false
	}
	count, _ := s.repetitionInfo(s.states[len(s.states)-1])
	return count > 0
}
