package book

import (
	"strings"

	"chess-worker/rules"
)

// replayer resolves book keys to positions. History keys are replayed move by move
// from the start position; every prefix is memoized, so sibling lines share work.
type replayer struct {
	memo map[string]rules.Position
	bad  map[string]bool
}

func newReplayer() *replayer {
	return &replayer{
		memo: map[string]rules.Position{"": rules.StartPosition()},
		bad:  make(map[string]bool),
	}
}

func (r *replayer) resolve(key string) (rules.Position, bool) {
	if isPositionKey(key) {
		pos, err := rules.ParsePosition(key)
		return pos, err == nil
	}
	return r.replay(strings.Fields(key))
}

func (r *replayer) replay(moves []string) (rules.Position, bool) {
	// longest known prefix
	n := len(moves)
	for ; n > 0; n-- {
		prefix := strings.Join(moves[:n], " ")
		if r.bad[prefix] {
			return rules.Position{}, false
		}
		if _, ok := r.memo[prefix]; ok {
			break
		}
	}
	pos := r.memo[strings.Join(moves[:n], " ")]
	for i := n; i < len(moves); i++ {
		next, err := pos.ApplyUCI(moves[i])
		prefix := strings.Join(moves[:i+1], " ")
		if err != nil {
			r.bad[prefix] = true
			return rules.Position{}, false
		}
		r.memo[prefix] = next
		pos = next
	}
	return pos, true
}
