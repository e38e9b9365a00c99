package engine

import (
	"unsafe"

	"chess-worker/rules"
)

// Bound flags
const (
	AlphaFlag int8 = iota // upper bound
	BetaFlag              // lower bound
	ExactFlag
)

const (
	clusterSize = 4
	bytesPerMB  = 1024 * 1024

	// UnusableScore is returned with usable=false from useEntry
	UnusableScore = -32750
)

type TTEntry struct {
	Hash  uint64
	Move  rules.Move
	Score int16
	Depth int8
	Flag  int8
}

var entrySize = uint64(unsafe.Sizeof(TTEntry{}))

// TransTable is a fixed-size, cluster-bucketed transposition table. It is not safe
// for concurrent use; one search owns it at a time.
type TransTable struct {
	entries      []TTEntry
	clusterCount uint64
	budgetMB     float64
}

// NewTransTable allocates as many whole clusters as fit in mb megabytes. A budget below
// one cluster yields a table that stores nothing.
func NewTransTable(mb float64) *TransTable {
	tt := &TransTable{}
	tt.Resize(mb)
	return tt
}

// Resize reallocates the table for a new budget, dropping all entries.
func (tt *TransTable) Resize(mb float64) {
	if mb < 0 {
		mb = 0
	}
	tt.budgetMB = mb
	clusterBytes := entrySize * clusterSize
	tt.clusterCount = uint64(mb*bytesPerMB) / clusterBytes
	if tt.clusterCount == 0 {
		tt.entries = nil
		return
	}
	tt.entries = make([]TTEntry, tt.clusterCount*clusterSize)
}

// Clear wipes every entry but keeps the allocation.
func (tt *TransTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
}

// BudgetMB is the budget the table was sized for.
func (tt *TransTable) BudgetMB() float64 { return tt.budgetMB }

// SizeBytes is the memory held by entries; it never exceeds the budget.
func (tt *TransTable) SizeBytes() uint64 { return uint64(len(tt.entries)) * entrySize }

// Probe returns the entry stored for hash, if any.
func (tt *TransTable) Probe(hash uint64) (TTEntry, bool) {
	if tt.clusterCount == 0 {
		return TTEntry{}, false
	}
	base := (hash % tt.clusterCount) * clusterSize
	for i := uint64(0); i < clusterSize; i++ {
		if e := tt.entries[base+i]; e.Hash == hash && e.Depth > 0 {
			return e, true
		}
	}
	return TTEntry{}, false
}

// useEntry decides whether a probed entry can cut the node. Mate scores are stored
// relative to the node and re-based on the current ply here.
func useEntry(e TTEntry, found bool, depth int8, alpha, beta int32, ply int8) (usable bool, score int32) {
	if !found || e.Depth < depth {
		return false, UnusableScore
	}
	norm := scoreFromTT(e.Score, ply)
	switch e.Flag {
	case ExactFlag:
		return true, norm
	case AlphaFlag:
		if norm <= alpha {
			return true, alpha
		}
	case BetaFlag:
		if norm >= beta {
			return true, beta
		}
	}
	return false, UnusableScore
}

func scoreToTT(score int32, ply int8) int16 {
	if score > Checkmate {
		score += int32(ply)
	} else if score < -Checkmate {
		score -= int32(ply)
	}
	return int16(score)
}

func scoreFromTT(score int16, ply int8) int32 {
	s := int32(score)
	if s > Checkmate {
		s -= int32(ply)
	} else if s < -Checkmate {
		s += int32(ply)
	}
	return s
}

// Store writes an entry, preferring the slot already holding hash, then an empty slot,
// then the shallowest entry of the cluster.
func (tt *TransTable) Store(hash uint64, depth, ply int8, move rules.Move, score int32, flag int8) {
	if tt.clusterCount == 0 {
		return
	}
	if depth < 1 {
		depth = 1
	}
	base := (hash % tt.clusterCount) * clusterSize
	target := -1
	for i := uint64(0); i < clusterSize; i++ {
		if tt.entries[base+i].Hash == hash {
			target = int(base + i)
			break
		}
	}
	if target == -1 {
		for i := uint64(0); i < clusterSize; i++ {
			if tt.entries[base+i].Depth == 0 {
				target = int(base + i)
				break
			}
		}
	}
	if target == -1 {
		target = int(base)
		minDepth := tt.entries[base].Depth
		for i := uint64(1); i < clusterSize; i++ {
			if d := tt.entries[base+i].Depth; d < minDepth {
				minDepth = d
				target = int(base + i)
			}
		}
	}

	e := &tt.entries[target]
	if e.Hash == hash && move == rules.NullMove {
		move = e.Move
	}
	*e = TTEntry{Hash: hash, Move: move, Score: scoreToTT(score, ply), Depth: depth, Flag: flag}
}

// Usage returns the filled fraction in permille, sampled over the first 1000 entries.
func (tt *TransTable) Usage() int {
	n := len(tt.entries)
	if n == 0 {
		return 0
	}
	if n > 1000 {
		n = 1000
	}
	used := 0
	for i := 0; i < n; i++ {
		if tt.entries[i].Depth > 0 {
			used++
		}
	}
	return used * 1000 / n
}
