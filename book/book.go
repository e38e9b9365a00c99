// Package book holds weighted opening moves merged from one or more JSON sources.
//
// Keys are either position keys (a FEN, of which only placement, side, castling and
// en passant count) or history keys (space separated UCI moves from the standard
// start, "" being the start itself). History keys are replayed once at load time so
// transpositions reached by different move orders share their evidence.
package book

import (
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"chess-worker/rules"
)

var ErrEmptyBook = errors.New("book: no usable entries")

// Candidate is one book move with its merged weight.
type Candidate struct {
	Move   string
	Weight float64
}

// Book is read-only once built and safe for concurrent lookups.
type Book struct {
	// merged weights per normalized source key
	raw map[string]map[string]float64
	// weights per position key, after replaying history keys
	index map[string]map[string]float64
}

func newBook() *Book {
	return &Book{
		raw:   make(map[string]map[string]float64),
		index: make(map[string]map[string]float64),
	}
}

// Len is the number of distinct positions the book covers.
func (b *Book) Len() int { return len(b.index) }

// Weight returns the merged weight of move under a source key as written in a book file.
func (b *Book) Weight(key, move string) float64 {
	nk, err := normalizeKey(key)
	if err != nil {
		return 0
	}
	return b.raw[nk][normalizeMove(move)]
}

// Lookup returns the book moves for pos, heaviest first with ties broken by move.
func (b *Book) Lookup(pos rules.Position) []Candidate {
	moves := b.index[pos.PositionKey()]
	if len(moves) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(moves))
	for m, w := range moves {
		out = append(out, Candidate{Move: m, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Move < out[j].Move
	})
	return out
}

// LookupHistory replays moves from the start position and looks the result up.
// ok is false when the history cannot be replayed.
func (b *Book) LookupHistory(moves []string) (cands []Candidate, ok bool) {
	pos, err := rules.StartPosition().ApplyUCISequence(moves)
	if err != nil {
		return nil, false
	}
	return b.Lookup(pos), true
}

// Keys lists the position keys in the book, sorted.
func (b *Book) Keys() []string {
	keys := maps.Keys(b.index)
	slices.Sort(keys)
	return keys
}

func (b *Book) addRaw(key, move string, w float64) {
	moves := b.raw[key]
	if moves == nil {
		moves = make(map[string]float64)
		b.raw[key] = moves
	}
	moves[move] += w
}

// buildIndex resolves every raw key to a position and files its legal moves there.
// Entries that cannot be resolved are dropped and logged.
func (b *Book) buildIndex(log zerolog.Logger) {
	r := newReplayer()
	keys := maps.Keys(b.raw)
	slices.Sort(keys)
	for _, key := range keys {
		pos, ok := r.resolve(key)
		if !ok {
			log.Warn().Str("key", key).Msg("book key does not resolve to a position")
			continue
		}
		pk := pos.PositionKey()
		board := pos.Board()
		for move, w := range b.raw[key] {
			m, err := board.ParseMove(move)
			if err != nil {
				log.Debug().Str("key", key).Str("move", move).Msg("book move not legal, dropped")
				continue
			}
			moves := b.index[pk]
			if moves == nil {
				moves = make(map[string]float64)
				b.index[pk] = moves
			}
			moves[m.String()] += w
		}
	}
}

// normalizeKey maps position keys to their four significant FEN fields and collapses
// whitespace in history keys.
func normalizeKey(key string) (string, error) {
	if isPositionKey(key) {
		return rules.NormalizeKey(key)
	}
	return strings.ToLower(strings.Join(strings.Fields(key), " ")), nil
}

func isPositionKey(key string) bool { return strings.Contains(key, "/") }

func normalizeMove(move string) string { return strings.ToLower(strings.TrimSpace(move)) }
