package book

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"chess-worker/rules"
)

func load(t *testing.T, docs ...string) (*Book, []error) {
	t.Helper()
	var sources []Source
	for i, d := range docs {
		sources = append(sources, Source{Name: string(rune('a' + i)), Data: []byte(d)})
	}
	return Load(zerolog.Nop(), sources...)
}

func weightOf(cands []Candidate, move string) float64 {
	for _, c := range cands {
		if c.Move == move {
			return c.Weight
		}
	}
	return 0
}

func TestMergeSumsWeights(t *testing.T) {
	b, errs := load(t,
		`{"": {"moves": {"e2e4": 10}}}`,
		`{"": {"moves": {"e2e4": 15, "d2d4": 3}}}`,
	)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := b.Weight("", "e2e4"); got != 25 {
		t.Fatalf("merged weight got %v want 25", got)
	}
	cands := b.Lookup(rules.StartPosition())
	if len(cands) != 2 || cands[0].Move != "e2e4" || cands[0].Weight != 25 {
		t.Fatalf("lookup got %+v", cands)
	}
}

func TestTranspositionsShareWeights(t *testing.T) {
	b, _ := load(t, `{
		"g1f3 g8f6 b1c3": {"moves": {"d7d5": 4}},
		"b1c3 g8f6 g1f3": {"moves": {"d7d5": 6, "e7e6": 1}}
	}`)
	cands, ok := b.LookupHistory([]string{"g1f3", "g8f6", "b1c3"})
	if !ok {
		t.Fatalf("history did not replay")
	}
	if got := weightOf(cands, "d7d5"); got != 10 {
		t.Fatalf("transposed weight got %v want 10", got)
	}
	if b.Len() != 1 {
		t.Fatalf("positions got %d want 1", b.Len())
	}
}

func TestPositionKeyIgnoresClocks(t *testing.T) {
	b, _ := load(t,
		`{"rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2": {"moves": {"b8c6": 2}}}`,
		`{"e2e4 e7e5 g1f3": {"moves": {"b8c6": 3}}}`,
	)
	cands, _ := b.LookupHistory([]string{"e2e4", "e7e5", "g1f3"})
	if got := weightOf(cands, "b8c6"); got != 5 {
		t.Fatalf("weight got %v want 5", got)
	}
}

func TestBadSourceIsSkipped(t *testing.T) {
	b, errs := load(t, `{"": {"moves": {"e2e4": 1}}}`, `{not json`)
	if len(errs) != 1 {
		t.Fatalf("errors got %d want 1: %v", len(errs), errs)
	}
	if got := weightOf(b.Lookup(rules.StartPosition()), "e2e4"); got != 1 {
		t.Fatalf("good source lost, weight %v", got)
	}
}

func TestEmptyBookReported(t *testing.T) {
	b, errs := load(t, `{"": {"moves": {"e2e5": 3}}}`)
	if b == nil || b.Len() != 0 {
		t.Fatalf("expected an empty usable book")
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrEmptyBook) {
		t.Fatalf("errors got %v want ErrEmptyBook", errs)
	}
}

func TestInvalidEntriesDropped(t *testing.T) {
	b, _ := load(t, `{
		"": {"moves": {"e2e4": 5, "e2e5": 9, "d2d4": -3, "c2c4": 0}},
		"e2e4 e7e4": {"moves": {"g1f3": 1}},
		"e2e4": {"moves": {"E7E5": 2}}
	}`)
	cands := b.Lookup(rules.StartPosition())
	if len(cands) != 1 || cands[0].Move != "e2e4" {
		t.Fatalf("start candidates got %+v", cands)
	}
	after, _ := b.LookupHistory([]string{"e2e4"})
	if got := weightOf(after, "e7e5"); got != 2 {
		t.Fatalf("upper case move not normalized, weight %v", got)
	}
	if b.Len() != 2 {
		t.Fatalf("positions got %d want 2", b.Len())
	}
}

func TestLookupHistoryUnreplayable(t *testing.T) {
	b, _ := load(t, `{"": {"moves": {"e2e4": 1}}}`)
	if _, ok := b.LookupHistory([]string{"e2e5"}); ok {
		t.Fatalf("illegal history reported as replayed")
	}
}

func TestLoadFilesMissingPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "book.json")
	if err := os.WriteFile(good, []byte(`{"": {"moves": {"d2d4": 7}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	b, errs := LoadFiles(zerolog.Nop(), good, filepath.Join(dir, "missing.json"))
	if len(errs) != 1 {
		t.Fatalf("errors got %v want one", errs)
	}
	if got := b.Weight("", "d2d4"); got != 7 {
		t.Fatalf("weight got %v want 7", got)
	}
}

func TestDefaultBook(t *testing.T) {
	b, errs := Default(zerolog.Nop())
	if len(errs) != 0 {
		t.Fatalf("embedded book errors: %v", errs)
	}
	if len(b.Lookup(rules.StartPosition())) == 0 {
		t.Fatalf("embedded book has no start moves")
	}
	// the position entry and the history entry land on the same position
	cands, _ := b.LookupHistory([]string{"e2e4", "e7e5", "g1f3"})
	if got := weightOf(cands, "b8c6"); got != 95 {
		t.Fatalf("merged b8c6 got %v want 95", got)
	}
	for _, key := range b.Keys() {
		pos, err := rules.ParsePosition(key)
		if err != nil {
			t.Fatalf("index key %q: %v", key, err)
		}
		for _, c := range b.Lookup(pos) {
			if _, err := pos.ApplyUCI(c.Move); err != nil {
				t.Fatalf("%s: illegal book move %s", key, c.Move)
			}
		}
	}
}
