package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chess-worker/book"
	"chess-worker/config"
	"chess-worker/engine"
	"chess-worker/rules"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newTestWorker(t *testing.T, bookJSON string) *Worker {
	t.Helper()
	opts := WorkerOptions{
		Engine: config.EngineConfig{TTMB: 1, MaxTTMB: 4, HistoryLimit: 128},
		Picker: book.Picker{MinRatio: 0.2, Exponent: 0.5, Rand: func() float64 { return 0 }},
	}
	if bookJSON != "" {
		b, errs := book.Load(zerolog.Nop(), book.Source{Name: "test", Data: []byte(bookJSON)})
		if len(errs) != 0 {
			t.Fatalf("book: %v", errs)
		}
		opts.Book = b
	}
	return NewWorker(opts, zerolog.Nop())
}

func handle(t *testing.T, w *Worker, req Request) (Response, []Response, error) {
	t.Helper()
	var progress []Response
	resp, err := w.Handle(context.Background(), req, func(r Response) { progress = append(progress, r) })
	return resp, progress, err
}

func TestMoves(t *testing.T) {
	w := newTestWorker(t, "")
	resp, _, err := handle(t, w, Request{Action: ActionMoves, FEN: startFEN, Field: 12})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Moves) != 2 || resp.Moves[0] != 20 || resp.Moves[1] != 28 {
		t.Fatalf("e2 moves got %v want [20 28]", resp.Moves)
	}
	resp, _, err = handle(t, w, Request{Action: ActionMoves, FEN: startFEN, Field: 35})
	if err != nil || len(resp.Moves) != 0 || resp.Action != ActionMoves {
		t.Fatalf("empty origin got %+v err %v", resp, err)
	}
	if _, _, err := handle(t, w, Request{Action: ActionMoves, FEN: startFEN, Field: 64}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("out of range field err %v", err)
	}
}

func TestApply(t *testing.T) {
	w := newTestWorker(t, "")
	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"double push", Request{FEN: startFEN, From: 12, To: 28},
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"},
		{"illegal", Request{FEN: startFEN, From: 12, To: 36}, startFEN},
		{"empty origin", Request{FEN: startFEN, From: 27, To: 35}, startFEN},
		{"under promotion", Request{FEN: "8/P6k/8/8/8/8/8/K7 w - - 0 1", From: 48, To: 56, Promotion: "N"},
			"N7/7k/8/8/8/8/8/K7 b - - 0 1"},
		{"default queen", Request{FEN: "8/P6k/8/8/8/8/8/K7 w - - 0 1", From: 48, To: 56},
			"Q7/7k/8/8/8/8/8/K7 b - - 0 1"},
	}
	for _, c := range cases {
		c.req.Action = ActionApply
		resp, _, err := handle(t, w, c.req)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if resp.FEN != c.want {
			t.Fatalf("%s: got %q want %q", c.name, resp.FEN, c.want)
		}
	}
}

func TestBadFEN(t *testing.T) {
	w := newTestWorker(t, "")
	_, _, err := handle(t, w, Request{Action: ActionPerft, FEN: "not a fen", Depth: 1})
	if !errors.Is(err, ErrBadRequest) || !errors.Is(err, rules.ErrInvalidFEN) {
		t.Fatalf("err got %v", err)
	}
}

func TestUnknownAction(t *testing.T) {
	w := newTestWorker(t, "")
	if _, _, err := handle(t, w, Request{Action: "castle"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err got %v want ErrUnknownAction", err)
	}
}

func TestPerft(t *testing.T) {
	w := newTestWorker(t, "")
	resp, _, err := handle(t, w, Request{Action: ActionPerft, FEN: startFEN, Depth: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Nodes != 8902 || resp.Depth != 3 {
		t.Fatalf("perft got %+v want 8902 nodes", resp)
	}
}

func TestSearch(t *testing.T) {
	w := newTestWorker(t, "")
	resp, progress, err := handle(t, w, Request{Action: ActionSearch, FEN: startFEN, Depth: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Best == "" || resp.Score == nil || resp.Depth != 3 || resp.Nodes == 0 {
		t.Fatalf("search got %+v", resp)
	}
	if resp.PV == "" || !strings.HasPrefix(resp.PV, resp.Best) {
		t.Fatalf("pv %q does not start with %q", resp.PV, resp.Best)
	}
	if len(progress) < 3 || progress[0].Action != ActionSearchProgress {
		t.Fatalf("progress got %+v", progress)
	}
}

func TestSearchLimits(t *testing.T) {
	w := newTestWorker(t, "")
	_, _, err := handle(t, w, Request{Action: ActionSearch, FEN: startFEN})
	if !errors.Is(err, engine.ErrNoLimit) {
		t.Fatalf("err got %v want ErrNoLimit", err)
	}
	resp, _, err := handle(t, w, Request{Action: ActionSearch, FEN: startFEN, Depth: 60, TimeMs: 50})
	if err != nil || resp.Best == "" || resp.Depth >= 60 {
		t.Fatalf("time limited search got %+v err %v", resp, err)
	}
}

func TestSearchStalemate(t *testing.T) {
	w := newTestWorker(t, "")
	resp, _, err := handle(t, w, Request{Action: ActionSearch, FEN: "k7/8/1Q6/8/8/8/8/7K b - - 0 1", Depth: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Best != "" || resp.Score == nil || *resp.Score != 0 {
		t.Fatalf("stalemate got %+v", resp)
	}
}

func TestSearchRootEval(t *testing.T) {
	w := newTestWorker(t, "")
	resp, _, err := handle(t, w, Request{Action: ActionSearch, FEN: startFEN, Depth: 2, DebugRootEval: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.RootEval) != 20 {
		t.Fatalf("root scores got %d want 20", len(resp.RootEval))
	}
}

func TestBookSession(t *testing.T) {
	w := newTestWorker(t, `{
		"": {"moves": {"e2e4": 10}},
		"e2e4 e7e5": {"moves": {"g1f3": 10}}
	}`)
	search := func(history string) Response {
		t.Helper()
		pos, err := rules.StartPosition().ApplyUCISequence(strings.Fields(history))
		if err != nil {
			t.Fatal(err)
		}
		resp, _, err := handle(t, w, Request{
			Action: ActionSearch, FEN: pos.FEN(), Depth: 1,
			GameID: "g", BookEnabled: true, UCIHistory: history,
		})
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	if resp := search(""); !resp.Book || resp.Best != "e2e4" {
		t.Fatalf("start got %+v want book e2e4", resp)
	}
	if resp := search("e2e4"); resp.Book {
		t.Fatalf("uncovered position answered from book")
	}
	if resp := search("e2e4 e7e5"); resp.Book {
		t.Fatalf("book came back after leaving it")
	}
	if resp := search(""); !resp.Book {
		t.Fatalf("new game did not reset the book")
	}
}

func TestBookHistoryMismatch(t *testing.T) {
	w := newTestWorker(t, `{"": {"moves": {"e2e4": 10}}, "d2d4": {"moves": {"d7d5": 3}}}`)
	pos, _ := rules.StartPosition().ApplyUCI("e2e4")
	resp, _, err := handle(t, w, Request{
		Action: ActionSearch, FEN: pos.FEN(), Depth: 1,
		GameID: "g", BookEnabled: true, UCIHistory: "d2d4",
	})
	if err != nil || resp.Book {
		t.Fatalf("inconsistent history used the book: %+v %v", resp, err)
	}
}

func TestTableReuse(t *testing.T) {
	w := newTestWorker(t, "")
	tt := w.searcherFor("g", 1).TT()
	tt.Store(42, 3, 0, rules.NullMove, 10, engine.ExactFlag)

	if _, ok := w.searcherFor("g", 1).TT().Probe(42); !ok {
		t.Fatalf("same game lost the table")
	}
	if _, ok := w.searcherFor("h", 1).TT().Probe(42); ok {
		t.Fatalf("new game kept stale entries")
	}
	if got := w.searcherFor("h", 2).TT().BudgetMB(); got != 2 {
		t.Fatalf("resized budget got %v want 2", got)
	}
	if got := w.tableSize(0); got != 1 {
		t.Fatalf("default size got %v want 1", got)
	}
	if got := w.tableSize(100); got != 4 {
		t.Fatalf("clamped size got %v want 4", got)
	}
}

func TestHistoryKeys(t *testing.T) {
	w := newTestWorker(t, "")
	w.cfg.HistoryLimit = 2
	a := rules.StartPosition()
	b, _ := a.ApplyUCI("g1f3")
	c, _ := b.ApplyUCI("g8f6")
	history := strings.Join([]string{a.FEN(), "garbage", b.FEN(), c.FEN()}, "\n")
	keys := w.historyKeys(history)
	if len(keys) != 2 || keys[0] != b.Key() || keys[1] != c.Key() {
		t.Fatalf("keys got %v", keys)
	}
	if len(w.historyKeys("")) != 0 {
		t.Fatalf("empty history produced keys")
	}
}

func TestGameIDDecoding(t *testing.T) {
	cases := map[string]GameID{
		`{"gameId": 7}`:     "7",
		`{"gameId": "abc"}`: "abc",
		`{"gameId": null}`:  "",
		`{}`:                "",
	}
	for doc, want := range cases {
		var req Request
		if err := json.Unmarshal([]byte(doc), &req); err != nil {
			t.Fatalf("%s: %v", doc, err)
		}
		if req.GameID != want {
			t.Fatalf("%s: got %q want %q", doc, req.GameID, want)
		}
	}
}

func TestSearchResponseJSON(t *testing.T) {
	score := int32(0)
	data, err := json.Marshal(Response{Action: ActionSearch, SearchID: 3, NodesCompleted: 5, NodesTotal: 9, Score: &score})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"searchId":3`, `"nodes_completed":5`, `"nodes_total":9`, `"score":0`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("%s missing from %s", key, data)
		}
	}
}

func marshalKeys(t *testing.T, resp Response) map[string]json.RawMessage {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		t.Fatal(err)
	}
	return keys
}

func TestReplyShapesKeepZeroValues(t *testing.T) {
	w := newTestWorker(t, "")
	cases := []struct {
		name string
		req  Request
		want map[string]string
	}{
		{"empty origin moves", Request{Action: ActionMoves, FEN: startFEN, Field: 27},
			map[string]string{"moves": "[]"}},
		{"perft depth 0", Request{Action: ActionPerft, FEN: startFEN, Depth: 0},
			map[string]string{"nodes": "1", "depth": "0", "ms": ""}},
		{"stalemate search", Request{Action: ActionSearch, FEN: "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", Depth: 3},
			map[string]string{"depth": "", "nodes": "", "nodes_completed": "", "nodes_total": "",
				"time_ms": "", "score": "0", "pv": `""`, "best": `""`, "book": "false", "searchId": ""}},
	}
	// an empty want only checks that the key is present
	for _, tc := range cases {
		resp, _, err := handle(t, w, tc.req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		keys := marshalKeys(t, resp)
		for key, want := range tc.want {
			got, ok := keys[key]
			if !ok {
				t.Fatalf("%s: key %q missing from %v", tc.name, key, keys)
			}
			if want != "" && string(got) != want {
				t.Fatalf("%s: %s got %s want %s", tc.name, key, got, want)
			}
		}
	}

	keys := marshalKeys(t, Response{Action: ActionSearchProgress, SearchID: 2})
	for _, key := range []string{"searchId", "depth", "nodes", "nodes_completed", "nodes_total", "time_ms"} {
		if _, ok := keys[key]; !ok {
			t.Fatalf("progress: key %q missing from %v", key, keys)
		}
	}
	keys = marshalKeys(t, Response{ID: 4, Action: ActionError, Error: "boom"})
	if _, ok := keys["moves"]; ok || string(keys["error"]) != `"boom"` {
		t.Fatalf("error reply got %v", keys)
	}
}

func TestSquareIndexFromString(t *testing.T) {
	var req Request
	if err := json.Unmarshal([]byte(`{"action":"apply","from":"12","to":28,"field":" 6 "}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.From != 12 || req.To != 28 || req.Field != 6 {
		t.Fatalf("got from %d to %d field %d", req.From, req.To, req.Field)
	}
	if err := json.Unmarshal([]byte(`{"from":"e2"}`), &req); err == nil {
		t.Fatalf("non-numeric square accepted")
	}
}
