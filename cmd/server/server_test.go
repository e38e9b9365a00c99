package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chess-worker/bridge"
	"chess-worker/config"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.TTMB = 1
	b, _ := bridge.NewFromConfig(cfg, zerolog.Nop())
	srv := httptest.NewServer(newRouter(b, config.NewStore(cfg), zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		b.Close()
	})
	return srv
}

func TestRequestEndpoint(t *testing.T) {
	srv := newTestServer(t)
	body := `{"id": 9, "action": "perft", "fen": "` + startFEN + `", "depth": 2}`
	res, err := http.Post(srv.URL+"/api/request", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var resp bridge.Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK || resp.Nodes != 400 || resp.ID != 9 {
		t.Fatalf("status %d resp %+v", res.StatusCode, resp)
	}
}

func TestRequestEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	cases := map[string]int{
		`{"action": "moves", "fen": "bogus"}`: http.StatusBadRequest,
		`{"action": "resign"}`:                http.StatusBadRequest,
		`{`:                                   http.StatusBadRequest,
	}
	for body, want := range cases {
		res, err := http.Post(srv.URL+"/api/request", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatal(err)
		}
		var resp bridge.Response
		_ = json.NewDecoder(res.Body).Decode(&resp)
		res.Body.Close()
		if res.StatusCode != want || resp.Action != bridge.ActionError {
			t.Fatalf("%s: status %d resp %+v", body, res.StatusCode, resp)
		}
	}
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/api/ping")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ping status %d", res.StatusCode)
	}
}

func TestWebsocketSearch(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(bridge.Request{ID: 1, Action: bridge.ActionMoves, FEN: startFEN, Field: 12}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(bridge.Request{ID: 2, Action: bridge.ActionSearch, FEN: startFEN, Depth: 2}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var gotMoves, gotSearch bool
	var progress int
	for !(gotMoves && gotSearch) {
		var resp bridge.Response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch resp.Action {
		case bridge.ActionMoves:
			gotMoves = len(resp.Moves) == 2
		case bridge.ActionSearchProgress:
			progress++
		case bridge.ActionSearch:
			gotSearch = resp.Best != "" && resp.SearchID == 1
		default:
			t.Fatalf("unexpected %+v", resp)
		}
	}
	if progress == 0 {
		t.Fatalf("no progress before the search result")
	}
}
