package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Actions understood by the worker, and the two produced only in replies. Cancel
// is handled by Stream and names the request to drop by id.
const (
	ActionMoves          = "moves"
	ActionApply          = "apply"
	ActionPerft          = "perft"
	ActionSearch         = "search"
	ActionCancel         = "cancel"
	ActionSearchProgress = "search-progress"
	ActionError          = "error"
)

// Request is one message from the caller. Squares are indexes with a1 = 0.
type Request struct {
	ID     int64  `json:"id,omitempty"`
	Action string `json:"action"`
	FEN    string `json:"fen"`

	Field     Index  `json:"field"`
	From      Index  `json:"from"`
	To        Index  `json:"to"`
	Promotion string `json:"promotion,omitempty"`

	Depth         int     `json:"depth,omitempty"`
	TimeMs        int     `json:"timeMs,omitempty"`
	TTMb          float64 `json:"ttMb,omitempty"`
	History       string  `json:"history,omitempty"`
	GameID        GameID  `json:"gameId,omitempty"`
	BookEnabled   bool    `json:"bookEnabled,omitempty"`
	UCIHistory    string  `json:"uciHistory,omitempty"`
	DebugRootEval bool    `json:"debugRootEval,omitempty"`
}

// Response carries every reply field. On the wire each action has a fixed shape,
// see MarshalJSON.
type Response struct {
	ID     int64  `json:"id,omitempty"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`

	Moves []int  `json:"moves,omitempty"`
	FEN   string `json:"fen,omitempty"`

	Depth int    `json:"depth,omitempty"`
	Nodes uint64 `json:"nodes,omitempty"`
	Ms    int64  `json:"ms,omitempty"`

	SearchID       uint64     `json:"searchId,omitempty"`
	NodesCompleted uint64     `json:"nodes_completed,omitempty"`
	NodesTotal     uint64     `json:"nodes_total,omitempty"`
	TimeMs         int64      `json:"time_ms,omitempty"`
	NPS            uint64     `json:"nps,omitempty"`
	Score          *int32     `json:"score,omitempty"`
	Mate           int        `json:"mate,omitempty"`
	Best           string     `json:"best,omitempty"`
	PV             string     `json:"pv,omitempty"`
	Book           bool       `json:"book,omitempty"`
	RepAvoid       bool       `json:"rep_avoid,omitempty"`
	RootEval       []RootEval `json:"root_eval,omitempty"`
}

// MarshalJSON writes the keys each action always carries, zero values included.
// Error replies and unknown actions fall back to the sparse form.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Action {
	case ActionMoves:
		moves := r.Moves
		if moves == nil {
			moves = []int{}
		}
		return json.Marshal(struct {
			ID     int64  `json:"id,omitempty"`
			Action string `json:"action"`
			Moves  []int  `json:"moves"`
		}{r.ID, r.Action, moves})
	case ActionApply:
		return json.Marshal(struct {
			ID     int64  `json:"id,omitempty"`
			Action string `json:"action"`
			FEN    string `json:"fen"`
		}{r.ID, r.Action, r.FEN})
	case ActionPerft:
		return json.Marshal(struct {
			ID     int64  `json:"id,omitempty"`
			Action string `json:"action"`
			Nodes  uint64 `json:"nodes"`
			Depth  int    `json:"depth"`
			Ms     int64  `json:"ms"`
		}{r.ID, r.Action, r.Nodes, r.Depth, r.Ms})
	case ActionSearchProgress:
		return json.Marshal(struct {
			ID             int64  `json:"id,omitempty"`
			Action         string `json:"action"`
			SearchID       uint64 `json:"searchId"`
			Depth          int    `json:"depth"`
			Nodes          uint64 `json:"nodes"`
			NodesCompleted uint64 `json:"nodes_completed"`
			NodesTotal     uint64 `json:"nodes_total"`
			TimeMs         int64  `json:"time_ms"`
		}{r.ID, r.Action, r.SearchID, r.Depth, r.Nodes, r.NodesCompleted, r.NodesTotal, r.TimeMs})
	case ActionSearch:
		var score int32
		if r.Score != nil {
			score = *r.Score
		}
		return json.Marshal(struct {
			ID             int64      `json:"id,omitempty"`
			Action         string     `json:"action"`
			SearchID       uint64     `json:"searchId"`
			Depth          int        `json:"depth"`
			Nodes          uint64     `json:"nodes"`
			NodesCompleted uint64     `json:"nodes_completed"`
			NodesTotal     uint64     `json:"nodes_total"`
			TimeMs         int64      `json:"time_ms"`
			NPS            uint64     `json:"nps"`
			Score          int32      `json:"score"`
			Mate           int        `json:"mate,omitempty"`
			Best           string     `json:"best"`
			PV             string     `json:"pv"`
			Book           bool       `json:"book"`
			RepAvoid       bool       `json:"rep_avoid,omitempty"`
			RootEval       []RootEval `json:"root_eval,omitempty"`
		}{r.ID, r.Action, r.SearchID, r.Depth, r.Nodes, r.NodesCompleted, r.NodesTotal, r.TimeMs,
			r.NPS, score, r.Mate, r.Best, r.PV, r.Book, r.RepAvoid, r.RootEval})
	}
	type sparse Response
	return json.Marshal(sparse(r))
}

type RootEval struct {
	Move  string `json:"move"`
	Score int32  `json:"score"`
}

// GameID accepts either a JSON string or a number; null and absent mean no game.
type GameID string

func (g *GameID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*g = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*g = GameID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("gameId: %w", err)
		}
		if i, err := n.Int64(); err == nil {
			*g = GameID(strconv.FormatInt(i, 10))
		} else {
			*g = GameID(n.String())
		}
	}
	return nil
}

// Index is a square index that also decodes from a numeric string.
type Index int

func (i *Index) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("square index %s: %w", data, err)
	}
	*i = Index(n)
	return nil
}

func errorResponse(req Request, err error) Response {
	return Response{ID: req.ID, Action: ActionError, Error: err.Error()}
}
