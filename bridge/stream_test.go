package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type recorder struct {
	mu    sync.Mutex
	resps []Response
}

func (r *recorder) send(resp Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resps = append(r.resps, resp)
	return nil
}

func TestStreamForwardsProgressAndResults(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, req Request, progress func(Response)) (Response, error) {
		if req.Action == ActionSearch {
			progress(Response{Action: ActionSearchProgress, Depth: 1})
		}
		return Response{Action: req.Action}, nil
	})
	b := New(h, zerolog.Nop())
	defer b.Close()
	var rec recorder
	s := NewStream(b, rec.send, zerolog.Nop())

	s.Submit(Request{ID: 1, Action: ActionSearch})
	s.Submit(Request{ID: 2, Action: ActionMoves})
	s.Wait()

	var progress, finals int
	for _, r := range rec.resps {
		switch r.Action {
		case ActionSearchProgress:
			progress++
			if r.SearchID != 1 {
				t.Fatalf("progress search id got %d want 1", r.SearchID)
			}
		case ActionSearch, ActionMoves:
			finals++
		}
	}
	if progress != 1 || finals != 2 {
		t.Fatalf("got %d progress and %d results: %+v", progress, finals, rec.resps)
	}
}

func TestStreamCancel(t *testing.T) {
	release := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, req Request, _ func(Response)) (Response, error) {
		if req.ID == 1 {
			<-release
		}
		return Response{Action: req.Action}, nil
	})
	b := New(h, zerolog.Nop())
	defer b.Close()
	var rec recorder
	s := NewStream(b, rec.send, zerolog.Nop())

	s.Submit(Request{ID: 1, Action: ActionSearch})
	s.Submit(Request{ID: 2, Action: ActionSearch})
	s.Submit(Request{ID: 2, Action: ActionCancel})
	close(release)
	s.Wait()

	for _, r := range rec.resps {
		if r.ID == 2 && (r.Action != ActionError || r.Error != context.Canceled.Error()) {
			t.Fatalf("cancelled request answered %+v", r)
		}
	}
	if len(rec.resps) != 2 {
		t.Fatalf("responses got %d want 2", len(rec.resps))
	}
}

func TestStreamReject(t *testing.T) {
	b := New(HandlerFunc(func(context.Context, Request, func(Response)) (Response, error) {
		return Response{}, nil
	}), zerolog.Nop())
	defer b.Close()
	var rec recorder
	s := NewStream(b, rec.send, zerolog.Nop())
	s.Reject(errors.New("unexpected EOF"))
	if len(rec.resps) != 1 || rec.resps[0].Action != ActionError {
		t.Fatalf("got %+v", rec.resps)
	}
}
