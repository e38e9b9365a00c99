package bridge

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Stream adapts a Bridge to a message transport: every submitted request has its
// progress and final response written through send. send calls are serialized.
type Stream struct {
	b    *Bridge
	send func(Response) error
	log  zerolog.Logger

	sendMu sync.Mutex
	mu     sync.Mutex
	live   map[int64]*Pending
	wg     sync.WaitGroup
}

func NewStream(b *Bridge, send func(Response) error, log zerolog.Logger) *Stream {
	return &Stream{b: b, send: send, log: log, live: make(map[int64]*Pending)}
}

// Submit queues req, or cancels an earlier request when req is a cancel.
func (s *Stream) Submit(req Request) {
	if req.Action == ActionCancel {
		s.mu.Lock()
		p := s.live[req.ID]
		s.mu.Unlock()
		if p != nil {
			p.Cancel()
		}
		return
	}
	p := s.b.Submit(req)
	s.mu.Lock()
	s.live[req.ID] = p
	s.mu.Unlock()

	s.wg.Add(1)
	go s.forward(p)
}

// Reject answers a message that could not be decoded.
func (s *Stream) Reject(err error) {
	s.write(Response{Action: ActionError, Error: fmt.Errorf("%w: %v", ErrBadRequest, err).Error()})
}

// Wait blocks until every submitted request has been answered.
func (s *Stream) Wait() { s.wg.Wait() }

// CancelAll cancels every request still waiting or running.
func (s *Stream) CancelAll() {
	s.mu.Lock()
	live := make([]*Pending, 0, len(s.live))
	for _, p := range s.live {
		live = append(live, p)
	}
	s.mu.Unlock()
	for _, p := range live {
		p.Cancel()
	}
}

func (s *Stream) forward(p *Pending) {
	defer s.wg.Done()
	for resp := range p.Progress() {
		s.write(resp)
	}
	resp, _ := p.Result()
	s.write(resp)

	s.mu.Lock()
	if s.live[p.req.ID] == p {
		delete(s.live, p.req.ID)
	}
	s.mu.Unlock()
}

func (s *Stream) write(resp Response) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.send(resp); err != nil {
		s.log.Debug().Err(err).Str("action", resp.Action).Msg("send failed")
	}
}
