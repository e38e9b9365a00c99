// Package bridge runs engine requests one at a time, in arrival order, on a
// dedicated goroutine. Callers submit typed requests and wait on the returned
// Pending without ever touching engine state themselves.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrEngineFault   = errors.New("bridge: engine fault")
	ErrClosed        = errors.New("bridge: closed")
	ErrUnknownAction = errors.New("bridge: unknown action")
	ErrBadRequest    = errors.New("bridge: bad request")
)

const progressBuffer = 64

// Handler executes one request. progress may be called any number of times before
// Handle returns; it must not be retained afterwards.
type Handler interface {
	Handle(ctx context.Context, req Request, progress func(Response)) (Response, error)
}

type HandlerFunc func(ctx context.Context, req Request, progress func(Response)) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request, progress func(Response)) (Response, error) {
	return f(ctx, req, progress)
}

// Pending is the caller's handle on a submitted request.
type Pending struct {
	bridge   *Bridge
	req      Request
	searchID uint64

	ctx    context.Context
	cancel context.CancelFunc

	progress chan Response
	done     chan struct{}
	once     sync.Once
	resp     Response
	err      error
}

func (p *Pending) Request() Request { return p.req }

// SearchID is the identifier stamped on the progress and result of a search, 0 otherwise.
func (p *Pending) SearchID() uint64 { return p.searchID }

// Progress yields search progress; it is closed once the request resolves.
// Updates are dropped rather than stalling the engine when nobody reads them.
func (p *Pending) Progress() <-chan Response { return p.progress }

// Done is closed once the request resolves.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request resolves or ctx ends. A failed request still
// carries an error-shaped Response.
func (p *Pending) Wait(ctx context.Context) (Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Result blocks until the request resolves.
func (p *Pending) Result() (Response, error) {
	<-p.done
	return p.resp, p.err
}

// Cancel drops the request if it is still queued, or asks a running search to stop
// after its current depth.
func (p *Pending) Cancel() {
	p.cancel()
	if p.bridge != nil && p.bridge.remove(p) {
		p.resolve(Response{}, context.Canceled)
	}
}

func (p *Pending) resolve(resp Response, err error) {
	p.once.Do(func() {
		if err != nil {
			resp = errorResponse(p.req, err)
		}
		resp.ID = p.req.ID
		if p.searchID != 0 {
			resp.SearchID = p.searchID
		}
		p.resp, p.err = resp, err
		p.cancel()
		close(p.progress)
		close(p.done)
	})
}

func (p *Pending) emit(resp Response) {
	resp.ID = p.req.ID
	resp.SearchID = p.searchID
	select {
	case p.progress <- resp:
	default:
	}
}

// Bridge is safe for concurrent Submit calls; requests still execute one by one.
type Bridge struct {
	handler Handler
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	queue      []*Pending
	closed     bool
	nextSearch uint64
	wake       chan struct{}
	stopped    chan struct{}
}

func New(h Handler, log zerolog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		handler: h,
		log:     log.With().Str("component", "bridge").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go b.loop()
	return b
}

// Submit queues req behind every earlier submission.
func (b *Bridge) Submit(req Request) *Pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, cancel := context.WithCancel(b.ctx)
	p := &Pending{
		bridge:   b,
		req:      req,
		ctx:      ctx,
		cancel:   cancel,
		progress: make(chan Response, progressBuffer),
		done:     make(chan struct{}),
	}
	if b.closed {
		p.resolve(Response{}, ErrClosed)
		return p
	}
	if req.Action == ActionSearch {
		b.nextSearch++
		p.searchID = b.nextSearch
	}
	b.queue = append(b.queue, p)
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return p
}

// Queued is the number of requests waiting behind the running one.
func (b *Bridge) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close rejects queued requests with ErrClosed, stops the running one and waits
// for the dispatch goroutine to exit.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.stopped
		return
	}
	b.closed = true
	queued := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, p := range queued {
		p.resolve(Response{}, ErrClosed)
	}
	b.cancel()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.stopped
}

func (b *Bridge) loop() {
	defer close(b.stopped)
	for {
		p, ok := b.next()
		if !ok {
			return
		}
		if p == nil {
			<-b.wake
			continue
		}
		b.run(p)
	}
}

// next pops the queue head. A nil Pending with ok means the queue is empty.
func (b *Bridge) next() (*Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	if len(b.queue) == 0 {
		return nil, true
	}
	p := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return p, true
}

// remove takes p out of the queue and reports whether it was still waiting.
func (b *Bridge) remove(p *Pending) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.queue {
		if q == p {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bridge) run(p *Pending) {
	if err := p.ctx.Err(); err != nil {
		p.resolve(Response{}, err)
		return
	}
	log := b.log.With().Str("action", p.req.Action).Int64("id", p.req.ID).Logger()
	resp, err, fault := b.call(p)
	if fault != nil {
		log.Error().Err(fault).Msg("handler panicked")
		b.failAll(p, fault)
		return
	}
	if err != nil {
		log.Debug().Err(err).Msg("request failed")
	}
	p.resolve(resp, err)
}

func (b *Bridge) call(p *Pending) (resp Response, err, fault error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Debug().Bytes("stack", debug.Stack()).Msg("recovered")
			fault = fmt.Errorf("%w: %v", ErrEngineFault, r)
		}
	}()
	resp, err = b.handler.Handle(p.ctx, p.req, p.emit)
	return resp, err, nil
}

// failAll rejects the faulted request and everything queued behind it. Later
// submissions are served normally.
func (b *Bridge) failAll(p *Pending, fault error) {
	b.mu.Lock()
	queued := b.queue
	b.queue = nil
	b.mu.Unlock()

	p.resolve(Response{}, fault)
	for _, q := range queued {
		q.resolve(Response{}, fmt.Errorf("%w: rejected behind request %d", ErrEngineFault, p.req.ID))
	}
}
