package hotload

import (
	"context"
	"fmt"
)

// compileRequest is one compile round to run on the worker goroutine.
type compileRequest struct {
	fn   func() (map[string]*CompiledArtifact, error)
	done chan compileResult
}

type compileResult struct {
	arts map[string]*CompiledArtifact
	err  error
}

// compileWorker runs compile rounds on a dedicated goroutine so a caller
// can stop waiting for one. A round that is abandoned keeps running to
// completion; its result is dropped.
type compileWorker struct {
	requests chan compileRequest
	quit     chan struct{}
}

func newCompileWorker() *compileWorker {
	w := &compileWorker{
		requests: make(chan compileRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *compileWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

// drain fails every request still queued when the worker stops.
func (w *compileWorker) drain() {
	for {
		select {
		case req := <-w.requests:
			req.done <- compileResult{err: ErrClosed}
		default:
			return
		}
	}
}

// execute runs one round, recovering from panics.
func (w *compileWorker) execute(fn func() (map[string]*CompiledArtifact, error)) (result compileResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("hotload: compile worker: %v", r)
		}
	}()
	result.arts, result.err = fn()
	return result
}

// Do submits fn and waits for it or for ctx to end, whichever is first.
func (w *compileWorker) Do(ctx context.Context, fn func() (map[string]*CompiledArtifact, error)) (map[string]*CompiledArtifact, error) {
	req := compileRequest{fn: fn, done: make(chan compileResult, 1)}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrClosed
	}
	select {
	case res := <-req.done:
		return res.arts, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrClosed
	}
}

// Stop shuts the worker down after the round in progress. Callers still
// waiting get ErrClosed.
func (w *compileWorker) Stop() {
	close(w.quit)
}
