package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/kiln/compiler"
	"github.com/chazu/kiln/hotload"
)

// Every test gets its own engine so loader generations never leak between
// tests.

func newTestEngine(t *testing.T) *hotload.Engine {
	t.Helper()
	e, err := hotload.New(hotload.DefaultConfig(), compiler.NewBackend())
	if err != nil {
		t.Fatalf("hotload.New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// newTestEvalService creates an EvalService over a fresh engine.
func newTestEvalService(t *testing.T) *EvalService {
	return NewEvalService(newTestEngine(t), NewHandleStore())
}

// newTestClient serves a fresh engine over httptest and returns a client
// for it.
func newTestClient(t *testing.T) (*Client, *KilnServer) {
	t.Helper()
	s := New(newTestEngine(t))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return NewClient(ts.Client(), ts.URL), s
}

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

func codeOf(err error) connect.Code {
	return connect.CodeOf(err)
}
