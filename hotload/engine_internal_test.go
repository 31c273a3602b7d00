package hotload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chazu/kiln/vm"
)

func newScriptEngine(t *testing.T, b *scriptBackend, opts ...Option) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), b, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNewWithoutBackend(t *testing.T) {
	if _, err := New(Config{}, nil); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("New(nil backend) = %v, want ErrBackendUnavailable", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	e := newScriptEngine(t, &scriptBackend{})
	cfg := e.Config()
	if cfg.Container != DefaultContainer || cfg.EntryName != DefaultEntryName {
		t.Errorf("config = %+v", cfg)
	}
	if e.Printer().Language().String() != "en" {
		t.Errorf("printer language = %v", e.Printer().Language())
	}
	if e.Synthesizer().Container() != DefaultContainer {
		t.Errorf("container = %q", e.Synthesizer().Container())
	}
}

func TestEngineRedefinitionForksGeneration(t *testing.T) {
	e := newScriptEngine(t, &scriptBackend{})
	first, err := e.CompileAndLoad(map[string]string{"A": "class Object"})
	if err != nil {
		t.Fatal(err)
	}
	gen := e.Loader().Generation()

	second, err := e.CompileAndLoad(map[string]string{"A": "class Error"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Loader().Generation() == gen {
		t.Error("redefining a loaded name should start a new generation")
	}
	if first["A"] == second["A"] {
		t.Error("the redefinition should be a distinct class")
	}
	if first["A"].Superclass != e.Runtime().Object {
		t.Error("the original class must stay as it was")
	}

	got, err := e.LoadAll("A")
	if err != nil || got["A"] != second["A"] {
		t.Errorf("LoadAll(A) = %v, %v; want the newest class", got, err)
	}
}

func TestEngineFailedRoundPurges(t *testing.T) {
	e := newScriptEngine(t, &scriptBackend{})
	e.Loader().AddArtifacts(artifacts(t, map[string]string{"A": "Object"}))
	if _, err := e.Compile(map[string]string{"A": "error no"}); err == nil {
		t.Fatal("expected a failure")
	}
	if e.Loader().Staged("A") {
		t.Error("a failed round should purge staged artifacts of its names")
	}
}

func TestEngineHostResolvers(t *testing.T) {
	host := vm.NewRuntime()
	hostClass, err := host.Define(&vm.ClassImage{Name: "host.Thing", Superclass: "Object"}, host.Object, host.Resolve)
	if err != nil {
		t.Fatal(err)
	}
	resolver := func(name string) (*vm.Class, bool) {
		if name == "host.Thing" {
			return hostClass, true
		}
		return nil, false
	}
	e := newScriptEngine(t, &scriptBackend{}, WithRuntime(host), WithHostResolvers(resolver))
	if e.Runtime() != host {
		t.Error("WithRuntime should be honored")
	}
	got, err := e.LoadAll("host.Thing")
	if err != nil || got["host.Thing"] != hostClass {
		t.Errorf("LoadAll(host.Thing) = %v, %v", got, err)
	}
}

func TestEngineDiagnosticHandler(t *testing.T) {
	var seen int
	e := newScriptEngine(t, &scriptBackend{}, WithDiagnosticHandler(func(Diagnostic) bool {
		seen++
		return true
	}))
	diags, err := e.Check(map[string]string{"A": "warn a\nwarn b"})
	if err != nil || len(diags) != 2 || seen != 2 {
		t.Errorf("Check = %v, %v; handler saw %d", diags, err, seen)
	}
}

// ---------------------------------------------------------------------------
// Worker and abandonment
// ---------------------------------------------------------------------------

func TestCompileWorker(t *testing.T) {
	w := newCompileWorker()
	defer w.Stop()

	arts, err := w.Do(context.Background(), func() (map[string]*CompiledArtifact, error) {
		return map[string]*CompiledArtifact{"A": {Name: "A"}}, nil
	})
	if err != nil || len(arts) != 1 {
		t.Errorf("Do = %v, %v", arts, err)
	}

	_, err = w.Do(context.Background(), func() (map[string]*CompiledArtifact, error) {
		panic("worker exploded")
	})
	if err == nil {
		t.Error("a panic on the worker should come back as an error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Do(ctx, func() (map[string]*CompiledArtifact, error) { return nil, nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Do = %v", err)
	}
}

func TestCompileContextAbandons(t *testing.T) {
	b := &scriptBackend{release: make(chan struct{})}
	defer close(b.release)
	e := newScriptEngine(t, b)

	arts, err := e.CompileContext(context.Background(), map[string]string{"A": "class Object"})
	if err != nil || len(arts) != 1 {
		t.Fatalf("CompileContext = %v, %v", arts, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.CompileContext(ctx, map[string]string{"A": "wait"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("CompileContext = %v, want DeadlineExceeded", err)
	}

	if _, err := e.Compile(map[string]string{"B": "class Object"}); !errors.Is(err, ErrAbandoned) {
		t.Errorf("Compile after abandonment = %v, want ErrAbandoned", err)
	}
	if _, err := e.Check(nil); !errors.Is(err, ErrAbandoned) {
		t.Errorf("Check after abandonment = %v", err)
	}
	if _, err := e.Evaluate("1", Sig()); !errors.Is(err, ErrAbandoned) {
		t.Errorf("Evaluate after abandonment = %v", err)
	}
}

func TestStoppedWorkerFailsWaitingRequests(t *testing.T) {
	w := &compileWorker{requests: make(chan compileRequest, 1), quit: make(chan struct{})}
	w.Stop()
	_, err := w.Do(context.Background(), func() (map[string]*CompiledArtifact, error) { return nil, nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Do on a stopped worker = %v, want ErrClosed", err)
	}

	queued := compileRequest{done: make(chan compileResult, 1)}
	w.requests <- queued
	w.drain()
	if res := <-queued.done; !errors.Is(res.err, ErrClosed) {
		t.Errorf("drained request = %v, want ErrClosed", res.err)
	}
}

func TestCloseReleasesQueuedCompile(t *testing.T) {
	b := &scriptBackend{release: make(chan struct{})}
	defer close(b.release)
	e := newScriptEngine(t, b)

	go e.CompileContext(context.Background(), map[string]string{"A": "wait"})
	deadline := time.Now().Add(5 * time.Second)
	for b.roundCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("the first round never started")
		}
		time.Sleep(time.Millisecond)
	}

	queued := make(chan error, 1)
	go func() {
		_, err := e.CompileContext(context.Background(), map[string]string{"B": "class Object"})
		queued <- err
	}()
	e.mu.Lock()
	w := e.worker
	e.mu.Unlock()
	for len(w.requests) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("the second round was never queued")
		}
		time.Sleep(time.Millisecond)
	}
	e.Close()

	select {
	case err := <-queued:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("queued CompileContext = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued CompileContext still blocked after Close")
	}
}

func TestCompileTimeoutFromConfig(t *testing.T) {
	b := &scriptBackend{release: make(chan struct{})}
	defer close(b.release)
	cfg := DefaultConfig()
	cfg.CompileTimeout = 20 * time.Millisecond
	e, err := New(cfg, b)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.CompileContext(context.Background(), map[string]string{"A": "wait"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CompileContext = %v, want DeadlineExceeded from the configured timeout", err)
	}
}
