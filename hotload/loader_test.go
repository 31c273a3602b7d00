package hotload

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/kiln/vm"
)

func TestLoaderDefinesOnFirstUse(t *testing.T) {
	rt := vm.NewRuntime()
	l := NewLoader(rt)
	l.AddArtifacts(artifacts(t, map[string]string{"pkg.Base": "Object", "pkg.Derived": "pkg.Base"}))

	if l.Defined("pkg.Derived") || !l.Staged("pkg.Derived") {
		t.Fatal("nothing should be defined before the first load")
	}
	d, err := l.Load("pkg.Derived")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Superclass == nil || d.Superclass.Name != "pkg.Base" {
		t.Errorf("superclass = %v", d.Superclass)
	}
	if !l.Defined("pkg.Base") {
		t.Error("loading a subclass should define its superclass")
	}
	if l.Staged("pkg.Derived") || l.Staged("pkg.Base") {
		t.Error("defined names should be evicted from the registry")
	}

	again, _ := l.Load("pkg.Derived")
	if again != d {
		t.Error("a name must be defined at most once per loader")
	}
	if got := l.DefinedNames(); len(got) != 2 || got[0] != "pkg.Base" {
		t.Errorf("DefinedNames() = %v", got)
	}
}

func TestLoaderFallsBackToParents(t *testing.T) {
	rt := vm.NewRuntime()
	l := NewLoader(rt)
	cls, err := l.Load("Error")
	if err != nil || cls != rt.Error {
		t.Errorf("Load(Error) = %v, %v", cls, err)
	}

	_, err = l.Load("nowhere.X")
	var nf *NameNotFoundError
	if !errors.As(err, &nf) || nf.Name != "nowhere.X" {
		t.Errorf("error = %v, want NameNotFoundError", err)
	}
	if _, ok := l.Resolve("nowhere.X"); ok {
		t.Error("Resolve should report a missing name")
	}
}

func TestLoaderDefineErrors(t *testing.T) {
	rt := vm.NewRuntime()
	tests := []struct {
		name string
		arts map[string]*CompiledArtifact
		load string
		want string
	}{
		{
			name: "name mismatch",
			arts: map[string]*CompiledArtifact{"A": {Name: "A", Bytecode: classImage(t, "B", "Object")}},
			load: "A",
			want: "artifact defines B",
		},
		{
			name: "garbage",
			arts: map[string]*CompiledArtifact{"A": {Name: "A", Bytecode: []byte("not cbor")}},
			load: "A",
			want: "unmarshal",
		},
		{
			name: "missing superclass",
			arts: artifacts(t, map[string]string{"A": "Gone"}),
			load: "A",
			want: "superclass Gone",
		},
		{
			name: "cycle",
			arts: artifacts(t, map[string]string{"A": "B", "B": "A"}),
			load: "A",
			want: "cycle",
		},
		{
			name: "builtin superclass",
			arts: artifacts(t, map[string]string{"A": "String"}),
			load: "A",
			want: "cannot subclass builtin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(rt)
			l.AddArtifacts(tt.arts)
			_, err := l.Load(tt.load)
			var de *DefineError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DefineError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
			if l.Defined(tt.load) {
				t.Error("a failed definition must not be cached")
			}
		})
	}
}

func TestLoaderPurge(t *testing.T) {
	l := NewLoader(vm.NewRuntime())
	l.AddArtifacts(artifacts(t, map[string]string{"A": "Object"}))
	l.Purge("A", "unknown")
	if _, err := l.Load("A"); err == nil {
		t.Error("purged artifact should no longer resolve")
	}
}

func TestLoaderLoadAllCollectsFailures(t *testing.T) {
	l := NewLoader(vm.NewRuntime())
	l.AddArtifacts(artifacts(t, map[string]string{"A": "Object", "B": "Missing"}))
	classes, err := l.LoadAll("A", "B", "C")
	if len(classes) != 1 || classes["A"] == nil {
		t.Errorf("classes = %v", classes)
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(errs), err)
	}
}

func TestLoaderFork(t *testing.T) {
	rt := vm.NewRuntime()
	base := NewLoader(rt)
	base.AddArtifacts(artifacts(t, map[string]string{"A": "Object"}))
	a, err := base.Load("A")
	if err != nil {
		t.Fatal(err)
	}

	child := base.Fork()
	if child.Generation() <= base.Generation() {
		t.Error("generations should increase")
	}
	if got, _ := child.Load("A"); got != a {
		t.Error("a fork should see its parent's classes")
	}

	child.AddArtifacts(artifacts(t, map[string]string{"A": "Error"}))
	shadow, err := child.Load("A")
	if err != nil {
		t.Fatal(err)
	}
	if shadow == a || shadow.Superclass != rt.Error {
		t.Error("a fork may define its own class under a parent's name")
	}
	if got, _ := base.Load("A"); got != a {
		t.Error("the parent's class must be untouched by the fork")
	}
}

func TestLoaderSources(t *testing.T) {
	store := NewArtifactStore()
	store.Put("A", classImage(t, "A", "Object"))
	l := NewLoader(vm.NewRuntime(), WithSources(store))
	if _, err := l.Load("A"); err != nil {
		t.Fatalf("Load from source: %v", err)
	}
	if store.Len() != 1 {
		t.Error("loading from a source must not remove the entry")
	}
}

func TestLoaderConcurrentLoad(t *testing.T) {
	l := NewLoader(vm.NewRuntime())
	l.AddArtifacts(artifacts(t, map[string]string{"A": "Object", "B": "A"}))

	results := make([]*vm.Class, 32)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			cls, err := l.Load("B")
			results[i] = cls
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, cls := range results {
		if cls != results[0] {
			t.Fatal("concurrent loads must observe the same class")
		}
	}
}

func TestReloadingLoader(t *testing.T) {
	rt := vm.NewRuntime()
	store := NewArtifactStore()
	store.Put("A", classImage(t, "A", "Object"))
	r := NewReloadingLoader(rt, nil, store)

	first, err := r.Load("A")
	if err != nil {
		t.Fatal(err)
	}
	if same, _ := r.Load("A"); same != first {
		t.Error("without a reload the same class should come back")
	}

	store.Put("A", classImage(t, "A", "Error"))
	if same, _ := r.Load("A"); same != first {
		t.Error("changed bytes should not be seen until a reload")
	}
	r.Reload()
	second, err := r.Load("A")
	if err != nil {
		t.Fatal(err)
	}
	if second == first || second.Superclass != rt.Error {
		t.Error("a reload should define the class from the current bytes")
	}
}

func TestReloadingLoaderStores(t *testing.T) {
	r := NewReloadingLoader(vm.NewRuntime(), nil)
	extra := NewArtifactStore()
	extra.Put("B", classImage(t, "B", "Object"))

	if _, ok := r.Resolve("B"); ok {
		t.Fatal("B should not resolve before its store is added")
	}
	gen := r.Loader().Generation()
	r.AddStore(extra)
	if r.Loader().Generation() == gen {
		t.Error("adding a store should swap the delegate")
	}
	if _, ok := r.Resolve("B"); !ok {
		t.Error("B should resolve after AddStore")
	}
	if len(r.Sources()) != 1 {
		t.Errorf("Sources() = %v", r.Sources())
	}

	gen = r.Loader().Generation()
	r.RemoveStore(NewArtifactStore())
	if r.Loader().Generation() != gen {
		t.Error("removing an unknown store should not reload")
	}
	r.RemoveStore(extra)
	if _, ok := r.Resolve("B"); ok {
		t.Error("B should not resolve after RemoveStore")
	}
}

// within fails the test when fn does not return in time.
func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("call did not return within %v", d)
	}
}

func TestLoaderRecoversFromPanicDuringDefine(t *testing.T) {
	boom := func(name string) (*vm.Class, bool) {
		if name == "Shaky" {
			panic("resolver exploded")
		}
		return nil, false
	}
	rt := vm.NewRuntime()
	l := NewLoader(rt, WithParents(rt.Resolve, boom))
	l.AddArtifacts(artifacts(t, map[string]string{"A": "Shaky"}))

	for range 2 {
		var err error
		within(t, 5*time.Second, func() { _, err = l.LoadAll("A") })
		var de *DefineError
		if !errors.As(err, &de) || !strings.Contains(err.Error(), "resolver exploded") {
			t.Fatalf("LoadAll error = %v, want a DefineError carrying the panic", err)
		}
	}
	if l.Defined("A") || !l.Staged("A") {
		t.Error("a failed definition should stay staged and undefined")
	}
}
