package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/kiln/compiler"
	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const (
	greeter       = "namespace: app\nGreeter subclass: Object\n  classMethod: main [ ^'hello' ]\n"
	greeterSpaced = "namespace: app\n\"reformatted\"\nGreeter subclass: Object\n  classMethod: main [\n    ^'hello'\n  ]\n"
	greeterLoud   = "namespace: app\nGreeter subclass: Object\n  classMethod: main [ ^'HELLO' ]\n"
	helper        = "namespace: app\nHelper subclass: Object\n  classMethod: name [ ^'helper' ]\n"
	broken        = "namespace: app\nGreeter subclass: Nowhere\n  classMethod: main [ ^'hello' ]\n"
)

type project struct {
	t   *testing.T
	dir string
	m   *manifest.Manifest
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	toml := "[project]\nname = \"demo\"\nnamespace = \"app\"\n\n[source]\nentry = \"app.Greeter\"\n"
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	return &project{t: t, dir: dir, m: m}
}

func (p *project) write(name, text string) {
	p.t.Helper()
	if err := os.WriteFile(filepath.Join(p.dir, "src", name), []byte(text), 0644); err != nil {
		p.t.Fatal(err)
	}
}

func (p *project) remove(name string) {
	p.t.Helper()
	if err := os.Remove(filepath.Join(p.dir, "src", name)); err != nil {
		p.t.Fatal(err)
	}
}

func newTestReloader(t *testing.T, p *project) *Reloader {
	t.Helper()
	e, err := hotload.New(hotload.DefaultConfig(), compiler.NewBackend())
	if err != nil {
		t.Fatalf("hotload.New: %v", err)
	}
	t.Cleanup(e.Close)
	return NewReloader(e, p.m)
}

func greet(t *testing.T, r *Reloader) any {
	t.Helper()
	entry, err := r.EntryPoint("app.Greeter", "main")
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	v, err := entry.Invoke()
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

func TestSync_FirstRoundLoadsEverything(t *testing.T) {
	p := newProject(t)
	p.write("greeter.kiln", greeter)
	p.write("helper.kiln", helper)
	r := newTestReloader(t, p)

	res, err := r.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{"app.Greeter", "app.Helper"}, res.Changed); diff != "" {
		t.Errorf("changed (-want +got):\n%s", diff)
	}
	if res.Skipped {
		t.Error("first sync was skipped")
	}
	if got := greet(t, r); got != "hello" {
		t.Errorf("main = %v, want hello", got)
	}
}

func TestSync_EmptyProjectStillSyncs(t *testing.T) {
	p := newProject(t)
	r := newTestReloader(t, p)

	res, err := r.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Skipped || len(res.Changed) != 0 {
		t.Errorf("result = %+v", res)
	}
	again, err := r.Sync(context.Background())
	if err != nil || !again.Skipped {
		t.Errorf("second sync = %+v, %v; want skipped", again, err)
	}
}

func TestSync_FormattingOnlyIsSkipped(t *testing.T) {
	p := newProject(t)
	p.write("greeter.kiln", greeter)
	r := newTestReloader(t, p)
	first, err := r.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	p.write("greeter.kiln", greeterSpaced)
	res, err := r.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.Skipped {
		t.Errorf("reformatting triggered a round: %+v", res)
	}
	if res.Generation != first.Generation {
		t.Errorf("generation moved from %d to %d", first.Generation, res.Generation)
	}
}

func TestSync_EditSwapsGeneration(t *testing.T) {
	p := newProject(t)
	p.write("greeter.kiln", greeter)
	p.write("helper.kiln", helper)
	r := newTestReloader(t, p)
	first, err := r.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	old, err := r.EntryPoint("app.Greeter", "main")
	if err != nil {
		t.Fatal(err)
	}

	p.write("greeter.kiln", greeterLoud)
	res, err := r.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{"app.Greeter"}, res.Changed); diff != "" {
		t.Errorf("changed (-want +got):\n%s", diff)
	}
	if res.Generation == first.Generation {
		t.Error("edit did not swap the generation")
	}
	if got := greet(t, r); got != "HELLO" {
		t.Errorf("main = %v after edit, want HELLO", got)
	}

	// An entry point resolved before the swap keeps its class.
	if v, err := old.Invoke(); err != nil || v != "hello" {
		t.Errorf("old entry point = %v, %v", v, err)
	}
}

func TestSync_RemovedUnitDisappears(t *testing.T) {
	p := newProject(t)
	p.write("greeter.kiln", greeter)
	p.write("helper.kiln", helper)
	r := newTestReloader(t, p)
	if _, err := r.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.remove("helper.kiln")
	res, err := r.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{"app.Helper"}, res.Removed); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
	if _, err := r.Loader().Load("app.Helper"); err == nil {
		t.Error("removed unit still loads")
	}
}

func TestSync_FailedRoundKeepsServing(t *testing.T) {
	p := newProject(t)
	p.write("greeter.kiln", greeter)
	r := newTestReloader(t, p)
	first, err := r.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	p.write("greeter.kiln", broken)
	res, err := r.Sync(context.Background())
	var failure *hotload.CompilationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want CompilationFailure", err)
	}
	if len(res.Diagnostics) == 0 || res.Generation != first.Generation {
		t.Errorf("result = %+v", res)
	}
	if got := greet(t, r); got != "hello" {
		t.Errorf("main = %v while broken, want hello", got)
	}

	// Restoring the text that is in service needs no round.
	p.write("greeter.kiln", greeter)
	res, err = r.Sync(context.Background())
	if err != nil || !res.Skipped {
		t.Errorf("sync after revert = %+v, %v", res, err)
	}

	p.write("greeter.kiln", greeterLoud)
	if _, err := r.Sync(context.Background()); err != nil {
		t.Fatalf("sync after fix: %v", err)
	}
	if got := greet(t, r); got != "HELLO" {
		t.Errorf("main = %v after fix, want HELLO", got)
	}
}
