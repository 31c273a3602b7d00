package watch

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/compiler/hash"
	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
)

// Result describes one Sync.
type Result struct {
	// Generation is the delegate loader serving the project after the sync.
	Generation int64
	// Changed lists units that are new or whose definition changed.
	Changed []string
	// Removed lists units that no longer exist.
	Removed []string
	// Skipped is set when every unit kept its fingerprint and nothing was
	// recompiled.
	Skipped bool
	// Diagnostics holds the diagnostics of a failed round.
	Diagnostics []hotload.Diagnostic
}

// Reloader recompiles a project's units and serves the resulting classes
// through a reloading loader. Edits that leave a unit's fingerprint alone
// (formatting, comments, local names) do not trigger a round.
type Reloader struct {
	engine  *hotload.Engine
	project *manifest.Manifest
	store   *hotload.ArtifactStore
	loader  *hotload.ReloadingLoader
	log     commonlog.Logger

	mu     sync.Mutex
	prints map[string]unitPrint
	synced bool
}

type unitPrint struct {
	fp    hash.Fingerprint
	valid bool
}

// NewReloader creates a reloader for project compiling with engine.
func NewReloader(engine *hotload.Engine, project *manifest.Manifest) *Reloader {
	store := hotload.NewArtifactStore()
	return &Reloader{
		engine:  engine,
		project: project,
		store:   store,
		loader:  hotload.NewReloadingLoader(engine.Runtime(), nil, store),
		log:     commonlog.GetLogger("kiln.watch"),
		prints:  make(map[string]unitPrint),
	}
}

// Loader returns the reloading loader the project's classes come from.
func (r *Reloader) Loader() *hotload.ReloadingLoader { return r.loader }

// Sync reads the project's sources and, when any unit changed, compiles the
// whole set and reloads. A failed round leaves the previous classes in
// service and is retried on the next Sync.
func (r *Reloader) Sync(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := r.project.SourceFiles()
	if err != nil {
		return nil, err
	}

	prints := make(map[string]unitPrint, len(files))
	res := &Result{}
	for _, f := range files {
		fp, err := hash.UnitFingerprint(f.Text)
		p := unitPrint{fp: fp, valid: err == nil}
		prints[f.Name] = p
		if prev, ok := r.prints[f.Name]; !ok || !prev.valid || !p.valid || prev.fp != p.fp {
			res.Changed = append(res.Changed, f.Name)
		}
	}
	for name := range r.prints {
		if _, ok := prints[name]; !ok {
			res.Removed = append(res.Removed, name)
		}
	}
	sort.Strings(res.Removed)

	if r.synced && len(res.Changed) == 0 && len(res.Removed) == 0 {
		res.Skipped = true
		res.Generation = r.loader.Loader().Generation()
		return res, nil
	}

	arts, err := r.engine.CompileContext(ctx, manifest.SourceMap(files))
	if err != nil {
		var failure *hotload.CompilationFailure
		if errors.As(err, &failure) {
			res.Diagnostics = failure.Diagnostics
		}
		res.Generation = r.loader.Loader().Generation()
		r.log.Warningf("round failed, generation %d stays in service: %v", res.Generation, err)
		return res, err
	}

	var stale []string
	for _, name := range r.store.Names() {
		if _, ok := arts[name]; !ok {
			stale = append(stale, name)
		}
	}
	r.store.Remove(stale...)
	r.store.PutAll(arts)
	res.Generation = r.loader.Reload().Generation()

	r.prints = prints
	r.synced = true
	r.log.Infof("generation %d: %d changed, %d removed, %d classes",
		res.Generation, len(res.Changed), len(res.Removed), r.store.Len())
	return res, nil
}

// EntryPoint resolves the class-side selector of the named class in the
// current generation.
func (r *Reloader) EntryPoint(name, selector string) (*hotload.EntryPoint, error) {
	cls, err := r.loader.Load(name)
	if err != nil {
		return nil, err
	}
	return hotload.NewEntryPoint(r.engine.Runtime(), cls, selector)
}
