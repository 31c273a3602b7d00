package hotload

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/vm"
)

// ReloadingLoader resolves names from a set of artifact sources through a
// delegate Loader. Changing the set, or calling Reload, swaps in a fresh
// delegate so the next lookups define classes from the current bytes.
// Readers never lock: they load the current snapshot.
type ReloadingLoader struct {
	rt      *vm.Runtime
	parents []vm.Resolver
	log     commonlog.Logger

	mu    sync.Mutex // serializes writers
	state atomic.Pointer[reloadState]
}

type reloadState struct {
	sources []ArtifactSource
	loader  *Loader
}

// NewReloadingLoader creates a reloading loader over sources.
func NewReloadingLoader(rt *vm.Runtime, parents []vm.Resolver, sources ...ArtifactSource) *ReloadingLoader {
	r := &ReloadingLoader{
		rt:      rt,
		parents: parents,
		log:     commonlog.GetLogger("kiln.reload"),
	}
	r.swap(slices.Clone(sources))
	return r
}

func (r *ReloadingLoader) swap(sources []ArtifactSource) *Loader {
	opts := []LoaderOption{WithSources(sources...)}
	if len(r.parents) > 0 {
		opts = append(opts, WithParents(r.parents...))
	}
	l := NewLoader(r.rt, opts...)
	r.state.Store(&reloadState{sources: sources, loader: l})
	r.log.Debugf("reloaded: generation %d over %d sources", l.Generation(), len(sources))
	return l
}

// AddStore adds a source and reloads.
func (r *ReloadingLoader) AddStore(src ArtifactSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load().sources
	next := make([]ArtifactSource, 0, len(cur)+1)
	next = append(next, cur...)
	r.swap(append(next, src))
}

// RemoveStore removes a source and reloads. Unknown sources are ignored.
func (r *ReloadingLoader) RemoveStore(src ArtifactSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load().sources
	next := make([]ArtifactSource, 0, len(cur))
	for _, s := range cur {
		if s != src {
			next = append(next, s)
		}
	}
	if len(next) == len(cur) {
		return
	}
	r.swap(next)
}

// Reload discards every class defined so far and starts a new delegate
// over the same sources.
func (r *ReloadingLoader) Reload() *Loader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swap(r.state.Load().sources)
}

// Loader returns the current delegate.
func (r *ReloadingLoader) Loader() *Loader { return r.state.Load().loader }

// Sources returns the current snapshot of sources.
func (r *ReloadingLoader) Sources() []ArtifactSource {
	return slices.Clone(r.state.Load().sources)
}

// Resolve resolves through the current delegate.
func (r *ReloadingLoader) Resolve(name string) (*vm.Class, bool) {
	return r.Loader().Resolve(name)
}

// Load resolves through the current delegate.
func (r *ReloadingLoader) Load(name string) (*vm.Class, error) {
	return r.Loader().Load(name)
}
