package hotload

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"go.uber.org/multierr"

	"github.com/chazu/kiln/vm"
)

// ArtifactSource supplies artifact bytes by name without giving them up.
type ArtifactSource interface {
	Artifact(name string) ([]byte, bool)
}

var generations atomic.Int64

// Loader defines runtime classes from compiled artifacts on first use and
// falls back to its parents for everything else.
//
// Resolution order for a name: classes this loader already defined, then
// its registry of staged artifacts (an entry is evicted once defined from),
// then its artifact sources, then each parent in order.
type Loader struct {
	rt         *vm.Runtime
	generation int64
	sources    []ArtifactSource
	parents    []vm.Resolver
	log        commonlog.Logger

	mu       sync.Mutex
	cache    map[string]*vm.Class
	registry map[string]*CompiledArtifact
	inflight map[string]*definition
}

type definition struct {
	done chan struct{}
	cls  *vm.Class
	err  error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithParents appends resolvers consulted after the loader's own classes.
func WithParents(parents ...vm.Resolver) LoaderOption {
	return func(l *Loader) { l.parents = append(l.parents, parents...) }
}

// WithSources appends artifact sources consulted after the registry.
func WithSources(sources ...ArtifactSource) LoaderOption {
	return func(l *Loader) { l.sources = append(l.sources, sources...) }
}

// NewLoader creates a loader defining classes into rt. Without explicit
// parents it falls back to the runtime's builtin classes.
func NewLoader(rt *vm.Runtime, opts ...LoaderOption) *Loader {
	l := &Loader{
		rt:         rt,
		generation: generations.Add(1),
		log:        commonlog.GetLogger("kiln.loader"),
		cache:      make(map[string]*vm.Class),
		registry:   make(map[string]*CompiledArtifact),
		inflight:   make(map[string]*definition),
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.parents) == 0 {
		l.parents = []vm.Resolver{rt.Resolve}
	}
	return l
}

// Generation identifies the loader in logs.
func (l *Loader) Generation() int64 { return l.generation }

// Fork creates a new loader scope whose first parent is l. Classes already
// defined by l stay as they are; the fork can define its own classes under
// the same names.
func (l *Loader) Fork(opts ...LoaderOption) *Loader {
	child := NewLoader(l.rt, append([]LoaderOption{WithParents(l.Resolve)}, opts...)...)
	l.log.Debugf("generation %d forked from %d", child.generation, l.generation)
	return child
}

// AddArtifacts stages artifacts, replacing staged entries of the same name
// that were never defined.
func (l *Loader) AddArtifacts(arts map[string]*CompiledArtifact) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, art := range arts {
		if _, defined := l.cache[name]; defined {
			l.log.Warningf("generation %d: %s is already defined, staged artifact only serves a new scope", l.generation, name)
		}
		l.registry[name] = art
	}
}

// Purge drops staged artifacts. Classes already defined are untouched.
func (l *Loader) Purge(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		if _, ok := l.registry[name]; ok {
			delete(l.registry, name)
			l.log.Debugf("generation %d: purged staged %s", l.generation, name)
		}
	}
}

// Defined reports whether l itself has defined name.
func (l *Loader) Defined(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache[name]
	return ok
}

// Staged reports whether an artifact for name waits in the registry.
func (l *Loader) Staged(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.registry[name]
	return ok
}

// DefinedNames lists the classes l has defined.
func (l *Loader) DefinedNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.cache))
	for name := range l.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve is the loader as a vm.Resolver. Failures other than "not found"
// are logged.
func (l *Loader) Resolve(name string) (*vm.Class, bool) {
	cls, err := l.Load(name)
	if err != nil {
		var nf *NameNotFoundError
		if !errors.As(err, &nf) {
			l.log.Errorf("generation %d: %v", l.generation, err)
		}
		return nil, false
	}
	return cls, true
}

// Load resolves one name.
func (l *Loader) Load(name string) (*vm.Class, error) {
	return l.load(name, nil)
}

// LoadAll resolves every name. Failures are collected per name; the
// returned map holds every name that did resolve.
func (l *Loader) LoadAll(names ...string) (map[string]*vm.Class, error) {
	out := make(map[string]*vm.Class, len(names))
	var errs error
	for _, name := range names {
		cls, err := l.Load(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[name] = cls
	}
	return out, errs
}

func (l *Loader) load(name string, visiting []string) (cls *vm.Class, err error) {
	for _, v := range visiting {
		if v == name {
			return nil, &DefineError{Name: name, Err: fmt.Errorf("superclass cycle through %v", visiting)}
		}
	}

	l.mu.Lock()
	if cls, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return cls, nil
	}
	if d, ok := l.inflight[name]; ok {
		l.mu.Unlock()
		<-d.done
		return d.cls, d.err
	}
	art, staged := l.registry[name]
	var data []byte
	if staged {
		data = art.Bytecode
	} else {
		for _, src := range l.sources {
			if b, ok := src.Artifact(name); ok {
				data = b
				break
			}
		}
	}
	if data == nil {
		l.mu.Unlock()
		return l.delegate(name)
	}
	d := &definition{done: make(chan struct{})}
	l.inflight[name] = d
	l.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.cls, d.err = nil, &DefineError{Name: name, Err: fmt.Errorf("panic: %v", r)}
		}
		l.settle(name, d, art, staged)
		cls, err = d.cls, d.err
	}()
	d.cls, d.err = l.define(name, data, append(visiting, name))
	return d.cls, d.err
}

// settle publishes the outcome of an in-flight definition and wakes its
// waiters. A failed definition stays staged so a later load retries it.
func (l *Loader) settle(name string, d *definition, art *CompiledArtifact, staged bool) {
	l.mu.Lock()
	delete(l.inflight, name)
	if d.err == nil {
		l.cache[name] = d.cls
		if staged && l.registry[name] == art {
			delete(l.registry, name)
		}
	}
	l.mu.Unlock()
	close(d.done)

	if d.err == nil {
		l.log.Infof("generation %d: defined %s", l.generation, name)
	} else {
		l.log.Warningf("generation %d: %v", l.generation, d.err)
	}
}

func (l *Loader) delegate(name string) (*vm.Class, error) {
	for _, parent := range l.parents {
		if cls, ok := parent(name); ok {
			return cls, nil
		}
	}
	return nil, &NameNotFoundError{Name: name}
}

func (l *Loader) define(name string, data []byte, visiting []string) (*vm.Class, error) {
	img, err := vm.DecodeImage(data)
	if err != nil {
		return nil, &DefineError{Name: name, Err: err}
	}
	if img.Name != name {
		return nil, &DefineError{Name: name, Err: fmt.Errorf("artifact defines %s", img.Name)}
	}
	super, err := l.load(img.Superclass, visiting)
	if err != nil {
		return nil, &DefineError{Name: name, Err: fmt.Errorf("superclass %s: %w", img.Superclass, err)}
	}
	cls, err := l.rt.Define(img, super, l.Resolve)
	if err != nil {
		return nil, &DefineError{Name: name, Err: err}
	}
	return cls, nil
}
