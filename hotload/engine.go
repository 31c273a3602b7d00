package hotload

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/vm"
)

// Engine is the process-lifetime compile and load facility. It owns one
// Session over one backend, a chain of loader generations rooted at the
// runtime's builtin classes, and the evaluation synthesizer.
//
// An Engine is safe for concurrent use. Compile rounds are serialized;
// evaluations each load into a scope of their own.
type Engine struct {
	cfg     Config
	rt      *vm.Runtime
	session *Session
	synth   *Synthesizer
	printer *DiagnosticPrinter
	worker  *compileWorker
	log     commonlog.Logger

	parents   []vm.Resolver
	handler   ProblemHandler
	abandoned atomic.Bool

	mu      sync.RWMutex
	current *Loader
}

// Option configures an Engine.
type Option func(*Engine)

// WithRuntime makes the engine define classes into rt instead of a fresh
// runtime.
func WithRuntime(rt *vm.Runtime) Option {
	return func(e *Engine) { e.rt = rt }
}

// WithHostResolvers adds resolvers consulted after the builtin classes.
func WithHostResolvers(parents ...vm.Resolver) Option {
	return func(e *Engine) { e.parents = append(e.parents, parents...) }
}

// WithDiagnosticHandler installs a problem handler on the engine's session.
func WithDiagnosticHandler(h ProblemHandler) Option {
	return func(e *Engine) { e.handler = h }
}

// New creates an engine compiling with backend. It fails with
// ErrBackendUnavailable when backend is nil.
func New(cfg Config, backend Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, ErrBackendUnavailable
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg: cfg,
		log: commonlog.GetLogger("kiln.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rt == nil {
		e.rt = vm.NewRuntime(vm.WithMaxDepth(cfg.MaxDepth))
	}
	e.current = NewLoader(e.rt, WithParents(append([]vm.Resolver{e.rt.Resolve}, e.parents...)...))
	e.session = NewSession(backend,
		WithParent(e.resolve),
		WithPurger(e),
		WithProblemHandler(e.handler),
	)
	e.synth = NewSynthesizer(cfg.Container, cfg.EntryName)
	e.printer = NewDiagnosticPrinter(cfg.Locale)
	e.log.Infof("engine ready with backend %s", backend.Name())
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Runtime returns the runtime classes are defined into.
func (e *Engine) Runtime() *vm.Runtime { return e.rt }

// Loader returns the current loader generation.
func (e *Engine) Loader() *Loader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Printer returns the diagnostic printer for the configured locale.
func (e *Engine) Printer() *DiagnosticPrinter { return e.printer }

// Synthesizer returns the engine's evaluation synthesizer.
func (e *Engine) Synthesizer() *Synthesizer { return e.synth }

func (e *Engine) resolve(name string) (*vm.Class, bool) {
	return e.Loader().Resolve(name)
}

// Purge drops staged artifacts from the current generation.
func (e *Engine) Purge(names ...string) {
	e.Loader().Purge(names...)
}

func (e *Engine) usable() error {
	if e.abandoned.Load() {
		return ErrAbandoned
	}
	return nil
}

// Close stops the compile worker, if one was started.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.worker != nil {
		e.worker.Stop()
		e.worker = nil
	}
}

// ---------------------------------------------------------------------------
// Compiling and loading
// ---------------------------------------------------------------------------

// Compile runs one round over sources, a map of qualified name to text.
func (e *Engine) Compile(sources map[string]string) (map[string]*CompiledArtifact, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	return e.session.Compile(Units(sources))
}

// CompileContext is Compile on a worker goroutine. If ctx ends first the
// call returns ctx's error and the engine is abandoned: the round may still
// finish in the background and every later call fails with ErrAbandoned.
func (e *Engine) CompileContext(ctx context.Context, sources map[string]string) (map[string]*CompiledArtifact, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok && e.cfg.CompileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CompileTimeout)
		defer cancel()
	}

	e.mu.Lock()
	if e.worker == nil {
		e.worker = newCompileWorker()
	}
	w := e.worker
	e.mu.Unlock()

	units := Units(sources)
	arts, err := w.Do(ctx, func() (map[string]*CompiledArtifact, error) {
		return e.session.Compile(units)
	})
	if err != nil && ctx.Err() != nil && err == ctx.Err() {
		e.abandoned.Store(true)
		e.log.Warningf("compile abandoned: %v", err)
	}
	return arts, err
}

// Check compiles sources for their diagnostics only.
func (e *Engine) Check(sources map[string]string) ([]Diagnostic, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	return e.session.Check(Units(sources))
}

// CompileAndLoad compiles sources and defines every produced class. Units
// that declare no class produce nothing and are absent from the result.
// When a produced name is already defined, the artifacts go to a new
// loader generation so the live class stays untouched.
func (e *Engine) CompileAndLoad(sources map[string]string) (map[string]*vm.Class, error) {
	arts, err := e.Compile(sources)
	if err != nil {
		return nil, err
	}
	for name := range sources {
		if _, ok := arts[name]; !ok {
			e.log.Debugf("%s produced no artifact", name)
		}
	}
	l := e.stage(arts)
	return l.LoadAll(sortedNames(arts)...)
}

// stage adds arts to the current generation, forking a new one first when
// any of the names is already defined there.
func (e *Engine) stage(arts map[string]*CompiledArtifact) *Loader {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name := range arts {
		if e.current.Defined(name) {
			e.current = e.current.Fork()
			e.log.Infof("%s is already defined, loading into generation %d", name, e.current.Generation())
			break
		}
	}
	e.current.AddArtifacts(arts)
	return e.current
}

// LoadAll resolves names through the current generation.
func (e *Engine) LoadAll(names ...string) (map[string]*vm.Class, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	return e.Loader().LoadAll(names...)
}

// CompileAndRun compiles the unit source under name and invokes its
// class-side selector with args.
func (e *Engine) CompileAndRun(name, selector, source string, args ...any) (any, error) {
	classes, err := e.CompileAndLoad(map[string]string{name: source})
	if err != nil {
		return nil, err
	}
	cls, ok := classes[name]
	if !ok {
		return nil, &MissingArtifactError{Name: name}
	}
	entry, err := NewEntryPoint(e.rt, cls, selector)
	if err != nil {
		return nil, err
	}
	return entry.Invoke(args...)
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Evaluate compiles expr as the body of an entry point with signature sig
// and invokes it with args.
func (e *Engine) Evaluate(expr string, sig Signature, args ...any) (any, error) {
	entry, err := e.entryPoint(expr, sig, Expression)
	if err != nil {
		return nil, err
	}
	return entry.Invoke(args...)
}

// EvaluateScript is Evaluate for a sequence of statements that returns its
// result explicitly with ^.
func (e *Engine) EvaluateScript(body string, sig Signature, args ...any) (any, error) {
	entry, err := e.entryPoint(body, sig, Script)
	if err != nil {
		return nil, err
	}
	return entry.Invoke(args...)
}

// Run executes statements for their effects.
func (e *Engine) Run(body string) error {
	entry, err := e.entryPoint(body, Sig(), Procedure)
	if err != nil {
		return err
	}
	_, err = entry.Invoke()
	return err
}

// CompileMethod compiles body (statements, returning with ^) into an entry
// point that can be invoked repeatedly.
func (e *Engine) CompileMethod(sig Signature, body string) (*EntryPoint, error) {
	return e.entryPoint(body, sig, Script)
}

// CompileExpression compiles expr into a reusable entry point.
func (e *Engine) CompileExpression(sig Signature, expr string) (*EntryPoint, error) {
	return e.entryPoint(expr, sig, Expression)
}

// entryPoint renders, compiles and loads one container. The container is
// defined in a transient scope forked from the current generation, so
// repeated and concurrent evaluations never see each other's container.
func (e *Engine) entryPoint(body string, sig Signature, kind BodyKind) (*EntryPoint, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	unit, err := e.synth.Render(body, sig, kind)
	if err != nil {
		return nil, err
	}
	arts, err := e.session.Compile([]SourceUnit{unit})
	if err != nil {
		return nil, err
	}
	if _, ok := arts[unit.Name]; !ok {
		return nil, &MissingArtifactError{Name: unit.Name}
	}
	scope := e.Loader().Fork()
	scope.AddArtifacts(arts)
	cls, err := scope.Load(unit.Name)
	if err != nil {
		return nil, fmt.Errorf("hotload: loading %s: %w", unit.Name, err)
	}
	return NewEntryPoint(e.rt, cls, e.synth.Selector(sig))
}

func sortedNames(arts map[string]*CompiledArtifact) []string {
	names := make([]string, 0, len(arts))
	for name := range arts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
