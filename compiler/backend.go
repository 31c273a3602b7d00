package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/vm"
)

// Backend compiles Kiln class units into CBOR class images. It implements
// hotload.Backend; one value can serve any number of sequential rounds.
type Backend struct {
	log commonlog.Logger
}

// NewBackend creates a backend.
func NewBackend() *Backend {
	return &Backend{log: commonlog.GetLogger("kiln.compiler")}
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "kiln" }

// round is the state of one Compile call.
type round struct {
	diags   hotload.DiagnosticSink
	out     hotload.OutputStore
	catalog *catalog
	order   []*classInfo
	failed  bool
	stopped bool
}

func (r *round) report(unit string, warning bool, pos Position, format string, args ...interface{}) {
	if r.stopped {
		return
	}
	sev := hotload.SeverityError
	if warning {
		sev = hotload.SeverityWarning
	} else {
		r.failed = true
	}
	d := hotload.Diagnostic{
		Severity: sev,
		Unit:     unit,
		Line:     pos.Line,
		Column:   pos.Column,
		Message:  fmt.Sprintf(format, args...),
	}
	if !r.diags.Report(d) {
		r.stopped = true
	}
}

// Compile compiles every unit in one pass: all units are parsed before any
// name is resolved, so units may refer to each other in any order.
func (b *Backend) Compile(units []hotload.SourceUnit, out hotload.OutputStore, diags hotload.DiagnosticSink, parent vm.Resolver) bool {
	r := &round{
		diags: diags,
		out:   out,
		catalog: &catalog{
			classes: make(map[string]*classInfo),
			pending: out.Pending,
			parent:  parent,
		},
	}

	for _, u := range units {
		b.parseUnit(r, u)
		if r.stopped {
			return false
		}
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i].name < r.order[j].name })

	for _, info := range r.order {
		b.resolveSuperclass(r, info)
	}
	b.checkCycles(r)
	for _, info := range r.order {
		b.layout(r, info)
	}
	if r.stopped {
		return false
	}

	images := make([]*vm.ClassImage, 0, len(r.order))
	for _, info := range r.order {
		img := b.compileClass(r, info)
		if r.stopped {
			return false
		}
		if img != nil {
			images = append(images, img)
		}
	}
	if r.failed {
		b.log.Debugf("round failed before code emission")
		return false
	}

	for _, img := range images {
		if err := write(out, img); err != nil {
			r.report(img.Unit, false, Position{}, "cannot emit %s: %v", img.Name, err)
			return false
		}
	}
	b.log.Debugf("emitted %d classes from %d units", len(images), len(units))
	return true
}

func write(out hotload.OutputStore, img *vm.ClassImage) error {
	data, err := vm.EncodeImage(img)
	if err != nil {
		return err
	}
	w, err := out.OpenForWrite(img.Unit)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ---------------------------------------------------------------------------
// Passes
// ---------------------------------------------------------------------------

func (b *Backend) parseUnit(r *round, u hotload.SourceUnit) {
	sf, errs := ParseUnit(u.Text)
	for _, e := range errs {
		r.report(u.Name, false, e.Pos, "%s", e.Msg)
	}
	if len(errs) > 0 {
		return
	}

	switch len(sf.Classes) {
	case 0:
		b.log.Debugf("%s declares no class", u.Name)
		return
	case 1:
	default:
		r.report(u.Name, false, sf.Classes[1].NameSpan.Start,
			"unit declares %d classes, a unit holds exactly one", len(sf.Classes))
		return
	}

	def := sf.Classes[0]
	env := newEnvironment(sf, r.catalog)
	if strings.Contains(def.Name, "::") || strings.Contains(def.Name, ".") {
		r.report(u.Name, false, def.NameSpan.Start, "class name %s must be a simple name; use namespace: for the package", def.Name)
		return
	}
	name := env.qualify(def.Name)
	if name != u.Name {
		r.report(u.Name, false, def.NameSpan.Start, "class %s does not match unit name %s", name, u.Name)
		return
	}
	info := &classInfo{name: name, unit: u.Name, file: sf, def: def, env: env}
	r.catalog.classes[name] = info
	r.order = append(r.order, info)
}

func (b *Backend) resolveSuperclass(r *round, info *classInfo) {
	def := info.def
	super, ok := info.env.resolve(def.Superclass)
	if !ok {
		r.report(info.unit, false, def.SuperSpan.Start, "superclass %s is not defined", def.Superclass)
		info.incomplete = true
		return
	}
	if super == info.name {
		r.report(info.unit, false, def.SuperSpan.Start, "class %s cannot be its own superclass", info.name)
		info.cyclic = true
		return
	}
	info.superName = super
	if s, ok := r.catalog.classes[super]; ok {
		info.super = s
		return
	}
	ext, ok := r.catalog.external(super)
	if !ok {
		// Registered in this round but its unit did not parse.
		info.incomplete = true
		return
	}
	if ext.IsBuiltin() && ext.Name != "Object" && !ext.IsError() {
		r.report(info.unit, false, def.SuperSpan.Start, "cannot subclass builtin class %s", ext.Name)
		info.incomplete = true
		return
	}
	info.ext = ext
}

func (b *Backend) checkCycles(r *round) {
	for _, info := range r.order {
		path := []string{info.name}
		seen := map[*classInfo]bool{info: true}
		for s := info.super; s != nil; s = s.super {
			path = append(path, s.name)
			if s == info {
				r.report(info.unit, false, info.def.SuperSpan.Start, "superclass cycle: %s", strings.Join(path, " -> "))
				info.cyclic = true
				break
			}
			if seen[s] {
				break
			}
			seen[s] = true
		}
	}
}

// layout computes the full instance variable list of info, inherited
// variables first, and checks the class's own declarations.
func (b *Backend) layout(r *round, info *classInfo) []string {
	if info.ivarsDone {
		return info.ivars
	}
	info.ivarsDone = true

	var inherited []string
	switch {
	case info.cyclic:
		info.incomplete = true
	case info.super != nil:
		inherited = b.layout(r, info.super)
		if info.super.incomplete || info.super.cyclic {
			info.incomplete = true
		}
	case info.ext != nil:
		inherited = info.ext.InstVars
	}

	def := info.def
	seen := make(map[string]bool)
	for _, name := range inherited {
		seen[name] = true
	}
	info.ivars = append([]string(nil), inherited...)
	for _, name := range def.InstanceVariables {
		if seen[name] {
			r.report(info.unit, false, def.Span().Start, "instance variable '%s' is already defined", name)
			continue
		}
		seen[name] = true
		info.ivars = append(info.ivars, name)
	}
	cvSeen := make(map[string]bool)
	for _, cv := range def.ClassVariables {
		if cvSeen[cv.Name] || seen[cv.Name] {
			r.report(info.unit, false, cv.Span().Start, "class variable '%s' is already defined", cv.Name)
			continue
		}
		cvSeen[cv.Name] = true
	}
	return info.ivars
}

func (b *Backend) context(r *round, info *classInfo, classSide bool) *ClassContext {
	ctx := &ClassContext{
		InstVars:   info.ivars,
		ClassSide:  classSide,
		Resolve:    info.env.resolve,
		IsError:    r.catalog.isError,
		Inherits:   r.catalog.inherits,
		Incomplete: info.incomplete,
	}
	for _, cv := range info.def.ClassVariables {
		ctx.ClassVars = append(ctx.ClassVars, cv.Name)
	}
	return ctx
}

// compileClass checks every method of info and, when the round is still
// clean, generates its image.
func (b *Backend) compileClass(r *round, info *classInfo) *vm.ClassImage {
	def := info.def
	img := &vm.ClassImage{
		Name:       info.name,
		Superclass: info.superName,
		InstVars:   append([]string(nil), def.InstanceVariables...),
		Unit:       info.unit,
	}
	seenCV := make(map[string]bool)
	for _, cv := range def.ClassVariables {
		if !seenCV[cv.Name] {
			seenCV[cv.Name] = true
			img.ClassVars = append(img.ClassVars, cv.Name)
		}
	}

	classCtx := b.context(r, info, true)
	analyzer := NewSemanticAnalyzer(classCtx)
	for _, cv := range def.ClassVariables {
		if cv.Initializer != nil {
			analyzer.AnalyzeInitializer(cv.Initializer)
		}
	}
	b.reportProblems(r, info, analyzer.Problems())

	img.Methods = b.compileMethods(r, info, def.Methods, b.context(r, info, false))
	img.ClassMethods = b.compileMethods(r, info, def.ClassMethods, classCtx)
	if r.failed {
		return nil
	}
	img.Initializer = NewCompiler(classCtx).CompileInitializer(def.ClassVariables)
	return img
}

func (b *Backend) compileMethods(r *round, info *classInfo, methods []*MethodDef, ctx *ClassContext) []vm.MethodImage {
	var images []vm.MethodImage
	seen := make(map[string]bool)
	for _, m := range methods {
		if seen[m.Selector] {
			r.report(info.unit, false, m.Span().Start, "method %s is defined twice", m.Selector)
			continue
		}
		seen[m.Selector] = true

		analyzer := NewSemanticAnalyzer(ctx)
		sig := analyzer.AnalyzeMethod(m)
		b.reportProblems(r, info, analyzer.Problems())
		if r.failed || r.stopped {
			continue
		}

		c := NewCompiler(ctx)
		mi := c.CompileMethod(m, sig)
		for _, msg := range c.Errors() {
			r.report(info.unit, false, m.Span().Start, "%s: %s", m.Selector, msg)
		}
		images = append(images, *mi)
	}
	return images
}

func (b *Backend) reportProblems(r *round, info *classInfo, problems []Problem) {
	for _, p := range problems {
		r.report(info.unit, p.Warning, p.Pos, "%s", p.Msg)
	}
}

// UnitName returns the qualified class name a unit's text declares, for
// tools that see text before they know its unit name. It returns false when
// the text does not parse to exactly one class.
func UnitName(source string) (string, bool) {
	sf, errs := ParseUnit(source)
	if len(errs) > 0 || len(sf.Classes) != 1 {
		return "", false
	}
	env := &environment{}
	if sf.Namespace != nil {
		env.namespace = sf.Namespace.Name
	}
	return env.qualify(sf.Classes[0].Name), true
}
