package compiler

import (
	"strings"
	"sync"

	"github.com/chazu/kiln/vm"
)

// ---------------------------------------------------------------------------
// Global name resolution
// ---------------------------------------------------------------------------

// builtins answers for the runtime's builtin classes when a round has no
// parent resolver, or the parent does not reach them.
var builtins = sync.OnceValue(func() *vm.Runtime { return vm.NewRuntime() })

// classInfo is what a round knows about one class it compiles.
type classInfo struct {
	name  string // qualified
	unit  string
	file  *SourceFile
	def   *ClassDef
	env   *environment
	super *classInfo // superclass compiled in the same round
	ext   *vm.Class  // superclass defined outside the round

	superName string
	// incomplete marks classes whose inherited layout is unknown because
	// an ancestor failed earlier in the round.
	incomplete bool
	cyclic     bool

	ivars     []string
	ivarsDone bool
}

// catalog is the set of class names visible to one round.
type catalog struct {
	classes map[string]*classInfo
	pending func(name string) bool
	parent  vm.Resolver
}

func (c *catalog) external(name string) (*vm.Class, bool) {
	if c.parent != nil {
		if cls, ok := c.parent(name); ok {
			return cls, true
		}
	}
	return builtins().Resolve(name)
}

// exists reports whether name is a class compiled in the round, a unit
// registered for it, or a class known outside it.
func (c *catalog) exists(name string) bool {
	if _, ok := c.classes[name]; ok {
		return true
	}
	if c.pending != nil && c.pending(name) {
		return true
	}
	_, ok := c.external(name)
	return ok
}

// isError reports whether the named class can be signaled. Unknown
// classes answer false.
func (c *catalog) isError(name string) bool {
	seen := make(map[string]bool)
	for name != "" && !seen[name] {
		seen[name] = true
		if info, ok := c.classes[name]; ok {
			if info.ext != nil {
				return info.ext.IsError()
			}
			name = info.superName
			continue
		}
		if cls, ok := c.external(name); ok {
			return cls.IsError()
		}
		return false
	}
	return false
}

// inherits reports whether class sub is super or one of its subclasses.
func (c *catalog) inherits(sub, super string) bool {
	seen := make(map[string]bool)
	for name := sub; name != "" && !seen[name]; {
		if name == super {
			return true
		}
		seen[name] = true
		if info, ok := c.classes[name]; ok {
			if info.ext != nil {
				ext, ok := c.external(super)
				return ok && info.ext.InheritsFrom(ext)
			}
			name = info.superName
			continue
		}
		cls, ok1 := c.external(name)
		ext, ok2 := c.external(super)
		return ok1 && ok2 && cls.InheritsFrom(ext)
	}
	return false
}

// environment resolves global names the way one unit sees them.
type environment struct {
	namespace string
	imports   []string
	catalog   *catalog
}

func newEnvironment(sf *SourceFile, cat *catalog) *environment {
	env := &environment{catalog: cat}
	if sf.Namespace != nil {
		env.namespace = sf.Namespace.Name
	}
	for _, imp := range sf.Imports {
		env.imports = append(env.imports, imp.Path)
	}
	return env
}

// qualify returns the qualified name of a class declared in the unit.
func (env *environment) qualify(simple string) string {
	if env.namespace == "" {
		return simple
	}
	return env.namespace + "." + simple
}

// resolve maps a name as written in source to a qualified class name.
// Order: an explicit A::B or dotted path, the unit's own namespace, class
// imports ending in the name, namespace imports, the root namespace.
func (env *environment) resolve(name string) (string, bool) {
	cat := env.catalog
	if strings.Contains(name, "::") || strings.Contains(name, ".") {
		path := normalizePath(name)
		return path, cat.exists(path)
	}
	if env.namespace != "" {
		if q := env.namespace + "." + name; cat.exists(q) {
			return q, true
		}
	}
	for _, imp := range env.imports {
		if lastSegment(imp) == name && cat.exists(imp) {
			return imp, true
		}
	}
	for _, imp := range env.imports {
		if q := imp + "." + name; cat.exists(q) {
			return q, true
		}
	}
	if cat.exists(name) {
		return name, true
	}
	return "", false
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
