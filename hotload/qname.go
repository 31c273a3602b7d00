package hotload

import "strings"

// QualifiedName is a dotted identifier split at its last dot into a package
// path and a simple name. "pkg.sub.A" has package "pkg.sub" and simple name
// "A"; "A" has an empty package.
type QualifiedName struct {
	Package string
	Simple  string
}

// ParseQualifiedName splits name at its last dot. Joining the result with
// String gives back name exactly.
func ParseQualifiedName(name string) QualifiedName {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return QualifiedName{Package: name[:i], Simple: name[i+1:]}
	}
	return QualifiedName{Simple: name}
}

// String joins the package and simple name with a dot.
func (q QualifiedName) String() string {
	if q.Package == "" {
		return q.Simple
	}
	return q.Package + "." + q.Simple
}

// Sibling returns the name simple inside q's package.
func (q QualifiedName) Sibling(simple string) QualifiedName {
	return QualifiedName{Package: q.Package, Simple: simple}
}
