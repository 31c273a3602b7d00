package manifest

import (
	"path"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chazu/kiln/vm"
)

// ToPascalCase turns a file or directory name into a class name. Words
// are split at '-', '_' and lower-to-upper case changes, so "my-app",
// "my_app" and "myApp" all become "MyApp".
func ToPascalCase(s string) string {
	title := cases.Title(language.Und)
	var sb strings.Builder
	for _, word := range splitWords(s) {
		sb.WriteString(title.String(word))
	}
	return sb.String()
}

func splitWords(s string) []string {
	var words []string
	start := -1
	var prev rune
	for i, r := range s {
		switch {
		case r == '-' || r == '_':
			if start >= 0 {
				words = append(words, s[start:i])
			}
			start = -1
		case start < 0:
			start = i
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			words = append(words, s[start:i])
			start = i
		}
		prev = r
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

var builtins = sync.OnceValue(func() *vm.Runtime { return vm.NewRuntime() })

// IsReservedNamespace reports whether the first segment of a dotted
// namespace is a builtin class name. "Array" and "Array.x" are reserved,
// "vendor.Array" is not.
func IsReservedNamespace(name string) bool {
	root, _, _ := strings.Cut(name, ".")
	if root == "" {
		return false
	}
	_, ok := builtins().Resolve(root)
	return ok
}

// UnitNameForPath names the unit stored at rel, a slash or OS separated
// path under a source directory. Directories become namespace segments
// under prefix and the file name becomes the class name:
// "geo/point.kiln" under "app" is "app.geo.Point".
func UnitNameForPath(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	dir, file := path.Split(rel)
	class := ToPascalCase(strings.TrimSuffix(file, path.Ext(file)))

	segs := strings.FieldsFunc(dir, func(r rune) bool { return r == '/' })
	if prefix != "" {
		segs = append([]string{prefix}, segs...)
	}
	return strings.Join(append(segs, class), ".")
}
