package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/chazu/kiln/compiler"
)

// SourceExt is the file extension of Kiln source units.
const SourceExt = ".kiln"

// SourceFile is one unit read from disk.
type SourceFile struct {
	Path string
	Name string
	Text string
}

// ReadSource reads the unit at path. Its name is the class the text
// declares; text that does not parse is named after its location under
// root so the compiler can still report against it.
func ReadSource(root, path, prefix string) (SourceFile, error) {
	data, err := ReadFile(path)
	if err != nil {
		return SourceFile{}, err
	}
	text := string(data)
	name, ok := compiler.UnitName(text)
	if !ok {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		name = UnitNameForPath(prefix, rel)
	}
	return SourceFile{Path: path, Name: name, Text: text}, nil
}

// SourceFiles reads every unit under the configured source directories,
// sorted by name. Two files declaring the same unit are an error.
func (m *Manifest) SourceFiles() ([]SourceFile, error) {
	var files []SourceFile
	seen := make(map[string]string)
	for _, root := range m.SourceDirPaths() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || filepath.Ext(path) != SourceExt {
				return nil
			}
			f, err := ReadSource(root, path, m.Project.Namespace)
			if err != nil {
				return err
			}
			if prev, dup := seen[f.Name]; dup {
				return fmt.Errorf("unit %s is declared by both %s and %s", f.Name, prev, path)
			}
			seen[f.Name] = path
			files = append(files, f)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Sources returns the project's units keyed by name, ready for
// hotload.Engine.Compile.
func (m *Manifest) Sources() (map[string]string, error) {
	files, err := m.SourceFiles()
	if err != nil {
		return nil, err
	}
	return SourceMap(files), nil
}

// SourceMap keys files by unit name.
func SourceMap(files []SourceFile) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Name] = f.Text
	}
	return out
}
