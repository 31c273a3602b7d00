// Package manifest reads kiln.toml, the project file naming a program's
// source directories, its entry point and the engine and server settings.
package manifest

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"

	"github.com/chazu/kiln/hotload"
)

const (
	FileName = "kiln.toml"

	// DefaultSelector is sent to the entry class when source.entry is set
	// without source.selector.
	DefaultSelector = "main"

	defaultSourceDir = "src"
)

type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Engine  Engine  `toml:"engine"`
	Server  Server  `toml:"server"`

	// Dir is the absolute directory holding the file.
	Dir string `toml:"-"`
}

type Project struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
	Version   string `toml:"version"`
}

// Source lists unit directories relative to Dir and the class and
// class-side selector `kiln run` starts from.
type Source struct {
	Dirs     []string `toml:"dirs"`
	Entry    string   `toml:"entry"`
	Selector string   `toml:"selector"`
}

// Engine is the file form of hotload.Config. Durations are strings such
// as "30s".
type Engine struct {
	Container      string `toml:"container"`
	EntryName      string `toml:"entry-name"`
	Locale         string `toml:"locale"`
	MaxDepth       int    `toml:"max-depth"`
	CompileTimeout string `toml:"compile-timeout"`
}

type Server struct {
	Addr string `toml:"addr"`
}

// Load reads dir/kiln.toml, checks it against the schema and fills in
// defaults.
func Load(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	path := filepath.Join(abs, FileName)
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir = abs
	return m, nil
}

func decode(data []byte) (*Manifest, error) {
	var raw map[string]any
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	m := new(Manifest)
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if IsReservedNamespace(m.Project.Namespace) {
		return nil, fmt.Errorf("invalid manifest: namespace %q shadows a builtin class", m.Project.Namespace)
	}
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{defaultSourceDir}
	}
	if m.Source.Entry != "" && m.Source.Selector == "" {
		m.Source.Selector = DefaultSelector
	}
	return m, nil
}

// FindAndLoad loads the nearest kiln.toml in startDir or above it. It
// returns nil and no error when there is none.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		_, err := os.Stat(filepath.Join(dir, FileName))
		switch {
		case err == nil:
			return Load(dir)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ReadFile reads a text file through StripBOM.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return StripBOM(data)
}

var boms = [][]byte{{0xEF, 0xBB, 0xBF}, {0xFE, 0xFF}, {0xFF, 0xFE}}

// StripBOM drops a leading byte order mark. Text marked as UTF-16 comes
// back as UTF-8; unmarked text is returned as is.
func StripBOM(data []byte) ([]byte, error) {
	for _, bom := range boms {
		if !bytes.HasPrefix(data, bom) {
			continue
		}
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return out, nil
	}
	return data, nil
}

// SourceDirPaths returns the source directories joined to Dir.
func (m *Manifest) SourceDirPaths() []string {
	paths := make([]string, len(m.Source.Dirs))
	for i, d := range m.Source.Dirs {
		paths[i] = filepath.Join(m.Dir, d)
	}
	return paths
}

// Config overlays the [engine] table on hotload.DefaultConfig.
func (m *Manifest) Config() (hotload.Config, error) {
	cfg := hotload.DefaultConfig()
	e := m.Engine
	cfg.Container = cmp.Or(e.Container, cfg.Container)
	cfg.EntryName = cmp.Or(e.EntryName, cfg.EntryName)
	cfg.MaxDepth = e.MaxDepth
	if e.Locale != "" {
		tag, err := language.Parse(e.Locale)
		if err != nil {
			return cfg, fmt.Errorf("engine.locale: %w", err)
		}
		cfg.Locale = tag
	}
	if e.CompileTimeout != "" {
		d, err := time.ParseDuration(e.CompileTimeout)
		if err != nil {
			return cfg, fmt.Errorf("engine.compile-timeout: %w", err)
		}
		cfg.CompileTimeout = d
	}
	return cfg, nil
}
