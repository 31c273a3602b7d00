package hotload

import (
	"time"

	"golang.org/x/text/language"
)

// Config holds the settings threaded through an Engine and the pieces it
// owns. The zero value is usable; DefaultConfig fills in every field.
type Config struct {
	// Container is the qualified name of the synthesized evaluation class.
	Container string
	// EntryName is the default selector of synthesized entry points.
	EntryName string
	// Locale selects the language of formatted diagnostics.
	Locale language.Tag
	// MaxDepth bounds nested sends at run time. Zero keeps the runtime
	// default.
	MaxDepth int
	// CompileTimeout bounds CompileContext when the caller's context has
	// no deadline. Zero means no bound.
	CompileTimeout time.Duration
}

const (
	DefaultContainer = "Eval"
	DefaultEntryName = "eval"
)

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Container: DefaultContainer,
		EntryName: DefaultEntryName,
		Locale:    language.English,
	}
}

func (c Config) withDefaults() Config {
	if c.Container == "" {
		c.Container = DefaultContainer
	}
	if c.EntryName == "" {
		c.EntryName = DefaultEntryName
	}
	if c.Locale == language.Und {
		c.Locale = language.English
	}
	return c
}
