package hotload

import (
	"fmt"
	"time"
)

// SourceUnit is one named block of source text submitted for compilation.
// It is never modified after construction.
type SourceUnit struct {
	Name      string
	Text      string
	CreatedAt time.Time
}

// NewSourceUnit creates a unit stamped with the current time.
func NewSourceUnit(name, text string) SourceUnit {
	return SourceUnit{Name: name, Text: text, CreatedAt: time.Now()}
}

// QualifiedName returns the unit's name split into package and simple name.
func (u SourceUnit) QualifiedName() QualifiedName {
	return ParseQualifiedName(u.Name)
}

func (u SourceUnit) String() string {
	return fmt.Sprintf("%s (%d bytes)", u.Name, len(u.Text))
}

// Units converts a name to text mapping into source units.
func Units(sources map[string]string) []SourceUnit {
	units := make([]SourceUnit, 0, len(sources))
	for name, text := range sources {
		units = append(units, NewSourceUnit(name, text))
	}
	return units
}
