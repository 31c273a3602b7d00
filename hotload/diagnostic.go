package hotload

import (
	"fmt"
	"sort"
	"sync"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one message reported by a backend about a unit.
type Diagnostic struct {
	Severity Severity
	Unit     string
	Line     int
	Column   int
	Message  string
}

// IsError reports whether the diagnostic fails the round.
func (d Diagnostic) IsError() bool { return d.Severity == SeverityError }

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Unit, d.Line, d.Column, d.Severity, d.Message)
}

// DiagnosticSink receives diagnostics while a backend runs. Report returns
// false when the backend should stop as soon as it can.
type DiagnosticSink interface {
	Report(d Diagnostic) bool
}

// ProblemHandler observes diagnostics as they arrive. Returning false stops
// the round early; the round then fails.
type ProblemHandler func(d Diagnostic) bool

// collector gathers the diagnostics of one round.
type collector struct {
	mu      sync.Mutex
	diags   []Diagnostic
	handler ProblemHandler
	stopped bool
}

func newCollector(handler ProblemHandler) *collector {
	return &collector{handler: handler}
}

func (c *collector) Report(d Diagnostic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
	if c.handler != nil && !c.handler(d) {
		c.stopped = true
	}
	return !c.stopped
}

func (c *collector) snapshot() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

func (c *collector) wasStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// SortDiagnostics orders diagnostics by unit, line and column, keeping the
// report order for ties.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Errors returns only the error-severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}
