package hotload

import (
	"strings"
	"sync"
	"testing"

	"github.com/chazu/kiln/vm"
)

// scriptBackend is a stand-in compiler driven by one directive per line of
// unit text:
//
//	class Super    emit the unit's class with superclass Super
//	write Name     emit a class into the slot for Name instead
//	error msg      report an error at this line
//	warn msg       report a warning at this line
//	panic          panic
//	wait           block until release is closed
type scriptBackend struct {
	mu      sync.Mutex
	rounds  int
	parents []vm.Resolver
	release chan struct{}
}

func (b *scriptBackend) Name() string { return "script" }

func (b *scriptBackend) Compile(units []SourceUnit, out OutputStore, diags DiagnosticSink, parent vm.Resolver) bool {
	b.mu.Lock()
	b.rounds++
	b.parents = append(b.parents, parent)
	b.mu.Unlock()

	ok := true
	for _, u := range units {
		for i, line := range strings.Split(u.Text, "\n") {
			verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
			switch verb {
			case "class":
				if err := writeClass(out, u.Name, u.Name, arg); err != nil {
					ok = false
				}
			case "write":
				if err := writeClass(out, arg, arg, "Object"); err != nil {
					ok = false
				}
			case "error", "warn":
				sev := SeverityError
				if verb == "warn" {
					sev = SeverityWarning
				}
				if !diags.Report(Diagnostic{Severity: sev, Unit: u.Name, Line: i + 1, Column: 1, Message: arg}) {
					return false
				}
			case "panic":
				panic("backend exploded")
			case "wait":
				<-b.release
			}
		}
	}
	return ok
}

func (b *scriptBackend) roundCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rounds
}

func classImage(t testing.TB, name, super string) []byte {
	t.Helper()
	data, err := vm.EncodeImage(&vm.ClassImage{Name: name, Superclass: super, Unit: name})
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	return data
}

func writeClass(out OutputStore, slot, name, super string) error {
	data, err := vm.EncodeImage(&vm.ClassImage{Name: name, Superclass: super, Unit: slot})
	if err != nil {
		return err
	}
	w, err := out.OpenForWrite(slot)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(data)
	return err
}

func artifacts(t testing.TB, classes map[string]string) map[string]*CompiledArtifact {
	t.Helper()
	out := make(map[string]*CompiledArtifact, len(classes))
	for name, super := range classes {
		out[name] = &CompiledArtifact{Name: name, Bytecode: classImage(t, name, super)}
	}
	return out
}
