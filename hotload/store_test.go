package hotload

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVirtualStoreFinalize(t *testing.T) {
	s := NewVirtualStore()
	s.RegisterPending("b.B")
	s.RegisterPending("a.A")
	s.RegisterPending("c.C")

	if diff := cmp.Diff([]string{"a.A", "b.B", "c.C"}, s.PendingNames()); diff != "" {
		t.Errorf("PendingNames mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"a.A", "b.B"} {
		w, err := s.OpenForWrite(name)
		if err != nil {
			t.Fatalf("OpenForWrite(%s): %v", name, err)
		}
		w.Write([]byte(name))
		w.Write([]byte("!"))
		w.Close()
	}

	arts := s.FinalizeAll()
	if len(arts) != 2 {
		t.Fatalf("FinalizeAll returned %d artifacts, want 2 (unwritten slots are dropped)", len(arts))
	}
	if got := string(arts["a.A"].Bytecode); got != "a.A!" {
		t.Errorf("a.A bytes = %q", got)
	}
	if s.Pending("a.A") {
		t.Error("finalized store should have no pending slots")
	}
	if _, err := s.OpenForWrite("a.A"); err == nil {
		t.Error("OpenForWrite after FinalizeAll should fail")
	}
}

func TestVirtualStoreReplacesSlot(t *testing.T) {
	s := NewVirtualStore()
	s.RegisterPending("A")
	w, _ := s.OpenForWrite("A")
	w.Write([]byte("old"))
	w.Close()
	s.RegisterPending("A")

	if arts := s.FinalizeAll(); len(arts) != 0 {
		t.Errorf("re-registered slot should start empty and unwritten, got %v", arts)
	}
}

func TestVirtualStoreUnregistered(t *testing.T) {
	s := NewVirtualStore()
	_, err := s.OpenForWrite("nobody.Asked")
	if !errors.Is(err, ErrUnregisteredOutput) {
		t.Fatalf("error = %v, want ErrUnregisteredOutput", err)
	}
	if !errors.Is(s.Violation(), ErrUnregisteredOutput) {
		t.Errorf("Violation() = %v", s.Violation())
	}
}

func TestVirtualStoreWriteAfterClose(t *testing.T) {
	s := NewVirtualStore()
	s.RegisterPending("A")
	w, _ := s.OpenForWrite("A")
	w.Close()
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("write after Close should fail")
	}

	s.RegisterPending("B")
	w, _ = s.OpenForWrite("B")
	s.Discard()
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("write after Discard should fail")
	}
	if len(s.PendingNames()) != 0 {
		t.Error("Discard should drop every slot")
	}
}

func TestArtifactStore(t *testing.T) {
	s := NewArtifactStore()
	data := []byte{1, 2, 3}
	s.Put("a.A", data)
	data[0] = 9
	if got, _ := s.Artifact("a.A"); got[0] != 1 {
		t.Error("Put should copy its input")
	}

	s.PutAll(map[string]*CompiledArtifact{"b.B": {Name: "b.B", Bytecode: []byte{4}}})
	if diff := cmp.Diff([]string{"a.A", "b.B"}, s.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Artifact("b.B"); !ok {
		t.Error("Artifact(b.B) missing")
	}
	if _, ok := s.Artifact("b.B"); !ok {
		t.Error("reading an artifact must not consume it")
	}

	s.Remove("a.A")
	if s.Len() != 1 {
		t.Errorf("Len() = %d after Remove", s.Len())
	}
}

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		in, pkg, simple string
	}{
		{"A", "", "A"},
		{"pkg.A", "pkg", "A"},
		{"pkg.sub.A", "pkg.sub", "A"},
	}
	for _, tt := range tests {
		q := ParseQualifiedName(tt.in)
		if q.Package != tt.pkg || q.Simple != tt.simple {
			t.Errorf("ParseQualifiedName(%q) = %+v", tt.in, q)
		}
		if q.String() != tt.in {
			t.Errorf("String() = %q, want %q", q.String(), tt.in)
		}
	}
	if got := ParseQualifiedName("pkg.A").Sibling("B").String(); got != "pkg.B" {
		t.Errorf("Sibling = %q", got)
	}
	if got := NewSourceUnit("pkg.A", "text").QualifiedName().Package; got != "pkg" {
		t.Errorf("unit package = %q", got)
	}
}
