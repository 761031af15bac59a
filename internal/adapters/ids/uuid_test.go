package ids

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := g.NewID()
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("invalid uuid %q: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Fatalf("version = %d, want 4", parsed.Version())
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator(0xbeef)

	first := g.NewID()
	second := g.NewID()

	if first != "0000beef-0000-4000-8000-000000000001" {
		t.Errorf("first = %s", first)
	}
	if first == second {
		t.Error("ids repeat")
	}
	parsed, err := uuid.Parse(second)
	if err != nil {
		t.Fatalf("invalid uuid %q: %v", second, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("version = %d, want 4", parsed.Version())
	}
}
