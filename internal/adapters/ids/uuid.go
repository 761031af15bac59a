package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// UUIDGenerator implements ports.IDGenerator with random (version 4) UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a UUID generator.
func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

// NewID returns a new version 4 UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator implements ports.IDGenerator with predictable ids shaped
// like UUIDs. It is used where runs must be reproducible, such as replays.
type SequenceGenerator struct {
	prefix uint32
	n      atomic.Uint64
}

// NewSequenceGenerator creates a generator whose ids share seed.
func NewSequenceGenerator(seed uint32) *SequenceGenerator {
	return &SequenceGenerator{prefix: seed}
}

// NewID returns the next id in the sequence.
func (g *SequenceGenerator) NewID() string {
	n := g.n.Add(1)
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", g.prefix, n)
}
