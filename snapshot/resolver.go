package snapshot

import (
	"context"
	"sync"

	"github.com/gofhir/profileengine/parser"
)

// Resolver looks up a StructureDefinition by canonical URL and registers
// freshly generated snapshots back for descendants to reuse (spec §4.G).
// Following the small-interface style the rest of this module uses, it has
// exactly the two methods the generator needs.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*parser.StructureDefinition, bool)
	Register(ctx context.Context, sd *parser.StructureDefinition)
}

// MapResolver is an in-memory Resolver backed by a read-mostly map, guarded
// so registration from a completed generation never tears a concurrent
// reader (spec §5: "writers must not tear readers").
type MapResolver struct {
	mu   sync.RWMutex
	byURL map[string]*parser.StructureDefinition
}

// NewMapResolver builds a MapResolver seeded with the given SDs, keyed by
// their URL.
func NewMapResolver(seed ...*parser.StructureDefinition) *MapResolver {
	r := &MapResolver{byURL: make(map[string]*parser.StructureDefinition, len(seed))}
	for _, sd := range seed {
		r.byURL[sd.URL] = sd
	}
	return r
}

func (r *MapResolver) Resolve(_ context.Context, url string) (*parser.StructureDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sd, ok := r.byURL[url]
	return sd, ok
}

func (r *MapResolver) Register(_ context.Context, sd *parser.StructureDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byURL[sd.URL] = sd
}
