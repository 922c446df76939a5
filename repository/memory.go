package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// resourceEntry serializes every read and write against one (resourceType,
// id), matching the single-transaction-per-write model of the pgx-backed
// store without a real database underneath.
type resourceEntry struct {
	mu      sync.Mutex
	current Record
	history []HistoryEntry // newest first
}

// MemoryRepository is an in-memory double satisfying Interface, used in
// place of a pgxmock-style fake so repository invariants can be asserted
// directly against Go values rather than SQL capture (spec §2 "Test
// tooling").
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string]*resourceEntry
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]*resourceEntry)}
}

func entryKey(resourceType, id string) string {
	return resourceType + "/" + id
}

// entryFor returns the entry for (resourceType, id), creating it if
// absent. The top-level map access is itself serialized so concurrent
// creates of a brand new id, or concurrent assigned-id creates racing to
// be first, never both believe they made the entry.
func (m *MemoryRepository) entryFor(resourceType, id string) *resourceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entryKey(resourceType, id)
	e, ok := m.data[key]
	if !ok {
		e = &resourceEntry{}
		m.data[key] = e
	}
	return e
}

func (m *MemoryRepository) lookup(resourceType, id string) (*resourceEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[entryKey(resourceType, id)]
	return e, ok
}

// Create implements Interface.Create. An AssignedID that already names an
// existing row is an UPSERT: the row is overwritten and a new history row
// appended, rather than an error (spec §4.M, §5 "Assigned-id creates are
// UPSERT").
func (m *MemoryRepository) Create(ctx context.Context, resourceType string, content map[string]any, opts CreateOptions) (*Record, error) {
	id := opts.AssignedID
	if id == "" {
		id = uuid.NewString()
	}
	e := m.entryFor(resourceType, id)

	e.mu.Lock()
	defer e.mu.Unlock()

	versionID := uuid.NewString()
	lastUpdated := time.Now().UTC()
	serverContent := applyServerFields(content, resourceType, id, versionID, lastUpdated)

	record := Record{
		ResourceType: resourceType,
		ID:           id,
		VersionID:    versionID,
		Version:      1,
		LastUpdated:  lastUpdated,
		Compartments: computeCompartments(resourceType, id, serverContent),
		Content:      serverContent,
	}
	e.current = record
	e.history = append([]HistoryEntry{{
		VersionID:   versionID,
		LastUpdated: lastUpdated,
		Content:     serverContent,
	}}, e.history...)

	out := record
	return &out, nil
}

// Read implements Interface.Read.
func (m *MemoryRepository) Read(ctx context.Context, resourceType, id string) (*Record, error) {
	e, ok := m.lookup(resourceType, id)
	if !ok {
		return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.Deleted {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}
	out := e.current
	return &out, nil
}

// ReadVersion implements Interface.ReadVersion.
func (m *MemoryRepository) ReadVersion(ctx context.Context, resourceType, id, versionID string) (*HistoryEntry, error) {
	e, ok := m.lookup(resourceType, id)
	if !ok {
		return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.history {
		if h.VersionID != versionID {
			continue
		}
		if h.Deleted {
			return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
		}
		out := h
		return &out, nil
	}
	return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
}

// Update implements Interface.Update. ifMatch is checked against the
// current versionId inside the same critical section that mints and
// commits the next one, so exactly one of N concurrent updates racing on
// the same pre-image succeeds (spec §5).
func (m *MemoryRepository) Update(ctx context.Context, resourceType, id string, content map[string]any, opts UpdateOptions) (*Record, error) {
	e, ok := m.lookup(resourceType, id)
	if !ok {
		return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current.Deleted {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}
	if opts.IfMatch != "" && opts.IfMatch != e.current.VersionID {
		return nil, &ResourceVersionConflictError{
			ResourceType: resourceType,
			ID:           id,
			Expected:     opts.IfMatch,
			Actual:       e.current.VersionID,
		}
	}

	versionID := uuid.NewString()
	lastUpdated := time.Now().UTC()
	serverContent := applyServerFields(content, resourceType, id, versionID, lastUpdated)

	e.current = Record{
		ResourceType: resourceType,
		ID:           id,
		VersionID:    versionID,
		Version:      1,
		LastUpdated:  lastUpdated,
		Compartments: computeCompartments(resourceType, id, serverContent),
		Content:      serverContent,
	}
	e.history = append([]HistoryEntry{{
		VersionID:   versionID,
		LastUpdated: lastUpdated,
		Content:     serverContent,
	}}, e.history...)

	out := e.current
	return &out, nil
}

// Delete implements Interface.Delete. Deleting an already-gone row is an
// error, not a no-op (spec §4.M "Idempotent-error").
func (m *MemoryRepository) Delete(ctx context.Context, resourceType, id string) (*Record, error) {
	e, ok := m.lookup(resourceType, id)
	if !ok {
		return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current.Deleted {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}

	versionID := uuid.NewString()
	lastUpdated := time.Now().UTC()

	e.current = Record{
		ResourceType: resourceType,
		ID:           id,
		VersionID:    versionID,
		Version:      -1,
		LastUpdated:  lastUpdated,
		Deleted:      true,
		Compartments: e.current.Compartments,
	}
	e.history = append([]HistoryEntry{{
		VersionID:   versionID,
		LastUpdated: lastUpdated,
		Deleted:     true,
	}}, e.history...)

	out := e.current
	return &out, nil
}

// History implements Interface.History, newest first, optionally bounded
// by Count and filtered to entries strictly after Since.
func (m *MemoryRepository) History(ctx context.Context, resourceType, id string, opts HistoryOptions) ([]HistoryEntry, error) {
	e, ok := m.lookup(resourceType, id)
	if !ok {
		return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]HistoryEntry, 0, len(e.history))
	for _, h := range e.history {
		if !opts.Since.IsZero() && !h.LastUpdated.After(opts.Since) {
			continue
		}
		out = append(out, h)
		if opts.Count > 0 && len(out) >= opts.Count {
			break
		}
	}
	return out, nil
}

var _ Interface = (*MemoryRepository)(nil)
