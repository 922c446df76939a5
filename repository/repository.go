// Package repository implements the versioned resource store: CRUD,
// history and compartment computation over a main/history/references
// table triple per resource type (spec §4.M), with optimistic
// concurrency enforced by an ifMatch version check inside the write
// transaction (spec §5).
package repository

import (
	"context"
	"time"
)

// Record is one resource's current state as persisted on the main table.
type Record struct {
	ResourceType string
	ID           string
	VersionID    string
	// Version is the main table's __version column: 1 while live, -1 once
	// deleted (spec §6 "Persisted state").
	Version      int
	LastUpdated  time.Time
	Deleted      bool
	Compartments []string
	Content      map[string]any // nil when Deleted
}

// HistoryEntry is one row of a resource's version history, newest first.
type HistoryEntry struct {
	VersionID   string
	LastUpdated time.Time
	Content     map[string]any // nil for the delete tombstone
	Deleted     bool
}

// CreateOptions configures Create.
type CreateOptions struct {
	// AssignedID, when non-empty, is used in place of a generated UUID.
	// Two concurrent creates with the same AssignedID resolve to a single
	// row (UPSERT semantics, spec §4.M/§5).
	AssignedID string
	ProjectID  string
}

// UpdateOptions configures Update.
type UpdateOptions struct {
	// IfMatch, when non-empty, must equal the row's current versionId or
	// the update fails with ResourceVersionConflictError.
	IfMatch string
}

// HistoryOptions configures History's pagination (spec §4.M "optionally
// paginated and time-filtered").
type HistoryOptions struct {
	// Count bounds the number of entries returned. Zero means unbounded.
	Count int
	// Since, when non-zero, excludes history entries whose lastUpdated is
	// at or before this instant.
	Since time.Time
}

// Interface is the operation set spec §4.M names: create, read,
// readVersion, update, delete, history. Both the pgx-backed store and the
// in-memory test double implement it.
type Interface interface {
	Create(ctx context.Context, resourceType string, content map[string]any, opts CreateOptions) (*Record, error)
	Read(ctx context.Context, resourceType, id string) (*Record, error)
	ReadVersion(ctx context.Context, resourceType, id, versionID string) (*HistoryEntry, error)
	Update(ctx context.Context, resourceType, id string, content map[string]any, opts UpdateOptions) (*Record, error)
	Delete(ctx context.Context, resourceType, id string) (*Record, error)
	History(ctx context.Context, resourceType, id string, opts HistoryOptions) ([]HistoryEntry, error)
}

// applyServerFields discards any client-supplied resourceType/id/meta and
// stamps the server-controlled ones, per spec §4.M "resourceType and id
// are server-enforced; client changes to meta.versionId/meta.lastUpdated
// are discarded".
func applyServerFields(content map[string]any, resourceType, id, versionID string, lastUpdated time.Time) map[string]any {
	out := make(map[string]any, len(content)+2)
	for k, v := range content {
		if k == "resourceType" || k == "id" || k == "meta" {
			continue
		}
		out[k] = v
	}
	out["resourceType"] = resourceType
	out["id"] = id

	meta, _ := content["meta"].(map[string]any)
	newMeta := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		if k == "versionId" || k == "lastUpdated" {
			continue
		}
		newMeta[k] = v
	}
	newMeta["versionId"] = versionID
	newMeta["lastUpdated"] = lastUpdated.UTC().Format(time.RFC3339)
	out["meta"] = newMeta

	return out
}
