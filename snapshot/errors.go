package snapshot

import "fmt"

// SnapshotCircularDependencyError is always thrown, regardless of the
// generator's throwOnError setting, when a base chain re-enters an SD
// already being generated.
type SnapshotCircularDependencyError struct {
	URL   string
	Chain []string
}

func (e *SnapshotCircularDependencyError) Error() string {
	return fmt.Sprintf("snapshot: circular base dependency on %q (chain: %v)", e.URL, e.Chain)
}

// BaseNotFoundError is thrown in throwOnError mode when an SD's
// baseDefinition cannot be resolved.
type BaseNotFoundError struct {
	URL            string
	BaseDefinition string
}

func (e *BaseNotFoundError) Error() string {
	return fmt.Sprintf("snapshot: base %q not found for %q", e.BaseDefinition, e.URL)
}

// UnconsumedDifferentialError is thrown in strict mode instead of emitting
// DIFFERENTIAL_NOT_CONSUMED warnings.
type UnconsumedDifferentialError struct {
	URL   string
	Paths []string
}

func (e *UnconsumedDifferentialError) Error() string {
	return fmt.Sprintf("snapshot: %d differential entries not consumed on %q: %v", len(e.Paths), e.URL, e.Paths)
}
