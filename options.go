package profileengine

import "runtime"

// Option configures the snapshot generator, search compiler, and repository.
type Option func(*Options)

// Options holds configuration shared across the snapshot, search and
// repository packages, following the same functional-options shape each of
// those packages' own constructors accept.
type Options struct {
	// ThrowOnError switches the snapshot generator from returning merge
	// errors only as issues to also returning an error built from the
	// first error-severity merge issue.
	ThrowOnError bool

	// MaxRecursionDepth bounds datatype-expansion recursion in the snapshot
	// merger. Zero selects the package default.
	MaxRecursionDepth int

	// StrictUnconsumedDifferential promotes DIFFERENTIAL_NOT_CONSUMED
	// warnings to an UnconsumedDifferentialError.
	StrictUnconsumedDifferential bool

	// DatatypeCacheSize bounds the snapshot generator's cache of expanded
	// base-type snapshots.
	DatatypeCacheSize int

	// EnablePooling records whether sync.Pool reuse is wanted. No package
	// reads it: the parser and issue packages use their pooled path
	// builders and scratch maps whatever its value.
	EnablePooling bool

	// WorkerCount is a bulk-write worker count. Defaults to
	// runtime.NumCPU(). repository.NewBulkWriter takes its worker count as
	// an argument and does not read this field.
	WorkerCount int

	// Metrics, when non-nil, receives operation counts and timings from
	// every package that accepts Options.
	Metrics *Metrics
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		ThrowOnError:                 false,
		MaxRecursionDepth:            32,
		StrictUnconsumedDifferential: false,
		DatatypeCacheSize:            256,
		EnablePooling:                true,
		WorkerCount:                  runtime.NumCPU(),
	}
}

// Apply builds an Options value from DefaultOptions with opts applied in
// order.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithThrowOnError selects error-returning behavior over diagnostic
// accumulation for operations that can be made to throw (spec §7).
func WithThrowOnError(enable bool) Option {
	return func(o *Options) { o.ThrowOnError = enable }
}

// WithMaxRecursionDepth bounds merge/expansion recursion. Values <= 0 are
// ignored.
func WithMaxRecursionDepth(depth int) Option {
	return func(o *Options) {
		if depth > 0 {
			o.MaxRecursionDepth = depth
		}
	}
}

// WithStrictUnconsumedDifferential promotes leftover differential elements
// from a warning to an UnconsumedDifferentialError.
func WithStrictUnconsumedDifferential(enable bool) Option {
	return func(o *Options) { o.StrictUnconsumedDifferential = enable }
}

// WithDatatypeCacheSize sets the base-type snapshot cache capacity. Values
// <= 0 are ignored.
func WithDatatypeCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.DatatypeCacheSize = size
		}
	}
}

// WithPooling enables or disables sync.Pool reuse of scratch buffers.
func WithPooling(enable bool) Option {
	return func(o *Options) { o.EnablePooling = enable }
}

// WithWorkerCount sets the repository bulk-write worker count. Values <= 0
// are ignored and the default (runtime.NumCPU()) is kept.
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithMetrics attaches a Metrics sink. Pass nil to disable metrics
// recording (the default).
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// --- Presets ---

// FastOptions favors throughput: pooling on, diagnostics accumulate rather
// than throw, a larger datatype cache.
func FastOptions() []Option {
	return []Option{
		WithThrowOnError(false),
		WithPooling(true),
		WithDatatypeCacheSize(1000),
	}
}

// StrictOptions favors correctness over throughput: every impossible
// operation throws, and a differential element that never matched a base
// element is itself an error.
func StrictOptions() []Option {
	return []Option{
		WithThrowOnError(true),
		WithStrictUnconsumedDifferential(true),
	}
}

// DebugOptions sets EnablePooling to false. Pool use in the parser and
// issue packages does not depend on that field.
func DebugOptions() []Option {
	return []Option{
		WithPooling(false),
	}
}
