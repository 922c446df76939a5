// Package profileengine provides a FHIR R4 StructureDefinition toolkit:
// parsing and serializing StructureDefinition/ElementDefinition resources,
// generating snapshots from differentials, and planning a relational search
// index and repository layer over the result.
//
// This package is designed from the ground up to leverage Go's strengths:
// concurrency with goroutines, sync.Pool for memory efficiency, generics for
// type-safe caches, and small composable interfaces.
//
// # Quick Start
//
//	import (
//	    pe "github.com/gofhir/profileengine"
//	    "github.com/gofhir/profileengine/parser"
//	    "github.com/gofhir/profileengine/snapshot"
//	)
//
//	result := parser.ParseStructureDefinition(raw)
//	if !result.OK() {
//	    log.Fatal(result.Errors())
//	}
//
//	gen := snapshot.NewGenerator(resolver, pe.WithThrowOnError(true))
//	snap, issues, err := gen.Generate(ctx, result.Data())
//
// # Performance Features
//
//   - sync.Pool: path builders and scratch maps reused across parse/merge
//     calls to reduce GC pressure on large StructureDefinition trees.
//   - Generic Cache: type-safe LRU cache for expanded datatype snapshots,
//     without interface{} overhead.
//   - Worker Pool: parallel bulk repository writes using runtime.NumCPU()
//     workers.
//
// # Functional Options
//
//	gen := snapshot.NewGenerator(resolver,
//	    pe.WithThrowOnError(true),
//	    pe.WithMaxRecursionDepth(32),
//	    pe.WithMetrics(pe.NewMetrics()),
//	)
//
// # Pipeline
//
// A StructureDefinition moves through four stages, each implemented by its
// own package so it can be used (and tested) independently:
//
//   - parser: generic JSON -> typed ElementDefinition/StructureDefinition,
//     four-pass element parsing, choice-type extraction.
//   - serializer: the inverse of parser, stable key ordering, choice-type
//     restoration. Primitive "_field" metadata companions are not written
//     back.
//   - snapshot (+ merge, slicing): differential-against-base merge, slice
//     alignment, datatype expansion.
//   - search (+ schema, compiler) and repository: SearchParameter-driven
//     relational projection, WHERE-clause compilation, and a versioned,
//     soft-deleting CRUD store.
//
// # Architecture
//
//   - Small interfaces (1-2 methods each) for composability.
//   - Diagnostics accumulate into ParseResult rather than aborting early;
//     only truly impossible operations (missing rows, version conflicts)
//     return typed errors.
//   - Context-based cancellation on every blocking operation.
package profileengine
