// Package snapshot implements spec §4.G: computing a StructureDefinition's
// snapshot element list from its base chain and differential, recursing
// into ancestors that have not yet been snapshotted and guarding against
// circular base references.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	profileengine "github.com/gofhir/profileengine"
	"github.com/gofhir/profileengine/internal/cache"
	"github.com/gofhir/profileengine/issue"
	"github.com/gofhir/profileengine/parser"
	"github.com/gofhir/profileengine/snapshot/merge"
)

// coreDatatypeBase is the canonical-URL prefix FHIR core datatypes live
// under; the generator resolves a type code to this URL before asking its
// Resolver for the datatype's own snapshot (spec §4.G "datatype cache").
const coreDatatypeBase = "http://hl7.org/fhir/StructureDefinition/"

// Generator computes snapshots, recursing into a StructureDefinition's base
// chain through Resolver and memoizing expanded datatype element lists in a
// bounded cache (spec §4.G).
type Generator struct {
	resolver Resolver
	opts     *profileengine.Options

	datatypes *cache.Cache[string, []parser.ElementDefinition]

	mu         sync.Mutex
	inProgress map[string]bool
}

// NewGenerator builds a Generator backed by resolver, applying opts over
// profileengine.DefaultOptions().
func NewGenerator(resolver Resolver, opts ...profileengine.Option) *Generator {
	o := profileengine.Apply(opts...)
	return &Generator{
		resolver:   resolver,
		opts:       o,
		datatypes:  cache.New[string, []parser.ElementDefinition](o.DatatypeCacheSize),
		inProgress: make(map[string]bool),
	}
}

// Generate computes sd's snapshot, recursively generating any ancestor in
// its base chain that doesn't already carry one, and registers the result
// with the Generator's Resolver on success. sd itself is never mutated; the
// returned StructureDefinition is a copy with Snapshot populated.
func (g *Generator) Generate(ctx context.Context, sd *parser.StructureDefinition) (*parser.StructureDefinition, []issue.Issue, error) {
	start := time.Now()
	result, issues, err := g.generate(ctx, sd, nil)
	g.opts.Metrics.RecordStage("snapshot.generate", time.Since(start), len(issues))
	g.opts.Metrics.RecordOperation(time.Since(start), err == nil)
	g.opts.Metrics.RecordIssues(issues)
	if err != nil {
		log.Error().Err(err).Str("url", sd.URL).Msg("snapshot generation failed")
	}
	return result, issues, err
}

func (g *Generator) generate(ctx context.Context, sd *parser.StructureDefinition, chain []string) (*parser.StructureDefinition, []issue.Issue, error) {
	if sd.URL == "" {
		return nil, nil, fmt.Errorf("snapshot: structure definition has no url")
	}

	if err := g.enter(sd.URL, chain); err != nil {
		return nil, nil, err
	}
	defer g.leave(sd.URL)

	if len(sd.Snapshot) > 0 {
		out := *sd
		return &out, nil, nil
	}

	if sd.BaseDefinition == nil || *sd.BaseDefinition == "" {
		out := *sd
		out.Snapshot = cloneElements(sd.Differential)
		assignElementIDs(out.Snapshot)
		g.resolver.Register(ctx, &out)
		return &out, nil, nil
	}

	base, issues, err := g.resolveAndGenerate(ctx, sd.URL, *sd.BaseDefinition, append(chain, sd.URL))
	if err != nil {
		return nil, issues, err
	}

	merged, mergeIssues, err := g.mergeAgainstBase(base.Snapshot, sd.Differential)
	issues = append(issues, mergeIssues...)
	if err != nil {
		return nil, issues, err
	}

	out := *sd
	out.Snapshot = merged
	assignElementIDs(out.Snapshot)

	if g.opts.StrictUnconsumedDifferential {
		var paths []string
		for _, iss := range issues {
			if iss.Code == issue.CodeDifferentialNotConsumed {
				paths = append(paths, iss.Path)
			}
		}
		if len(paths) > 0 {
			return nil, issues, &UnconsumedDifferentialError{URL: sd.URL, Paths: paths}
		}
	}

	g.resolver.Register(ctx, &out)
	return &out, issues, nil
}

// resolveAndGenerate fetches url through the Resolver and, if it has no
// snapshot yet, recursively generates one, propagating the in-progress
// chain so a cycle anywhere in the ancestry is caught.
func (g *Generator) resolveAndGenerate(ctx context.Context, childURL, url string, chain []string) (*parser.StructureDefinition, []issue.Issue, error) {
	base, ok := g.resolver.Resolve(ctx, url)
	if !ok {
		return nil, nil, &BaseNotFoundError{URL: childURL, BaseDefinition: url}
	}
	if len(base.Snapshot) > 0 {
		return base, nil, nil
	}
	return g.generate(ctx, base, chain)
}

// enter records url as in-progress for this generation and fails with a
// SnapshotCircularDependencyError if it already appears in chain. The set
// is cleared on every return path via leave, so a failed attempt never
// falsely poisons a later, independent call.
func (g *Generator) enter(url string, chain []string) error {
	for _, seen := range chain {
		if seen == url {
			return &SnapshotCircularDependencyError{URL: url, Chain: append(append([]string{}, chain...), url)}
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inProgress[url] {
		return &SnapshotCircularDependencyError{URL: url, Chain: append(append([]string{}, chain...), url)}
	}
	g.inProgress[url] = true
	return nil
}

func (g *Generator) leave(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inProgress, url)
}

func (g *Generator) mergeAgainstBase(base, diff []parser.ElementDefinition) ([]parser.ElementDefinition, []issue.Issue, error) {
	merged, issues := merge.Merge(base, diff, merge.Options{
		MaxRecursionDepth: g.opts.MaxRecursionDepth,
		ResolveDatatype:   g.resolveDatatype,
	})
	if g.opts.ThrowOnError {
		if errs := issue.Errors(issues); len(errs) > 0 {
			return nil, issues, fmt.Errorf("snapshot: merge failed: %s", errs[0].Message)
		}
	}
	return merged, issues, nil
}

// resolveDatatype satisfies merge.DatatypeResolver, memoizing each
// datatype's own element list (with its own base chain fully resolved)
// keyed by type code.
func (g *Generator) resolveDatatype(typeCode string) ([]parser.ElementDefinition, bool) {
	if strings.Contains(typeCode, "/") {
		return nil, false
	}
	if cached, ok := g.datatypes.Get(typeCode); ok {
		g.opts.Metrics.RecordCacheHit()
		return cached, true
	}
	g.opts.Metrics.RecordCacheMiss()

	ctx := context.Background()
	sd, ok := g.resolver.Resolve(ctx, coreDatatypeBase+typeCode)
	if !ok {
		return nil, false
	}
	if len(sd.Snapshot) == 0 {
		generated, _, err := g.generate(ctx, sd, nil)
		if err != nil {
			return nil, false
		}
		sd = generated
	}
	g.datatypes.Set(typeCode, sd.Snapshot)
	return sd.Snapshot, true
}

func cloneElements(els []parser.ElementDefinition) []parser.ElementDefinition {
	return append([]parser.ElementDefinition{}, els...)
}

// assignElementIDs stamps every element's ID from its dotted path plus a
// ":sliceName" suffix for named slices, following the convention each
// sibling slice of a sliced element is distinguished by (spec §4.G
// "element ID post-processing").
func assignElementIDs(els []parser.ElementDefinition) {
	for i := range els {
		id := els[i].Path
		if els[i].SliceName != nil && *els[i].SliceName != "" {
			id = id + ":" + *els[i].SliceName
		}
		els[i].ID = &id
	}
}
