// Package merge implements processPaths (spec §4.H): merging a
// differential element list over a base snapshot. It is the component the
// snapshot generator (package snapshot) calls once a base snapshot is
// available, and in turn delegates to package slicing for explicit slicing
// (branch D).
package merge

import (
	"strings"
	"unicode"

	"github.com/gofhir/profileengine/issue"
	"github.com/gofhir/profileengine/parser"
	"github.com/gofhir/profileengine/snapshot/elemmerge"
	"github.com/gofhir/profileengine/snapshot/slicing"
)

// DatatypeResolver resolves a complex-type code (e.g. "Identifier") to its
// own snapshot element list, for datatype expansion (spec §4.H). The
// generator implements this over its resolver + datatype cache.
type DatatypeResolver func(typeCode string) ([]parser.ElementDefinition, bool)

// Options configures one merge pass.
type Options struct {
	// MaxRecursionDepth caps nested datatype expansion (spec §4.H
	// "Recursion guard"). Zero means the caller's default (30) applies.
	MaxRecursionDepth int
	ResolveDatatype   DatatypeResolver
}

const defaultMaxRecursionDepth = 30

// diffEntry pairs a differential element with a mutable consumed flag,
// tracked per spec §9 rather than via an external parallel boolean array.
type diffEntry struct {
	element  parser.ElementDefinition
	consumed bool
}

// Merge runs processPaths over base and diff, returning the merged snapshot
// element list plus any warnings/errors accumulated along the way
// (DIFFERENTIAL_NOT_CONSUMED, BASE_NOT_FOUND, INTERNAL_ERROR,
// RECURSION_LIMIT_EXCEEDED).
func Merge(base, diff []parser.ElementDefinition, opts Options) ([]parser.ElementDefinition, []issue.Issue) {
	if opts.MaxRecursionDepth <= 0 {
		opts.MaxRecursionDepth = defaultMaxRecursionDepth
	}
	entries := make([]*diffEntry, len(diff))
	for i := range diff {
		entries[i] = &diffEntry{element: diff[i]}
	}

	var issues []issue.Issue
	result := processPaths(base, entries, opts, 0, &issues)

	for _, e := range entries {
		if !e.consumed {
			issues = append(issues, issue.Warnf(issue.CodeDifferentialNotConsumed, e.element.Path,
				"differential entry at %q did not match any base element", e.element.Path))
		}
	}

	return result, issues
}

// processPaths visits base in order, partitioning the differential range
// against each base element and dispatching to one of the four branches
// (spec §4.H).
func processPaths(base []parser.ElementDefinition, diffs []*diffEntry, opts Options, depth int, issues *[]issue.Issue) []parser.ElementDefinition {
	out := make([]parser.ElementDefinition, 0, len(base))

	for i, baseEl := range base {
		candidates := matchingDiffs(baseEl, diffs)

		switch {
		case len(candidates) == 0:
			out = append(out, branchA(baseEl))

		case isTypeSlicingCandidate(baseEl, candidates):
			out = append(out, branchC(baseEl, candidates)...)
			markConsumed(candidates)

		case isSlicingCandidate(baseEl, candidates):
			sliced, sliceIssues := slicing.Merge(baseEl, diffEntriesToElements(candidates))
			*issues = append(*issues, sliceIssues...)
			out = append(out, sliced...)
			markConsumed(candidates)

		case len(candidates) == 1:
			merged := branchB(baseEl, candidates[0].element)
			out = append(out, merged)
			candidates[0].consumed = true

		default:
			// Multiple plain (non-slicing) matches on the same path with no
			// slicing marker; treat defensively the same way explicit
			// slicing would, rather than silently picking one.
			sliced, sliceIssues := slicing.Merge(baseEl, diffEntriesToElements(candidates))
			*issues = append(*issues, sliceIssues...)
			out = append(out, sliced...)
			markConsumed(candidates)
		}

		// Datatype expansion: a diff targets a child of a non-root
		// baseEl.Path, but no upcoming base element already declares that
		// child. Unknown children of the root are left unconsumed.
		childDiffs := diffsUnderPath(baseEl.Path, diffs)
		if len(childDiffs) > 0 && strings.Contains(baseEl.Path, ".") && !nextBaseIsChild(base, i, baseEl.Path) {
			expanded := expandDatatype(baseEl, childDiffs, opts, depth, issues)
			out = append(out, expanded...)
		}
	}

	return out
}

// branchA deep-clones a base element with no differential match, setting
// base traceability to itself (spec §4.H branch A).
func branchA(base parser.ElementDefinition) parser.ElementDefinition {
	clone := elemmerge.Clone(base)
	clone.Base = elemmerge.BaseTraceability(base)
	return clone
}

// branchB clones base and applies the single matching differential's
// constrained fields over it (spec §4.H branch B).
func branchB(base, diff parser.ElementDefinition) parser.ElementDefinition {
	clone := elemmerge.Clone(base)
	clone.Base = elemmerge.BaseTraceability(base)
	elemmerge.ApplyConstraints(&clone, diff)

	// Choice narrowing: a diff path naming a concrete type variant of a
	// base "[x]" path collapses Type to that single entry.
	if strings.HasSuffix(base.Path, "[x]") {
		if variant, ok := choiceVariantSuffix(base.Path, diff.Path); ok {
			clone.Path = strings.TrimSuffix(base.Path, "[x]") + variant
			clone.Type = narrowType(base.Type, variant)
		}
	}
	return clone
}

// branchC synthesizes a slicing root plus one narrowed element per
// addressed choice variant (spec §4.H branch C: type slicing).
func branchC(base parser.ElementDefinition, candidates []*diffEntry) []parser.ElementDefinition {
	root := elemmerge.Clone(base)
	root.Base = elemmerge.BaseTraceability(base)
	root.Slicing = &parser.Slicing{
		Discriminator: []parser.Discriminator{{Type: "type", Path: "$this"}},
		Rules:         "closed",
	}

	out := make([]parser.ElementDefinition, 0, len(candidates)+1)
	out = append(out, root)
	for _, c := range candidates {
		variant, ok := choiceVariantSuffix(base.Path, c.element.Path)
		if !ok {
			continue
		}
		el := elemmerge.Clone(base)
		el.Base = elemmerge.BaseTraceability(base)
		el.Path = strings.TrimSuffix(base.Path, "[x]") + variant
		el.Type = narrowType(base.Type, variant)
		elemmerge.ApplyConstraints(&el, c.element)
		out = append(out, el)
	}
	return out
}

// expandDatatype resolves baseEl's declared complex type, clones its
// snapshot, rewrites paths from "<TypeRoot>.x" to "<baseEl.Path>.x", sets
// base traceability, and recursively merges childDiffs against the
// expanded children (spec §4.H "Datatype expansion").
func expandDatatype(baseEl parser.ElementDefinition, childDiffs []*diffEntry, opts Options, depth int, issues *[]issue.Issue) []parser.ElementDefinition {
	if depth >= opts.MaxRecursionDepth {
		*issues = append(*issues, issue.Errorf(issue.CodeRecursionLimitExceeded, baseEl.Path,
			"datatype expansion exceeded max recursion depth %d", opts.MaxRecursionDepth))
		return nil
	}
	if len(baseEl.Type) == 0 {
		*issues = append(*issues, issue.Errorf(issue.CodeInternalError, baseEl.Path,
			"cannot expand datatype: element has no declared type"))
		return nil
	}
	if opts.ResolveDatatype == nil {
		*issues = append(*issues, issue.Warnf(issue.CodeBaseNotFound, baseEl.Path,
			"no datatype resolver configured, skipping expansion of %q", baseEl.Type[0].Code))
		return nil
	}

	typeCode := baseEl.Type[0].Code
	datatypeElements, ok := opts.ResolveDatatype(typeCode)
	if !ok {
		*issues = append(*issues, issue.Warnf(issue.CodeBaseNotFound, baseEl.Path,
			"datatype %q not found in cache, skipping expansion", typeCode))
		return nil
	}
	if len(datatypeElements) == 0 {
		return nil
	}

	typeRoot := datatypeElements[0].Path
	children := make([]parser.ElementDefinition, 0, len(datatypeElements)-1)
	for _, el := range datatypeElements[1:] {
		clone := elemmerge.Clone(el)
		clone.Path = baseEl.Path + strings.TrimPrefix(el.Path, typeRoot)
		clone.Base = elemmerge.BaseTraceability(el)
		children = append(children, clone)
	}

	childDiffElements := make([]parser.ElementDefinition, len(childDiffs))
	for i, d := range childDiffs {
		childDiffElements[i] = d.element
		d.consumed = true
	}

	sub := Options{MaxRecursionDepth: opts.MaxRecursionDepth, ResolveDatatype: opts.ResolveDatatype}
	return processPaths(children, wrapEntries(childDiffElements), sub, depth+1, issues)
}

func wrapEntries(elements []parser.ElementDefinition) []*diffEntry {
	out := make([]*diffEntry, len(elements))
	for i := range elements {
		out[i] = &diffEntry{element: elements[i]}
	}
	return out
}

// matchingDiffs returns every unconsumed diff whose path is an exact match
// of base.Path, or — when base.Path is a choice "[x]" slot — a concrete
// type-variant match.
func matchingDiffs(base parser.ElementDefinition, diffs []*diffEntry) []*diffEntry {
	var out []*diffEntry
	isChoice := strings.HasSuffix(base.Path, "[x]")
	prefix := strings.TrimSuffix(base.Path, "[x]")
	for _, d := range diffs {
		if d.consumed {
			continue
		}
		if d.element.Path == base.Path {
			out = append(out, d)
			continue
		}
		if isChoice && strings.HasPrefix(d.element.Path, prefix) {
			suffix := d.element.Path[len(prefix):]
			if isKnownTypeName(suffix) {
				out = append(out, d)
			}
		}
	}
	return out
}

// isTypeSlicingCandidate reports branch C: the base is a choice slot and
// candidates address two or more distinct concrete variants.
func isTypeSlicingCandidate(base parser.ElementDefinition, candidates []*diffEntry) bool {
	if !strings.HasSuffix(base.Path, "[x]") || len(candidates) < 2 {
		return false
	}
	seen := map[string]bool{}
	for _, c := range candidates {
		if variant, ok := choiceVariantSuffix(base.Path, c.element.Path); ok {
			seen[variant] = true
		}
	}
	return len(seen) >= 2
}

// isSlicingCandidate reports branch D: the base is already sliced, or one
// of the candidates introduces a slicing descriptor or names a slice
// (spec §4.I's two scenarios).
func isSlicingCandidate(base parser.ElementDefinition, candidates []*diffEntry) bool {
	if base.Slicing != nil {
		return true
	}
	for _, c := range candidates {
		if c.element.SliceName != nil || c.element.Slicing != nil {
			return true
		}
	}
	return false
}

func choiceVariantSuffix(basePath, diffPath string) (string, bool) {
	prefix := strings.TrimSuffix(basePath, "[x]")
	if !strings.HasPrefix(diffPath, prefix) {
		return "", false
	}
	suffix := diffPath[len(prefix):]
	if isKnownTypeName(suffix) {
		return suffix, true
	}
	return "", false
}

func isKnownTypeName(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsUpper(rune(s[0]))
}

func narrowType(types []parser.TypeRef, variant string) []parser.TypeRef {
	wanted := strings.ToLower(variant[:1]) + variant[1:]
	for _, t := range types {
		if t.Code == wanted || t.Code == variant {
			return []parser.TypeRef{t}
		}
	}
	return types
}

func diffsUnderPath(path string, diffs []*diffEntry) []*diffEntry {
	var out []*diffEntry
	prefix := path + "."
	for _, d := range diffs {
		if d.consumed {
			continue
		}
		if strings.HasPrefix(d.element.Path, prefix) {
			out = append(out, d)
		}
	}
	return out
}

func nextBaseIsChild(base []parser.ElementDefinition, i int, path string) bool {
	if i+1 >= len(base) {
		return false
	}
	return strings.HasPrefix(base[i+1].Path, path+".")
}

func markConsumed(entries []*diffEntry) {
	for _, e := range entries {
		e.consumed = true
	}
}

func diffEntriesToElements(entries []*diffEntry) []parser.ElementDefinition {
	out := make([]parser.ElementDefinition, len(entries))
	for i, e := range entries {
		out[i] = e.element
	}
	return out
}
