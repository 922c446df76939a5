// Package slicing implements the new-slicing and existing-slicing
// scenarios of spec §4.I, invoked by package merge's branch D whenever a
// base element's differential candidates include a slicing descriptor or a
// named slice.
package slicing

import (
	"github.com/gofhir/profileengine/issue"
	"github.com/gofhir/profileengine/parser"
	"github.com/gofhir/profileengine/snapshot/elemmerge"
)

// Merge dispatches to the new-slicing or existing-slicing scenario
// depending on whether base already carries a slicing descriptor, and
// returns the slicing root followed by every slice element in order.
func Merge(base parser.ElementDefinition, candidates []parser.ElementDefinition) ([]parser.ElementDefinition, []issue.Issue) {
	if base.Slicing != nil {
		return mergeExisting(base, candidates)
	}
	return mergeNew(base, candidates)
}

// mergeNew handles "base unsliced, diff introduces slicing" (spec §4.I):
// the slicing-definition diff (no sliceName) is separated from slice
// entries (sliceName set); extension paths get the default discriminator
// when no explicit descriptor is supplied.
func mergeNew(base parser.ElementDefinition, candidates []parser.ElementDefinition) ([]parser.ElementDefinition, []issue.Issue) {
	var slicingDef *parser.ElementDefinition
	var sliceEntries []parser.ElementDefinition
	for i := range candidates {
		c := candidates[i]
		if c.SliceName == nil {
			if slicingDef == nil {
				slicingDef = &candidates[i]
			}
			continue
		}
		sliceEntries = append(sliceEntries, c)
	}

	root := elemmerge.Clone(base)
	root.Base = elemmerge.BaseTraceability(base)
	switch {
	case slicingDef != nil && slicingDef.Slicing != nil:
		elemmerge.ApplyConstraints(&root, *slicingDef)
	case isExtensionPath(base.Path):
		root.Slicing = defaultExtensionSlicing()
	default:
		root.Slicing = &parser.Slicing{Rules: "open"}
	}

	out := make([]parser.ElementDefinition, 0, len(sliceEntries)+1)
	out = append(out, root)
	for _, entry := range sliceEntries {
		el := elemmerge.Clone(base)
		el.Base = elemmerge.BaseTraceability(base)
		elemmerge.ApplyConstraints(&el, entry)
		el.SliceName = entry.SliceName
		out = append(out, el)
	}
	return out, nil
}

// mergeExisting handles re-profiling an already-sliced base (spec §4.I):
// validating the diff's slicing descriptor against the base's, then
// matching diff slice entries to base slices by name.
func mergeExisting(base parser.ElementDefinition, candidates []parser.ElementDefinition) ([]parser.ElementDefinition, []issue.Issue) {
	var issues []issue.Issue
	resultSlicing := base.Slicing

	var slicingDef *parser.ElementDefinition
	var sliceEntries []parser.ElementDefinition
	for i := range candidates {
		c := candidates[i]
		if c.SliceName == nil {
			if slicingDef == nil {
				slicingDef = &candidates[i]
			}
			continue
		}
		sliceEntries = append(sliceEntries, c)
	}

	if slicingDef != nil && slicingDef.Slicing != nil {
		if err := validateSlicingCompatible(base.Slicing, slicingDef.Slicing); err != "" {
			issues = append(issues, issue.Warnf(issue.CodeSlicingError, base.Path, "%s", err))
		} else {
			resultSlicing = slicingDef.Slicing
		}
	}

	root := elemmerge.Clone(base)
	root.Base = elemmerge.BaseTraceability(base)
	root.Slicing = resultSlicing

	out := []parser.ElementDefinition{root}
	for _, entry := range sliceEntries {
		el := elemmerge.Clone(base)
		el.Base = elemmerge.BaseTraceability(base)
		el.SliceName = entry.SliceName
		el.Slicing = nil
		elemmerge.ApplyConstraints(&el, entry)
		out = append(out, el)
	}

	return out, issues
}

// validateSlicingCompatible enforces spec §4.I's existing-slicing
// compatibility rules, returning a non-empty description of the first
// violation found, or "" if diff is compatible with base.
func validateSlicingCompatible(base, diff *parser.Slicing) string {
	if len(base.Discriminator) != len(diff.Discriminator) {
		return "discriminator list length differs from base"
	}
	for i, d := range base.Discriminator {
		if diff.Discriminator[i].Type != d.Type || diff.Discriminator[i].Path != d.Path {
			return "discriminator list differs from base"
		}
	}
	if base.Ordered != nil && diff.Ordered != nil && *base.Ordered && !*diff.Ordered {
		return "ordered may only tighten false->true, not relax"
	}
	if !rulesTighten(base.Rules, diff.Rules) {
		return "rules may only tighten open > openAtEnd > closed, not relax"
	}
	return ""
}

var rulesRank = map[string]int{"open": 0, "openAtEnd": 1, "closed": 2}

func rulesTighten(base, diff string) bool {
	if base == diff {
		return true
	}
	baseRank, baseOK := rulesRank[base]
	diffRank, diffOK := rulesRank[diff]
	if !baseOK || !diffOK {
		return true
	}
	return diffRank >= baseRank
}

func isExtensionPath(path string) bool {
	if path == "Extension" {
		return true
	}
	return len(path) > 10 && path[len(path)-10:] == ".extension"
}

func defaultExtensionSlicing() *parser.Slicing {
	ordered := false
	return &parser.Slicing{
		Discriminator: []parser.Discriminator{{Type: "value", Path: "url"}},
		Rules:         "open",
		Ordered:       &ordered,
	}
}
