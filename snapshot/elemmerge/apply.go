// Package elemmerge holds the element-level clone/constrain helpers shared
// by package merge (branches A-D) and package slicing (new/existing
// slicing), so the two don't duplicate the same per-field constraint
// application logic.
package elemmerge

import "github.com/gofhir/profileengine/parser"

// Clone deep-copies an ElementDefinition's slice-typed fields so merge
// output never aliases a base element's backing arrays (spec §9 "mutable
// base tables avoided").
func Clone(el parser.ElementDefinition) parser.ElementDefinition {
	clone := el
	clone.Representation = append([]string{}, el.Representation...)
	clone.Code = append([]parser.Coding{}, el.Code...)
	clone.Alias = append([]string{}, el.Alias...)
	clone.Type = append([]parser.TypeRef{}, el.Type...)
	clone.Example = append([]parser.Example{}, el.Example...)
	clone.Condition = append([]string{}, el.Condition...)
	clone.Constraint = append([]parser.ConstraintDef{}, el.Constraint...)
	clone.Mapping = append([]parser.Mapping{}, el.Mapping...)
	return clone
}

// ApplyConstraints folds a differential element's constraining fields onto
// dst (spec §4.H branch B: "cardinality tightening, documentation
// override, flag setting, value fixing, type narrowing"). dst is assumed to
// already be a clone, not a base element.
func ApplyConstraints(dst *parser.ElementDefinition, diff parser.ElementDefinition) {
	if diff.ID != nil {
		dst.ID = diff.ID
	}
	if diff.SliceName != nil {
		dst.SliceName = diff.SliceName
	}
	if diff.SliceIsConstraining != nil {
		dst.SliceIsConstraining = diff.SliceIsConstraining
	}
	if diff.Min != nil {
		dst.Min = diff.Min
	}
	if diff.Max != nil {
		dst.Max = diff.Max
	}
	if diff.Short != nil {
		dst.Short = diff.Short
	}
	if diff.Definition != nil {
		dst.Definition = diff.Definition
	}
	if diff.Comment != nil {
		dst.Comment = diff.Comment
	}
	if diff.Requirements != nil {
		dst.Requirements = diff.Requirements
	}
	if diff.MustSupport != nil {
		dst.MustSupport = diff.MustSupport
	}
	if diff.IsModifier != nil {
		dst.IsModifier = diff.IsModifier
	}
	if diff.IsModifierReason != nil {
		dst.IsModifierReason = diff.IsModifierReason
	}
	if diff.IsSummary != nil {
		dst.IsSummary = diff.IsSummary
	}
	if diff.Binding != nil {
		dst.Binding = diff.Binding
	}
	if diff.Slicing != nil {
		dst.Slicing = diff.Slicing
	}
	if len(diff.Type) > 0 {
		dst.Type = diff.Type
	}
	if len(diff.Constraint) > 0 {
		dst.Constraint = append(append([]parser.ConstraintDef{}, dst.Constraint...), diff.Constraint...)
	}
	if len(diff.Mapping) > 0 {
		dst.Mapping = append(append([]parser.Mapping{}, dst.Mapping...), diff.Mapping...)
	}
	if diff.DefaultValue != nil {
		dst.DefaultValue = diff.DefaultValue
	}
	if diff.Fixed != nil {
		dst.Fixed = diff.Fixed
	}
	if diff.Pattern != nil {
		dst.Pattern = diff.Pattern
	}
	if diff.MinValue != nil {
		dst.MinValue = diff.MinValue
	}
	if diff.MaxValue != nil {
		dst.MaxValue = diff.MaxValue
	}
	if diff.MaxLength != nil {
		dst.MaxLength = diff.MaxLength
	}
	if len(diff.Example) > 0 {
		dst.Example = diff.Example
	}
}

// BaseTraceability builds the base.{path,min,max} stamp every merged
// element must carry (spec §4.H, tested in §8 "Merger invariants").
func BaseTraceability(original parser.ElementDefinition) *parser.Base {
	return &parser.Base{Path: original.Path, Min: DerefInt(original.Min), Max: DerefString(original.Max, "*")}
}

func DerefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func DerefString(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
