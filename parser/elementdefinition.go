package parser

import (
	"encoding/json"

	"github.com/gofhir/profileengine/choice"
)

// ElementDefinition is the full 37-field FHIR R4 ElementDefinition type
// (spec §3). Every field but Path is optional; nil/zero-value pointers and
// empty slices distinguish "absent" from "present but empty" the way the
// JSON source does, since the serializer must omit exactly what was never
// supplied.
type ElementDefinition struct {
	ID                  *string
	Extension           []json.RawMessage
	ModifierExtension   []json.RawMessage
	Path                string
	Representation      []string
	SliceName           *string
	SliceIsConstraining *bool
	Label               *string
	Code                []Coding
	Slicing             *Slicing
	Short               *string
	Definition          *string
	Comment             *string
	Requirements        *string
	Alias               []string
	Min                 *int
	Max                 *string
	Base                *Base
	ContentReference    *string
	Type                []TypeRef
	DefaultValue        *ChoiceSlot
	MeaningWhenMissing  *string
	OrderMeaning        *string
	Fixed               *ChoiceSlot
	Pattern             *ChoiceSlot
	Example             []Example
	MinValue            *ChoiceSlot
	MaxValue            *ChoiceSlot
	MaxLength           *int
	Condition           []string
	Constraint          []ConstraintDef
	MustSupport         *bool
	IsModifier          *bool
	IsModifierReason    *string
	IsSummary           *bool
	Binding             *Binding
	Mapping             []Mapping
}

// choiceFieldsElementDefinition is the registry entry consulted by
// ParseObject's choice-type pass for an ElementDefinition object (spec
// §4.C: 5 choice fields).
var choiceFieldsElementDefinition = choice.Registry["ElementDefinition"]
