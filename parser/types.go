// Package parser implements the generic JSON parser for FHIR complex types
// (spec §4.D, the generic complex parser) and the concrete StructureDefinition
// / ElementDefinition schema built on top of it (spec §4.E).
package parser

// PrimitiveTypes lists the FHIR R4 primitive type codes, backing
// IsPrimitiveType.
var PrimitiveTypes = map[string]bool{
	"base64Binary": true, "boolean": true, "canonical": true, "code": true,
	"date": true, "dateTime": true, "decimal": true, "id": true,
	"instant": true, "integer": true, "integer64": true, "markdown": true,
	"oid": true, "positiveInt": true, "string": true, "time": true,
	"unsignedInt": true, "uri": true, "url": true, "uuid": true, "xhtml": true,
}

// IsPrimitiveType reports whether typeName is a FHIR R4 primitive type.
func IsPrimitiveType(typeName string) bool {
	return PrimitiveTypes[typeName]
}

// Coding is the minimal Coding shape the schema needs for
// ElementDefinition.code, StructureDefinition.keyword,
// CodeableConcept.coding and UsageContext.code.
type Coding struct {
	System  *string
	Version *string
	Code    *string
	Display *string
}

// Quantity mirrors the FHIR Quantity fields (value, comparator, unit,
// system, code).
type Quantity struct {
	Value      any // decimal.Decimal once merged by primitive.MergeElement
	Comparator *string
	Unit       *string
	System     *string
	Code       *string
}

// TypeRef is one entry of ElementDefinition.type: the allowed type code plus
// its profile/targetProfile canonical constraints (spec §4.H branch 4,
// "type changes from base").
type TypeRef struct {
	Code             string
	Profile          []string
	TargetProfile    []string
	Aggregation      []string
	Versioning       *string
}

// Discriminator is one ElementDefinition.slicing.discriminator entry (spec
// §4.I): the discriminator type code (value|exists|pattern|type|profile) and
// the dotted path it evaluates against the sliced element.
type Discriminator struct {
	Type string
	Path string
}

// Slicing is ElementDefinition.slicing (spec §4.I): the discriminators that
// distinguish slices, plus ordering/rules metadata.
type Slicing struct {
	Discriminator []Discriminator
	Description   *string
	Ordered       *bool
	Rules         string
}

// Binding is ElementDefinition.binding: strength plus the value set
// canonical. Value-set validation itself is a spec Non-goal; this is carried
// only so snapshot merging and search compilation can read binding.strength.
type Binding struct {
	Strength    string
	Description *string
	ValueSet    *string
}

// ConstraintDef is one ElementDefinition.constraint entry: an invariant key,
// severity, human description and FHIRPath expression. The engine stores
// these opaquely; evaluating the expression is out of scope (Non-goal: full
// FHIRPath grammar).
type ConstraintDef struct {
	Key        string
	Severity   string
	Human      string
	Expression *string
	XPath      *string
}

// Mapping is one ElementDefinition.mapping entry.
type Mapping struct {
	Identity string
	Map      string
	Comment  *string
}

// Base is ElementDefinition.base: the path/min/max this element was
// originally defined with, before any profile narrowed it.
type Base struct {
	Path string
	Min  int
	Max  string
}

// Example is one ElementDefinition.example entry: a label plus a choice
// value[x] slot.
type Example struct {
	Label string
	Value *ChoiceSlot
}

// ChoiceSlot carries a resolved "field[x]" value through to the typed
// struct, keeping the concrete type name so the serializer can rebuild the
// original JSON property name.
type ChoiceSlot struct {
	TypeName string
	Value    any
}

// StructureDefinitionContext is one StructureDefinition.context entry (spec
// §3/§4.E): where an Extension-kind definition is permitted to be used.
type StructureDefinitionContext struct {
	Type       string
	Expression string
}

// Identifier is one StructureDefinition.identifier entry: a business
// identifier for the definition, carried opaquely since resolving it against
// any external registry is out of scope.
type Identifier struct {
	Use    *string
	System *string
	Value  *string
}

// ContactPoint is one ContactDetail.telecom entry.
type ContactPoint struct {
	System *string
	Value  *string
	Use    *string
	Rank   *int
}

// ContactDetail is one StructureDefinition.contact entry: a name plus its
// telecom contact points.
type ContactDetail struct {
	Name    *string
	Telecom []ContactPoint
}

// CodeableConcept is a code plus coded alternatives, used by
// StructureDefinition.jurisdiction.
type CodeableConcept struct {
	Coding []Coding
	Text   *string
}

// UsageContext is one StructureDefinition.useContext entry: the context axis
// (e.g. "focus", "age") and its value, resolved through the same choice-type
// engine as ElementDefinition's "[x]" slots.
type UsageContext struct {
	Code  Coding
	Value *ChoiceSlot
}
