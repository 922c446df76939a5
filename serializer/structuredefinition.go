package serializer

import (
	"encoding/json"

	"github.com/gofhir/profileengine/parser"
)

// SerializeStructureDefinition renders sd as pretty-printed FHIR JSON
// (spec §4.F): resourceType first, every other key alphabetically sorted,
// absent fields omitted.
func SerializeStructureDefinition(sd *parser.StructureDefinition) ([]byte, error) {
	return MarshalResource("StructureDefinition", structureDefinitionToMap(sd))
}

func structureDefinitionToMap(sd *parser.StructureDefinition) map[string]any {
	obj := make(map[string]any)
	setIfPresent(obj, "id", sd.ID)
	obj["url"] = sd.URL
	setIfNonEmpty(obj, "identifier", identifierSliceToAny(sd.Identifier))
	setIfPresent(obj, "version", sd.Version)
	obj["name"] = sd.Name
	setIfPresent(obj, "title", sd.Title)
	obj["status"] = sd.Status
	setIfPresent(obj, "experimental", sd.Experimental)
	setIfPresent(obj, "date", sd.Date)
	setIfPresent(obj, "publisher", sd.Publisher)
	setIfNonEmpty(obj, "contact", contactSliceToAny(sd.Contact))
	setIfPresent(obj, "description", sd.Description)
	setIfNonEmpty(obj, "useContext", usageContextSliceToAny(sd.UseContext))
	setIfNonEmpty(obj, "jurisdiction", codeableConceptSliceToAny(sd.Jurisdiction))
	setIfPresent(obj, "purpose", sd.Purpose)
	setIfNonEmpty(obj, "keyword", codingSliceToAny(sd.Keyword))
	setIfPresent(obj, "fhirVersion", sd.FHIRVersion)
	setIfNonEmpty(obj, "mapping", mappingSliceToAny(sd.Mapping))
	obj["kind"] = sd.Kind
	obj["abstract"] = sd.Abstract
	setIfNonEmpty(obj, "context", structureDefinitionContextSliceToAny(sd.Context))
	setIfNonEmpty(obj, "contextInvariant", sd.ContextInvariant)
	obj["type"] = sd.Type
	setIfPresent(obj, "baseDefinition", sd.BaseDefinition)
	setIfPresent(obj, "derivation", sd.Derivation)

	if len(sd.Differential) > 0 {
		obj["differential"] = map[string]any{"element": elementListToSlice(sd.Differential)}
	}
	if len(sd.Snapshot) > 0 {
		obj["snapshot"] = map[string]any{"element": elementListToSlice(sd.Snapshot)}
	}

	return obj
}

func identifierSliceToAny(ids []parser.Identifier) []any {
	if len(ids) == 0 {
		return nil
	}
	out := make([]any, len(ids))
	for i, id := range ids {
		m := map[string]any{}
		setIfPresent(m, "use", id.Use)
		setIfPresent(m, "system", id.System)
		setIfPresent(m, "value", id.Value)
		out[i] = m
	}
	return out
}

func contactPointSliceToAny(telecom []parser.ContactPoint) []any {
	if len(telecom) == 0 {
		return nil
	}
	out := make([]any, len(telecom))
	for i, cp := range telecom {
		m := map[string]any{}
		setIfPresent(m, "system", cp.System)
		setIfPresent(m, "value", cp.Value)
		setIfPresent(m, "use", cp.Use)
		setIfPresent(m, "rank", cp.Rank)
		out[i] = m
	}
	return out
}

func contactSliceToAny(contacts []parser.ContactDetail) []any {
	if len(contacts) == 0 {
		return nil
	}
	out := make([]any, len(contacts))
	for i, c := range contacts {
		m := map[string]any{}
		setIfPresent(m, "name", c.Name)
		setIfNonEmpty(m, "telecom", contactPointSliceToAny(c.Telecom))
		out[i] = m
	}
	return out
}

func codeableConceptSliceToAny(concepts []parser.CodeableConcept) []any {
	if len(concepts) == 0 {
		return nil
	}
	out := make([]any, len(concepts))
	for i, cc := range concepts {
		m := map[string]any{}
		setIfNonEmpty(m, "coding", codingSliceToAny(cc.Coding))
		setIfPresent(m, "text", cc.Text)
		out[i] = m
	}
	return out
}

func usageContextSliceToAny(contexts []parser.UsageContext) []any {
	if len(contexts) == 0 {
		return nil
	}
	out := make([]any, len(contexts))
	for i, uc := range contexts {
		m := map[string]any{"code": codingToMap(uc.Code)}
		putChoiceSlot(m, "value", uc.Value)
		out[i] = m
	}
	return out
}

func codingToMap(c parser.Coding) map[string]any {
	m := map[string]any{}
	setIfPresent(m, "system", c.System)
	setIfPresent(m, "version", c.Version)
	setIfPresent(m, "code", c.Code)
	setIfPresent(m, "display", c.Display)
	return m
}

func structureDefinitionContextSliceToAny(contexts []parser.StructureDefinitionContext) []any {
	if len(contexts) == 0 {
		return nil
	}
	out := make([]any, len(contexts))
	for i, c := range contexts {
		out[i] = map[string]any{"type": c.Type, "expression": c.Expression}
	}
	return out
}

func elementListToSlice(elements []parser.ElementDefinition) []any {
	out := make([]any, len(elements))
	for i := range elements {
		out[i] = elementDefinitionToMap(&elements[i])
	}
	return out
}

// SerializeElementDefinition renders a single ElementDefinition as a plain
// JSON object (no resourceType, no top-level key reordering needed beyond
// alphabetical, which encoding/json already gives map[string]any).
func SerializeElementDefinition(ed *parser.ElementDefinition) map[string]any {
	return elementDefinitionToMap(ed)
}

func elementDefinitionToMap(ed *parser.ElementDefinition) map[string]any {
	obj := make(map[string]any)
	setIfPresent(obj, "id", ed.ID)
	setIfNonEmpty(obj, "extension", rawMessagesToAny(ed.Extension))
	setIfNonEmpty(obj, "modifierExtension", rawMessagesToAny(ed.ModifierExtension))
	obj["path"] = ed.Path
	setIfNonEmpty(obj, "representation", ed.Representation)
	setIfPresent(obj, "sliceName", ed.SliceName)
	setIfPresent(obj, "sliceIsConstraining", ed.SliceIsConstraining)
	setIfPresent(obj, "label", ed.Label)
	setIfNonEmpty(obj, "code", codingSliceToAny(ed.Code))
	if ed.Slicing != nil {
		obj["slicing"] = slicingToMap(ed.Slicing)
	}
	setIfPresent(obj, "short", ed.Short)
	setIfPresent(obj, "definition", ed.Definition)
	setIfPresent(obj, "comment", ed.Comment)
	setIfPresent(obj, "requirements", ed.Requirements)
	setIfNonEmpty(obj, "alias", ed.Alias)
	setIfPresent(obj, "min", ed.Min)
	setIfPresent(obj, "max", ed.Max)
	if ed.Base != nil {
		obj["base"] = map[string]any{"path": ed.Base.Path, "min": ed.Base.Min, "max": ed.Base.Max}
	}
	setIfPresent(obj, "contentReference", ed.ContentReference)
	setIfNonEmpty(obj, "type", typeRefSliceToAny(ed.Type))

	putChoiceSlot(obj, "defaultValue", ed.DefaultValue)
	setIfPresent(obj, "meaningWhenMissing", ed.MeaningWhenMissing)
	setIfPresent(obj, "orderMeaning", ed.OrderMeaning)
	putChoiceSlot(obj, "fixed", ed.Fixed)
	putChoiceSlot(obj, "pattern", ed.Pattern)
	setIfNonEmpty(obj, "example", exampleSliceToAny(ed.Example))
	putChoiceSlot(obj, "minValue", ed.MinValue)
	putChoiceSlot(obj, "maxValue", ed.MaxValue)
	setIfPresent(obj, "maxLength", ed.MaxLength)
	setIfNonEmpty(obj, "condition", ed.Condition)
	setIfNonEmpty(obj, "constraint", constraintSliceToAny(ed.Constraint))
	setIfPresent(obj, "mustSupport", ed.MustSupport)
	setIfPresent(obj, "isModifier", ed.IsModifier)
	setIfPresent(obj, "isModifierReason", ed.IsModifierReason)
	setIfPresent(obj, "isSummary", ed.IsSummary)
	if ed.Binding != nil {
		obj["binding"] = bindingToMap(ed.Binding)
	}
	setIfNonEmpty(obj, "mapping", mappingSliceToAny(ed.Mapping))

	return obj
}

// putChoiceSlot expands a ChoiceValue slot back to its "<base><Type>" key
// (spec §4.F rule 3). A nil slot leaves obj untouched.
func putChoiceSlot(obj map[string]any, baseName string, slot *parser.ChoiceSlot) {
	if slot == nil {
		return
	}
	obj[baseName+slot.TypeName] = slot.Value
}

func slicingToMap(s *parser.Slicing) map[string]any {
	m := map[string]any{"rules": s.Rules}
	if len(s.Discriminator) > 0 {
		discs := make([]any, len(s.Discriminator))
		for i, d := range s.Discriminator {
			discs[i] = map[string]any{"type": d.Type, "path": d.Path}
		}
		m["discriminator"] = discs
	}
	setIfPresent(m, "description", s.Description)
	setIfPresent(m, "ordered", s.Ordered)
	return m
}

func bindingToMap(b *parser.Binding) map[string]any {
	m := map[string]any{"strength": b.Strength}
	setIfPresent(m, "description", b.Description)
	setIfPresent(m, "valueSet", b.ValueSet)
	return m
}

func codingSliceToAny(codes []parser.Coding) []any {
	if len(codes) == 0 {
		return nil
	}
	out := make([]any, len(codes))
	for i, c := range codes {
		out[i] = codingToMap(c)
	}
	return out
}

func typeRefSliceToAny(types []parser.TypeRef) []any {
	if len(types) == 0 {
		return nil
	}
	out := make([]any, len(types))
	for i, t := range types {
		m := map[string]any{"code": t.Code}
		setIfNonEmpty(m, "profile", t.Profile)
		setIfNonEmpty(m, "targetProfile", t.TargetProfile)
		setIfNonEmpty(m, "aggregation", t.Aggregation)
		setIfPresent(m, "versioning", t.Versioning)
		out[i] = m
	}
	return out
}

func constraintSliceToAny(constraints []parser.ConstraintDef) []any {
	if len(constraints) == 0 {
		return nil
	}
	out := make([]any, len(constraints))
	for i, c := range constraints {
		m := map[string]any{"key": c.Key, "severity": c.Severity, "human": c.Human}
		setIfPresent(m, "expression", c.Expression)
		setIfPresent(m, "xpath", c.XPath)
		out[i] = m
	}
	return out
}

func mappingSliceToAny(mappings []parser.Mapping) []any {
	if len(mappings) == 0 {
		return nil
	}
	out := make([]any, len(mappings))
	for i, mp := range mappings {
		m := map[string]any{"identity": mp.Identity, "map": mp.Map}
		setIfPresent(m, "comment", mp.Comment)
		out[i] = m
	}
	return out
}

// rawMessagesToAny passes already-encoded extension JSON through untouched;
// the generic parser never re-decodes Extension bodies (spec §4.D leaves
// them opaque), so they're carried as json.RawMessage end to end.
func rawMessagesToAny(raw []json.RawMessage) []any {
	if len(raw) == 0 {
		return nil
	}
	out := make([]any, len(raw))
	for i, r := range raw {
		out[i] = r
	}
	return out
}

func exampleSliceToAny(examples []parser.Example) []any {
	if len(examples) == 0 {
		return nil
	}
	out := make([]any, len(examples))
	for i, ex := range examples {
		m := map[string]any{"label": ex.Label}
		putChoiceSlot(m, "value", ex.Value)
		out[i] = m
	}
	return out
}
