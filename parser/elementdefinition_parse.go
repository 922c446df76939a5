package parser

import (
	"encoding/json"

	"github.com/gofhir/profileengine/choice"
	"github.com/gofhir/profileengine/issue"
	"github.com/gofhir/profileengine/primitive"
)

// elementDefinitionSchema declares every known ElementDefinition JSON
// property for the generic complex parser (spec §4.D/§4.E). Choice-typed
// "[x]" slots (defaultValue, fixed, pattern, minValue, maxValue) are
// deliberately absent here — they're resolved separately by the choice
// engine, the same way ParseObject's pass 3 expects.
var elementDefinitionSchema = PropertySchema{
	"id":                  {IsPrimitive: true, FHIRType: "string"},
	"sliceName":           {IsPrimitive: true, FHIRType: "string"},
	"sliceIsConstraining": {IsPrimitive: true, FHIRType: "boolean"},
	"label":               {IsPrimitive: true, FHIRType: "string"},
	"path":                {IsPrimitive: true, FHIRType: "string"},
	"representation":      {IsPrimitive: true, IsArray: true, FHIRType: "code"},
	"short":               {IsPrimitive: true, FHIRType: "string"},
	"definition":          {IsPrimitive: true, FHIRType: "markdown"},
	"comment":             {IsPrimitive: true, FHIRType: "markdown"},
	"requirements":        {IsPrimitive: true, FHIRType: "markdown"},
	"alias":               {IsPrimitive: true, IsArray: true, FHIRType: "string"},
	"min":                 {IsPrimitive: true, FHIRType: "unsignedInt"},
	"max":                 {IsPrimitive: true, FHIRType: "string"},
	"contentReference":    {IsPrimitive: true, FHIRType: "uri"},
	"meaningWhenMissing":  {IsPrimitive: true, FHIRType: "markdown"},
	"orderMeaning":        {IsPrimitive: true, FHIRType: "string"},
	"maxLength":           {IsPrimitive: true, FHIRType: "integer"},
	"condition":           {IsPrimitive: true, IsArray: true, FHIRType: "id"},
	"mustSupport":         {IsPrimitive: true, FHIRType: "boolean"},
	"isModifier":          {IsPrimitive: true, FHIRType: "boolean"},
	"isModifierReason":    {IsPrimitive: true, FHIRType: "string"},
	"isSummary":           {IsPrimitive: true, FHIRType: "boolean"},
	"base":                {ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseBase(obj, path) }},
	"slicing":             {ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseSlicing(obj, path) }},
	"binding":             {ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseBinding(obj, path) }},
	"type":                {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseTypeRefItem(obj, path) }},
	"constraint":          {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseConstraintItem(obj, path) }},
	"mapping":             {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseMappingItem(obj, path) }},
	"code":                {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseCodingItem(obj, path) }},
	"example":             {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseExampleItem(obj, path) }},
}

// ParseElementDefinition parses one ElementDefinition JSON object (spec
// §4.E) by running the generic complex parser over elementDefinitionSchema
// and the ElementDefinition choice-field registry, then assembling the
// typed struct from the resulting ParsedObject. "path" is the only required
// field; every other property is optional.
func ParseElementDefinition(obj map[string]any, path string) (ElementDefinition, []issue.Issue) {
	parsed, issues := ParseObject(obj, elementDefinitionSchema, choiceFieldsElementDefinition, path)

	if _, ok := obj["path"]; !ok {
		issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, path,
			"required property \"path\" is missing"))
	}

	ed := ElementDefinition{}
	assignMergedString(parsed, "id", &ed.ID)
	assignMergedString(parsed, "sliceName", &ed.SliceName)
	assignMergedString(parsed, "label", &ed.Label)
	assignMergedString(parsed, "short", &ed.Short)
	assignMergedString(parsed, "definition", &ed.Definition)
	assignMergedString(parsed, "comment", &ed.Comment)
	assignMergedString(parsed, "requirements", &ed.Requirements)
	assignMergedString(parsed, "contentReference", &ed.ContentReference)
	assignMergedString(parsed, "meaningWhenMissing", &ed.MeaningWhenMissing)
	assignMergedString(parsed, "orderMeaning", &ed.OrderMeaning)
	assignMergedString(parsed, "isModifierReason", &ed.IsModifierReason)
	if s, ok := rawPrimitiveString(parsed.Get("path")); ok {
		ed.Path = s
	}

	if b, ok := asBoolPtr(parsed.Get("sliceIsConstraining")); ok {
		ed.SliceIsConstraining = b
	}
	if b, ok := asBoolPtr(parsed.Get("mustSupport")); ok {
		ed.MustSupport = b
	}
	if b, ok := asBoolPtr(parsed.Get("isModifier")); ok {
		ed.IsModifier = b
	}
	if b, ok := asBoolPtr(parsed.Get("isSummary")); ok {
		ed.IsSummary = b
	}

	ed.Representation = stringSlice(parsed.Get("representation"))
	ed.Alias = stringSlice(parsed.Get("alias"))
	ed.Condition = stringSlice(parsed.Get("condition"))

	if n, ok := asIntPtr(parsed.Get("min")); ok {
		ed.Min = n
	}
	if m, ok := rawPrimitiveString(parsed.Get("max")); ok {
		ed.Max = &m
	}
	if n, ok := asIntPtr(parsed.Get("maxLength")); ok {
		ed.MaxLength = n
	}

	if base, ok := parsed.Get("base").(*Base); ok {
		ed.Base = base
	}
	if slicing, ok := parsed.Get("slicing").(*Slicing); ok {
		ed.Slicing = slicing
	}
	if binding, ok := parsed.Get("binding").(*Binding); ok {
		ed.Binding = binding
	}
	ed.Type = typeRefSlice(parsed.Get("type"))
	ed.Constraint = constraintSlice(parsed.Get("constraint"))
	ed.Mapping = mappingSlice(parsed.Get("mapping"))
	ed.Code = codingSlice(parsed.Get("code"))
	ed.Example = exampleSlice(parsed.Get("example"))

	ed.DefaultValue = toChoiceSlot(parsed.Choices["defaultValue"])
	ed.Fixed = toChoiceSlot(parsed.Choices["fixed"])
	ed.Pattern = toChoiceSlot(parsed.Choices["pattern"])
	ed.MinValue = toChoiceSlot(parsed.Choices["minValue"])
	ed.MaxValue = toChoiceSlot(parsed.Choices["maxValue"])

	return ed, issues
}

func toChoiceSlot(cv *choice.ChoiceValue) *ChoiceSlot {
	if cv == nil {
		return nil
	}
	return &ChoiceSlot{TypeName: cv.TypeName, Value: cv.Value}
}

// assignMergedString unwraps a merged primitive-with-metadata value (spec
// §4.B) down to its underlying string, ignoring any id/extension wrapper,
// since the typed struct fields here only model the value itself.
func assignMergedString(parsed ParsedObject, name string, dst **string) {
	if s, ok := rawPrimitiveString(parsed.Get(name)); ok {
		*dst = &s
	}
}

func rawPrimitiveString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case primitive.WithMetadata:
		if !x.HasValue {
			return "", false
		}
		s, ok := x.Value.(string)
		return s, ok
	default:
		return "", false
	}
}

func asBoolPtr(v any) (*bool, bool) {
	switch x := v.(type) {
	case bool:
		return &x, true
	case primitive.WithMetadata:
		if !x.HasValue {
			return nil, false
		}
		b, ok := x.Value.(bool)
		if !ok {
			return nil, false
		}
		return &b, true
	default:
		return nil, false
	}
}

func asIntPtr(v any) (*int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		iv := int(i)
		return &iv, true
	case float64:
		iv := int(n)
		return &iv, true
	case primitive.WithMetadata:
		if !n.HasValue {
			return nil, false
		}
		return asIntPtr(n.Value)
	default:
		return nil, false
	}
}

// stringSlice extracts plain strings out of an already-merged primitive
// array (spec §4.B), unwrapping any per-item id/extension metadata down to
// its bare value since these slice fields model the values only.
func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := rawPrimitiveString(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringArray(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func typeRefSlice(v any) []TypeRef {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]TypeRef, 0, len(arr))
	for _, item := range arr {
		if t, ok := item.(*TypeRef); ok {
			out = append(out, *t)
		}
	}
	return out
}

func constraintSlice(v any) []ConstraintDef {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ConstraintDef, 0, len(arr))
	for _, item := range arr {
		if c, ok := item.(*ConstraintDef); ok {
			out = append(out, *c)
		}
	}
	return out
}

func mappingSlice(v any) []Mapping {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Mapping, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(*Mapping); ok {
			out = append(out, *m)
		}
	}
	return out
}

func codingSlice(v any) []Coding {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Coding, 0, len(arr))
	for _, item := range arr {
		if c, ok := item.(*Coding); ok {
			out = append(out, *c)
		}
	}
	return out
}

func exampleSlice(v any) []Example {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Example, 0, len(arr))
	for _, item := range arr {
		if e, ok := item.(*Example); ok {
			out = append(out, *e)
		}
	}
	return out
}

func parseBase(obj map[string]any, _ string) (*Base, []issue.Issue) {
	b := &Base{}
	if p, ok := obj["path"].(string); ok {
		b.Path = p
	}
	if n, ok := asInt(obj["min"]); ok {
		b.Min = n
	}
	if m, ok := obj["max"].(string); ok {
		b.Max = m
	}
	return b, nil
}

func parseSlicing(obj map[string]any, path string) (*Slicing, []issue.Issue) {
	s := &Slicing{}
	s.Description = assignOptString(obj, "description")
	if b, ok := obj["ordered"].(bool); ok {
		s.Ordered = &b
	}
	if r, ok := obj["rules"].(string); ok {
		s.Rules = r
	}
	var issues []issue.Issue
	if discRaw, ok := obj["discriminator"]; ok {
		arr, ok := discRaw.([]any)
		if !ok {
			issues = append(issues, issue.Errorf(issue.CodeArrayMismatch, issue.JoinPath(path, "discriminator"),
				"expected an array, got %T", discRaw))
		} else {
			for i, item := range arr {
				dobj, ok := item.(map[string]any)
				if !ok {
					issues = append(issues, issue.Errorf(issue.CodeInvalidStructure,
						issue.IndexPath(issue.JoinPath(path, "discriminator"), i), "expected an object, got %T", item))
					continue
				}
				d := Discriminator{}
				if t, ok := dobj["type"].(string); ok {
					d.Type = t
				}
				if p, ok := dobj["path"].(string); ok {
					d.Path = p
				}
				s.Discriminator = append(s.Discriminator, d)
			}
		}
	}
	return s, issues
}

func parseBinding(obj map[string]any, path string) (*Binding, []issue.Issue) {
	b := &Binding{}
	if s, ok := obj["strength"].(string); ok {
		b.Strength = s
	} else {
		return b, []issue.Issue{issue.Errorf(issue.CodeInvalidPrimitive, issue.JoinPath(path, "strength"),
			"required property \"strength\" is missing")}
	}
	b.Description = assignOptString(obj, "description")
	b.ValueSet = assignOptString(obj, "valueSet")
	return b, nil
}

func parseTypeRefItem(obj map[string]any, path string) (*TypeRef, []issue.Issue) {
	var issues []issue.Issue
	t := &TypeRef{}
	if c, ok := obj["code"].(string); ok {
		t.Code = c
	} else {
		issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, path,
			"required property \"code\" is missing"))
	}
	if p, ok := obj["profile"]; ok {
		t.Profile = stringArray(p)
	}
	if p, ok := obj["targetProfile"]; ok {
		t.TargetProfile = stringArray(p)
	}
	if p, ok := obj["aggregation"]; ok {
		t.Aggregation = stringArray(p)
	}
	t.Versioning = assignOptString(obj, "versioning")
	return t, issues
}

func parseConstraintItem(obj map[string]any, _ string) (*ConstraintDef, []issue.Issue) {
	c := &ConstraintDef{}
	if k, ok := obj["key"].(string); ok {
		c.Key = k
	}
	if s, ok := obj["severity"].(string); ok {
		c.Severity = s
	}
	if h, ok := obj["human"].(string); ok {
		c.Human = h
	}
	c.Expression = assignOptString(obj, "expression")
	c.XPath = assignOptString(obj, "xpath")
	return c, nil
}

func parseMappingItem(obj map[string]any, _ string) (*Mapping, []issue.Issue) {
	m := &Mapping{}
	if id, ok := obj["identity"].(string); ok {
		m.Identity = id
	}
	if mp, ok := obj["map"].(string); ok {
		m.Map = mp
	}
	m.Comment = assignOptString(obj, "comment")
	return m, nil
}

func parseCodingItem(obj map[string]any, _ string) (*Coding, []issue.Issue) {
	return &Coding{
		System:  assignOptString(obj, "system"),
		Version: assignOptString(obj, "version"),
		Code:    assignOptString(obj, "code"),
		Display: assignOptString(obj, "display"),
	}, nil
}

func parseExampleItem(obj map[string]any, path string) (*Example, []issue.Issue) {
	ex := &Example{}
	if l, ok := obj["label"].(string); ok {
		ex.Label = l
	}
	choices, _, issues := choice.ExtractAllChoiceValues(obj, choice.Registry["ElementDefinitionExample"], path)
	ex.Value = toChoiceSlot(choices["value"])
	return ex, issues
}
