package parser

import (
	"github.com/gofhir/profileengine/choice"
	"github.com/gofhir/profileengine/issue"
)

// choiceFieldsStructureDefinition is empty: StructureDefinition itself owns
// no "[x]" choice slots (spec §4.C), unlike ElementDefinition and
// UsageContext.
var choiceFieldsStructureDefinition []choice.FieldSpec

// StructureDefinition is the subset of the FHIR R4 StructureDefinition
// resource the snapshot generator and search planner need (spec §3):
// metadata plus the differential and snapshot element lists.
type StructureDefinition struct {
	ID               *string
	URL              string
	Identifier       []Identifier
	Version          *string
	Name             string
	Title            *string
	Status           string
	Experimental     *bool
	Date             *string
	Publisher        *string
	Contact          []ContactDetail
	Description      *string
	UseContext       []UsageContext
	Jurisdiction     []CodeableConcept
	Purpose          *string
	Keyword          []Coding
	FHIRVersion      *string
	Mapping          []Mapping
	Kind             string
	Abstract         bool
	Context          []StructureDefinitionContext
	ContextInvariant []string
	Type             string
	BaseDefinition   *string
	Derivation       *string
	Differential     []ElementDefinition
	Snapshot         []ElementDefinition
}

// structureDefinitionSchema declares every known StructureDefinition JSON
// property for the generic complex parser (spec §4.D/§4.E), the same
// four-pass dispatch elementDefinitionSchema runs ElementDefinition through.
var structureDefinitionSchema = PropertySchema{
	"id":               {IsPrimitive: true, FHIRType: "string"},
	"url":              {IsPrimitive: true, FHIRType: "uri"},
	"version":          {IsPrimitive: true, FHIRType: "string"},
	"name":             {IsPrimitive: true, FHIRType: "string"},
	"title":            {IsPrimitive: true, FHIRType: "string"},
	"status":           {IsPrimitive: true, FHIRType: "code"},
	"experimental":     {IsPrimitive: true, FHIRType: "boolean"},
	"date":             {IsPrimitive: true, FHIRType: "dateTime"},
	"publisher":        {IsPrimitive: true, FHIRType: "string"},
	"description":      {IsPrimitive: true, FHIRType: "markdown"},
	"purpose":          {IsPrimitive: true, FHIRType: "markdown"},
	"fhirVersion":      {IsPrimitive: true, FHIRType: "code"},
	"kind":             {IsPrimitive: true, FHIRType: "code"},
	"abstract":         {IsPrimitive: true, FHIRType: "boolean"},
	"contextInvariant": {IsPrimitive: true, IsArray: true, FHIRType: "string"},
	"type":             {IsPrimitive: true, FHIRType: "uri"},
	"baseDefinition":   {IsPrimitive: true, FHIRType: "canonical"},
	"derivation":       {IsPrimitive: true, FHIRType: "code"},

	"identifier": {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseIdentifierItem(obj, path) }},
	"contact":    {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseContactItem(obj, path) }},
	"useContext": {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseUsageContextItem(obj, path) }},
	"jurisdiction": {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) {
		return parseCodeableConceptItem(obj, path)
	}},
	"keyword":      {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseCodingItem(obj, path) }},
	"mapping":      {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseMappingItem(obj, path) }},
	"context":      {IsArray: true, ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseContextItem(obj, path) }},
	"differential": {ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseElementListBlockEntry(obj, path) }},
	"snapshot":     {ParseElement: func(obj map[string]any, path string) (any, []issue.Issue) { return parseElementListBlockEntry(obj, path) }},
}

// ParseStructureDefinition parses a raw StructureDefinition JSON object
// (already decoded to a generic map, e.g. via a json.Decoder configured with
// UseNumber so FHIR decimal values survive without float64 drift) into a
// typed StructureDefinition, running every pass of the generic complex
// parser over the top-level object via structureDefinitionSchema and over
// each differential/snapshot ElementDefinition.
func ParseStructureDefinition(obj map[string]any) issue.ParseResult[*StructureDefinition] {
	if rt, ok := obj["resourceType"].(string); !ok || rt != "StructureDefinition" {
		issues := []issue.Issue{issue.Errorf(issue.CodeUnknownResourceType, "StructureDefinition",
			"expected resourceType \"StructureDefinition\", got %v", obj["resourceType"])}
		return issue.FromIssues[*StructureDefinition](nil, issues)
	}

	parsed, issues := ParseObject(obj, structureDefinitionSchema, choiceFieldsStructureDefinition, "StructureDefinition")

	sd := &StructureDefinition{}
	for _, name := range []string{"url", "name", "status", "kind", "type"} {
		if _, present := obj[name]; !present {
			issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, issue.JoinPath("StructureDefinition", name),
				"required property %q is missing", name))
		}
	}

	assignMergedString(parsed, "id", &sd.ID)
	assignMergedString(parsed, "version", &sd.Version)
	assignMergedString(parsed, "title", &sd.Title)
	assignMergedString(parsed, "date", &sd.Date)
	assignMergedString(parsed, "publisher", &sd.Publisher)
	assignMergedString(parsed, "description", &sd.Description)
	assignMergedString(parsed, "purpose", &sd.Purpose)
	assignMergedString(parsed, "fhirVersion", &sd.FHIRVersion)
	assignMergedString(parsed, "baseDefinition", &sd.BaseDefinition)
	assignMergedString(parsed, "derivation", &sd.Derivation)

	if s, ok := rawPrimitiveString(parsed.Get("url")); ok {
		sd.URL = s
	}
	if s, ok := rawPrimitiveString(parsed.Get("name")); ok {
		sd.Name = s
	}
	if s, ok := rawPrimitiveString(parsed.Get("status")); ok {
		sd.Status = s
	}
	if s, ok := rawPrimitiveString(parsed.Get("kind")); ok {
		sd.Kind = s
	}
	if s, ok := rawPrimitiveString(parsed.Get("type")); ok {
		sd.Type = s
	}
	if _, present := obj["abstract"]; !present {
		issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, "StructureDefinition.abstract",
			"required property \"abstract\" is missing"))
	}
	if b, ok := asBoolPtr(parsed.Get("abstract")); ok {
		sd.Abstract = *b
	}
	if b, ok := asBoolPtr(parsed.Get("experimental")); ok {
		sd.Experimental = b
	}

	sd.ContextInvariant = stringSlice(parsed.Get("contextInvariant"))

	sd.Identifier = identifierSlice(parsed.Get("identifier"))
	sd.Contact = contactSlice(parsed.Get("contact"))
	sd.UseContext = usageContextSlice(parsed.Get("useContext"))
	sd.Jurisdiction = codeableConceptSlice(parsed.Get("jurisdiction"))
	sd.Keyword = codingSlice(parsed.Get("keyword"))
	sd.Mapping = mappingSlice(parsed.Get("mapping"))
	sd.Context = structureDefinitionContextSlice(parsed.Get("context"))

	if w, ok := parsed.Get("differential").(*elementListWrapper); ok {
		sd.Differential = w.Elements
	}
	if w, ok := parsed.Get("snapshot").(*elementListWrapper); ok {
		sd.Snapshot = w.Elements
	}

	return issue.FromIssues(sd, issues)
}

// elementListWrapper carries a StructureDefinition.differential or .snapshot
// block's element[] array through ParseObject's scalar-property dispatch,
// which expects a ParseElement to return a single value rather than a slice.
type elementListWrapper struct {
	Elements []ElementDefinition
}

// parseElementListBlockEntry parses a StructureDefinition.differential or
// .snapshot object, both of which wrap a single "element" array:
// {element: [...]}.
func parseElementListBlockEntry(obj map[string]any, path string) (any, []issue.Issue) {
	elemRaw, ok := obj["element"]
	if !ok {
		return &elementListWrapper{}, nil
	}
	elems, issues := parseElementList(elemRaw, issue.JoinPath(path, "element"))
	return &elementListWrapper{Elements: elems}, issues
}

func parseElementList(raw any, path string) ([]ElementDefinition, []issue.Issue) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, []issue.Issue{issue.Errorf(issue.CodeArrayMismatch, path, "expected an array, got %T", raw)}
	}
	var issues []issue.Issue
	out := make([]ElementDefinition, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			issues = append(issues, issue.Errorf(issue.CodeInvalidStructure, issue.IndexPath(path, i),
				"expected an object, got %T", item))
			continue
		}
		ed, elIssues := ParseElementDefinition(obj, issue.IndexPath(path, i))
		issues = append(issues, elIssues...)
		out = append(out, ed)
	}
	return out, issues
}

func parseContextItem(obj map[string]any, path string) (*StructureDefinitionContext, []issue.Issue) {
	c := &StructureDefinitionContext{}
	var issues []issue.Issue
	if t, ok := obj["type"].(string); ok {
		c.Type = t
	} else {
		issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, issue.JoinPath(path, "type"),
			"required property \"type\" is missing"))
	}
	if e, ok := obj["expression"].(string); ok {
		c.Expression = e
	} else {
		issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, issue.JoinPath(path, "expression"),
			"required property \"expression\" is missing"))
	}
	return c, issues
}

func parseIdentifierItem(obj map[string]any, _ string) (*Identifier, []issue.Issue) {
	return &Identifier{
		Use:    assignOptString(obj, "use"),
		System: assignOptString(obj, "system"),
		Value:  assignOptString(obj, "value"),
	}, nil
}

func parseContactPointItem(obj map[string]any, _ string) *ContactPoint {
	cp := &ContactPoint{
		System: assignOptString(obj, "system"),
		Value:  assignOptString(obj, "value"),
		Use:    assignOptString(obj, "use"),
	}
	if n, ok := asInt(obj["rank"]); ok {
		cp.Rank = &n
	}
	return cp
}

func parseContactItem(obj map[string]any, path string) (*ContactDetail, []issue.Issue) {
	cd := &ContactDetail{Name: assignOptString(obj, "name")}
	var issues []issue.Issue
	if raw, ok := obj["telecom"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return cd, []issue.Issue{issue.Errorf(issue.CodeArrayMismatch, issue.JoinPath(path, "telecom"),
				"expected an array, got %T", raw)}
		}
		for i, item := range arr {
			tobj, ok := item.(map[string]any)
			if !ok {
				issues = append(issues, issue.Errorf(issue.CodeInvalidStructure,
					issue.IndexPath(issue.JoinPath(path, "telecom"), i), "expected an object, got %T", item))
				continue
			}
			cd.Telecom = append(cd.Telecom, *parseContactPointItem(tobj, issue.IndexPath(issue.JoinPath(path, "telecom"), i)))
		}
	}
	return cd, issues
}

func parseCodeableConceptItem(obj map[string]any, path string) (*CodeableConcept, []issue.Issue) {
	cc := &CodeableConcept{Text: assignOptString(obj, "text")}
	var issues []issue.Issue
	if raw, ok := obj["coding"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return cc, []issue.Issue{issue.Errorf(issue.CodeArrayMismatch, issue.JoinPath(path, "coding"),
				"expected an array, got %T", raw)}
		}
		for i, item := range arr {
			cobj, ok := item.(map[string]any)
			if !ok {
				issues = append(issues, issue.Errorf(issue.CodeInvalidStructure,
					issue.IndexPath(issue.JoinPath(path, "coding"), i), "expected an object, got %T", item))
				continue
			}
			coding, _ := parseCodingItem(cobj, issue.IndexPath(issue.JoinPath(path, "coding"), i))
			cc.Coding = append(cc.Coding, *coding)
		}
	}
	return cc, issues
}

// parseUsageContextItem parses one StructureDefinition.useContext entry,
// resolving its value[x] slot via the choice engine directly rather than
// through ParseObject, the same way parseExampleItem resolves
// ElementDefinitionExample.value[x].
func parseUsageContextItem(obj map[string]any, path string) (*UsageContext, []issue.Issue) {
	uc := &UsageContext{}
	var issues []issue.Issue
	if cobj, ok := obj["code"].(map[string]any); ok {
		coding, _ := parseCodingItem(cobj, issue.JoinPath(path, "code"))
		uc.Code = *coding
	} else {
		issues = append(issues, issue.Errorf(issue.CodeInvalidPrimitive, issue.JoinPath(path, "code"),
			"required property \"code\" is missing"))
	}
	choices, _, choiceIssues := choice.ExtractAllChoiceValues(obj, choice.Registry["UsageContext"], path)
	issues = append(issues, choiceIssues...)
	uc.Value = toChoiceSlot(choices["value"])
	return uc, issues
}

func identifierSlice(v any) []Identifier {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Identifier, 0, len(arr))
	for _, item := range arr {
		if id, ok := item.(*Identifier); ok {
			out = append(out, *id)
		}
	}
	return out
}

func contactSlice(v any) []ContactDetail {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ContactDetail, 0, len(arr))
	for _, item := range arr {
		if cd, ok := item.(*ContactDetail); ok {
			out = append(out, *cd)
		}
	}
	return out
}

func usageContextSlice(v any) []UsageContext {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]UsageContext, 0, len(arr))
	for _, item := range arr {
		if uc, ok := item.(*UsageContext); ok {
			out = append(out, *uc)
		}
	}
	return out
}

func codeableConceptSlice(v any) []CodeableConcept {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]CodeableConcept, 0, len(arr))
	for _, item := range arr {
		if cc, ok := item.(*CodeableConcept); ok {
			out = append(out, *cc)
		}
	}
	return out
}

func structureDefinitionContextSlice(v any) []StructureDefinitionContext {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]StructureDefinitionContext, 0, len(arr))
	for _, item := range arr {
		if c, ok := item.(*StructureDefinitionContext); ok {
			out = append(out, *c)
		}
	}
	return out
}

func assignOptString(obj map[string]any, key string) *string {
	if v, ok := obj[key].(string); ok {
		return &v
	}
	return nil
}

