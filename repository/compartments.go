package repository

import "strings"

// compartmentPaths is a small per-resource-type table of the dotted
// reference path that places a resource into a Patient compartment,
// mirroring the registry-driven style used by the search parameter
// registry rather than a hardcoded type switch (spec §4 supplemented
// features, "Compartment computation").
var compartmentPaths = map[string]string{
	"Patient":            "",
	"Observation":        "subject",
	"Condition":          "subject",
	"Encounter":          "subject",
	"MedicationRequest":  "subject",
	"AllergyIntolerance": "patient",
	"Procedure":          "subject",
	"DiagnosticReport":   "subject",
	"CarePlan":           "subject",
	"Immunization":       "patient",
}

// computeCompartments derives the compartments column for content: a
// Patient belongs to its own compartment; a clinical resource belongs to
// the compartment of the patient its configured reference path points
// at, if any (spec §4.M "Computes compartments from the resource").
func computeCompartments(resourceType, id string, content map[string]any) []string {
	if resourceType == "Patient" {
		return []string{id}
	}
	path, ok := compartmentPaths[resourceType]
	if !ok || path == "" {
		return nil
	}
	ref := followPath(content, path)
	patientID, ok := patientIDFromReference(ref)
	if !ok {
		return nil
	}
	return []string{patientID}
}

// followPath walks a dotted field path through nested JSON objects and
// returns the "reference" string (or bare string) found at its end. It does not
// implement FHIRPath beyond dotted field access (spec §1 Non-goal).
func followPath(content map[string]any, path string) string {
	cur := any(content)
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[seg]
	}
	switch v := cur.(type) {
	case map[string]any:
		ref, _ := v["reference"].(string)
		return ref
	case string:
		return v
	default:
		return ""
	}
}

// patientIDFromReference extracts the id from a "Patient/<id>" reference
// string.
func patientIDFromReference(ref string) (string, bool) {
	const prefix = "Patient/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(ref, prefix)
	if id == "" {
		return "", false
	}
	return id, true
}
