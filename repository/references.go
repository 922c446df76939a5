package repository

import "strings"

// ReferenceType classifies a parsed FHIR Reference string into the shape
// needed to populate the "<Type>_References" join table that backs
// chained search (spec §4.L "Chained search").
type ReferenceType string

const (
	// ReferenceTypeRelative is a same-server reference ("Patient/123").
	ReferenceTypeRelative ReferenceType = "relative"
	// ReferenceTypeAbsolute is a fully qualified URL reference.
	ReferenceTypeAbsolute ReferenceType = "absolute"
	// ReferenceTypeContained points at a contained resource ("#frag").
	ReferenceTypeContained ReferenceType = "contained"
	// ReferenceTypeLogical carries only an Identifier, no literal
	// reference string; not resolvable to a row and excluded from the
	// references table.
	ReferenceTypeLogical ReferenceType = "logical"
)

// ParsedReference is a FHIR Reference string broken into its resolvable
// parts.
type ParsedReference struct {
	Type         ReferenceType
	ResourceType string
	ResourceID   string
	Fragment     string
	Original     string
}

// ParseReference parses a literal Reference.reference string. It does not
// resolve logical (identifier-only) references or bundle fullUrl entries,
// since neither carries a literal string this parser is given.
func ParseReference(raw string) ParsedReference {
	p := ParsedReference{Original: raw}
	switch {
	case strings.HasPrefix(raw, "#"):
		p.Type = ReferenceTypeContained
		p.Fragment = strings.TrimPrefix(raw, "#")
	case strings.Contains(raw, "://"):
		p.Type = ReferenceTypeAbsolute
		p.ResourceType, p.ResourceID = splitTypeAndID(lastTwoSegments(raw))
	default:
		p.Type = ReferenceTypeRelative
		p.ResourceType, p.ResourceID = splitTypeAndID(raw)
	}
	return p
}

func lastTwoSegments(url string) string {
	segments := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(segments) < 2 {
		return url
	}
	return segments[len(segments)-2] + "/" + segments[len(segments)-1]
}

func splitTypeAndID(s string) (resourceType, id string) {
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return "", ""
	}
	return s[:i], s[i+1:]
}

// referenceTarget is one resolvable reference extracted from a resource,
// tagged with the search parameter code it was extracted for.
type referenceTarget struct {
	code   string
	target ParsedReference
}

// extractReferenceTargets extracts every resolvable Reference at
// targetField (already stripped of its leading "<ResourceType>." prefix),
// descending into arrays the same way extractValues does.
func extractReferenceTargets(code string, content map[string]any, targetField string) []referenceTarget {
	var out []referenceTarget
	for _, obj := range extractObjects(content, targetField) {
		raw, ok := obj["reference"].(string)
		if !ok || raw == "" {
			continue
		}
		parsed := ParseReference(raw)
		if parsed.Type == ReferenceTypeContained || parsed.ResourceType == "" || parsed.ResourceID == "" {
			continue
		}
		out = append(out, referenceTarget{code: code, target: parsed})
	}
	return out
}
