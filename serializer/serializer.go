// Package serializer inverts the parser package: typed StructureDefinition
// and ElementDefinition values go back to FHIR JSON with resourceType
// first, every other key alphabetically sorted, and choice-typed slots
// expanded back to their "<base><Type>" key (spec §4.F).
package serializer

import (
	"bytes"
	"encoding/json"
	"sort"
)

// MarshalResource renders obj as pretty-printed (two-space indent) FHIR
// JSON with "resourceType" emitted first and every remaining key in
// strict alphabetical order. A nil value in obj is treated as absent and
// omitted; to preserve a false/0/"" value, store the value itself rather
// than a nil interface.
func MarshalResource(resourceType string, obj map[string]any) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("{\n  \"resourceType\": ")
	rtJSON, err := json.Marshal(resourceType)
	if err != nil {
		return nil, err
	}
	out.Write(rtJSON)

	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		out.WriteString(",\n  ")
		kJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out.Write(kJSON)
		out.WriteString(": ")

		// encoding/json already sorts map[string]any keys alphabetically at
		// every nesting level, so MarshalIndent alone gives the right
		// ordering everywhere below the resource root.
		valJSON, err := json.MarshalIndent(obj[k], "  ", "  ")
		if err != nil {
			return nil, err
		}
		out.Write(valJSON)
	}

	out.WriteString("\n}")
	return out.Bytes(), nil
}

// setIfPresent adds key to obj with value *v when v is non-nil.
func setIfPresent[T any](obj map[string]any, key string, v *T) {
	if v != nil {
		obj[key] = *v
	}
}

// setIfNonEmpty adds key to obj when the slice has at least one element.
func setIfNonEmpty[T any](obj map[string]any, key string, v []T) {
	if len(v) > 0 {
		obj[key] = v
	}
}
