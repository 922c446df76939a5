// Package issue defines the structured diagnostics produced by the parser,
// serializer, element merger and snapshot generator, and the ParseResult
// tagged union that carries them.
package issue

import (
	"fmt"

	"github.com/gofhir/profileengine/pool"
)

// Severity is the severity of a ParseIssue. Only two levels exist: an error
// severity demotes a ParseResult to Failure, a warning never does.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code enumerates the fixed set of diagnostic codes the parser, serializer
// and merger can raise (spec §4.A).
type Code string

const (
	CodeInvalidJSON           Code = "INVALID_JSON"
	CodeMissingResourceType   Code = "MISSING_RESOURCE_TYPE"
	CodeUnknownResourceType   Code = "UNKNOWN_RESOURCE_TYPE"
	CodeInvalidPrimitive      Code = "INVALID_PRIMITIVE"
	CodeInvalidStructure      Code = "INVALID_STRUCTURE"
	CodeInvalidChoiceType     Code = "INVALID_CHOICE_TYPE"
	CodeMultipleChoiceValues  Code = "MULTIPLE_CHOICE_VALUES"
	CodeArrayMismatch         Code = "ARRAY_MISMATCH"
	CodeUnexpectedNull        Code = "UNEXPECTED_NULL"
	CodeUnexpectedProperty    Code = "UNEXPECTED_PROPERTY"

	// Snapshot-generator specific codes (spec §4.G/§4.H/§4.I). These share
	// the same Issue shape so merger diagnostics flow through the same
	// ParseResult machinery as parser diagnostics.
	CodeDifferentialNotConsumed Code = "DIFFERENTIAL_NOT_CONSUMED"
	CodeBaseNotFound            Code = "BASE_NOT_FOUND"
	CodeInternalError           Code = "INTERNAL_ERROR"
	CodeSlicingError             Code = "SLICING_ERROR"
	CodeRecursionLimitExceeded  Code = "RECURSION_LIMIT_EXCEEDED"
)

// Issue is a single structured diagnostic. Path uses dotted JSON syntax with
// "[i]" for array indices, rooted at "$" or the resource type name.
type Issue struct {
	Severity Severity
	Code     Code
	Message  string
	Path     string
}

// IsError reports whether the issue has error severity.
func (i Issue) IsError() bool { return i.Severity == SeverityError }

// String renders a human-readable representation of the issue.
func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s [%s]: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("%s [%s] at %s: %s", i.Severity, i.Code, i.Path, i.Message)
}

// Errorf builds an error-severity issue at path.
func Errorf(code Code, path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity issue at path.
func Warnf(code Code, path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any issue in the slice has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.IsError() {
			return true
		}
	}
	return false
}

// Errors filters issues down to error-severity entries.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.IsError() {
			out = append(out, iss)
		}
	}
	return out
}

// Warnings filters issues down to warning-severity entries.
func Warnings(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if !iss.IsError() {
			out = append(out, iss)
		}
	}
	return out
}

// JoinPath appends a property name to a dotted path, returning property
// unchanged when path is empty. Uses a pooled PathBuilder since parsing a large
// StructureDefinition calls this on every element.
func JoinPath(path, property string) string {
	if path == "" {
		return property
	}
	pb := pool.AcquirePathBuilder()
	defer pb.Release()
	pb.WriteString(path)
	pb.WriteByte('.')
	pb.WriteString(property)
	return pb.String()
}

// IndexPath appends an array index segment ("[i]") to a path.
func IndexPath(path string, index int) string {
	pb := pool.AcquirePathBuilder()
	defer pb.Release()
	pb.WriteString(path)
	pb.AppendIndex(index)
	return pb.String()
}
