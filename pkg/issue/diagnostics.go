package issue

import (
	"fmt"
	"strings"
)

// DiagnosticID identifies a specific diagnostic message.
type DiagnosticID string

// Recoverable shape diagnostics. Parsing continues after these.
const (
	DiagIncorrectJSONType     DiagnosticID = "PARSER_INCORRECT_JSON_TYPE"
	DiagMissingRequired       DiagnosticID = "PARSER_MISSING_REQUIRED_ELEMENT"
	DiagMissingRequiredParent DiagnosticID = "PARSER_MISSING_REQUIRED_ELEMENT_IN_PARENT"
)

// Fatal diagnostics. Parsing stops and no object graph is produced.
const (
	DiagInvalidJSON           DiagnosticID = "PARSER_INVALID_JSON"
	DiagNotAnObject           DiagnosticID = "PARSER_NOT_AN_OBJECT"
	DiagNoResourceType        DiagnosticID = "PARSER_NO_RESOURCE_TYPE"
	DiagIncorrectResourceType DiagnosticID = "PARSER_INCORRECT_RESOURCE_TYPE"
	DiagContainedNoType       DiagnosticID = "PARSER_CONTAINED_NO_RESOURCE_TYPE"
	DiagUnexpectedArrayLength DiagnosticID = "PARSER_UNEXPECTED_ARRAY_LENGTH"
	DiagExpectedArray         DiagnosticID = "PARSER_EXPECTED_ARRAY"
	DiagMaxDepth              DiagnosticID = "PARSER_MAX_DEPTH"
)

// DiagnosticTemplate defines the structure for a diagnostic message.
type DiagnosticTemplate struct {
	ID       DiagnosticID
	Severity Severity
	Code     Code
	Template string
}

// diagnosticTemplates maps diagnostic IDs to their templates.
// Templates use {placeholder} syntax for variable substitution.
var diagnosticTemplates = map[DiagnosticID]DiagnosticTemplate{
	DiagIncorrectJSONType: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: "Found incorrect type for element '{element}' - Expected {expected} and found {found}",
	},
	DiagMissingRequired: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Resource is missing required element '{element}'",
	},
	DiagMissingRequiredParent: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Resource has missing required element '{element}' in parent element '{parent}'",
	},

	DiagInvalidJSON: {
		Severity: SeverityFatal,
		Code:     CodeInvalid,
		Template: "Failed to parse JSON encoded FHIR content: {error}",
	},
	DiagNotAnObject: {
		Severity: SeverityFatal,
		Code:     CodeStructure,
		Template: "Content does not appear to be FHIR JSON, expected an OBJECT but found {found}",
	},
	DiagNoResourceType: {
		Severity: SeverityFatal,
		Code:     CodeStructure,
		Template: "Invalid JSON content detected, missing required element: 'resourceType'",
	},
	DiagIncorrectResourceType: {
		Severity: SeverityFatal,
		Code:     CodeStructure,
		Template: "Incorrect resource type found, expected \"{expected}\" but found \"{found}\"",
	},
	DiagContainedNoType: {
		Severity: SeverityFatal,
		Code:     CodeStructure,
		Template: "Missing required element 'resourceType' from JSON resource object, unable to parse",
	},
	DiagUnexpectedArrayLength: {
		Severity: SeverityFatal,
		Code:     CodeStructure,
		Template: "Unexpected array of length {length} (expected 0 or 1) for element: {element}",
	},
	DiagExpectedArray: {
		Severity: SeverityFatal,
		Code:     CodeStructure,
		Template: "Syntax error parsing JSON FHIR structure: Expected ARRAY at element '{element}', found '{found}'",
	},
	DiagMaxDepth: {
		Severity: SeverityFatal,
		Code:     CodeTooCostly,
		Template: "Maximum nesting depth of {depth} exceeded",
	},
}

// FormatDiagnostic formats a diagnostic message with the given parameters.
func FormatDiagnostic(id DiagnosticID, params map[string]any) string {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		return string(id)
	}
	return formatTemplate(tmpl.Template, params)
}

// GetDiagnosticTemplate returns the template for a diagnostic ID.
func GetDiagnosticTemplate(id DiagnosticID) (DiagnosticTemplate, bool) {
	tmpl, ok := diagnosticTemplates[id]
	if ok {
		tmpl.ID = id
	}
	return tmpl, ok
}

// formatTemplate replaces {placeholder} with values from params.
func formatTemplate(template string, params map[string]any) string {
	result := template
	for key, value := range params {
		placeholder := "{" + key + "}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprint(value))
	}
	return result
}

// AddWithID adds an issue using a diagnostic template, keeping the
// template's severity.
func (r *Result) AddWithID(id DiagnosticID, params map[string]any, expression ...string) {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		r.AddError(CodeProcessing, string(id), expression...)
		return
	}

	r.Issues = append(r.Issues, Issue{
		Severity:    tmpl.Severity,
		Code:        tmpl.Code,
		Diagnostics: formatTemplate(tmpl.Template, params),
		Expression:  expression,
		MessageID:   string(id),
	})
}

// AddWarningWithID adds a warning using a diagnostic template.
func (r *Result) AddWarningWithID(id DiagnosticID, params map[string]any, expression ...string) {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		r.AddWarning(CodeProcessing, string(id), expression...)
		return
	}

	r.Issues = append(r.Issues, Issue{
		Severity:    SeverityWarning, // Override to warning
		Code:        tmpl.Code,
		Diagnostics: formatTemplate(tmpl.Template, params),
		Expression:  expression,
		MessageID:   string(id),
	})
}
