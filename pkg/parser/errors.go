package parser

import (
	"errors"
	"fmt"

	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/issue"
)

// ErrDataFormat is matched (errors.Is) by every fatal format error.
var ErrDataFormat = errors.New("invalid FHIR JSON")

// ErrMaxDepth is matched by errors caused by documents nesting deeper than
// the configured limit.
var ErrMaxDepth = document.ErrMaxDepth

// FormatError is a fatal parse failure. No object graph is produced when a
// parse returns one.
type FormatError struct {
	// ID identifies the diagnostic in the issue catalog.
	ID issue.DiagnosticID

	// Message is the human-readable description.
	Message string

	// Path is where the walker was when parsing stopped, e.g. "Patient.status".
	Path string

	cause error
}

func newFormatError(id issue.DiagnosticID, params map[string]any, path string) *FormatError {
	return &FormatError{
		ID:      id,
		Message: issue.FormatDiagnostic(id, params),
		Path:    path,
	}
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s (at %s)", e.Message, e.Path)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *FormatError) Unwrap() error {
	return e.cause
}

// Is matches ErrDataFormat for every format failure except depth
// exhaustion, which matches ErrMaxDepth through Unwrap instead.
func (e *FormatError) Is(target error) bool {
	return target == ErrDataFormat && e.ID != issue.DiagMaxDepth
}

// AsIssue converts a parse error into a fatal issue.
func AsIssue(err error) issue.Issue {
	var fe *FormatError
	if errors.As(err, &fe) {
		iss := issue.Issue{
			Severity:    issue.SeverityFatal,
			Code:        issue.CodeStructure,
			Diagnostics: fe.Message,
			MessageID:   string(fe.ID),
		}
		if tmpl, ok := issue.GetDiagnosticTemplate(fe.ID); ok {
			iss.Severity = tmpl.Severity
			iss.Code = tmpl.Code
		}
		if fe.Path != "" {
			iss.Expression = []string{fe.Path}
		}
		return iss
	}
	return issue.Issue{
		Severity:    issue.SeverityFatal,
		Code:        issue.CodeException,
		Diagnostics: err.Error(),
	}
}

// wrapDocumentError maps a document decoding failure to a FormatError.
func wrapDocumentError(err error, maxDepth int) error {
	if errors.Is(err, document.ErrMaxDepth) {
		fe := newFormatError(issue.DiagMaxDepth, map[string]any{"depth": maxDepth}, "")
		fe.cause = err
		return fe
	}
	fe := newFormatError(issue.DiagInvalidJSON, map[string]any{"error": err.Error()}, "")
	fe.cause = err
	return fe
}
