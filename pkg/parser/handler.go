package parser

import (
	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/logger"
)

// Location identifies where in the document a diagnostic was raised.
type Location struct {
	// Path is the FHIRPath-style location, e.g. "Patient.name[0].given".
	Path string

	// ParentElementName names the enclosing element when it matters for the
	// message (e.g. "extension" for a missing url).
	ParentElementName string
}

// ErrorHandler receives recoverable shape violations. Returning nil lets
// parsing continue on a best-effort basis; returning an error aborts the
// parse with that error.
type ErrorHandler interface {
	// IncorrectJSONType reports that name holds a JSON value of the wrong kind.
	IncorrectJSONType(loc Location, name string, expected, found string) error

	// MissingRequiredElement reports that a required child is absent.
	MissingRequiredElement(loc Location, name string) error
}

// LenientErrorHandler records diagnostics into an issue.Result and never
// aborts the parse.
type LenientErrorHandler struct {
	result *issue.Result
	log    *logger.Logger
}

// NewLenientErrorHandler creates a handler recording into result.
// A nil result allocates a fresh one.
func NewLenientErrorHandler(result *issue.Result) *LenientErrorHandler {
	if result == nil {
		result = issue.NewResult()
	}
	return &LenientErrorHandler{result: result, log: logger.Default()}
}

// WithLogger sets the logger used for debug output.
func (h *LenientErrorHandler) WithLogger(l *logger.Logger) *LenientErrorHandler {
	if l != nil {
		h.log = l
	}
	return h
}

// Result returns the collected diagnostics.
func (h *LenientErrorHandler) Result() *issue.Result {
	return h.result
}

// IncorrectJSONType implements ErrorHandler.
func (h *LenientErrorHandler) IncorrectJSONType(loc Location, name string, expected, found string) error {
	h.log.Debug("incorrect JSON type for %s at %s: expected %s, found %s", name, loc.Path, expected, found)
	h.result.AddWithID(issue.DiagIncorrectJSONType, map[string]any{
		"element":  name,
		"expected": expected,
		"found":    found,
	}, expressionOf(loc)...)
	return nil
}

// MissingRequiredElement implements ErrorHandler.
func (h *LenientErrorHandler) MissingRequiredElement(loc Location, name string) error {
	h.log.Debug("missing required element %s at %s", name, loc.Path)
	if loc.ParentElementName != "" {
		h.result.AddWithID(issue.DiagMissingRequiredParent, map[string]any{
			"element": name,
			"parent":  loc.ParentElementName,
		}, expressionOf(loc)...)
		return nil
	}
	h.result.AddWithID(issue.DiagMissingRequired, map[string]any{"element": name}, expressionOf(loc)...)
	return nil
}

// StrictErrorHandler turns every diagnostic into a fatal FormatError.
type StrictErrorHandler struct{}

// IncorrectJSONType implements ErrorHandler.
func (StrictErrorHandler) IncorrectJSONType(loc Location, name string, expected, found string) error {
	return newFormatError(issue.DiagIncorrectJSONType, map[string]any{
		"element":  name,
		"expected": expected,
		"found":    found,
	}, loc.Path)
}

// MissingRequiredElement implements ErrorHandler.
func (StrictErrorHandler) MissingRequiredElement(loc Location, name string) error {
	if loc.ParentElementName != "" {
		return newFormatError(issue.DiagMissingRequiredParent, map[string]any{
			"element": name,
			"parent":  loc.ParentElementName,
		}, loc.Path)
	}
	return newFormatError(issue.DiagMissingRequired, map[string]any{"element": name}, loc.Path)
}

func expressionOf(loc Location) []string {
	if loc.Path == "" {
		return nil
	}
	return []string{loc.Path}
}

var (
	_ ErrorHandler = (*LenientErrorHandler)(nil)
	_ ErrorHandler = StrictErrorHandler{}
)
