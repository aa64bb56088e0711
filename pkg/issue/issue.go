// Package issue defines parse diagnostics aligned with FHIR OperationOutcome.
package issue

// Severity represents the severity of a diagnostic.
type Severity string

// Severity constants aligned with FHIR IssueSeverity.
const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Code represents the type of issue (IssueType).
type Code string

// Code constants aligned with FHIR IssueType.
const (
	CodeInvalid       Code = "invalid"
	CodeStructure     Code = "structure"
	CodeRequired      Code = "required"
	CodeValue         Code = "value"
	CodeExtension     Code = "extension"
	CodeProcessing    Code = "processing"
	CodeNotSupported  Code = "not-supported"
	CodeTooCostly     Code = "too-costly"
	CodeException     Code = "exception"
	CodeInformational Code = "informational"
)

// Issue represents a single diagnostic.
type Issue struct {
	// Severity indicates the severity level (fatal, error, warning, ...)
	Severity Severity `json:"severity" yaml:"severity"`

	// Code indicates the type of issue
	Code Code `json:"code" yaml:"code"`

	// Diagnostics is the human-readable description of the issue
	Diagnostics string `json:"diagnostics" yaml:"diagnostics"`

	// Expression contains FHIRPath-style paths pointing to the issue location
	Expression []string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// Location contains line and column information, when known
	Location *Location `json:"location,omitempty" yaml:"location,omitempty"`

	// MessageID is the identifier from the diagnostic catalog
	MessageID string `json:"messageId,omitempty" yaml:"messageId,omitempty"`
}

// Location represents the position in the source JSON.
type Location struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Result holds the diagnostics collected while parsing one document.
type Result struct {
	Issues []Issue `json:"issues" yaml:"issues"`
}

// defaultIssueCapacity is the pre-allocated capacity for Issues slice.
// Well-formed documents produce no issues; most malformed ones only a few.
const defaultIssueCapacity = 4

// NewResult creates a new empty Result with pre-allocated capacity.
func NewResult() *Result {
	return &Result{
		Issues: make([]Issue, 0, defaultIssueCapacity),
	}
}

// AddIssue adds an issue to the result.
func (r *Result) AddIssue(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// AddError adds an error-level issue.
func (r *Result) AddError(code Code, diagnostics string, expression ...string) {
	r.Issues = append(r.Issues, Issue{
		Severity:    SeverityError,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  expression,
	})
}

// AddWarning adds a warning-level issue.
func (r *Result) AddWarning(code Code, diagnostics string, expression ...string) {
	r.Issues = append(r.Issues, Issue{
		Severity:    SeverityWarning,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  expression,
	})
}

// AddFatal adds a fatal issue, used when a document could not be parsed at all.
func (r *Result) AddFatal(code Code, diagnostics string, expression ...string) {
	r.Issues = append(r.Issues, Issue{
		Severity:    SeverityFatal,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  expression,
	})
}

// HasErrors returns true if there are any error-level or fatal issues.
func (r *Result) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError || issue.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// IsFatal returns true if parsing was aborted.
func (r *Result) IsFatal() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error-level and fatal issues.
func (r *Result) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError || issue.Severity == SeverityFatal {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-level issues.
func (r *Result) WarningCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			count++
		}
	}
	return count
}

// Merge combines another result into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Filter returns a new Result with only issues matching the given severity.
func (r *Result) Filter(severity Severity) *Result {
	filtered := NewResult()
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			filtered.Issues = append(filtered.Issues, issue)
		}
	}
	return filtered
}

// EnrichLocations adds line and column information to issues based on their expressions.
// The locator function maps an expression path to a Location.
func (r *Result) EnrichLocations(locator func(expression string) *Location) {
	if locator == nil {
		return
	}
	for i := range r.Issues {
		if len(r.Issues[i].Expression) > 0 && r.Issues[i].Location == nil {
			if loc := locator(r.Issues[i].Expression[0]); loc != nil {
				r.Issues[i].Location = loc
			}
		}
	}
}
