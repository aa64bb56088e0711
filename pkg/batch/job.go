package batch

import (
	"time"

	"github.com/gofhir/parser/pkg/issue"
)

// Job is one document to parse.
type Job struct {
	// ID names the document in results, e.g. its file name.
	ID string

	// Data is the FHIR JSON document.
	Data []byte
}

// JobResult is the outcome of parsing one Job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Object is what the State's Finish returned, nil on a fatal error.
	Object any

	// Issues holds the diagnostics collected for the document.
	Issues *issue.Result

	// Error is the fatal error, or the context error for jobs that never ran.
	Error error

	// Duration is the time taken to parse.
	Duration time.Duration
}

// Result aggregates the results of a batch, in submission order.
type Result struct {
	Results       []*JobResult
	TotalJobs     int
	CompletedJobs int // jobs that ran, including failed ones
	FailedJobs    int
	TotalDuration time.Duration
}

// HasErrors returns true if any job failed or reported an error diagnostic.
func (r *Result) HasErrors() bool {
	for _, jr := range r.Results {
		if jr.Error != nil {
			return true
		}
		if jr.Issues != nil && jr.Issues.HasErrors() {
			return true
		}
	}
	return false
}

// ErrorCount returns the total number of error and fatal diagnostics.
func (r *Result) ErrorCount() int {
	count := 0
	for _, jr := range r.Results {
		if jr.Issues != nil {
			count += jr.Issues.ErrorCount()
		}
	}
	return count
}
