// Package stream parses the entries of a FHIR Bundle as they are read,
// without decoding the whole Bundle first.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/parser"
)

// EntryResult is the outcome of parsing one Bundle entry.
type EntryResult struct {
	// Index is the position of the entry in the bundle, -1 for errors that
	// concern the bundle itself.
	Index int

	// FullURL is the fullUrl of the entry (if present)
	FullURL string

	// ResourceType is the type of resource in the entry
	ResourceType string

	// ResourceID is the id of the resource (if present)
	ResourceID string

	// Object is what the State's Finish returned for entry.resource
	Object any

	// Issues holds the diagnostics for entry.resource
	Issues *issue.Result

	// Error is the fatal parse error or a read error
	Error error
}

// BundleParser parses bundle entries one by one.
type BundleParser struct {
	parser     *parser.Parser
	newState   func() parser.State
	bufferSize int
}

// NewBundleParser creates a BundleParser. newState is called once per entry
// resource.
func NewBundleParser(p *parser.Parser, newState func() parser.State) *BundleParser {
	return &BundleParser{
		parser:     p,
		newState:   newState,
		bufferSize: 100,
	}
}

// WithBufferSize sets the channel buffer size.
func (b *BundleParser) WithBufferSize(size int) *BundleParser {
	if size > 0 {
		b.bufferSize = size
	}
	return b
}

// Stream reads a Bundle from r and emits one result per entry, in bundle
// order. Members other than "entry" are skipped. The channel is closed when
// the entry array ends, on a read error, or when ctx is done.
func (b *BundleParser) Stream(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, b.bufferSize)

	go func() {
		defer close(results)

		emit := func(res *EntryResult) bool {
			select {
			case results <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		dec := json.NewDecoder(r)
		if err := expectDelim(dec, '{'); err != nil {
			emit(&EntryResult{Index: -1, Error: fmt.Errorf("failed to read bundle: %w", err)})
			return
		}

		for dec.More() {
			if ctx.Err() != nil {
				emit(&EntryResult{Index: -1, Error: ctx.Err()})
				return
			}

			token, err := dec.Token()
			if err != nil {
				emit(&EntryResult{Index: -1, Error: fmt.Errorf("failed to read field: %w", err)})
				return
			}
			field, _ := token.(string)

			if field == "entry" {
				b.entries(ctx, dec, emit)
				return
			}

			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				emit(&EntryResult{Index: -1, Error: fmt.Errorf("failed to skip field %s: %w", field, err)})
				return
			}
		}
	}()

	return results
}

func (b *BundleParser) entries(ctx context.Context, dec *json.Decoder, emit func(*EntryResult) bool) {
	if err := expectDelim(dec, '['); err != nil {
		emit(&EntryResult{Index: -1, Error: fmt.Errorf("failed to read entry array: %w", err)})
		return
	}

	for index := 0; dec.More(); index++ {
		if ctx.Err() != nil {
			emit(&EntryResult{Index: index, Error: ctx.Err()})
			return
		}

		var entry json.RawMessage
		if err := dec.Decode(&entry); err != nil {
			emit(&EntryResult{Index: index, Error: fmt.Errorf("failed to decode entry %d: %w", index, err)})
			return
		}
		if !emit(b.parseEntry(entry, index)) {
			return
		}
	}
}

// parseEntry parses entry.resource. An entry without a resource (a delete
// in a transaction, for instance) yields a result with no object.
func (b *BundleParser) parseEntry(entry []byte, index int) *EntryResult {
	result := &EntryResult{Index: index}
	result.FullURL, _ = jsonparser.GetString(entry, "fullUrl")

	resource, dataType, _, err := jsonparser.Get(entry, "resource")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		result.Issues = issue.NewResult()
		return result
	}
	if err != nil {
		result.Error = fmt.Errorf("failed to read entry %d: %w", index, err)
		return result
	}
	if dataType == jsonparser.String {
		// Get strips the quotes; the parser reports the wrong type.
		resource = append(append([]byte{'"'}, resource...), '"')
	}

	result.ResourceType, _ = jsonparser.GetString(resource, "resourceType")
	result.ResourceID, _ = jsonparser.GetString(resource, "id")

	result.Object, result.Issues, result.Error = b.parser.ParseWithIssues(resource, b.newState())
	return result
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	token, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %v, got %v", want, token)
	}
	return nil
}

// Summary aggregates the results of a stream.
type Summary struct {
	// TotalEntries is the number of entries processed
	TotalEntries int

	// EntriesWithErrors counts entries with error or fatal diagnostics
	EntriesWithErrors int

	// TotalIssues is the total number of issues found
	TotalIssues int

	// ProcessingErrors are read errors and bundle-level failures
	ProcessingErrors []error

	// Issues holds each entry's issues, keyed by entry index
	Issues map[int][]issue.Issue
}

// Aggregate drains results into a Summary.
func Aggregate(results <-chan *EntryResult) *Summary {
	s := &Summary{}
	for result := range results {
		s.Add(result)
	}
	return s
}

// Add folds one result into the summary.
func (s *Summary) Add(result *EntryResult) {
	if result.Index < 0 {
		s.ProcessingErrors = append(s.ProcessingErrors, result.Error)
		return
	}
	s.TotalEntries++

	if result.Issues != nil && len(result.Issues.Issues) > 0 {
		if s.Issues == nil {
			s.Issues = make(map[int][]issue.Issue)
		}
		s.Issues[result.Index] = result.Issues.Issues
		s.TotalIssues += len(result.Issues.Issues)
	}
	if result.Error != nil || (result.Issues != nil && result.Issues.HasErrors()) {
		s.EntriesWithErrors++
	}
	if result.Error != nil && (result.Issues == nil || !result.Issues.IsFatal()) {
		s.ProcessingErrors = append(s.ProcessingErrors, result.Error)
	}
}

// HasErrors returns true if any entry failed or the bundle could not be read.
func (s *Summary) HasErrors() bool {
	return s.EntriesWithErrors > 0 || len(s.ProcessingErrors) > 0
}

// String returns a human-readable summary.
func (s *Summary) String() string {
	return fmt.Sprintf(
		"Parsed %d entries: %d with errors, %d total issues",
		s.TotalEntries,
		s.EntriesWithErrors,
		s.TotalIssues,
	)
}
