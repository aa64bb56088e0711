// Package batch parses many FHIR documents in parallel.
//
// Each document gets its own State from a factory, so builders are never
// shared between goroutines. Results come back in submission order.
package batch

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/parser"
)

// sequentialThreshold is the batch size at or below which jobs run on the
// calling goroutine.
const sequentialThreshold = 2

// Parser parses batches of documents with a shared parser.Parser.
type Parser struct {
	parser   *parser.Parser
	newState func() parser.State
	workers  int
	metrics  *Metrics
}

// New creates a batch Parser. newState is called once per document. If
// workers <= 0, it defaults to runtime.NumCPU().
func New(p *parser.Parser, newState func() parser.State, workers int) *Parser {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Parser{
		parser:   p,
		newState: newState,
		workers:  workers,
	}
}

// WithMetrics records every parsed document into m.
func (bp *Parser) WithMetrics(m *Metrics) *Parser {
	bp.metrics = m
	return bp
}

// ParseBytes parses documents named by their index.
func (bp *Parser) ParseBytes(ctx context.Context, docs [][]byte) *Result {
	jobs := make([]Job, len(docs))
	for i, data := range docs {
		jobs[i] = Job{ID: strconv.Itoa(i), Data: data}
	}
	return bp.ParseAll(ctx, jobs)
}

// ParseAll parses every job. Jobs not started before ctx is done get
// ctx.Err() as their Error.
func (bp *Parser) ParseAll(ctx context.Context, jobs []Job) *Result {
	start := time.Now()

	var results []*JobResult
	if len(jobs) <= sequentialThreshold {
		results = bp.parseSequential(ctx, jobs)
	} else {
		results = bp.parseParallel(ctx, jobs)
	}

	br := &Result{
		Results:       results,
		TotalJobs:     len(jobs),
		TotalDuration: time.Since(start),
	}
	for i, jr := range results {
		if jr == nil {
			results[i] = &JobResult{ID: jobs[i].ID, Error: ctx.Err()}
			br.FailedJobs++
			continue
		}
		br.CompletedJobs++
		if jr.Error != nil {
			br.FailedJobs++
		}
	}
	return br
}

func (bp *Parser) parseSequential(ctx context.Context, jobs []Job) []*JobResult {
	results := make([]*JobResult, len(jobs))
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		results[i] = bp.parseJob(job)
	}
	return results
}

func (bp *Parser) parseParallel(ctx context.Context, jobs []Job) []*JobResult {
	numWorkers := bp.workers
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	indexes := make(chan int, len(jobs))
	results := make([]*JobResult, len(jobs))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					return
				}
				results[i] = bp.parseJob(jobs[i])
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

func (bp *Parser) parseJob(job Job) *JobResult {
	start := time.Now()

	obj, result, err := bp.parser.ParseWithIssues(job.Data, bp.newState())
	if result == nil {
		result = issue.NewResult()
	}
	jr := &JobResult{
		ID:       job.ID,
		Object:   obj,
		Issues:   result,
		Error:    err,
		Duration: time.Since(start),
	}
	if bp.metrics != nil {
		bp.metrics.Record(jr)
	}
	return jr
}
