package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gofhir/parser/pkg/batch"
	"github.com/gofhir/parser/pkg/logger"
	"github.com/gofhir/parser/pkg/parser"
	"github.com/gofhir/parser/pkg/stream"
)

// streamBundles parses every input as a Bundle and reports each entry
// resource as its own result, named "<source>#entry[i]". Errors that concern
// the bundle itself are named after the source.
func streamBundles(ctx context.Context, p *parser.Parser, newState func() parser.State, jobs []batch.Job, log *logger.Logger) *batch.Result {
	start := time.Now()
	bp := stream.NewBundleParser(p, newState)
	br := &batch.Result{}

	for _, job := range jobs {
		var summary stream.Summary
		last := time.Now()

		for er := range bp.Stream(ctx, bytes.NewReader(job.Data)) {
			summary.Add(er)

			jr := &batch.JobResult{
				ID:       job.ID,
				Object:   er.Object,
				Issues:   er.Issues,
				Error:    er.Error,
				Duration: time.Since(last),
			}
			last = time.Now()
			if er.Index >= 0 {
				jr.ID = fmt.Sprintf("%s#entry[%d]", job.ID, er.Index)
			}

			br.Results = append(br.Results, jr)
			br.TotalJobs++
			br.CompletedJobs++
			if jr.Error != nil {
				br.FailedJobs++
			}
		}
		log.Debug("%s: %s", job.ID, summary.String())
	}

	br.TotalDuration = time.Since(start)
	return br
}
