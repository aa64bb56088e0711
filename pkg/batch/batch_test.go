package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/gofhir/parser/pkg/element"
	"github.com/gofhir/parser/pkg/logger"
	"github.com/gofhir/parser/pkg/parser"
)

func newTestBatch(workers int) *Parser {
	p := parser.New(parser.WithLogger(logger.Discard()))
	return New(p, element.NewState(nil), workers)
}

func patientDoc(id string) []byte {
	return []byte(fmt.Sprintf(`{"resourceType":"Patient","id":%q,"name":[{"given":["A","B"]}]}`, id))
}

func TestNewDefaultWorkers(t *testing.T) {
	bp := newTestBatch(0)
	if bp.workers <= 0 {
		t.Errorf("workers = %d; want > 0", bp.workers)
	}
}

func TestParseAllPreservesOrder(t *testing.T) {
	bp := newTestBatch(4)

	jobs := make([]Job, 50)
	for i := range jobs {
		jobs[i] = Job{ID: fmt.Sprintf("doc-%d", i), Data: patientDoc(fmt.Sprintf("p%d", i))}
	}

	br := bp.ParseAll(context.Background(), jobs)

	if br.TotalJobs != 50 || br.CompletedJobs != 50 || br.FailedJobs != 0 {
		t.Errorf("counts = %d/%d/%d; want 50/50/0", br.TotalJobs, br.CompletedJobs, br.FailedJobs)
	}
	if br.HasErrors() {
		t.Error("expected no errors")
	}
	for i, jr := range br.Results {
		if jr.ID != jobs[i].ID {
			t.Errorf("Results[%d].ID = %q; want %q", i, jr.ID, jobs[i].ID)
		}
		res, ok := jr.Object.(*element.Resource)
		if !ok {
			t.Fatalf("Results[%d].Object = %T; want *element.Resource", i, jr.Object)
		}
		if want := fmt.Sprintf("p%d", i); res.ID() != want {
			t.Errorf("Results[%d] id = %q; want %q", i, res.ID(), want)
		}
	}
}

func TestParseAllMixedResults(t *testing.T) {
	bp := newTestBatch(2)

	br := bp.ParseBytes(context.Background(), [][]byte{
		patientDoc("ok"),
		[]byte(`{"resourceType":"Patient","_gender":true}`),
		[]byte(`not json`),
		[]byte(`{"id":"no-type"}`),
	})

	if br.CompletedJobs != 4 {
		t.Errorf("CompletedJobs = %d; want 4", br.CompletedJobs)
	}
	if br.FailedJobs != 2 {
		t.Errorf("FailedJobs = %d; want 2", br.FailedJobs)
	}
	if !br.HasErrors() {
		t.Error("expected HasErrors")
	}
	if br.ErrorCount() != 3 {
		t.Errorf("ErrorCount() = %d; want 3", br.ErrorCount())
	}

	if br.Results[1].Error != nil || br.Results[1].Object == nil {
		t.Errorf("recoverable document should still produce an object: %+v", br.Results[1])
	}
	if len(br.Results[1].Issues.Issues) != 1 {
		t.Errorf("Results[1] has %d issues; want 1", len(br.Results[1].Issues.Issues))
	}
	if !errors.Is(br.Results[2].Error, parser.ErrDataFormat) {
		t.Errorf("Results[2].Error = %v; want ErrDataFormat", br.Results[2].Error)
	}
	if br.Results[3].ID != "3" || br.Results[3].Object != nil {
		t.Errorf("Results[3] = %+v; want failed job with ID 3", br.Results[3])
	}
}

func TestParseAllSequential(t *testing.T) {
	var states atomic.Int32
	p := parser.New(parser.WithLogger(logger.Discard()))
	bp := New(p, func() parser.State {
		states.Add(1)
		return element.NewBuilder(nil)
	}, 4)

	br := bp.ParseBytes(context.Background(), [][]byte{patientDoc("a"), patientDoc("b")})

	if br.CompletedJobs != 2 {
		t.Errorf("CompletedJobs = %d; want 2", br.CompletedJobs)
	}
	if states.Load() != 2 {
		t.Errorf("state factory called %d times; want 2", states.Load())
	}
}

func TestParseAllCancelled(t *testing.T) {
	bp := newTestBatch(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	br := bp.ParseBytes(ctx, [][]byte{patientDoc("a"), patientDoc("b"), patientDoc("c")})

	if br.CompletedJobs != 0 {
		t.Errorf("CompletedJobs = %d; want 0", br.CompletedJobs)
	}
	for i, jr := range br.Results {
		if !errors.Is(jr.Error, context.Canceled) {
			t.Errorf("Results[%d].Error = %v; want context.Canceled", i, jr.Error)
		}
	}
}

func TestParseAllEmpty(t *testing.T) {
	br := newTestBatch(2).ParseAll(context.Background(), nil)
	if br.TotalJobs != 0 || len(br.Results) != 0 {
		t.Errorf("empty batch = %+v", br)
	}
	if br.HasErrors() {
		t.Error("empty batch should have no errors")
	}
}

func BenchmarkParseAll(b *testing.B) {
	bp := newTestBatch(0)
	docs := make([][]byte, 100)
	for i := range docs {
		docs[i] = patientDoc(fmt.Sprintf("p%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bp.ParseBytes(context.Background(), docs)
	}
}
