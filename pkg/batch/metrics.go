package batch

import (
	"sync/atomic"
	"time"

	"github.com/gofhir/parser/pkg/issue"
)

// Metrics accumulates parse statistics across batches using atomic
// counters. All methods are safe for concurrent use.
type Metrics struct {
	parsesTotal  atomic.Uint64
	parsesFailed atomic.Uint64

	// nanoseconds
	parseTimeTotal atomic.Uint64
	parseTimeMin   atomic.Uint64
	parseTimeMax   atomic.Uint64

	fatalTotal    atomic.Uint64
	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.parseTimeMin.Store(^uint64(0))
	return m
}

// Record adds one parsed document.
func (m *Metrics) Record(jr *JobResult) {
	m.parsesTotal.Add(1)
	if jr.Error != nil {
		m.parsesFailed.Add(1)
	}

	ns := uint64(jr.Duration.Nanoseconds()) //nolint:gosec // durations are non-negative
	m.parseTimeTotal.Add(ns)
	for {
		old := m.parseTimeMin.Load()
		if ns >= old || m.parseTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.parseTimeMax.Load()
		if ns <= old || m.parseTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}

	if jr.Issues == nil {
		return
	}
	for i := range jr.Issues.Issues {
		switch jr.Issues.Issues[i].Severity {
		case issue.SeverityFatal:
			m.fatalTotal.Add(1)
		case issue.SeverityError:
			m.errorsTotal.Add(1)
		case issue.SeverityWarning:
			m.warningsTotal.Add(1)
		case issue.SeverityInformation:
			m.infosTotal.Add(1)
		}
	}
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	ParsesTotal   uint64        `json:"parses_total"`
	ParsesFailed  uint64        `json:"parses_failed"`
	AvgParseTime  time.Duration `json:"avg_parse_time_ns"`
	MinParseTime  time.Duration `json:"min_parse_time_ns"`
	MaxParseTime  time.Duration `json:"max_parse_time_ns"`
	FatalTotal    uint64        `json:"fatal_total"`
	ErrorsTotal   uint64        `json:"errors_total"`
	WarningsTotal uint64        `json:"warnings_total"`
	InfosTotal    uint64        `json:"infos_total"`
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		ParsesTotal:   m.parsesTotal.Load(),
		ParsesFailed:  m.parsesFailed.Load(),
		MaxParseTime:  time.Duration(m.parseTimeMax.Load()), //nolint:gosec // nanoseconds within int64 range
		FatalTotal:    m.fatalTotal.Load(),
		ErrorsTotal:   m.errorsTotal.Load(),
		WarningsTotal: m.warningsTotal.Load(),
		InfosTotal:    m.infosTotal.Load(),
	}
	if s.ParsesTotal > 0 {
		s.AvgParseTime = time.Duration(m.parseTimeTotal.Load() / s.ParsesTotal) //nolint:gosec // nanoseconds within int64 range
	}
	if minNs := m.parseTimeMin.Load(); minNs != ^uint64(0) {
		s.MinParseTime = time.Duration(minNs) //nolint:gosec // nanoseconds within int64 range
	}
	return s
}
