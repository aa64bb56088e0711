package query

import (
	"testing"

	"github.com/gofhir/parser/pkg/element"
	"github.com/gofhir/parser/pkg/logger"
	"github.com/gofhir/parser/pkg/parser"
)

const testPatient = `{
	"resourceType": "Patient",
	"id": "p1",
	"active": true,
	"gender": "male",
	"_gender": {"extension": [{"url": "http://example.org/source", "valueString": "self"}]},
	"name": [{"family": "Smith", "given": ["John", "James"], "_given": [{"id": "g1"}]}]
}`

func parseResource(t *testing.T, input string) *element.Resource {
	t.Helper()
	p := parser.New(parser.WithLogger(logger.Discard()))
	res, result, err := element.Parse(p, []byte(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("unexpected issues: %+v", result.Issues)
	}
	return res
}

func TestEvaluate(t *testing.T) {
	res := parseResource(t, testPatient)
	e := New()

	tests := []struct {
		expression string
		wantCount  int
	}{
		{"Patient.name.given", 2},
		{"Patient.name.family", 1},
		{"Patient.gender", 1},
		{"Patient.name.where(family = 'Smith').given", 2},
		{"Patient.telecom", 0},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			got, err := e.Evaluate(res, tt.expression)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("Evaluate(%q) returned %d items, want %d", tt.expression, len(got), tt.wantCount)
			}
		})
	}
}

func TestTest(t *testing.T) {
	res := parseResource(t, testPatient)
	e := New()

	tests := []struct {
		expression string
		want       bool
	}{
		{"Patient.active", true},
		{"Patient.active.not()", false},
		{"Patient.name.exists()", true},
		{"Patient.telecom", false},
		{"Patient.name.given", true},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			got, err := e.Test(res, tt.expression)
			if err != nil {
				t.Fatalf("Test failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Test(%q) = %v, want %v", tt.expression, got, tt.want)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	res := parseResource(t, testPatient)

	got, err := New().Strings(res, "Patient.name.given")
	if err != nil {
		t.Fatalf("Strings failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Strings returned %v, want 2 items", got)
	}
	for _, s := range got {
		if s == "" {
			t.Errorf("Strings returned an empty rendering: %v", got)
		}
	}
}

func TestEvaluatorCache(t *testing.T) {
	res := parseResource(t, testPatient)
	e := New()

	for i := 0; i < 3; i++ {
		if _, err := e.Evaluate(res, "Patient.name.given"); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
	}
	if e.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", e.CacheSize())
	}
	if stats := e.CacheStats(); stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("CacheStats() = %+v, want 2 hits and 1 miss", stats)
	}
}

func TestEvaluatorCacheBounded(t *testing.T) {
	res := parseResource(t, testPatient)
	e := NewWithCacheSize(2)

	for _, expr := range []string{"Patient.id", "Patient.gender", "Patient.active"} {
		if _, err := e.Evaluate(res, expr); err != nil {
			t.Fatalf("Evaluate(%s) failed: %v", expr, err)
		}
	}
	if e.CacheSize() != 2 {
		t.Errorf("CacheSize() = %d, want 2", e.CacheSize())
	}
	if e.CacheStats().Evicts != 1 {
		t.Errorf("Evicts = %d, want 1", e.CacheStats().Evicts)
	}
}

func TestEvaluateErrors(t *testing.T) {
	res := parseResource(t, testPatient)
	e := New()

	if _, err := e.Evaluate(res, "Patient.name.where("); err == nil {
		t.Error("expected compile error")
	}
	if _, err := e.Evaluate(nil, "Patient.id"); err == nil {
		t.Error("expected error for nil resource")
	}
	if e.CacheSize() != 0 {
		t.Errorf("failed compilations should not be cached, got %d", e.CacheSize())
	}
}
