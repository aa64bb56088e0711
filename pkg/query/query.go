// Package query evaluates FHIRPath expressions against parsed resources.
package query

import (
	"fmt"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"

	"github.com/gofhir/parser/pkg/cache"
	"github.com/gofhir/parser/pkg/element"
)

// DefaultCacheSize bounds the number of compiled expressions kept by New.
const DefaultCacheSize = 128

// Evaluator compiles and caches FHIRPath expressions. It is safe for
// concurrent use.
type Evaluator struct {
	cache *cache.Cache[string, *fhirpath.Expression]
}

// New creates an Evaluator holding up to DefaultCacheSize compiled expressions.
func New() *Evaluator {
	return NewWithCacheSize(DefaultCacheSize)
}

// NewWithCacheSize creates an Evaluator whose LRU expression cache holds at
// most size entries.
func NewWithCacheSize(size int) *Evaluator {
	return &Evaluator{
		cache: cache.New[string, *fhirpath.Expression](size),
	}
}

// Evaluate runs expression against res. The resource is re-encoded to FHIR
// JSON first, so primitive ids and extensions are visible to the expression.
func (e *Evaluator) Evaluate(res *element.Resource, expression string) (types.Collection, error) {
	data, err := element.Encode(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return e.EvaluateJSON(data, expression)
}

// EvaluateJSON runs expression against an encoded resource.
func (e *Evaluator) EvaluateJSON(data []byte, expression string) (types.Collection, error) {
	compiled, err := e.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", expression, err)
	}

	result, err := compiled.Evaluate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate FHIRPath expression '%s': %w", expression, err)
	}
	return result, nil
}

// Strings evaluates expression and renders each result item.
func (e *Evaluator) Strings(res *element.Resource, expression string) ([]string, error) {
	result, err := e.Evaluate(res, expression)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(result))
	for _, v := range result {
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}

// Test evaluates expression with FHIRPath truthiness: an empty result is
// false, a single boolean is its value, and anything else is true.
func (e *Evaluator) Test(res *element.Resource, expression string) (bool, error) {
	result, err := e.Evaluate(res, expression)
	if err != nil {
		return false, err
	}
	return toBool(result), nil
}

func (e *Evaluator) compile(expression string) (*fhirpath.Expression, error) {
	return e.cache.GetOrCompute(expression, func() (*fhirpath.Expression, error) {
		return fhirpath.Compile(expression)
	})
}

// CacheSize returns the number of cached expressions.
func (e *Evaluator) CacheSize() int {
	return e.cache.Len()
}

// CacheStats returns hit and eviction counters of the expression cache.
func (e *Evaluator) CacheStats() cache.Stats {
	return e.cache.Stats()
}

func toBool(result types.Collection) bool {
	if len(result) == 0 {
		return false
	}
	if len(result) == 1 {
		if b, ok := result[0].(types.Boolean); ok {
			return b.Bool()
		}
	}
	return true
}
