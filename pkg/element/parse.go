package element

import (
	"fmt"

	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/parser"
)

// Parse parses data into a Resource with a fresh Builder. Recoverable
// diagnostics are returned in the result; a fatal error returns a nil
// Resource.
func Parse(p *parser.Parser, data []byte, defs Definitions) (*Resource, *issue.Result, error) {
	obj, result, err := p.ParseWithIssues(data, NewBuilder(defs))
	if err != nil {
		return nil, result, err
	}
	res, ok := obj.(*Resource)
	if !ok {
		return nil, result, fmt.Errorf("unexpected builder result %T", obj)
	}
	return res, result, nil
}
