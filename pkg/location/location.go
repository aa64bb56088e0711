// Package location maps diagnostic expressions back to line and column
// positions in the JSON source.
package location

import (
	"strings"

	"github.com/buger/jsonparser"

	"github.com/gofhir/parser/pkg/issue"
)

// Find returns the position of the value expression points at, or nil when
// the expression does not resolve in data. Expressions have the form the
// parser reports: "Patient.name[0].given[1]". The leading resource type is
// optional.
func Find(data []byte, expression string) *issue.Location {
	if len(data) == 0 || expression == "" {
		return nil
	}

	keys := splitExpression(expression)
	if len(keys) == 0 {
		return nil
	}

	value, dataType, end, err := jsonparser.Get(data, keys...)
	if err != nil {
		return nil
	}

	start := end - len(value)
	if dataType == jsonparser.String {
		start -= 2 // both quotes: end is past the closing one
	}

	line, col := offsetToLineCol(data, start)
	return &issue.Location{Line: line, Column: col}
}

// Enrich sets the Location of every issue in result whose first expression
// resolves in data.
func Enrich(data []byte, result *issue.Result) {
	if result == nil {
		return
	}
	result.EnrichLocations(func(expression string) *issue.Location {
		return Find(data, expression)
	})
}

// splitExpression turns an expression into jsonparser keys:
//   - "Patient.identifier[0].value" -> ["identifier", "[0]", "value"]
//   - "Bundle.entry[0].resource.id" -> ["entry", "[0]", "resource", "id"]
func splitExpression(expression string) []string {
	// Drop the resource type prefix (Patient.identifier -> identifier)
	if idx := strings.IndexByte(expression, '.'); idx > 0 {
		if first := expression[0]; first >= 'A' && first <= 'Z' {
			expression = expression[idx+1:]
		}
	} else if first := expression[0]; first >= 'A' && first <= 'Z' && !strings.Contains(expression, "[") {
		return nil
	}

	var keys []string
	start := 0
	for i := 0; i < len(expression); i++ {
		switch expression[i] {
		case '.':
			if i > start {
				keys = append(keys, expression[start:i])
			}
			start = i + 1
		case '[':
			if i > start {
				keys = append(keys, expression[start:i])
			}
			j := strings.IndexByte(expression[i:], ']')
			if j < 0 {
				return nil
			}
			keys = append(keys, expression[i:i+j+1])
			i += j
			start = i + 1
		}
	}
	if start < len(expression) {
		keys = append(keys, expression[start:])
	}
	return keys
}

// offsetToLineCol converts a byte offset to line and column numbers.
// Line and column are 1-indexed (human-readable).
func offsetToLineCol(input []byte, offset int) (line, col int) {
	line = 1
	col = 1
	for i := 0; i < offset && i < len(input); i++ {
		if input[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}
