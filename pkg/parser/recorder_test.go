package parser

import (
	"fmt"
	"strings"

	"github.com/gofhir/parser/pkg/document"
)

// recorder is a State that records every call as a line of text, so tests
// can compare the whole call sequence at once.
type recorder struct {
	events      []string
	stack       []string
	enters      int
	exits       int
	repeating   map[string]bool
	preResource map[string]bool
}

func newRecorder() *recorder {
	return &recorder{
		repeating:   map[string]bool{},
		preResource: map[string]bool{},
	}
}

func (r *recorder) EnterElement(name string) {
	r.enters++
	r.events = append(r.events, "enter "+name)
	r.stack = append(r.stack, name)
}

func (r *recorder) EnterExtension(url string, modifier bool, baseURL string) {
	r.enters++
	kind := "ext"
	if modifier {
		kind = "modext"
	}
	r.events = append(r.events, kind+" "+url)
	r.stack = append(r.stack, kind)
}

func (r *recorder) ExitElement() {
	r.exits++
	r.events = append(r.events, "exit")
	if n := len(r.stack); n > 0 {
		r.stack = r.stack[:n-1]
	}
}

func (r *recorder) SetAttribute(name, value string) {
	r.events = append(r.events, fmt.Sprintf("attr %s=%s", name, value))
}

func (r *recorder) IsRepeating(name string) bool {
	return r.repeating[name]
}

func (r *recorder) IsPreResource() bool {
	if n := len(r.stack); n > 0 {
		return r.preResource[r.stack[n-1]]
	}
	return false
}

func (r *recorder) IsTopLevelResource() bool {
	return len(r.stack) == 1
}

func (r *recorder) Finish() (any, error) {
	if len(r.stack) != 0 {
		return nil, fmt.Errorf("unbalanced scopes: %s", strings.Join(r.stack, "/"))
	}
	return r.events, nil
}

// scalarRecorder also receives typed scalar values.
type scalarRecorder struct {
	*recorder
}

func (r scalarRecorder) SetScalar(name string, value *document.Scalar) {
	r.events = append(r.events, fmt.Sprintf("scalar %s=%s %s", name, value.String(), value.Type()))
}

// failingHandler aborts on the first diagnostic.
type failingHandler struct {
	calls int
}

func (h *failingHandler) IncorrectJSONType(loc Location, name string, expected, found string) error {
	h.calls++
	return fmt.Errorf("%s: %s expected %s, found %s", loc.Path, name, expected, found)
}

func (h *failingHandler) MissingRequiredElement(loc Location, name string) error {
	h.calls++
	return fmt.Errorf("%s: missing %s", loc.Path, name)
}
