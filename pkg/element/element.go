// Package element provides a reference parser.State that builds a generic
// FHIR element tree, plus an encoder that writes the tree back out as FHIR
// JSON.
//
// The tree keeps FHIR's own shape rather than Go structs per resource type:
// a Resource has a root Element, every Element has ordered Children, and
// primitive elements carry their JSON scalar together with the id and
// extensions found in the matching "_x" sidecar.
package element

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gofhir/parser/pkg/document"
)

// Resource is a parsed FHIR resource.
type Resource struct {
	// Type is the resourceType, e.g. "Patient".
	Type string

	// Root holds the resource's elements. Root.Name equals Type.
	Root *Element
}

// ID returns the resource id, or "" when it has none.
func (r *Resource) ID() string {
	if r == nil || r.Root == nil {
		return ""
	}
	if id := r.Root.Child("id"); id != nil && id.Value != nil {
		return id.Value.String()
	}
	return ""
}

// Element is one node of the element tree.
type Element struct {
	// Name is the JSON property name, e.g. "given" or "valueQuantity".
	Name string

	// Path is the definition path the builder resolved for this element,
	// e.g. "Patient.name" or "HumanName.given".
	Path string

	// Value is the primitive value, nil when absent.
	Value *document.Scalar

	// ID is the element id carried by a primitive's "_x" sidecar.
	ID string

	Extensions         []*Extension
	ModifierExtensions []*Extension

	// Children are the child elements in document order. Repeated names
	// appear once per array entry.
	Children []*Element

	// Resource is set for elements that hold an embedded resource, such as
	// contained resources and Bundle entries.
	Resource *Resource

	// Repeating records that the definitions declared this element as an
	// array, so single entries are still encoded as arrays.
	Repeating bool
}

// Extension is an extension or modifierExtension entry. Its value[x] and
// nested extensions live in Element.
type Extension struct {
	URL      string
	Modifier bool
	Element  *Element
}

// Value returns the extension's value[x] element, or nil.
func (e *Extension) Value() *Element {
	if e == nil || e.Element == nil {
		return nil
	}
	for _, child := range e.Element.Children {
		if strings.HasPrefix(child.Name, "value") {
			return child
		}
	}
	return nil
}

// Child returns the first child named name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, child := range e.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// ChildrenNamed returns every child named name, in order.
func (e *Element) ChildrenNamed(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, child := range e.Children {
		if child.Name == name {
			out = append(out, child)
		}
	}
	return out
}

// Extension returns the first extension (modifier or not) with the given url.
func (e *Element) Extension(url string) *Extension {
	if e == nil {
		return nil
	}
	for _, ext := range e.Extensions {
		if ext.URL == url {
			return ext
		}
	}
	for _, ext := range e.ModifierExtensions {
		if ext.URL == url {
			return ext
		}
	}
	return nil
}

// HasValue reports whether the element carries a primitive value.
func (e *Element) HasValue() bool {
	return e != nil && e.Value != nil
}

// IsPrimitive reports whether the element is encoded as a JSON scalar (or a
// value-less "_x" sidecar) rather than as an object.
func (e *Element) IsPrimitive() bool {
	return len(e.Children) == 0 && e.Resource == nil
}

// String returns the primitive value as a string, or "" when absent.
func (e *Element) String() string {
	if e == nil || e.Value == nil {
		return ""
	}
	return e.Value.String()
}

// Decimal returns a numeric value with its precision intact.
func (e *Element) Decimal() (decimal.Decimal, error) {
	if !e.HasValue() {
		return decimal.Decimal{}, fmt.Errorf("element %s has no value", e.Name)
	}
	return e.Value.Decimal()
}

// Bool returns a boolean value.
func (e *Element) Bool() (bool, error) {
	if !e.HasValue() {
		return false, fmt.Errorf("element %s has no value", e.Name)
	}
	return e.Value.Bool()
}
