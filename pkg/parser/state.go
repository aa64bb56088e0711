package parser

import "github.com/gofhir/parser/pkg/document"

// State accumulates the output object graph while the parser walks a
// document. It is a push-down automaton over scopes: every EnterElement or
// EnterExtension is matched by exactly one ExitElement, on every path the
// parser takes, including aborted ones.
//
// A State is used for a single parse and is not safe for concurrent use.
type State interface {
	// EnterElement opens a child scope named name under the current scope.
	EnterElement(name string)

	// EnterExtension opens an extension scope on the current scope. url is
	// already resolved against baseURL; it is "" when the extension has no url.
	EnterExtension(url string, modifier bool, baseURL string)

	// ExitElement closes the current scope.
	ExitElement()

	// SetAttribute sets an attribute ("value" or "id") on the current scope.
	SetAttribute(name, value string)

	// IsRepeating reports whether the current scope expects name to repeat.
	IsRepeating(name string) bool

	// IsPreResource reports whether the current scope is a polymorphic
	// placeholder whose concrete type comes from an inline "resourceType".
	IsPreResource() bool

	// IsTopLevelResource reports whether the current scope is the root
	// element of a resource, where "resourceType" is not a child element.
	IsTopLevelResource() bool

	// Finish returns the finished object once parsing completes.
	Finish() (any, error)
}

// ScalarState is implemented by a State that wants scalar values with their
// JSON type instead of their string form. When available, the parser calls
// SetScalar in place of SetAttribute for element values.
type ScalarState interface {
	SetScalar(name string, value *document.Scalar)
}
