package parser

import (
	"strings"

	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/issue"
)

// alternateCounter tracks the underscore keys of one object: how many were
// seen and how many were consumed together with their primary.
type alternateCounter struct {
	observed int
	paired   int
}

// pending reports whether some underscore keys have no primary sibling.
func (c alternateCounter) pending() bool {
	return c.observed > c.paired
}

// parseAlternate applies a "_x" value to the current scope. A missing or null
// alternate is a no-op; a single-element array is unwrapped.
func (w *walker) parseAlternate(alternate document.Node, alternateName string) error {
	switch v := alternate.(type) {
	case nil, document.Null:
		return nil
	case *document.Array:
		switch v.Len() {
		case 0:
			return nil
		case 1:
			return w.parseAlternate(v.At(0), alternateName)
		default:
			return w.fatal(issue.DiagUnexpectedArrayLength, map[string]any{
				"length":  v.Len(),
				"element": alternateName,
			})
		}
	case *document.Object:
		return w.parseAlternateObject(v, alternateName)
	default:
		return w.incorrectType(alternateName, document.KindObject.String(), document.TypeName(alternate))
	}
}

// parseAlternateObject reads the id and extensions of an alternate. Other
// keys carry no meaning in an alternate and are ignored.
func (w *walker) parseAlternateObject(obj *document.Object, alternateName string) error {
	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)

		switch key {
		case keyExtension, keyModifierExtension:
			values, err := w.grabArray(value, key)
			if err != nil {
				return err
			}
			if values == nil {
				continue
			}
			if err := w.parseExtensions(values, key == keyModifierExtension); err != nil {
				return err
			}
		case keyID:
			if s, ok := value.(*document.Scalar); ok && s.IsString() {
				w.state.SetAttribute(keyID, s.String())
				continue
			}
			if err := w.incorrectType(alternateName+"."+keyID, document.ScalarString.String(), document.TypeName(value)); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileDeferred emits elements for underscore keys whose primary is
// absent, e.g. a primitive that has extensions but no value.
func (w *walker) reconcileDeferred(obj *document.Object) error {
	for _, key := range obj.Keys() {
		if len(key) < 2 || !strings.HasPrefix(key, "_") {
			continue
		}
		name := key[1:]
		if obj.Has(name) {
			continue
		}

		value, _ := obj.Get(key)
		switch v := value.(type) {
		case *document.Object:
			w.log.Debug("reconciling %s without primary at %s", key, w.path.String())
			if err := w.parseOrphan(name, v, key); err != nil {
				return err
			}
		default:
			w.path.Push(key)
			err := w.incorrectType(key, document.KindObject.String(), document.TypeName(value))
			w.path.Pop()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) parseOrphan(name string, alternate *document.Object, alternateName string) error {
	w.path.Push(name)
	defer w.path.Pop()

	if err := w.descend(); err != nil {
		return err
	}
	defer w.ascend()

	w.state.EnterElement(name)
	defer w.state.ExitElement()

	return w.parseAlternateObject(alternate, alternateName)
}
