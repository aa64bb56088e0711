package parser

import (
	"github.com/gofhir/parser/pkg/document"
)

// parseExtensions parses the entries of an extension or modifierExtension
// array in document order, attaching each to the current scope.
func (w *walker) parseExtensions(values *document.Array, modifier bool) error {
	name := keyExtension
	if modifier {
		name = keyModifierExtension
	}

	w.path.Push(name)
	defer w.path.Pop()

	for i, item := range values.Items() {
		w.path.SetIndex(i)

		obj, ok := item.(*document.Object)
		if !ok {
			if err := w.incorrectType(name, document.KindObject.String(), document.TypeName(item)); err != nil {
				return err
			}
			continue
		}
		if err := w.parseExtension(obj, name, modifier); err != nil {
			return err
		}
	}
	return nil
}

// parseExtension parses one extension entry. The url is read up front so the
// scope can be opened with it; every other member, including nested
// extensions and value[x], is walked like an ordinary element body.
func (w *walker) parseExtension(obj *document.Object, name string, modifier bool) error {
	if err := w.descend(); err != nil {
		return err
	}
	defer w.ascend()

	var extensionURL string
	if s, ok := extensionURLOf(obj); ok {
		extensionURL = ResolveExtensionURL(s, w.baseURL)
	} else {
		loc := Location{Path: w.path.String(), ParentElementName: name}
		if err := w.handler.MissingRequiredElement(loc, keyURL); err != nil {
			return err
		}
	}

	w.state.EnterExtension(extensionURL, modifier, w.baseURL)
	defer w.state.ExitElement()

	return w.walkObject(obj, func(key string) bool {
		return key == keyURL
	})
}

// extensionURLOf returns the url of an extension entry when it is a scalar.
func extensionURLOf(obj *document.Object) (string, bool) {
	v, ok := obj.Get(keyURL)
	if !ok {
		return "", false
	}
	s, ok := v.(*document.Scalar)
	if !ok {
		return "", false
	}
	return s.String(), true
}
