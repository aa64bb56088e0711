package parser

import (
	"strings"

	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/logger"
	"github.com/gofhir/parser/pkg/pool"
)

// Keys with fixed meaning in FHIR JSON.
const (
	keyResourceType      = "resourceType"
	keyExtension         = "extension"
	keyModifierExtension = "modifierExtension"
	keyComments          = "fhir_comments"
	keyID                = "id"
	keyURL               = "url"
	attrValue            = "value"
)

// walker carries the per-call state of one parse.
type walker struct {
	state    State
	scalar   ScalarState
	handler  ErrorHandler
	baseURL  string
	maxDepth int
	depth    int
	path     pool.Path
	log      *logger.Logger
}

func newWalker(p *Parser, state State, handler ErrorHandler) *walker {
	w := &walker{
		state:    state,
		handler:  handler,
		baseURL:  p.config.ServerBaseURL,
		maxDepth: p.config.MaxDepth,
		log:      p.config.Logger,
	}
	if ss, ok := state.(ScalarState); ok {
		w.scalar = ss
	}
	return w
}

// parseResource opens the top-level resource scope and walks its members.
func (w *walker) parseResource(resourceType string, obj *document.Object) error {
	w.path.Push(resourceType)
	defer w.path.Pop()

	w.state.EnterElement(resourceType)
	defer w.state.ExitElement()

	return w.parseMembers(obj)
}

// parseMembers walks the members of an object that represents an element.
func (w *walker) parseMembers(obj *document.Object) error {
	return w.walkObject(obj, func(key string) bool {
		if key == keyComments {
			return true
		}
		return key == keyResourceType && w.state.IsTopLevelResource()
	})
}

// walkObject runs the main key loop over obj and then, if some underscore
// keys were left unpaired, the deferred pass.
func (w *walker) walkObject(obj *document.Object, ignore func(key string) bool) error {
	counter, err := w.walkPrimaries(obj, ignore)
	if err != nil {
		return err
	}
	if counter.pending() {
		return w.reconcileDeferred(obj)
	}
	return nil
}

// walkPrimaries dispatches every key of obj except the ignored ones.
// Underscore-prefixed keys are only counted here; the returned counter tells
// the caller whether some of them still need the deferred pass.
func (w *walker) walkPrimaries(obj *document.Object, ignore func(key string) bool) (alternateCounter, error) {
	var counter alternateCounter

	for _, key := range obj.Keys() {
		if ignore(key) {
			continue
		}
		value, _ := obj.Get(key)

		switch {
		case key == keyExtension || key == keyModifierExtension:
			values, err := w.grabArray(value, key)
			if err != nil {
				return counter, err
			}
			if values != nil {
				if err := w.parseExtensions(values, key == keyModifierExtension); err != nil {
					return counter, err
				}
			}
			continue
		case strings.HasPrefix(key, "_"):
			counter.observed++
			continue
		}

		// A bare "_" never pairs, not even with the empty key.
		var (
			alternateName = "_" + key
			alternate     document.Node
			hasAlternate  bool
		)
		if key != "" {
			alternate, hasAlternate = obj.Get(alternateName)
		}
		if hasAlternate {
			counter.paired++
		}

		w.path.Push(key)
		err := w.parseValue(key, value, alternate, alternateName, false)
		w.path.Pop()
		if err != nil {
			return counter, err
		}
	}

	return counter, nil
}

// parseValue emits the element(s) for one key. The last path segment is
// already name.
func (w *walker) parseValue(name string, value, alternate document.Node, alternateName string, inArray bool) error {
	if err := w.descend(); err != nil {
		return err
	}
	defer w.ascend()

	if name == keyID && !document.IsStringScalar(value) {
		return w.incorrectType(keyID, document.ScalarString.String(), document.TypeName(value))
	}

	switch v := value.(type) {
	case *document.Array:
		return w.parseArray(name, v, alternate, alternateName)
	case *document.Object:
		return w.parseObject(name, v, alternate, alternateName, inArray)
	case *document.Scalar:
		return w.parseScalar(name, v, alternate, alternateName)
	default:
		return w.parseNull(name, alternate, alternateName)
	}
}

func (w *walker) parseArray(name string, values *document.Array, alternate document.Node, alternateName string) error {
	var alternates *document.Array
	if alternate != nil {
		if a, ok := alternate.(*document.Array); ok {
			alternates = a
		} else if err := w.incorrectType(alternateName, document.KindArray.String(), document.TypeName(alternate)); err != nil {
			return err
		}
	}

	for i, item := range values.Items() {
		var itemAlternate document.Node
		if alternates != nil && i < alternates.Len() {
			itemAlternate = alternates.At(i)
		}
		w.path.SetIndex(i)
		if err := w.parseValue(name, item, itemAlternate, alternateName, true); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) parseObject(name string, obj *document.Object, alternate document.Node, alternateName string, inArray bool) error {
	if !inArray && w.state.IsRepeating(name) {
		if err := w.incorrectType(name, document.KindArray.String(), document.KindObject.String()); err != nil {
			return err
		}
	}

	w.state.EnterElement(name)
	defer w.state.ExitElement()

	if err := w.parseAlternate(alternate, alternateName); err != nil {
		return err
	}
	if w.state.IsPreResource() {
		return w.parseEmbeddedResource(obj)
	}
	return w.parseMembers(obj)
}

// parseEmbeddedResource handles a polymorphic slot (contained resources,
// Bundle.entry.resource): the concrete type is read from the object itself.
func (w *walker) parseEmbeddedResource(obj *document.Object) error {
	rt, _ := obj.Get(keyResourceType)
	if !document.IsStringScalar(rt) {
		return w.fatal(issue.DiagContainedNoType, nil)
	}

	w.state.EnterElement(rt.(*document.Scalar).String())
	defer w.state.ExitElement()

	return w.walkObject(obj, func(key string) bool {
		return key == keyResourceType || key == keyComments
	})
}

func (w *walker) parseScalar(name string, value *document.Scalar, alternate document.Node, alternateName string) error {
	w.state.EnterElement(name)
	defer w.state.ExitElement()

	if w.scalar != nil {
		w.scalar.SetScalar(attrValue, value)
	} else {
		w.state.SetAttribute(attrValue, value.String())
	}
	return w.parseAlternate(alternate, alternateName)
}

// parseNull emits an element with no value; it exists only to carry the
// id and extensions of its alternate.
func (w *walker) parseNull(name string, alternate document.Node, alternateName string) error {
	w.state.EnterElement(name)
	defer w.state.ExitElement()

	return w.parseAlternate(alternate, alternateName)
}

// grabArray returns the array held by an extension key. JSON null means no
// extensions; anything else that is not an array is fatal.
func (w *walker) grabArray(value document.Node, key string) (*document.Array, error) {
	switch v := value.(type) {
	case *document.Array:
		return v, nil
	case nil, document.Null:
		return nil, nil
	default:
		return nil, w.fatal(issue.DiagExpectedArray, map[string]any{
			"element": key,
			"found":   document.TypeName(value),
		})
	}
}

func (w *walker) descend() error {
	w.depth++
	if w.depth > w.maxDepth {
		fe := w.fatal(issue.DiagMaxDepth, map[string]any{"depth": w.maxDepth})
		fe.cause = ErrMaxDepth
		return fe
	}
	return nil
}

func (w *walker) ascend() {
	w.depth--
}

func (w *walker) location() Location {
	return Location{Path: w.path.String()}
}

func (w *walker) incorrectType(name, expected, found string) error {
	return w.handler.IncorrectJSONType(w.location(), name, expected, found)
}

func (w *walker) fatal(id issue.DiagnosticID, params map[string]any) *FormatError {
	return newFormatError(id, params, w.path.String())
}
