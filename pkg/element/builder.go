package element

import (
	"errors"
	"fmt"

	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/parser"
)

// Errors returned by Builder.Finish.
var (
	ErrNoResource = errors.New("no resource was built")
	ErrUnbalanced = errors.New("unbalanced element scopes")
)

// extensionPath is the definition path children of an extension resolve
// against.
const extensionPath = "Extension"

type frameKind int

const (
	resourceFrame frameKind = iota
	elementFrame
	extensionFrame
)

type frame struct {
	kind frameKind
	el   *Element
	path string
	def  Definition
}

// Builder builds a Resource from parser callbacks. It implements
// parser.State and parser.ScalarState. A Builder is used for one parse.
type Builder struct {
	defs     Definitions
	stack    []frame
	resource *Resource
	err      error
}

// NewBuilder creates a Builder using defs for cardinality and resource-slot
// hints. A nil defs uses DefaultDefinitions.
func NewBuilder(defs Definitions) *Builder {
	if defs == nil {
		defs = DefaultDefinitions()
	}
	return &Builder{defs: defs}
}

// NewState returns a factory producing a fresh Builder per call, for use
// where many documents are parsed with the same definitions.
func NewState(defs Definitions) func() parser.State {
	return func() parser.State {
		return NewBuilder(defs)
	}
}

func (b *Builder) top() *frame {
	if len(b.stack) == 0 {
		return nil
	}
	return &b.stack[len(b.stack)-1]
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// EnterElement implements parser.State.
func (b *Builder) EnterElement(name string) {
	top := b.top()

	switch {
	case top == nil:
		if b.resource != nil {
			b.fail(fmt.Errorf("%w: second top-level resource %s", ErrUnbalanced, name))
		}
		res := newResource(name)
		b.resource = res
		b.stack = append(b.stack, frame{kind: resourceFrame, el: res.Root, path: name})

	case b.preResource(top):
		res := newResource(name)
		top.el.Resource = res
		b.stack = append(b.stack, frame{kind: resourceFrame, el: res.Root, path: name})

	default:
		def, ok := b.defs.Child(top.path, name)
		if !ok {
			def = Definition{Path: top.path + "." + name}
		}
		el := &Element{Name: name, Path: def.Path, Repeating: def.Repeating}
		top.el.Children = append(top.el.Children, el)
		b.stack = append(b.stack, frame{kind: elementFrame, el: el, path: def.Path, def: def})
	}
}

// EnterExtension implements parser.State.
func (b *Builder) EnterExtension(url string, modifier bool, baseURL string) {
	top := b.top()
	if top == nil {
		b.fail(fmt.Errorf("%w: extension %q outside a resource", ErrUnbalanced, url))
		top = &frame{el: &Element{}}
	}

	name := "extension"
	if modifier {
		name = "modifierExtension"
	}
	ext := &Extension{
		URL:      url,
		Modifier: modifier,
		Element:  &Element{Name: name, Path: extensionPath},
	}
	if modifier {
		top.el.ModifierExtensions = append(top.el.ModifierExtensions, ext)
	} else {
		top.el.Extensions = append(top.el.Extensions, ext)
	}
	b.stack = append(b.stack, frame{kind: extensionFrame, el: ext.Element, path: extensionPath})
}

// ExitElement implements parser.State.
func (b *Builder) ExitElement() {
	if len(b.stack) == 0 {
		b.fail(fmt.Errorf("%w: exit without enter", ErrUnbalanced))
		return
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// SetAttribute implements parser.State.
func (b *Builder) SetAttribute(name, value string) {
	b.SetScalar(name, document.NewString(value))
}

// SetScalar implements parser.ScalarState.
func (b *Builder) SetScalar(name string, value *document.Scalar) {
	top := b.top()
	if top == nil {
		return
	}
	switch name {
	case "value":
		top.el.Value = value
	case "id":
		top.el.ID = value.String()
	}
}

// IsRepeating implements parser.State.
func (b *Builder) IsRepeating(name string) bool {
	top := b.top()
	if top == nil {
		return false
	}
	def, ok := b.defs.Child(top.path, name)
	return ok && def.Repeating
}

// IsPreResource implements parser.State.
func (b *Builder) IsPreResource() bool {
	top := b.top()
	return top != nil && b.preResource(top)
}

func (b *Builder) preResource(f *frame) bool {
	return f.kind == elementFrame && f.def.Resource && f.el.Resource == nil
}

// IsTopLevelResource implements parser.State.
func (b *Builder) IsTopLevelResource() bool {
	return len(b.stack) == 1 && b.stack[0].kind == resourceFrame
}

// Finish implements parser.State. It returns the built *Resource.
func (b *Builder) Finish() (any, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stack) != 0 {
		return nil, fmt.Errorf("%w: %d scopes still open", ErrUnbalanced, len(b.stack))
	}
	if b.resource == nil {
		return nil, ErrNoResource
	}
	return b.resource, nil
}

// Resource returns the resource built so far, or nil.
func (b *Builder) Resource() *Resource {
	return b.resource
}

func newResource(resourceType string) *Resource {
	return &Resource{
		Type: resourceType,
		Root: &Element{Name: resourceType, Path: resourceType},
	}
}

var (
	_ parser.State       = (*Builder)(nil)
	_ parser.ScalarState = (*Builder)(nil)
)
