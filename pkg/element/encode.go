package element

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"

	"github.com/gofhir/parser/pkg/document"
)

// ErrNilResource is returned when encoding a nil resource.
var ErrNilResource = errors.New("nil resource")

// Encode writes res as FHIR JSON. Primitive ids and extensions are written
// to "_x" sidecars, index-aligned with null holes for arrays, so parsing the
// output yields the same element tree.
func Encode(res *Resource) ([]byte, error) {
	if res == nil || res.Root == nil {
		return nil, ErrNilResource
	}
	e := &encoder{}
	if err := e.resource(res); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
	enc *json.Encoder
}

// object tracks comma placement for one JSON object.
type object struct {
	e     *encoder
	first bool
}

func (e *encoder) beginObject() *object {
	e.buf.WriteByte('{')
	return &object{e: e, first: true}
}

func (o *object) key(name string) error {
	if !o.first {
		o.e.buf.WriteByte(',')
	}
	o.first = false
	if err := o.e.str(name); err != nil {
		return err
	}
	o.e.buf.WriteByte(':')
	return nil
}

func (o *object) end() {
	o.e.buf.WriteByte('}')
}

// str writes s as a JSON string. HTML characters are kept as is, so
// narrative XHTML reads the same as in the input.
func (e *encoder) str(s string) error {
	if e.enc == nil {
		e.enc = json.NewEncoder(&e.buf)
		e.enc.SetEscapeHTML(false)
	}
	if err := e.enc.Encode(s); err != nil {
		return err
	}
	e.buf.Truncate(e.buf.Len() - 1) // Encode terminates each value with '\n'
	return nil
}

func (e *encoder) scalar(s *document.Scalar) error {
	if s == nil {
		e.buf.WriteString("null")
		return nil
	}
	if s.IsString() {
		return e.str(s.String())
	}
	e.buf.WriteString(s.String())
	return nil
}

func (e *encoder) resource(res *Resource) error {
	obj := e.beginObject()
	if err := obj.key("resourceType"); err != nil {
		return err
	}
	if err := e.str(res.Type); err != nil {
		return err
	}
	if err := e.members(obj, res.Root); err != nil {
		return err
	}
	obj.end()
	return nil
}

// members writes the extensions and children of el into obj.
func (e *encoder) members(obj *object, el *Element) error {
	if err := e.extensions(obj, "extension", el.Extensions); err != nil {
		return err
	}
	if err := e.extensions(obj, "modifierExtension", el.ModifierExtensions); err != nil {
		return err
	}

	for _, group := range groupChildren(el.Children) {
		if err := e.group(obj, group); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) extensions(obj *object, name string, exts []*Extension) error {
	if len(exts) == 0 {
		return nil
	}
	if err := obj.key(name); err != nil {
		return err
	}
	e.buf.WriteByte('[')
	for i, ext := range exts {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		inner := e.beginObject()
		if ext.URL != "" {
			if err := inner.key("url"); err != nil {
				return err
			}
			if err := e.str(ext.URL); err != nil {
				return err
			}
		}
		if ext.Element != nil {
			if err := e.members(inner, ext.Element); err != nil {
				return err
			}
		}
		inner.end()
	}
	e.buf.WriteByte(']')
	return nil
}

// group writes all children sharing one name.
func (e *encoder) group(obj *object, els []*Element) error {
	name := els[0].Name
	asArray := len(els) > 1 || els[0].Repeating

	primitive := true
	for _, el := range els {
		if !el.IsPrimitive() {
			primitive = false
			break
		}
	}

	if !primitive {
		if err := obj.key(name); err != nil {
			return err
		}
		return e.list(els, asArray, e.complex)
	}

	hasValue, hasSidecar := false, false
	for _, el := range els {
		hasValue = hasValue || el.Value != nil
		hasSidecar = hasSidecar || hasMetadata(el)
	}

	if hasValue {
		if err := obj.key(name); err != nil {
			return err
		}
		if err := e.list(els, asArray, func(el *Element) error {
			return e.scalar(el.Value)
		}); err != nil {
			return err
		}
	}
	if hasSidecar {
		if err := obj.key("_" + name); err != nil {
			return err
		}
		if err := e.list(els, asArray, e.sidecar); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) list(els []*Element, asArray bool, write func(*Element) error) error {
	if !asArray {
		return write(els[0])
	}
	e.buf.WriteByte('[')
	for i, el := range els {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := write(el); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) complex(el *Element) error {
	if el.Resource != nil {
		return e.resource(el.Resource)
	}
	obj := e.beginObject()
	if err := e.members(obj, el); err != nil {
		return err
	}
	obj.end()
	return nil
}

// sidecar writes the "_x" object for a primitive, or null when it has no
// id or extensions.
func (e *encoder) sidecar(el *Element) error {
	if !hasMetadata(el) {
		e.buf.WriteString("null")
		return nil
	}
	obj := e.beginObject()
	if el.ID != "" {
		if err := obj.key("id"); err != nil {
			return err
		}
		if err := e.str(el.ID); err != nil {
			return err
		}
	}
	if err := e.members(obj, &Element{
		Extensions:         el.Extensions,
		ModifierExtensions: el.ModifierExtensions,
	}); err != nil {
		return err
	}
	obj.end()
	return nil
}

func hasMetadata(el *Element) bool {
	return el.ID != "" || len(el.Extensions) > 0 || len(el.ModifierExtensions) > 0
}

// groupChildren groups children by name, ordered by first appearance.
func groupChildren(children []*Element) [][]*Element {
	var groups [][]*Element
	index := make(map[string]int)
	for _, child := range children {
		i, ok := index[child.Name]
		if !ok {
			i = len(groups)
			index[child.Name] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], child)
	}
	return groups
}
