package element

import (
	"fmt"
	"io"
	"strings"
)

// Walk calls fn for el and every element below it, depth first, including
// extension elements and the roots of embedded resources. depth is 0 for el.
// Returning false from fn skips the element's subtree.
func Walk(el *Element, fn func(el *Element, depth int) bool) {
	walk(el, 0, fn)
}

func walk(el *Element, depth int, fn func(*Element, int) bool) {
	if el == nil || !fn(el, depth) {
		return
	}
	for _, ext := range el.Extensions {
		walk(ext.Element, depth+1, fn)
	}
	for _, ext := range el.ModifierExtensions {
		walk(ext.Element, depth+1, fn)
	}
	for _, child := range el.Children {
		walk(child, depth+1, fn)
	}
	if el.Resource != nil {
		walk(el.Resource.Root, depth+1, fn)
	}
}

// Dump writes an indented, human-readable rendering of res to w:
//
//	Patient
//	  status = "active"
//	    extension http://example.org/ext
//	      valueString = "y"
func Dump(w io.Writer, res *Resource) error {
	if res == nil || res.Root == nil {
		return ErrNilResource
	}
	d := &dumper{w: w}
	d.element(res.Root, 0, "")
	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) printf(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, strings.Repeat("  ", depth)+format+"\n", args...)
}

func (d *dumper) element(el *Element, depth int, label string) {
	if label == "" {
		label = el.Name
	}

	line := label
	if el.Value != nil {
		if el.Value.IsString() {
			line += fmt.Sprintf(" = %q", el.Value.String())
		} else {
			line += " = " + el.Value.String()
		}
	}
	if el.ID != "" {
		line += fmt.Sprintf(" (id %s)", el.ID)
	}
	d.printf(depth, "%s", line)

	for _, ext := range el.Extensions {
		d.extension(ext, depth+1)
	}
	for _, ext := range el.ModifierExtensions {
		d.extension(ext, depth+1)
	}
	for _, group := range groupChildren(el.Children) {
		indexed := len(group) > 1 || group[0].Repeating
		for i, child := range group {
			name := child.Name
			if indexed {
				name = fmt.Sprintf("%s[%d]", child.Name, i)
			}
			d.element(child, depth+1, name)
		}
	}
	if el.Resource != nil {
		d.element(el.Resource.Root, depth+1, "")
	}
}

func (d *dumper) extension(ext *Extension, depth int) {
	url := ext.URL
	if url == "" {
		url = "<no url>"
	}
	if ext.Modifier {
		d.element(ext.Element, depth, "modifierExtension "+url)
		return
	}
	d.element(ext.Element, depth, "extension "+url)
}
