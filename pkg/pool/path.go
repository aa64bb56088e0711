// Package pool provides sync.Pool wrappers for reducing GC pressure.
package pool

import (
	"strconv"
	"sync"
)

// PathBuilder provides path string building over a reusable byte buffer.
type PathBuilder struct {
	buf []byte
}

// pathBuilderPool holds reusable PathBuilder instances.
var pathBuilderPool = sync.Pool{
	New: func() any {
		return &PathBuilder{
			buf: make([]byte, 0, 256),
		}
	},
}

// AcquirePathBuilder gets a PathBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquirePathBuilder() *PathBuilder {
	pb := pathBuilderPool.Get().(*PathBuilder)
	pb.Reset()
	return pb
}

// Release returns the PathBuilder to the pool.
func (b *PathBuilder) Release() {
	if b == nil {
		return
	}
	// Don't return oversized buffers to the pool
	if cap(b.buf) <= 4096 {
		pathBuilderPool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *PathBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length of the path.
func (b *PathBuilder) Len() int {
	return len(b.buf)
}

// WriteString appends a string to the path.
func (b *PathBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// AppendWithDot appends a segment with a leading dot if buffer is not empty.
func (b *PathBuilder) AppendWithDot(part string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, '.')
	}
	b.buf = append(b.buf, part...)
}

// AppendIndex appends an array index in brackets [n].
func (b *PathBuilder) AppendIndex(index int) {
	b.buf = append(b.buf, '[')
	b.buf = strconv.AppendInt(b.buf, int64(index), 10)
	b.buf = append(b.buf, ']')
}

// String returns the built path as a string.
func (b *PathBuilder) String() string {
	return string(b.buf)
}

// BuildPath is a convenience function that builds a path using a callback.
// The PathBuilder is automatically returned to the pool after the callback.
//
// Example:
//
//	path := pool.BuildPath(func(b *pool.PathBuilder) {
//	    b.AppendWithDot("Patient")
//	    b.AppendWithDot("name")
//	    b.AppendIndex(0)
//	})
func BuildPath(fn func(*PathBuilder)) string {
	pb := AcquirePathBuilder()
	defer pb.Release()
	fn(pb)
	return pb.String()
}

// Path is a stack of element names with optional array indices. It is
// rendered lazily, so pushing and popping segments costs nothing until a
// diagnostic needs the string form.
type Path struct {
	segments []pathSegment
}

type pathSegment struct {
	name  string
	index int // -1 when the segment is not an array entry
}

// Push appends a named segment.
func (p *Path) Push(name string) {
	p.segments = append(p.segments, pathSegment{name: name, index: -1})
}

// SetIndex marks the last segment as array entry i.
func (p *Path) SetIndex(i int) {
	if n := len(p.segments); n > 0 {
		p.segments[n-1].index = i
	}
}

// Pop removes the last segment.
func (p *Path) Pop() {
	if n := len(p.segments); n > 0 {
		p.segments = p.segments[:n-1]
	}
}

// Depth returns the number of segments.
func (p *Path) Depth() int {
	return len(p.segments)
}

// Last returns the name of the last segment, or "" for an empty path.
func (p *Path) Last() string {
	if n := len(p.segments); n > 0 {
		return p.segments[n-1].name
	}
	return ""
}

// String renders the path, e.g. "Patient.name[0].given[1]".
func (p *Path) String() string {
	if len(p.segments) == 0 {
		return ""
	}
	return BuildPath(func(b *PathBuilder) {
		for _, seg := range p.segments {
			b.AppendWithDot(seg.name)
			if seg.index >= 0 {
				b.AppendIndex(seg.index)
			}
		}
	})
}
