package document

import (
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// DefaultMaxDepth is the nesting limit applied when none is configured.
const DefaultMaxDepth = 512

// ErrMaxDepth is returned when a document nests deeper than the configured limit.
var ErrMaxDepth = errors.New("maximum nesting depth exceeded")

// SyntaxError describes malformed JSON input.
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid JSON at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

type config struct {
	maxDepth int
}

// Option configures Parse.
type Option func(*config)

// WithMaxDepth limits how deeply objects and arrays may nest.
// Values <= 0 select DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(c *config) {
		c.maxDepth = depth
	}
}

// Parse decodes a UTF-8 JSON document.
func Parse(data []byte, opts ...Option) (Node, error) {
	cfg := config{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxDepth <= 0 {
		cfg.maxDepth = DefaultMaxDepth
	}

	value, dataType, end, err := jsonparser.Get(data)
	if err != nil {
		return nil, &SyntaxError{Offset: -1, Err: err}
	}
	for i := end; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return nil, &SyntaxError{Offset: i, Err: errors.New("unexpected data after top-level value")}
		}
	}

	d := decoder{maxDepth: cfg.maxDepth}
	return d.decode(value, dataType, 1)
}

// MustParse is like Parse but panics on error. Intended for tests and
// static fixtures.
func MustParse(data string) Node {
	n, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return n
}

type decoder struct {
	maxDepth int
}

func (d *decoder) decode(value []byte, dataType jsonparser.ValueType, depth int) (Node, error) {
	switch dataType {
	case jsonparser.Object:
		if depth > d.maxDepth {
			return nil, ErrMaxDepth
		}
		return d.decodeObject(value, depth)
	case jsonparser.Array:
		if depth > d.maxDepth {
			return nil, ErrMaxDepth
		}
		return d.decodeArray(value, depth)
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, &SyntaxError{Offset: -1, Err: err}
		}
		return NewString(s), nil
	case jsonparser.Number:
		return NewNumber(string(value)), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return nil, &SyntaxError{Offset: -1, Err: err}
		}
		return NewBool(b), nil
	case jsonparser.Null:
		return Null{}, nil
	default:
		return nil, &SyntaxError{Offset: -1, Err: fmt.Errorf("unrecognized value %q", truncate(value))}
	}
}

func (d *decoder) decodeObject(value []byte, depth int) (*Object, error) {
	obj := NewObject()
	err := jsonparser.ObjectEach(value, func(key, v []byte, vt jsonparser.ValueType, offset int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return &SyntaxError{Offset: offset, Err: err}
		}
		child, err := d.decode(v, vt, depth+1)
		if err != nil {
			return err
		}
		obj.Set(name, child)
		return nil
	})
	if err != nil {
		return nil, wrapSyntax(err)
	}
	return obj, nil
}

func (d *decoder) decodeArray(value []byte, depth int) (*Array, error) {
	arr := &Array{}
	var inner error
	_, err := jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, offset int, err error) {
		if inner != nil {
			return
		}
		if err != nil {
			inner = &SyntaxError{Offset: offset, Err: err}
			return
		}
		child, err := d.decode(v, vt, depth+1)
		if err != nil {
			inner = err
			return
		}
		arr.items = append(arr.items, child)
	})
	if inner != nil {
		return nil, inner
	}
	if err != nil {
		return nil, wrapSyntax(err)
	}
	return arr, nil
}

func wrapSyntax(err error) error {
	var se *SyntaxError
	if errors.Is(err, ErrMaxDepth) || errors.As(err, &se) {
		return err
	}
	return &SyntaxError{Offset: -1, Err: err}
}

func truncate(b []byte) string {
	if len(b) > 32 {
		return string(b[:32]) + "..."
	}
	return string(b)
}
