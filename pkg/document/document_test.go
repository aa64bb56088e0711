package document

import (
	"errors"
	"strings"
	"testing"
)

func TestParseKeepsKeyOrder(t *testing.T) {
	n, err := Parse([]byte(`{"z":1,"a":"x","m":null,"_a":{"id":"1"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	obj, ok := n.(*Object)
	if !ok {
		t.Fatalf("Parse returned %T, want *Object", n)
	}

	want := []string{"z", "a", "m", "_a"}
	got := obj.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType ScalarType
		wantStr  string
	}{
		{"string", `"hello"`, ScalarString, "hello"},
		{"escaped string", `"a\"bé"`, ScalarString, "a\"bé"},
		{"integer", `42`, ScalarNumber, "42"},
		{"decimal keeps precision", `1.50`, ScalarNumber, "1.50"},
		{"true", `true`, ScalarBoolean, "true"},
		{"false", `false`, ScalarBoolean, "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse(%s) failed: %v", tt.input, err)
			}
			s, ok := n.(*Scalar)
			if !ok {
				t.Fatalf("Parse(%s) = %T, want *Scalar", tt.input, n)
			}
			if s.Type() != tt.wantType {
				t.Errorf("Type() = %v, want %v", s.Type(), tt.wantType)
			}
			if s.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", s.String(), tt.wantStr)
			}
		})
	}
}

func TestParseNullAndArray(t *testing.T) {
	n := MustParse(`[null, 1, "x", [], {}]`)
	arr, ok := n.(*Array)
	if !ok {
		t.Fatalf("got %T, want *Array", n)
	}
	if arr.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", arr.Len())
	}
	wantKinds := []Kind{KindNull, KindScalar, KindScalar, KindArray, KindObject}
	for i, k := range wantKinds {
		if got := KindOf(arr.At(i)); got != k {
			t.Errorf("At(%d) kind = %v, want %v", i, got, k)
		}
	}
	if inner := arr.At(3).(*Array); inner.Len() != 0 {
		t.Errorf("empty array Len() = %d, want 0", inner.Len())
	}
}

func TestParseDuplicateKeyKeepsPosition(t *testing.T) {
	obj := MustParse(`{"a":1,"b":2,"a":3}`).(*Object)
	if obj.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", obj.Len())
	}
	if obj.Keys()[0] != "a" {
		t.Errorf("first key = %q, want a", obj.Keys()[0])
	}
	v, _ := obj.Get("a")
	if v.(*Scalar).String() != "3" {
		t.Errorf("a = %q, want 3", v.(*Scalar).String())
	}
}

func TestParseMaxDepth(t *testing.T) {
	deep := strings.Repeat("[", 20) + strings.Repeat("]", 20)

	if _, err := Parse([]byte(deep), WithMaxDepth(10)); !errors.Is(err, ErrMaxDepth) {
		t.Errorf("Parse with depth 10 error = %v, want ErrMaxDepth", err)
	}
	if _, err := Parse([]byte(deep), WithMaxDepth(25)); err != nil {
		t.Errorf("Parse with depth 25 failed: %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	inputs := []string{
		``,
		`{"a":1} trailing`,
		`{"a":}`,
	}
	for _, in := range inputs {
		_, err := Parse([]byte(in))
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) error = %T, want *SyntaxError", in, err)
		}
	}
}

func TestScalarDecimal(t *testing.T) {
	s := NewNumber("0.10")
	d, err := s.Decimal()
	if err != nil {
		t.Fatalf("Decimal() failed: %v", err)
	}
	if d.String() != "0.1" {
		t.Errorf("Decimal().String() = %q, want 0.1", d.String())
	}
	if d.Exponent() != -2 {
		t.Errorf("Decimal().Exponent() = %d, want -2", d.Exponent())
	}

	if _, err := NewString("1").Decimal(); err == nil {
		t.Error("Decimal() on string scalar should fail")
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{NewObject(), "OBJECT"},
		{NewArray(), "ARRAY"},
		{Null{}, "NULL"},
		{nil, "NULL"},
		{NewString("x"), "STRING"},
		{NewNumber("1"), "NUMBER"},
		{NewBool(true), "BOOLEAN"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.node); got != tt.want {
			t.Errorf("TypeName(%T) = %q, want %q", tt.node, got, tt.want)
		}
	}
}
