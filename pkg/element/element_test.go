package element

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/logger"
	"github.com/gofhir/parser/pkg/parser"
)

func testParser() *parser.Parser {
	return parser.New(parser.WithLogger(logger.Discard()))
}

func mustParse(t *testing.T, input string) *Resource {
	t.Helper()
	res, result, err := Parse(testParser(), []byte(input), nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	for _, iss := range result.Issues {
		t.Logf("  [%s] %s @ %v", iss.Severity, iss.Diagnostics, iss.Expression)
	}
	return res
}

func TestBuilderPrimitiveWithExtension(t *testing.T) {
	res := mustParse(t, `{"resourceType":"Patient","id":"p1","status":"active","_status":{"id":"s1","extension":[{"url":"u","valueString":"y"}]}}`)

	if res.Type != "Patient" {
		t.Errorf("Type = %q, want %q", res.Type, "Patient")
	}
	if res.ID() != "p1" {
		t.Errorf("ID() = %q, want %q", res.ID(), "p1")
	}

	status := res.Root.Child("status")
	if status == nil {
		t.Fatal("status element missing")
	}
	if status.String() != "active" {
		t.Errorf("status = %q, want %q", status.String(), "active")
	}
	if status.ID != "s1" {
		t.Errorf("status.ID = %q, want %q", status.ID, "s1")
	}
	if len(status.Extensions) != 1 {
		t.Fatalf("expected 1 extension, got %d", len(status.Extensions))
	}
	ext := status.Extensions[0]
	if ext.URL != "u" {
		t.Errorf("extension URL = %q, want %q", ext.URL, "u")
	}
	if v := ext.Value(); v == nil || v.Name != "valueString" || v.String() != "y" {
		t.Errorf("extension value = %+v, want valueString \"y\"", v)
	}
	if status.Extension("u") != ext {
		t.Error("Extension(\"u\") did not return the extension")
	}
}

func TestBuilderArrayAlignment(t *testing.T) {
	res := mustParse(t, `{"resourceType":"Patient","code":["a","b"],"_code":[null,{"extension":[{"url":"u"}]}]}`)

	codes := res.Root.ChildrenNamed("code")
	if len(codes) != 2 {
		t.Fatalf("expected 2 code elements, got %d", len(codes))
	}
	if len(codes[0].Extensions) != 0 {
		t.Errorf("code[0] has %d extensions, want 0", len(codes[0].Extensions))
	}
	if len(codes[1].Extensions) != 1 || codes[1].Extensions[0].URL != "u" {
		t.Errorf("code[1] extensions = %+v, want one with url u", codes[1].Extensions)
	}
}

func TestBuilderTypedScalars(t *testing.T) {
	res := mustParse(t, `{"resourceType":"Observation","valueQuantity":{"value":1.50,"unit":"mg"},"valueBoolean":true}`)

	value := res.Root.Child("valueQuantity").Child("value")
	d, err := value.Decimal()
	if err != nil {
		t.Fatalf("Decimal returned error: %v", err)
	}
	if d.String() != "1.5" || d.Exponent() != -2 {
		t.Errorf("Decimal = %s (exp %d), want 1.5 (exp -2)", d, d.Exponent())
	}
	if value.Value.Type() != document.ScalarNumber {
		t.Errorf("value type = %s, want NUMBER", value.Value.Type())
	}

	b, err := res.Root.Child("valueBoolean").Bool()
	if err != nil || !b {
		t.Errorf("Bool() = %v, %v, want true", b, err)
	}
	if _, err := res.Root.Child("valueQuantity").Child("unit").Decimal(); err == nil {
		t.Error("expected Decimal on a string to fail")
	}
}

func TestBuilderContainedAndBundle(t *testing.T) {
	input := `{"resourceType":"Bundle","type":"collection","entry":[` +
		`{"fullUrl":"urn:uuid:1","resource":{"resourceType":"Patient","id":"p1",` +
		`"contained":[{"resourceType":"Organization","id":"o1","name":"Acme"}]}}]}`
	res := mustParse(t, input)

	entries := res.Root.ChildrenNamed("entry")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[0].Repeating {
		t.Error("entry should be marked repeating")
	}
	patient := entries[0].Child("resource").Resource
	if patient == nil || patient.Type != "Patient" || patient.ID() != "p1" {
		t.Fatalf("entry resource = %+v, want Patient p1", patient)
	}
	if patient.Root.Child("resourceType") != nil {
		t.Error("resourceType should not be a child of an embedded resource")
	}

	contained := patient.Root.Child("contained")
	if contained == nil || contained.Resource == nil {
		t.Fatal("contained resource missing")
	}
	org := contained.Resource
	if org.Type != "Organization" || org.Root.Child("name").String() != "Acme" {
		t.Errorf("contained = %s %q, want Organization Acme", org.Type, org.Root.Child("name").String())
	}
	if got := org.Root.Child("name").Path; got != "Organization.name" {
		t.Errorf("contained child path = %q, want %q", got, "Organization.name")
	}
}

func TestBuilderRepeatingAsObject(t *testing.T) {
	res, result, err := Parse(testParser(), []byte(`{"resourceType":"Bundle","entry":{"fullUrl":"x"}}`), nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Issues) != 1 {
		t.Errorf("expected 1 issue, got %d", len(result.Issues))
	}
	if entry := res.Root.Child("entry"); entry == nil || entry.Child("fullUrl").String() != "x" {
		t.Errorf("entry not emitted as a singleton: %+v", entry)
	}
}

func TestBuilderFinishErrors(t *testing.T) {
	t.Run("no resource", func(t *testing.T) {
		_, err := NewBuilder(nil).Finish()
		if !errors.Is(err, ErrNoResource) {
			t.Errorf("expected ErrNoResource, got %v", err)
		}
	})

	t.Run("open scope", func(t *testing.T) {
		b := NewBuilder(nil)
		b.EnterElement("Patient")
		b.EnterElement("name")
		b.ExitElement()
		if _, err := b.Finish(); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("expected ErrUnbalanced, got %v", err)
		}
	})

	t.Run("extra exit", func(t *testing.T) {
		b := NewBuilder(nil)
		b.EnterElement("Patient")
		b.ExitElement()
		b.ExitElement()
		if _, err := b.Finish(); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("expected ErrUnbalanced, got %v", err)
		}
	})
}

func TestBuilderHints(t *testing.T) {
	b := NewBuilder(nil)
	b.EnterElement("Patient")

	if !b.IsTopLevelResource() {
		t.Error("expected top-level resource")
	}
	if !b.IsRepeating("contained") {
		t.Error("contained should repeat")
	}
	if b.IsRepeating("gender") {
		t.Error("gender should not repeat")
	}

	b.EnterElement("contained")
	if !b.IsPreResource() {
		t.Error("contained should be a pre-resource slot")
	}
	b.EnterElement("Observation")
	if b.IsPreResource() {
		t.Error("pre-resource slot should be filled")
	}
	if b.IsTopLevelResource() {
		t.Error("contained resource is not top-level")
	}
	b.ExitElement()
	b.ExitElement()
	b.ExitElement()

	if _, err := b.Finish(); err != nil {
		t.Errorf("Finish returned error: %v", err)
	}
}

func TestStaticDefinitions(t *testing.T) {
	defs := DefaultDefinitions()

	tests := []struct {
		parent, name string
		want         Definition
		found        bool
	}{
		{"Patient", "contained", Definition{Path: "Patient.contained", Repeating: true, Resource: true}, true},
		{"Bundle.entry", "resource", Definition{Path: "Bundle.entry.resource", Resource: true}, true},
		{"Parameters.parameter", "part", Definition{Path: "Parameters.parameter", Repeating: true}, true},
		{"CodeableConcept", "coding", Definition{Path: "CodeableConcept.coding", Repeating: true}, true},
		{"Patient", "gender", Definition{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.parent+"."+tt.name, func(t *testing.T) {
			got, ok := defs.Child(tt.parent, tt.name)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("definition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestChain(t *testing.T) {
	custom := StaticDefinitions{"Patient.name": {Repeating: true}}
	defs := Chain(custom, DefaultDefinitions())

	if def, ok := defs.Child("Patient", "name"); !ok || !def.Repeating {
		t.Errorf("Patient.name = %+v, %v, want repeating", def, ok)
	}
	if def, ok := defs.Child("Patient", "contained"); !ok || !def.Resource {
		t.Errorf("Patient.contained = %+v, %v, want resource slot", def, ok)
	}
	if _, ok := defs.Child("Patient", "gender"); ok {
		t.Error("Patient.gender should not be found")
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "primitive with sidecar",
			input: `{"resourceType":"Patient","status":"active","_status":{"extension":[{"url":"u","valueString":"y"}]}}`,
			want:  `{"resourceType":"Patient","status":"active","_status":{"extension":[{"url":"u","valueString":"y"}]}}`,
		},
		{
			name:  "aligned primitive array",
			input: `{"resourceType":"Patient","code":["a","b"],"_code":[null,{"id":"c1"}]}`,
			want:  `{"resourceType":"Patient","code":["a","b"],"_code":[null,{"id":"c1"}]}`,
		},
		{
			name:  "value-less primitive",
			input: `{"resourceType":"Patient","_birthDate":{"extension":[{"url":"u","valueCode":"unknown"}]}}`,
			want:  `{"resourceType":"Patient","_birthDate":{"extension":[{"url":"u","valueCode":"unknown"}]}}`,
		},
		{
			name:  "numbers and booleans keep their literal form",
			input: `{"resourceType":"Observation","valueQuantity":{"value":1.50},"active":false}`,
			want:  `{"resourceType":"Observation","valueQuantity":{"value":1.50},"active":false}`,
		},
		{
			name:  "repeating single entry stays an array",
			input: `{"resourceType":"Patient","contained":[{"resourceType":"Basic","id":"b"}]}`,
			want:  `{"resourceType":"Patient","contained":[{"resourceType":"Basic","id":"b"}]}`,
		},
		{
			name:  "extensions are written first",
			input: `{"resourceType":"Patient","active":true,"extension":[{"url":"u","extension":[{"url":"n","valueInteger":1}]}],"modifierExtension":[{"url":"m"}]}`,
			want:  `{"resourceType":"Patient","extension":[{"url":"u","extension":[{"url":"n","valueInteger":1}]}],"modifierExtension":[{"url":"m"}],"active":true}`,
		},
		{
			name:  "string escaping",
			input: `{"resourceType":"Patient","text":{"div":"<div>\"a\"\n</div>"}}`,
			want:  `{"resourceType":"Patient","text":{"div":"<div>\"a\"\n</div>"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustParse(t, tt.input)
			got, err := Encode(res)
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			if diff := cmp.Diff(tt.want, string(got)); diff != "" {
				t.Errorf("Encode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	input := `{"resourceType":"Bundle","type":"collection","entry":[{"resource":{"resourceType":"Patient",` +
		`"name":[{"family":"Doe","given":["J","K"],"_given":[{"id":"g0"},null]}],` +
		`"_gender":{"extension":[{"url":"u","valueCode":"x"}]},` +
		`"extension":[{"url":"http://example.org/a","valueDecimal":0.10}]}}]}`

	first := mustParse(t, input)
	encoded, err := Encode(first)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	second := mustParse(t, string(encoded))

	opt := cmp.Comparer(func(a, b *document.Scalar) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.String() == b.String() && a.Type() == b.Type()
	})
	if diff := cmp.Diff(first, second, opt, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestEncodeNil(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrNilResource) {
		t.Errorf("expected ErrNilResource, got %v", err)
	}
}

func TestDump(t *testing.T) {
	res := mustParse(t, `{"resourceType":"Patient","active":true,"name":[{"given":["A","B"]}],"_birthDate":{"id":"b1"},"extension":[{"valueString":"x"}]}`)

	var buf bytes.Buffer
	if err := Dump(&buf, res); err != nil {
		t.Fatalf("Dump returned error: %v", err)
	}

	want := strings.Join([]string{
		"Patient",
		"  extension <no url>",
		`    valueString = "x"`,
		"  active = true",
		"  name",
		`    given[0] = "A"`,
		`    given[1] = "B"`,
		"  birthDate (id b1)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Dump mismatch (-want +got):\n%s", diff)
	}
}

func TestWalk(t *testing.T) {
	res := mustParse(t, `{"resourceType":"Patient","contained":[{"resourceType":"Basic","code":{"text":"t"}}],"active":true}`)

	var names []string
	Walk(res.Root, func(el *Element, depth int) bool {
		names = append(names, strings.Repeat(".", depth)+el.Name)
		return el.Name != "code"
	})

	want := []string{"Patient", ".contained", "..Basic", "...code", ".active"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Walk order mismatch (-want +got):\n%s", diff)
	}
}
