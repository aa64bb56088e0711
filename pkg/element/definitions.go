package element

// Definition describes how a child element is shaped.
type Definition struct {
	// Path is the definition path the child's own children resolve against.
	// It is usually parentPath + "." + name, but may be a type name
	// ("HumanName") or a referenced element ("Questionnaire.item").
	Path string

	// Repeating is true when the element is an array (max > 1).
	Repeating bool

	// Resource is true for polymorphic slots that hold a whole resource,
	// whose concrete type comes from the embedded "resourceType".
	Resource bool
}

// Definitions answers shape questions for the builder.
type Definitions interface {
	// Child returns the definition of element name under parentPath.
	Child(parentPath, name string) (Definition, bool)
}

// StaticDefinitions is a fixed path-keyed table. A key of the form "*.name"
// matches name under any parent.
type StaticDefinitions map[string]Definition

// Child implements Definitions.
func (d StaticDefinitions) Child(parentPath, name string) (Definition, bool) {
	path := parentPath + "." + name
	def, ok := d[path]
	if !ok {
		def, ok = d["*."+name]
	}
	if !ok {
		return Definition{}, false
	}
	if def.Path == "" {
		def.Path = path
	}
	return def, true
}

// DefaultDefinitions returns the definitions needed to parse any R4 resource
// without a loaded registry: the resource-typed slots and the common arrays
// of the Bundle and Parameters envelopes.
func DefaultDefinitions() StaticDefinitions {
	return StaticDefinitions{
		"*.contained":                   {Repeating: true, Resource: true},
		"*.coding":                      {Repeating: true},
		"Bundle.link":                   {Repeating: true},
		"Bundle.entry":                  {Repeating: true},
		"Bundle.entry.link":             {Repeating: true},
		"Bundle.entry.resource":         {Resource: true},
		"Bundle.entry.response.outcome": {Resource: true},
		"Parameters.parameter":          {Repeating: true},
		"Parameters.parameter.resource": {Resource: true},
		"Parameters.parameter.part":     {Path: "Parameters.parameter", Repeating: true},
	}
}

// chain consults each Definitions in order.
type chain []Definitions

// Chain returns Definitions that consults defs in order and returns the
// first match.
func Chain(defs ...Definitions) Definitions {
	return chain(defs)
}

func (c chain) Child(parentPath, name string) (Definition, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if def, ok := d.Child(parentPath, name); ok {
			return def, true
		}
	}
	return Definition{}, false
}
