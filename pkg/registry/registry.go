// Package registry provides a registry for FHIR StructureDefinitions.
//
// The parser only needs shape information from the definitions: which
// elements repeat, which hold an embedded resource, and what type a child
// resolves to. Registry answers those questions through Child, which makes a
// *Registry usable as element.Definitions.
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/parser/pkg/element"
	"github.com/gofhir/parser/pkg/loader"
)

// StructureDefinition.Kind constants.
const (
	KindResource      = "resource"
	KindComplexType   = "complex-type"
	KindPrimitiveType = "primitive-type"
)

// typeResource is the type code of resource-typed slots such as
// DomainResource.contained and Bundle.entry.resource.
const typeResource = "Resource"

// StructureDefinition represents a minimal view of a FHIR StructureDefinition.
type StructureDefinition struct {
	ResourceType   string    `json:"resourceType"`
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"` // resource, complex-type, primitive-type, logical
	Abstract       bool      `json:"abstract"`
	Type           string    `json:"type"`           // The type this SD defines
	BaseDefinition string    `json:"baseDefinition"` // URL of the base SD
	Derivation     string    `json:"derivation"`     // specialization | constraint
	Snapshot       *Snapshot `json:"snapshot,omitempty"`
}

// Snapshot contains the complete set of ElementDefinitions.
type Snapshot struct {
	Element []ElementDefinition `json:"element"`
}

// ElementDefinition represents the parts of a FHIR ElementDefinition that
// describe shape.
type ElementDefinition struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Min  uint32 `json:"min"`
	Max  string `json:"max"`
	Type []Type `json:"type,omitempty"`

	// ContentReference references another element's definition for recursive
	// structures, e.g. "#Questionnaire.item" for Questionnaire.item.item.
	ContentReference string `json:"contentReference,omitempty"`
}

// IsRepeating reports whether the element may occur more than once.
func (ed *ElementDefinition) IsRepeating() bool {
	if ed.Max == "*" {
		return true
	}
	n, err := strconv.Atoi(ed.Max)
	return err == nil && n > 1
}

// IsChoice reports whether the element is a choice element (value[x]).
func (ed *ElementDefinition) IsChoice() bool {
	return strings.HasSuffix(ed.Path, "[x]")
}

// Type represents an allowed type for an element.
type Type struct {
	Code string `json:"code"`
}

// Registry holds loaded StructureDefinitions indexed by URL.
type Registry struct {
	mu              sync.RWMutex
	byURL           map[string]*StructureDefinition
	byType          map[string]*StructureDefinition // For base types like "Patient", "HumanName"
	elementDefCache map[string]*ElementDefinition   // path -> ElementDefinition cache
	parents         map[string]bool                 // paths that have child elements
}

// New creates a new empty Registry.
func New() *Registry {
	return &Registry{
		byURL:           make(map[string]*StructureDefinition),
		byType:          make(map[string]*StructureDefinition),
		elementDefCache: make(map[string]*ElementDefinition),
		parents:         make(map[string]bool),
	}
}

// LoadFromPackages loads the StructureDefinitions of every package. Other
// resources and definitions that fail to decode are skipped.
func (r *Registry) LoadFromPackages(packages []*loader.Package) error {
	for _, pkg := range packages {
		for _, data := range pkg.Resources {
			rt, err := jsonparser.GetString(data, "resourceType")
			if err != nil || rt != "StructureDefinition" {
				continue
			}
			if err := r.LoadStructureDefinition(data); err != nil {
				continue
			}
		}
	}
	return nil
}

// LoadStructureDefinition decodes and registers a StructureDefinition.
func (r *Registry) LoadStructureDefinition(data []byte) error {
	var sd StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return fmt.Errorf("failed to decode StructureDefinition: %w", err)
	}
	if sd.ResourceType != "" && sd.ResourceType != "StructureDefinition" {
		return fmt.Errorf("expected StructureDefinition, got %s", sd.ResourceType)
	}
	r.add(&sd)
	return nil
}

// LoadR4StructureDefinition registers a typed R4 StructureDefinition.
func (r *Registry) LoadR4StructureDefinition(sd *r4.StructureDefinition) error {
	if sd == nil {
		return fmt.Errorf("nil StructureDefinition")
	}
	r.add(convertR4(sd))
	return nil
}

func (r *Registry) add(sd *StructureDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sd.URL != "" {
		if _, exists := r.byURL[sd.URL]; !exists {
			r.byURL[sd.URL] = sd
		}
	}

	// Index by type for base definitions - first definition wins
	if sd.Type != "" && sd.Derivation != "constraint" {
		if _, exists := r.byType[sd.Type]; !exists {
			r.byType[sd.Type] = sd
			if sd.Snapshot != nil {
				for _, elem := range sd.Snapshot.Element {
					if i := strings.LastIndexByte(elem.Path, '.'); i > 0 {
						r.parents[elem.Path[:i]] = true
					}
				}
			}
		}
	}
}

// GetByURL returns a StructureDefinition by its canonical URL.
func (r *Registry) GetByURL(url string) *StructureDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byURL[url]
}

// GetByType returns a StructureDefinition for a type name (e.g., "Patient", "HumanName").
func (r *Registry) GetByType(typeName string) *StructureDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[typeName]
}

// GetElementDefinition returns the ElementDefinition for a given path.
// The path should be in the format "ResourceType.element.subelement".
func (r *Registry) GetElementDefinition(path string) *ElementDefinition {
	r.mu.RLock()
	cached, ok := r.elementDefCache[path]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	sd := r.GetByType(extractRootType(path))
	if sd == nil || sd.Snapshot == nil {
		return nil
	}

	for i := range sd.Snapshot.Element {
		elem := &sd.Snapshot.Element[i]
		if elem.Path == path {
			r.mu.Lock()
			r.elementDefCache[path] = elem
			r.mu.Unlock()
			return elem
		}
	}

	return nil
}

// Child implements element.Definitions. It resolves name under parentPath,
// following choice elements (valueQuantity -> value[x]), and returns the path
// the child's own children resolve against: the element's path for backbone
// elements, the referenced path for contentReference, and the type name for
// elements of a complex datatype.
func (r *Registry) Child(parentPath, name string) (element.Definition, bool) {
	ed, typeCode := r.resolveChild(parentPath, name)
	if ed == nil {
		return element.Definition{}, false
	}

	def := element.Definition{
		Path:      parentPath + "." + name,
		Repeating: ed.IsRepeating(),
	}

	switch {
	case ed.ContentReference != "":
		def.Path = strings.TrimPrefix(ed.ContentReference, "#")
	case typeCode == typeResource:
		def.Resource = true
	case r.hasChildren(ed.Path):
		def.Path = ed.Path
	case typeCode != "":
		def.Path = typeCode
	}
	return def, true
}

// resolveChild finds the definition of name under parentPath and the single
// type it takes there.
func (r *Registry) resolveChild(parentPath, name string) (*ElementDefinition, string) {
	if ed := r.GetElementDefinition(parentPath + "." + name); ed != nil {
		if len(ed.Type) == 1 {
			return ed, ed.Type[0].Code
		}
		return ed, ""
	}

	// Choice element: valueQuantity is value[x] restricted to Quantity.
	for i := len(name) - 1; i > 0; i-- {
		if name[i] < 'A' || name[i] > 'Z' {
			continue
		}
		ed := r.GetElementDefinition(parentPath + "." + name[:i] + "[x]")
		if ed == nil {
			continue
		}
		suffix := name[i:]
		for _, t := range ed.Type {
			if strings.EqualFold(t.Code, suffix) {
				return ed, t.Code
			}
		}
	}
	return nil, ""
}

func (r *Registry) hasChildren(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parents[path]
}

// Count returns the number of loaded StructureDefinitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURL)
}

// TypeCount returns the number of indexed types.
func (r *Registry) TypeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// AllTypes returns all registered type names.
func (r *Registry) AllTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	return types
}

// IsResourceType checks if the given type name is a FHIR resource type.
func (r *Registry) IsResourceType(typeName string) bool {
	sd := r.GetByType(typeName)
	return sd != nil && sd.Kind == KindResource
}

// IsPrimitiveType checks if the given type name is a FHIR primitive type.
func (r *Registry) IsPrimitiveType(typeName string) bool {
	sd := r.GetByType(typeName)
	return sd != nil && sd.Kind == KindPrimitiveType
}

// IsDataType checks if the given type name is a FHIR complex data type.
func (r *Registry) IsDataType(typeName string) bool {
	sd := r.GetByType(typeName)
	return sd != nil && sd.Kind == KindComplexType
}

// extractRootType extracts the root type from a path like "Patient.name" -> "Patient".
func extractRootType(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// GetSDForResource returns the StructureDefinition URL for a resource type.
func GetSDForResource(resourceType string) string {
	return fmt.Sprintf("http://hl7.org/fhir/StructureDefinition/%s", resourceType)
}

var _ element.Definitions = (*Registry)(nil)
