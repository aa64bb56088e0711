package registry

import "github.com/gofhir/fhir/r4"

// convertR4 converts an r4.StructureDefinition to the registry's view.
func convertR4(sd *r4.StructureDefinition) *StructureDefinition {
	result := &StructureDefinition{
		ResourceType:   "StructureDefinition",
		ID:             derefString(sd.Id),
		URL:            derefString(sd.Url),
		Name:           derefString(sd.Name),
		Type:           derefString(sd.Type),
		Abstract:       derefBool(sd.Abstract),
		BaseDefinition: derefString(sd.BaseDefinition),
	}
	if sd.Kind != nil {
		result.Kind = string(*sd.Kind)
	}

	if sd.Snapshot != nil {
		result.Snapshot = &Snapshot{Element: convertElements(sd.Snapshot.Element)}
	}
	return result
}

func convertElements(elements []r4.ElementDefinition) []ElementDefinition {
	if len(elements) == 0 {
		return nil
	}

	result := make([]ElementDefinition, 0, len(elements))
	for i := range elements {
		ed := &elements[i]
		conv := ElementDefinition{
			ID:               derefString(ed.Id),
			Path:             derefString(ed.Path),
			Max:              derefString(ed.Max),
			ContentReference: derefString(ed.ContentReference),
		}
		if ed.Min != nil {
			conv.Min = *ed.Min
		}
		for j := range ed.Type {
			conv.Type = append(conv.Type, Type{Code: derefString(ed.Type[j].Code)})
		}
		result = append(result, conv)
	}
	return result
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
