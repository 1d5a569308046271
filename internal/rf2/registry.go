package rf2

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ComponentType names a kind of release record.
type ComponentType string

const (
	ComponentConcept            ComponentType = "concept"
	ComponentDescription        ComponentType = "description"
	ComponentTextDefinition     ComponentType = "text_definition"
	ComponentRelationship       ComponentType = "relationship"
	ComponentStatedRelationship ComponentType = "stated_relationship"
	ComponentConcreteValue      ComponentType = "concrete_value"
	ComponentLanguageMember     ComponentType = "language_member"
	ComponentRefsetMember       ComponentType = "refset_member"
	ComponentUnknown            ComponentType = "unknown"
)

// ComponentDefinition describes the row layout of one component type.
type ComponentDefinition struct {
	Type  ComponentType
	Label string // Display name: "Descriptions"
	// Markers are substrings of a file-name prefix that identify the type.
	// The first registered definition with a matching marker wins.
	Markers []string
	// Fields names the columns in header order. Reference-set members may
	// carry additional columns beyond the listed ones.
	Fields []string
}

// FieldName returns the column name at index i, falling back to a positional
// name for refset-specific extension columns.
func (d ComponentDefinition) FieldName(i int) string {
	if i >= 0 && i < len(d.Fields) {
		return d.Fields[i]
	}
	return "field" + strconv.Itoa(i)
}

// MatchesHeader reports whether header starts with the registered columns,
// compared case-insensitively. Extension columns after them are allowed.
func (d ComponentDefinition) MatchesHeader(header string) bool {
	if len(d.Fields) == 0 {
		return true
	}
	cols := strings.Split(header, Separator)
	if len(cols) < len(d.Fields) {
		return false
	}
	for i, name := range d.Fields {
		if !strings.EqualFold(strings.TrimSpace(cols[i]), name) {
			return false
		}
	}
	return true
}

var (
	registry      = make(map[ComponentType]ComponentDefinition)
	registryOrder []ComponentType
	registryMu    sync.RWMutex
)

// Register adds a component definition to the registry.
// Panics if a definition with the same type is already registered.
func Register(def ComponentDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Type]; exists {
		panic(fmt.Sprintf("component type already registered: %s", def.Type))
	}
	registry[def.Type] = def
	registryOrder = append(registryOrder, def.Type)
}

// Lookup returns the definition of a component type.
func Lookup(t ComponentType) (ComponentDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[t]
	return def, ok
}

// ClassifyPrefix maps a file-name prefix (or short key) to its component
// definition. Unrecognised prefixes yield ComponentUnknown.
func ClassifyPrefix(prefix string) ComponentDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, t := range registryOrder {
		def := registry[t]
		for _, m := range def.Markers {
			if strings.Contains(prefix, m) {
				return def
			}
		}
	}
	return ComponentDefinition{Type: ComponentUnknown, Label: "Unknown"}
}

// commonFields are the leading columns of every component type.
var commonFields = []string{"id", "effectiveTime", "active", "moduleId"}

func withCommon(extra ...string) []string {
	return append(append([]string(nil), commonFields...), extra...)
}

func init() {
	Register(ComponentDefinition{
		Type:    ComponentConcept,
		Label:   "Concepts",
		Markers: []string{"_Concept_"},
		Fields:  withCommon("definitionStatusId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentDescription,
		Label:   "Descriptions",
		Markers: []string{"_Description_"},
		Fields:  withCommon("conceptId", "languageCode", "typeId", "term", "caseSignificanceId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentTextDefinition,
		Label:   "Text definitions",
		Markers: []string{"_TextDefinition_"},
		Fields:  withCommon("conceptId", "languageCode", "typeId", "term", "caseSignificanceId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentStatedRelationship,
		Label:   "Stated relationships",
		Markers: []string{"_StatedRelationship_"},
		Fields:  withCommon("sourceId", "destinationId", "relationshipGroup", "typeId", "characteristicTypeId", "modifierId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentConcreteValue,
		Label:   "Concrete values",
		Markers: []string{"_RelationshipConcreteValues_"},
		Fields:  withCommon("sourceId", "value", "relationshipGroup", "typeId", "characteristicTypeId", "modifierId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentRelationship,
		Label:   "Relationships",
		Markers: []string{"_Relationship_"},
		Fields:  withCommon("sourceId", "destinationId", "relationshipGroup", "typeId", "characteristicTypeId", "modifierId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentLanguageMember,
		Label:   "Language reference set members",
		Markers: []string{"Refset_Language"},
		Fields:  withCommon("refsetId", "referencedComponentId", "acceptabilityId"),
	})
	Register(ComponentDefinition{
		Type:    ComponentRefsetMember,
		Label:   "Reference set members",
		Markers: []string{"Refset_", "der2_"},
		Fields:  withCommon("refsetId", "referencedComponentId"),
	})
}
