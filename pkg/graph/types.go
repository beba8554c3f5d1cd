package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// =============================================================================
// Path Segments
// =============================================================================

// SegmentKind tags one step of a [PathSegment] trail.
// It is persisted as a 16-bit value, so new kinds must be appended.
type SegmentKind int16

const (
	// SegmentHierarchy is a step through a structural parent.
	SegmentHierarchy SegmentKind = iota
	// SegmentComponent is the sub-resource that owns the reference.
	SegmentComponent
	// SegmentProperty is the property holding the reference.
	SegmentProperty
	// SegmentArrayElement is an index into a list-valued property.
	SegmentArrayElement
)

// String returns a short name for the kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentHierarchy:
		return "hierarchy"
	case SegmentComponent:
		return "component"
	case SegmentProperty:
		return "property"
	case SegmentArrayElement:
		return "element"
	default:
		return fmt.Sprintf("kind(%d)", int16(k))
	}
}

// PathSegment is one step describing how an edge was discovered.
// Paths are diagnostic only and never affect graph semantics.
type PathSegment struct {
	Name string
	Kind SegmentKind
}

// FormatPath renders a path as "a/b.refs[0]"-style text for display.
func FormatPath(path []PathSegment) string {
	var b strings.Builder
	for i, s := range path {
		switch s.Kind {
		case SegmentArrayElement:
			b.WriteString("[" + s.Name + "]")
		case SegmentProperty:
			b.WriteString("." + s.Name)
		default:
			if i > 0 {
				b.WriteString("/")
			}
			b.WriteString(s.Name)
		}
	}
	return b.String()
}

// =============================================================================
// Dependency - pre-graph edge record
// =============================================================================

// Dependency is the resolver-facing edge record. It names its target by key
// because target nodes do not exist yet when resolvers run.
type Dependency struct {
	Target Key
	TypeID string
	Path   []PathSegment
}

// =============================================================================
// Dependency Types
// =============================================================================

// DependencyType is static metadata for one edge category.
type DependencyType struct {
	ID    string
	Color string // hex color used by visualizations

	// IsHard marks edges whose targets must be loaded with the source.
	// Only hard edges count toward tree size.
	IsHard bool

	// IsIndirect marks edges that must not propagate packed status,
	// such as build-time derivation.
	IsIndirect bool
}

// UnknownTypeID is the id reported for edges whose type has no registered metadata.
const UnknownTypeID = "unknown"

// NeutralType returns the fallback metadata used when an edge names a type
// nobody registered: neither hard nor indirect.
func NeutralType(id string) DependencyType {
	if id == "" {
		id = UnknownTypeID
	}
	return DependencyType{ID: id, Color: "#9e9e9e"}
}

// TypeSet is a registry of dependency type metadata keyed by id.
// The zero value is not usable; use [NewTypeSet].
type TypeSet struct {
	types map[string]DependencyType
}

// NewTypeSet creates a set holding the given types.
// Later duplicates overwrite earlier ones.
func NewTypeSet(types ...DependencyType) *TypeSet {
	s := &TypeSet{types: make(map[string]DependencyType, len(types))}
	for _, t := range types {
		s.types[t.ID] = t
	}
	return s
}

// Add registers t. Registering the same id twice with different metadata is
// an error because two resolvers would disagree on edge semantics.
func (s *TypeSet) Add(t DependencyType) error {
	if t.ID == "" {
		return fmt.Errorf("dependency type id must not be empty")
	}
	if prev, ok := s.types[t.ID]; ok && prev != t {
		return fmt.Errorf("dependency type %q registered twice with different metadata", t.ID)
	}
	s.types[t.ID] = t
	return nil
}

// Lookup returns the metadata for id.
func (s *TypeSet) Lookup(id string) (DependencyType, bool) {
	t, ok := s.types[id]
	return t, ok
}

// Resolve returns the metadata for id, or [NeutralType] when unregistered.
func (s *TypeSet) Resolve(id string) DependencyType {
	if t, ok := s.types[id]; ok {
		return t
	}
	return NeutralType(id)
}

// IDs returns the registered ids in sorted order.
func (s *TypeSet) IDs() []string {
	return slices.Sorted(maps.Keys(s.types))
}

// Len returns the number of registered types.
func (s *TypeSet) Len() int { return len(s.types) }
