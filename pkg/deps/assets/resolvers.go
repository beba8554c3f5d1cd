package assets

import (
	"strconv"
	"strings"

	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/source"
)

// Resolver and dependency type ids.
const (
	FileMembership  = "file-membership"
	ObjectReference = "object-reference"
	DerivedFrom     = "derived-from"
)

// ObjectSuffix marks containers that hold objects.
const ObjectSuffix = ".asset.toml"

// Emit receives one discovered edge originating at from.
type Emit func(from graph.Key, d graph.Dependency)

// ContentResolver discovers edges inside one opened container.
type ContentResolver interface {
	deps.Resolver

	// Handles reports whether the resolver has anything to find in a container.
	Handles(containerID string) bool

	// Discover emits every edge found in c.
	Discover(c *source.Content, emit Emit) error
}

// RefKey converts a reference string into a node key. References containing
// "#" name objects; a leading "#" names an object in the same container.
func RefKey(containerID, ref string) graph.Key {
	if strings.HasPrefix(ref, graph.ObjectSeparator) {
		return graph.K(graph.TypeObject, containerID+ref)
	}
	if strings.Contains(ref, graph.ObjectSeparator) {
		return graph.K(graph.TypeObject, ref)
	}
	return graph.K(graph.TypeFile, ref)
}

// ObjectKey returns the node key of a local object.
func ObjectKey(containerID, local string) graph.Key {
	return graph.K(graph.TypeObject, graph.ObjectID(containerID, local))
}

// objectPath is the hierarchy trail down to an object plus its component.
func objectPath(c *source.Content, o source.Object) []graph.PathSegment {
	var path []graph.PathSegment
	for _, a := range c.Ancestors(o.LocalID) {
		path = append(path, graph.PathSegment{Name: a, Kind: graph.SegmentHierarchy})
	}
	path = append(path, graph.PathSegment{Name: o.LocalID, Kind: graph.SegmentHierarchy})
	if o.Type != "" {
		path = append(path, graph.PathSegment{Name: o.Type, Kind: graph.SegmentComponent})
	}
	return path
}

func elementPath(base []graph.PathSegment, property string, i int) []graph.PathSegment {
	path := make([]graph.PathSegment, len(base), len(base)+2)
	copy(path, base)
	return append(path,
		graph.PathSegment{Name: property, Kind: graph.SegmentProperty},
		graph.PathSegment{Name: strconv.Itoa(i), Kind: graph.SegmentArrayElement},
	)
}

type objectResolver struct{}

func (objectResolver) Handles(containerID string) bool {
	return strings.HasSuffix(containerID, ObjectSuffix)
}

// =============================================================================
// file-membership
// =============================================================================

type fileMembership struct{ objectResolver }

// NewFileMembershipResolver links each object to its container.
func NewFileMembershipResolver() deps.Resolver { return fileMembership{} }

func (fileMembership) ID() string { return FileMembership }

func (fileMembership) DependencyTypes() []graph.DependencyType {
	return []graph.DependencyType{{ID: FileMembership, Color: "#607d8b", IsHard: true}}
}

func (fileMembership) Discover(c *source.Content, emit Emit) error {
	file := graph.K(graph.TypeFile, c.ID)
	for _, o := range c.Objects {
		emit(ObjectKey(c.ID, o.LocalID), graph.Dependency{
			Target: file,
			TypeID: FileMembership,
			Path:   objectPath(c, o),
		})
	}
	return nil
}

// =============================================================================
// object-reference
// =============================================================================

type objectReference struct{ objectResolver }

// NewObjectReferenceResolver follows every entry of an object's refs.
func NewObjectReferenceResolver() deps.Resolver { return objectReference{} }

func (objectReference) ID() string { return ObjectReference }

func (objectReference) DependencyTypes() []graph.DependencyType {
	return []graph.DependencyType{{ID: ObjectReference, Color: "#1e88e5", IsHard: true}}
}

func (objectReference) Discover(c *source.Content, emit Emit) error {
	for _, o := range c.Objects {
		base := objectPath(c, o)
		from := ObjectKey(c.ID, o.LocalID)
		for i, ref := range o.Refs {
			if ref == "" {
				continue
			}
			emit(from, graph.Dependency{
				Target: RefKey(c.ID, ref),
				TypeID: ObjectReference,
				Path:   elementPath(base, "refs", i),
			})
		}
	}
	return nil
}

// =============================================================================
// derived-from
// =============================================================================

type derivedFrom struct{ objectResolver }

// NewDerivedFromResolver records build-time sources. Its edges never make a
// source count as shipped.
func NewDerivedFromResolver() deps.Resolver { return derivedFrom{} }

func (derivedFrom) ID() string { return DerivedFrom }

func (derivedFrom) DependencyTypes() []graph.DependencyType {
	return []graph.DependencyType{{ID: DerivedFrom, Color: "#8e24aa", IsIndirect: true}}
}

func (derivedFrom) Discover(c *source.Content, emit Emit) error {
	for _, o := range c.Objects {
		base := objectPath(c, o)
		from := ObjectKey(c.ID, o.LocalID)
		for i, src := range o.DerivedFrom {
			if src == "" {
				continue
			}
			emit(from, graph.Dependency{
				Target: RefKey(c.ID, src),
				TypeID: DerivedFrom,
				Path:   elementPath(base, "derived_from", i),
			})
		}
	}
	return nil
}

// Register adds the assets cache and its resolvers to reg.
func Register(reg *deps.Registry) error {
	if err := reg.RegisterCache(ID, New); err != nil {
		return err
	}
	resolvers := []struct {
		id  string
		new deps.ResolverFactory
	}{
		{FileMembership, NewFileMembershipResolver},
		{ObjectReference, NewObjectReferenceResolver},
		{DerivedFrom, NewDerivedFromResolver},
	}
	for _, r := range resolvers {
		if err := reg.RegisterResolver(ID, r.id, r.new); err != nil {
			return err
		}
	}
	return nil
}
