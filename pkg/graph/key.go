package graph

import "strings"

// Well-known node types produced by the bundled caches.
const (
	TypeFile   = "file"
	TypeObject = "object"
	TypeBundle = "bundle"
)

// ObjectSeparator joins a container id and a local id into a sub-resource id.
const ObjectSeparator = "#"

// Key identifies a resource. Ids are only unique per node type, so the pair is
// the identity used by caches and graphs.
type Key struct {
	ID   string
	Type string
}

// K is shorthand for constructing a Key.
func K(typ, id string) Key { return Key{ID: id, Type: typ} }

// String renders the key as "type:id".
func (k Key) String() string { return k.Type + ":" + k.ID }

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool { return k.ID == "" && k.Type == "" }

// Compare orders keys by type, then id.
func (k Key) Compare(o Key) int {
	if c := strings.Compare(k.Type, o.Type); c != 0 {
		return c
	}
	return strings.Compare(k.ID, o.ID)
}

// ParseKey parses the "type:id" form produced by [Key.String].
// The id may itself contain colons.
func ParseKey(s string) (Key, bool) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return Key{}, false
	}
	return Key{ID: id, Type: typ}, true
}

// ObjectID builds a sub-resource id from its container id and local id.
func ObjectID(container, local string) string {
	return container + ObjectSeparator + local
}

// SplitObjectID splits a sub-resource id into container and local id.
// ok is false when id has no local part.
func SplitObjectID(id string) (container, local string, ok bool) {
	i := strings.LastIndex(id, ObjectSeparator)
	if i < 0 {
		return id, "", false
	}
	return id[:i], id[i+1:], true
}
