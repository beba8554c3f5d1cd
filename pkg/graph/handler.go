package graph

import (
	"maps"
	"path"
	"slices"

	"github.com/matzehuels/refgraph/pkg/errors"
)

// PackClass is a node type handler's verdict on whether a resource ships.
type PackClass int

const (
	// PackDerived means packed status follows from referencers.
	PackDerived PackClass = iota
	// PackAlways marks roots that are always included.
	PackAlways
	// PackNever marks resources that are excluded unless whitelisted.
	PackNever
)

// String returns the class name.
func (c PackClass) String() string {
	switch c {
	case PackAlways:
		return "always"
	case PackNever:
		return "never"
	default:
		return "derived"
	}
}

// NodeHandler supplies per-node-type policy: display names, own sizes and
// packing classification. Every node type that appears in a graph must have a
// handler; a missing one is a wiring defect.
type NodeHandler interface {
	NodeType() string
	Name(id string) string
	OwnSize(id string) (size int64, contributes bool)
	Packing(id string) PackClass
}

// BasicHandler is a function-backed [NodeHandler]. Nil funcs fall back to the
// id as name, zero non-contributing size and derived packing.
type BasicHandler struct {
	Type     string
	NameFunc func(id string) string
	SizeFunc func(id string) (int64, bool)
	PackFunc func(id string) PackClass
}

func (h *BasicHandler) NodeType() string { return h.Type }

func (h *BasicHandler) Name(id string) string {
	if h.NameFunc != nil {
		return h.NameFunc(id)
	}
	return id
}

func (h *BasicHandler) OwnSize(id string) (int64, bool) {
	if h.SizeFunc != nil {
		return h.SizeFunc(id)
	}
	return 0, false
}

func (h *BasicHandler) Packing(id string) PackClass {
	if h.PackFunc != nil {
		return h.PackFunc(id)
	}
	return PackDerived
}

// HandlerSet maps node types to handlers.
type HandlerSet struct {
	handlers map[string]NodeHandler
}

// NewHandlerSet creates a set from the given handlers.
func NewHandlerSet(hs ...NodeHandler) *HandlerSet {
	s := &HandlerSet{handlers: make(map[string]NodeHandler, len(hs))}
	for _, h := range hs {
		s.Register(h)
	}
	return s
}

// Register adds or replaces the handler for h.NodeType().
func (s *HandlerSet) Register(h NodeHandler) {
	s.handlers[h.NodeType()] = h
}

// Get returns the handler for typ, or a CONFIGURATION error.
func (s *HandlerSet) Get(typ string) (NodeHandler, error) {
	if h, ok := s.handlers[typ]; ok {
		return h, nil
	}
	return nil, errors.New(errors.ErrCodeConfiguration, "no handler registered for node type %q", typ)
}

// Types returns the registered node types in sorted order.
func (s *HandlerSet) Types() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

// Sizer adapts the set into a [SizeFunc] for [NewNode]. Nodes of unregistered
// types get size 0.
func (s *HandlerSet) Sizer() SizeFunc {
	return func(k Key) (int64, bool) {
		h, err := s.Get(k.Type)
		if err != nil {
			return 0, false
		}
		return h.OwnSize(k.ID)
	}
}

// BaseName is a NameFunc that returns the last slash-separated element,
// keeping the local part of sub-resource ids.
func BaseName(id string) string {
	if container, local, ok := SplitObjectID(id); ok {
		return path.Base(container) + ObjectSeparator + local
	}
	return path.Base(id)
}
