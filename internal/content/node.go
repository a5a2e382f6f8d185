package content

import (
	"slices"
	"sort"
	"strings"
)

// Well-known property and type names.
const (
	PropPrimaryType         = "jcr:primaryType"
	PropMixinTypes          = "jcr:mixinTypes"
	PropUUID                = "jcr:uuid"
	PropFrozenPrimaryType   = "jcr:frozenPrimaryType"
	PropFrozenMixinTypes    = "jcr:frozenMixinTypes"
	PropFrozenUUID          = "jcr:frozenUuid"
	PropReplicatedVersion   = "cpl:replicatedVersion"
	PropChangeNumber        = "cpl:changeNumber"
	PropLastReplicationDate = "cpl:lastReplicationDate"

	// PseudoPath names the path column of a result row.
	PseudoPath = "jcr:path"

	// MixinVersionable marks nodes tracked independently for sync.
	MixinVersionable = "mix:versionable"

	// ContentNodeName is the conventional name of a versionable's content child.
	ContentNodeName = "jcr:content"

	// FrozenNodeName marks the start of a captured subtree inside the archive.
	FrozenNodeName = "jcr:frozenNode"

	// FrozenNodeType is the primary type of every captured node.
	FrozenNodeType = "nt:frozenNode"
)

// Property is a named, typed, scalar or multi-valued attribute.
type Property struct {
	Name     string
	Type     PropertyType
	Multiple bool
	Values   []Value
}

// Value returns the first value, or nil for an empty multi-value.
func (p Property) Value() Value {
	if len(p.Values) == 0 {
		return nil
	}
	return p.Values[0]
}

// Single builds a single-valued property.
func Single(name string, v Value) Property {
	return Property{Name: name, Type: v.Type(), Values: []Value{v}}
}

// Multi builds a multi-valued property of type t.
func Multi(name string, t PropertyType, vals ...Value) Property {
	return Property{Name: name, Type: t, Multiple: true, Values: vals}
}

// Node is one snapshot of a content node.
type Node struct {
	Path        string
	PrimaryType string
	Mixins      []string
	Properties  map[string]Property
	// ChildNames lists children in their stored order.
	ChildNames []string
}

// NewNode returns a node with an empty property map.
func NewNode(path, primaryType string, mixins ...string) *Node {
	return &Node{
		Path:        path,
		PrimaryType: primaryType,
		Mixins:      mixins,
		Properties:  make(map[string]Property),
	}
}

// Name returns the node's own name.
func (n *Node) Name() string {
	return Name(n.Path)
}

// Set stores p, replacing any property with the same name.
func (n *Node) Set(p Property) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]Property)
	}
	n.Properties[p.Name] = p
	return n
}

// Property returns the named property. The primary type and mixin list are
// synthesized from the node's type fields.
func (n *Node) Property(name string) (Property, bool) {
	switch name {
	case PropPrimaryType:
		return Single(PropPrimaryType, NewName(n.PrimaryType)), true
	case PropMixinTypes:
		if len(n.Mixins) == 0 {
			return Property{}, false
		}
		vals := make([]Value, len(n.Mixins))
		for i, m := range n.Mixins {
			vals[i] = NewName(m)
		}
		return Multi(PropMixinTypes, TypeName, vals...), true
	}
	p, ok := n.Properties[name]
	return p, ok
}

// String returns the first value of the named property as a string, or "".
func (n *Node) String(name string) string {
	p, ok := n.Property(name)
	if !ok || p.Value() == nil {
		return ""
	}
	return p.Value().String()
}

// PropertyNames lists every property name, including the synthesized type
// properties, sorted.
func (n *Node) PropertyNames() []string {
	names := make([]string, 0, len(n.Properties)+2)
	names = append(names, PropPrimaryType)
	if len(n.Mixins) > 0 {
		names = append(names, PropMixinTypes)
	}
	for name := range n.Properties {
		if name == PropPrimaryType || name == PropMixinTypes {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasMixin reports whether the node carries the mixin directly.
func (n *Node) HasMixin(name string) bool {
	return slices.Contains(n.Mixins, name)
}

// IsVersionable reports whether the node carries the versioning capability.
func (n *Node) IsVersionable() bool {
	return n.HasMixin(MixinVersionable)
}

// Clone returns a copy that shares values but not slices or maps.
func (n *Node) Clone() *Node {
	c := &Node{
		Path:        n.Path,
		PrimaryType: n.PrimaryType,
		Mixins:      slices.Clone(n.Mixins),
		ChildNames:  slices.Clone(n.ChildNames),
		Properties:  make(map[string]Property, len(n.Properties)),
	}
	for k, p := range n.Properties {
		p.Values = slices.Clone(p.Values)
		c.Properties[k] = p
	}
	return c
}

// IsNamespaced reports whether the name carries a prefix.
func IsNamespaced(name string) bool {
	return strings.Contains(name, ":")
}
