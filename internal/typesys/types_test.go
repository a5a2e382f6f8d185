package typesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	ok, err := r.IsA("sling:OrderedFolder", "nt:hierarchyNode")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsA("nt:unstructured", "nt:hierarchyNode")
	require.NoError(t, err)
	assert.False(t, ok)

	sup, err := r.Supertypes("mix:versionable")
	require.NoError(t, err)
	assert.Equal(t, []string{"mix:referenceable", "mix:simpleVersionable"}, sup)
}

func TestIsNodeTypeUsesMixins(t *testing.T) {
	r := Default()

	ok, err := r.IsNodeType("nt:unstructured", []string{"mix:versionable"}, "mix:referenceable")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsNodeType("nt:unstructured", nil, "mix:referenceable")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProtectedPropertiesWalkSupertypes(t *testing.T) {
	r := Default()

	props, err := r.ProtectedProperties("mix:versionable")
	require.NoError(t, err)
	assert.Contains(t, props, "jcr:uuid")
	assert.Contains(t, props, "jcr:isCheckedOut")
	assert.Contains(t, props, "jcr:baseVersion")
	assert.NotContains(t, props, "jcr:title")
}

func TestHasOrderableChildrenInherited(t *testing.T) {
	r := Default()

	tests := []struct {
		name string
		want bool
	}{
		{"sling:OrderedFolder", true},
		{"cpp:Site", true},
		{"sling:Folder", false},
		{"cpp:PageContent", true},
		{"nt:file", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.HasOrderableChildren(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownType(t *testing.T) {
	r := Default()

	_, err := r.Lookup("nt:nope")
	var ute *UnknownTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "nt:nope", ute.Name)

	_, err = r.IsA("nt:nope", "nt:base")
	require.ErrorAs(t, err, &ute)
}

func TestNewRegistryRejectsCycle(t *testing.T) {
	_, err := NewRegistry(
		NodeType{Name: "a", Supertypes: []string{"b"}},
		NodeType{Name: "b", Supertypes: []string{"c"}},
		NodeType{Name: "c", Supertypes: []string{"a"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inheritance cycle")
}

func TestNewRegistryRejectsUnknownSupertype(t *testing.T) {
	_, err := NewRegistry(NodeType{Name: "a", Supertypes: []string{"missing"}})
	var ute *UnknownTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "missing", ute.Name)
}

func TestLoadCUE(t *testing.T) {
	r, err := LoadCUE("test.cue", `
		types: {
			"x:base": properties: "x:id": protected: true
			"x:doc": {
				supertypes: ["x:base"]
				orderable: true
				properties: "x:title": {}
			}
		}
	`)
	require.NoError(t, err)

	doc, err := r.Lookup("x:doc")
	require.NoError(t, err)
	assert.True(t, doc.OrderableChildren)
	assert.Equal(t, []string{"x:base"}, doc.Supertypes)

	props, err := r.ProtectedProperties("x:doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"x:id"}, props)
}

func TestLoadCUEErrors(t *testing.T) {
	t.Run("missing types", func(t *testing.T) {
		_, err := LoadCUE("test.cue", `other: 1`)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "types", ce.Field)
	})

	t.Run("bad orderable", func(t *testing.T) {
		_, err := LoadCUE("test.cue", `types: "a": orderable: "yes"`)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "orderable", ce.Field)
	})

	t.Run("syntax", func(t *testing.T) {
		_, err := LoadCUE("test.cue", `types: {`)
		require.Error(t, err)
	})
}

func TestSubtypes(t *testing.T) {
	r := Default()

	subs, err := r.Subtypes("sling:Folder")
	require.NoError(t, err)
	assert.Equal(t, []string{"cpp:Site", "sling:Folder", "sling:OrderedFolder"}, subs)

	subs, err = r.Subtypes("mix:referenceable")
	require.NoError(t, err)
	assert.Equal(t, []string{"mix:referenceable", "mix:versionable", "nt:frozenNode"}, subs)

	_, err = r.Subtypes("nt:nope")
	var ute *UnknownTypeError
	assert.ErrorAs(t, err, &ute)
}
