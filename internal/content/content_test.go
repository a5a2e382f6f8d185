package content

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/", false},
		{"/content/site", false},
		{"", true},
		{"content", true},
		{"/content/", true},
		{"/content//site", true},
		{"/content/../etc", true},
		{"/content/./site", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	assert.True(t, IsSameOrDescendant("/a", "/a"))
	assert.True(t, IsSameOrDescendant("/a", "/a/b"))
	assert.False(t, IsSameOrDescendant("/a", "/ab"))
	assert.True(t, IsSameOrDescendant("/", "/ab"))
	assert.False(t, IsDescendant("/a", "/a"))

	assert.Equal(t, "/a", Parent("/a/b"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "", Parent("/"))
	assert.Equal(t, "b", Name("/a/b"))
	assert.Equal(t, "content", LocalName("jcr:content"))
	assert.Equal(t, "/a/b/c", Join("/a", "b/", "/c"))
	assert.Equal(t, "/x", Join("/", "x"))
	assert.Equal(t, "/a/b", CleanPath("//a///b/"))

	rel, err := RelativePath("/a", "/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "b/c", rel)
	_, err = RelativePath("/a", "/b")
	assert.Error(t, err)
}

func TestNativeRoundTrip(t *testing.T) {
	date := NewDate(time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC))
	dec, err := NewDecimal("12.5")
	require.NoError(t, err)

	tests := []Value{
		NewString("hello"),
		NewPath("/a/b"),
		LongValue(42),
		DoubleValue(1.5),
		dec,
		date,
		BooleanValue(true),
	}
	for _, v := range tests {
		t.Run(v.Type().String(), func(t *testing.T) {
			back, err := FromNative(v.Type(), Native(v))
			require.NoError(t, err)
			assert.Equal(t, v.Type(), back.Type())
			assert.Equal(t, v.String(), back.String())
		})
	}
	assert.Equal(t, "2024-03-01T12:30:00.123Z", date.String())
}

func TestParsePropertyType(t *testing.T) {
	pt, err := ParsePropertyType("WeakReference")
	require.NoError(t, err)
	assert.Equal(t, TypeWeakReference, pt)
	assert.True(t, pt.IsStringLike())

	_, err = ParsePropertyType("Float")
	assert.Error(t, err)
}

func TestNodeSynthesizesTypeProperties(t *testing.T) {
	n := NewNode("/a", "nt:unstructured", "mix:versionable")
	n.Set(Single("title", NewString("A")))

	p, ok := n.Property(PropPrimaryType)
	require.True(t, ok)
	assert.Equal(t, "nt:unstructured", p.Value().String())

	p, ok = n.Property(PropMixinTypes)
	require.True(t, ok)
	assert.True(t, p.Multiple)
	assert.Equal(t, []string{PropMixinTypes, PropPrimaryType, "title"}, n.PropertyNames())
	assert.True(t, n.IsVersionable())
}

func TestMemTree(t *testing.T) {
	ctx := context.Background()
	tree := NewMemTree(typesys.Default())
	tree.MustPut(
		NewNode("/site/b", "nt:unstructured"),
		NewNode("/site/a", "nt:unstructured"),
		NewNode("/site/a/x", "nt:unstructured"),
	)

	site, err := tree.GetNode(ctx, "/site")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, site.ChildNames)

	require.NoError(t, tree.Reorder("/site", "a", "b"))
	kids, err := tree.ListChildren(ctx, "/site")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "/site/a", kids[0].Path)

	assert.Error(t, tree.Reorder("/site", "a"))

	tree.Delete("/site/a")
	_, err = tree.GetNode(ctx, "/site/a/x")
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := Lookup(ctx, tree, "/site/a")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestNewBytesReopens(t *testing.T) {
	v := NewBytes("k", []byte("data")).(BinaryValue)
	for i := 0; i < 2; i++ {
		r, err := v.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, "data", string(b))
	}
}

func TestReconstructOriginalPath(t *testing.T) {
	tests := []struct {
		anchor, archive, want string
		wantErr               bool
	}{
		{"/content/site/doc", "/archive/v1/jcr:frozenNode", "/content/site/doc", false},
		{"/content/site/doc", "/archive/v1/jcr:frozenNode/jcr:content/par", "/content/site/doc/jcr:content/par", false},
		{"/content/site/doc", "/archive/v1/other", "", true},
		{"/content/site/doc", "/var/v1/jcr:frozenNode", "", true},
		{"relative", "/archive/v1/jcr:frozenNode", "", true},
		{"/content/site/doc", "/archive/v1/jcr:frozenNodeX", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.archive, func(t *testing.T) {
			got, err := ReconstructOriginalPath(tt.anchor, tt.archive)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrozenPathRoundTrip(t *testing.T) {
	p := FrozenPath("v7", "/a/b/")
	assert.Equal(t, "/archive/v7/jcr:frozenNode/a/b", p)
	vid, rel, err := SplitFrozenPath(p)
	require.NoError(t, err)
	assert.Equal(t, "v7", vid)
	assert.Equal(t, "a/b", rel)
	assert.True(t, IsArchivePath(p))
}
