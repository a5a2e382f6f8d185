package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

func TestCaptureVersion(t *testing.T) {
	s := createTestStore(t, WithVersionIDs(NewFixedGenerator("ver-1")))
	ctx := context.Background()
	putSite(t, s)

	id, err := s.CaptureVersion(ctx, "/content/site/home", "r1")
	require.NoError(t, err)
	assert.Equal(t, "ver-1", id)

	anchor, err := s.GetArchiveNode(ctx, "/archive/ver-1/jcr:frozenNode")
	require.NoError(t, err)
	assert.Equal(t, content.FrozenNodeType, anchor.PrimaryType)
	assert.Equal(t, "cpp:Page", anchor.String(content.PropFrozenPrimaryType))
	assert.Equal(t, "uuid-home", anchor.String(content.PropFrozenUUID))
	assert.Equal(t, "Home", anchor.String("jcr:title"))
	assert.Equal(t, []string{"jcr:content"}, anchor.ChildNames)
	_, hasUUID := anchor.Properties[content.PropUUID]
	assert.False(t, hasUUID, "live uuid must move to the frozen uuid")

	mixins, ok := anchor.Property(content.PropFrozenMixinTypes)
	require.True(t, ok)
	assert.Equal(t, []content.Value{content.NewName(content.MixinVersionable)}, mixins.Values)

	child, err := s.GetNode(ctx, "/archive/ver-1/jcr:frozenNode/jcr:content")
	require.NoError(t, err)
	assert.Equal(t, "cpp:PageContent", child.String(content.PropFrozenPrimaryType))
	assert.Equal(t, content.LongValue(3), child.Properties["rank"].Value())

	var rel, name string
	require.NoError(t, s.db.QueryRow(`SELECT rel_path, name FROM archive_nodes WHERE path = ?`,
		"/archive/ver-1/jcr:frozenNode").Scan(&rel, &name))
	assert.Equal(t, "", rel)
	assert.Equal(t, "home", name)
}

func TestCaptureVersion_IsImmutable(t *testing.T) {
	s := createTestStore(t, WithVersionIDs(NewFixedGenerator("ver-1")))
	ctx := context.Background()
	putSite(t, s)

	_, err := s.CaptureVersion(ctx, "/content/site/home")
	require.NoError(t, err)
	require.NoError(t, s.PutNode(ctx, page("/content/site/home", "Changed", "v2")))

	frozen, err := s.GetArchiveNode(ctx, "/archive/ver-1/jcr:frozenNode")
	require.NoError(t, err)
	assert.Equal(t, "Home", frozen.String("jcr:title"))
	assert.Equal(t, "v1", frozen.String(content.PropReplicatedVersion))
}

func TestCaptureVersion_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	tests := []struct {
		name string
		path string
	}{
		{"root", "/"},
		{"not versionable", "/content/site"},
		{"missing", "/content/site/missing"},
		{"archive", "/archive/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CaptureVersion(ctx, tt.path)
			assert.Error(t, err)
		})
	}
}

func TestAddLabel_MovesWithinOrigin(t *testing.T) {
	s := createTestStore(t, WithVersionIDs(NewFixedGenerator("ver-1", "ver-2", "ver-3")))
	ctx := context.Background()
	putSite(t, s)

	_, err := s.CaptureVersion(ctx, "/content/site/home", "r1")
	require.NoError(t, err)
	_, err = s.CaptureVersion(ctx, "/content/site/about", "r1")
	require.NoError(t, err)
	_, err = s.CaptureVersion(ctx, "/content/site/home", "r2")
	require.NoError(t, err)

	anchors, err := s.VersionAnchors(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ver-1": "/content/site/home",
		"ver-2": "/content/site/about",
	}, anchors)

	require.NoError(t, s.AddLabel(ctx, "ver-3", "r1"))
	anchors, err = s.VersionAnchors(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ver-3": "/content/site/home",
		"ver-2": "/content/site/about",
	}, anchors)

	assert.ErrorIs(t, s.AddLabel(ctx, "ver-9", "r1"), content.ErrNotFound)
	assert.Error(t, s.AddLabel(ctx, "ver-1", ""))
}

func TestVersionAnchors_UnknownLabel(t *testing.T) {
	s := createTestStore(t)

	anchors, err := s.VersionAnchors(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, anchors)
	assert.Empty(t, anchors)
}

func TestRemoveLabel(t *testing.T) {
	s := createTestStore(t, WithVersionIDs(NewFixedGenerator("ver-1")))
	ctx := context.Background()
	putSite(t, s)

	_, err := s.CaptureVersion(ctx, "/content/site/home", "r1")
	require.NoError(t, err)
	require.NoError(t, s.RemoveLabel(ctx, "r1"))

	anchors, err := s.VersionAnchors(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, anchors)
}

func TestListChildren_Archive(t *testing.T) {
	s := createTestStore(t, WithVersionIDs(NewFixedGenerator("ver-1")))
	ctx := context.Background()
	putSite(t, s)

	_, err := s.CaptureVersion(ctx, "/content/site/home")
	require.NoError(t, err)

	children, err := s.ListChildren(ctx, "/archive/ver-1/jcr:frozenNode")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "/archive/ver-1/jcr:frozenNode/jcr:content", children[0].Path)
}
