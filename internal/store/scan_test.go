package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

func TestQueryNodes_Live(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	lo, hi := DescendantRange("/content/site")
	rows, err := s.QueryNodes(ctx, false, 1, `
		SELECT `+LivePrefixColumns("n")+`, `+LiveColumns("n")+`
		FROM nodes n WHERE n.path > ? AND n.path < ?
		ORDER BY n.path COLLATE BINARY ASC
	`, lo, hi)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "/content/site/about", rows[0].Nodes[0].Path)
	assert.Equal(t, "/content/site/about", rows[0].Versionable)
	assert.Equal(t, "/content/site/home/jcr:content", rows[2].Nodes[0].Path)
	assert.Equal(t, "/content/site/home", rows[2].Versionable)
	assert.False(t, rows[0].Archived())
}

func TestQueryNodes_LiveOuterJoin(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	rows, err := s.QueryNodes(ctx, false, 2, `
		SELECT `+LivePrefixColumns("n")+`, `+LiveColumns("n")+`, `+LiveColumns("o")+`
		FROM nodes n LEFT OUTER JOIN nodes o ON o.parent = n.path
		WHERE n.parent = ?
		ORDER BY n.path COLLATE BINARY ASC
	`, "/content/site")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "/content/site/about", rows[0].Nodes[0].Path)
	assert.Nil(t, rows[0].Nodes[1])
	require.NotNil(t, rows[1].Nodes[1])
	assert.Equal(t, "/content/site/home/jcr:content", rows[1].Nodes[1].Path)
}

func TestQueryNodes_Archive(t *testing.T) {
	s := createTestStore(t, WithVersionIDs(NewFixedGenerator("ver-1")))
	ctx := context.Background()
	putSite(t, s)

	home := page("/content/site/home", "Home", "v1")
	home.Mixins = append(home.Mixins, "mix:title")
	require.NoError(t, s.PutNode(ctx, home))
	_, err := s.CaptureVersion(ctx, "/content/site/home", "r1")
	require.NoError(t, err)

	rows, err := s.QueryNodes(ctx, true, 1, `
		SELECT `+ArchivePrefixColumns("n", "v")+`, `+ArchiveColumns("n")+`
		FROM archive_nodes n
		JOIN archive_versions v ON v.version_id = n.version_id
		JOIN archive_labels l ON l.version_id = n.version_id AND l.label = ?
		ORDER BY n.path COLLATE BINARY ASC
	`, "r1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	r := rows[0]
	assert.True(t, r.Archived())
	assert.Equal(t, "ver-1", r.VersionID)
	assert.Equal(t, "/content/site/home", r.OriginPath)
	assert.Equal(t, content.MixinVersionable, r.HeadMixin)
	assert.Equal(t, 2, r.MixinCount)
	assert.Equal(t, "cpp:Page", r.Nodes[0].String(content.PropFrozenPrimaryType))
	_, ok := r.Nodes[0].Property(content.PropFrozenMixinTypes)
	assert.False(t, ok, "scan rows carry no mixin list")

	assert.Equal(t, 0, rows[1].MixinCount)
	assert.Equal(t, "", rows[1].HeadMixin)
}

func TestQueryNodes_BadStatement(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryNodes(context.Background(), false, 1, "SELECT nope FROM nowhere")
	assert.Error(t, err)
	_, err = s.QueryNodes(context.Background(), false, 0, "SELECT 1")
	assert.Error(t, err)
}
