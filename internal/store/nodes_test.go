package store

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

func TestPutNode_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.UTC)
	price, err := content.NewDecimal("12.50")
	require.NoError(t, err)

	n := content.NewNode("/doc", "nt:unstructured", "mix:title")
	n.Set(content.Single("jcr:title", content.NewString("Doc")))
	n.Set(content.Single("count", content.LongValue(1<<53 + 1)))
	n.Set(content.Single("ratio", content.DoubleValue(0.25)))
	n.Set(content.Single("price", price))
	n.Set(content.Single("modified", content.NewDate(modified)))
	n.Set(content.Single("published", content.BooleanValue(true)))
	n.Set(content.Single("target", content.NewPath("/other")))
	n.Set(content.Multi("tags", content.TypeString, content.NewString("b"), content.NewString("a")))
	require.NoError(t, s.PutNode(ctx, n))

	got, err := s.GetNode(ctx, "/doc")
	require.NoError(t, err)

	assert.Equal(t, "nt:unstructured", got.PrimaryType)
	assert.Equal(t, []string{"mix:title"}, got.Mixins)
	assert.Equal(t, []string{}, got.ChildNames)
	assert.Equal(t, "Doc", got.String("jcr:title"))
	assert.Equal(t, content.LongValue(1<<53+1), got.Properties["count"].Value())
	assert.Equal(t, content.DoubleValue(0.25), got.Properties["ratio"].Value())
	assert.Equal(t, "12.50", got.Properties["price"].Value().String())
	assert.Equal(t, content.NewDate(modified), got.Properties["modified"].Value())
	assert.Equal(t, content.BooleanValue(true), got.Properties["published"].Value())
	assert.Equal(t, content.TypePath, got.Properties["target"].Type)

	tags := got.Properties["tags"]
	assert.True(t, tags.Multiple)
	assert.Equal(t, []content.Value{content.NewString("b"), content.NewString("a")}, tags.Values)
}

func TestPutNode_MissingParent(t *testing.T) {
	s := createTestStore(t)

	err := s.PutNode(context.Background(), content.NewNode("/a/b", "nt:unstructured"))
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestPutNode_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		node *content.Node
	}{
		{"relative path", content.NewNode("doc", "nt:unstructured")},
		{"archive path", content.NewNode("/archive/x", "nt:unstructured")},
		{"no primary type", content.NewNode("/doc", "")},
		{"mistyped value", content.NewNode("/doc", "nt:unstructured").
			Set(content.Property{Name: "n", Type: content.TypeLong, Values: []content.Value{content.NewString("x")}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.PutNode(ctx, tt.node))
		})
	}
}

func TestPutNode_ReplaceKeepsPositionAndChildren(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	updated := page("/content/site/home", "Welcome", "v2")
	require.NoError(t, s.PutNode(ctx, updated))

	site, err := s.GetNode(ctx, "/content/site")
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "about"}, site.ChildNames)

	home, err := s.GetNode(ctx, "/content/site/home")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", home.String("jcr:title"))
	assert.Equal(t, []string{"jcr:content"}, home.ChildNames)
}

func TestPutNode_DuplicateUUID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	dup := content.NewNode("/content/site/copy", "nt:unstructured")
	dup.Set(content.Single(content.PropUUID, content.NewString("uuid-home")))
	assert.Error(t, s.PutNode(ctx, dup))
}

func TestListChildren_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	children, err := s.ListChildren(ctx, "/content/site")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "/content/site/home", children[0].Path)
	assert.Equal(t, []string{"jcr:content"}, children[0].ChildNames)
	assert.Equal(t, "/content/site/about", children[1].Path)

	_, err = s.ListChildren(ctx, "/missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestReorder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	require.NoError(t, s.Reorder(ctx, "/content/site", "about", "home"))
	site, err := s.GetNode(ctx, "/content/site")
	require.NoError(t, err)
	assert.Equal(t, []string{"about", "home"}, site.ChildNames)

	assert.Error(t, s.Reorder(ctx, "/content/site", "about"))
	assert.Error(t, s.Reorder(ctx, "/content/site", "about", "other"))
}

func TestDeleteTree(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)
	require.NoError(t, s.PutNode(ctx, content.NewNode("/content/site-other", "nt:unstructured")))

	require.NoError(t, s.DeleteTree(ctx, "/content/site/home"))

	_, err := s.GetNode(ctx, "/content/site/home/jcr:content")
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, err = s.GetNode(ctx, "/content/site/about")
	assert.NoError(t, err)

	// A sibling sharing the name prefix survives.
	require.NoError(t, s.DeleteTree(ctx, "/content/site"))
	_, err = s.GetNode(ctx, "/content/site-other")
	assert.NoError(t, err)

	assert.NoError(t, s.DeleteTree(ctx, "/missing"))
	assert.Error(t, s.DeleteTree(ctx, "/"))
}

func TestPutBinary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	bin, err := s.PutBinary(ctx, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), bin.Size)

	again, err := s.PutBinary(ctx, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, bin.Key, again.Key)

	n := content.NewNode("/file", "nt:unstructured").Set(content.Single("data", bin))
	require.NoError(t, s.PutNode(ctx, n))

	got, err := s.GetNode(ctx, "/file")
	require.NoError(t, err)
	v, ok := got.Properties["data"].Value().(content.BinaryValue)
	require.True(t, ok)
	require.NotNil(t, v.Open)

	r, err := v.Open()
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWalk(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putSite(t, s)

	var visited []string
	err := s.Walk(ctx, "/content/site", func(n *content.Node) error {
		visited = append(visited, n.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/content/site",
		"/content/site/home",
		"/content/site/home/jcr:content",
		"/content/site/about",
	}, visited)
}
