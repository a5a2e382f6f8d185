package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// page creates a versionable page at path with a title and version.
func page(path, title, version string) *content.Node {
	n := content.NewNode(path, "cpp:Page", content.MixinVersionable)
	n.Set(content.Single("jcr:title", content.NewString(title)))
	n.Set(content.Single(content.PropUUID, content.NewString("uuid-"+content.Name(path))))
	if version != "" {
		n.Set(content.Single(content.PropReplicatedVersion, content.NewString(version)))
	}
	return n
}

// putSite writes a small site: /content/site with two pages, the first
// carrying a jcr:content child.
func putSite(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	nodes := []*content.Node{
		content.NewNode("/content", "sling:Folder"),
		content.NewNode("/content/site", "cpp:Site"),
		page("/content/site/home", "Home", "v1"),
		content.NewNode("/content/site/home/jcr:content", "cpp:PageContent").
			Set(content.Single("rank", content.LongValue(3))),
		page("/content/site/about", "About", "v1"),
	}
	if err := s.PutNodes(ctx, nodes...); err != nil {
		t.Fatalf("PutNodes() failed: %v", err)
	}
}
