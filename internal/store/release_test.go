package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleases(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r1 := ReleaseRecord{SiteRoot: "/content/site", Name: "r1", Label: "site-r1", ContentCopy: "/var/releases/site/r1"}
	r2 := ReleaseRecord{SiteRoot: "/content/site", Name: "r2", Label: "site-r2", ContentCopy: "/var/releases/site/r2"}
	require.NoError(t, s.PutRelease(ctx, r1))
	require.NoError(t, s.PutRelease(ctx, r2))
	require.NoError(t, s.SetReleaseMark(ctx, "/content/site", "public", "r1"))
	require.NoError(t, s.SetReleaseMark(ctx, "/content/site", "preview", "r1"))

	got, err := s.ReleaseByMark(ctx, "/content/site", "public")
	require.NoError(t, err)
	assert.Equal(t, "site-r1", got.Label)
	assert.Equal(t, []string{"preview", "public"}, got.Marks)

	require.NoError(t, s.SetReleaseMark(ctx, "/content/site", "preview", "r2"))
	got, err = s.GetRelease(ctx, "/content/site", "r2")
	require.NoError(t, err)
	assert.Equal(t, []string{"preview"}, got.Marks)

	list, err := s.ListReleases(ctx, "/content/site")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r1", list[0].Name)
	assert.Equal(t, []string{"public"}, list[0].Marks)

	roots, err := s.SiteRoots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/content/site"}, roots)
}

func TestReleases_Misses(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetRelease(ctx, "/content/site", "r1")
	assert.ErrorIs(t, err, ErrNoRelease)

	_, err = s.ReleaseByMark(ctx, "/content/site", "public")
	assert.ErrorIs(t, err, ErrNoRelease)

	// Marks must point at an existing release.
	assert.Error(t, s.SetReleaseMark(ctx, "/content/site", "public", "r1"))
}

func TestDeleteRelease_DropsMarks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRelease(ctx, ReleaseRecord{SiteRoot: "/s", Name: "r1", Label: "l1", ContentCopy: "/copy"}))
	require.NoError(t, s.SetReleaseMark(ctx, "/s", "public", "r1"))
	require.NoError(t, s.DeleteRelease(ctx, "/s", "r1"))

	_, err := s.ReleaseByMark(ctx, "/s", "public")
	assert.ErrorIs(t, err, ErrNoRelease)
}
