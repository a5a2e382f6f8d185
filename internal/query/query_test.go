package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ist-dresden/composum-platform-sub002/internal/release"
)

func TestQuery_UsageErrors(t *testing.T) {
	e := &Executor{mapper: release.AllPermissive}

	tests := []struct {
		name  string
		query *Query
	}{
		{"negative limit", New("/content").Limit(-1)},
		{"negative offset", New("/content").Offset(-3)},
		{"relative path", New("content/site")},
		{"duplicate selector", New("/content").Join(Join{Selector: "o"}).Join(Join{Selector: "o"})},
		{"primary selector joined", New("/content").Join(Join{Selector: "n"})},
		{"right outer join", New("/content").Join(Join{Kind: RightOuterJoin})},
		{"no path", &Query{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Plan(tt.query)
			require.Error(t, err)
			assert.True(t, IsUsageError(err), "got %T: %v", err, err)
		})
	}
}

func TestQuery_FirstMisuseWins(t *testing.T) {
	q := New("/content").Limit(-1).Offset(-1)
	var ue *UsageError
	_, err := (&Executor{}).Plan(q)
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "limit")
}

func TestQuery_Selectors(t *testing.T) {
	q := New("/content")
	assert.Equal(t, "o", q.NextSelector())
	q.Join(Join{})
	assert.Equal(t, "p", q.NextSelector())
	q.Join(Join{Selector: "q"}).Join(Join{})
	assert.Equal(t, []string{"n", "o", "q", "p"}, q.Selectors())
}

func TestQuery_String(t *testing.T) {
	q := New("/content/site/").Type("cpp:Page").OrderBy("jcr:title").Descending().Limit(5).Offset(2).
		InRelease(&release.Release{Name: "r1"})
	assert.Equal(t, "Query(path=/content/site type=cpp:Page order=jcr:title desc limit=5 offset=2 release=r1)", q.String())
}

func TestParseColumn(t *testing.T) {
	selectors := []string{"n", "o"}
	tests := []struct {
		column string
		want   columnKey
	}{
		{"jcr:title", columnKey{"n", "jcr:title"}},
		{"[jcr:title]", columnKey{"n", "jcr:title"}},
		{"n.jcr:title", columnKey{"n", "jcr:title"}},
		{"o.[jcr:title]", columnKey{"o", "jcr:title"}},
		{" o.rank ", columnKey{"o", "rank"}},
		// x is not a selector, so the dot belongs to the name
		{"x.rank", columnKey{"n", "x.rank"}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, err := parseColumn(tt.column, selectors)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseColumn("o.[]", selectors)
	assert.True(t, IsUsageError(err))
}
