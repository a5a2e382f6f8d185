package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteFixture = "../fixture/testdata/site.yaml"

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// loadedSite returns a database holding the site fixture: three page
// contents, home captured for release r1 and edited afterwards, the site
// reordered, and mark public pointing at r1.
func loadedSite(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "versa.db")
	out, err := execute(t, "", "--db", db, "load", siteFixture)
	require.NoError(t, err)
	assert.Contains(t, out, "9 nodes written, 0 deleted, 1 versions captured, 1 releases")
	return db
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func decodeError(t *testing.T, out string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func nodePaths(r QueryResult) []string {
	out := []string{}
	for _, n := range r.Nodes {
		out = append(out, n.Path)
	}
	return out
}

func TestQuery_Live(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "--format", "json",
		"query", "/content/site", "--type", "cpp:PageContent", "--order", "jcr:path")
	require.NoError(t, err)

	var result QueryResult
	decodeData(t, out, &result)
	assert.Equal(t, []string{
		"/content/site/about/jcr:content",
		"/content/site/home/jcr:content",
		"/content/site/news/jcr:content",
	}, nodePaths(result))
	assert.Equal(t, "Home (draft)", result.Nodes[1].Properties["jcr:title"])
	assert.Empty(t, result.Release)
}

func TestQuery_ReleaseByMark(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "--format", "json",
		"query", "/content/site", "--type", "cpp:PageContent", "--mark", "public")
	require.NoError(t, err)

	var result QueryResult
	decodeData(t, out, &result)
	assert.Equal(t, "Release(r1@/content/site)", result.Release)
	require.Equal(t, []string{"/content/site/home/jcr:content"}, nodePaths(result),
		"uncaptured versionables are not part of the release")
	home := result.Nodes[0]
	assert.Equal(t, "cpp:PageContent", home.PrimaryType)
	assert.Equal(t, "Home", home.Properties["jcr:title"])
	assert.Equal(t, []any{"news", "start"}, home.Properties["tags"])

	byName, err := execute(t, "", "--db", db, "--format", "json",
		"query", "/content/site", "--type", "cpp:PageContent", "--release", "r1")
	require.NoError(t, err)
	assert.Equal(t, out, byName)
}

func TestQuery_WhereAndOrder(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db,
		"query", "/content/site", "--type", "cpp:PageContent",
		"--where", "n.[rank] >= $min", "--bind", "min=Long:2",
		"--order", "rank", "--desc")
	require.NoError(t, err)
	assert.Equal(t, "/content/site/news/jcr:content\tcpp:PageContent\n"+
		"/content/site/about/jcr:content\tcpp:PageContent\n", out)
}

func TestQuery_Columns(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db,
		"query", "/content/site", "--type", "cpp:PageContent", "--mark", "public",
		"--column", "jcr:title", "--column", "n.rank")
	require.NoError(t, err)
	assert.Equal(t, "path\tjcr:title\tn.rank\n/content/site/home/jcr:content\tHome\t1\n", out)
}

func TestQuery_Pagination(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db,
		"query", "/content/site", "--type", "cpp:PageContent", "--order", "jcr:path",
		"--offset", "1", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "/content/site/home/jcr:content\tcpp:PageContent\n", out)
}

func TestQuery_MapperConfig(t *testing.T) {
	db := loadedSite(t)
	cfg := filepath.Join(t.TempDir(), "versa.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("mapper:\n  exclude: [/content/site/home]\n"), 0o644))

	out, err := execute(t, "", "--db", db, "--config", cfg, "--format", "json",
		"query", "/content/site/home", "--type", "cpp:PageContent", "--mark", "public")
	require.NoError(t, err)

	var result QueryResult
	decodeData(t, out, &result)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "Home (draft)", result.Nodes[0].Properties["jcr:title"], "excluded paths are read live")
}

func TestQuery_Errors(t *testing.T) {
	db := loadedSite(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"negative offset", []string{"--offset", "-1"}, ErrCodeUsage},
		{"malformed column", []string{"--column", "[]"}, ErrCodeUsage},
		{"unbound value", []string{"--where", "n.[rank] = $missing"}, ErrCodeUsage},
		{"bad binding", []string{"--where", "n.[rank] = $r", "--bind", "r=Long:abc"}, ErrCodeGeneric},
		{"unknown mark", []string{"--mark", "preview"}, ErrCodeNotFound},
		{"unknown type", []string{"--type", "cpp:Nope"}, ErrCodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "--format", "json", "query", "/content/site"}, tt.args...)
			out, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, tt.code, decodeError(t, out).Code)
		})
	}
}

func TestQuery_ReleaseAndMarkExclusive(t *testing.T) {
	_, err := execute(t, "", "--db", filepath.Join(t.TempDir(), "x.db"),
		"query", "/content", "--release", "r1", "--mark", "public")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestFingerprint(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "--format", "json", "fingerprint", "/content/site/about/jcr:content")
	require.NoError(t, err)

	var result FingerprintResult
	decodeData(t, out, &result)
	assert.Equal(t, "/content/site/about/jcr:content", result.Record.Path)
	assert.Equal(t, map[string]string{
		"cpl:replicatedVersion": "S:v1",
		"jcr:mixinTypes":        result.Record.PropertyHashes["jcr:mixinTypes"],
		"jcr:primaryType":       "S:cpp:PageContent",
		"jcr:title":             "S:About",
		"rank":                  "n:2",
	}, result.Record.PropertyHashes)
	assert.True(t, strings.HasPrefix(result.Record.PropertyHashes["jcr:mixinTypes"], "S:"))
	assert.Len(t, result.Digest, 64)
	assert.Nil(t, result.Equal)
}

func TestFingerprint_Against(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "--format", "json", "fingerprint", "/content/site/home/jcr:content",
		"--against", "/content/site/about/jcr:content", "--map", "/content/site/home=/content/site/about")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result FingerprintResult
	decodeData(t, out, &result)
	require.NotNil(t, result.Equal)
	assert.False(t, *result.Equal)
	assert.Equal(t, "/content/site/about/jcr:content", result.Record.Path, "mapped path")
	assert.Equal(t, []string{"cpl:replicatedVersion", "jcr:title", "rank"}, result.Differences)
	assert.NotContains(t, result.Description, "Paths different")

	out, err = execute(t, "", "--db", db, "fingerprint", "/content/site/about/jcr:content",
		"--against", "/content/site/about/jcr:content")
	require.NoError(t, err)
	assert.Contains(t, out, "equal to /content/site/about/jcr:content")
}

func TestFingerprint_Missing(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "--format", "json", "fingerprint", "/content/site/gone")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, out).Code)

	_, err = execute(t, "", "--db", db, "fingerprint", "/content/site", "--map", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

const siteMarkers = `[{"path":"/content/site/news/jcr:content","version":"v1"},` +
	`{"path":"/content/site/home/jcr:content","version":"v2"},` +
	`{"path":"/content/site/about/jcr:content","version":"v1"}]` + "\n"

func TestVersionables(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "versionables", "/content/site", "/content/missing")
	require.NoError(t, err)
	assert.Equal(t, siteMarkers, out, "site children in stored order")

	out, err = execute(t, "", "--db", db, "--format", "json",
		"versionables", "/content/site/home", "--relative-to", "/content/site")
	require.NoError(t, err)
	var infos []map[string]string
	decodeData(t, out, &infos)
	assert.Equal(t, []map[string]string{{"path": "/home/jcr:content", "version": "v2"}}, infos)
}

func TestReconcile(t *testing.T) {
	db := loadedSite(t)

	_, err := execute(t, siteMarkers, "--db", db, "reconcile", "-")
	require.NoError(t, err, "markers written from the same tree are up to date")

	markers := filepath.Join(t.TempDir(), "markers.json")
	require.NoError(t, os.WriteFile(markers, []byte(`[
		{"path":"/content/site/home/jcr:content","version":"v1"},
		{"path":"/content/site/about/jcr:content","version":"v1"},
		{"path":"/content/site/gone/jcr:content","version":"v1"}
	]`), 0o644))

	out, err := execute(t, "", "--db", db, "reconcile", markers, "--check-subpath", "/content/site")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "deleted\t/content/site/gone/jcr:content\tv1\n"+
		"changed\t/content/site/home/jcr:content\tv1\n", out)

	out, err = execute(t, "", "--db", db, "--format", "json", "reconcile", markers, "--check-subpath", "/content/site/home")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeUsage, decodeError(t, out).Code)

	out, err = execute(t, "not json", "--db", db, "--format", "json", "reconcile", "-")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInput, decodeError(t, out).Code)
}

func TestReconcile_Mapped(t *testing.T) {
	db := loadedSite(t)
	remote := strings.ReplaceAll(siteMarkers, "/content/site", "/public/site")

	out, err := execute(t, remote, "--db", db, "--format", "json",
		"reconcile", "-", "--map", "/public=/content")
	require.NoError(t, err)
	var result ReconcileResult
	decodeData(t, out, &result)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Changed)
}

func TestOrder(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "--format", "json", "order", "/content")
	require.NoError(t, err)

	var result OrderResult
	decodeData(t, out, &result)
	require.Len(t, result.Orders, 1, "pages have a single child")
	assert.Equal(t, "/content/site", result.Orders[0].Path)
	assert.Equal(t, []string{"news", "home", "about"}, result.Orders[0].ChildNames)
	assert.Len(t, result.Orders[0].Digest, 64)

	text, err := execute(t, "", "--db", db, "order", "/content")
	require.NoError(t, err)
	assert.Equal(t, "/content/site\t"+result.Orders[0].Digest[:12]+"\tnews,home,about\n", text)
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "", "--db", filepath.Join(t.TempDir(), "unused.db"), "--format", "json",
		"types", "cpp:Site", "mix:title")
	require.NoError(t, err)

	var result TypesResult
	decodeData(t, out, &result)
	require.Len(t, result.Types, 2)
	site := result.Types[0]
	assert.Equal(t, "cpp:Site", site.Name)
	assert.True(t, site.Orderable)
	assert.Contains(t, site.Supertypes, "sling:OrderedFolder")
	assert.Contains(t, site.Supertypes, "nt:base")
	assert.Contains(t, site.Protected, "jcr:primaryType")
	assert.True(t, result.Types[1].Mixin)

	out, err = execute(t, "", "--format", "json", "types", "cpp:Nope")
	require.Error(t, err)
	assert.Equal(t, ErrCodeUsage, decodeError(t, out).Code)
}

func TestTypes_CUEFile(t *testing.T) {
	dir := t.TempDir()
	types := filepath.Join(dir, "types.cue")
	require.NoError(t, os.WriteFile(types, []byte(`types: {
	"nt:base": properties: "jcr:primaryType": protected: true
	"app:Doc": {
		supertypes: ["nt:base"]
		orderable: true
	}
}
`), 0o644))
	cfg := filepath.Join(dir, "versa.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("types:\n  file: "+types+"\n"), 0o644))

	out, err := execute(t, "", "--config", cfg, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "app:Doc\t[orderable]\tsupertypes=nt:base\tprotected=jcr:primaryType\n")

	require.NoError(t, os.WriteFile(types, []byte(`types: "app:Doc": supertypes: ["nt:missing"]`), 0o644))
	out, err = execute(t, "", "--config", cfg, "--format", "json", "types")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NotEmpty(t, decodeError(t, out).Code)
}

func TestReleases(t *testing.T) {
	db := loadedSite(t)

	out, err := execute(t, "", "--db", db, "releases", "list")
	require.NoError(t, err)
	assert.Equal(t, "/content/site\tr1\tlabel=site-r1\tcopy=/var/releases/site/r1\tmarks=public\n", out)

	_, err = execute(t, "", "--db", db, "releases", "create", "/content/site", "r2",
		"--label", "site-r2", "--copy", "/var/releases/site/r2")
	require.NoError(t, err)
	_, err = execute(t, "", "--db", db, "releases", "mark", "/content/site", "public", "r2")
	require.NoError(t, err)

	out, err = execute(t, "", "--db", db, "--format", "json", "releases", "list", "/content/site")
	require.NoError(t, err)
	var result ReleasesResult
	decodeData(t, out, &result)
	require.Len(t, result.Releases, 2)
	assert.Empty(t, result.Releases[0].Marks, "the mark moved away from r1")
	assert.Equal(t, []string{"public"}, result.Releases[1].Marks)

	out, err = execute(t, "", "--db", db, "--format", "json", "releases", "create", "/content/site", "r3",
		"--label", "site-r1", "--copy", "/var/releases/site/r3")
	require.Error(t, err)
	assert.Equal(t, ErrCodeUsage, decodeError(t, out).Code, "labels are unique per site")

	_, err = execute(t, "", "--db", db, "releases", "delete", "/content/site", "r2")
	require.NoError(t, err)
	out, err = execute(t, "", "--db", db, "--format", "json", "query", "/content/site", "--mark", "public")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, out).Code)
}

func TestLoad_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "versa.db")

	out, err := execute(t, "", "--db", db, "--format", "json", "load", "missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInput, decodeError(t, out).Code)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps:\n  - capture: {path: /content/none}\n"), 0o644))
	out, err = execute(t, "", "--db", db, "--format", "json", "load", bad)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, out).Code)
}

func TestConfigError(t *testing.T) {
	t.Setenv("VERSA_LOG_FORMAT", "xml")
	out, err := execute(t, "", "--format", "json", "types")
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfig, decodeError(t, out).Code)
}
