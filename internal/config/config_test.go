package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "versa.db", cfg.DB.Path)
	assert.Equal(t, 500, cfg.Query.PageSize)
	assert.Equal(t, 256, cfg.Fingerprint.CacheSize)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Mapper.Include)
}

func TestLoad_FileThenEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "versa.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
db:
  path: /data/content.db
log:
  level: debug
  format: json
query:
  page_size: 50
mapper:
  include: [/content/site]
  exclude: [/content/site/drafts]
`), 0o644))
	t.Setenv("VERSA_QUERY_PAGE_SIZE", "20")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "/data/content.db", cfg.DB.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Query.PageSize, "environment wins over the file")
	assert.Equal(t, []string{"/content/site"}, cfg.Mapper.Include)
	assert.Equal(t, []string{"/content/site/drafts"}, cfg.Mapper.Exclude)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)

	t.Setenv("VERSA_LOG_FORMAT", "xml")
	_, err = Load("")
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "log.format", ce.Key)
}
