package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("it can be created from a config file", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		path := filepath.Join(t.TempDir(), "eventgraph.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
listen: ":8080"
databaseUrl: postgres://edge:5432/pipelines
logLevel: debug
logFormat: json
templatesDir: /etc/eventgraph/templates
compositor:
  maxRecords: 64
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Listen)
		assert.Equal(t, "postgres://edge:5432/pipelines", cfg.DatabaseURL)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "/etc/eventgraph/templates", cfg.TemplatesDir)
		assert.Equal(t, 64, cfg.Compositor.MaxRecords)
	})

	t.Run("environment overrides database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://env/db")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
		assert.Equal(t, ":3000", cfg.Listen)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestUnmarshalValidation(t *testing.T) {
	_, err := Unmarshal([]byte("logLevel: loud\nlogFormat: xml\ncompositor:\n  maxRecords: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logLevel")
	assert.Contains(t, err.Error(), "logFormat")
	assert.Contains(t, err.Error(), "maxRecords")

	cfg, err := Unmarshal([]byte("logLevel: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
}
