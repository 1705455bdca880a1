package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hilite-live/hilite/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 9988, cfg.Server.Port)
	require.Equal(t, "file", cfg.Store.Backend)
	require.Equal(t, 8, cfg.Highlight.MaxSpan)
	require.Len(t, cfg.Highlight.Palette, 5)
	require.Equal(t, "feedback", cfg.Survey.DefaultForm)
	require.Len(t, cfg.Panel.Buttons, 4)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
store:
  backend: sqlite
highlight:
  max_span: 4
`), 0o644))

	t.Setenv("HILITE_CONFIG_PATH", path)
	t.Setenv("HILITE_SERVER_PORT", "7001")
	t.Setenv("HILITE_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	// Env beats file, file beats defaults.
	require.Equal(t, 7001, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, 4, cfg.Highlight.MaxSpan)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("HILITE_STORE_BACKEND", "postgres")
	_, err := config.Load()
	require.Error(t, err)

	t.Setenv("HILITE_STORE_BACKEND", "file")
	t.Setenv("HILITE_SERVER_PORT", "not-a-port")
	_, err = config.Load()
	require.Error(t, err)
}
