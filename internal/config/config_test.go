package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

func TestLoad_WritesDefaultsOnFirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	f, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, FileName))

	assert.Equal(t, types.DefaultMaxConnections, f.MaxConnections)
	assert.Equal(t, 5*time.Second, f.BusyTimeout)
	assert.Empty(t, f.Roles)
	assert.Equal(t, "warn", f.Log.Level)
	assert.Equal(t, "text", f.Log.Format)

	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	content := `data_dir: /var/lib/unisql
max_connections: 3
driver: modernc
busy_timeout: 250ms
verify_integrity: true
roles: [viewer, auditor]
primary_role: viewer
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/unisql", f.DataDir)
	assert.Equal(t, []string{"viewer", "auditor"}, f.Roles)
	assert.Equal(t, "viewer", f.PrimaryRole)
	assert.Equal(t, "debug", f.Log.Level)
	assert.Equal(t, "stderr", f.Log.Output, "unset keys keep their defaults")

	cfg := f.Manager("/data")
	assert.Equal(t, types.Config{
		MaxConnections:  3,
		DataDir:         "/data",
		Driver:          "modernc",
		BusyTimeout:     250 * time.Millisecond,
		VerifyIntegrity: true,
	}, cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("UNISQL_MAX_CONNECTIONS", "7")
	t.Setenv("UNISQL_LOG_LEVEL", "error")

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, f.MaxConnections)
	assert.Equal(t, "error", f.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("max_connections: 0\n"), 0o644))
	_, err := Load(dir)
	require.NoError(t, err, "zero falls back to the default ceiling")

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("max_connections: -2\n"), 0o644))
	_, err = Load(dir)
	assert.ErrorIs(t, err, types.ErrInvalidCapacity)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("log: [\n"), 0o644))
	_, err = Load(dir)
	assert.Error(t, err)
}
