package unisql_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
	"github.com/mesh-intelligence/unisql/pkg/unisql"
)

const coreSchema = `database_name: core
version: "1"
schemas:
  users:
    cols:
      - {name: id, type: integer, constraints: PRIMARY AUTO_INCREMENT}
      - {name: email, type: email, constraints: NOT NULL UNIQUE}
`

const rolesYAML = `roles:
  - role_name: member
    required_databases: [core]
`

func TestNew_WithSchemaDir(t *testing.T) {
	ctx := context.Background()
	schemas := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(schemas, "core.yaml"), []byte(coreSchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(schemas, "roles.yaml"), []byte(rolesYAML), 0o644))

	mgr, err := unisql.New(types.Config{DataDir: t.TempDir()}, unisql.WithSchemaDir(schemas))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.CloseAll(ctx) })

	require.NoError(t, mgr.SetUserRoles(ctx, []string{"member"}, "member"))
	assert.Equal(t, []string{"core"}, mgr.ActiveDatabases())

	core, err := mgr.GetOrOpenConnection(ctx, types.CoreDatabase)
	require.NoError(t, err)
	_, err = core.Insert(ctx, "users", types.Row{"email": "a@x.com"})
	require.NoError(t, err)

	_, err = core.Insert(ctx, "users", types.Row{"email": "a@x.com"})
	assert.True(t, types.IsConstraintError(err))
}

func TestNew_Errors(t *testing.T) {
	_, err := unisql.New(types.Config{MaxConnections: -1})
	assert.ErrorIs(t, err, types.ErrInvalidCapacity)

	_, err = unisql.New(types.Config{}, unisql.WithSchemaDir(filepath.Join(t.TempDir(), "missing")))
	assert.Error(t, err)
}

func TestDrivers(t *testing.T) {
	drivers := unisql.Drivers()
	require.NotEmpty(t, drivers)
	assert.True(t, drivers[len(drivers)-1].IsSupported())
}
