package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

type mapProvider struct {
	schemas map[string]*types.DatabaseSchema
	err     error
	calls   int
}

func (p *mapProvider) Schema(name string) (*types.DatabaseSchema, bool, error) {
	p.calls++
	if p.err != nil {
		return nil, false, p.err
	}
	s, ok := p.schemas[name]
	return s, ok, nil
}

func schemaNamed(name, version string) *types.DatabaseSchema {
	return &types.DatabaseSchema{
		DatabaseName: name,
		Version:      version,
		Schemas: map[string]types.TableSchema{
			"items": {Cols: []types.ColumnDefinition{{Name: "id", Type: "integer", Constraints: "PRIMARY AUTO_INCREMENT"}}},
		},
	}
}

func TestRegistry_RegisterSchema(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterSchema("core", schemaNamed("core", "1")))
	require.NoError(t, r.RegisterSchema("core", schemaNamed("core", "2")))

	got, err := r.GetSchema("core")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Version, "later registration overwrites")

	err = r.RegisterSchema("", schemaNamed("x", "1"))
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)
	assert.True(t, types.IsConfigurationError(err))

	err = r.RegisterSchema("x", nil)
	assert.ErrorIs(t, err, types.ErrInvalidSchema)
}

func TestRegistry_RegisterSchemas(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterSchemas(map[string]*types.DatabaseSchema{
		"b": schemaNamed("b", "1"),
		"a": schemaNamed("a", "1"),
	}))
	assert.Equal(t, []string{"a", "b"}, r.SchemaNames())
}

func TestRegistry_GetSchemaNotFound(t *testing.T) {
	r := New()
	_, err := r.GetSchema("missing")
	require.ErrorIs(t, err, types.ErrSchemaNotFound)
	assert.Contains(t, err.Error(), `"missing"`)
	assert.False(t, r.HasSchema("missing"))
}

func TestRegistry_Provider(t *testing.T) {
	r := New()
	p := &mapProvider{schemas: map[string]*types.DatabaseSchema{"ext": schemaNamed("ext", "1")}}
	r.SetProvider(p)

	got, err := r.GetSchema("ext")
	require.NoError(t, err)
	assert.Equal(t, "ext", got.DatabaseName)

	_, err = r.GetSchema("ext")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "provider results are not cached")
	assert.Empty(t, r.SchemaNames())

	require.NoError(t, r.RegisterSchema("ext", schemaNamed("ext", "9")))
	got, err = r.GetSchema("ext")
	require.NoError(t, err)
	assert.Equal(t, "9", got.Version, "internal store is consulted first")

	p.err = errors.New("disk gone")
	_, err = r.GetSchema("other")
	assert.ErrorContains(t, err, "disk gone")
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterSchema("core", schemaNamed("core", "1")))
	r.Unregister("core")
	assert.False(t, r.HasSchema("core"))
}

func TestRegistry_Roles(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterRoles([]types.RoleConfig{
		{RoleName: "admin", RequiredDatabases: []string{"db1", "db2"}, OptionalDatabases: []string{"db2", "db3"}},
		{RoleName: "guest"},
	}))

	dbs, err := r.GetRoleDatabases("admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "db2", "db3"}, dbs)

	dbs, err = r.GetRoleDatabases("guest")
	require.NoError(t, err)
	assert.Empty(t, dbs)

	_, err = r.GetRole("nobody")
	assert.ErrorIs(t, err, types.ErrRoleNotFound)

	assert.Equal(t, []string{"admin", "guest"}, r.RoleNames())

	err = r.RegisterRole(types.RoleConfig{})
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)
}
