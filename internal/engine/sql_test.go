package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

func identity(_ string, v any) any { return v }

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		opts     types.QueryOptions
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "all",
			wantSQL: `SELECT * FROM "t"`,
		},
		{
			name: "columns where order limit offset",
			opts: types.QueryOptions{
				Columns: []string{"a", "b"},
				Where:   []types.WhereClause{types.Eq("a", 1), {Field: "b", Operator: "in", Value: []string{"x", "y"}}},
				OrderBy: []types.OrderByClause{{Field: "a"}, {Field: "b", Direction: "desc"}},
				Limit:   10,
				Offset:  5,
			},
			wantSQL:  `SELECT "a", "b" FROM "t" WHERE "a" = ? AND "b" IN (?, ?) ORDER BY "a" ASC, "b" DESC LIMIT ? OFFSET ?`,
			wantArgs: []any{1, "x", "y", 10, 5},
		},
		{
			name:     "offset without limit",
			opts:     types.QueryOptions{Offset: 3},
			wantSQL:  `SELECT * FROM "t" LIMIT -1 OFFSET ?`,
			wantArgs: []any{3},
		},
		{
			name:    "null checks",
			opts:    types.QueryOptions{Where: []types.WhereClause{{Field: "a", Operator: "is null"}, {Field: "b", Operator: "!=", Value: nil}}},
			wantSQL: `SELECT * FROM "t" WHERE "a" IS NULL AND "b" IS NOT NULL`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildSelect("t", tt.opts, identity)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildWhere_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		where types.WhereClause
		want  error
	}{
		{"bad field", types.WhereClause{Field: "a b", Value: 1}, types.ErrInvalidIdentifier},
		{"injected field", types.WhereClause{Field: `a" OR 1=1 --`, Value: 1}, types.ErrInvalidIdentifier},
		{"bad operator", types.WhereClause{Field: "a", Operator: "OR 1=1", Value: 1}, types.ErrInvalidOperator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildWhere([]types.WhereClause{tt.where}, identity)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPhysicalType(t *testing.T) {
	m := mergeTypeMap(map[string]string{"Money": "integer", "string": "blob"})
	tests := []struct {
		logical string
		want    string
	}{
		{"email", "TEXT"},
		{"Boolean", "INTEGER"},
		{"varchar(255)", "TEXT"},
		{"decimal(10,2)", "REAL"},
		{"money", "INTEGER"},
		{"string", "BLOB"},
		{"numeric", "REAL"},
		{"something", "TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.logical, func(t *testing.T) {
			assert.Equal(t, tt.want, physicalType(m, tt.logical))
		})
	}
}

func TestCoerce(t *testing.T) {
	intCol := column{name: "n", logical: "integer", physical: "INTEGER"}
	realCol := column{name: "r", logical: "number", physical: "REAL"}
	textCol := column{name: "s", logical: "string", physical: "TEXT"}
	boolCol := column{name: "b", logical: "boolean", physical: "INTEGER"}
	jsonCol := column{name: "j", logical: "json", physical: "TEXT"}
	enumCol := column{name: "e", logical: "string", physical: "TEXT", enum: []string{"a", "b"}}

	tests := []struct {
		name    string
		col     column
		in      any
		strict  bool
		want    any
		wantErr bool
	}{
		{"int from string", intCol, " 12 ", true, int64(12), false},
		{"int from whole float string", intCol, "3.0", true, int64(3), false},
		{"int from float", intCol, float64(5), true, int64(5), false},
		{"int from fraction strict", intCol, 5.5, true, nil, true},
		{"int from junk strict", intCol, "x", true, nil, true},
		{"int from junk lenient", intCol, "x", false, "x", false},
		{"real from string", realCol, "1.5", true, 1.5, false},
		{"text from float", textCol, float64(2.5), true, "2.5", false},
		{"text from int", textCol, 7, true, "7", false},
		{"bool from yes", boolCol, "yes", true, int64(1), false},
		{"bool from F", boolCol, "F", true, int64(0), false},
		{"bool from bool", boolCol, true, true, int64(1), false},
		{"bool junk strict", boolCol, "maybe", true, nil, true},
		{"json valid", jsonCol, `{"a":1}`, true, `{"a":1}`, false},
		{"json invalid strict", jsonCol, `{a`, true, nil, true},
		{"json from slice", jsonCol, []int{1, 2}, true, "[1,2]", false},
		{"enum ok", enumCol, "a", true, "a", false},
		{"enum bad strict", enumCol, "z", true, nil, true},
		{"enum bad lenient", enumCol, "z", false, "z", false},
		{"nil", intCol, nil, true, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.col, tt.in, tt.strict)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToStorageAndBack(t *testing.T) {
	boolCol := column{logical: "bool"}
	assert.Equal(t, int64(1), toStorage(boolCol, true))
	assert.Equal(t, true, fromStorage(boolCol, int64(1)))
	assert.Equal(t, false, fromStorage(boolCol, int64(0)))

	jsonCol := column{logical: "array"}
	stored := toStorage(jsonCol, []string{"x"})
	assert.Equal(t, `["x"]`, stored)
	assert.Equal(t, []any{"x"}, fromStorage(jsonCol, stored))
	assert.Equal(t, "not json", fromStorage(jsonCol, "not json"))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	assert.Equal(t, "2026-01-02T03:04:05.000000006Z", toStorage(column{}, ts))
	assert.Equal(t, `{"a":1}`, toStorage(column{}, map[string]int{"a": 1}))
	assert.Equal(t, []byte{1}, toStorage(column{}, []byte{1}))
}

func TestTableDDL(t *testing.T) {
	table := types.TableSchema{
		Name: "orders",
		Cols: []types.ColumnDefinition{
			{Name: "id", Type: "integer", Constraints: "PRIMARY AUTO_INCREMENT"},
			{Name: "user_id", Type: "integer", Constraints: "NOT NULL"},
			{Name: "code", Type: "string", Constraints: "UNIQUE DEFAULT 'n/a'"},
			{Name: "created", Type: "timestamp", Default: "current_timestamp"},
		},
		ForeignKeys: []types.ForeignKeyDefinition{
			{Column: "user_id", References: types.ForeignTarget{Table: "users", Column: "id"}, OnDelete: "cascade"},
		},
		Indexes: []types.IndexDefinition{{Name: "idx_orders_user", Columns: []string{"user_id"}}, {Columns: []string{"code", "user_id"}, Unique: true}},
	}

	ddl, err := tableDDL(table, defaultTypeMap())
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "orders" (
    "id" INTEGER PRIMARY KEY AUTOINCREMENT,
    "user_id" INTEGER NOT NULL,
    "code" TEXT UNIQUE DEFAULT 'n/a',
    "created" TEXT DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE
)`, ddl)

	idx, err := indexDDL(table)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`CREATE INDEX IF NOT EXISTS "idx_orders_user" ON "orders" ("user_id")`,
		`CREATE UNIQUE INDEX IF NOT EXISTS "idx_orders_code_user_id" ON "orders" ("code", "user_id")`,
	}, idx)

	composite := types.TableSchema{
		Name: "pairs",
		Cols: []types.ColumnDefinition{
			{Name: "a", Type: "string", PrimaryKey: true},
			{Name: "b", Type: "string", PrimaryKey: true},
		},
	}
	ddl, err = tableDDL(composite, defaultTypeMap())
	require.NoError(t, err)
	assert.Contains(t, ddl, `PRIMARY KEY ("a", "b")`)

	bad := table
	bad.ForeignKeys = []types.ForeignKeyDefinition{{Column: "user_id", References: types.ForeignTarget{Table: "users", Column: "id"}, OnDelete: "explode"}}
	_, err = tableDDL(bad, defaultTypeMap())
	assert.Error(t, err)
}
