package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

func emailRows(emails ...string) []types.Row {
	rows := make([]types.Row, len(emails))
	for i, e := range emails {
		rows[i] = types.Row{"email": e, "name": fmt.Sprintf("user %d", i)}
	}
	return rows
}

func countUsers(t *testing.T, e *Engine) int64 {
	t.Helper()
	n, err := e.Count(context.Background(), "users", nil)
	require.NoError(t, err)
	return n
}

func TestImport_FailureRollsBackEverything(t *testing.T) {
	e := setupEngine(t, usersSchema("1"))

	result, err := e.ImportData(context.Background(), types.ImportOptions{
		Table: "users",
		Rows:  emailRows("a@x.com", "b@x.com", "a@x.com", "c@x.com", "d@x.com"),
	})
	require.Error(t, err)
	assert.True(t, types.IsImportError(err))
	assert.ErrorIs(t, err, types.ErrUniqueViolation)

	require.NotNil(t, result)
	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, 0, result.SuccessRows)
	assert.Equal(t, 1, result.ErrorRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].RowIndex)

	assert.Zero(t, countUsers(t, e), "no row of a failed job survives")
	assert.False(t, e.InTransaction())
}

func TestImport_SkipErrorsIsolatesRows(t *testing.T) {
	e := setupEngine(t, usersSchema("1"))

	var reported []int
	result, err := e.ImportData(context.Background(), types.ImportOptions{
		Table:      "users",
		Rows:       emailRows("a@x.com", "b@x.com", "a@x.com", "c@x.com", "d@x.com"),
		SkipErrors: true,
		BatchSize:  2,
		OnError:    func(ie types.ImportError) { reported = append(reported, ie.RowIndex) },
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessRows)
	assert.Equal(t, 1, result.ErrorRows)
	assert.Equal(t, []int{2}, reported)
	assert.ErrorIs(t, result.Errors[0], types.ErrUniqueViolation)
	assert.EqualValues(t, 4, countUsers(t, e))
}

func TestImport_Progress(t *testing.T) {
	e := setupEngine(t, usersSchema("1"))

	emails := make([]string, 250)
	for i := range emails {
		emails[i] = fmt.Sprintf("u%d@x.com", i)
	}
	var calls [][2]int
	_, err := e.ImportData(context.Background(), types.ImportOptions{
		Table:            "users",
		Rows:             emailRows(emails...),
		BatchSize:        30,
		ProgressInterval: 100,
		OnProgress:       func(done, total int) { calls = append(calls, [2]int{done, total}) },
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{100, 250}, {200, 250}, {250, 250}}, calls,
		"progress follows the interval, not batch boundaries, and fires once at the end")
}

func TestImport_Validation(t *testing.T) {
	tests := []struct {
		name string
		row  types.Row
		want error
	}{
		{"missing not null", types.Row{"name": "no email"}, types.ErrNotNullViolation},
		{"null not null", types.Row{"email": nil}, types.ErrNotNullViolation},
		{"bad integer", types.Row{"email": "x@x.com", "age": "old"}, nil},
		{"bad boolean", types.Row{"email": "y@x.com", "active": "maybe"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupEngine(t, usersSchema("1"))
			result, err := e.ImportData(context.Background(), types.ImportOptions{
				Table:        "users",
				Rows:         []types.Row{tt.row},
				ValidateData: true,
				SkipErrors:   true,
			})
			require.NoError(t, err)
			require.Equal(t, 1, result.ErrorRows)
			if tt.want != nil {
				assert.ErrorIs(t, result.Errors[0], tt.want)
			}
			assert.Zero(t, countUsers(t, e))
		})
	}
}

func TestImport_Coercion(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t, usersSchema("1"))

	_, err := e.ImportData(ctx, types.ImportOptions{
		Table: "users",
		Rows: []types.Row{
			{"email": "a@x.com", "age": "42", "active": "no", "unknown_column": "dropped"},
			{"email": "b@x.com", "age": float64(7), "active": "yes"},
		},
		ValidateData: true,
	})
	require.NoError(t, err)

	row, err := e.Select(ctx, "users", types.QueryOptions{Where: []types.WhereClause{types.Eq("email", "a@x.com")}})
	require.NoError(t, err)
	assert.EqualValues(t, 42, row["age"])
	assert.Equal(t, false, row["active"])

	row, err = e.Select(ctx, "users", types.QueryOptions{Where: []types.WhereClause{types.Eq("email", "b@x.com")}})
	require.NoError(t, err)
	assert.EqualValues(t, 7, row["age"])
	assert.Equal(t, true, row["active"])
}

func TestImport_AutoIncrement(t *testing.T) {
	ctx := context.Background()

	e := setupEngine(t, usersSchema("1"))
	_, err := e.ImportData(ctx, types.ImportOptions{Table: "users", Rows: []types.Row{{"id": 100, "email": "a@x.com"}}})
	require.NoError(t, err)
	_, err = e.FindByID(ctx, "users", 1)
	assert.NoError(t, err, "supplied auto-increment values are dropped by default")

	e = setupEngine(t, usersSchema("1"))
	_, err = e.ImportData(ctx, types.ImportOptions{
		Table:                "users",
		Rows:                 []types.Row{{"id": 100, "email": "a@x.com"}},
		IncludeAutoIncrement: true,
	})
	require.NoError(t, err)
	_, err = e.FindByID(ctx, "users", 100)
	assert.NoError(t, err)
}

func TestImport_UpdateOnConflict(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t, usersSchema("1"))

	_, err := e.ImportData(ctx, types.ImportOptions{Table: "users", Rows: []types.Row{{"email": "a@x.com", "name": "old"}}})
	require.NoError(t, err)

	result, err := e.ImportData(ctx, types.ImportOptions{
		Table:            "users",
		Rows:             []types.Row{{"email": "a@x.com", "name": "new"}, {"email": "b@x.com", "name": "b"}},
		UpdateOnConflict: true,
		ConflictColumns:  []string{"email"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessRows)
	assert.EqualValues(t, 2, countUsers(t, e))

	row, err := e.Select(ctx, "users", types.QueryOptions{Where: []types.WhereClause{types.Eq("email", "a@x.com")}})
	require.NoError(t, err)
	assert.Equal(t, "new", row["name"])
}

func TestImport_UpdateOnConflictDefaultsToUniqueColumns(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t, usersSchema("1"))

	_, err := e.ImportData(ctx, types.ImportOptions{Table: "users", Rows: []types.Row{{"email": "a@x.com", "name": "old"}}})
	require.NoError(t, err)

	result, err := e.ImportData(ctx, types.ImportOptions{
		Table:            "users",
		Rows:             []types.Row{{"id": 7, "email": "a@x.com", "name": "new"}},
		UpdateOnConflict: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessRows)
	assert.Zero(t, result.ErrorRows)
	assert.EqualValues(t, 1, countUsers(t, e))

	row, err := e.Select(ctx, "users", types.QueryOptions{Where: []types.WhereClause{types.Eq("email", "a@x.com")}})
	require.NoError(t, err)
	assert.Equal(t, "new", row["name"])
	assert.EqualValues(t, 1, row["id"])
}

func TestImport_ColumnMappings(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t, usersSchema("1"))

	_, err := e.ImportData(ctx, types.ImportOptions{
		Table: "users",
		Rows:  []types.Row{{"mail": "MiXeD@X.com", "full_name": "Ann"}},
		ColumnMappings: []types.ColumnMapping{
			{Source: "mail", Target: "email", Transform: func(v any) (any, error) {
				return strings.ToLower(v.(string)), nil
			}},
			{Source: "full_name", Target: "name"},
		},
	})
	require.NoError(t, err)

	row, err := e.Select(ctx, "users", types.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mixed@x.com", row["email"])
	assert.Equal(t, "Ann", row["name"])
}

func TestImport_RefusesInsideTransaction(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t, usersSchema("1"))

	require.NoError(t, e.BeginTransaction(ctx))
	_, err := e.ImportData(ctx, types.ImportOptions{Table: "users", Rows: emailRows("a@x.com")})
	assert.ErrorIs(t, err, types.ErrTransactionActive)
	require.NoError(t, e.Rollback(ctx))

	_, err = e.ImportData(ctx, types.ImportOptions{Table: "missing", Rows: emailRows("a@x.com")})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestImport_Empty(t *testing.T) {
	e := setupEngine(t, usersSchema("1"))
	var calls int
	result, err := e.ImportData(context.Background(), types.ImportOptions{
		Table:      "users",
		OnProgress: func(int, int) { calls++ },
	})
	require.NoError(t, err)
	assert.Zero(t, result.TotalRows)
	assert.Equal(t, 1, calls)
}
