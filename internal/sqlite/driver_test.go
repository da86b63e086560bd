package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

func setupConn(t *testing.T) types.Conn {
	t.Helper()
	conn, err := NewDriver().Connect(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Execute(context.Background(),
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE, team_id INTEGER REFERENCES teams(id))`)
	require.NoError(t, err)
	_, err = conn.Execute(context.Background(), `CREATE TABLE teams (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	return conn
}

func TestDriver_Basics(t *testing.T) {
	d := NewDriver()
	assert.Equal(t, DriverName, d.Name())
	assert.True(t, d.IsSupported())

	drivers := DefaultDrivers()
	require.NotEmpty(t, drivers)
	assert.Equal(t, DriverName, drivers[len(drivers)-1].Name())
}

func TestDriver_ConnectCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.db")

	conn, err := NewDriver().Connect(context.Background(), path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Execute(context.Background(), "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err, "store file should exist after first write")
}

func TestDriver_Pragmas(t *testing.T) {
	conn, err := NewDriver(WithBusyTimeout(1234)).Connect(context.Background(), "")
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.Execute(context.Background(), "PRAGMA foreign_keys")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 1, res.First()["foreign_keys"])
}

func TestConn_ExecuteAndSelect(t *testing.T) {
	conn := setupConn(t)
	ctx := context.Background()

	res, err := conn.Execute(ctx, "INSERT INTO users (email) VALUES (?)", "a@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RowsAffected)
	assert.EqualValues(t, 1, res.LastInsertID)

	res, err = conn.Execute(ctx, "SELECT id, email FROM users WHERE email = ?", "a@example.com")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "a@example.com", res.First()["email"])

	res, err = conn.Execute(ctx, "INSERT INTO users (email) VALUES (?) RETURNING id", "b@example.com")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 2, res.First()["id"])
}

func TestConn_BlobRoundTrip(t *testing.T) {
	conn := setupConn(t)
	ctx := context.Background()

	_, err := conn.Execute(ctx, "CREATE TABLE files (data BLOB)")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO files (data) VALUES (?)", []byte{0, 1, 2})
	require.NoError(t, err)

	res, err := conn.Execute(ctx, "SELECT data FROM files")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, res.First()["data"])
}

func TestConn_ConstraintClassification(t *testing.T) {
	conn := setupConn(t)
	ctx := context.Background()

	_, err := conn.Execute(ctx, "INSERT INTO users (email) VALUES (?)", "dup@example.com")
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    string
		args     []any
		sentinel error
	}{
		{"unique", "INSERT INTO users (email) VALUES (?)", []any{"dup@example.com"}, types.ErrUniqueViolation},
		{"primary key", "INSERT INTO users (id, email) VALUES (1, ?)", []any{"other@example.com"}, types.ErrUniqueViolation},
		{"not null", "INSERT INTO users (email) VALUES (NULL)", nil, types.ErrNotNullViolation},
		{"foreign key", "INSERT INTO users (email, team_id) VALUES (?, 99)", []any{"fk@example.com"}, types.ErrForeignKeyViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conn.Execute(ctx, tt.query, tt.args...)
			require.Error(t, err)
			assert.True(t, types.IsConstraintError(err), "got %v", err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestConn_TransactionStatementsShareSession(t *testing.T) {
	conn := setupConn(t)
	ctx := context.Background()

	_, err := conn.Execute(ctx, "BEGIN")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO users (email) VALUES (?)", "tx@example.com")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "ROLLBACK")
	require.NoError(t, err)

	res, err := conn.Execute(ctx, "SELECT COUNT(*) AS n FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.First()["n"])
}

func TestConn_Close(t *testing.T) {
	conn, err := NewDriver().Connect(context.Background(), MemoryPath)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "second Close should be a no-op")

	_, err = conn.Execute(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"PRAGMA table_info(t)", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"VALUES (1), (2)", true},
		{"EXPLAIN QUERY PLAN SELECT 1", true},
		{"-- note\nSELECT 1", true},
		{"/* c */ SELECT 1", true},
		{"INSERT INTO t (a) VALUES (1) RETURNING id", true},
		{"INSERT INTO t (a) VALUES (1)", false},
		{"UPDATE t SET returning_count = 1", false},
		{"CREATE TABLE t (x INTEGER)", false},
		{"BEGIN", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, returnsRows(tt.query))
		})
	}
}

func TestClassifyMessage(t *testing.T) {
	err := classifyMessage(errors.New("UNIQUE constraint failed: users.email"))
	assert.ErrorIs(t, err, types.ErrUniqueViolation)

	plain := errors.New("no such table: nope")
	assert.Same(t, plain, classifyMessage(plain))
	assert.NoError(t, classifyMessage(nil))
}
