package types

import "context"

// Row is one result row keyed by column name.
type Row map[string]any

// Result is what a Conn returns for every statement. Rows is empty for
// statements that do not produce rows.
type Result struct {
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
}

// First returns the first row of the result, or nil when there is none.
func (r *Result) First() Row {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Driver is the capability set a platform driver implements: report whether
// it can run in this process, and open a named store.
type Driver interface {
	// Name identifies the driver in configuration and logs.
	Name() string

	// IsSupported reports whether the driver can run in the current build.
	IsSupported() bool

	// Connect opens the store at path and returns a live handle. The path
	// ":memory:" opens a private in-memory store.
	Connect(ctx context.Context, path string) (Conn, error)
}

// Conn is a live handle to one physical store. Params are always passed to
// the underlying engine as bound parameters.
type Conn interface {
	Execute(ctx context.Context, query string, params ...any) (*Result, error)
	Close() error
}
