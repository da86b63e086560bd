package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Conn is a live handle to one store. All statements run on a single pinned
// session in the order they are issued.
type Conn struct {
	mu       sync.Mutex
	db       *sql.DB
	conn     *sql.Conn
	path     string
	classify func(error) error
	closed   bool
}

// Path returns the path the handle was opened with.
func (c *Conn) Path() string { return c.path }

// Execute runs one statement with bound params. Row-returning statements
// fill Result.Rows; others report RowsAffected and LastInsertID.
func (c *Conn) Execute(ctx context.Context, query string, params ...any) (*types.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrClosed
	}

	if returnsRows(query) {
		rows, err := c.conn.QueryContext(ctx, query, params...)
		if err != nil {
			return nil, c.classify(err)
		}
		out, err := scanRows(rows)
		if err != nil {
			return nil, c.classify(err)
		}
		return &types.Result{Rows: out, RowsAffected: int64(len(out))}, nil
	}

	res, err := c.conn.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, c.classify(err)
	}
	out := &types.Result{}
	// Both values are best effort; SQLite drivers report them for every
	// statement, DDL included.
	out.RowsAffected, _ = res.RowsAffected()
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

// Close releases the session and the pool. Close is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Join(c.conn.Close(), c.db.Close())
}

func scanRows(rows *sql.Rows) ([]types.Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []types.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				cp := make([]byte, len(b))
				copy(cp, b)
				row[col] = cp
				continue
			}
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// rowKeywords lists the leading keywords of statements that produce rows.
var rowKeywords = map[string]bool{
	"SELECT":  true,
	"PRAGMA":  true,
	"WITH":    true,
	"VALUES":  true,
	"EXPLAIN": true,
}

// returnsRows reports whether the statement should be run as a query.
func returnsRows(query string) bool {
	q := strings.ToUpper(stripLeadingComments(query))
	end := strings.IndexFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	keyword := q
	if end >= 0 {
		keyword = q[:end]
	}
	if rowKeywords[keyword] {
		return true
	}
	for _, word := range strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	}) {
		if word == "RETURNING" {
			return true
		}
	}
	return false
}

func stripLeadingComments(q string) string {
	for {
		q = strings.TrimLeftFunc(q, unicode.IsSpace)
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q, "*/")
			if i < 0 {
				return ""
			}
			q = q[i+2:]
		default:
			return q
		}
	}
}
