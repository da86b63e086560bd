// Package drivertest provides a types.Driver wrapper that records every
// statement sent to the stores it opens.
package drivertest

import (
	"context"
	"strings"
	"sync"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Recorder wraps a driver and records statements per store path.
type Recorder struct {
	types.Driver

	mu         sync.Mutex
	statements []Statement
	connects   map[string]int
}

// Statement is one recorded call.
type Statement struct {
	Path  string
	Query string
}

// NewRecorder wraps d.
func NewRecorder(d types.Driver) *Recorder {
	return &Recorder{Driver: d, connects: make(map[string]int)}
}

// Connect opens the store through the wrapped driver and records the
// handle's statements.
func (r *Recorder) Connect(ctx context.Context, path string) (types.Conn, error) {
	conn, err := r.Driver.Connect(ctx, path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.connects[path]++
	r.mu.Unlock()
	return &recordingConn{Conn: conn, path: path, r: r}, nil
}

// Statements returns a copy of everything recorded so far.
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.statements...)
}

// DDL returns the recorded CREATE, DROP and ALTER statements.
func (r *Recorder) DDL() []Statement {
	var out []Statement
	for _, s := range r.Statements() {
		if IsDDL(s.Query) {
			out = append(out, s)
		}
	}
	return out
}

// Connects returns how many handles were opened for path.
func (r *Recorder) Connects(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects[path]
}

// Reset forgets recorded statements and connects.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = nil
	r.connects = make(map[string]int)
}

// IsDDL reports whether query changes the schema.
func IsDDL(query string) bool {
	fields := strings.Fields(strings.ToUpper(query))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "CREATE", "DROP", "ALTER":
		return true
	}
	return false
}

type recordingConn struct {
	types.Conn
	path string
	r    *Recorder
}

func (c *recordingConn) Execute(ctx context.Context, query string, params ...any) (*types.Result, error) {
	c.r.mu.Lock()
	c.r.statements = append(c.r.statements, Statement{Path: c.path, Query: query})
	c.r.mu.Unlock()
	return c.Conn.Execute(ctx, query, params...)
}
