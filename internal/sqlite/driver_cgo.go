//go:build cgo_sqlite

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

func init() {
	cgoDriver = NewCGODriver
}

// NewCGODriver returns the driver backed by mattn/go-sqlite3.
// Build with: go build -tags cgo_sqlite (requires CGO_ENABLED=1).
func NewCGODriver(opts ...Option) *Driver {
	d := newDriver(CGODriverName, "sqlite3", classifyMattn, opts)
	d.supported = probeCGO
	return d
}

func classifyMattn(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return classifyCode(int(se.ExtendedCode), err)
	}
	return classifyMessage(err)
}

var (
	probeOnce sync.Once
	probeOK   bool
)

// probeCGO opens a throwaway in-memory store once per process. A binary
// built with the tag but CGO disabled links a stub that fails here.
func probeCGO() bool {
	probeOnce.Do(func() {
		db, err := sql.Open("sqlite3", MemoryPath)
		if err != nil {
			return
		}
		defer db.Close()
		probeOK = db.PingContext(context.Background()) == nil
	})
	return probeOK
}
