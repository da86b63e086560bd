package types

import (
	"fmt"
	"time"
)

// Import defaults.
const (
	DefaultImportBatchSize        = 1000
	DefaultImportProgressInterval = 100
)

// ColumnMapping renames a source column and optionally transforms its value
// before coercion.
type ColumnMapping struct {
	Source    string
	Target    string
	Transform func(any) (any, error)
}

// ImportOptions describes one bulk import job.
type ImportOptions struct {
	Table string
	Rows  []Row

	// BatchSize groups rows for logging and scheduling; all batches share
	// one transaction.
	BatchSize int

	// ValidateData rejects rows whose NOT NULL columns without a default
	// have no value, and rows whose values cannot be coerced.
	ValidateData bool

	// SkipErrors records failing rows and keeps going. Without it the first
	// failure rolls back the whole job.
	SkipErrors bool

	// UpdateOnConflict turns a unique violation on insert into an UPDATE
	// keyed by ConflictColumns.
	UpdateOnConflict bool
	ConflictColumns  []string

	// IncludeAutoIncrement keeps values supplied for auto-increment primary
	// keys. By default they are dropped so the store assigns them.
	IncludeAutoIncrement bool

	ColumnMappings []ColumnMapping

	// ProgressInterval is the number of processed rows between OnProgress
	// calls.
	ProgressInterval int
	OnProgress       func(processed, total int)
	OnError          func(ImportError)
}

// ImportError describes one failed row.
type ImportError struct {
	RowIndex int
	Row      Row
	Err      error
}

// Error implements the error interface.
func (e ImportError) Error() string {
	return fmt.Sprintf("row %d: %v", e.RowIndex, e.Err)
}

// Unwrap returns the row failure.
func (e ImportError) Unwrap() error {
	return e.Err
}

// ImportResult summarises an import job.
type ImportResult struct {
	TotalRows     int
	SuccessRows   int
	ErrorRows     int
	Errors        []ImportError
	ExecutionTime time.Duration
}
