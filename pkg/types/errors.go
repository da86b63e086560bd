package types

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	ErrSchemaNotFound    = errors.New("schema not registered")
	ErrRoleNotFound      = errors.New("role not registered")
	ErrInvalidSchema     = errors.New("invalid schema definition")
	ErrInvalidCapacity   = errors.New("invalid connection capacity")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNoDriver          = errors.New("no supported driver registered")
)

// Capacity, access and integrity errors.
var (
	ErrCapacityExceeded      = errors.New("connection capacity exceeded")
	ErrAccessDenied          = errors.New("access denied")
	ErrIntegrityCheck        = errors.New("integrity probe failed")
	ErrSchemaVersionMismatch = errors.New("schema version mismatch")
	ErrStoreMissing          = errors.New("physical store does not exist")
	ErrClosed                = errors.New("connection is closed")
)

// Query, transaction and data errors.
var (
	ErrTransactionActive  = errors.New("transaction already in progress")
	ErrNoTransaction      = errors.New("no transaction in progress")
	ErrUnconditionalWrite = errors.New("update and delete require at least one where clause")
	ErrNotFound           = errors.New("record not found")
	ErrEmptyData          = errors.New("no column values supplied")
	ErrInvalidOperator    = errors.New("invalid where operator")
)

// Constraint errors reported by drivers.
var (
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrNotNullViolation    = errors.New("not null constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// ErrorType classifies a DatabaseError.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeCapacity
	ErrorTypeAccess
	ErrorTypeIntegrity
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeQuery
	ErrorTypeConstraint
	ErrorTypeImport
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:       "unknown",
	ErrorTypeConfiguration: "configuration",
	ErrorTypeCapacity:      "capacity",
	ErrorTypeAccess:        "access",
	ErrorTypeIntegrity:     "integrity",
	ErrorTypeConnection:    "connection",
	ErrorTypeTransaction:   "transaction",
	ErrorTypeQuery:         "query",
	ErrorTypeConstraint:    "constraint",
	ErrorTypeImport:        "import",
}

// String returns the lower-case name of the error type.
func (t ErrorType) String() string {
	if s, ok := errorTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// DatabaseError carries the classification, the failing operation and the
// logical database, table or role it concerns. Cause usually holds one of
// the sentinel errors above, optionally joined with the driver error.
type DatabaseError struct {
	Type      ErrorType
	Operation string
	Target    string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	msg := e.Operation
	if e.Target != "" {
		msg += fmt.Sprintf(" %q", e.Target)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a DatabaseError of the given type.
func NewDatabaseError(errorType ErrorType, operation, target, message string, cause error) *DatabaseError {
	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Target:    target,
		Message:   message,
		Cause:     cause,
	}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConfiguration, operation, target, message, cause)
}

// NewCapacityError creates a capacity error wrapping ErrCapacityExceeded.
func NewCapacityError(operation, target, message string) *DatabaseError {
	return NewDatabaseError(ErrorTypeCapacity, operation, target, message, ErrCapacityExceeded)
}

// NewAccessError creates an access error wrapping ErrAccessDenied.
func NewAccessError(operation, target, message string) *DatabaseError {
	return NewDatabaseError(ErrorTypeAccess, operation, target, message, ErrAccessDenied)
}

// NewIntegrityError creates an integrity error.
func NewIntegrityError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeIntegrity, operation, target, message, cause)
}

// NewConnectionError creates a connection error.
func NewConnectionError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConnection, operation, target, message, cause)
}

// NewTransactionError creates a transaction error.
func NewTransactionError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeTransaction, operation, target, message, cause)
}

// NewQueryError creates a query error.
func NewQueryError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeQuery, operation, target, message, cause)
}

// NewConstraintError creates a constraint error.
func NewConstraintError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConstraint, operation, target, message, cause)
}

// NewImportError creates an import error.
func NewImportError(operation, target, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeImport, operation, target, message, cause)
}

func isType(err error, t ErrorType) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Type == t
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsCapacityError reports whether err is a capacity error.
func IsCapacityError(err error) bool { return isType(err, ErrorTypeCapacity) }

// IsAccessError reports whether err is an access error.
func IsAccessError(err error) bool { return isType(err, ErrorTypeAccess) }

// IsIntegrityError reports whether err is an integrity error.
func IsIntegrityError(err error) bool { return isType(err, ErrorTypeIntegrity) }

// IsConnectionError reports whether err is a connection error.
func IsConnectionError(err error) bool { return isType(err, ErrorTypeConnection) }

// IsTransactionError reports whether err is a transaction error.
func IsTransactionError(err error) bool { return isType(err, ErrorTypeTransaction) }

// IsQueryError reports whether err is a query error.
func IsQueryError(err error) bool { return isType(err, ErrorTypeQuery) }

// IsConstraintError reports whether err is a constraint error.
func IsConstraintError(err error) bool { return isType(err, ErrorTypeConstraint) }

// IsImportError reports whether err is an import error.
func IsImportError(err error) bool { return isType(err, ErrorTypeImport) }
