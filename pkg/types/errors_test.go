package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseErrorMessageNamesTarget(t *testing.T) {
	err := NewCapacityError("open_connection", "secondary", "1 of 1 handles open")
	assert.Equal(t, `open_connection "secondary": 1 of 1 handles open: connection capacity exceeded`, err.Error())
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.True(t, IsCapacityError(err))
	assert.False(t, IsAccessError(err))
}

func TestDatabaseErrorClassificationThroughWrapping(t *testing.T) {
	base := NewAccessError("get_connection", "billing", "not granted to active roles")
	wrapped := fmt.Errorf("loading invoices: %w", base)

	assert.True(t, IsAccessError(wrapped))
	assert.True(t, errors.Is(wrapped, ErrAccessDenied))

	var dbErr *DatabaseError
	if assert.True(t, errors.As(wrapped, &dbErr)) {
		assert.Equal(t, "billing", dbErr.Target)
		assert.Equal(t, ErrorTypeAccess, dbErr.Type)
	}
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "integrity", ErrorTypeIntegrity.String())
	assert.Equal(t, "ErrorType(99)", ErrorType(99).String())
}
