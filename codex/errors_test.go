package codex

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", notFound("quest %d not found", 3))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrDuplicate)

	assert.ErrorIs(t, databaseError("get", gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, databaseError("create", gorm.ErrDuplicatedKey), ErrDuplicate)
	assert.ErrorIs(t, databaseError("create", errors.New("disk I/O error")), ErrDatabase)
	assert.Nil(t, databaseError("noop", nil))

	// already classified errors keep their kind
	assert.ErrorIs(t, databaseError("update", conflict("stale")), ErrConflict)
}

func TestResultFromError(t *testing.T) {
	res := ResultFromError(fieldErrors{"title": "title is required"}.err())
	assert.False(t, res.Success)
	assert.Equal(t, ErrorValidation, res.ErrorType)
	assert.Equal(t, "title is required", res.Fields["title"])

	res = ResultFromError(databaseError("create", errors.New("database is locked")))
	assert.Equal(t, ErrorDatabase, res.ErrorType)
	// internal details never reach the caller
	assert.NotContains(t, res.Error, "locked")

	res = ResultFromError(errors.New("plain"))
	assert.Equal(t, ErrorDatabase, res.ErrorType)

	ok := Ok(42)
	assert.True(t, ok.Success)
	assert.Equal(t, 42, ok.Data)
}
