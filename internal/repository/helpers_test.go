package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleNotFound(t *testing.T) {
	type row struct{ ID string }

	t.Run("converts ErrNoRows to nil without error", func(t *testing.T) {
		result, err := HandleNotFound(&row{}, sql.ErrNoRows)
		assert.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("passes through other errors", func(t *testing.T) {
		cause := errors.New("connection reset")
		result, err := HandleNotFound(&row{}, cause)
		assert.Equal(t, cause, err)
		assert.Nil(t, result)
	})

	t.Run("returns result when no error", func(t *testing.T) {
		r := &row{ID: "a"}
		result, err := HandleNotFound(r, nil)
		assert.NoError(t, err)
		assert.Equal(t, r, result)
	})
}

func TestValuesPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		rows int
		cols int
		want string
	}{
		{"single row single col", 1, 1, "($1)"},
		{"single row multi col", 1, 3, "($1, $2, $3)"},
		{"multi row", 2, 3, "($1, $2, $3), ($4, $5, $6)"},
		{"three rows two cols", 3, 2, "($1, $2), ($3, $4), ($5, $6)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, valuesPlaceholders(tc.rows, tc.cols))
		})
	}
}
