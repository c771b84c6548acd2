package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWrapRepositoryError(t *testing.T) {
	other := errors.New("syntax error")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: fmt.Errorf("query: %w", pgx.ErrNoRows), want: ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: ErrDuplicateKey},
		{name: "other pg error", err: &pgconn.PgError{Code: "42601"}, want: nil},
		{name: "passthrough", err: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapRepositoryError(tt.err)
			if tt.name == "other pg error" {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.True(t, IsConnectionError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsConnectionError(ErrNotFound))
}
