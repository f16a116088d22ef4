package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorClassifiesStoreErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"wrapped no rows", fmt.Errorf("lookup: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "tags_company_id_name_key"}, CodeConflict, http.StatusConflict},
		{"deadline", context.DeadlineExceeded, CodeTransient, http.StatusServiceUnavailable},
		{"canceled", context.Canceled, CodeTransient, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			domainErr := ToDomainError(tc.err)
			require.NotNil(t, domainErr)
			assert.Equal(t, tc.code, domainErr.Code)
			assert.Equal(t, tc.status, domainErr.HTTPStatus)
		})
	}
}

func TestToDomainErrorPassesThroughDomainErrors(t *testing.T) {
	original := NewForbidden("nope")
	assert.Same(t, original, error(ToDomainError(original)))

	wrapped := fmt.Errorf("handler: %w", original)
	assert.Equal(t, CodeForbidden, ToDomainError(wrapped).Code)
}

func TestClassifierPredicates(t *testing.T) {
	assert.True(t, IsNotFound(pgx.ErrNoRows))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsConflict(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsNotFound(nil))
}

func TestConflictCarriesConstraintDetail(t *testing.T) {
	domainErr := ToDomainError(&pgconn.PgError{Code: "23505", ConstraintName: "tags_company_id_name_key"})
	assert.Equal(t, "tags_company_id_name_key", domainErr.Details["constraint"])
}
