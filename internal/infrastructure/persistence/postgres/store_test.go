package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rezkam/jobq/internal/domain"
)

func TestClassify_TransientSQLStates(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03", "53300"} {
		err := fmt.Errorf("query failed: %w", &pgconn.PgError{Code: code})
		assert.ErrorIs(t, classify(err), domain.ErrTransient, "sqlstate %s", code)
	}
}

func TestClassify_OtherErrorsPassThrough(t *testing.T) {
	unique := fmt.Errorf("query failed: %w", &pgconn.PgError{Code: "23505"})
	assert.NotErrorIs(t, classify(unique), domain.ErrTransient)

	plain := errors.New("connection refused")
	assert.Equal(t, plain, classify(plain))

	assert.NoError(t, classify(nil))
}

func TestDurationMS(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(250), durationMS(start, start.Add(250*time.Millisecond)))
	assert.Equal(t, int64(0), durationMS(start, start))
	// Clock skew between start and finish never produces a negative duration.
	assert.Equal(t, int64(0), durationMS(start, start.Add(-time.Second)))
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))

	s := nullableString("boom")
	if assert.NotNil(t, s) {
		assert.Equal(t, "boom", *s)
	}
}
