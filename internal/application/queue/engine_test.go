package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/jobq/internal/domain"
)

func TestEnqueueParams_Normalize_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	p := EnqueueParams{Type: "ping", Key: "k1"}
	require.NoError(t, p.Normalize(now))

	assert.Equal(t, json.RawMessage(`{}`), p.Payload)
	assert.Equal(t, now, p.RunAfter)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
}

func TestEnqueueParams_Normalize_PreservesExplicitValues(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	p := EnqueueParams{
		Type:        "ping",
		Key:         "k1",
		Payload:     json.RawMessage(`{"n":1}`),
		RunAfter:    later,
		MaxAttempts: 3,
	}
	require.NoError(t, p.Normalize(now))

	assert.Equal(t, json.RawMessage(`{"n":1}`), p.Payload)
	assert.Equal(t, later, p.RunAfter)
	assert.Equal(t, 3, p.MaxAttempts)
}

func TestEnqueueParams_Normalize_Invalid(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name   string
		params EnqueueParams
	}{
		{"missing type", EnqueueParams{Key: "k"}},
		{"missing key", EnqueueParams{Type: "ping"}},
		{"negative max attempts", EnqueueParams{Type: "ping", Key: "k", MaxAttempts: -1}},
		{"max attempts over ceiling", EnqueueParams{Type: "ping", Key: "k", MaxAttempts: MaxAttemptsCeiling + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Normalize(now)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ClampLimit(0))
	assert.Equal(t, DefaultListLimit, ClampLimit(-10))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, 75, ClampLimit(75))
	assert.Equal(t, MaxListLimit, ClampLimit(MaxListLimit))
	assert.Equal(t, MaxListLimit, ClampLimit(MaxListLimit+500))
}
