package worker

import (
	"context"
	"encoding/json"
)

// PingResult echoes the payload back. Used as a diagnostic job type.
type PingResult struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload"`
}

// NewPingHandler returns the built-in "ping" handler.
func NewPingHandler() Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		return PingResult{OK: true, Payload: payload}, nil
	}
}
