package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"vet/internal/archive"
	"vet/internal/core"
)

// ErrPayloadTooLarge is returned when the body exceeds the configured limit.
var ErrPayloadTooLarge = errors.New("payload too large")

// ParseSyncPayload reads a sync body of at most limit bytes and decodes it
// as one expense or an array of expenses.
func ParseSyncPayload(w http.ResponseWriter, r *http.Request, limit int64) ([]core.Expense, error) {
	if r.Body == nil {
		return nil, archive.ErrNoPayload
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return archive.DecodePayload(body)
}
