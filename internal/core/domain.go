package core

import (
	"errors"
	"strings"
	"time"
)

// Uncategorized is the bucket for records whose category is empty or blank.
const Uncategorized = "Uncategorized"

// DateLayout is the calendar date form stored on every record.
const DateLayout = "2006-01-02"

// TimestampLayout matches the millisecond ISO-8601 form used for CreatedAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	// Expense is the only persisted entity. ReceiptData holds either an
	// embedded payload (before sync), a server reference path (after sync),
	// or nothing.
	Expense struct {
		ID          string  `json:"id"`
		Date        string  `json:"date"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Traveler    string  `json:"traveler"`
		Description string  `json:"description"`
		ReceiptData string  `json:"receiptData,omitempty"`
		CreatedAt   string  `json:"createdAt"`
		UpdatedAt   *int64  `json:"updatedAt,omitempty"`
		Synced      bool    `json:"synced"`
	}

	// SyncAck is the minimal per-record acknowledgement returned by the
	// sync endpoint.
	SyncAck struct {
		ID          string `json:"id"`
		ReceiptData string `json:"receiptData,omitempty"`
	}
)

var (
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrNotFound           = errors.New("expense not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrSyncFailed         = errors.New("sync failed")
	ErrMalformedResponse  = errors.New("malformed sync response")
)

// NormalizeCategory returns the trimmed category, or Uncategorized when
// nothing is left. Stored records are never rewritten with this value.
func NormalizeCategory(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return Uncategorized
	}
	return c
}

// NormalizedCategory is NormalizeCategory applied to the record.
func (e Expense) NormalizedCategory() string {
	return NormalizeCategory(e.Category)
}

// HasReceipt reports whether any receipt representation is present.
func (e Expense) HasReceipt() bool {
	return e.ReceiptData != ""
}

// CreatedTime parses CreatedAt. Unparseable values yield the zero time.
func (e Expense) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a copy that shares no memory with e.
func (e Expense) Clone() Expense {
	out := e
	if e.UpdatedAt != nil {
		v := *e.UpdatedAt
		out.UpdatedAt = &v
	}
	return out
}

// FormatTimestamp renders t the way CreatedAt is stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Today returns t's calendar date in DateLayout.
func Today(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
