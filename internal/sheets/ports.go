package sheets

import (
	"context"
	"time"

	"vet/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror copies archived expenses into a spreadsheet.
	ExpenseMirror interface {
		MirrorExpenses(ctx context.Context, receivedAt time.Time, expenses []core.Expense) error
	}
)
