// Package sheets defines the installment journal: an append-only log of
// scheduled, paid and removed installments kept outside the database.
package sheets

import (
	"context"
	"time"

	"financas/internal/core"
)

// Journal events
const (
	EventScheduled = "scheduled"
	EventPaid      = "paid"
	EventRemoved   = "removed"
)

// JournalHeader names the journal columns in the order of JournalRow.Values.
var JournalHeader = []any{
	"Recorded at", "Event", "Purchase", "Installment", "Card", "Description", "Category", "Due date", "Amount",
}

// JournalRow is one line of the journal. Installment is "n/N" for a single
// installment and empty for events about the whole purchase.
type JournalRow struct {
	RecordedAt  time.Time
	Event       string
	PurchaseID  int64
	Installment string
	Card        string
	Description string
	Category    string
	DueDate     core.Date
	Amount      core.Money
}

// Values renders the row for a spreadsheet. Amounts are plain decimal
// strings so that USER_ENTERED input turns them into numbers.
func (r JournalRow) Values() []any {
	return []any{
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Event,
		r.PurchaseID,
		r.Installment,
		r.Card,
		r.Description,
		r.Category,
		r.DueDate.String(),
		r.Amount.String(),
	}
}

// JournalWriter appends rows to the journal and returns a reference to
// where they landed.
type JournalWriter interface {
	Append(ctx context.Context, rows []JournalRow) (ref string, err error)
}
