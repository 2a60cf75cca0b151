package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/sheets"
)

// Store is what the worker reads from SQLite.
type Store interface {
	GetCard(ctx context.Context, id int64) (core.Card, error)
	GetPurchase(ctx context.Context, id int64) (core.Purchase, []core.Installment, error)
	GetInstallment(ctx context.Context, id int64) (core.Installment, error)
	ListUnexportedPurchases(ctx context.Context, limit int) ([]int64, error)
	ClaimPurchaseExport(ctx context.Context, id int64) (bool, error)
	ReleasePurchaseExport(ctx context.Context, id int64) error
}

// LedgerWorker copies ledger changes from SQLite to the installment journal.
// Messages carry IDs only; the worker reloads the current state before
// writing, so a message for a row that no longer exists is acknowledged and
// skipped.
type LedgerWorker struct {
	store     Store
	journal   sheets.JournalWriter
	batchSize int
	now       func() time.Time
}

func NewLedgerWorker(store Store, journal sheets.JournalWriter, batchSize int) *LedgerWorker {
	return &LedgerWorker{
		store:     store,
		journal:   journal,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleLedgerEvent processes one message from the queue. A returned error
// makes the consumer requeue the message.
func (w *LedgerWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event", msg.Event,
		"message_id", msg.ID,
		"purchase_id", msg.PurchaseID)

	switch msg.Event {
	case amqp.EventPurchaseCreated:
		err := w.ExportPurchase(ctx, msg.PurchaseID)
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Purchase no longer exists, skipping export", "purchase_id", msg.PurchaseID)
			return nil
		}
		return err
	case amqp.EventPurchaseDeleted:
		return w.recordRemoval(ctx, msg)
	case amqp.EventInstallmentPaid:
		err := w.recordPayment(ctx, msg.InstallmentID)
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Installment no longer exists, skipping payment", "installment_id", msg.InstallmentID)
			return nil
		}
		return err
	default:
		return fmt.Errorf("unsupported ledger event %q", msg.Event)
	}
}

// ExportPurchase writes the installment schedule of a purchase to the journal
// once. The purchase is claimed before writing, so the queue consumer and the
// reconciler never both append it; the claim is released if the write fails.
func (w *LedgerWorker) ExportPurchase(ctx context.Context, purchaseID int64) (err error) {
	claimed, err := w.store.ClaimPurchaseExport(ctx, purchaseID)
	if err != nil {
		return err
	}
	if !claimed {
		slog.DebugContext(ctx, "Purchase already exported", "purchase_id", purchaseID)
		return nil
	}
	defer func() {
		if err == nil {
			return
		}
		// Detached so a cancelled consumer still hands the purchase back.
		if rerr := w.store.ReleasePurchaseExport(context.WithoutCancel(ctx), purchaseID); rerr != nil && !errors.Is(rerr, core.ErrNotFound) {
			slog.ErrorContext(ctx, "Failed to release purchase export claim", "purchase_id", purchaseID, "error", rerr)
		}
	}()

	p, installments, err := w.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return err
	}
	card, err := w.store.GetCard(ctx, p.CardID)
	if err != nil {
		return fmt.Errorf("get card of purchase %d: %w", purchaseID, err)
	}

	recordedAt := w.now()
	rows := make([]sheets.JournalRow, len(installments))
	for i, in := range installments {
		rows[i] = sheets.JournalRow{
			RecordedAt:  recordedAt,
			Event:       sheets.EventScheduled,
			PurchaseID:  p.ID,
			Installment: fmt.Sprintf("%d/%d", in.Number, p.Installments),
			Card:        card.Name,
			Description: p.Description,
			Category:    p.CategoryName,
			DueDate:     in.DueDate,
			Amount:      in.Amount,
		}
	}

	ref, err := w.journal.Append(ctx, rows)
	if err != nil {
		return fmt.Errorf("append schedule of purchase %d: %w", purchaseID, err)
	}

	slog.InfoContext(ctx, "Exported purchase schedule",
		"purchase_id", purchaseID,
		"installments", len(rows),
		"journal_ref", ref)
	return nil
}

func (w *LedgerWorker) recordRemoval(ctx context.Context, msg *amqp.LedgerMessage) error {
	var cardName string
	if card, err := w.store.GetCard(ctx, msg.CardID); err == nil {
		cardName = card.Name
	}

	row := sheets.JournalRow{
		RecordedAt:  w.now(),
		Event:       sheets.EventRemoved,
		PurchaseID:  msg.PurchaseID,
		Card:        cardName,
		Description: msg.Description,
		Amount:      core.Money{Cents: msg.AmountCents},
	}
	if _, err := w.journal.Append(ctx, []sheets.JournalRow{row}); err != nil {
		return fmt.Errorf("append removal of purchase %d: %w", msg.PurchaseID, err)
	}
	return nil
}

func (w *LedgerWorker) recordPayment(ctx context.Context, installmentID int64) error {
	in, err := w.store.GetInstallment(ctx, installmentID)
	if err != nil {
		return err
	}
	p, _, err := w.store.GetPurchase(ctx, in.PurchaseID)
	if err != nil {
		return err
	}
	card, err := w.store.GetCard(ctx, in.CardID)
	if err != nil {
		return err
	}

	row := sheets.JournalRow{
		RecordedAt:  w.now(),
		Event:       sheets.EventPaid,
		PurchaseID:  p.ID,
		Installment: fmt.Sprintf("%d/%d", in.Number, p.Installments),
		Card:        card.Name,
		Description: p.Description,
		Category:    p.CategoryName,
		DueDate:     in.DueDate,
		Amount:      in.Amount,
	}
	if _, err := w.journal.Append(ctx, []sheets.JournalRow{row}); err != nil {
		return fmt.Errorf("append payment of installment %d: %w", installmentID, err)
	}
	return nil
}

// ProcessPendingPurchases exports purchases whose purchase.created message was
// lost or never published. It returns how many were exported.
func (w *LedgerWorker) ProcessPendingPurchases(ctx context.Context) (int, error) {
	return w.exportPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger reconciliation pass when the worker starts.
func (w *LedgerWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.exportPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending purchases found on startup")
	}
	return nil
}

func (w *LedgerWorker) exportPending(ctx context.Context, limit int) (int, error) {
	ids, err := w.store.ListUnexportedPurchases(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unexported purchases: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending purchases", "count", len(ids))

	exported, failed := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := w.ExportPurchase(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export purchase", "purchase_id", id, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Pending purchases processed",
		"total", len(ids),
		"exported", exported,
		"errors", failed)
	return exported, nil
}
