package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/storage"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, msg *amqp.LedgerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) events() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Event
	}
	return out
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "financas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newCardService(t *testing.T, pub EventPublisher) (*CardService, *storage.SQLiteRepository) {
	t.Helper()
	repo := newRepo(t)
	scheduler, err := NewInstallmentScheduler(core.DayOverflowClamp)
	require.NoError(t, err)
	return NewCardService(repo, scheduler, pub, nil), repo
}

func mustCreateCard(t *testing.T, svc *CardService, limit int64) core.Card {
	t.Helper()
	usage, err := svc.CreateCard(context.Background(), core.Card{
		Name:       "Nubank",
		Limit:      core.Money{Cents: limit},
		ClosingDay: 10,
		DueDay:     17,
	})
	require.NoError(t, err)
	return usage.Card
}

func TestCardService_CreateCardDefaults(t *testing.T) {
	svc, _ := newCardService(t, nil)
	ctx := context.Background()

	usage, err := svc.CreateCard(ctx, core.Card{Name: "Inter", Limit: core.Money{Cents: 50000}, ClosingDay: 1, DueDay: 8})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCardColor, usage.Card.Color)
	assert.Equal(t, int64(0), usage.Used.Cents)
	assert.Equal(t, int64(50000), usage.Available.Cents)

	_, err = svc.CreateCard(ctx, core.Card{Name: "Bad", Limit: core.Money{Cents: 1}, ClosingDay: 32, DueDay: 8})
	assert.ErrorIs(t, err, core.ErrInvalidClosingDay)
}

func TestCardService_CreatePurchase(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newCardService(t, pub)
	ctx := context.Background()
	card := mustCreateCard(t, svc, 500000)

	detail, err := svc.CreatePurchase(ctx, PurchaseInput{
		Description:  "TV",
		Amount:       core.Money{Cents: 30000},
		Date:         core.NewDate(2024, 1, 15),
		Installments: 3,
		CardID:       card.ID,
	})
	require.NoError(t, err)

	assert.NotZero(t, detail.Purchase.ID)
	require.Len(t, detail.Installments, 3)
	for i, in := range detail.Installments {
		assert.Equal(t, i+1, in.Number)
		assert.Equal(t, int64(10000), in.Amount.Cents)
		assert.False(t, in.Paid)
	}
	assert.Equal(t, "2024-02-17", detail.Installments[0].DueDate.String())
	assert.Equal(t, "2024-04-17", detail.Installments[2].DueDate.String())
	assert.Equal(t, []amqp.EventType{amqp.EventPurchaseCreated}, pub.events())

	usage, err := svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), usage.Used.Cents)
	assert.Equal(t, int64(470000), usage.Available.Cents)
}

func TestCardService_CreatePurchaseCustomAmounts(t *testing.T) {
	svc, _ := newCardService(t, nil)
	card := mustCreateCard(t, svc, 500000)

	detail, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Description:   "Sofa",
		Amount:        core.Money{Cents: 10000},
		Date:          core.NewDate(2024, 3, 1),
		Installments:  2,
		CardID:        card.ID,
		CustomAmounts: []core.Money{{Cents: 7000}, {Cents: 3000}},
	})
	require.NoError(t, err)
	require.Len(t, detail.Installments, 2)
	assert.Equal(t, int64(7000), detail.Installments[0].Amount.Cents)
	assert.Equal(t, int64(3000), detail.Installments[1].Amount.Cents)
}

func TestCardService_CreatePurchaseErrors(t *testing.T) {
	pub := &recordingPublisher{}
	svc, repo := newCardService(t, pub)
	ctx := context.Background()
	card := mustCreateCard(t, svc, 100000)

	_, err := svc.CreatePurchase(ctx, PurchaseInput{
		Description: "Ghost", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 1),
		Installments: 2, CardID: card.ID + 100,
	})
	assert.ErrorIs(t, err, core.ErrInvalidCard)

	_, err = svc.CreatePurchase(ctx, PurchaseInput{
		Description: "Zero", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 1),
		Installments: 0, CardID: card.ID,
	})
	assert.ErrorIs(t, err, core.ErrInvalidInstallmentCount)

	missing := int64(9999)
	_, err = svc.CreatePurchase(ctx, PurchaseInput{
		Description: "Lamp", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 1),
		Installments: 1, CardID: card.ID, CategoryID: &missing,
	})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	purchases, err := repo.ListPurchasesByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, purchases)
	assert.Empty(t, pub.events())
}

func TestCardService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("connection refused")}
	svc, _ := newCardService(t, pub)
	card := mustCreateCard(t, svc, 100000)

	detail, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Description: "Book", Amount: core.Money{Cents: 4590}, Date: core.NewDate(2024, 6, 2),
		Installments: 1, CardID: card.ID,
	})
	require.NoError(t, err)
	assert.Len(t, detail.Installments, 1)
}

func TestCardService_DeleteCardGuard(t *testing.T) {
	svc, _ := newCardService(t, nil)
	ctx := context.Background()
	card := mustCreateCard(t, svc, 100000)

	detail, err := svc.CreatePurchase(ctx, PurchaseInput{
		Description: "Phone", Amount: core.Money{Cents: 20000}, Date: core.NewDate(2024, 1, 5),
		Installments: 2, CardID: card.ID,
	})
	require.NoError(t, err)

	err = svc.DeleteCard(ctx, card.ID)
	var pending *core.PendingInstallmentsError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 2, pending.Count)
	assert.ErrorIs(t, err, core.ErrPendingInstallments)

	for _, in := range detail.Installments {
		_, err := svc.PayInstallment(ctx, in.ID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteCard(ctx, card.ID))

	_, err = svc.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.GetPurchase(ctx, detail.Purchase.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteCard(ctx, card.ID), core.ErrNotFound)
}

func TestCardService_PayInstallmentIsIdempotent(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newCardService(t, pub)
	ctx := context.Background()
	card := mustCreateCard(t, svc, 100000)

	detail, err := svc.CreatePurchase(ctx, PurchaseInput{
		Description: "Shoes", Amount: core.Money{Cents: 15000}, Date: core.NewDate(2024, 2, 1),
		Installments: 3, CardID: card.ID,
	})
	require.NoError(t, err)

	first := detail.Installments[0]
	for i := 0; i < 2; i++ {
		paid, err := svc.PayInstallment(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, paid.Paid)
	}

	usage, err := svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), usage.Used.Cents)

	assert.Equal(t, []amqp.EventType{
		amqp.EventPurchaseCreated, amqp.EventInstallmentPaid, amqp.EventInstallmentPaid,
	}, pub.events())

	_, err = svc.PayInstallment(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCardService_UpdateAndDeletePurchase(t *testing.T) {
	pub := &recordingPublisher{}
	repo := newRepo(t)
	scheduler, err := NewInstallmentScheduler(core.DayOverflowClamp)
	require.NoError(t, err)
	reports := &countingInvalidator{}
	svc := NewCardService(repo, scheduler, pub, reports)
	ctx := context.Background()
	card := mustCreateCard(t, svc, 100000)

	detail, err := svc.CreatePurchase(ctx, PurchaseInput{
		Description: "Laptop", Amount: core.Money{Cents: 60000}, Date: core.NewDate(2024, 2, 1),
		Installments: 6, CardID: card.ID,
	})
	require.NoError(t, err)

	_, err = svc.UpdatePurchase(ctx, detail.Purchase.ID, "", nil)
	assert.ErrorIs(t, err, core.ErrEmptyDescription)

	updated, err := svc.UpdatePurchase(ctx, detail.Purchase.ID, "Work laptop", nil)
	require.NoError(t, err)
	assert.Equal(t, "Work laptop", updated.Description)
	assert.Equal(t, int64(60000), updated.Amount.Cents)
	assert.Equal(t, 1, reports.n)

	require.NoError(t, svc.DeletePurchase(ctx, detail.Purchase.ID))
	installments, err := svc.ListInstallments(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, installments)

	msgs := pub.msgs
	require.Len(t, msgs, 2)
	assert.Equal(t, amqp.EventPurchaseDeleted, msgs[1].Event)
	assert.Equal(t, "Work laptop", msgs[1].Description)
	assert.Equal(t, int64(60000), msgs[1].AmountCents)

	assert.ErrorIs(t, svc.DeletePurchase(ctx, detail.Purchase.ID), core.ErrNotFound)
}

func TestCardService_ListsRequireExistingCard(t *testing.T) {
	svc, _ := newCardService(t, nil)
	ctx := context.Background()

	_, err := svc.ListPurchases(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.ListInstallments(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCardService_DefaultsPurchaseDateToToday(t *testing.T) {
	svc, _ := newCardService(t, nil)
	card := mustCreateCard(t, svc, 100000)

	detail, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Description: "Coffee", Amount: core.Money{Cents: 900}, Installments: 1, CardID: card.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Format(core.DateLayout), detail.Purchase.Date.String())
}
