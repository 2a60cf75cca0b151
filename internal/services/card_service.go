package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financas/internal/amqp"
	"financas/internal/core"
)

// CardStore is the persistence CardService depends on.
type CardStore interface {
	ListCards(ctx context.Context) ([]core.CardUsage, error)
	GetCard(ctx context.Context, id int64) (core.Card, error)
	ResolveCard(ctx context.Context, id int64) (core.Card, error)
	CreateCard(ctx context.Context, c core.Card) (core.Card, error)
	UpdateCard(ctx context.Context, c core.Card) (core.Card, error)
	DeleteCard(ctx context.Context, id int64) error
	SumUnpaidInstallments(ctx context.Context, cardID int64) (core.Money, error)
	CountUnpaidInstallments(ctx context.Context, cardID int64) (int, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)

	CreatePurchase(ctx context.Context, p core.Purchase, installments []core.Installment) (int64, error)
	GetPurchase(ctx context.Context, id int64) (core.Purchase, []core.Installment, error)
	ListPurchasesByCard(ctx context.Context, cardID int64) ([]core.Purchase, error)
	UpdatePurchase(ctx context.Context, id int64, description string, categoryID *int64) (core.Purchase, error)
	DeletePurchase(ctx context.Context, id int64) (core.Purchase, error)

	ListInstallmentsByCard(ctx context.Context, cardID int64) ([]core.Installment, error)
	PayInstallment(ctx context.Context, id int64) (core.Installment, error)
}

// EventPublisher announces ledger changes to the worker.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerMessage) error
}

// Invalidator is told when cached reports may be stale.
type Invalidator interface {
	Invalidate()
}

// PurchaseInput is a purchase request before scheduling.
type PurchaseInput struct {
	Description   string
	Amount        core.Money
	Date          core.Date
	Installments  int
	CardID        int64
	CategoryID    *int64
	CustomAmounts []core.Money
}

// PurchaseDetail is a stored purchase with its installments.
type PurchaseDetail struct {
	Purchase     core.Purchase
	Installments []core.Installment
}

// CardService orchestrates card, purchase and installment operations across
// SQLite and AMQP. Events are published after the database commit; a failed
// publish is logged and never fails the request.
type CardService struct {
	store     CardStore
	scheduler *InstallmentScheduler
	publisher EventPublisher
	reports   Invalidator
}

// NewCardService wires the service. publisher and reports may be nil.
func NewCardService(store CardStore, scheduler *InstallmentScheduler, publisher EventPublisher, reports Invalidator) *CardService {
	return &CardService{
		store:     store,
		scheduler: scheduler,
		publisher: publisher,
		reports:   reports,
	}
}

func (s *CardService) ListCards(ctx context.Context) ([]core.CardUsage, error) {
	return s.store.ListCards(ctx)
}

// GetCard returns the card with its used and available limit.
func (s *CardService) GetCard(ctx context.Context, id int64) (core.CardUsage, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return core.CardUsage{}, err
	}
	return s.withUsage(ctx, card)
}

func (s *CardService) CreateCard(ctx context.Context, c core.Card) (core.CardUsage, error) {
	if c.Color == "" {
		c.Color = core.DefaultCardColor
	}
	if err := c.Validate(); err != nil {
		return core.CardUsage{}, err
	}
	card, err := s.store.CreateCard(ctx, c)
	if err != nil {
		return core.CardUsage{}, fmt.Errorf("create card: %w", err)
	}
	return core.NewCardUsage(card, core.Money{}), nil
}

// UpdateCard replaces the card attributes. Existing installments keep their
// due dates even when the billing cycle changes.
func (s *CardService) UpdateCard(ctx context.Context, c core.Card) (core.CardUsage, error) {
	if c.Color == "" {
		c.Color = core.DefaultCardColor
	}
	if err := c.Validate(); err != nil {
		return core.CardUsage{}, err
	}
	card, err := s.store.UpdateCard(ctx, c)
	if err != nil {
		return core.CardUsage{}, err
	}
	return s.withUsage(ctx, card)
}

// DeleteCard refuses to delete a card that still has unpaid installments.
// The store repeats the check inside the DELETE statement, so a payment
// racing with the deletion cannot slip through.
func (s *CardService) DeleteCard(ctx context.Context, id int64) error {
	if _, err := s.store.GetCard(ctx, id); err != nil {
		return err
	}

	pending, err := s.store.CountUnpaidInstallments(ctx, id)
	if err != nil {
		return fmt.Errorf("count unpaid installments: %w", err)
	}
	if pending > 0 {
		return &core.PendingInstallmentsError{CardID: id, Count: pending}
	}

	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Card deleted", "card_id", id)
	return nil
}

// CreatePurchase schedules the installments of a purchase on its card and
// stores both atomically.
func (s *CardService) CreatePurchase(ctx context.Context, in PurchaseInput) (PurchaseDetail, error) {
	p := core.Purchase{
		Description:  in.Description,
		Amount:       in.Amount,
		Date:         in.Date,
		Installments: in.Installments,
		CardID:       in.CardID,
		CategoryID:   in.CategoryID,
	}
	if p.Date.IsZero() {
		p.Date = core.Today()
	}
	if err := p.Validate(); err != nil {
		return PurchaseDetail{}, err
	}

	card, err := s.store.ResolveCard(ctx, p.CardID)
	if err != nil {
		return PurchaseDetail{}, err
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return PurchaseDetail{}, err
	}

	installments, err := s.scheduler.Schedule(ScheduleRequest{
		Total:         p.Amount,
		PurchaseDate:  p.Date,
		Count:         p.Installments,
		CustomAmounts: in.CustomAmounts,
	}, card.Cycle())
	if err != nil {
		return PurchaseDetail{}, err
	}

	id, err := s.store.CreatePurchase(ctx, p, installments)
	if err != nil {
		return PurchaseDetail{}, err
	}

	s.publish(ctx, amqp.NewPurchaseCreatedMessage(id, p.CardID))

	return s.GetPurchase(ctx, id)
}

func (s *CardService) GetPurchase(ctx context.Context, id int64) (PurchaseDetail, error) {
	p, installments, err := s.store.GetPurchase(ctx, id)
	if err != nil {
		return PurchaseDetail{}, err
	}
	return PurchaseDetail{Purchase: p, Installments: installments}, nil
}

func (s *CardService) ListPurchases(ctx context.Context, cardID int64) ([]core.Purchase, error) {
	if _, err := s.store.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.ListPurchasesByCard(ctx, cardID)
}

// UpdatePurchase changes description and category only. Amounts and
// installments are fixed once scheduled.
func (s *CardService) UpdatePurchase(ctx context.Context, id int64, description string, categoryID *int64) (core.Purchase, error) {
	if err := core.ValidateDescription(description); err != nil {
		return core.Purchase{}, err
	}
	if err := s.checkCategory(ctx, categoryID); err != nil {
		return core.Purchase{}, err
	}

	p, err := s.store.UpdatePurchase(ctx, id, description, categoryID)
	if err != nil {
		return core.Purchase{}, err
	}
	s.invalidateReports()
	return p, nil
}

func (s *CardService) DeletePurchase(ctx context.Context, id int64) error {
	p, err := s.store.DeletePurchase(ctx, id)
	if err != nil {
		return err
	}

	s.publish(ctx, amqp.NewPurchaseDeletedMessage(p.ID, p.CardID, p.Description, p.Amount.Cents))
	return nil
}

func (s *CardService) ListInstallments(ctx context.Context, cardID int64) ([]core.Installment, error) {
	if _, err := s.store.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.ListInstallmentsByCard(ctx, cardID)
}

// PayInstallment marks an installment paid. Paying twice is not an error.
func (s *CardService) PayInstallment(ctx context.Context, id int64) (core.Installment, error) {
	in, err := s.store.PayInstallment(ctx, id)
	if err != nil {
		return core.Installment{}, err
	}

	s.publish(ctx, amqp.NewInstallmentPaidMessage(in.ID, in.PurchaseID, in.CardID))
	return in, nil
}

func (s *CardService) withUsage(ctx context.Context, card core.Card) (core.CardUsage, error) {
	used, err := s.store.SumUnpaidInstallments(ctx, card.ID)
	if err != nil {
		return core.CardUsage{}, fmt.Errorf("sum unpaid installments: %w", err)
	}
	return core.NewCardUsage(card, used), nil
}

func (s *CardService) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("category %d: %w", *id, core.ErrUnknownCategory)
		}
		return err
	}
	return nil
}

func (s *CardService) publish(ctx context.Context, msg *amqp.LedgerMessage) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "event", msg.Event)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", msg.Event,
			"purchase_id", msg.PurchaseID,
			"error", err)
	}
}

func (s *CardService) invalidateReports() {
	if s.reports != nil {
		s.reports.Invalidate()
	}
}
