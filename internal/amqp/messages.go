package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger event. It doubles as the AMQP message type.
type EventType string

const (
	EventPurchaseCreated EventType = "purchase.created"
	EventPurchaseDeleted EventType = "purchase.deleted"
	EventInstallmentPaid EventType = "installment.paid"
)

// LedgerMessage is a lightweight notification about a change in the card ledger.
// Created purchases carry only IDs: the worker reloads them from the database.
// Deleted purchases no longer exist there, so the message keeps what the journal needs.
type LedgerMessage struct {
	ID            string    `json:"id"`
	Event         EventType `json:"event"`
	PurchaseID    int64     `json:"purchase_id,omitempty"`
	InstallmentID int64     `json:"installment_id,omitempty"`
	CardID        int64     `json:"card_id"`
	Description   string    `json:"description,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func newLedgerMessage(event EventType, cardID int64) *LedgerMessage {
	return &LedgerMessage{
		ID:        uuid.NewString(),
		Event:     event,
		CardID:    cardID,
		Timestamp: time.Now(),
	}
}

func NewPurchaseCreatedMessage(purchaseID, cardID int64) *LedgerMessage {
	msg := newLedgerMessage(EventPurchaseCreated, cardID)
	msg.PurchaseID = purchaseID
	return msg
}

func NewPurchaseDeletedMessage(purchaseID, cardID int64, description string, amountCents int64) *LedgerMessage {
	msg := newLedgerMessage(EventPurchaseDeleted, cardID)
	msg.PurchaseID = purchaseID
	msg.Description = description
	msg.AmountCents = amountCents
	return msg
}

func NewInstallmentPaidMessage(installmentID, purchaseID, cardID int64) *LedgerMessage {
	msg := newLedgerMessage(EventInstallmentPaid, cardID)
	msg.InstallmentID = installmentID
	msg.PurchaseID = purchaseID
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMessageFromJSON decodes a message and rejects unknown event types.
func LedgerMessageFromJSON(data []byte) (*LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Event {
	case EventPurchaseCreated, EventPurchaseDeleted, EventInstallmentPaid:
	default:
		return nil, fmt.Errorf("unknown ledger event %q", msg.Event)
	}
	return &msg, nil
}
