package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	// DefaultCardColor is used when a card is created without a display color.
	DefaultCardColor = "primary"

	// MaxInstallments caps how many installments a single purchase may be
	// split into (thirty years of monthly payments).
	MaxInstallments = 360

	maxDescriptionLen = 200
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// BillingCycle is the part of a card the installment scheduler needs.
	BillingCycle struct {
		ClosingDay int
		DueDay     int
	}

	Card struct {
		ID         int64
		Name       string
		Limit      Money
		ClosingDay int
		DueDay     int
		Color      string
	}

	Purchase struct {
		ID           int64
		Description  string
		Amount       Money
		Date         Date
		Installments int
		CardID       int64
		CategoryID   *int64
		CategoryName string
	}

	Installment struct {
		ID         int64
		PurchaseID int64
		CardID     int64
		Number     int
		Amount     Money
		DueDate    Date
		Paid       bool

		// Joined from the owning purchase when listing by card.
		PurchaseDescription string
		CategoryID          *int64
		CategoryName        string
	}

	Category struct {
		ID   int64
		Name string
		Type TransactionType
	}

	Transaction struct {
		ID           int64
		Description  string
		Amount       Money
		Type         TransactionType
		CategoryID   *int64
		CategoryName string
		Date         Date
		CardID       *int64
		PurchaseID   *int64
		ExternalID   string
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidLimit       = errors.New("card limit must be greater than zero")
	ErrInvalidClosingDay  = errors.New("closing day must be between 1 and 31")
	ErrInvalidDueDay      = errors.New("due day must be between 1 and 31")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrInvalidType        = errors.New("type must be 'income' or 'expense'")
)

// Valid reports whether t is one of the two known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC with the clock part dropped.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return NewDate(y, int(m), d)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Cycle returns the billing cycle used for installment scheduling.
func (c Card) Cycle() BillingCycle {
	return BillingCycle{ClosingDay: c.ClosingDay, DueDay: c.DueDay}
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Limit.Cents <= 0 {
		return ErrInvalidLimit
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidClosingDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (p Purchase) Validate() error {
	if err := ValidateDescription(p.Description); err != nil {
		return err
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if p.Installments <= 0 || p.Installments > MaxInstallments {
		return ErrInvalidInstallmentCount
	}
	if p.CardID <= 0 {
		return ErrInvalidCard
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := ValidateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return t.Date.Validate()
}

// ValidateDescription rejects blank descriptions and those longer than 200 bytes.
func ValidateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}
