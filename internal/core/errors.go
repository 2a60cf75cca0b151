package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCard is returned when a purchase references a card that does not resolve.
	// Nothing is persisted when it is returned.
	ErrInvalidCard = errors.New("card not found")

	// ErrInvalidInstallmentCount is returned for an installment count outside 1..MaxInstallments.
	ErrInvalidInstallmentCount = fmt.Errorf("installment count must be between 1 and %d", MaxInstallments)

	// ErrPendingInstallments matches any *PendingInstallmentsError.
	ErrPendingInstallments = errors.New("card has pending installments")

	ErrDuplicateCategory = errors.New("a category with this name already exists")
	ErrCategoryInUse     = errors.New("category is referenced by transactions")
	ErrUnknownCategory   = errors.New("category does not exist")
)

// PendingInstallmentsError blocks a card deletion while unpaid installments exist.
type PendingInstallmentsError struct {
	CardID int64
	Count  int
}

func (e *PendingInstallmentsError) Error() string {
	return fmt.Sprintf("card %d has %d pending installments", e.CardID, e.Count)
}

func (e *PendingInstallmentsError) Is(target error) bool {
	return target == ErrPendingInstallments
}
