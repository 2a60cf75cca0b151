package http

import (
	"financas/internal/core"
	"financas/internal/services"
)

type cardRequest struct {
	Name       string     `json:"name"`
	Limit      core.Money `json:"limit"`
	ClosingDay int        `json:"closing_day"`
	DueDay     int        `json:"due_day"`
	Color      string     `json:"color"`
}

func (c cardRequest) card(id int64) core.Card {
	return core.Card{
		ID:         id,
		Name:       c.Name,
		Limit:      c.Limit,
		ClosingDay: c.ClosingDay,
		DueDay:     c.DueDay,
		Color:      c.Color,
	}
}

type cardResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Limit          core.Money `json:"limit"`
	ClosingDay     int        `json:"closing_day"`
	DueDay         int        `json:"due_day"`
	Color          string     `json:"color"`
	UsedLimit      core.Money `json:"used_limit"`
	AvailableLimit core.Money `json:"available_limit"`
}

func newCardResponse(u core.CardUsage) cardResponse {
	return cardResponse{
		ID:             u.Card.ID,
		Name:           u.Card.Name,
		Limit:          u.Card.Limit,
		ClosingDay:     u.Card.ClosingDay,
		DueDay:         u.Card.DueDay,
		Color:          u.Card.Color,
		UsedLimit:      u.Used,
		AvailableLimit: u.Available,
	}
}

type purchaseRequest struct {
	Description   string       `json:"description"`
	Amount        core.Money   `json:"amount"`
	Date          core.Date    `json:"date"`
	Installments  int          `json:"installments"`
	CardID        int64        `json:"card_id"`
	CategoryID    *int64       `json:"category_id"`
	CustomAmounts []core.Money `json:"custom_amounts"`
}

func (p purchaseRequest) input() services.PurchaseInput {
	return services.PurchaseInput{
		Description:   p.Description,
		Amount:        p.Amount,
		Date:          p.Date,
		Installments:  p.Installments,
		CardID:        p.CardID,
		CategoryID:    p.CategoryID,
		CustomAmounts: p.CustomAmounts,
	}
}

type purchaseUpdateRequest struct {
	Description string `json:"description"`
	CategoryID  *int64 `json:"category_id"`
}

type purchaseResponse struct {
	ID           int64                 `json:"id"`
	Description  string                `json:"description"`
	Amount       core.Money            `json:"amount"`
	Date         core.Date             `json:"date"`
	Installments int                   `json:"installments"`
	CardID       int64                 `json:"card_id"`
	CategoryID   *int64                `json:"category_id"`
	CategoryName string                `json:"category_name,omitempty"`
	Schedule     []installmentResponse `json:"schedule,omitempty"`
}

func newPurchaseResponse(p core.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:           p.ID,
		Description:  p.Description,
		Amount:       p.Amount,
		Date:         p.Date,
		Installments: p.Installments,
		CardID:       p.CardID,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
	}
}

func newPurchaseDetailResponse(d services.PurchaseDetail) purchaseResponse {
	resp := newPurchaseResponse(d.Purchase)
	resp.Schedule = make([]installmentResponse, len(d.Installments))
	for i, in := range d.Installments {
		resp.Schedule[i] = newInstallmentResponse(in)
	}
	return resp
}

type installmentResponse struct {
	ID                  int64      `json:"id"`
	PurchaseID          int64      `json:"purchase_id"`
	CardID              int64      `json:"card_id"`
	Number              int        `json:"number"`
	Amount              core.Money `json:"amount"`
	DueDate             core.Date  `json:"due_date"`
	Paid                bool       `json:"paid"`
	PurchaseDescription string     `json:"purchase_description,omitempty"`
	CategoryID          *int64     `json:"category_id,omitempty"`
	CategoryName        string     `json:"category_name,omitempty"`
}

func newInstallmentResponse(in core.Installment) installmentResponse {
	return installmentResponse{
		ID:                  in.ID,
		PurchaseID:          in.PurchaseID,
		CardID:              in.CardID,
		Number:              in.Number,
		Amount:              in.Amount,
		DueDate:             in.DueDate,
		Paid:                in.Paid,
		PurchaseDescription: in.PurchaseDescription,
		CategoryID:          in.CategoryID,
		CategoryName:        in.CategoryName,
	}
}

type transactionRequest struct {
	Description string               `json:"description"`
	Amount      core.Money           `json:"amount"`
	Type        core.TransactionType `json:"type"`
	CategoryID  *int64               `json:"category_id"`
	Date        core.Date            `json:"date"`
}

func (t transactionRequest) transaction(id int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Description: t.Description,
		Amount:      t.Amount,
		Type:        t.Type,
		CategoryID:  t.CategoryID,
		Date:        t.Date,
	}
}

type transactionResponse struct {
	ID           int64                `json:"id"`
	Description  string               `json:"description"`
	Amount       core.Money           `json:"amount"`
	Type         core.TransactionType `json:"type"`
	CategoryID   *int64               `json:"category_id"`
	CategoryName string               `json:"category_name,omitempty"`
	Date         core.Date            `json:"date"`
	CardID       *int64               `json:"card_id,omitempty"`
	PurchaseID   *int64               `json:"purchase_id,omitempty"`
	ExternalID   string               `json:"external_id,omitempty"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Description:  t.Description,
		Amount:       t.Amount,
		Type:         t.Type,
		CategoryID:   t.CategoryID,
		CategoryName: t.CategoryName,
		Date:         t.Date,
		CardID:       t.CardID,
		PurchaseID:   t.PurchaseID,
		ExternalID:   t.ExternalID,
	}
}

type categoryRequest struct {
	Name string               `json:"name"`
	Type core.TransactionType `json:"type"`
}

type categoryResponse struct {
	ID   int64                `json:"id"`
	Name string               `json:"name"`
	Type core.TransactionType `json:"type"`
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: c.Type}
}

type summaryResponse struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

type categoryTotalResponse struct {
	Category string     `json:"category"`
	Total    core.Money `json:"total"`
}

type monthlyFlowResponse struct {
	Month   string     `json:"month"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

// mapSlice converts a slice, always returning a non-nil result so empty
// lists encode as [].
func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
