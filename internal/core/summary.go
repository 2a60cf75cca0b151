package core

// CardUsage is a card together with the part of its limit taken by unpaid installments.
type CardUsage struct {
	Card      Card
	Used      Money
	Available Money
}

// NewCardUsage derives the available limit from the used amount.
func NewCardUsage(card Card, used Money) CardUsage {
	return CardUsage{Card: card, Used: used, Available: card.Limit.Sub(used)}
}

// UsedLimit sums the amounts of unpaid installments. Paid ones never count,
// regardless of the state of the rest of their purchase.
func UsedLimit(installments []Installment) Money {
	var used Money
	for _, in := range installments {
		if !in.Paid {
			used = used.Add(in.Amount)
		}
	}
	return used
}

// Summary totals transactions inside an optional period.
type Summary struct {
	Income  Money
	Expense Money
	Balance Money
}

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    Money
}

// MonthlyFlow is the cash flow of one calendar month.
type MonthlyFlow struct {
	Month   string // YYYY-MM
	Income  Money
	Expense Money
	Balance Money
}

// Period bounds a report; zero dates leave that side open.
type Period struct {
	From Date
	To   Date
}
