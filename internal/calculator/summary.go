// Package calculator aggregates expense rows for trip reports.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

const (
	// UncategorizedLabel groups rows with no category.
	UncategorizedLabel = "Uncategorized"

	// UnknownLocationLabel groups rows with no location.
	UnknownLocationLabel = "Unknown"
)

// Total is the amount attributed to one key.
type Total struct {
	Key    string
	Amount decimal.Decimal // Reporting currency
	Count  int             // Number of rows
}

// Summary breaks a trip's spending down in the reporting currency.
type Summary struct {
	Total          decimal.Decimal
	ByParticipant  []Total
	ByCategory     []Total
	ByLocation     []Total
	ByDay          []Total
	OriginalTotals []Total // Keyed by currency code, in original amounts
}

// Summarize aggregates rows. Every breakdown is sorted by descending amount,
// then by key; ByDay is sorted chronologically.
func Summarize(rows []*models.ExpenseRow) *Summary {
	participants := newTotals()
	categories := newTotals()
	locations := newTotals()
	days := newTotals()
	currencies := newTotals()

	summary := &Summary{Total: decimal.Zero}
	for _, r := range rows {
		summary.Total = summary.Total.Add(r.Amount)

		participants.add(r.ParticipantID, r.Amount)

		category := r.Category
		if category == "" {
			category = UncategorizedLabel
		}
		categories.add(category, r.Amount)

		location := r.Location
		if location == "" {
			location = UnknownLocationLabel
		}
		locations.add(location, r.Amount)

		if !r.Date.IsZero() {
			days.add(models.FormatDate(r.Date), r.Amount)
		}
		currencies.add(r.CurrencyCode, r.OriginalAmount)
	}

	summary.ByParticipant = participants.byAmount()
	summary.ByCategory = categories.byAmount()
	summary.ByLocation = locations.byAmount()
	summary.ByDay = days.byKey()
	summary.OriginalTotals = currencies.byAmount()
	return summary
}

type totals map[string]*Total

func newTotals() totals { return make(totals) }

func (t totals) add(key string, amount decimal.Decimal) {
	if _, exists := t[key]; !exists {
		t[key] = &Total{Key: key, Amount: decimal.Zero}
	}
	t[key].Amount = t[key].Amount.Add(amount)
	t[key].Count++
}

func (t totals) list() []Total {
	out := make([]Total, 0, len(t))
	for _, v := range t {
		out = append(out, *v)
	}
	return out
}

func (t totals) byAmount() []Total {
	out := t.list()
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (t totals) byKey() []Total {
	out := t.list()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
