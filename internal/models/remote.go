package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementDescription is the description the remote ledger gives to debt
// settlements. Entries carrying it never become expense rows.
const SettlementDescription = "payment"

// RemoteExpense is an expense as reported by the remote ledger.
type RemoteExpense struct {
	ID           string
	GroupID      string
	Description  string
	CurrencyCode string
	Cost         decimal.Decimal

	// Date is when the expense occurred; CreatedAt when it was recorded.
	// Either may be zero.
	Date      time.Time
	CreatedAt time.Time

	Shares []Share
}

// IsSettlement reports whether the entry is a settlement rather than an expense.
func (e *RemoteExpense) IsSettlement() bool {
	return strings.EqualFold(strings.TrimSpace(e.Description), SettlementDescription)
}

// Day returns the occurrence day, falling back to the creation day.
func (e *RemoteExpense) Day() time.Time {
	if !e.Date.IsZero() {
		return Day(e.Date)
	}
	return Day(e.CreatedAt)
}

// Submission is an expense entered by a user.
//
// ExpenseID is empty for a new expense and holds the prior id for an edit.
type Submission struct {
	ExpenseID    string
	GroupID      string
	Description  string
	Cost         decimal.Decimal
	CurrencyCode string
	Date         time.Time
	Details      ExpenseDetails
	Shares       []ShareInput
}

// RemoteUser is a user as reported by the remote ledger.
type RemoteUser struct {
	ID    string
	Name  string
	Email string
}

// RemoteGroup is a group as reported by the remote ledger.
type RemoteGroup struct {
	ID      string
	Name    string
	Members []RemoteUser
}

// RemoteCurrency is a currency the remote ledger accepts.
type RemoteCurrency struct {
	Code string
	Unit string
}
