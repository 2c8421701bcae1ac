package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocalIDPrefix marks expense ids generated locally for personal expenses.
const LocalIDPrefix = "local_"

// NewLocalID returns a fresh personal-only expense id.
func NewLocalID() string {
	return LocalIDPrefix + uuid.New().String()
}

// IsLocalID reports whether id carries the local-only marker.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// ExpenseRow is one participant's share of one expense.
// (ExpenseID, ParticipantID) is unique.
type ExpenseRow struct {
	// ID is the store-assigned row id.
	ID int64

	// GroupID is the remote ledger group id of the trip.
	GroupID string

	// ParticipantID is the remote ledger user id owing this share.
	ParticipantID string

	// ExpenseID is the remote-assigned id or a local id (see IsLocalID).
	ExpenseID string

	// Location, Category and the stay dates are owned locally. The remote
	// ledger does not carry them and reconciliation never overwrites them.
	Location  string
	Category  string
	StayStart *time.Time
	StayEnd   *time.Time

	Description string

	// Amount is OriginalAmount converted to the reporting currency, rounded to 2 places.
	Amount decimal.Decimal

	// CurrencyCode is the ISO code of OriginalAmount.
	CurrencyCode   string
	OriginalAmount decimal.Decimal

	// Date is the calendar day the expense occurred. Zero when unknown.
	Date time.Time

	CreatedAt int64
	UpdatedAt int64
}

// Key returns the row's composite key.
func (r *ExpenseRow) Key() ExpenseKey {
	return ExpenseKey{ExpenseID: r.ExpenseID, ParticipantID: r.ParticipantID}
}

// SameSyncedFields reports whether the fields a reconciliation pass may
// overwrite are equal between r and o.
func (r *ExpenseRow) SameSyncedFields(o *ExpenseRow) bool {
	return r.Description == o.Description &&
		r.Amount.Equal(o.Amount) &&
		r.CurrencyCode == o.CurrencyCode &&
		r.OriginalAmount.Equal(o.OriginalAmount) &&
		Day(r.Date).Equal(Day(o.Date))
}

// ExpenseKey identifies one participant's row of one expense.
type ExpenseKey struct {
	ExpenseID     string
	ParticipantID string
}

// ExpenseDetails are the locally owned fields of an expense.
type ExpenseDetails struct {
	Location  string
	Category  string
	StayStart *time.Time
	StayEnd   *time.Time
}

// ExpenseChanges is a batch of mutations applied atomically by the store.
// Updates only carry the synced fields (description, amounts, currency, date)
// and the group id, which changes when a remote expense moves between groups.
// Deletes are expense ids scoped to GroupID.
type ExpenseChanges struct {
	GroupID string
	Inserts []*ExpenseRow
	Updates []*ExpenseRow
	Deletes []string
}

// Empty reports whether the batch holds no mutation.
func (c ExpenseChanges) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0
}
