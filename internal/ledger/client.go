// Package ledger talks to the remote shared-expense ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

// DefaultExpenseLimit is the number of expenses fetched per group snapshot.
const DefaultExpenseLimit = 100

// ErrRemoteLedger matches every *Error.
var ErrRemoteLedger = errors.New("remote ledger failure")

// Client is the expense API of the remote ledger.
type Client interface {
	// FetchGroupExpenses returns the group's active expenses; soft-deleted
	// entries are already filtered out.
	FetchGroupExpenses(ctx context.Context, groupID string, limit int) ([]models.RemoteExpense, error)
	CreateExpense(ctx context.Context, payload ExpensePayload) (*models.RemoteExpense, error)
	UpdateExpense(ctx context.Context, id string, payload ExpensePayload) (*models.RemoteExpense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// Directory is the user, group and currency API of the remote ledger.
type Directory interface {
	CurrentUser(ctx context.Context) (*models.RemoteUser, error)
	GetGroup(ctx context.Context, groupID string) (*models.RemoteGroup, error)

	// ListGroups returns every group the token's user belongs to.
	ListGroups(ctx context.Context) ([]models.RemoteGroup, error)

	// ListCurrencies returns the currencies the ledger accepts.
	ListCurrencies(ctx context.Context) ([]models.RemoteCurrency, error)
}

// Error is a failed remote ledger call.
type Error struct {
	// Op is the API operation, e.g. "create_expense".
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message carries errors reported in the response body.
	Message string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("remote ledger %s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRemoteLedger) hold for every *Error.
func (e *Error) Is(target error) bool { return target == ErrRemoteLedger }

// Retryable reports whether repeating the call may succeed: transport
// failures, timeouts, throttling and server errors.
func (e *Error) Retryable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a retryable remote ledger failure.
func IsRetryable(err error) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Retryable()
}

// ExpensePayload is the body of a create or update call.
type ExpensePayload struct {
	GroupID      string
	Description  string
	Cost         decimal.Decimal
	CurrencyCode string
	Date         time.Time
	Shares       []models.Share
}

// Form encodes the payload the way the remote API expects it:
// flat keys with users__<i>__<field> for each share.
func (p ExpensePayload) Form() url.Values {
	form := url.Values{}
	form.Set("cost", p.Cost.StringFixed(2))
	form.Set("description", p.Description)
	form.Set("currency_code", p.CurrencyCode)
	if p.GroupID != "" {
		form.Set("group_id", p.GroupID)
	}
	if !p.Date.IsZero() {
		form.Set("date", p.Date.UTC().Format(time.RFC3339))
	}
	for i, s := range p.Shares {
		prefix := "users__" + strconv.Itoa(i) + "__"
		form.Set(prefix+"user_id", s.ParticipantID)
		form.Set(prefix+"paid_share", s.PaidShare.StringFixed(2))
		form.Set(prefix+"owed_share", s.OwedShare.StringFixed(2))
	}
	return form
}
