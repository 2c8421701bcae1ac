// Package submission records user-entered expenses.
//
// A submission is classified first. Personal expenses are stored locally
// under a local-only id. Shared expenses are written to the remote ledger
// and then mirrored locally under the remote id. The two phases are not
// atomic: a shared submission whose remote write fails leaves local state
// untouched, while a local write failing after a successful remote write is
// repaired by the next sync of the trip.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/classifier"
	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

var (
	// ErrInvalidSubmission is returned for submissions rejected before any write.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrLedgerUnavailable is returned when a shared expense is submitted and
	// no remote ledger is configured.
	ErrLedgerUnavailable = errors.New("remote ledger not configured")
)

// Store is the persistence the flow needs.
type Store interface {
	ReplaceExpenseRows(ctx context.Context, oldExpenseID string, rows []*models.ExpenseRow) error
	UpdateExpenseDetails(ctx context.Context, expenseID string, details models.ExpenseDetails) error
	DeleteExpense(ctx context.Context, expenseID string) (int64, error)
}

// Converter converts amounts into the reporting currency.
type Converter interface {
	ToReporting(ctx context.Context, amount decimal.Decimal, from string) decimal.Decimal
	Reporting() string
}

// Outcome describes a recorded submission.
type Outcome struct {
	ExpenseID      string
	Classification models.Classification
	Rows           []*models.ExpenseRow
}

// Locker serializes writes to a group's rows with reconciliation passes.
type Locker interface {
	Lock(groupID string) func()
}

type noLock struct{}

func (noLock) Lock(string) func() { return func() {} }

// Flow records submissions.
type Flow struct {
	store  Store
	remote ledger.Client
	conv   Converter
	locks  Locker
	now    func() time.Time
}

// Option configures a Flow.
type Option func(*Flow)

// WithGroupLock makes every submission and delete hold the group's lock
// from its first write until its local rows are stored.
func WithGroupLock(l Locker) Option {
	return func(f *Flow) { f.locks = l }
}

// NewFlow returns a Flow. remote may be nil, in which case only personal
// expenses can be recorded.
func NewFlow(store Store, remote ledger.Client, conv Converter, opts ...Option) *Flow {
	f := &Flow{store: store, remote: remote, conv: conv, locks: noLock{}, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// validated is a submission after boundary checks.
type validated struct {
	models.Submission
	shares []models.Share
}

func (f *Flow) validate(sub models.Submission) (*validated, error) {
	sub.GroupID = strings.TrimSpace(sub.GroupID)
	sub.Description = strings.TrimSpace(sub.Description)
	if sub.GroupID == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrInvalidSubmission)
	}
	if sub.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidSubmission)
	}
	if sub.Cost.IsNegative() {
		return nil, fmt.Errorf("%w: cost must not be negative", ErrInvalidSubmission)
	}

	sub.CurrencyCode = currency.NormalizeCode(sub.CurrencyCode)
	if sub.CurrencyCode == "" {
		sub.CurrencyCode = f.conv.Reporting()
	}
	if err := currency.ValidateCode(sub.CurrencyCode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if err := validateStay(sub.Details); err != nil {
		return nil, err
	}

	shares, err := classifier.ParseShares(sub.Shares)
	if err != nil {
		return nil, err
	}

	if sub.Cost.IsZero() {
		for _, s := range shares {
			sub.Cost = sub.Cost.Add(s.OwedShare)
		}
	}
	if sub.Date.IsZero() {
		sub.Date = f.now()
	}
	sub.Date = models.Day(sub.Date)

	return &validated{Submission: sub, shares: shares}, nil
}

func validateStay(d models.ExpenseDetails) error {
	if d.StayStart != nil && d.StayEnd != nil && d.StayEnd.Before(*d.StayStart) {
		return fmt.Errorf("%w: stay end is before stay start", ErrInvalidSubmission)
	}
	return nil
}

// Submit records a new expense, or an edit when sub.ExpenseID is set.
// acting is the remote id of the submitting user and may be empty.
func (f *Flow) Submit(ctx context.Context, acting string, sub models.Submission) (*Outcome, error) {
	v, err := f.validate(sub)
	if err != nil {
		return nil, err
	}

	unlock := f.locks.Lock(v.GroupID)
	defer unlock()

	class := classifier.Classify(acting, v.shares)
	slog.Debug("Expense classified",
		"group_id", v.GroupID,
		"prior_id", v.ExpenseID,
		"classification", class.String(),
	)

	if class == models.Shared {
		return f.submitShared(ctx, v)
	}
	return f.submitPersonal(ctx, acting, v)
}

func (f *Flow) submitPersonal(ctx context.Context, acting string, v *validated) (*Outcome, error) {
	prior := v.ExpenseID
	id := prior

	switch {
	case prior == "":
		id = models.NewLocalID()
	case !models.IsLocalID(prior):
		// Shared to personal: the remote entry goes first so a failure leaves
		// both sides as they were.
		if f.remote == nil {
			return nil, ErrLedgerUnavailable
		}
		if err := f.remote.DeleteExpense(ctx, prior); err != nil {
			return nil, fmt.Errorf("failed to delete remote expense %s: %w", prior, err)
		}
		id = models.NewLocalID()
	}

	shares := v.shares
	if !hasOwedShare(shares) {
		if acting == "" {
			return nil, fmt.Errorf("%w: no participant owes a share", ErrInvalidSubmission)
		}
		shares = []models.Share{{ParticipantID: acting, PaidShare: v.Cost, OwedShare: v.Cost}}
	}

	rows := f.rows(ctx, id, v, shares)
	if err := f.store.ReplaceExpenseRows(ctx, prior, rows); err != nil {
		return nil, fmt.Errorf("failed to store personal expense: %w", err)
	}

	slog.Info("Personal expense recorded",
		"group_id", v.GroupID,
		"expense_id", id,
		"prior_id", prior,
		"rows", len(rows),
	)
	return &Outcome{ExpenseID: id, Classification: models.Personal, Rows: rows}, nil
}

func (f *Flow) submitShared(ctx context.Context, v *validated) (*Outcome, error) {
	if f.remote == nil {
		return nil, ErrLedgerUnavailable
	}

	payload := ledger.ExpensePayload{
		GroupID:      v.GroupID,
		Description:  v.Description,
		Cost:         v.Cost,
		CurrencyCode: v.CurrencyCode,
		Date:         v.Date,
		Shares:       v.shares,
	}

	prior := v.ExpenseID
	var (
		remote *models.RemoteExpense
		err    error
	)
	if prior != "" && !models.IsLocalID(prior) {
		remote, err = f.remote.UpdateExpense(ctx, prior, payload)
	} else {
		remote, err = f.remote.CreateExpense(ctx, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write shared expense: %w", err)
	}

	id := remote.ID
	if id == "" {
		id = prior
	}
	if id == "" || models.IsLocalID(id) {
		return nil, fmt.Errorf("failed to write shared expense: %w",
			&ledger.Error{Op: "create_expense", Message: "response carries no expense id"})
	}

	rows := f.rows(ctx, id, v, v.shares)
	if err := f.store.ReplaceExpenseRows(ctx, prior, rows); err != nil {
		slog.Error("Shared expense written remotely but not mirrored",
			"group_id", v.GroupID,
			"expense_id", id,
			"error", err,
		)
		return nil, fmt.Errorf("failed to mirror shared expense %s: %w", id, err)
	}

	slog.Info("Shared expense recorded",
		"group_id", v.GroupID,
		"expense_id", id,
		"prior_id", prior,
		"rows", len(rows),
	)
	return &Outcome{ExpenseID: id, Classification: models.Shared, Rows: rows}, nil
}

// rows expands shares into one row per participant with a positive owed share.
func (f *Flow) rows(ctx context.Context, id string, v *validated, shares []models.Share) []*models.ExpenseRow {
	var rows []*models.ExpenseRow
	for _, s := range shares {
		if !s.OwedShare.IsPositive() {
			continue
		}
		rows = append(rows, &models.ExpenseRow{
			GroupID:        v.GroupID,
			ParticipantID:  s.ParticipantID,
			ExpenseID:      id,
			Location:       v.Details.Location,
			Category:       v.Details.Category,
			StayStart:      v.Details.StayStart,
			StayEnd:        v.Details.StayEnd,
			Description:    v.Description,
			Amount:         f.conv.ToReporting(ctx, s.OwedShare, v.CurrencyCode),
			CurrencyCode:   v.CurrencyCode,
			OriginalAmount: s.OwedShare,
			Date:           v.Date,
		})
	}
	return rows
}

func hasOwedShare(shares []models.Share) bool {
	for _, s := range shares {
		if s.OwedShare.IsPositive() {
			return true
		}
	}
	return false
}

// Delete removes an expense of groupID. Local rows are removed first; for a
// remote id the remote ledger is then told to delete it. A remote failure is
// returned after the local delete has committed.
func (f *Flow) Delete(ctx context.Context, groupID, expenseID string) error {
	if expenseID == "" {
		return fmt.Errorf("%w: expense id is required", ErrInvalidSubmission)
	}

	unlock := f.locks.Lock(groupID)
	defer unlock()

	n, err := f.store.DeleteExpense(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if models.IsLocalID(expenseID) {
		if n == 0 {
			return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}
		slog.Info("Personal expense deleted", "expense_id", expenseID, "rows", n)
		return nil
	}

	if f.remote == nil {
		return ErrLedgerUnavailable
	}
	if err := f.remote.DeleteExpense(ctx, expenseID); err != nil {
		slog.Warn("Local rows deleted but remote delete failed",
			"expense_id", expenseID,
			"rows", n,
			"error", err,
		)
		return fmt.Errorf("failed to delete remote expense %s: %w", expenseID, err)
	}

	slog.Info("Shared expense deleted", "expense_id", expenseID, "rows", n)
	return nil
}

// UpdateDetails sets the locally owned fields of an expense. The remote
// ledger is not contacted.
func (f *Flow) UpdateDetails(ctx context.Context, expenseID string, details models.ExpenseDetails) error {
	if expenseID == "" {
		return fmt.Errorf("%w: expense id is required", ErrInvalidSubmission)
	}
	if err := validateStay(details); err != nil {
		return err
	}
	details.Location = strings.TrimSpace(details.Location)
	details.Category = strings.TrimSpace(details.Category)

	if err := f.store.UpdateExpenseDetails(ctx, expenseID, details); err != nil {
		return fmt.Errorf("failed to update expense details: %w", err)
	}
	return nil
}
