// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tripledger/internal/models"
)

// ErrNotFound is returned when a trip or expense does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for trip, user and expense storage.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	TripStore
	UserStore
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}

// TripStore persists trips. A remote group is fanned out into one trip row
// per participant.
type TripStore interface {
	// CreateTrips persists sibling trip rows in one transaction.
	// Empty IDs and CreatedAt are populated by the store.
	CreateTrips(ctx context.Context, trips []*models.Trip) error

	// UpdateTrip overwrites name, dates, currencies and locations of every
	// row sharing trip.GroupID.
	UpdateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip returns ErrNotFound if the trip does not exist.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	ListTripsByUser(ctx context.Context, userID string) ([]*models.Trip, error)
	ListTripsByGroup(ctx context.Context, groupID string) ([]*models.Trip, error)

	// DeleteTrip removes every trip row and every expense row of groupID.
	DeleteTrip(ctx context.Context, groupID string) error
}

// UserStore persists users. Getters return nil, nil when the user does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error

	// UpsertUser inserts or refreshes the user with user.RemoteID and
	// populates user.ID with the stored id.
	UpsertUser(ctx context.Context, user *models.User) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByRemoteIDs(ctx context.Context, remoteIDs []string) (map[string]*models.User, error)
}

// ExpenseStore persists expense rows.
type ExpenseStore interface {
	ListExpenseRows(ctx context.Context, groupID string) ([]*models.ExpenseRow, error)
	ListExpenseRowsByParticipant(ctx context.Context, groupID, participantID string) ([]*models.ExpenseRow, error)

	// GetExpenseRows returns all rows of one expense id.
	GetExpenseRows(ctx context.Context, expenseID string) ([]*models.ExpenseRow, error)

	// SyncedExpenseRows returns, in a single read, the group's rows with a
	// non-empty expense id plus the rows of expenseIDs held by other groups.
	SyncedExpenseRows(ctx context.Context, groupID string, expenseIDs []string) ([]*models.ExpenseRow, error)

	InsertExpenseRows(ctx context.Context, rows []*models.ExpenseRow) error

	// ReplaceExpenseRows deletes the rows of oldExpenseID and inserts rows in
	// one transaction.
	ReplaceExpenseRows(ctx context.Context, oldExpenseID string, rows []*models.ExpenseRow) error

	// ApplyExpenseChanges applies inserts, updates and deletes in one transaction.
	ApplyExpenseChanges(ctx context.Context, changes models.ExpenseChanges) error

	// UpdateExpenseDetails sets the locally owned fields of every row of
	// expenseID. Returns ErrNotFound if there is none.
	UpdateExpenseDetails(ctx context.Context, expenseID string, details models.ExpenseDetails) error

	// DeleteExpense removes every row of expenseID and returns how many were removed.
	DeleteExpense(ctx context.Context, expenseID string) (int64, error)
}
