package models

import "time"

// Trip is one participant's row for a shared group on the remote ledger.
//
// Trips are fanned out: every participant of a remote group gets its own row
// with the same GroupID. Deleting any of them deletes all siblings and every
// expense row of the group.
type Trip struct {
	// ID is the unique identifier for this trip row (UUID format).
	ID string

	// UserID is the local user this row belongs to.
	UserID string

	// GroupID is the remote ledger group id shared by all sibling rows.
	GroupID string

	// Name is the display name (e.g., "Lisbon 2025").
	Name string

	// StartDate and EndDate bound the trip. Nil when unknown.
	StartDate *time.Time
	EndDate   *time.Time

	// Currencies lists the currency codes in use on the trip.
	Currencies []string

	// Locations lists the places visited.
	Locations []string

	// CreatedBy is the local user id of the creator; CreatedByName is resolved on read.
	CreatedBy     string
	CreatedByName string

	// CreatedAt is the Unix timestamp when the row was created.
	CreatedAt int64
}
