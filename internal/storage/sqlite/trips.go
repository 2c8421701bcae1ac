package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

const tripColumns = `t.id, t.user_id, t.group_id, t.name, t.start_date, t.end_date,
	t.currencies, t.locations, t.created_by, COALESCE(u.name, ''), t.created_at`

const tripSelect = "SELECT " + tripColumns + " FROM trips t LEFT JOIN users u ON u.id = t.created_by"

// CreateTrips persists sibling trip rows in one transaction.
func (s *SQLiteStore) CreateTrips(ctx context.Context, trips []*models.Trip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, trip := range trips {
		if trip.ID == "" {
			trip.ID = uuid.New().String()
		}
		if trip.CreatedAt == 0 {
			trip.CreatedAt = now
		}
		currencies, err := encodeList(trip.Currencies)
		if err != nil {
			return fmt.Errorf("failed to encode currencies: %w", err)
		}
		locations, err := encodeList(trip.Locations)
		if err != nil {
			return fmt.Errorf("failed to encode locations: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO trips (id, user_id, group_id, name, start_date, end_date, currencies, locations, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			trip.ID, trip.UserID, trip.GroupID, trip.Name,
			dateValue(trip.StartDate), dateValue(trip.EndDate),
			currencies, locations, trip.CreatedBy, trip.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateTrip updates the shared fields of every row of trip.GroupID.
func (s *SQLiteStore) UpdateTrip(ctx context.Context, trip *models.Trip) error {
	currencies, err := encodeList(trip.Currencies)
	if err != nil {
		return fmt.Errorf("failed to encode currencies: %w", err)
	}
	locations, err := encodeList(trip.Locations)
	if err != nil {
		return fmt.Errorf("failed to encode locations: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE trips SET name = ?, start_date = ?, end_date = ?, currencies = ?, locations = ?
		 WHERE group_id = ?`,
		trip.Name, dateValue(trip.StartDate), dateValue(trip.EndDate), currencies, locations, trip.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("trip group %s: %w", trip.GroupID, storage.ErrNotFound)
	}
	return nil
}

// GetTrip retrieves a trip row by ID.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	row := s.db.QueryRowContext(ctx, tripSelect+" WHERE t.id = ?", tripID)
	trip, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// ListTripsByUser returns the user's trips, most recent first.
func (s *SQLiteStore) ListTripsByUser(ctx context.Context, userID string) ([]*models.Trip, error) {
	return s.listTrips(ctx, tripSelect+" WHERE t.user_id = ? ORDER BY t.created_at DESC, t.name", userID)
}

// ListTripsByGroup returns every sibling row of a group.
func (s *SQLiteStore) ListTripsByGroup(ctx context.Context, groupID string) ([]*models.Trip, error) {
	return s.listTrips(ctx, tripSelect+" WHERE t.group_id = ? ORDER BY t.user_id", groupID)
}

func (s *SQLiteStore) listTrips(ctx context.Context, query string, args ...any) ([]*models.Trip, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}
	return trips, nil
}

// DeleteTrip removes every trip row and expense row of the group in one
// transaction, whichever participant owns them.
func (s *SQLiteStore) DeleteTrip(ctx context.Context, groupID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete expenses: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM trips WHERE group_id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete trips: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("trip group %s: %w", groupID, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(row scanner) (*models.Trip, error) {
	var (
		trip                  models.Trip
		start, end            sql.NullString
		currencies, locations string
	)
	if err := row.Scan(
		&trip.ID, &trip.UserID, &trip.GroupID, &trip.Name, &start, &end,
		&currencies, &locations, &trip.CreatedBy, &trip.CreatedByName, &trip.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if trip.StartDate, err = scanDate(start); err != nil {
		return nil, err
	}
	if trip.EndDate, err = scanDate(end); err != nil {
		return nil, err
	}
	if trip.Currencies, err = decodeList(currencies); err != nil {
		return nil, err
	}
	if trip.Locations, err = decodeList(locations); err != nil {
		return nil, err
	}
	return &trip, nil
}
