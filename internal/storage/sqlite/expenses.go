package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

const expenseSelect = `SELECT id, group_id, participant_id, expense_id, location, category,
	description, amount, currency_code, original_amount, date, stay_start, stay_end,
	created_at, updated_at
	FROM expenses`

// ListExpenseRows returns every row of a group, newest day first.
func (s *SQLiteStore) ListExpenseRows(ctx context.Context, groupID string) ([]*models.ExpenseRow, error) {
	return s.queryExpenseRows(ctx, expenseSelect+" WHERE group_id = ? ORDER BY date DESC, id", groupID)
}

// ListExpenseRowsByParticipant returns one participant's rows of a group.
func (s *SQLiteStore) ListExpenseRowsByParticipant(ctx context.Context, groupID, participantID string) ([]*models.ExpenseRow, error) {
	return s.queryExpenseRows(ctx,
		expenseSelect+" WHERE group_id = ? AND participant_id = ? ORDER BY date DESC, id",
		groupID, participantID,
	)
}

// GetExpenseRows returns every row of one expense.
func (s *SQLiteStore) GetExpenseRows(ctx context.Context, expenseID string) ([]*models.ExpenseRow, error) {
	return s.queryExpenseRows(ctx, expenseSelect+" WHERE expense_id = ? ORDER BY participant_id", expenseID)
}

// SyncedExpenseRows returns the group's rows with a non-empty expense id,
// plus the rows of expenseIDs filed under other groups.
func (s *SQLiteStore) SyncedExpenseRows(ctx context.Context, groupID string, expenseIDs []string) ([]*models.ExpenseRow, error) {
	if len(expenseIDs) == 0 {
		return s.queryExpenseRows(ctx, expenseSelect+" WHERE group_id = ? AND expense_id != ''", groupID)
	}
	in, args := inArgs(expenseIDs)
	return s.queryExpenseRows(ctx,
		expenseSelect+" WHERE expense_id != '' AND (group_id = ? OR expense_id IN "+in+")",
		append([]any{groupID}, args...)...,
	)
}

// InsertExpenseRows inserts rows in one transaction.
func (s *SQLiteStore) InsertExpenseRows(ctx context.Context, rows []*models.ExpenseRow) error {
	return s.ReplaceExpenseRows(ctx, "", rows)
}

// ReplaceExpenseRows deletes the rows of oldExpenseID, if any, and inserts
// rows in one transaction.
func (s *SQLiteStore) ReplaceExpenseRows(ctx context.Context, oldExpenseID string, rows []*models.ExpenseRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if oldExpenseID != "" {
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE expense_id = ?", oldExpenseID); err != nil {
			return fmt.Errorf("failed to delete expense rows: %w", err)
		}
	}
	if err := insertRows(ctx, tx, rows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ApplyExpenseChanges applies one reconciliation batch atomically.
// Updates touch only group, description, amounts, currency and date.
// Deletes only remove rows of changes.GroupID.
func (s *SQLiteStore) ApplyExpenseChanges(ctx context.Context, changes models.ExpenseChanges) error {
	if len(changes.Deletes) > 0 && changes.GroupID == "" {
		return fmt.Errorf("failed to apply expense changes: deletes need a group id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRows(ctx, tx, changes.Inserts); err != nil {
		return err
	}

	if len(changes.Updates) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`UPDATE expenses SET group_id = ?, description = ?, amount = ?, currency_code = ?,
				original_amount = ?, date = ?, updated_at = ?
			 WHERE expense_id = ? AND participant_id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, row := range changes.Updates {
			row.UpdatedAt = now
			_, err := stmt.ExecContext(ctx,
				row.GroupID, row.Description, row.Amount, row.CurrencyCode, row.OriginalAmount,
				dateValue(&row.Date), now, row.ExpenseID, row.ParticipantID,
			)
			if err != nil {
				return fmt.Errorf("failed to update expense row: %w", err)
			}
		}
	}

	if len(changes.Deletes) > 0 {
		in, args := inArgs(changes.Deletes)
		_, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE group_id = ? AND expense_id IN "+in,
			append([]any{changes.GroupID}, args...)...)
		if err != nil {
			return fmt.Errorf("failed to delete stale expense rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateExpenseDetails sets the locally owned fields of every row of an expense.
func (s *SQLiteStore) UpdateExpenseDetails(ctx context.Context, expenseID string, details models.ExpenseDetails) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET location = ?, category = ?, stay_start = ?, stay_end = ?, updated_at = ?
		 WHERE expense_id = ?`,
		details.Location, details.Category, dateValue(details.StayStart), dateValue(details.StayEnd),
		time.Now().Unix(), expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense details: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// DeleteExpense removes every row of an expense.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE expense_id = ?", expenseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, rows []*models.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (group_id, participant_id, expense_id, location, category, description,
			amount, currency_code, original_amount, date, stay_start, stay_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, row := range rows {
		if row.CreatedAt == 0 {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		result, err := stmt.ExecContext(ctx,
			row.GroupID, row.ParticipantID, row.ExpenseID, row.Location, row.Category, row.Description,
			row.Amount, row.CurrencyCode, row.OriginalAmount, dateValue(&row.Date),
			dateValue(row.StayStart), dateValue(row.StayEnd), row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense row: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			row.ID = id
		}
	}
	return nil
}

func (s *SQLiteStore) queryExpenseRows(ctx context.Context, query string, args ...any) ([]*models.ExpenseRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense rows: %w", err)
	}
	defer rows.Close()

	var out []*models.ExpenseRow
	for rows.Next() {
		var (
			row                      models.ExpenseRow
			date, stayStart, stayEnd sql.NullString
		)
		if err := rows.Scan(
			&row.ID, &row.GroupID, &row.ParticipantID, &row.ExpenseID, &row.Location, &row.Category,
			&row.Description, &row.Amount, &row.CurrencyCode, &row.OriginalAmount,
			&date, &stayStart, &stayEnd, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense row: %w", err)
		}

		day, err := scanDate(date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expense date: %w", err)
		}
		if day != nil {
			row.Date = *day
		}
		if row.StayStart, err = scanDate(stayStart); err != nil {
			return nil, fmt.Errorf("failed to parse stay start: %w", err)
		}
		if row.StayEnd, err = scanDate(stayEnd); err != nil {
			return nil, fmt.Errorf("failed to parse stay end: %w", err)
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense rows: %w", err)
	}
	return out, nil
}
