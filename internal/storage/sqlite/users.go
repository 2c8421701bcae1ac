package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/models"
)

const userColumns = "id, COALESCE(remote_id, ''), name, email, password_hash, created_at, updated_at"

// nullString maps "" to NULL so local-only users do not collide on remote_id.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, remote_id, name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		nullString(user.RemoteID),
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpsertUser inserts the user keyed by RemoteID, or refreshes name and email
// of the existing one. user.ID is set to the stored id.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) error {
	if user.RemoteID == "" {
		return fmt.Errorf("failed to upsert user: remote id is required")
	}
	now := time.Now().Unix()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, remote_id, name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END,
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE users.email END,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.ID, user.RemoteID, user.Name, user.Email, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *SQLiteStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + column + " = ? LIMIT 1"

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.RemoteID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}

// GetUsersByRemoteIDs retrieves users keyed by remote id. Unknown ids are
// omitted from the result.
func (s *SQLiteStore) GetUsersByRemoteIDs(ctx context.Context, remoteIDs []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(remoteIDs) == 0 {
		return users, nil
	}

	in, args := inArgs(remoteIDs)
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE remote_id IN "+in, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by remote ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(
			&user.ID,
			&user.RemoteID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[user.RemoteID] = user
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}
