package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/denisplanner/backend/internal/core"
)

const userColumns = "id, username, email, trust_score, reports_made, created_at"

// CreateUser inserts a new user with the default trust score and returns its id.
func (db *DB) CreateUser(ctx context.Context, username, email string) (int64, error) {
	res, err := db.sql.ExecContext(ctx,
		"INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)",
		username, email, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create user %q: %w", username, err)
	}
	return res.LastInsertId()
}

// GetUser retrieves a user by id.
func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	return db.scanUser(db.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByName retrieves a user by username. A missing user maps to
// core.ErrUnknownUser so the pipeline can classify it.
func (db *DB) GetUserByName(ctx context.Context, username string) (*User, error) {
	u, err := db.scanUser(db.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if errors.Is(err, core.ErrUnknownUser) {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownUser, username)
	}
	return u, err
}

// UpdateTrustScore persists a new trust score for the user.
func (db *DB) UpdateTrustScore(ctx context.Context, id int64, score float64) error {
	_, err := db.sql.ExecContext(ctx,
		"UPDATE users SET trust_score = ? WHERE id = ?", score, id)
	if err != nil {
		return fmt.Errorf("update trust score for user %d: %w", id, err)
	}
	return nil
}

// ListUsers returns all users.
func (db *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var email sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &email, &u.TrustScore, &u.ReportsMade, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Email = email.String
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	var email sql.NullString
	err := row.Scan(&u.ID, &u.Username, &email, &u.TrustScore, &u.ReportsMade, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Email = email.String
	return &u, nil
}
