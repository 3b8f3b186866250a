package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
)

// UserDirectory implements port.UserDirectory against the users table
type UserDirectory struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserDirectory creates a new directory backed by the users table
func NewUserDirectory(db *sql.DB, logger *zap.Logger) port.UserDirectory {
	return &UserDirectory{db: db, logger: logger}
}

// UsersInRole returns the ids of all active users holding the role
func (r *UserDirectory) UsersInRole(ctx context.Context, role string) ([]int64, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id FROM users WHERE role = ? AND is_active = 1 ORDER BY id
	`, role)
	if err != nil {
		r.logger.Error("Failed to look up role", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to look up role %q: %w", role, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ManagerOf returns the manager's user id, or 0 when the user has none
func (r *UserDirectory) ManagerOf(ctx context.Context, userID int64) (int64, error) {
	var managerID sql.NullInt64
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT manager_id FROM users WHERE id = ?
	`, userID).Scan(&managerID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up manager", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to look up manager of %d: %w", userID, err)
	}
	if !managerID.Valid {
		return 0, nil
	}
	return managerID.Int64, nil
}

// Verify interface compliance
var _ port.UserDirectory = (*UserDirectory)(nil)
