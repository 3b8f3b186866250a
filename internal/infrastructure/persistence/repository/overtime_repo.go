package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// OvertimeRepository implements port.OvertimeRepository
type OvertimeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOvertimeRepository creates a new overtime repository
func NewOvertimeRepository(db *sql.DB, logger *zap.Logger) port.OvertimeRepository {
	return &OvertimeRepository{db: db, logger: logger}
}

// Create inserts an overtime request and its entries
func (r *OvertimeRepository) Create(ctx context.Context, req *entity.OvertimeRequest) error {
	ex := getExecutor(ctx, r.db)

	result, err := ex.ExecContext(ctx, `
		INSERT INTO overtime_requests
			(requester_id, team, reason, start_at, end_at, duration_hours, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.RequesterID, req.Team, req.Reason, req.StartAt, req.EndAt,
		req.DurationHours, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create overtime request", zap.Error(err))
		return fmt.Errorf("failed to create overtime request: %w", err)
	}

	if req.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := range req.Entries {
		e := &req.Entries[i]
		e.RequestID = req.ID
		res, err := ex.ExecContext(ctx, `
			INSERT INTO overtime_entries (request_id, user_id, job_no, description, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, req.ID, e.UserID, e.JobNo, e.Description, req.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create overtime entry: %w", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	return nil
}

// GetByID retrieves an overtime request with entries
func (r *OvertimeRepository) GetByID(ctx context.Context, id int64) (*entity.OvertimeRequest, error) {
	var req entity.OvertimeRequest
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, requester_id, team, reason, start_at, end_at, duration_hours, status, created_at, updated_at
		FROM overtime_requests
		WHERE id = ?
	`, id).Scan(
		&req.ID, &req.RequesterID, &req.Team, &req.Reason, &req.StartAt, &req.EndAt,
		&req.DurationHours, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get overtime request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get overtime request: %w", err)
	}

	if err := r.loadEntries(ctx, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateStatus updates the denormalized status
func (r *OvertimeRepository) UpdateStatus(ctx context.Context, id int64, status entity.OvertimeStatus) error {
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE overtime_requests SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update overtime status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update overtime status: %w", err)
	}
	return nil
}

// List retrieves overtime requests with pagination, newest first
func (r *OvertimeRepository) List(ctx context.Context, limit, offset int) ([]*entity.OvertimeRequest, error) {
	return r.queryMany(ctx, `
		SELECT id, requester_id, team, reason, start_at, end_at, duration_hours, status, created_at, updated_at
		FROM overtime_requests
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// ListByIDs retrieves the given requests with entries loaded
func (r *OvertimeRepository) ListByIDs(ctx context.Context, ids []int64) ([]*entity.OvertimeRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.queryMany(ctx, fmt.Sprintf(`
		SELECT id, requester_id, team, reason, start_at, end_at, duration_hours, status, created_at, updated_at
		FROM overtime_requests
		WHERE id IN (%s)
		ORDER BY id DESC
	`, placeholders), args...)
}

// CountOverlapping counts open requests sharing an entry user whose time
// range intersects [start, end)
func (r *OvertimeRepository) CountOverlapping(ctx context.Context, userIDs []int64, start, end time.Time, excludeID int64) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs)-1) + "?"
	args := make([]interface{}, 0, len(userIDs)+3)
	for _, id := range userIDs {
		args = append(args, id)
	}
	// overlap condition: existing.start < new.end AND existing.end > new.start
	args = append(args, end, start, excludeID)

	var count int
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(DISTINCT r.id)
		FROM overtime_requests r
		JOIN overtime_entries e ON e.request_id = r.id
		WHERE r.status IN ('submitted', 'approved')
			AND e.user_id IN (%s)
			AND r.start_at < ? AND r.end_at > ?
			AND r.id != ?
	`, placeholders), args...).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count overlapping requests", zap.Error(err))
		return 0, fmt.Errorf("failed to count overlapping requests: %w", err)
	}
	return count, nil
}

func (r *OvertimeRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.OvertimeRequest, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list overtime requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list overtime requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.OvertimeRequest
	for rows.Next() {
		var req entity.OvertimeRequest
		if err := rows.Scan(
			&req.ID, &req.RequesterID, &req.Team, &req.Reason, &req.StartAt, &req.EndAt,
			&req.DurationHours, &req.Status, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan overtime request: %w", err)
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, req := range requests {
		if err := r.loadEntries(ctx, req); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (r *OvertimeRepository) loadEntries(ctx context.Context, req *entity.OvertimeRequest) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, request_id, user_id, job_no, description, created_at
		FROM overtime_entries
		WHERE request_id = ?
		ORDER BY id
	`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load overtime entries: %w", err)
	}
	defer rows.Close()

	req.Entries = nil
	for rows.Next() {
		var e entity.OvertimeEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.UserID, &e.JobNo, &e.Description, &e.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan overtime entry: %w", err)
		}
		req.Entries = append(req.Entries, e)
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.OvertimeRepository = (*OvertimeRepository)(nil)
