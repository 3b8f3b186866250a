package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// PurchaseRepository implements port.PurchaseRepository
type PurchaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *sql.DB, logger *zap.Logger) port.PurchaseRepository {
	return &PurchaseRepository{db: db, logger: logger}
}

// NextRequestNumber allocates the next PR-<year>-NNNN value. Call inside the
// creation transaction so concurrent submissions cannot allocate the same
// number.
func (r *PurchaseRepository) NextRequestNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("PR-%d-", year)

	var last string
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT request_number
		FROM purchase_requests
		WHERE request_number LIKE ?
		ORDER BY id DESC
		LIMIT 1
	`, prefix+"%").Scan(&last)
	if err == sql.ErrNoRows {
		return fmt.Sprintf("%s%04d", prefix, 1), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last request number: %w", err)
	}

	seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil {
		return "", fmt.Errorf("malformed request number %q: %w", last, err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// Create inserts a purchase request and its line items
func (r *PurchaseRepository) Create(ctx context.Context, req *entity.PurchaseRequest) error {
	ex := getExecutor(ctx, r.db)

	result, err := ex.ExecContext(ctx, `
		INSERT INTO purchase_requests
			(request_number, title, description, requester_id, department, priority, status,
			 created_at, updated_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.RequestNumber, req.Title, req.Description, req.RequesterID, req.Department,
		req.Priority, req.Status, req.CreatedAt, req.UpdatedAt, req.SubmittedAt)
	if err != nil {
		r.logger.Error("Failed to create purchase request", zap.Error(err))
		return fmt.Errorf("failed to create purchase request: %w", err)
	}

	if req.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := range req.Items {
		it := &req.Items[i]
		it.PurchaseRequestID = req.ID
		it.SortOrder = i
		res, err := ex.ExecContext(ctx, `
			INSERT INTO purchase_request_items
				(purchase_request_id, item_code, item_name, unit, quantity, specifications, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, req.ID, it.ItemCode, it.ItemName, it.Unit, it.Quantity, it.Specifications, it.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to create purchase request item: %w", err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a purchase request with line items
func (r *PurchaseRepository) GetByID(ctx context.Context, id int64) (*entity.PurchaseRequest, error) {
	var req entity.PurchaseRequest
	var submittedAt sql.NullTime
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, request_number, title, description, requester_id, department, priority, status,
			created_at, updated_at, submitted_at
		FROM purchase_requests
		WHERE id = ?
	`, id).Scan(
		&req.ID, &req.RequestNumber, &req.Title, &req.Description, &req.RequesterID,
		&req.Department, &req.Priority, &req.Status, &req.CreatedAt, &req.UpdatedAt, &submittedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase request: %w", err)
	}
	if submittedAt.Valid {
		req.SubmittedAt = &submittedAt.Time
	}

	if err := r.loadItems(ctx, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateStatus updates the denormalized status. The submitted_at timestamp is
// set on the first transition to submitted.
func (r *PurchaseRepository) UpdateStatus(ctx context.Context, id int64, status entity.PurchaseStatus) error {
	now := time.Now()
	var err error
	if status == entity.PurchaseSubmitted {
		_, err = getExecutor(ctx, r.db).ExecContext(ctx, `
			UPDATE purchase_requests
			SET status = ?, updated_at = ?, submitted_at = COALESCE(submitted_at, ?)
			WHERE id = ?
		`, status, now, now, id)
	} else {
		_, err = getExecutor(ctx, r.db).ExecContext(ctx, `
			UPDATE purchase_requests SET status = ?, updated_at = ? WHERE id = ?
		`, status, now, id)
	}
	if err != nil {
		r.logger.Error("Failed to update purchase status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update purchase status: %w", err)
	}
	return nil
}

// List retrieves purchase requests with pagination, newest first
func (r *PurchaseRepository) List(ctx context.Context, limit, offset int) ([]*entity.PurchaseRequest, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, request_number, title, description, requester_id, department, priority, status,
			created_at, updated_at, submitted_at
		FROM purchase_requests
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list purchase requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list purchase requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.PurchaseRequest
	for rows.Next() {
		var req entity.PurchaseRequest
		var submittedAt sql.NullTime
		if err := rows.Scan(
			&req.ID, &req.RequestNumber, &req.Title, &req.Description, &req.RequesterID,
			&req.Department, &req.Priority, &req.Status, &req.CreatedAt, &req.UpdatedAt, &submittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase request: %w", err)
		}
		if submittedAt.Valid {
			req.SubmittedAt = &submittedAt.Time
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, req := range requests {
		if err := r.loadItems(ctx, req); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (r *PurchaseRepository) loadItems(ctx context.Context, req *entity.PurchaseRequest) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, purchase_request_id, item_code, item_name, unit, quantity, specifications, sort_order
		FROM purchase_request_items
		WHERE purchase_request_id = ?
		ORDER BY sort_order
	`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load purchase request items: %w", err)
	}
	defer rows.Close()

	req.Items = nil
	for rows.Next() {
		var it entity.PurchaseRequestItem
		if err := rows.Scan(&it.ID, &it.PurchaseRequestID, &it.ItemCode, &it.ItemName, &it.Unit, &it.Quantity, &it.Specifications, &it.SortOrder); err != nil {
			return fmt.Errorf("failed to scan purchase request item: %w", err)
		}
		req.Items = append(req.Items, it)
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.PurchaseRepository = (*PurchaseRepository)(nil)
