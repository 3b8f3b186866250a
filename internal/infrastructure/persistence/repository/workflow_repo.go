package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	"github.com/millworks/backoffice/internal/domain/approval"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts the workflow, its stage instances, frozen approver sets and
// any system decisions. The partial unique index on open workflows maps
// constraint violations to approval.ErrWorkflowExists.
func (r *WorkflowRepository) Create(ctx context.Context, wf *approval.Workflow) error {
	ex := getExecutor(ctx, r.db)

	result, err := ex.ExecContext(ctx, `
		INSERT INTO approval_workflows
			(subject_kind, subject_id, policy_id, policy_name,
			 current_stage_order, is_complete, is_rejected, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, wf.SubjectKind, wf.SubjectID, wf.PolicyID, wf.PolicyName,
		wf.CurrentStageOrder, wf.IsComplete, wf.IsRejected, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%d", approval.ErrWorkflowExists, wf.SubjectKind, wf.SubjectID)
		}
		if isBusyConflict(err) {
			return fmt.Errorf("%w: create workflow: %v", approval.ErrConcurrencyConflict, err)
		}
		r.logger.Error("Failed to create workflow", zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	if wf.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	wf.Version = 1

	for _, stage := range wf.Stages {
		stage.WorkflowID = wf.ID
		res, err := ex.ExecContext(ctx, `
			INSERT INTO approval_stage_instances
				(workflow_id, stage_order, name, quorum, is_complete, is_rejected, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, wf.ID, stage.Order, stage.Name, stage.RequiredApprovals(),
			stage.IsComplete, stage.IsRejected, stage.CreatedAt, stage.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create stage instance %d: %w", stage.Order, err)
		}
		if stage.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		for i, userID := range stage.Approvers {
			if _, err := ex.ExecContext(ctx, `
				INSERT INTO approval_stage_approvers (stage_instance_id, user_id, sort_order)
				VALUES (?, ?, ?)
			`, stage.ID, userID, i); err != nil {
				return fmt.Errorf("failed to freeze approver %d: %w", userID, err)
			}
		}

		for i := range stage.Decisions {
			d := &stage.Decisions[i]
			d.StageInstanceID = stage.ID
			if err := r.AddDecision(ctx, d); err != nil {
				return err
			}
		}
	}

	return nil
}

// GetBySubject loads the most recent workflow for a subject
func (r *WorkflowRepository) GetBySubject(ctx context.Context, ref approval.SubjectRef) (*approval.Workflow, error) {
	return r.getOne(ctx, `
		SELECT id, subject_kind, subject_id, policy_id, policy_name,
			current_stage_order, is_complete, is_rejected, version, created_at, updated_at
		FROM approval_workflows
		WHERE subject_kind = ? AND subject_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, ref.Kind, ref.ID)
}

// GetOpenBySubject loads the non-terminal workflow for a subject
func (r *WorkflowRepository) GetOpenBySubject(ctx context.Context, ref approval.SubjectRef) (*approval.Workflow, error) {
	return r.getOne(ctx, `
		SELECT id, subject_kind, subject_id, policy_id, policy_name,
			current_stage_order, is_complete, is_rejected, version, created_at, updated_at
		FROM approval_workflows
		WHERE subject_kind = ? AND subject_id = ? AND is_complete = 0 AND is_rejected = 0
	`, ref.Kind, ref.ID)
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, args ...interface{}) (*approval.Workflow, error) {
	var wf approval.Workflow
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(
		&wf.ID, &wf.SubjectKind, &wf.SubjectID, &wf.PolicyID, &wf.PolicyName,
		&wf.CurrentStageOrder, &wf.IsComplete, &wf.IsRejected, &wf.Version,
		&wf.CreatedAt, &wf.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if err := r.loadStages(ctx, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// UpdateState writes the workflow state guarded by the version column
func (r *WorkflowRepository) UpdateState(ctx context.Context, wf *approval.Workflow) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE approval_workflows
		SET current_stage_order = ?, is_complete = ?, is_rejected = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, wf.CurrentStageOrder, wf.IsComplete, wf.IsRejected, time.Now(), wf.ID, wf.Version)
	if err != nil {
		if isBusyConflict(err) {
			return fmt.Errorf("%w: workflow %d: %v", approval.ErrConcurrencyConflict, wf.ID, err)
		}
		r.logger.Error("Failed to update workflow state", zap.Int64("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: workflow %d version %d", approval.ErrConcurrencyConflict, wf.ID, wf.Version)
	}

	wf.Version++
	return nil
}

// UpdateStage writes the terminal flags of a stage instance
func (r *WorkflowRepository) UpdateStage(ctx context.Context, stage *approval.StageInstance) error {
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE approval_stage_instances
		SET is_complete = ?, is_rejected = ?, updated_at = ?
		WHERE id = ?
	`, stage.IsComplete, stage.IsRejected, time.Now(), stage.ID)
	if err != nil {
		if isBusyConflict(err) {
			return fmt.Errorf("%w: stage instance %d: %v", approval.ErrConcurrencyConflict, stage.ID, err)
		}
		r.logger.Error("Failed to update stage instance", zap.Int64("id", stage.ID), zap.Error(err))
		return fmt.Errorf("failed to update stage instance: %w", err)
	}
	return nil
}

// AddDecision appends a decision record to a stage instance
func (r *WorkflowRepository) AddDecision(ctx context.Context, d *approval.Decision) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO approval_decisions
			(stage_instance_id, approver_id, outcome, comment, is_system, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.StageInstanceID, d.ApproverID, d.Outcome, d.Comment, d.IsSystem, d.DecidedAt)
	if err != nil {
		if isBusyConflict(err) {
			return fmt.Errorf("%w: stage instance %d: %v", approval.ErrConcurrencyConflict, d.StageInstanceID, err)
		}
		r.logger.Error("Failed to add decision", zap.Int64("stage_instance_id", d.StageInstanceID), zap.Error(err))
		return fmt.Errorf("failed to add decision: %w", err)
	}

	if d.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

// ListOpenForApprover returns non-terminal workflows whose currently open
// stage includes the user in its frozen approver set
func (r *WorkflowRepository) ListOpenForApprover(ctx context.Context, userID int64) ([]*approval.Workflow, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT w.id, w.subject_kind, w.subject_id, w.policy_id, w.policy_name,
			w.current_stage_order, w.is_complete, w.is_rejected, w.version,
			w.created_at, w.updated_at
		FROM approval_workflows w
		JOIN approval_stage_instances s
			ON s.workflow_id = w.id AND s.stage_order = w.current_stage_order
		JOIN approval_stage_approvers a
			ON a.stage_instance_id = s.id
		WHERE w.is_complete = 0 AND w.is_rejected = 0
			AND s.is_complete = 0 AND s.is_rejected = 0
			AND a.user_id = ?
		ORDER BY w.id DESC
	`, userID)
	if err != nil {
		r.logger.Error("Failed to list workflows for approver", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows for approver: %w", err)
	}
	defer rows.Close()

	var workflows []*approval.Workflow
	for rows.Next() {
		var wf approval.Workflow
		if err := rows.Scan(
			&wf.ID, &wf.SubjectKind, &wf.SubjectID, &wf.PolicyID, &wf.PolicyName,
			&wf.CurrentStageOrder, &wf.IsComplete, &wf.IsRejected, &wf.Version,
			&wf.CreatedAt, &wf.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, wf := range workflows {
		if err := r.loadStages(ctx, wf); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

func (r *WorkflowRepository) loadStages(ctx context.Context, wf *approval.Workflow) error {
	ex := getExecutor(ctx, r.db)

	rows, err := ex.QueryContext(ctx, `
		SELECT id, workflow_id, stage_order, name, quorum, is_complete, is_rejected, created_at, updated_at
		FROM approval_stage_instances
		WHERE workflow_id = ?
		ORDER BY stage_order
	`, wf.ID)
	if err != nil {
		return fmt.Errorf("failed to load stage instances: %w", err)
	}
	defer rows.Close()

	wf.Stages = nil
	for rows.Next() {
		var stage approval.StageInstance
		if err := rows.Scan(
			&stage.ID, &stage.WorkflowID, &stage.Order, &stage.Name, &stage.Quorum,
			&stage.IsComplete, &stage.IsRejected, &stage.CreatedAt, &stage.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan stage instance: %w", err)
		}
		wf.Stages = append(wf.Stages, &stage)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, stage := range wf.Stages {
		if err := r.loadApprovers(ctx, stage); err != nil {
			return err
		}
		if err := r.loadDecisions(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (r *WorkflowRepository) loadApprovers(ctx context.Context, stage *approval.StageInstance) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT user_id
		FROM approval_stage_approvers
		WHERE stage_instance_id = ?
		ORDER BY sort_order
	`, stage.ID)
	if err != nil {
		return fmt.Errorf("failed to load approvers: %w", err)
	}
	defer rows.Close()

	stage.Approvers = approval.ApproverSet{}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("failed to scan approver: %w", err)
		}
		stage.Approvers = append(stage.Approvers, userID)
	}
	return rows.Err()
}

func (r *WorkflowRepository) loadDecisions(ctx context.Context, stage *approval.StageInstance) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, stage_instance_id, approver_id, outcome, comment, is_system, decided_at
		FROM approval_decisions
		WHERE stage_instance_id = ?
		ORDER BY id
	`, stage.ID)
	if err != nil {
		return fmt.Errorf("failed to load decisions: %w", err)
	}
	defer rows.Close()

	stage.Decisions = nil
	for rows.Next() {
		var d approval.Decision
		if err := rows.Scan(&d.ID, &d.StageInstanceID, &d.ApproverID, &d.Outcome, &d.Comment, &d.IsSystem, &d.DecidedAt); err != nil {
			return fmt.Errorf("failed to scan decision: %w", err)
		}
		stage.Decisions = append(stage.Decisions, d)
	}
	return rows.Err()
}

// isUniqueViolation reports whether the error is a sqlite unique constraint
// failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isBusyConflict reports whether the error is sqlite write contention. Under
// WAL the losing writer of a write-write race fails with SQLITE_BUSY as soon
// as its read snapshot is stale; the busy timeout does not resolve that, so
// it must surface as a concurrency conflict the engine can retry.
func isBusyConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
