package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	"github.com/millworks/backoffice/internal/domain/approval"
)

// PolicyRepository implements port.PolicyRepository
type PolicyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sql.DB, logger *zap.Logger) port.PolicyRepository {
	return &PolicyRepository{db: db, logger: logger}
}

// Create persists a policy with its stage templates
func (r *PolicyRepository) Create(ctx context.Context, policy *approval.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	matchJSON, err := json.Marshal(policy.Match)
	if err != nil {
		return fmt.Errorf("marshal match predicates: %w", err)
	}

	ex := getExecutor(ctx, r.db)
	now := time.Now()
	result, err := ex.ExecContext(ctx, `
		INSERT INTO approval_policies (name, is_active, selection_priority, match_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, policy.Name, policy.IsActive, policy.SelectionPriority, string(matchJSON), now, now)
	if err != nil {
		r.logger.Error("Failed to create policy", zap.String("name", policy.Name), zap.Error(err))
		return fmt.Errorf("failed to create policy: %w", err)
	}

	policy.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := range policy.Stages {
		tmpl := &policy.Stages[i]
		ruleJSON, err := json.Marshal(tmpl.Rule)
		if err != nil {
			return fmt.Errorf("marshal rule for stage %q: %w", tmpl.Name, err)
		}

		res, err := ex.ExecContext(ctx, `
			INSERT INTO approval_stage_templates (policy_id, stage_order, name, rule_json, quorum)
			VALUES (?, ?, ?, ?, ?)
		`, policy.ID, tmpl.Order, tmpl.Name, string(ruleJSON), tmpl.RequiredApprovals())
		if err != nil {
			return fmt.Errorf("failed to create stage template %q: %w", tmpl.Name, err)
		}
		tmpl.PolicyID = policy.ID
		if tmpl.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a policy with stage templates by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id int64) (*approval.Policy, error) {
	query := `
		SELECT id, name, is_active, selection_priority, match_json
		FROM approval_policies
		WHERE id = ?
	`
	policy, err := r.scanPolicy(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	if err := r.loadStages(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// ListActive returns active policies ordered by ascending selection priority
func (r *PolicyRepository) ListActive(ctx context.Context) ([]*approval.Policy, error) {
	return r.list(ctx, `
		SELECT id, name, is_active, selection_priority, match_json
		FROM approval_policies
		WHERE is_active = 1
		ORDER BY selection_priority, id
	`)
}

// List returns all policies ordered by selection priority
func (r *PolicyRepository) List(ctx context.Context) ([]*approval.Policy, error) {
	return r.list(ctx, `
		SELECT id, name, is_active, selection_priority, match_json
		FROM approval_policies
		ORDER BY selection_priority, id
	`)
}

func (r *PolicyRepository) list(ctx context.Context, query string) ([]*approval.Policy, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list policies", zap.Error(err))
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []*approval.Policy
	for rows.Next() {
		policy, err := r.scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, policy := range policies {
		if err := r.loadStages(ctx, policy); err != nil {
			return nil, err
		}
	}
	return policies, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PolicyRepository) scanPolicy(row rowScanner) (*approval.Policy, error) {
	var policy approval.Policy
	var matchJSON string
	if err := row.Scan(&policy.ID, &policy.Name, &policy.IsActive, &policy.SelectionPriority, &matchJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(matchJSON), &policy.Match); err != nil {
		return nil, fmt.Errorf("unmarshal match predicates for policy %d: %w", policy.ID, err)
	}
	return &policy, nil
}

func (r *PolicyRepository) loadStages(ctx context.Context, policy *approval.Policy) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, policy_id, stage_order, name, rule_json, quorum
		FROM approval_stage_templates
		WHERE policy_id = ?
		ORDER BY stage_order
	`, policy.ID)
	if err != nil {
		return fmt.Errorf("failed to load stage templates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tmpl approval.StageTemplate
		var ruleJSON string
		if err := rows.Scan(&tmpl.ID, &tmpl.PolicyID, &tmpl.Order, &tmpl.Name, &ruleJSON, &tmpl.Quorum); err != nil {
			return fmt.Errorf("failed to scan stage template: %w", err)
		}
		if err := json.Unmarshal([]byte(ruleJSON), &tmpl.Rule); err != nil {
			return fmt.Errorf("unmarshal rule for template %d: %w", tmpl.ID, err)
		}
		policy.Stages = append(policy.Stages, tmpl)
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.PolicyRepository = (*PolicyRepository)(nil)
