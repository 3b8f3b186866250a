package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// PolicyService administers approval policies. Policies only govern
// workflows materialized after the change; existing workflows keep their
// frozen stage plan.
type PolicyService interface {
	Create(ctx context.Context, policy *domainappr.Policy) (*domainappr.Policy, error)
	Get(ctx context.Context, id int64) (*domainappr.Policy, error)
	List(ctx context.Context) ([]*domainappr.Policy, error)
}

type policyServiceImpl struct {
	policies  port.PolicyRepository
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewPolicyService creates a new PolicyService
func NewPolicyService(policies port.PolicyRepository, txManager port.TransactionManager, logger *zap.Logger) PolicyService {
	return &policyServiceImpl{policies: policies, txManager: txManager, logger: logger}
}

// Create validates and persists a policy with its stage templates
func (s *policyServiceImpl) Create(ctx context.Context, policy *domainappr.Policy) (*domainappr.Policy, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.policies.Create(txCtx, policy)
	})
	if err != nil {
		s.logger.Error("Failed to create policy", zap.String("name", policy.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Policy created",
		zap.Int64("id", policy.ID),
		zap.String("name", policy.Name),
		zap.Int("stages", len(policy.Stages)))
	return policy, nil
}

// Get retrieves a policy by ID
func (s *policyServiceImpl) Get(ctx context.Context, id int64) (*domainappr.Policy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: policy %d", ErrNotFound, id)
	}
	return policy, nil
}

// List returns all policies ordered by selection priority
func (s *policyServiceImpl) List(ctx context.Context) ([]*domainappr.Policy, error) {
	return s.policies.List(ctx)
}
