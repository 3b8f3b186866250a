// Package approval implements the generic approval workflow engine: policy
// selection, workflow materialization, decision processing and subject
// notification. Subject entities interact with it only through the Engine
// facade and the SubjectHandler callback contract.
package approval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// Selector picks the single applicable policy for a subject classification
type Selector struct {
	policies port.PolicyRepository
	logger   *zap.Logger
}

// NewSelector creates a policy selector
func NewSelector(policies port.PolicyRepository, logger *zap.Logger) *Selector {
	return &Selector{policies: policies, logger: logger}
}

// SelectPolicy returns the first active policy whose predicates all match the
// classification, in ascending selection-priority order. Returns
// approval.ErrNoPolicyMatched when none applies.
func (s *Selector) SelectPolicy(ctx context.Context, c domainappr.Classification) (*domainappr.Policy, error) {
	candidates, err := s.policies.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active policies: %w", err)
	}

	for _, p := range candidates {
		if p.Matches(c) {
			s.logger.Debug("Policy selected",
				zap.String("policy", p.Name),
				zap.Int("priority", p.SelectionPriority))
			return p, nil
		}
	}

	return nil, fmt.Errorf("%w: classification %v", domainappr.ErrNoPolicyMatched, c)
}
