package approval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// ApproverResolver evaluates a stage template's approver-resolution rule
// against the subject snapshot. Evaluation happens exactly once, at
// materialization time; the result is frozen into the stage instance.
type ApproverResolver struct {
	directory port.UserDirectory
	logger    *zap.Logger
}

// NewApproverResolver creates an approver resolver backed by the directory
func NewApproverResolver(directory port.UserDirectory, logger *zap.Logger) *ApproverResolver {
	return &ApproverResolver{directory: directory, logger: logger}
}

// Resolve returns the approver set for the rule. An empty set is a valid
// result and makes the stage auto-skip.
func (r *ApproverResolver) Resolve(ctx context.Context, rule domainappr.ApproverRule, snapshot domainappr.Snapshot) (domainappr.ApproverSet, error) {
	switch rule.Kind {
	case domainappr.RuleFixedUsers:
		return dedupe(rule.UserIDs), nil

	case domainappr.RuleRole:
		ids, err := r.directory.UsersInRole(ctx, rule.Role)
		if err != nil {
			return nil, fmt.Errorf("resolve role %q: %w", rule.Role, err)
		}
		return dedupe(ids), nil

	case domainappr.RuleManagerOfRequester:
		requesterID, ok := snapshot.RequesterID()
		if !ok {
			return nil, fmt.Errorf("snapshot has no requester_id for manager rule")
		}
		managerID, err := r.directory.ManagerOf(ctx, requesterID)
		if err != nil {
			return nil, fmt.Errorf("resolve manager of %d: %w", requesterID, err)
		}
		if managerID == 0 {
			// No manager on record: the stage auto-skips.
			return domainappr.ApproverSet{}, nil
		}
		return domainappr.ApproverSet{managerID}, nil

	default:
		return nil, fmt.Errorf("unknown approver rule kind: %s", rule.Kind)
	}
}

func dedupe(ids []int64) domainappr.ApproverSet {
	seen := make(map[int64]bool, len(ids))
	out := make(domainappr.ApproverSet, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
