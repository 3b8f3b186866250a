package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

func TestApproverResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed users are deduplicated in order", func(t *testing.T) {
		r := NewApproverResolver(&mockDirectory{}, zap.NewNop())
		set, err := r.Resolve(ctx, domainappr.ApproverRule{
			Kind:    domainappr.RuleFixedUsers,
			UserIDs: []int64{3, 1, 3, 2, 1},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, domainappr.ApproverSet{3, 1, 2}, set)
	})

	t.Run("role resolves through the directory", func(t *testing.T) {
		dir := &mockDirectory{
			usersInRoleFunc: func(ctx context.Context, role string) ([]int64, error) {
				assert.Equal(t, "shift_supervisor", role)
				return []int64{5, 6}, nil
			},
		}
		r := NewApproverResolver(dir, zap.NewNop())
		set, err := r.Resolve(ctx, domainappr.ApproverRule{
			Kind: domainappr.RuleRole,
			Role: "shift_supervisor",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, domainappr.ApproverSet{5, 6}, set)
	})

	t.Run("empty role membership is a valid empty set", func(t *testing.T) {
		r := NewApproverResolver(&mockDirectory{}, zap.NewNop())
		set, err := r.Resolve(ctx, domainappr.ApproverRule{Kind: domainappr.RuleRole, Role: "vacant"}, nil)
		require.NoError(t, err)
		assert.True(t, set.IsEmpty())
	})

	t.Run("manager of requester", func(t *testing.T) {
		dir := &mockDirectory{
			managerOfFunc: func(ctx context.Context, userID int64) (int64, error) {
				assert.Equal(t, int64(7), userID)
				return 42, nil
			},
		}
		r := NewApproverResolver(dir, zap.NewNop())
		set, err := r.Resolve(ctx, domainappr.ApproverRule{Kind: domainappr.RuleManagerOfRequester},
			domainappr.Snapshot{"requester_id": int64(7)})
		require.NoError(t, err)
		assert.Equal(t, domainappr.ApproverSet{42}, set)
	})

	t.Run("requester without manager yields empty set", func(t *testing.T) {
		r := NewApproverResolver(&mockDirectory{}, zap.NewNop())
		set, err := r.Resolve(ctx, domainappr.ApproverRule{Kind: domainappr.RuleManagerOfRequester},
			domainappr.Snapshot{"requester_id": int64(7)})
		require.NoError(t, err)
		assert.True(t, set.IsEmpty())
	})

	t.Run("manager rule without requester_id fails", func(t *testing.T) {
		r := NewApproverResolver(&mockDirectory{}, zap.NewNop())
		_, err := r.Resolve(ctx, domainappr.ApproverRule{Kind: domainappr.RuleManagerOfRequester}, domainappr.Snapshot{})
		assert.Error(t, err)
	})

	t.Run("directory error propagates", func(t *testing.T) {
		dir := &mockDirectory{
			usersInRoleFunc: func(ctx context.Context, role string) ([]int64, error) {
				return nil, errors.New("directory offline")
			},
		}
		r := NewApproverResolver(dir, zap.NewNop())
		_, err := r.Resolve(ctx, domainappr.ApproverRule{Kind: domainappr.RuleRole, Role: "x"}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown rule kind fails", func(t *testing.T) {
		r := NewApproverResolver(&mockDirectory{}, zap.NewNop())
		_, err := r.Resolve(ctx, domainappr.ApproverRule{Kind: "committee"}, nil)
		assert.Error(t, err)
	})
}
