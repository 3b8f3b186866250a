package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

func TestSelector_SelectPolicy(t *testing.T) {
	fixed := domainappr.ApproverRule{Kind: domainappr.RuleFixedUsers, UserIDs: []int64{1}}
	mill := &domainappr.Policy{
		ID: 1, Name: "rolling-mill", IsActive: true, SelectionPriority: 10,
		Match:  domainappr.Classification{"team": "rolling-mill"},
		Stages: []domainappr.StageTemplate{{Order: 1, Name: "supervisor", Rule: fixed}},
	}
	fallback := &domainappr.Policy{
		ID: 2, Name: "default", IsActive: true, SelectionPriority: 100,
		Stages: []domainappr.StageTemplate{{Order: 1, Name: "manager", Rule: fixed}},
	}

	policies := &mockPolicyRepo{
		listActiveFunc: func(ctx context.Context) ([]*domainappr.Policy, error) {
			// Already ordered by ascending selection priority, as the
			// repository guarantees.
			return []*domainappr.Policy{mill, fallback}, nil
		},
	}
	selector := NewSelector(policies, zap.NewNop())

	t.Run("first matching policy wins", func(t *testing.T) {
		p, err := selector.SelectPolicy(context.Background(), domainappr.Classification{"team": "rolling-mill"})
		require.NoError(t, err)
		assert.Equal(t, "rolling-mill", p.Name)
	})

	t.Run("predicate-free policy catches the rest", func(t *testing.T) {
		p, err := selector.SelectPolicy(context.Background(), domainappr.Classification{"team": "maintenance"})
		require.NoError(t, err)
		assert.Equal(t, "default", p.Name)
	})

	t.Run("no match", func(t *testing.T) {
		empty := &mockPolicyRepo{
			listActiveFunc: func(ctx context.Context) ([]*domainappr.Policy, error) {
				return []*domainappr.Policy{mill}, nil
			},
		}
		s := NewSelector(empty, zap.NewNop())
		_, err := s.SelectPolicy(context.Background(), domainappr.Classification{"team": "maintenance"})
		assert.ErrorIs(t, err, domainappr.ErrNoPolicyMatched)
	})
}
