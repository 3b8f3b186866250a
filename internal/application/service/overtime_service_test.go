package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appapproval "github.com/millworks/backoffice/internal/application/approval"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
	"github.com/millworks/backoffice/internal/domain/entity"
)

func singleStagePolicy(approverIDs ...int64) *domainappr.Policy {
	return &domainappr.Policy{
		ID: 1, Name: "standard", IsActive: true,
		Stages: []domainappr.StageTemplate{
			{Order: 1, Name: "supervisor", Rule: domainappr.ApproverRule{
				Kind:    domainappr.RuleFixedUsers,
				UserIDs: approverIDs,
			}},
		},
	}
}

func newOvertimeFixture(t *testing.T, policy *domainappr.Policy) (OvertimeService, *mockOvertimeRepo) {
	t.Helper()
	logger := zap.NewNop()
	overtime := newMockOvertimeRepo()
	engine := appapproval.NewEngine(
		nopTxManager{},
		&mockPolicyRepo{active: []*domainappr.Policy{policy}},
		&mockWorkflowRepo{},
		&mockDirectory{},
		logger,
	)
	svc := NewOvertimeService(overtime, engine, nopTxManager{}, logger)
	return svc, overtime
}

func validOvertimeRequest() *entity.OvertimeRequest {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	return &entity.OvertimeRequest{
		RequesterID: 7,
		Team:        "rolling-mill",
		Reason:      "maintenance backlog",
		StartAt:     start,
		EndAt:       start.Add(3 * time.Hour),
		Entries: []entity.OvertimeEntry{
			{UserID: 7, JobNo: "J-100"},
			{UserID: 8, JobNo: "J-100"},
		},
	}
}

func TestOvertimeService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates request with workflow", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))

		created, err := svc.Create(ctx, validOvertimeRequest())
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, entity.OvertimeSubmitted, created.Status)
		assert.Equal(t, 3.0, created.DurationHours)

		wf, err := svc.Workflow(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, wf.CurrentStageOrder)
		assert.Equal(t, domainappr.ApproverSet{10}, wf.Stages[0].Approvers)
	})

	t.Run("invalid time range", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))
		req := validOvertimeRequest()
		req.EndAt = req.StartAt
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("no entries", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))
		req := validOvertimeRequest()
		req.Entries = nil
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("overlapping open request is rejected", func(t *testing.T) {
		svc, overtime := newOvertimeFixture(t, singleStagePolicy(10))
		overtime.countOverlappingFunc = func(ctx context.Context, userIDs []int64, start, end time.Time, excludeID int64) (int, error) {
			return 1, nil
		}

		_, err := svc.Create(ctx, validOvertimeRequest())
		assert.ErrorIs(t, err, ErrOverlap)
		// Nothing persisted.
		assert.Empty(t, overtime.requests)
	})

	t.Run("empty approver policy approves immediately", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy())

		created, err := svc.Create(ctx, validOvertimeRequest())
		require.NoError(t, err)
		// Auto-skip completed the workflow and the handler mirrored it.
		assert.Equal(t, entity.OvertimeApproved, created.Status)
	})
}

func TestOvertimeService_DecisionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOvertimeFixture(t, singleStagePolicy(10))

	created, err := svc.Create(ctx, validOvertimeRequest())
	require.NoError(t, err)

	t.Run("approve updates denormalized status", func(t *testing.T) {
		wf, err := svc.Approve(ctx, created.ID, domainappr.Actor{UserID: 10}, "fine")
		require.NoError(t, err)
		assert.True(t, wf.IsComplete)

		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OvertimeApproved, got.Status)
	})

	t.Run("decisions on closed workflow fail", func(t *testing.T) {
		_, err := svc.Approve(ctx, created.ID, domainappr.Actor{UserID: 10}, "")
		assert.ErrorIs(t, err, domainappr.ErrWorkflowClosed)
	})
}

func TestOvertimeService_Reject(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOvertimeFixture(t, singleStagePolicy(10))

	created, err := svc.Create(ctx, validOvertimeRequest())
	require.NoError(t, err)

	wf, err := svc.Reject(ctx, created.ID, domainappr.Actor{UserID: 10}, "not justified")
	require.NoError(t, err)
	assert.True(t, wf.IsRejected)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OvertimeRejected, got.Status)
}

func TestOvertimeService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("requester cancels before decisions", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))
		created, err := svc.Create(ctx, validOvertimeRequest())
		require.NoError(t, err)

		err = svc.Cancel(ctx, created.ID, domainappr.Actor{UserID: created.RequesterID})
		require.NoError(t, err)

		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OvertimeCancelled, got.Status)
	})

	t.Run("non-requester cannot cancel", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))
		created, err := svc.Create(ctx, validOvertimeRequest())
		require.NoError(t, err)

		err = svc.Cancel(ctx, created.ID, domainappr.Actor{UserID: 99})
		assert.ErrorIs(t, err, domainappr.ErrForbidden)
	})

	t.Run("admin may cancel on behalf of the requester", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))
		created, err := svc.Create(ctx, validOvertimeRequest())
		require.NoError(t, err)

		err = svc.Cancel(ctx, created.ID, domainappr.Actor{UserID: 99, IsAdmin: true})
		require.NoError(t, err)
	})

	t.Run("cancel after a decision fails", func(t *testing.T) {
		svc, _ := newOvertimeFixture(t, singleStagePolicy(10))
		created, err := svc.Create(ctx, validOvertimeRequest())
		require.NoError(t, err)

		_, err = svc.Approve(ctx, created.ID, domainappr.Actor{UserID: 10}, "")
		require.NoError(t, err)

		err = svc.Cancel(ctx, created.ID, domainappr.Actor{UserID: created.RequesterID})
		assert.ErrorIs(t, err, domainappr.ErrWorkflowClosed)
	})
}

func TestOvertimeService_Inbox(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOvertimeFixture(t, singleStagePolicy(10))

	created, err := svc.Create(ctx, validOvertimeRequest())
	require.NoError(t, err)

	items, err := svc.Inbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].Request.ID)
	assert.Equal(t, "supervisor", items[0].StageName)

	// Not an approver.
	items, err = svc.Inbox(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, items)
}
