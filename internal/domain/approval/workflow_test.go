package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageInstance_ApprovalCount(t *testing.T) {
	stage := &StageInstance{
		Decisions: []Decision{
			{ApproverID: 1, Outcome: OutcomeApproved},
			{ApproverID: 1, Outcome: OutcomeApproved}, // duplicate approver counts once
			{ApproverID: 2, Outcome: OutcomeApproved},
			{ApproverID: 3, Outcome: OutcomeRejected},
			{ApproverID: 0, Outcome: OutcomeApproved, IsSystem: true},
		},
	}
	assert.Equal(t, 2, stage.ApprovalCount())
}

func TestStageInstance_Satisfied(t *testing.T) {
	tests := []struct {
		name      string
		quorum    int
		approvers []int64
		expected  bool
	}{
		{"zero quorum means one", 0, []int64{1}, true},
		{"zero quorum no approvals", 0, nil, false},
		{"quorum met exactly", 2, []int64{1, 2}, true},
		{"quorum not met", 3, []int64{1, 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := &StageInstance{Quorum: tt.quorum}
			for _, id := range tt.approvers {
				stage.Decisions = append(stage.Decisions, Decision{ApproverID: id, Outcome: OutcomeApproved})
			}
			assert.Equal(t, tt.expected, stage.Satisfied())
		})
	}
}

func TestStageInstance_HasHumanDecision(t *testing.T) {
	stage := &StageInstance{
		Decisions: []Decision{
			{IsSystem: true, Outcome: OutcomeApproved},
		},
	}
	assert.False(t, stage.HasHumanDecision())

	stage.Decisions = append(stage.Decisions, Decision{ApproverID: 7, Outcome: OutcomeApproved})
	assert.True(t, stage.HasHumanDecision())
}

func TestWorkflow_CurrentStage(t *testing.T) {
	wf := &Workflow{
		CurrentStageOrder: 2,
		Stages: []*StageInstance{
			{Order: 1, IsComplete: true},
			{Order: 2},
			{Order: 3},
		},
	}
	stage := wf.CurrentStage()
	assert.NotNil(t, stage)
	assert.Equal(t, 2, stage.Order)

	wf.IsRejected = true
	assert.Nil(t, wf.CurrentStage())

	wf.IsRejected = false
	wf.IsComplete = true
	assert.Nil(t, wf.CurrentStage())
}

func TestActor_CanDecide(t *testing.T) {
	stage := &StageInstance{Approvers: ApproverSet{10, 20}}

	assert.True(t, Actor{UserID: 10}.CanDecide(stage))
	assert.False(t, Actor{UserID: 30}.CanDecide(stage))
	// Admin override applies regardless of frozen membership.
	assert.True(t, Actor{UserID: 30, IsAdmin: true}.CanDecide(stage))
}

func TestSubjectRef_String(t *testing.T) {
	ref := SubjectRef{Kind: SubjectOvertimeRequest, ID: 42}
	assert.Equal(t, "overtime_request/42", ref.String())
}
