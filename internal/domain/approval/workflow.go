package approval

import "time"

// Outcome is the result recorded by a single decision
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Decision is an append-only audit entry on a stage instance. System-authored
// entries (auto-skips) carry ApproverID 0 and IsSystem true; administrative
// overrides are recorded exactly like regular approver decisions.
type Decision struct {
	ID              int64
	StageInstanceID int64
	ApproverID      int64
	Outcome         Outcome
	Comment         string
	IsSystem        bool
	DecidedAt       time.Time
}

// ApproverSet is the ordered set of user ids frozen into a stage instance at
// materialization time. Membership here is the only authorization source for
// decisions; later organizational changes do not alter it.
type ApproverSet []int64

// Contains reports whether the set includes the given user
func (s ApproverSet) Contains(userID int64) bool {
	for _, id := range s {
		if id == userID {
			return true
		}
	}
	return false
}

// IsEmpty returns true when no approvers resolved for the stage
func (s ApproverSet) IsEmpty() bool {
	return len(s) == 0
}

// StageInstance is the materialized, frozen realization of a stage template
// for one workflow. All instances are created eagerly at materialization so
// the full pipeline is visible upfront.
type StageInstance struct {
	ID         int64
	WorkflowID int64
	Order      int
	Name       string
	Approvers  ApproverSet
	Quorum     int
	IsComplete bool
	IsRejected bool
	Decisions  []Decision
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen returns true while the stage has reached no terminal flag
func (s *StageInstance) IsOpen() bool {
	return !s.IsComplete && !s.IsRejected
}

// RequiredApprovals returns the satisfaction threshold for the stage
func (s *StageInstance) RequiredApprovals() int {
	if s.Quorum <= 0 {
		return 1
	}
	return s.Quorum
}

// ApprovalCount counts distinct human approvers who approved the stage
func (s *StageInstance) ApprovalCount() int {
	seen := make(map[int64]bool)
	for _, d := range s.Decisions {
		if d.Outcome == OutcomeApproved && !d.IsSystem {
			seen[d.ApproverID] = true
		}
	}
	return len(seen)
}

// HasHumanDecision reports whether any non-system decision was recorded
func (s *StageInstance) HasHumanDecision() bool {
	for _, d := range s.Decisions {
		if !d.IsSystem {
			return true
		}
	}
	return false
}

// Satisfied reports whether the stage's approval threshold has been met
func (s *StageInstance) Satisfied() bool {
	return s.ApprovalCount() >= s.RequiredApprovals()
}

// Workflow is the authoritative approval state for one subject instance.
// CurrentStageOrder is 0 once the workflow is terminal. Version backs the
// optimistic-concurrency check on every state transition.
type Workflow struct {
	ID                int64
	SubjectKind       SubjectKind
	SubjectID         int64
	PolicyID          int64
	PolicyName        string
	CurrentStageOrder int
	IsComplete        bool
	IsRejected        bool
	Version           int64
	Stages            []*StageInstance
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Ref returns the polymorphic subject reference of the workflow
func (w *Workflow) Ref() SubjectRef {
	return SubjectRef{Kind: w.SubjectKind, ID: w.SubjectID}
}

// IsTerminal returns true once the workflow is complete or rejected
func (w *Workflow) IsTerminal() bool {
	return w.IsComplete || w.IsRejected
}

// StageAt returns the stage instance with the given order, or nil
func (w *Workflow) StageAt(order int) *StageInstance {
	for _, s := range w.Stages {
		if s.Order == order {
			return s
		}
	}
	return nil
}

// CurrentStage returns the stage instance open for decisions, or nil when the
// workflow is terminal
func (w *Workflow) CurrentStage() *StageInstance {
	if w.IsTerminal() {
		return nil
	}
	return w.StageAt(w.CurrentStageOrder)
}
