package approval

import "fmt"

// RuleKind identifies how a stage template resolves its approver set
type RuleKind string

const (
	// RuleFixedUsers resolves to an explicit list of user ids
	RuleFixedUsers RuleKind = "fixed_users"

	// RuleRole resolves every user currently holding a role in the directory
	RuleRole RuleKind = "role"

	// RuleManagerOfRequester resolves the requester's manager from the directory
	RuleManagerOfRequester RuleKind = "manager_of_requester"
)

var validRuleKinds = map[RuleKind]bool{
	RuleFixedUsers:         true,
	RuleRole:               true,
	RuleManagerOfRequester: true,
}

// IsValid returns true if the rule kind is known
func (k RuleKind) IsValid() bool {
	return validRuleKinds[k]
}

// ApproverRule is a stage template's approver-resolution rule. It is
// evaluated exactly once, at materialization time; the result is frozen into
// the stage instance.
type ApproverRule struct {
	Kind    RuleKind `json:"kind"`
	UserIDs []int64  `json:"user_ids,omitempty"` // RuleFixedUsers
	Role    string   `json:"role,omitempty"`     // RuleRole
}

// StageTemplate is one approval step prescribed by a policy
type StageTemplate struct {
	ID       int64
	PolicyID int64
	Order    int
	Name     string
	Rule     ApproverRule
	Quorum   int // distinct approvals needed; 0 means 1
}

// RequiredApprovals returns the satisfaction threshold for the stage
func (t StageTemplate) RequiredApprovals() int {
	if t.Quorum <= 0 {
		return 1
	}
	return t.Quorum
}

// Policy is a named, ordered set of stage templates plus the predicates that
// decide which subjects it applies to. Policies referenced by a live workflow
// are effectively immutable: the workflow carries its own frozen copy of the
// stage sequence, so later edits only affect future selections.
type Policy struct {
	ID                int64
	Name              string
	IsActive          bool
	SelectionPriority int // lower wins among matching policies
	Match             Classification
	Stages            []StageTemplate
}

// Matches reports whether every predicate of the policy holds for the given
// classification. A policy with no predicates applies generally.
func (p *Policy) Matches(c Classification) bool {
	for key, want := range p.Match {
		if c[key] != want {
			return false
		}
	}
	return true
}

// Validate checks structural invariants: at least one stage and strictly
// increasing stage orders. Gaps in the order sequence are allowed.
func (p *Policy) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("policy %q has no stages", p.Name)
	}
	prev := 0
	for _, st := range p.Stages {
		if st.Order <= prev {
			return fmt.Errorf("policy %q: stage order %d not strictly increasing after %d", p.Name, st.Order, prev)
		}
		if !st.Rule.Kind.IsValid() {
			return fmt.Errorf("policy %q: stage %q has unknown rule kind %q", p.Name, st.Name, st.Rule.Kind)
		}
		prev = st.Order
	}
	return nil
}
