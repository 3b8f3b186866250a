package approval

// Actor identifies who is making a decision. IsAdmin grants the override
// capability: admins may decide at any open stage regardless of the frozen
// approver set, and the resulting decision record is indistinguishable in
// structure from a regular one.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

// CanDecide reports whether the actor may decide the given stage
func (a Actor) CanDecide(stage *StageInstance) bool {
	return a.IsAdmin || stage.Approvers.Contains(a.UserID)
}
