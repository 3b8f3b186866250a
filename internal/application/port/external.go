package port

import "context"

// UserDirectory answers the organizational lookups approver-resolution rules
// need at materialization time. Results are frozen into stage instances, so
// later directory changes never alter historical stages.
type UserDirectory interface {
	// UsersInRole returns the ids of all active users holding the role
	UsersInRole(ctx context.Context, role string) ([]int64, error)

	// ManagerOf returns the manager's user id, or 0 when the user has none
	ManagerOf(ctx context.Context, userID int64) (int64, error)
}
