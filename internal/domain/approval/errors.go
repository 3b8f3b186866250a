package approval

import "errors"

var (
	// ErrNoPolicyMatched is returned when no active policy matches the
	// subject classification; submission must abort with no workflow created
	ErrNoPolicyMatched = errors.New("no active approval policy matched")

	// ErrWorkflowExists is returned when the subject already has a
	// non-terminal workflow
	ErrWorkflowExists = errors.New("subject already has an open approval workflow")

	// ErrWorkflowNotFound is returned when no workflow exists for the subject
	ErrWorkflowNotFound = errors.New("approval workflow not found")

	// ErrWorkflowClosed is returned for decisions against a terminal workflow
	ErrWorkflowClosed = errors.New("approval workflow is closed")

	// ErrStageClosed is returned when the targeted stage already advanced
	ErrStageClosed = errors.New("approval stage is closed")

	// ErrForbidden is returned for decisions by users outside the frozen
	// approver set who hold no override capability
	ErrForbidden = errors.New("not an approver for the current stage")

	// ErrConcurrencyConflict is returned when the workflow version changed
	// under a decision; callers retry a bounded number of times
	ErrConcurrencyConflict = errors.New("concurrent workflow modification")

	// ErrNotifierFailed wraps a subject callback failure; the triggering
	// transition is rolled back in full
	ErrNotifierFailed = errors.New("subject notification failed")

	// ErrCancelNotAllowed is returned when cancellation is attempted after a
	// decision was already recorded at the current stage
	ErrCancelNotAllowed = errors.New("workflow can no longer be cancelled")
)
