// Package port defines the interfaces between the application layer and
// infrastructure. Implementations live under internal/infrastructure.
package port

import (
	"context"
	"time"

	"github.com/millworks/backoffice/internal/domain/approval"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// TransactionManager executes a function within a database transaction.
// The transaction is carried in the context so repositories transparently
// join it.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// PolicyRepository provides access to approval policies and their stage
// templates
type PolicyRepository interface {
	// Create persists a policy with its stage templates
	Create(ctx context.Context, policy *approval.Policy) error

	// GetByID loads a policy with stage templates; nil when absent
	GetByID(ctx context.Context, id int64) (*approval.Policy, error)

	// ListActive returns active policies ordered by ascending selection
	// priority, stage templates loaded
	ListActive(ctx context.Context) ([]*approval.Policy, error)

	// List returns all policies ordered by selection priority
	List(ctx context.Context) ([]*approval.Policy, error)
}

// WorkflowRepository persists workflows, stage instances and decisions
type WorkflowRepository interface {
	// Create inserts the workflow, all stage instances and any system
	// decisions in one shot. Returns approval.ErrWorkflowExists when the
	// subject already has a non-terminal workflow.
	Create(ctx context.Context, wf *approval.Workflow) error

	// GetBySubject loads the most recent workflow for a subject with stages
	// and decisions; nil when absent
	GetBySubject(ctx context.Context, ref approval.SubjectRef) (*approval.Workflow, error)

	// GetOpenBySubject loads the non-terminal workflow for a subject with
	// stages and decisions; nil when absent
	GetOpenBySubject(ctx context.Context, ref approval.SubjectRef) (*approval.Workflow, error)

	// UpdateState writes current_stage_order and the terminal flags guarded
	// by the workflow version; returns approval.ErrConcurrencyConflict when
	// the version moved. On success the in-memory version is advanced.
	UpdateState(ctx context.Context, wf *approval.Workflow) error

	// UpdateStage writes the terminal flags of a stage instance
	UpdateStage(ctx context.Context, stage *approval.StageInstance) error

	// AddDecision appends a decision record to a stage instance
	AddDecision(ctx context.Context, d *approval.Decision) error

	// ListOpenForApprover returns non-terminal workflows whose current stage
	// is open and includes the user in its frozen approver set. Stages and
	// decisions are loaded.
	ListOpenForApprover(ctx context.Context, userID int64) ([]*approval.Workflow, error)
}

// OvertimeRepository persists overtime requests and their entries
type OvertimeRepository interface {
	Create(ctx context.Context, req *entity.OvertimeRequest) error
	GetByID(ctx context.Context, id int64) (*entity.OvertimeRequest, error)
	UpdateStatus(ctx context.Context, id int64, status entity.OvertimeStatus) error
	List(ctx context.Context, limit, offset int) ([]*entity.OvertimeRequest, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*entity.OvertimeRequest, error)

	// CountOverlapping counts open (submitted or approved) requests, other
	// than excludeID, that share an entry user with userIDs and whose time
	// range intersects [start, end)
	CountOverlapping(ctx context.Context, userIDs []int64, start, end time.Time, excludeID int64) (int, error)
}

// PurchaseRepository persists purchase requests and their line items
type PurchaseRepository interface {
	Create(ctx context.Context, req *entity.PurchaseRequest) error
	GetByID(ctx context.Context, id int64) (*entity.PurchaseRequest, error)
	UpdateStatus(ctx context.Context, id int64, status entity.PurchaseStatus) error
	List(ctx context.Context, limit, offset int) ([]*entity.PurchaseRequest, error)

	// NextRequestNumber allocates the next PR-<year>-NNNN sequence value
	NextRequestNumber(ctx context.Context, year int) (string, error)
}
