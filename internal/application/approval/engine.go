package approval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// maxDecisionAttempts bounds the transparent retry on version conflicts
// before surfacing ErrConcurrencyConflict to the caller.
const maxDecisionAttempts = 3

// Engine is the facade subject services talk to. It owns the transactional
// discipline: submission runs policy selection and materialization in one
// transaction, and every decision is a single atomic read-modify-write with
// bounded retry on version conflicts.
type Engine struct {
	tx           port.TransactionManager
	workflows    port.WorkflowRepository
	selector     *Selector
	materializer *Materializer
	processor    *Processor
	notifier     *Notifier
	logger       *zap.Logger
}

// NewEngine wires the engine components
func NewEngine(
	tx port.TransactionManager,
	policies port.PolicyRepository,
	workflows port.WorkflowRepository,
	directory port.UserDirectory,
	logger *zap.Logger,
) *Engine {
	notifier := NewNotifier(logger)
	resolver := NewApproverResolver(directory, logger)
	return &Engine{
		tx:           tx,
		workflows:    workflows,
		selector:     NewSelector(policies, logger),
		materializer: NewMaterializer(workflows, resolver, notifier, logger),
		processor:    NewProcessor(workflows, notifier, logger),
		notifier:     notifier,
		logger:       logger,
	}
}

// Register installs the notification handler for a subject kind
func (e *Engine) Register(kind domainappr.SubjectKind, h SubjectHandler) {
	e.notifier.Register(kind, h)
}

// Submit selects the applicable policy for the classification and
// materializes the workflow, atomically. No workflow is created when
// selection fails.
func (e *Engine) Submit(ctx context.Context, ref domainappr.SubjectRef, c domainappr.Classification, snapshot domainappr.Snapshot) (*domainappr.Workflow, error) {
	var wf *domainappr.Workflow
	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		policy, err := e.selector.SelectPolicy(txCtx, c)
		if err != nil {
			return err
		}
		wf, err = e.materializer.Materialize(txCtx, ref, snapshot, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// Approve records an approval decision on the subject's open workflow
func (e *Engine) Approve(ctx context.Context, ref domainappr.SubjectRef, actor domainappr.Actor, comment string) (*domainappr.Workflow, error) {
	return e.decide(ctx, ref, actor, domainappr.OutcomeApproved, comment)
}

// Reject records a rejection decision on the subject's open workflow
func (e *Engine) Reject(ctx context.Context, ref domainappr.SubjectRef, actor domainappr.Actor, comment string) (*domainappr.Workflow, error) {
	return e.decide(ctx, ref, actor, domainappr.OutcomeRejected, comment)
}

// decide runs one decision transaction, retrying version conflicts. The
// stage order observed on the first attempt pins the retries: if the stage
// advanced underneath the caller, the retry deterministically fails with
// ErrStageClosed instead of deciding a different stage.
func (e *Engine) decide(ctx context.Context, ref domainappr.SubjectRef, actor domainappr.Actor, outcome domainappr.Outcome, comment string) (*domainappr.Workflow, error) {
	expect := 0
	for attempt := 1; attempt <= maxDecisionAttempts; attempt++ {
		var (
			wf       *domainappr.Workflow
			observed int
		)
		err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			var derr error
			wf, observed, derr = e.processor.Decide(txCtx, ref, actor, outcome, comment, expect)
			return derr
		})
		if err == nil {
			return wf, nil
		}
		if !errors.Is(err, domainappr.ErrConcurrencyConflict) {
			return nil, err
		}

		if expect == 0 {
			expect = observed
		}
		e.logger.Warn("Decision conflict, retrying",
			zap.String("subject", ref.String()),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts", domainappr.ErrConcurrencyConflict, maxDecisionAttempts)
}

// Cancel withdraws the subject's open workflow; allowed only while the
// current stage has no recorded human decision
func (e *Engine) Cancel(ctx context.Context, ref domainappr.SubjectRef, byUserID int64) (*domainappr.Workflow, error) {
	for attempt := 1; attempt <= maxDecisionAttempts; attempt++ {
		var wf *domainappr.Workflow
		err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			var cerr error
			wf, cerr = e.processor.Cancel(txCtx, ref, byUserID)
			return cerr
		})
		if err == nil {
			return wf, nil
		}
		if !errors.Is(err, domainappr.ErrConcurrencyConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts", domainappr.ErrConcurrencyConflict, maxDecisionAttempts)
}

// WorkflowFor returns the most recent workflow attached to the subject with
// stages and decisions loaded, or nil when none exists
func (e *Engine) WorkflowFor(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error) {
	return e.workflows.GetBySubject(ctx, ref)
}
