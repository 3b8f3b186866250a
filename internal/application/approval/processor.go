package approval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// cancelNote is the system-authored decision comment recorded when a
// workflow is withdrawn before any decision at the current stage.
const cancelNote = "cancelled by requester"

// Processor is the single state-machine transition function for workflows.
// All decision paths (approve, reject, cancel) funnel through it; callers
// read derived state rather than recomputing stage logic. Every method must
// run inside a transaction: workflow updates are version-guarded and a
// notification failure must roll back the whole decision.
type Processor struct {
	workflows port.WorkflowRepository
	notifier  *Notifier
	logger    *zap.Logger
}

// NewProcessor creates a decision processor
func NewProcessor(workflows port.WorkflowRepository, notifier *Notifier, logger *zap.Logger) *Processor {
	return &Processor{workflows: workflows, notifier: notifier, logger: logger}
}

// Decide records one approver decision against the currently open stage and
// advances or terminates the workflow. expectOrder pins the stage the caller
// is deciding: pass 0 on the first attempt, and the order returned by that
// attempt on conflict retries, so a decision that raced with an advance fails
// with ErrStageClosed instead of silently applying to the next stage.
//
// The second return value is the stage order the call observed as current.
func (p *Processor) Decide(ctx context.Context, ref domainappr.SubjectRef, actor domainappr.Actor, outcome domainappr.Outcome, comment string, expectOrder int) (*domainappr.Workflow, int, error) {
	wf, err := p.workflows.GetBySubject(ctx, ref)
	if err != nil {
		return nil, 0, fmt.Errorf("load workflow: %w", err)
	}
	if wf == nil {
		return nil, 0, fmt.Errorf("%w: %s", domainappr.ErrWorkflowNotFound, ref)
	}
	if wf.IsTerminal() {
		return nil, 0, fmt.Errorf("%w: %s", domainappr.ErrWorkflowClosed, ref)
	}

	observed := wf.CurrentStageOrder
	if expectOrder != 0 && observed != expectOrder {
		return nil, observed, fmt.Errorf("%w: stage %d already advanced", domainappr.ErrStageClosed, expectOrder)
	}

	stage := wf.CurrentStage()
	if stage == nil || !stage.IsOpen() {
		return nil, observed, fmt.Errorf("%w: no open stage at order %d", domainappr.ErrStageClosed, observed)
	}

	if !actor.CanDecide(stage) {
		return nil, observed, fmt.Errorf("%w: user %d, stage %q", domainappr.ErrForbidden, actor.UserID, stage.Name)
	}

	decision := domainappr.Decision{
		StageInstanceID: stage.ID,
		ApproverID:      actor.UserID,
		Outcome:         outcome,
		Comment:         comment,
		DecidedAt:       time.Now(),
	}
	if err := p.workflows.AddDecision(ctx, &decision); err != nil {
		return nil, observed, fmt.Errorf("record decision: %w", err)
	}
	stage.Decisions = append(stage.Decisions, decision)

	if outcome == domainappr.OutcomeRejected {
		if err := p.reject(ctx, wf, stage, actor, comment); err != nil {
			return nil, observed, err
		}
		return wf, observed, nil
	}

	if err := p.approve(ctx, wf, stage); err != nil {
		return nil, observed, err
	}
	return wf, observed, nil
}

// Cancel withdraws an open workflow that has no human decision recorded at
// the current stage. The workflow terminates as rejected with a system note
// and the subject receives a Cancelled event.
func (p *Processor) Cancel(ctx context.Context, ref domainappr.SubjectRef, byUserID int64) (*domainappr.Workflow, error) {
	wf, err := p.workflows.GetBySubject(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: %s", domainappr.ErrWorkflowNotFound, ref)
	}
	if wf.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", domainappr.ErrWorkflowClosed, ref)
	}

	stage := wf.CurrentStage()
	if stage == nil || !stage.IsOpen() {
		return nil, fmt.Errorf("%w: no open stage at order %d", domainappr.ErrStageClosed, wf.CurrentStageOrder)
	}
	if stage.HasHumanDecision() {
		return nil, fmt.Errorf("%w: stage %q has recorded decisions", domainappr.ErrCancelNotAllowed, stage.Name)
	}

	note := domainappr.Decision{
		StageInstanceID: stage.ID,
		Outcome:         domainappr.OutcomeRejected,
		Comment:         cancelNote,
		IsSystem:        true,
		DecidedAt:       time.Now(),
	}
	if err := p.workflows.AddDecision(ctx, &note); err != nil {
		return nil, fmt.Errorf("record cancellation: %w", err)
	}
	stage.Decisions = append(stage.Decisions, note)

	stage.IsRejected = true
	if err := p.workflows.UpdateStage(ctx, stage); err != nil {
		return nil, fmt.Errorf("close stage: %w", err)
	}

	wf.IsRejected = true
	wf.CurrentStageOrder = 0
	if err := p.workflows.UpdateState(ctx, wf); err != nil {
		return nil, err
	}

	p.logger.Info("Workflow cancelled",
		zap.String("subject", wf.Ref().String()),
		zap.Int64("by_user", byUserID))

	return wf, p.notifier.Notify(ctx, wf.Ref(), domainappr.Cancelled{ByUserID: byUserID})
}

// reject closes the current stage and the workflow. Rejection short-circuits:
// later stages stay untouched with no decisions recorded.
func (p *Processor) reject(ctx context.Context, wf *domainappr.Workflow, stage *domainappr.StageInstance, actor domainappr.Actor, comment string) error {
	stage.IsRejected = true
	if err := p.workflows.UpdateStage(ctx, stage); err != nil {
		return fmt.Errorf("close stage: %w", err)
	}

	rejectedOrder := wf.CurrentStageOrder
	wf.IsRejected = true
	wf.CurrentStageOrder = 0
	if err := p.workflows.UpdateState(ctx, wf); err != nil {
		return err
	}

	p.logger.Info("Workflow rejected",
		zap.String("subject", wf.Ref().String()),
		zap.Int("stage_order", rejectedOrder),
		zap.Int64("by_user", actor.UserID))

	return p.notifier.Notify(ctx, wf.Ref(), domainappr.Rejected{
		StageOrder: rejectedOrder,
		StageName:  stage.Name,
		ByUserID:   actor.UserID,
		Comment:    comment,
	})
}

// approve applies an approval decision: if the stage's quorum is met, the
// stage completes and the workflow advances past any auto-skip stages or
// terminates. A quorum not yet met only bumps the workflow version so
// concurrent approvals of the same stage serialize.
func (p *Processor) approve(ctx context.Context, wf *domainappr.Workflow, stage *domainappr.StageInstance) error {
	if !stage.Satisfied() {
		// Version bump without state change; detects racing decisions.
		return p.workflows.UpdateState(ctx, wf)
	}

	stage.IsComplete = true
	if err := p.workflows.UpdateStage(ctx, stage); err != nil {
		return fmt.Errorf("complete stage: %w", err)
	}

	fromOrder := stage.Order
	next, err := p.advancePast(ctx, wf, stage.Order)
	if err != nil {
		return err
	}

	if next == nil {
		wf.IsComplete = true
		wf.CurrentStageOrder = 0
		if err := p.workflows.UpdateState(ctx, wf); err != nil {
			return err
		}
		p.logger.Info("Workflow approved", zap.String("subject", wf.Ref().String()))
		return p.notifier.Notify(ctx, wf.Ref(), domainappr.Approved{})
	}

	wf.CurrentStageOrder = next.Order
	if err := p.workflows.UpdateState(ctx, wf); err != nil {
		return err
	}
	p.logger.Info("Workflow stage advanced",
		zap.String("subject", wf.Ref().String()),
		zap.Int("from_order", fromOrder),
		zap.Int("to_order", next.Order))
	return p.notifier.Notify(ctx, wf.Ref(), domainappr.StageAdvanced{
		FromOrder: fromOrder,
		ToOrder:   next.Order,
		ToName:    next.Name,
	})
}

// advancePast walks the stages after the given order, completing every
// auto-skip stage (empty frozen approver set) with a system note, and returns
// the first stage that needs a human decision, or nil when none remains.
func (p *Processor) advancePast(ctx context.Context, wf *domainappr.Workflow, afterOrder int) (*domainappr.StageInstance, error) {
	for _, s := range wf.Stages {
		if s.Order <= afterOrder || !s.IsOpen() {
			continue
		}
		if !s.Approvers.IsEmpty() {
			return s, nil
		}

		note := domainappr.Decision{
			StageInstanceID: s.ID,
			Outcome:         domainappr.OutcomeApproved,
			Comment:         autoSkipNote,
			IsSystem:        true,
			DecidedAt:       time.Now(),
		}
		if err := p.workflows.AddDecision(ctx, &note); err != nil {
			return nil, fmt.Errorf("record auto-skip: %w", err)
		}
		s.Decisions = append(s.Decisions, note)
		s.IsComplete = true
		if err := p.workflows.UpdateStage(ctx, s); err != nil {
			return nil, fmt.Errorf("auto-skip stage %d: %w", s.Order, err)
		}
	}
	return nil, nil
}
