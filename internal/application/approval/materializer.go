package approval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// autoSkipNote is the system-authored decision comment recorded on stages
// completed without a human decision.
const autoSkipNote = "auto-skipped: no approvers resolved"

// Materializer creates one workflow plus one stage instance per template of
// the selected policy, with approver sets resolved and frozen at creation
// time. The caller is expected to run Materialize inside the same transaction
// as the policy-selection read.
type Materializer struct {
	workflows port.WorkflowRepository
	resolver  *ApproverResolver
	notifier  *Notifier
	logger    *zap.Logger
}

// NewMaterializer creates a workflow materializer
func NewMaterializer(workflows port.WorkflowRepository, resolver *ApproverResolver, notifier *Notifier, logger *zap.Logger) *Materializer {
	return &Materializer{
		workflows: workflows,
		resolver:  resolver,
		notifier:  notifier,
		logger:    logger,
	}
}

// Materialize builds and persists the workflow for the subject under the
// given policy. Stages whose resolved approver set is empty are created
// already complete with a system decision note; the workflow opens at the
// first stage that has approvers. If every stage auto-skips, the workflow is
// created complete and the subject is notified immediately.
func (m *Materializer) Materialize(ctx context.Context, ref domainappr.SubjectRef, snapshot domainappr.Snapshot, policy *domainappr.Policy) (*domainappr.Workflow, error) {
	if !ref.Kind.IsValid() {
		return nil, fmt.Errorf("unknown subject kind: %s", ref.Kind)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	now := time.Now()
	wf := &domainappr.Workflow{
		SubjectKind: ref.Kind,
		SubjectID:   ref.ID,
		PolicyID:    policy.ID,
		PolicyName:  policy.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	firstOpen := 0
	for _, tmpl := range policy.Stages {
		approvers, err := m.resolver.Resolve(ctx, tmpl.Rule, snapshot)
		if err != nil {
			return nil, fmt.Errorf("resolve approvers for stage %q: %w", tmpl.Name, err)
		}

		stage := &domainappr.StageInstance{
			Order:     tmpl.Order,
			Name:      tmpl.Name,
			Approvers: approvers,
			Quorum:    tmpl.Quorum,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if approvers.IsEmpty() {
			stage.IsComplete = true
			stage.Decisions = append(stage.Decisions, domainappr.Decision{
				Outcome:   domainappr.OutcomeApproved,
				Comment:   autoSkipNote,
				IsSystem:  true,
				DecidedAt: now,
			})
		} else if firstOpen == 0 {
			firstOpen = tmpl.Order
		}

		wf.Stages = append(wf.Stages, stage)
	}

	if firstOpen == 0 {
		wf.IsComplete = true
	} else {
		wf.CurrentStageOrder = firstOpen
	}

	if err := m.workflows.Create(ctx, wf); err != nil {
		return nil, err
	}

	m.logger.Info("Workflow materialized",
		zap.String("subject", ref.String()),
		zap.String("policy", policy.Name),
		zap.Int("stages", len(wf.Stages)),
		zap.Int("current_stage_order", wf.CurrentStageOrder),
		zap.Bool("complete", wf.IsComplete))

	if wf.IsComplete {
		if err := m.notifier.Notify(ctx, ref, domainappr.Approved{}); err != nil {
			return nil, err
		}
	}

	return wf, nil
}
