package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appapproval "github.com/millworks/backoffice/internal/application/approval"
	"github.com/millworks/backoffice/internal/application/port"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// OvertimeInboxItem pairs an overtime request with the workflow stage
// awaiting the user's decision
type OvertimeInboxItem struct {
	Request    *entity.OvertimeRequest
	Workflow   *domainappr.Workflow
	StageOrder int
	StageName  string
}

// OvertimeService manages overtime requests and their approval lifecycle
type OvertimeService interface {
	Create(ctx context.Context, req *entity.OvertimeRequest) (*entity.OvertimeRequest, error)
	Get(ctx context.Context, id int64) (*entity.OvertimeRequest, error)
	Workflow(ctx context.Context, id int64) (*domainappr.Workflow, error)
	List(ctx context.Context, limit, offset int) ([]*entity.OvertimeRequest, error)
	Approve(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error)
	Reject(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error)
	Cancel(ctx context.Context, id int64, actor domainappr.Actor) error
	Inbox(ctx context.Context, userID int64) ([]OvertimeInboxItem, error)

	// HandleApprovalEvent applies workflow transition events to the
	// denormalized request status
	HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error
}

type overtimeServiceImpl struct {
	overtime  port.OvertimeRepository
	engine    *appapproval.Engine
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewOvertimeService creates a new OvertimeService and registers it as the
// approval-event handler for overtime requests
func NewOvertimeService(
	overtime port.OvertimeRepository,
	engine *appapproval.Engine,
	txManager port.TransactionManager,
	logger *zap.Logger,
) OvertimeService {
	s := &overtimeServiceImpl{
		overtime:  overtime,
		engine:    engine,
		txManager: txManager,
		logger:    logger,
	}
	engine.Register(domainappr.SubjectOvertimeRequest, s)
	return s
}

// Create validates the request, checks for overlapping open requests, stores
// it and submits it for approval, all in one transaction
func (s *overtimeServiceImpl) Create(ctx context.Context, req *entity.OvertimeRequest) (*entity.OvertimeRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now()
	req.Status = entity.OvertimeSubmitted
	req.DurationHours = req.ComputeDurationHours()
	req.CreatedAt = now
	req.UpdatedAt = now

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		overlapping, err := s.overtime.CountOverlapping(txCtx, req.EntryUserIDs(), req.StartAt, req.EndAt, 0)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if overlapping > 0 {
			return ErrOverlap
		}

		if err := s.overtime.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		_, err = s.engine.Submit(txCtx, req.Ref(), req.Classification(), req.Snapshot())
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create overtime request",
			zap.Int64("requester_id", req.RequesterID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Overtime request created",
		zap.Int64("id", req.ID),
		zap.Int64("requester_id", req.RequesterID),
		zap.Float64("duration_hours", req.DurationHours))
	return req, nil
}

// Get retrieves an overtime request by ID
func (s *overtimeServiceImpl) Get(ctx context.Context, id int64) (*entity.OvertimeRequest, error) {
	req, err := s.overtime.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: overtime request %d", ErrNotFound, id)
	}
	return req, nil
}

// Workflow returns the most recent approval workflow for the request
func (s *overtimeServiceImpl) Workflow(ctx context.Context, id int64) (*domainappr.Workflow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	wf, err := s.engine.WorkflowFor(ctx, domainappr.SubjectRef{Kind: domainappr.SubjectOvertimeRequest, ID: id})
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow for overtime request %d", ErrNotFound, id)
	}
	return wf, nil
}

// List retrieves overtime requests with pagination
func (s *overtimeServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.OvertimeRequest, error) {
	return s.overtime.List(ctx, limit, offset)
}

// Approve records an approval decision on the request's workflow
func (s *overtimeServiceImpl) Approve(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.engine.Approve(ctx, domainappr.SubjectRef{Kind: domainappr.SubjectOvertimeRequest, ID: id}, actor, comment)
}

// Reject records a rejection decision on the request's workflow
func (s *overtimeServiceImpl) Reject(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.engine.Reject(ctx, domainappr.SubjectRef{Kind: domainappr.SubjectOvertimeRequest, ID: id}, actor, comment)
}

// Cancel withdraws the request. Only the requester or an admin may cancel,
// and only while no approver has acted on the current stage.
func (s *overtimeServiceImpl) Cancel(ctx context.Context, id int64, actor domainappr.Actor) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.UserID != req.RequesterID && !actor.IsAdmin {
		return fmt.Errorf("%w: only the requester may cancel", domainappr.ErrForbidden)
	}

	_, err = s.engine.Cancel(ctx, req.Ref(), actor.UserID)
	if err != nil {
		return err
	}

	s.logger.Info("Overtime request cancelled",
		zap.Int64("id", id),
		zap.Int64("by_user_id", actor.UserID))
	return nil
}

// Inbox returns the overtime requests whose current approval stage is
// awaiting the user
func (s *overtimeServiceImpl) Inbox(ctx context.Context, userID int64) ([]OvertimeInboxItem, error) {
	entries, err := s.engine.Inbox(ctx, userID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, e := range entries {
		if e.Workflow.SubjectKind == domainappr.SubjectOvertimeRequest {
			ids = append(ids, e.Workflow.SubjectID)
		}
	}
	requests, err := s.overtime.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*entity.OvertimeRequest, len(requests))
	for _, r := range requests {
		byID[r.ID] = r
	}

	var items []OvertimeInboxItem
	for _, e := range entries {
		if e.Workflow.SubjectKind != domainappr.SubjectOvertimeRequest {
			continue
		}
		req, ok := byID[e.Workflow.SubjectID]
		if !ok {
			s.logger.Warn("Workflow references missing overtime request",
				zap.Int64("workflow_id", e.Workflow.ID),
				zap.Int64("subject_id", e.Workflow.SubjectID))
			continue
		}
		items = append(items, OvertimeInboxItem{
			Request:    req,
			Workflow:   e.Workflow,
			StageOrder: e.StageOrder,
			StageName:  e.StageName,
		})
	}
	return items, nil
}

// HandleApprovalEvent mirrors workflow transitions onto the denormalized
// status column. Runs inside the decision transaction.
func (s *overtimeServiceImpl) HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error {
	switch evt.(type) {
	case domainappr.Approved:
		return s.overtime.UpdateStatus(ctx, ref.ID, entity.OvertimeApproved)
	case domainappr.Rejected:
		return s.overtime.UpdateStatus(ctx, ref.ID, entity.OvertimeRejected)
	case domainappr.Cancelled:
		return s.overtime.UpdateStatus(ctx, ref.ID, entity.OvertimeCancelled)
	case domainappr.StageAdvanced:
		// Status stays submitted while the workflow is in flight.
		return nil
	default:
		return fmt.Errorf("unhandled approval event %q", evt.Kind())
	}
}

// Verify interface compliance
var _ appapproval.SubjectHandler = (OvertimeService)(nil)
