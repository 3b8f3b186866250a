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

// PurchaseInboxItem pairs a purchase request with the workflow stage awaiting
// the user's decision
type PurchaseInboxItem struct {
	Request    *entity.PurchaseRequest
	Workflow   *domainappr.Workflow
	StageOrder int
	StageName  string
}

// PurchaseService manages purchase requests and their approval lifecycle.
// Requests start as drafts and enter the approval pipeline on submission.
type PurchaseService interface {
	Create(ctx context.Context, req *entity.PurchaseRequest) (*entity.PurchaseRequest, error)
	Submit(ctx context.Context, id int64, actor domainappr.Actor) (*entity.PurchaseRequest, error)
	Get(ctx context.Context, id int64) (*entity.PurchaseRequest, error)
	Workflow(ctx context.Context, id int64) (*domainappr.Workflow, error)
	List(ctx context.Context, limit, offset int) ([]*entity.PurchaseRequest, error)
	Approve(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error)
	Reject(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error)
	Cancel(ctx context.Context, id int64, actor domainappr.Actor) error
	Inbox(ctx context.Context, userID int64) ([]PurchaseInboxItem, error)

	HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error
}

type purchaseServiceImpl struct {
	purchases port.PurchaseRepository
	engine    *appapproval.Engine
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewPurchaseService creates a new PurchaseService and registers it as the
// approval-event handler for purchase requests
func NewPurchaseService(
	purchases port.PurchaseRepository,
	engine *appapproval.Engine,
	txManager port.TransactionManager,
	logger *zap.Logger,
) PurchaseService {
	s := &purchaseServiceImpl{
		purchases: purchases,
		engine:    engine,
		txManager: txManager,
		logger:    logger,
	}
	engine.Register(domainappr.SubjectPurchaseRequest, s)
	return s
}

// Create stores a draft purchase request and allocates its request number
func (s *purchaseServiceImpl) Create(ctx context.Context, req *entity.PurchaseRequest) (*entity.PurchaseRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Priority == "" {
		req.Priority = entity.PriorityNormal
	}

	now := time.Now()
	req.Status = entity.PurchaseDraft
	req.CreatedAt = now
	req.UpdatedAt = now

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := s.purchases.NextRequestNumber(txCtx, now.Year())
		if err != nil {
			return err
		}
		req.RequestNumber = number
		return s.purchases.Create(txCtx, req)
	})
	if err != nil {
		s.logger.Error("Failed to create purchase request",
			zap.Int64("requester_id", req.RequesterID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Purchase request created",
		zap.Int64("id", req.ID),
		zap.String("request_number", req.RequestNumber))
	return req, nil
}

// Submit moves a draft into the approval pipeline. Only the requester or an
// admin may submit.
func (s *purchaseServiceImpl) Submit(ctx context.Context, id int64, actor domainappr.Actor) (*entity.PurchaseRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID != req.RequesterID && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only the requester may submit", domainappr.ErrForbidden)
	}
	if req.Status != entity.PurchaseDraft {
		return nil, fmt.Errorf("%w: purchase request %d is %s", ErrInvalidState, id, req.Status)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.purchases.UpdateStatus(txCtx, id, entity.PurchaseSubmitted); err != nil {
			return err
		}
		req.Status = entity.PurchaseSubmitted
		_, err := s.engine.Submit(txCtx, req.Ref(), req.Classification(), req.Snapshot())
		return err
	})
	if err != nil {
		s.logger.Error("Failed to submit purchase request", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	// The approval-event handler may have advanced the status inside the
	// transaction when every stage auto-skipped.
	return s.Get(ctx, id)
}

// Get retrieves a purchase request by ID
func (s *purchaseServiceImpl) Get(ctx context.Context, id int64) (*entity.PurchaseRequest, error) {
	req, err := s.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: purchase request %d", ErrNotFound, id)
	}
	return req, nil
}

// Workflow returns the most recent approval workflow for the request
func (s *purchaseServiceImpl) Workflow(ctx context.Context, id int64) (*domainappr.Workflow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	wf, err := s.engine.WorkflowFor(ctx, domainappr.SubjectRef{Kind: domainappr.SubjectPurchaseRequest, ID: id})
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow for purchase request %d", ErrNotFound, id)
	}
	return wf, nil
}

// List retrieves purchase requests with pagination
func (s *purchaseServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.PurchaseRequest, error) {
	return s.purchases.List(ctx, limit, offset)
}

// Approve records an approval decision on the request's workflow
func (s *purchaseServiceImpl) Approve(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.engine.Approve(ctx, domainappr.SubjectRef{Kind: domainappr.SubjectPurchaseRequest, ID: id}, actor, comment)
}

// Reject records a rejection decision on the request's workflow
func (s *purchaseServiceImpl) Reject(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.engine.Reject(ctx, domainappr.SubjectRef{Kind: domainappr.SubjectPurchaseRequest, ID: id}, actor, comment)
}

// Cancel withdraws the request's workflow and returns it to draft
func (s *purchaseServiceImpl) Cancel(ctx context.Context, id int64, actor domainappr.Actor) error {
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

	s.logger.Info("Purchase request cancelled",
		zap.Int64("id", id),
		zap.Int64("by_user_id", actor.UserID))
	return nil
}

// Inbox returns the purchase requests whose current approval stage is
// awaiting the user
func (s *purchaseServiceImpl) Inbox(ctx context.Context, userID int64) ([]PurchaseInboxItem, error) {
	entries, err := s.engine.Inbox(ctx, userID)
	if err != nil {
		return nil, err
	}

	var items []PurchaseInboxItem
	for _, e := range entries {
		if e.Workflow.SubjectKind != domainappr.SubjectPurchaseRequest {
			continue
		}
		req, err := s.purchases.GetByID(ctx, e.Workflow.SubjectID)
		if err != nil {
			return nil, err
		}
		if req == nil {
			s.logger.Warn("Workflow references missing purchase request",
				zap.Int64("workflow_id", e.Workflow.ID),
				zap.Int64("subject_id", e.Workflow.SubjectID))
			continue
		}
		items = append(items, PurchaseInboxItem{
			Request:    req,
			Workflow:   e.Workflow,
			StageOrder: e.StageOrder,
			StageName:  e.StageName,
		})
	}
	return items, nil
}

// HandleApprovalEvent mirrors workflow transitions onto the denormalized
// status column. A cancelled workflow returns the request to draft so the
// requester can amend and resubmit.
func (s *purchaseServiceImpl) HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error {
	switch evt.(type) {
	case domainappr.Approved:
		return s.purchases.UpdateStatus(ctx, ref.ID, entity.PurchaseApproved)
	case domainappr.Rejected:
		return s.purchases.UpdateStatus(ctx, ref.ID, entity.PurchaseRejected)
	case domainappr.Cancelled:
		return s.purchases.UpdateStatus(ctx, ref.ID, entity.PurchaseDraft)
	case domainappr.StageAdvanced:
		return nil
	default:
		return fmt.Errorf("unhandled approval event %q", evt.Kind())
	}
}

// Verify interface compliance
var _ appapproval.SubjectHandler = (PurchaseService)(nil)
