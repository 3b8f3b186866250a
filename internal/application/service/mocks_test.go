package service

import (
	"context"
	"fmt"
	"time"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// nopTxManager satisfies port.TransactionManager without a database
type nopTxManager struct{}

func (nopTxManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type mockOvertimeRepo struct {
	requests map[int64]*entity.OvertimeRequest
	nextID   int64

	countOverlappingFunc func(ctx context.Context, userIDs []int64, start, end time.Time, excludeID int64) (int, error)
}

func newMockOvertimeRepo() *mockOvertimeRepo {
	return &mockOvertimeRepo{requests: make(map[int64]*entity.OvertimeRequest)}
}

func (m *mockOvertimeRepo) Create(ctx context.Context, req *entity.OvertimeRequest) error {
	m.nextID++
	req.ID = m.nextID
	m.requests[req.ID] = req
	return nil
}

func (m *mockOvertimeRepo) GetByID(ctx context.Context, id int64) (*entity.OvertimeRequest, error) {
	return m.requests[id], nil
}

func (m *mockOvertimeRepo) UpdateStatus(ctx context.Context, id int64, status entity.OvertimeStatus) error {
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("overtime request %d not found", id)
	}
	req.Status = status
	return nil
}

func (m *mockOvertimeRepo) List(ctx context.Context, limit, offset int) ([]*entity.OvertimeRequest, error) {
	var out []*entity.OvertimeRequest
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockOvertimeRepo) ListByIDs(ctx context.Context, ids []int64) ([]*entity.OvertimeRequest, error) {
	var out []*entity.OvertimeRequest
	for _, id := range ids {
		if r, ok := m.requests[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockOvertimeRepo) CountOverlapping(ctx context.Context, userIDs []int64, start, end time.Time, excludeID int64) (int, error) {
	if m.countOverlappingFunc != nil {
		return m.countOverlappingFunc(ctx, userIDs, start, end, excludeID)
	}
	return 0, nil
}

type mockPurchaseRepo struct {
	requests map[int64]*entity.PurchaseRequest
	nextID   int64
	lastSeq  int
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{requests: make(map[int64]*entity.PurchaseRequest)}
}

func (m *mockPurchaseRepo) Create(ctx context.Context, req *entity.PurchaseRequest) error {
	m.nextID++
	req.ID = m.nextID
	m.requests[req.ID] = req
	return nil
}

func (m *mockPurchaseRepo) GetByID(ctx context.Context, id int64) (*entity.PurchaseRequest, error) {
	return m.requests[id], nil
}

func (m *mockPurchaseRepo) UpdateStatus(ctx context.Context, id int64, status entity.PurchaseStatus) error {
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("purchase request %d not found", id)
	}
	req.Status = status
	return nil
}

func (m *mockPurchaseRepo) List(ctx context.Context, limit, offset int) ([]*entity.PurchaseRequest, error) {
	var out []*entity.PurchaseRequest
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockPurchaseRepo) NextRequestNumber(ctx context.Context, year int) (string, error) {
	m.lastSeq++
	return fmt.Sprintf("PR-%d-%04d", year, m.lastSeq), nil
}

// mockPolicyRepo serves a single configurable active policy
type mockPolicyRepo struct {
	active []*domainappr.Policy
}

func (m *mockPolicyRepo) Create(ctx context.Context, policy *domainappr.Policy) error {
	policy.ID = int64(len(m.active) + 1)
	m.active = append(m.active, policy)
	return nil
}

func (m *mockPolicyRepo) GetByID(ctx context.Context, id int64) (*domainappr.Policy, error) {
	for _, p := range m.active {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPolicyRepo) ListActive(ctx context.Context) ([]*domainappr.Policy, error) {
	return m.active, nil
}

func (m *mockPolicyRepo) List(ctx context.Context) ([]*domainappr.Policy, error) {
	return m.active, nil
}

// mockWorkflowRepo keeps workflows in memory, newest first per subject
type mockWorkflowRepo struct {
	workflows []*domainappr.Workflow
	nextID    int64
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *domainappr.Workflow) error {
	for _, existing := range m.workflows {
		if existing.SubjectKind == wf.SubjectKind && existing.SubjectID == wf.SubjectID && !existing.IsTerminal() {
			return domainappr.ErrWorkflowExists
		}
	}
	m.nextID++
	wf.ID = m.nextID
	wf.Version = 1
	for i, s := range wf.Stages {
		s.ID = m.nextID*100 + int64(i)
		s.WorkflowID = wf.ID
	}
	m.workflows = append(m.workflows, wf)
	return nil
}

func (m *mockWorkflowRepo) GetBySubject(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error) {
	for i := len(m.workflows) - 1; i >= 0; i-- {
		wf := m.workflows[i]
		if wf.SubjectKind == ref.Kind && wf.SubjectID == ref.ID {
			return wf, nil
		}
	}
	return nil, nil
}

func (m *mockWorkflowRepo) GetOpenBySubject(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error) {
	wf, err := m.GetBySubject(ctx, ref)
	if err != nil || wf == nil || wf.IsTerminal() {
		return nil, err
	}
	return wf, nil
}

func (m *mockWorkflowRepo) UpdateState(ctx context.Context, wf *domainappr.Workflow) error {
	wf.Version++
	return nil
}

func (m *mockWorkflowRepo) UpdateStage(ctx context.Context, stage *domainappr.StageInstance) error {
	return nil
}

func (m *mockWorkflowRepo) AddDecision(ctx context.Context, d *domainappr.Decision) error {
	d.ID = time.Now().UnixNano()
	return nil
}

func (m *mockWorkflowRepo) ListOpenForApprover(ctx context.Context, userID int64) ([]*domainappr.Workflow, error) {
	var out []*domainappr.Workflow
	for _, wf := range m.workflows {
		stage := wf.CurrentStage()
		if stage != nil && stage.IsOpen() && stage.Approvers.Contains(userID) {
			out = append(out, wf)
		}
	}
	return out, nil
}

type mockDirectory struct {
	roles    map[string][]int64
	managers map[int64]int64
}

func (m *mockDirectory) UsersInRole(ctx context.Context, role string) ([]int64, error) {
	return m.roles[role], nil
}

func (m *mockDirectory) ManagerOf(ctx context.Context, userID int64) (int64, error) {
	return m.managers[userID], nil
}
