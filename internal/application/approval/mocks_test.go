package approval

import (
	"context"
	"sync"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

type mockPolicyRepo struct {
	createFunc     func(ctx context.Context, policy *domainappr.Policy) error
	getByIDFunc    func(ctx context.Context, id int64) (*domainappr.Policy, error)
	listActiveFunc func(ctx context.Context) ([]*domainappr.Policy, error)
	listFunc       func(ctx context.Context) ([]*domainappr.Policy, error)
}

func (m *mockPolicyRepo) Create(ctx context.Context, policy *domainappr.Policy) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, policy)
	}
	policy.ID = 1
	return nil
}

func (m *mockPolicyRepo) GetByID(ctx context.Context, id int64) (*domainappr.Policy, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPolicyRepo) ListActive(ctx context.Context) ([]*domainappr.Policy, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx)
	}
	return nil, nil
}

func (m *mockPolicyRepo) List(ctx context.Context) ([]*domainappr.Policy, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

// mockWorkflowRepo keeps one workflow in memory and lets tests override any
// method. The default behaviors mimic the sqlite repository closely enough
// for engine-level tests: Create assigns ids, UpdateState bumps the version.
type mockWorkflowRepo struct {
	mu sync.Mutex
	wf *domainappr.Workflow

	nextDecisionID int64

	createFunc              func(ctx context.Context, wf *domainappr.Workflow) error
	getBySubjectFunc        func(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error)
	getOpenBySubjectFunc    func(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error)
	updateStateFunc         func(ctx context.Context, wf *domainappr.Workflow) error
	updateStageFunc         func(ctx context.Context, stage *domainappr.StageInstance) error
	addDecisionFunc         func(ctx context.Context, d *domainappr.Decision) error
	listOpenForApproverFunc func(ctx context.Context, userID int64) ([]*domainappr.Workflow, error)

	updateStateCalls int
	updateStageCalls int
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *domainappr.Workflow) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, wf)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	wf.ID = 1
	wf.Version = 1
	for i, s := range wf.Stages {
		s.ID = int64(i + 1)
		s.WorkflowID = wf.ID
	}
	m.wf = wf
	return nil
}

func (m *mockWorkflowRepo) GetBySubject(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error) {
	if m.getBySubjectFunc != nil {
		return m.getBySubjectFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wf != nil && m.wf.SubjectKind == ref.Kind && m.wf.SubjectID == ref.ID {
		return m.wf, nil
	}
	return nil, nil
}

func (m *mockWorkflowRepo) GetOpenBySubject(ctx context.Context, ref domainappr.SubjectRef) (*domainappr.Workflow, error) {
	if m.getOpenBySubjectFunc != nil {
		return m.getOpenBySubjectFunc(ctx, ref)
	}
	wf, err := m.GetBySubject(ctx, ref)
	if err != nil || wf == nil || wf.IsTerminal() {
		return nil, err
	}
	return wf, nil
}

func (m *mockWorkflowRepo) UpdateState(ctx context.Context, wf *domainappr.Workflow) error {
	m.updateStateCalls++
	if m.updateStateFunc != nil {
		return m.updateStateFunc(ctx, wf)
	}
	wf.Version++
	return nil
}

func (m *mockWorkflowRepo) UpdateStage(ctx context.Context, stage *domainappr.StageInstance) error {
	m.updateStageCalls++
	if m.updateStageFunc != nil {
		return m.updateStageFunc(ctx, stage)
	}
	return nil
}

func (m *mockWorkflowRepo) AddDecision(ctx context.Context, d *domainappr.Decision) error {
	if m.addDecisionFunc != nil {
		return m.addDecisionFunc(ctx, d)
	}
	m.nextDecisionID++
	d.ID = m.nextDecisionID
	return nil
}

func (m *mockWorkflowRepo) ListOpenForApprover(ctx context.Context, userID int64) ([]*domainappr.Workflow, error) {
	if m.listOpenForApproverFunc != nil {
		return m.listOpenForApproverFunc(ctx, userID)
	}
	return nil, nil
}

type mockDirectory struct {
	usersInRoleFunc func(ctx context.Context, role string) ([]int64, error)
	managerOfFunc   func(ctx context.Context, userID int64) (int64, error)
}

func (m *mockDirectory) UsersInRole(ctx context.Context, role string) ([]int64, error) {
	if m.usersInRoleFunc != nil {
		return m.usersInRoleFunc(ctx, role)
	}
	return nil, nil
}

func (m *mockDirectory) ManagerOf(ctx context.Context, userID int64) (int64, error) {
	if m.managerOfFunc != nil {
		return m.managerOfFunc(ctx, userID)
	}
	return 0, nil
}

// nopTxManager satisfies port.TransactionManager without a database
type nopTxManager struct{}

func (nopTxManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// eventRecorder captures events delivered through the notifier
type eventRecorder struct {
	events []domainappr.Event
	err    error
}

func (r *eventRecorder) HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) kinds() []domainappr.EventKind {
	out := make([]domainappr.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind())
	}
	return out
}
