package http

import (
	"time"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// OvertimeResponse represents an overtime request in API responses
type OvertimeResponse struct {
	ID            int64                   `json:"id"`
	RequesterID   int64                   `json:"requester_id"`
	Team          string                  `json:"team,omitempty"`
	Reason        string                  `json:"reason"`
	StartAt       string                  `json:"start_at"`
	EndAt         string                  `json:"end_at"`
	DurationHours float64                 `json:"duration_hours"`
	Status        string                  `json:"status"`
	Entries       []OvertimeEntryResponse `json:"entries"`
	CreatedAt     string                  `json:"created_at"`
}

// OvertimeEntryResponse represents one worker on an overtime request
type OvertimeEntryResponse struct {
	UserID      int64  `json:"user_id"`
	JobNo       string `json:"job_no,omitempty"`
	Description string `json:"description,omitempty"`
}

func toOvertimeResponse(r *entity.OvertimeRequest) OvertimeResponse {
	entries := make([]OvertimeEntryResponse, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, OvertimeEntryResponse{
			UserID:      e.UserID,
			JobNo:       e.JobNo,
			Description: e.Description,
		})
	}
	return OvertimeResponse{
		ID:            r.ID,
		RequesterID:   r.RequesterID,
		Team:          r.Team,
		Reason:        r.Reason,
		StartAt:       r.StartAt.Format(time.RFC3339),
		EndAt:         r.EndAt.Format(time.RFC3339),
		DurationHours: r.DurationHours,
		Status:        string(r.Status),
		Entries:       entries,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}

// PurchaseResponse represents a purchase request in API responses
type PurchaseResponse struct {
	ID            int64                  `json:"id"`
	RequestNumber string                 `json:"request_number"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	RequesterID   int64                  `json:"requester_id"`
	Department    string                 `json:"department,omitempty"`
	Priority      string                 `json:"priority"`
	Status        string                 `json:"status"`
	Items         []PurchaseItemResponse `json:"items"`
	CreatedAt     string                 `json:"created_at"`
	SubmittedAt   *string                `json:"submitted_at,omitempty"`
}

// PurchaseItemResponse represents one line item on a purchase request
type PurchaseItemResponse struct {
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Quantity       float64 `json:"quantity"`
	Specifications string  `json:"specifications,omitempty"`
}

func toPurchaseResponse(r *entity.PurchaseRequest) PurchaseResponse {
	items := make([]PurchaseItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, PurchaseItemResponse{
			ItemCode:       it.ItemCode,
			ItemName:       it.ItemName,
			Unit:           it.Unit,
			Quantity:       it.Quantity,
			Specifications: it.Specifications,
		})
	}
	resp := PurchaseResponse{
		ID:            r.ID,
		RequestNumber: r.RequestNumber,
		Title:         r.Title,
		Description:   r.Description,
		RequesterID:   r.RequesterID,
		Department:    r.Department,
		Priority:      string(r.Priority),
		Status:        string(r.Status),
		Items:         items,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.SubmittedAt != nil {
		s := r.SubmittedAt.Format(time.RFC3339)
		resp.SubmittedAt = &s
	}
	return resp
}

// WorkflowResponse represents an approval workflow in API responses
type WorkflowResponse struct {
	ID                int64           `json:"id"`
	SubjectKind       string          `json:"subject_kind"`
	SubjectID         int64           `json:"subject_id"`
	PolicyID          int64           `json:"policy_id"`
	PolicyName        string          `json:"policy_name"`
	CurrentStageOrder int             `json:"current_stage_order"`
	IsComplete        bool            `json:"is_complete"`
	IsRejected        bool            `json:"is_rejected"`
	Stages            []StageResponse `json:"stages"`
	CreatedAt         string          `json:"created_at"`
}

// StageResponse represents a materialized stage instance
type StageResponse struct {
	Order      int                `json:"order"`
	Name       string             `json:"name"`
	Approvers  []int64            `json:"approvers"`
	Quorum     int                `json:"quorum"`
	IsComplete bool               `json:"is_complete"`
	IsRejected bool               `json:"is_rejected"`
	Decisions  []DecisionResponse `json:"decisions"`
}

// DecisionResponse represents one decision audit entry
type DecisionResponse struct {
	ApproverID int64  `json:"approver_id"`
	Outcome    string `json:"outcome"`
	Comment    string `json:"comment,omitempty"`
	IsSystem   bool   `json:"is_system,omitempty"`
	DecidedAt  string `json:"decided_at"`
}

func toWorkflowResponse(wf *domainappr.Workflow) WorkflowResponse {
	stages := make([]StageResponse, 0, len(wf.Stages))
	for _, st := range wf.Stages {
		decisions := make([]DecisionResponse, 0, len(st.Decisions))
		for _, d := range st.Decisions {
			decisions = append(decisions, DecisionResponse{
				ApproverID: d.ApproverID,
				Outcome:    string(d.Outcome),
				Comment:    d.Comment,
				IsSystem:   d.IsSystem,
				DecidedAt:  d.DecidedAt.Format(time.RFC3339),
			})
		}
		approvers := st.Approvers
		if approvers == nil {
			approvers = []int64{}
		}
		stages = append(stages, StageResponse{
			Order:      st.Order,
			Name:       st.Name,
			Approvers:  approvers,
			Quorum:     st.RequiredApprovals(),
			IsComplete: st.IsComplete,
			IsRejected: st.IsRejected,
			Decisions:  decisions,
		})
	}
	return WorkflowResponse{
		ID:                wf.ID,
		SubjectKind:       string(wf.SubjectKind),
		SubjectID:         wf.SubjectID,
		PolicyID:          wf.PolicyID,
		PolicyName:        wf.PolicyName,
		CurrentStageOrder: wf.CurrentStageOrder,
		IsComplete:        wf.IsComplete,
		IsRejected:        wf.IsRejected,
		Stages:            stages,
		CreatedAt:         wf.CreatedAt.Format(time.RFC3339),
	}
}

// InboxItemResponse is one pending approval for the calling user
type InboxItemResponse struct {
	Subject    interface{} `json:"subject"`
	WorkflowID int64       `json:"workflow_id"`
	StageOrder int         `json:"stage_order"`
	StageName  string      `json:"stage_name"`
}

// PolicyResponse represents an approval policy in API responses
type PolicyResponse struct {
	ID                int64                   `json:"id"`
	Name              string                  `json:"name"`
	IsActive          bool                    `json:"is_active"`
	SelectionPriority int                     `json:"selection_priority"`
	Match             map[string]string       `json:"match"`
	Stages            []StageTemplateResponse `json:"stages"`
}

// StageTemplateResponse represents one stage template of a policy
type StageTemplateResponse struct {
	Order  int                     `json:"order"`
	Name   string                  `json:"name"`
	Rule   domainappr.ApproverRule `json:"rule"`
	Quorum int                     `json:"quorum"`
}

func toPolicyResponse(p *domainappr.Policy) PolicyResponse {
	stages := make([]StageTemplateResponse, 0, len(p.Stages))
	for _, st := range p.Stages {
		stages = append(stages, StageTemplateResponse{
			Order:  st.Order,
			Name:   st.Name,
			Rule:   st.Rule,
			Quorum: st.RequiredApprovals(),
		})
	}
	match := p.Match
	if match == nil {
		match = map[string]string{}
	}
	return PolicyResponse{
		ID:                p.ID,
		Name:              p.Name,
		IsActive:          p.IsActive,
		SelectionPriority: p.SelectionPriority,
		Match:             match,
		Stages:            stages,
	}
}
