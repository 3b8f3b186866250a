package entity

import (
	"fmt"
	"time"

	"github.com/millworks/backoffice/internal/domain/approval"
)

// PurchaseStatus is the denormalized purchase request status
type PurchaseStatus string

const (
	PurchaseDraft     PurchaseStatus = "draft"
	PurchaseSubmitted PurchaseStatus = "submitted"
	PurchaseApproved  PurchaseStatus = "approved"
	PurchaseRejected  PurchaseStatus = "rejected"
)

// PurchasePriority classifies the urgency of a purchase request
type PurchasePriority string

const (
	PriorityNormal   PurchasePriority = "normal"
	PriorityUrgent   PurchasePriority = "urgent"
	PriorityCritical PurchasePriority = "critical"
)

// PurchaseRequestItem is one line item on a purchase request
type PurchaseRequestItem struct {
	ID                int64
	PurchaseRequestID int64
	ItemCode          string
	ItemName          string
	Unit              string
	Quantity          float64
	Specifications    string
	SortOrder         int
}

// PurchaseRequest is a procurement request with line items. RequestNumber is
// generated at creation as PR-<year>-NNNN.
type PurchaseRequest struct {
	ID            int64
	RequestNumber string
	Title         string
	Description   string
	RequesterID   int64
	Department    string
	Priority      PurchasePriority
	Status        PurchaseStatus
	Items         []PurchaseRequestItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SubmittedAt   *time.Time
}

// Validate checks required fields before creation
func (r *PurchaseRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, it := range r.Items {
		if it.ItemCode == "" {
			return fmt.Errorf("item %d: code is required", i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
	}
	return nil
}

// Ref returns the polymorphic reference used by the approval engine
func (r *PurchaseRequest) Ref() approval.SubjectRef {
	return approval.SubjectRef{Kind: approval.SubjectPurchaseRequest, ID: r.ID}
}

// Classification exposes the attributes policy predicates match against
func (r *PurchaseRequest) Classification() approval.Classification {
	return approval.Classification{
		"department": r.Department,
		"priority":   string(r.Priority),
	}
}

// Snapshot captures the request data frozen into the workflow at submission
func (r *PurchaseRequest) Snapshot() approval.Snapshot {
	items := make([]map[string]interface{}, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, map[string]interface{}{
			"code":     it.ItemCode,
			"name":     it.ItemName,
			"quantity": it.Quantity,
			"unit":     it.Unit,
		})
	}
	return approval.Snapshot{
		"requester_id":   r.RequesterID,
		"request_number": r.RequestNumber,
		"title":          r.Title,
		"department":     r.Department,
		"priority":       string(r.Priority),
		"items":          items,
	}
}
