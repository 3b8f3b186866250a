package entity

import (
	"fmt"
	"math"
	"time"

	"github.com/millworks/backoffice/internal/domain/approval"
)

// OvertimeStatus is the denormalized request status maintained by the
// approval-event handler; the workflow remains the authoritative state.
type OvertimeStatus string

const (
	OvertimeSubmitted OvertimeStatus = "submitted"
	OvertimeApproved  OvertimeStatus = "approved"
	OvertimeRejected  OvertimeStatus = "rejected"
	OvertimeCancelled OvertimeStatus = "cancelled"
)

// OvertimeEntry is one worker included in an overtime request
type OvertimeEntry struct {
	ID          int64
	RequestID   int64
	UserID      int64
	JobNo       string
	Description string
	CreatedAt   time.Time
}

// OvertimeRequest is a request to work a time range, covering one or more
// workers. Team is snapshotted from the requester's profile at creation.
type OvertimeRequest struct {
	ID            int64
	RequesterID   int64
	Team          string
	Reason        string
	StartAt       time.Time
	EndAt         time.Time
	DurationHours float64
	Status        OvertimeStatus
	Entries       []OvertimeEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the time range and entry list before submission
func (r *OvertimeRequest) Validate() error {
	if !r.EndAt.After(r.StartAt) {
		return fmt.Errorf("end_at must be after start_at")
	}
	if len(r.Entries) == 0 {
		return fmt.Errorf("at least one entry is required")
	}
	return nil
}

// ComputeDurationHours derives the duration from the time range, rounded to
// two decimals
func (r *OvertimeRequest) ComputeDurationHours() float64 {
	hours := r.EndAt.Sub(r.StartAt).Hours()
	return math.Round(hours*100) / 100
}

// EntryUserIDs returns the distinct worker ids on the request
func (r *OvertimeRequest) EntryUserIDs() []int64 {
	seen := make(map[int64]bool, len(r.Entries))
	ids := make([]int64, 0, len(r.Entries))
	for _, e := range r.Entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}
	return ids
}

// Ref returns the polymorphic reference used by the approval engine
func (r *OvertimeRequest) Ref() approval.SubjectRef {
	return approval.SubjectRef{Kind: approval.SubjectOvertimeRequest, ID: r.ID}
}

// Classification exposes the attributes policy predicates match against
func (r *OvertimeRequest) Classification() approval.Classification {
	return approval.Classification{"team": r.Team}
}

// Snapshot captures the request data approver-resolution rules and approvers
// need, frozen at submission time
func (r *OvertimeRequest) Snapshot() approval.Snapshot {
	entries := make([]map[string]interface{}, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, map[string]interface{}{
			"user_id": e.UserID,
			"job_no":  e.JobNo,
		})
	}
	return approval.Snapshot{
		"requester_id":   r.RequesterID,
		"team":           r.Team,
		"reason":         r.Reason,
		"start_at":       r.StartAt.Format(time.RFC3339),
		"end_at":         r.EndAt.Format(time.RFC3339),
		"duration_hours": r.DurationHours,
		"entries":        entries,
	}
}
