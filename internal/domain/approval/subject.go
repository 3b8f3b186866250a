package approval

import "fmt"

// SubjectKind identifies the type of business entity a workflow is attached to.
// The set is closed; attaching a new entity type means adding a constant here
// and registering a notification handler for it.
type SubjectKind string

const (
	SubjectOvertimeRequest SubjectKind = "overtime_request"
	SubjectPurchaseRequest SubjectKind = "purchase_request"
)

var validSubjectKinds = map[SubjectKind]bool{
	SubjectOvertimeRequest: true,
	SubjectPurchaseRequest: true,
}

// IsValid returns true if the kind is a known subject kind
func (k SubjectKind) IsValid() bool {
	return validSubjectKinds[k]
}

// String returns the string representation of the kind
func (k SubjectKind) String() string {
	return string(k)
}

// SubjectRef is the polymorphic reference linking a workflow to its subject.
// It is resolved at call time through the notifier registry, never held as a
// direct pointer, because the engine does not know the subject tables.
type SubjectRef struct {
	Kind SubjectKind
	ID   int64
}

// String returns a stable textual form, e.g. "overtime_request/42"
func (r SubjectRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Snapshot is the read-only attribute map a subject exposes at submission
// time. The engine treats it as opaque data; approver-resolution rules pick
// out the keys they need (e.g. "requester_id", "entry_user_ids").
type Snapshot map[string]interface{}

// RequesterID extracts the requester user id if the subject recorded one
func (s Snapshot) RequesterID() (int64, bool) {
	switch v := s["requester_id"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Classification is the small set of attributes policy predicates match
// against (e.g. team code). Extracted by the subject's own submission logic.
type Classification map[string]string
