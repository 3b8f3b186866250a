package approval

// EventKind names a workflow state transition delivered to the subject
type EventKind string

const (
	EventApproved      EventKind = "approved"
	EventRejected      EventKind = "rejected"
	EventStageAdvanced EventKind = "stage_advanced"
	EventCancelled     EventKind = "cancelled"
)

// Event is the closed set of transition events the engine emits to subjects.
// Each variant carries only the fields it needs; handlers type-switch over
// the concrete types for exhaustiveness.
type Event interface {
	Kind() EventKind
}

// Approved is emitted when the last open stage completes
type Approved struct{}

func (Approved) Kind() EventKind { return EventApproved }

// Rejected is emitted when a stage decision rejects the workflow
type Rejected struct {
	StageOrder int
	StageName  string
	ByUserID   int64
	Comment    string
}

func (Rejected) Kind() EventKind { return EventRejected }

// StageAdvanced is emitted when the open stage moves forward without
// terminating the workflow
type StageAdvanced struct {
	FromOrder int
	ToOrder   int
	ToName    string
}

func (StageAdvanced) Kind() EventKind { return EventStageAdvanced }

// Cancelled is emitted when the requester withdraws the workflow before any
// decision is recorded at the current stage
type Cancelled struct {
	ByUserID int64
}

func (Cancelled) Kind() EventKind { return EventCancelled }
