package approval

import (
	"context"
	"fmt"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// InboxEntry is one open workflow awaiting the user's decision, with the
// stage metadata the caller needs to render it
type InboxEntry struct {
	Workflow   *domainappr.Workflow
	StageOrder int
	StageName  string
}

// Inbox returns the open workflows where the user is in the frozen approver
// set of the currently open stage. The read applies exactly the same
// membership semantics as the decision processor: only the frozen set
// counts, never live role membership.
func (e *Engine) Inbox(ctx context.Context, userID int64) ([]InboxEntry, error) {
	workflows, err := e.workflows.ListOpenForApprover(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open workflows for user %d: %w", userID, err)
	}

	entries := make([]InboxEntry, 0, len(workflows))
	for _, wf := range workflows {
		stage := wf.CurrentStage()
		if stage == nil || !stage.IsOpen() || !stage.Approvers.Contains(userID) {
			// The repository query already filters; skip anything that
			// drifted between read and mapping.
			continue
		}
		entries = append(entries, InboxEntry{
			Workflow:   wf,
			StageOrder: stage.Order,
			StageName:  stage.Name,
		})
	}
	return entries, nil
}
