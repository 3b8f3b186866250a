package approval

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	domainappr "github.com/millworks/backoffice/internal/domain/approval"
)

// SubjectHandler is the single callback contract every subject type
// implements. The handler resolves the concrete subject from the reference
// and applies the event's denormalized status change. It must either succeed
// or fail with no partial side effects: it runs inside the same transaction
// as the triggering workflow transition, and a failure rolls the whole
// decision back.
type SubjectHandler interface {
	HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error
}

// SubjectHandlerFunc adapts a function to the SubjectHandler interface
type SubjectHandlerFunc func(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error

// HandleApprovalEvent calls the function
func (f SubjectHandlerFunc) HandleApprovalEvent(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error {
	return f(ctx, ref, evt)
}

// Notifier delivers workflow transition events to subjects through the
// per-kind handler registry
type Notifier struct {
	mu       sync.RWMutex
	handlers map[domainappr.SubjectKind]SubjectHandler
	logger   *zap.Logger
}

// NewNotifier creates an empty notifier registry
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		handlers: make(map[domainappr.SubjectKind]SubjectHandler),
		logger:   logger,
	}
}

// Register installs the handler for a subject kind, replacing any previous one
func (n *Notifier) Register(kind domainappr.SubjectKind, h SubjectHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[kind] = h
}

// Notify invokes the subject's callback for the event. An unregistered kind
// or a handler failure is reported as ErrNotifierFailed so the caller rolls
// back the triggering transition.
func (n *Notifier) Notify(ctx context.Context, ref domainappr.SubjectRef, evt domainappr.Event) error {
	n.mu.RLock()
	h, ok := n.handlers[ref.Kind]
	n.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: no handler registered for subject kind %s", domainappr.ErrNotifierFailed, ref.Kind)
	}

	if err := h.HandleApprovalEvent(ctx, ref, evt); err != nil {
		n.logger.Error("Subject notification failed",
			zap.String("subject", ref.String()),
			zap.String("event", string(evt.Kind())),
			zap.Error(err))
		return fmt.Errorf("%w: %w", domainappr.ErrNotifierFailed, err)
	}

	n.logger.Debug("Subject notified",
		zap.String("subject", ref.String()),
		zap.String("event", string(evt.Kind())))
	return nil
}
