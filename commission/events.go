/*
events.go - Workflow events for the notification layer

The workflow emits events on calculation completion, dispute status
changes and payout transitions; delivering notifications is someone
else's job. LogNotifier is the default sink.
*/
package commission

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventType string

const (
	EventCalculationCompleted EventType = "calculation.completed"
	EventCalculationApproved  EventType = "calculation.approved"
	EventCalculationPaid      EventType = "calculation.paid"
	EventDisputeStatusChanged EventType = "dispute.status_changed"
)

// Event is one workflow occurrence the notification layer may act on.
type Event struct {
	Type     EventType
	TenantID TenantID
	ActorID  string
	Subject  string // ID of the calculation or dispute
	Detail   string
	At       time.Time
}

// Notifier receives workflow events. Implementations must not block
// the calling workflow on delivery.
type Notifier interface {
	Publish(ctx context.Context, e Event)
}

// =============================================================================
// LOG NOTIFIER
// =============================================================================

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n *LogNotifier) Publish(_ context.Context, e Event) {
	if n.Log == nil {
		return
	}
	n.Log.WithFields(logrus.Fields{
		"event":   e.Type,
		"tenant":  e.TenantID,
		"actor":   e.ActorID,
		"subject": e.Subject,
	}).Info(e.Detail)
}

// NopNotifier discards events. Useful in tests.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}
