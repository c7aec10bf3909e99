package leave

import (
	"time"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// EventType names a recorded workflow fact.
type EventType string

const (
	EventSubmitted         EventType = "SUBMITTED"
	EventApprovalRecorded  EventType = "APPROVAL_RECORDED"
	EventRejectionRecorded EventType = "REJECTION_RECORDED"
	EventReturnVerified    EventType = "RETURN_VERIFIED"
	EventRecoveryVerified  EventType = "RECOVERY_VERIFIED"
	EventWithdrawn         EventType = "WITHDRAWN"
)

// Stage identifies the approval tier a decision belongs to.
type Stage string

const (
	StageStaff      Stage = "STAFF"
	StageSupervisor Stage = "SUPERVISOR"
)

// Event describes a successful transition. Side effects such as counters and
// guardian messages subscribe to events instead of living in the engine.
type Event struct {
	Type           EventType
	ApplicationID  string
	ResidentID     string
	Kind           models.LeaveKind
	Stage          Stage
	Actor          models.Actor
	OccurredAt     time.Time
	ReturnedOnTime *bool
}

// Notifiable reports whether the event should produce a guardian message.
func (e Event) Notifiable() bool {
	switch e.Type {
	case EventApprovalRecorded, EventRejectionRecorded, EventReturnVerified, EventRecoveryVerified:
		return true
	}
	return false
}

func newEvent(t EventType, app models.LeaveApplication, actor models.Actor, at time.Time) Event {
	return Event{
		Type:          t,
		ApplicationID: app.ID,
		ResidentID:    app.ResidentID,
		Kind:          app.Kind(),
		Actor:         actor,
		OccurredAt:    at,
	}
}
