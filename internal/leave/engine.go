// Package leave holds the pure leave workflow rules: the transition engine,
// the approval capability table, return timeliness and report aggregation.
// Nothing here performs I/O; callers load and persist records themselves.
package leave

import (
	"strings"
	"time"

	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
)

// Submission is the guardian input for a new application.
type Submission struct {
	ResidentID        string
	RequestedBy       string
	Kind              models.LeaveKind
	Complaint         string
	Reason            string
	DepartureTime     time.Time
	PlannedReturnTime time.Time
	At                time.Time
}

// Decision is an approve or reject verdict for one approval tier.
type Decision struct {
	Approved bool
	Reason   string
	Actor    models.Actor
	At       time.Time
}

// NewApplication validates a submission and returns the record in its initial pending state.
func NewApplication(sub Submission) (models.LeaveApplication, Event, error) {
	if strings.TrimSpace(sub.ResidentID) == "" {
		return models.LeaveApplication{}, Event{}, validation("residentId is required")
	}
	if strings.TrimSpace(sub.RequestedBy) == "" {
		return models.LeaveApplication{}, Event{}, validation("requester is required")
	}
	at := stamp(sub.At)

	app := models.LeaveApplication{
		ResidentID:  strings.TrimSpace(sub.ResidentID),
		RequestedBy: sub.RequestedBy,
		CreatedAt:   at,
		UpdatedAt:   at,
		Version:     1,
	}

	switch sub.Kind {
	case models.LeaveKindSick:
		complaint := strings.TrimSpace(sub.Complaint)
		if complaint == "" {
			return models.LeaveApplication{}, Event{}, validation("complaint is required for sick leave")
		}
		app.Details = &models.SickLeave{Complaint: complaint}
	case models.LeaveKindHome:
		reason := strings.TrimSpace(sub.Reason)
		if reason == "" {
			return models.LeaveApplication{}, Event{}, validation("reason is required for home leave")
		}
		if sub.DepartureTime.IsZero() || sub.PlannedReturnTime.IsZero() {
			return models.LeaveApplication{}, Event{}, validation("departureTime and plannedReturnTime are required")
		}
		if !sub.PlannedReturnTime.After(sub.DepartureTime) {
			return models.LeaveApplication{}, Event{}, validation("plannedReturnTime must be after departureTime")
		}
		app.Details = &models.HomeLeave{
			Reason:            reason,
			DepartureTime:     sub.DepartureTime.UTC(),
			PlannedReturnTime: sub.PlannedReturnTime.UTC(),
		}
	default:
		return models.LeaveApplication{}, Event{}, validation("kind must be SICK or HOME")
	}

	app.Status = models.InitialLeaveStatus(sub.Kind)
	return app, newEvent(EventSubmitted, app, models.Actor{UserID: sub.RequestedBy}, at), nil
}

// ApproveStaff records the first-tier (ustadzah) decision.
func ApproveStaff(app models.LeaveApplication, d Decision) (models.LeaveApplication, Event, error) {
	if err := CheckIntegrity(app); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	if app.UstadzahApproval != nil {
		return models.LeaveApplication{}, Event{}, appErrors.Clone(appErrors.ErrAlreadyDecided, "staff decision already recorded")
	}
	reason, err := checkDecision(d)
	if err != nil {
		return models.LeaveApplication{}, Event{}, err
	}

	at := stamp(d.At)
	next := app.Clone()
	next.UstadzahApproval = boolPtr(d.Approved)
	next.StaffReviewedBy = stringPtr(d.Actor.UserID)
	next.StaffReviewedAt = &at
	if !d.Approved {
		next.DecisionReason = &reason
	}
	if home, ok := next.Home(); ok && d.Approved {
		home.GrantedByID = stringPtr(d.Actor.UserID)
		home.GrantedByName = stringPtr(d.Actor.FullName)
	}

	if err := settle(&next, at); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	ev := decisionEvent(next, d, at)
	ev.Stage = StageStaff
	return next, ev, nil
}

// ApproveSupervisor records the second-tier (ndalem) decision on a home leave.
func ApproveSupervisor(app models.LeaveApplication, d Decision) (models.LeaveApplication, Event, error) {
	if err := CheckIntegrity(app); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	home, ok := app.Home()
	if !ok {
		return models.LeaveApplication{}, Event{}, invalid("supervisor approval applies to home leave only")
	}
	if !isTrue(app.UstadzahApproval) {
		return models.LeaveApplication{}, Event{}, invalid("staff approval is required before supervisor review")
	}
	if home.NdalemApproval != nil {
		return models.LeaveApplication{}, Event{}, appErrors.Clone(appErrors.ErrAlreadyDecided, "supervisor decision already recorded")
	}
	reason, err := checkDecision(d)
	if err != nil {
		return models.LeaveApplication{}, Event{}, err
	}

	at := stamp(d.At)
	next := app.Clone()
	nextHome, _ := next.Home()
	nextHome.NdalemApproval = boolPtr(d.Approved)
	nextHome.SupervisorReviewedBy = stringPtr(d.Actor.UserID)
	nextHome.SupervisorReviewedAt = &at
	if !d.Approved {
		next.DecisionReason = &reason
	}

	if err := settle(&next, at); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	ev := decisionEvent(next, d, at)
	ev.Stage = StageSupervisor
	return next, ev, nil
}

// VerifyReturn closes an active home leave once the resident is back.
func VerifyReturn(app models.LeaveApplication, actor models.Actor, actualReturn time.Time) (models.LeaveApplication, Event, error) {
	if err := CheckIntegrity(app); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	home, ok := app.Home()
	if !ok {
		return models.LeaveApplication{}, Event{}, invalid("return verification applies to home leave only")
	}
	if app.Status != models.LeaveStatusOnLeave || !isTrue(app.UstadzahApproval) || !isTrue(home.NdalemApproval) {
		return models.LeaveApplication{}, Event{}, invalid("return can only be verified while the resident is on leave")
	}
	if actualReturn.IsZero() {
		return models.LeaveApplication{}, Event{}, validation("actualReturnTime is required")
	}
	if actualReturn.Before(home.DepartureTime) {
		return models.LeaveApplication{}, Event{}, validation("actualReturnTime cannot be before departureTime")
	}
	if strings.TrimSpace(actor.UserID) == "" {
		return models.LeaveApplication{}, Event{}, validation("actor is required")
	}

	actual := actualReturn.UTC()
	onTime := ReturnedOnTime(home.PlannedReturnTime, actual)
	at := stamp(time.Time{})

	next := app.Clone()
	nextHome, _ := next.Home()
	nextHome.HasReturned = boolPtr(true)
	nextHome.ActualReturnTime = &actual
	nextHome.ReturnedOnTime = boolPtr(onTime)

	if err := settle(&next, at); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	ev := newEvent(EventReturnVerified, next, actor, at)
	ev.ReturnedOnTime = boolPtr(onTime)
	return next, ev, nil
}

// VerifyRecovery closes an active sick leave.
func VerifyRecovery(app models.LeaveApplication, actor models.Actor, at time.Time) (models.LeaveApplication, Event, error) {
	if err := CheckIntegrity(app); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	if _, ok := app.Sick(); !ok {
		return models.LeaveApplication{}, Event{}, invalid("recovery verification applies to sick leave only")
	}
	if app.Status != models.LeaveStatusUnderSickLeave {
		return models.LeaveApplication{}, Event{}, invalid("recovery can only be verified during an active sick leave")
	}
	if strings.TrimSpace(actor.UserID) == "" {
		return models.LeaveApplication{}, Event{}, validation("actor is required")
	}

	at = stamp(at)
	next := app.Clone()
	sick, _ := next.Sick()
	sick.RecoveredAt = &at
	sick.RecoveredBy = stringPtr(actor.UserID)

	if err := settle(&next, at); err != nil {
		return models.LeaveApplication{}, Event{}, err
	}
	return next, newEvent(EventRecoveryVerified, next, actor, at), nil
}

// Withdraw checks that the requester may still delete the application.
// Only the original requester may withdraw, and only before any decision.
func Withdraw(app models.LeaveApplication, actor models.Actor) (Event, error) {
	if err := CheckIntegrity(app); err != nil {
		return Event{}, err
	}
	if app.UstadzahApproval != nil || app.Status != models.InitialLeaveStatus(app.Kind()) {
		return Event{}, appErrors.Clone(appErrors.ErrNotWithdrawable, "only applications awaiting their first review can be withdrawn")
	}
	if actor.UserID == "" || actor.UserID != app.RequestedBy {
		return Event{}, appErrors.Clone(appErrors.ErrNotWithdrawable, "only the requester can withdraw this application")
	}
	return newEvent(EventWithdrawn, app, actor, stamp(time.Time{})), nil
}

func checkDecision(d Decision) (string, error) {
	if strings.TrimSpace(d.Actor.UserID) == "" {
		return "", validation("actor is required")
	}
	reason := strings.TrimSpace(d.Reason)
	if !d.Approved && reason == "" {
		return "", validation("reason is required when rejecting")
	}
	return reason, nil
}

func decisionEvent(app models.LeaveApplication, d Decision, at time.Time) Event {
	t := EventApprovalRecorded
	if !d.Approved {
		t = EventRejectionRecorded
	}
	return newEvent(t, app, d.Actor, at)
}

// settle recomputes the status from fields and verifies the result.
func settle(app *models.LeaveApplication, at time.Time) error {
	status, err := DeriveStatus(*app)
	if err != nil {
		return err
	}
	app.Status = status
	app.UpdatedAt = at
	return CheckIntegrity(*app)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, message)
}

func validation(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func boolPtr(v bool) *bool {
	return &v
}

func stringPtr(v string) *string {
	return &v
}
