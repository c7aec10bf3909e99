package models

import (
	"encoding/json"
	"time"
)

// LeaveKind discriminates the two leave variants.
type LeaveKind string

const (
	LeaveKindSick LeaveKind = "SICK"
	LeaveKindHome LeaveKind = "HOME"
)

// LeaveStatus captures workflow states for both leave tracks.
type LeaveStatus string

const (
	// Sick track.
	LeaveStatusPendingReview  LeaveStatus = "PENDING_REVIEW"
	LeaveStatusUnderSickLeave LeaveStatus = "UNDER_SICK_LEAVE"
	LeaveStatusRecovered      LeaveStatus = "RECOVERED"

	// Home leave track.
	LeaveStatusPendingStaffApproval      LeaveStatus = "PENDING_STAFF_APPROVAL"
	LeaveStatusPendingSupervisorApproval LeaveStatus = "PENDING_SUPERVISOR_APPROVAL"
	LeaveStatusOnLeave                   LeaveStatus = "ON_LEAVE"
	LeaveStatusReturned                  LeaveStatus = "RETURNED"

	// Shared exits.
	LeaveStatusRejectedByStaff      LeaveStatus = "REJECTED_BY_STAFF"
	LeaveStatusRejectedBySupervisor LeaveStatus = "REJECTED_BY_SUPERVISOR"
)

// AllLeaveStatuses lists every status in workflow order.
var AllLeaveStatuses = []LeaveStatus{
	LeaveStatusPendingReview,
	LeaveStatusUnderSickLeave,
	LeaveStatusRecovered,
	LeaveStatusPendingStaffApproval,
	LeaveStatusPendingSupervisorApproval,
	LeaveStatusOnLeave,
	LeaveStatusReturned,
	LeaveStatusRejectedByStaff,
	LeaveStatusRejectedBySupervisor,
}

// Terminal reports whether no further transition is defined from the status.
func (s LeaveStatus) Terminal() bool {
	switch s {
	case LeaveStatusRecovered, LeaveStatusReturned, LeaveStatusRejectedByStaff, LeaveStatusRejectedBySupervisor:
		return true
	}
	return false
}

// Rejected reports whether the status is one of the rejection exits.
func (s LeaveStatus) Rejected() bool {
	return s == LeaveStatusRejectedByStaff || s == LeaveStatusRejectedBySupervisor
}

// Valid reports whether the status is known.
func (s LeaveStatus) Valid() bool {
	for _, known := range AllLeaveStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// InitialLeaveStatus returns the state a freshly submitted application starts in.
func InitialLeaveStatus(kind LeaveKind) LeaveStatus {
	if kind == LeaveKindHome {
		return LeaveStatusPendingStaffApproval
	}
	return LeaveStatusPendingReview
}

// LeaveDetails is implemented only by *SickLeave and *HomeLeave.
type LeaveDetails interface {
	Kind() LeaveKind
	clone() LeaveDetails
}

// SickLeave holds the sick-leave (izin sakit) variant fields.
type SickLeave struct {
	Complaint   string     `json:"complaint"`
	RecoveredAt *time.Time `json:"recoveredAt,omitempty"`
	RecoveredBy *string    `json:"recoveredBy,omitempty"`
}

// Kind implements LeaveDetails.
func (*SickLeave) Kind() LeaveKind { return LeaveKindSick }

func (s *SickLeave) clone() LeaveDetails {
	if s == nil {
		return s
	}
	c := *s
	c.RecoveredAt = cloneTime(s.RecoveredAt)
	c.RecoveredBy = cloneString(s.RecoveredBy)
	return &c
}

// HomeLeave holds the home-leave (izin pulang) variant fields.
type HomeLeave struct {
	Reason               string     `json:"reason"`
	DepartureTime        time.Time  `json:"departureTime"`
	PlannedReturnTime    time.Time  `json:"plannedReturnTime"`
	GrantedByName        *string    `json:"grantedByName"`
	GrantedByID          *string    `json:"grantedById"`
	NdalemApproval       *bool      `json:"ndalemApproval"`
	SupervisorReviewedBy *string    `json:"supervisorReviewedBy,omitempty"`
	SupervisorReviewedAt *time.Time `json:"supervisorReviewedAt,omitempty"`
	HasReturned          *bool      `json:"hasReturned"`
	ReturnedOnTime       *bool      `json:"returnedOnTime"`
	ActualReturnTime     *time.Time `json:"actualReturnTime"`
	OutstandingBalance   int        `json:"outstandingBalance"`
}

// Kind implements LeaveDetails.
func (*HomeLeave) Kind() LeaveKind { return LeaveKindHome }

func (h *HomeLeave) clone() LeaveDetails {
	if h == nil {
		return h
	}
	c := *h
	c.GrantedByName = cloneString(h.GrantedByName)
	c.GrantedByID = cloneString(h.GrantedByID)
	c.NdalemApproval = cloneBool(h.NdalemApproval)
	c.SupervisorReviewedBy = cloneString(h.SupervisorReviewedBy)
	c.SupervisorReviewedAt = cloneTime(h.SupervisorReviewedAt)
	c.HasReturned = cloneBool(h.HasReturned)
	c.ReturnedOnTime = cloneBool(h.ReturnedOnTime)
	c.ActualReturnTime = cloneTime(h.ActualReturnTime)
	return &c
}

// LeaveApplication is the persisted leave request filed by a guardian for a resident.
type LeaveApplication struct {
	ID               string       `json:"id"`
	ResidentID       string       `json:"residentId"`
	RequestedBy      string       `json:"requestedBy"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	Status           LeaveStatus  `json:"status"`
	UstadzahApproval *bool        `json:"ustadzahApproval"`
	StaffReviewedBy  *string      `json:"staffReviewedBy,omitempty"`
	StaffReviewedAt  *time.Time   `json:"staffReviewedAt,omitempty"`
	DecisionReason   *string      `json:"decisionReason,omitempty"`
	Version          int          `json:"version"`
	Details          LeaveDetails `json:"-"`
}

// Kind returns the variant tag, or "" when details are missing.
func (a *LeaveApplication) Kind() LeaveKind {
	if a == nil || a.Details == nil {
		return ""
	}
	return a.Details.Kind()
}

// Sick returns the sick-leave details when the application is of that variant.
func (a *LeaveApplication) Sick() (*SickLeave, bool) {
	if a == nil {
		return nil, false
	}
	s, ok := a.Details.(*SickLeave)
	return s, ok && s != nil
}

// Home returns the home-leave details when the application is of that variant.
func (a *LeaveApplication) Home() (*HomeLeave, bool) {
	if a == nil {
		return nil, false
	}
	h, ok := a.Details.(*HomeLeave)
	return h, ok && h != nil
}

// Clone returns a deep copy so transitions never share pointers with their input.
func (a LeaveApplication) Clone() LeaveApplication {
	c := a
	c.UstadzahApproval = cloneBool(a.UstadzahApproval)
	c.StaffReviewedBy = cloneString(a.StaffReviewedBy)
	c.StaffReviewedAt = cloneTime(a.StaffReviewedAt)
	c.DecisionReason = cloneString(a.DecisionReason)
	if a.Details != nil {
		c.Details = a.Details.clone()
	}
	return c
}

type leaveApplicationJSON struct {
	ID               string      `json:"id"`
	Kind             LeaveKind   `json:"kind"`
	ResidentID       string      `json:"residentId"`
	RequestedBy      string      `json:"requestedBy"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	Status           LeaveStatus `json:"status"`
	UstadzahApproval *bool       `json:"ustadzahApproval"`
	StaffReviewedBy  *string     `json:"staffReviewedBy,omitempty"`
	StaffReviewedAt  *time.Time  `json:"staffReviewedAt,omitempty"`
	DecisionReason   *string     `json:"decisionReason,omitempty"`
	Version          int         `json:"version"`
	Sick             *SickLeave  `json:"sick,omitempty"`
	HomeLeave        *HomeLeave  `json:"homeLeave,omitempty"`
}

// MarshalJSON flattens the envelope and nests exactly one variant object.
func (a LeaveApplication) MarshalJSON() ([]byte, error) {
	out := leaveApplicationJSON{
		ID:               a.ID,
		Kind:             a.Kind(),
		ResidentID:       a.ResidentID,
		RequestedBy:      a.RequestedBy,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		Status:           a.Status,
		UstadzahApproval: a.UstadzahApproval,
		StaffReviewedBy:  a.StaffReviewedBy,
		StaffReviewedAt:  a.StaffReviewedAt,
		DecisionReason:   a.DecisionReason,
		Version:          a.Version,
	}
	switch d := a.Details.(type) {
	case *SickLeave:
		out.Sick = d
	case *HomeLeave:
		out.HomeLeave = d
	}
	return json.Marshal(out)
}

// LeaveFilter constrains listing queries.
type LeaveFilter struct {
	Status      []LeaveStatus
	Kind        LeaveKind
	ResidentID  string
	RequestedBy string
	Limit       int
	Offset      int
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
