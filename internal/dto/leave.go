package dto

import (
	"time"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// SubmitLeaveRequest is the guardian payload for POST /leave-applications.
// Complaint applies to SICK; reason and the travel times apply to HOME.
type SubmitLeaveRequest struct {
	ResidentID        string           `json:"residentId" validate:"required"`
	Kind              models.LeaveKind `json:"kind" validate:"required,oneof=SICK HOME"`
	Complaint         string           `json:"complaint" validate:"required_if=Kind SICK,max=500"`
	Reason            string           `json:"reason" validate:"required_if=Kind HOME,max=500"`
	DepartureTime     *time.Time       `json:"departureTime" validate:"required_if=Kind HOME"`
	PlannedReturnTime *time.Time       `json:"plannedReturnTime" validate:"required_if=Kind HOME"`
}

// ReviewLeaveRequest carries an approve or reject verdict for either tier.
type ReviewLeaveRequest struct {
	Approved *bool  `json:"approved" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

// VerifyReturnRequest records when a resident came back; it defaults to now.
type VerifyReturnRequest struct {
	ActualReturnTime *time.Time `json:"actualReturnTime"`
}

// VerifyRecoveryRequest records when a resident recovered; it defaults to now.
type VerifyRecoveryRequest struct {
	RecoveredAt *time.Time `json:"recoveredAt"`
}

// LeaveQuery mirrors supported listing filters.
type LeaveQuery struct {
	Status     []models.LeaveStatus
	Kind       models.LeaveKind
	ResidentID string
	Page       int
	PageSize   int
}
