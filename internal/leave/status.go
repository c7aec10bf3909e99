package leave

import (
	"fmt"

	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
)

// DeriveStatus computes the status implied by the approval, return and recovery fields.
func DeriveStatus(app models.LeaveApplication) (models.LeaveStatus, error) {
	switch d := app.Details.(type) {
	case *models.SickLeave:
		if d == nil {
			break
		}
		switch {
		case app.UstadzahApproval == nil:
			return models.LeaveStatusPendingReview, nil
		case !*app.UstadzahApproval:
			return models.LeaveStatusRejectedByStaff, nil
		case d.RecoveredAt == nil:
			return models.LeaveStatusUnderSickLeave, nil
		default:
			return models.LeaveStatusRecovered, nil
		}
	case *models.HomeLeave:
		if d == nil {
			break
		}
		switch {
		case app.UstadzahApproval == nil:
			return models.LeaveStatusPendingStaffApproval, nil
		case !*app.UstadzahApproval:
			return models.LeaveStatusRejectedByStaff, nil
		case d.NdalemApproval == nil:
			return models.LeaveStatusPendingSupervisorApproval, nil
		case !*d.NdalemApproval:
			return models.LeaveStatusRejectedBySupervisor, nil
		case isTrue(d.HasReturned):
			return models.LeaveStatusReturned, nil
		default:
			return models.LeaveStatusOnLeave, nil
		}
	}
	return "", corrupt("application has no leave details")
}

// CheckIntegrity rejects records whose stored status disagrees with their
// fields or whose fields break the approval ordering.
func CheckIntegrity(app models.LeaveApplication) error {
	derived, err := DeriveStatus(app)
	if err != nil {
		return err
	}
	if derived != app.Status {
		return corrupt(fmt.Sprintf("stored status %s but fields imply %s", app.Status, derived))
	}

	switch d := app.Details.(type) {
	case *models.SickLeave:
		if d.RecoveredAt != nil && !isTrue(app.UstadzahApproval) {
			return corrupt("recovery recorded before staff approval")
		}
	case *models.HomeLeave:
		if !d.PlannedReturnTime.After(d.DepartureTime) {
			return corrupt("planned return is not after departure")
		}
		if d.NdalemApproval != nil && !isTrue(app.UstadzahApproval) {
			return corrupt("supervisor decision recorded before staff approval")
		}
		if d.HasReturned != nil && !(isTrue(app.UstadzahApproval) && isTrue(d.NdalemApproval)) {
			return corrupt("return recorded before both approvals")
		}
		if isTrue(d.HasReturned) {
			if d.ActualReturnTime == nil || d.ReturnedOnTime == nil {
				return corrupt("return recorded without timing")
			}
			if *d.ReturnedOnTime != ReturnedOnTime(d.PlannedReturnTime, *d.ActualReturnTime) {
				return corrupt("returnedOnTime does not match recorded times")
			}
		} else if d.ReturnedOnTime != nil || d.ActualReturnTime != nil {
			return corrupt("return timing present without a verified return")
		}
	}
	return nil
}

func corrupt(detail string) error {
	return appErrors.Clone(appErrors.ErrCorruptRecord, "leave application record is inconsistent: "+detail)
}

func isTrue(v *bool) bool {
	return v != nil && *v
}
