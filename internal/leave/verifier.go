package leave

import (
	"time"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// ReturnedOnTime reports whether the actual return happened at or before the planned time.
func ReturnedOnTime(planned, actual time.Time) bool {
	return !actual.After(planned)
}

// IsOverdue reports whether a home leave is still open past its planned return.
func IsOverdue(app models.LeaveApplication, now time.Time) bool {
	home, ok := app.Home()
	if !ok || app.Status != models.LeaveStatusOnLeave {
		return false
	}
	return now.After(home.PlannedReturnTime)
}
