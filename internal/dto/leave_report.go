package dto

import "time"

// LeaveReportRequest scopes a recap to residents and an inclusive date window.
type LeaveReportRequest struct {
	ResidentIDs []string  `form:"residentId" json:"residentIds"`
	Room        string    `form:"room" json:"room"`
	Start       time.Time `form:"start" json:"start" time_format:"2006-01-02" validate:"required"`
	End         time.Time `form:"end" json:"end" time_format:"2006-01-02" validate:"required,gtefield=Start"`
}
