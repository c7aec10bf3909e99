package models

import "time"

// ResidentLeaveSummary is one per-resident row of the leave recap.
type ResidentLeaveSummary struct {
	ResidentID      string `json:"residentId"`
	ResidentName    string `json:"residentName"`
	Room            string `json:"room"`
	HomeLeaveCount  int    `json:"homeLeaveCount"`
	SickCount       int    `json:"sickCount"`
	LateReturnCount int    `json:"lateReturnCount"`
	LatestReason    string `json:"latestReason,omitempty"`
	LatestComplaint string `json:"latestComplaint,omitempty"`
}

// LeaveReport wraps summary rows with the requested window.
type LeaveReport struct {
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	Rows        []ResidentLeaveSummary `json:"rows"`
	GeneratedAt time.Time              `json:"generatedAt"`
	// Cached is set when the report was served from the report cache.
	Cached bool `json:"-"`
}
