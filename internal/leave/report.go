package leave

import (
	"time"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// DateRange is a closed interval; both bounds are inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DayRange widens calendar dates to cover the whole of the end day.
func DayRange(start, end time.Time) DateRange {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	e := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), end.Location())
	return DateRange{Start: s, End: e}
}

// Validate rejects empty or inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return validation("start and end dates are required")
	}
	if r.End.Before(r.Start) {
		return validation("end date must not be before start date")
	}
	return nil
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

type tally struct {
	row             models.ResidentLeaveSummary
	latestDeparture time.Time
	latestSick      time.Time
}

// Aggregate folds applications into one summary row per resident, in the
// order residents are given. Rejected applications and applications of
// residents outside the population are ignored.
func Aggregate(residents []models.Resident, apps []models.LeaveApplication, rng DateRange) []models.ResidentLeaveSummary {
	index := make(map[string]*tally, len(residents))
	order := make([]*tally, 0, len(residents))
	for _, r := range residents {
		if _, seen := index[r.ID]; seen {
			continue
		}
		t := &tally{row: models.ResidentLeaveSummary{
			ResidentID:   r.ID,
			ResidentName: r.FullName,
			Room:         r.Room,
		}}
		index[r.ID] = t
		order = append(order, t)
	}

	for i := range apps {
		app := &apps[i]
		t, ok := index[app.ResidentID]
		if !ok || app.Status.Rejected() {
			continue
		}
		switch d := app.Details.(type) {
		case *models.HomeLeave:
			if d == nil || !rng.Contains(d.DepartureTime) {
				continue
			}
			t.row.HomeLeaveCount++
			if d.ReturnedOnTime != nil && !*d.ReturnedOnTime {
				t.row.LateReturnCount++
			}
			if t.row.LatestReason == "" || d.DepartureTime.After(t.latestDeparture) {
				t.row.LatestReason = d.Reason
				t.latestDeparture = d.DepartureTime
			}
		case *models.SickLeave:
			if d == nil || !rng.Contains(app.CreatedAt) {
				continue
			}
			t.row.SickCount++
			if t.row.LatestComplaint == "" || app.CreatedAt.After(t.latestSick) {
				t.row.LatestComplaint = d.Complaint
				t.latestSick = app.CreatedAt
			}
		}
	}

	rows := make([]models.ResidentLeaveSummary, 0, len(order))
	for _, t := range order {
		rows = append(rows, t.row)
	}
	return rows
}
