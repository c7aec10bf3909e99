package leave

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
)

func returnedHome(t *testing.T, residentID, reason, departure, actual string) models.LeaveApplication {
	t.Helper()
	app, _, err := NewApplication(Submission{
		ResidentID:        residentID,
		RequestedBy:       guardian.UserID,
		Kind:              models.LeaveKindHome,
		Reason:            reason,
		DepartureTime:     ts(departure),
		PlannedReturnTime: ts(departure).Add(48 * time.Hour),
	})
	require.NoError(t, err)
	app, _, err = ApproveStaff(app, approve(ustadzah))
	require.NoError(t, err)
	app, _, err = ApproveSupervisor(app, approve(ndalem))
	require.NoError(t, err)
	if actual != "" {
		app, _, err = VerifyReturn(app, ndalem, ts(actual))
		require.NoError(t, err)
	}
	return app
}

func TestDateRange(t *testing.T) {
	rng := DayRange(ts("2024-01-01T15:00:00Z"), ts("2024-01-31T03:00:00Z"))
	require.NoError(t, rng.Validate())
	assert.True(t, rng.Contains(ts("2024-01-01T00:00:00Z")))
	assert.True(t, rng.Contains(ts("2024-01-31T23:59:59Z")))
	assert.False(t, rng.Contains(ts("2024-02-01T00:00:00Z")))

	err := DateRange{Start: ts("2024-02-01T00:00:00Z"), End: ts("2024-01-01T00:00:00Z")}.Validate()
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Error(t, DateRange{}.Validate())
}

func TestAggregateCountsLateReturns(t *testing.T) {
	residents := []models.Resident{
		{ID: "santri-1", FullName: "Ahmad", Room: "A1", GuardianID: "wali-1"},
		{ID: "santri-2", FullName: "Budi", Room: "A2", GuardianID: "wali-2"},
	}
	apps := []models.LeaveApplication{
		// planned return is departure + 48h
		returnedHome(t, "santri-1", "Acara keluarga", "2024-01-02T08:00:00Z", "2024-01-04T07:00:00Z"),
		returnedHome(t, "santri-1", "Kontrol gigi", "2024-01-10T08:00:00Z", "2024-01-12T09:00:00Z"),
	}

	rows := Aggregate(residents, apps, DayRange(ts("2024-01-01T00:00:00Z"), ts("2024-01-31T00:00:00Z")))
	require.Len(t, rows, 2)
	assert.Equal(t, "santri-1", rows[0].ResidentID)
	assert.Equal(t, 2, rows[0].HomeLeaveCount)
	assert.Equal(t, 1, rows[0].LateReturnCount)
	assert.Equal(t, "Kontrol gigi", rows[0].LatestReason)
	assert.Equal(t, models.ResidentLeaveSummary{ResidentID: "santri-2", ResidentName: "Budi", Room: "A2"}, rows[1])
}

func TestAggregateFiltersAndToleratesOpenRecords(t *testing.T) {
	residents := []models.Resident{{ID: "santri-1", FullName: "Ahmad"}}

	sick := newSick(t, "Demam")
	sick.CreatedAt = ts("2024-01-05T10:00:00Z")
	laterSick := newSick(t, "Batuk")
	laterSick.CreatedAt = ts("2024-01-20T10:00:00Z")
	outOfRange := newSick(t, "Flu")
	outOfRange.CreatedAt = ts("2024-03-01T10:00:00Z")

	rejected, _, err := ApproveStaff(newHome(t), reject(ustadzah, "Jadwal ujian"))
	require.NoError(t, err)
	stillAway := returnedHome(t, "santri-1", "Ziarah", "2024-01-15T08:00:00Z", "")
	stranger := returnedHome(t, "santri-9", "Liburan", "2024-01-15T08:00:00Z", "2024-01-20T08:00:00Z")

	rows := Aggregate(residents, []models.LeaveApplication{laterSick, sick, outOfRange, rejected, stillAway, stranger},
		DayRange(ts("2024-01-01T00:00:00Z"), ts("2024-01-31T00:00:00Z")))

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 2, row.SickCount)
	assert.Equal(t, "Batuk", row.LatestComplaint)
	assert.Equal(t, 1, row.HomeLeaveCount)
	assert.Equal(t, 0, row.LateReturnCount)
	assert.Equal(t, "Ziarah", row.LatestReason)
}
