package leave

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
)

var (
	guardian = models.Actor{UserID: "wali-1", FullName: "Bu Siti", Role: models.RoleWaliSantri}
	ustadzah = models.Actor{UserID: "ust-1", FullName: "Ustadzah Aisyah", Role: models.RoleUstadzah}
	ndalem   = models.Actor{UserID: "ndl-1", FullName: "Nyai Fatimah", Role: models.RoleNdalem}
)

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func newHome(t *testing.T) models.LeaveApplication {
	t.Helper()
	app, ev, err := NewApplication(Submission{
		ResidentID:        "santri-1",
		RequestedBy:       guardian.UserID,
		Kind:              models.LeaveKindHome,
		Reason:            "Acara keluarga",
		DepartureTime:     ts("2024-01-02T08:00:00Z"),
		PlannedReturnTime: ts("2024-01-04T08:00:00Z"),
		At:                ts("2024-01-01T10:00:00Z"),
	})
	require.NoError(t, err)
	require.Equal(t, EventSubmitted, ev.Type)
	app.ID = "app-home"
	return app
}

func newSick(t *testing.T, complaint string) models.LeaveApplication {
	t.Helper()
	app, _, err := NewApplication(Submission{
		ResidentID:  "santri-1",
		RequestedBy: guardian.UserID,
		Kind:        models.LeaveKindSick,
		Complaint:   complaint,
		At:          ts("2024-01-01T10:00:00Z"),
	})
	require.NoError(t, err)
	app.ID = "app-sick"
	return app
}

func approve(actor models.Actor) Decision {
	return Decision{Approved: true, Actor: actor, At: ts("2024-01-01T12:00:00Z")}
}

func reject(actor models.Actor, reason string) Decision {
	return Decision{Approved: false, Reason: reason, Actor: actor, At: ts("2024-01-01T12:00:00Z")}
}

func onLeave(t *testing.T) models.LeaveApplication {
	t.Helper()
	app, _, err := ApproveStaff(newHome(t), approve(ustadzah))
	require.NoError(t, err)
	app, _, err = ApproveSupervisor(app, approve(ndalem))
	require.NoError(t, err)
	require.Equal(t, models.LeaveStatusOnLeave, app.Status)
	return app
}

func TestNewApplicationValidation(t *testing.T) {
	_, _, err := NewApplication(Submission{ResidentID: "s", RequestedBy: "w", Kind: models.LeaveKindSick, Complaint: "  "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = NewApplication(Submission{
		ResidentID:        "s",
		RequestedBy:       "w",
		Kind:              models.LeaveKindHome,
		Reason:            "Pulang",
		DepartureTime:     ts("2024-01-04T08:00:00Z"),
		PlannedReturnTime: ts("2024-01-02T08:00:00Z"),
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = NewApplication(Submission{ResidentID: "s", RequestedBy: "w", Kind: "OTHER"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	home := newHome(t)
	assert.Equal(t, models.LeaveStatusPendingStaffApproval, home.Status)
	assert.Equal(t, 1, home.Version)
	assert.Nil(t, home.UstadzahApproval)

	sick := newSick(t, "Demam")
	assert.Equal(t, models.LeaveStatusPendingReview, sick.Status)
}

func TestHomeLeaveHappyPath(t *testing.T) {
	app := newHome(t)

	next, ev, err := ApproveStaff(app, approve(ustadzah))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPendingSupervisorApproval, next.Status)
	assert.Equal(t, EventApprovalRecorded, ev.Type)
	assert.Equal(t, StageStaff, ev.Stage)
	home, _ := next.Home()
	require.NotNil(t, home.GrantedByID)
	assert.Equal(t, ustadzah.UserID, *home.GrantedByID)
	assert.Equal(t, ustadzah.FullName, *home.GrantedByName)

	next, ev, err = ApproveSupervisor(next, approve(ndalem))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusOnLeave, next.Status)
	assert.Equal(t, StageSupervisor, ev.Stage)

	next, ev, err = VerifyReturn(next, ndalem, ts("2024-01-04T07:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusReturned, next.Status)
	assert.Equal(t, EventReturnVerified, ev.Type)
	require.NotNil(t, ev.ReturnedOnTime)
	assert.True(t, *ev.ReturnedOnTime)

	// the input record is untouched
	assert.Nil(t, app.UstadzahApproval)
	assert.Equal(t, models.LeaveStatusPendingStaffApproval, app.Status)
}

func TestVerifyReturnTimeliness(t *testing.T) {
	cases := []struct {
		name   string
		actual string
		onTime bool
	}{
		{name: "late", actual: "2024-01-04T09:00:00Z", onTime: false},
		{name: "early", actual: "2024-01-04T07:00:00Z", onTime: true},
		{name: "exactly planned", actual: "2024-01-04T08:00:00Z", onTime: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, _, err := VerifyReturn(onLeave(t), ndalem, ts(tc.actual))
			require.NoError(t, err)
			home, ok := next.Home()
			require.True(t, ok)
			require.NotNil(t, home.ReturnedOnTime)
			assert.Equal(t, tc.onTime, *home.ReturnedOnTime)
			assert.True(t, *home.HasReturned)
			assert.Equal(t, ts(tc.actual), *home.ActualReturnTime)
		})
	}
}

func TestVerifyReturnTwiceIsInvalid(t *testing.T) {
	next, _, err := VerifyReturn(onLeave(t), ndalem, ts("2024-01-04T07:00:00Z"))
	require.NoError(t, err)

	_, _, err = VerifyReturn(next, ndalem, ts("2024-01-04T09:00:00Z"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	home, _ := next.Home()
	assert.True(t, *home.ReturnedOnTime)
}

func TestApproveStaffTwiceAlreadyDecided(t *testing.T) {
	first, _, err := ApproveStaff(newHome(t), approve(ustadzah))
	require.NoError(t, err)
	snapshot := first.Clone()

	_, _, err = ApproveStaff(first, reject(ustadzah, "berubah pikiran"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyDecided))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, snapshot, first)
}

func TestApproveSupervisorGuards(t *testing.T) {
	_, _, err := ApproveSupervisor(newHome(t), approve(ndalem))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, _, err = ApproveSupervisor(newSick(t, "Batuk"), approve(ndalem))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	rejected, _, err := ApproveStaff(newHome(t), reject(ustadzah, "Jadwal ujian"))
	require.NoError(t, err)
	_, _, err = ApproveSupervisor(rejected, approve(ndalem))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, _, err = ApproveSupervisor(onLeave(t), approve(ndalem))
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyDecided))
}

func TestSupervisorRejection(t *testing.T) {
	app, _, err := ApproveStaff(newHome(t), approve(ustadzah))
	require.NoError(t, err)

	_, _, err = ApproveSupervisor(app, reject(ndalem, ""))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	next, ev, err := ApproveSupervisor(app, reject(ndalem, "Belum waktunya libur"))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusRejectedBySupervisor, next.Status)
	assert.Equal(t, EventRejectionRecorded, ev.Type)
	require.NotNil(t, next.DecisionReason)
	assert.Equal(t, "Belum waktunya libur", *next.DecisionReason)

	_, _, err = VerifyReturn(next, ndalem, ts("2024-01-04T07:00:00Z"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestSickRejectionThenRecoveryFails(t *testing.T) {
	app := newSick(t, "Demam")

	next, ev, err := ApproveStaff(app, reject(ustadzah, "Data tidak lengkap"))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusRejectedByStaff, next.Status)
	assert.Equal(t, EventRejectionRecorded, ev.Type)
	assert.Equal(t, "Data tidak lengkap", *next.DecisionReason)

	_, _, err = VerifyRecovery(next, ndalem, ts("2024-01-03T08:00:00Z"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestSickApprovalAndRecovery(t *testing.T) {
	app, _, err := ApproveStaff(newSick(t, "Demam"), approve(ustadzah))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusUnderSickLeave, app.Status)

	_, _, err = VerifyReturn(app, ndalem, ts("2024-01-03T08:00:00Z"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	next, ev, err := VerifyRecovery(app, ndalem, ts("2024-01-03T08:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusRecovered, next.Status)
	assert.Equal(t, EventRecoveryVerified, ev.Type)
	assert.Nil(t, ev.ReturnedOnTime)

	_, _, err = VerifyRecovery(next, ndalem, ts("2024-01-03T09:00:00Z"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWithdrawBoundary(t *testing.T) {
	home := newHome(t)
	ev, err := Withdraw(home, guardian)
	require.NoError(t, err)
	assert.Equal(t, EventWithdrawn, ev.Type)

	_, err = Withdraw(newSick(t, "Pusing"), guardian)
	require.NoError(t, err)

	_, err = Withdraw(home, models.Actor{UserID: "wali-2", Role: models.RoleWaliSantri})
	assert.True(t, errors.Is(err, appErrors.ErrNotWithdrawable))

	staffApproved, _, err := ApproveStaff(newHome(t), approve(ustadzah))
	require.NoError(t, err)
	staffRejected, _, err := ApproveStaff(newHome(t), reject(ustadzah, "Tidak jelas"))
	require.NoError(t, err)
	sickActive, _, err := ApproveStaff(newSick(t, "Demam"), approve(ustadzah))
	require.NoError(t, err)
	returned, _, err := VerifyReturn(onLeave(t), ndalem, ts("2024-01-04T07:00:00Z"))
	require.NoError(t, err)
	supervisorRejected, _, err := ApproveSupervisor(staffApproved, reject(ndalem, "Belum waktunya libur"))
	require.NoError(t, err)
	recovered, _, err := VerifyRecovery(sickActive, ndalem, ts("2024-01-03T08:00:00Z"))
	require.NoError(t, err)
	sickRejected, _, err := ApproveStaff(newSick(t, "Demam"), reject(ustadzah, "Data tidak lengkap"))
	require.NoError(t, err)

	others := []models.LeaveApplication{
		staffApproved, staffRejected, supervisorRejected, onLeave(t), returned,
		sickActive, recovered, sickRejected,
	}
	seen := map[models.LeaveStatus]bool{}
	for _, app := range others {
		seen[app.Status] = true
		_, err := Withdraw(app, guardian)
		assert.True(t, errors.Is(err, appErrors.ErrNotWithdrawable), "%s %s", app.Kind(), app.Status)
	}
	for _, status := range models.AllLeaveStatuses {
		if status == models.LeaveStatusPendingReview || status == models.LeaveStatusPendingStaffApproval {
			continue
		}
		assert.True(t, seen[status], "no withdraw case for %s", status)
	}
}

func TestCorruptRecordRejected(t *testing.T) {
	app := newHome(t)
	app.Status = models.LeaveStatusOnLeave

	_, _, err := ApproveStaff(app, approve(ustadzah))
	assert.True(t, errors.Is(err, appErrors.ErrCorruptRecord))

	missing := models.LeaveApplication{ID: "x", Status: models.LeaveStatusPendingReview}
	_, err = DeriveStatus(missing)
	assert.True(t, errors.Is(err, appErrors.ErrCorruptRecord))

	ndalemFirst := newHome(t)
	home, _ := ndalemFirst.Home()
	approved := true
	home.NdalemApproval = &approved
	assert.Error(t, CheckIntegrity(ndalemFirst))
}

// Random operation sequences must never produce a record that breaks the
// approval ordering or carries an inconsistent return verdict.
func TestRandomHistoriesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	planned := ts("2024-01-04T08:00:00Z")

	for i := 0; i < 500; i++ {
		app := newHome(t)
		for step := 0; step < 6; step++ {
			var (
				next models.LeaveApplication
				err  error
			)
			switch rng.Intn(4) {
			case 0:
				next, _, err = ApproveStaff(app, Decision{Approved: rng.Intn(3) > 0, Reason: "alasan", Actor: ustadzah})
			case 1:
				next, _, err = ApproveSupervisor(app, Decision{Approved: rng.Intn(3) > 0, Reason: "alasan", Actor: ndalem})
			case 2:
				offset := time.Duration(rng.Intn(240)-120) * time.Minute
				next, _, err = VerifyReturn(app, ndalem, planned.Add(offset))
			case 3:
				next, _, err = VerifyRecovery(app, ndalem, time.Time{})
			}
			if err != nil {
				assert.False(t, errors.Is(err, appErrors.ErrCorruptRecord))
				continue
			}
			app = next

			require.NoError(t, CheckIntegrity(app))
			home, _ := app.Home()
			if home.NdalemApproval != nil {
				require.NotNil(t, app.UstadzahApproval)
				require.True(t, *app.UstadzahApproval)
			}
			if isTrue(home.HasReturned) {
				require.NotNil(t, home.ReturnedOnTime)
				assert.Equal(t, !home.ActualReturnTime.After(home.PlannedReturnTime), *home.ReturnedOnTime)
			}
		}
	}
}
