package leave

import (
	"fmt"
	"time"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// Notification is a plain-text guardian message produced after a transition.
type Notification struct {
	RecipientID   string `json:"recipientId"`
	ApplicationID string `json:"applicationId"`
	Body          string `json:"body"`
}

const notificationTimeLayout = "02 Jan 2006 15:04"

// BuildNotification composes the guardian message for ev. It returns false
// when the event carries nothing to tell the guardian or no recipient is known.
func BuildNotification(ev Event, app models.LeaveApplication, resident models.Resident) (Notification, bool) {
	if !ev.Notifiable() || resident.GuardianID == "" {
		return Notification{}, false
	}
	name := resident.FullName
	if name == "" {
		name = app.ResidentID
	}

	var body string
	switch ev.Type {
	case EventApprovalRecorded:
		body = approvalBody(ev, app, name)
	case EventRejectionRecorded:
		reason := "-"
		if app.DecisionReason != nil && *app.DecisionReason != "" {
			reason = *app.DecisionReason
		}
		body = fmt.Sprintf("Pengajuan %s untuk %s ditolak oleh %s. Alasan: %s.", kindLabel(app.Kind()), name, stageLabel(ev.Stage), reason)
	case EventReturnVerified:
		body = returnBody(ev, app, name)
	case EventRecoveryVerified:
		body = fmt.Sprintf("%s telah dinyatakan sembuh dan kembali mengikuti kegiatan asrama.", name)
	}
	if body == "" {
		return Notification{}, false
	}
	return Notification{RecipientID: resident.GuardianID, ApplicationID: app.ID, Body: body}, true
}

func approvalBody(ev Event, app models.LeaveApplication, name string) string {
	if _, ok := app.Sick(); ok {
		return fmt.Sprintf("Izin sakit untuk %s telah disetujui. Santri sedang dalam masa istirahat.", name)
	}
	home, ok := app.Home()
	if !ok {
		return ""
	}
	if ev.Stage == StageStaff {
		return fmt.Sprintf("Izin pulang untuk %s telah disetujui ustadzah dan menunggu persetujuan ndalem.", name)
	}
	return fmt.Sprintf("Izin pulang untuk %s telah disetujui. Berangkat %s, wajib kembali paling lambat %s.",
		name, formatTime(home.DepartureTime), formatTime(home.PlannedReturnTime))
}

func returnBody(ev Event, app models.LeaveApplication, name string) string {
	home, ok := app.Home()
	if !ok || home.ActualReturnTime == nil {
		return ""
	}
	status := "tepat waktu"
	if ev.ReturnedOnTime != nil && !*ev.ReturnedOnTime {
		status = "terlambat"
	}
	return fmt.Sprintf("%s telah kembali ke asrama pada %s (%s).", name, formatTime(*home.ActualReturnTime), status)
}

func kindLabel(kind models.LeaveKind) string {
	if kind == models.LeaveKindSick {
		return "izin sakit"
	}
	return "izin pulang"
}

func stageLabel(stage Stage) string {
	if stage == StageSupervisor {
		return "ndalem"
	}
	return "ustadzah"
}

func formatTime(t time.Time) string {
	return t.Format(notificationTimeLayout)
}
