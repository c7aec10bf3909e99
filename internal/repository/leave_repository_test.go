package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

var leaveColumnNames = []string{
	"id", "kind", "resident_id", "requested_by", "status", "ustadzah_approval", "staff_reviewed_by", "staff_reviewed_at",
	"decision_reason", "complaint", "recovered_at", "recovered_by", "reason", "departure_time", "planned_return_time",
	"granted_by_name", "granted_by_id", "ndalem_approval", "supervisor_reviewed_by", "supervisor_reviewed_at",
	"has_returned", "returned_on_time", "actual_return_time", "outstanding_balance", "version", "created_at", "updated_at",
}

func newLeaveRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func homeRow(rows *sqlmock.Rows, id, status string, ust, ndalem interface{}) *sqlmock.Rows {
	departure := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	planned := time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "HOME", "santri-1", "wali-1", status, ust, nil, nil,
		nil, nil, nil, nil, "Acara keluarga", departure, planned,
		nil, nil, ndalem, nil, nil,
		nil, nil, nil, 0, 2, created, created)
}

func TestLeaveRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.LeaveApplication{
		ResidentID:  "santri-1",
		RequestedBy: "wali-1",
		Status:      models.LeaveStatusPendingReview,
		Details:     &models.SickLeave{Complaint: "Demam"},
	}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)
	require.Equal(t, 1, app.Version)

	rows := sqlmock.NewRows(leaveColumnNames).
		AddRow(app.ID, "SICK", "santri-1", "wali-1", "PENDING_REVIEW", nil, nil, nil,
			nil, "Demam", nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil, nil, 0, 1, app.CreatedAt, app.CreatedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind, resident_id")).
		WithArgs(app.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	sick, ok := found.Sick()
	require.True(t, ok)
	require.Equal(t, "Demam", sick.Complaint)
	require.Equal(t, models.LeaveStatusPendingReview, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryGetMapsHomeLeave(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind")).
		WithArgs("app-1").
		WillReturnRows(homeRow(sqlmock.NewRows(leaveColumnNames), "app-1", "ON_LEAVE", true, true))

	found, err := repo.GetByID(context.Background(), "app-1")
	require.NoError(t, err)
	home, ok := found.Home()
	require.True(t, ok)
	require.Equal(t, "Acara keluarga", home.Reason)
	require.True(t, *home.NdalemApproval)
	require.Nil(t, home.HasReturned)
	require.Equal(t, 2, found.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestLeaveRepositorySaveVersionGuard(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	approved := true
	app := &models.LeaveApplication{
		ID:               "app-1",
		ResidentID:       "santri-1",
		Status:           models.LeaveStatusUnderSickLeave,
		UstadzahApproval: &approved,
		Version:          3,
		Details:          &models.SickLeave{Complaint: "Demam"},
	}

	mock.ExpectExec("(?s)UPDATE leave_applications SET .* WHERE id = .* AND version = ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(context.Background(), app, 3))
	require.Equal(t, 4, app.Version)

	mock.ExpectExec("UPDATE leave_applications SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Save(context.Background(), app, 3)
	require.True(t, errors.Is(err, ErrVersionConflict))
	require.Equal(t, 4, app.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ANY($1)")).
		WithArgs(pq.Array([]string{"ON_LEAVE"})).
		WillReturnRows(homeRow(sqlmock.NewRows(leaveColumnNames), "app-1", "ON_LEAVE", true, true))

	list, err := repo.ListByStatus(context.Background(), models.LeaveStatusOnLeave)
	require.NoError(t, err)
	require.Len(t, list, 1)

	empty, err := repo.ListByStatus(context.Background())
	require.NoError(t, err)
	require.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryListByDateRange(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	mock.ExpectQuery("departure_time BETWEEN \\$1 AND \\$2").
		WithArgs(start, end).
		WillReturnRows(homeRow(sqlmock.NewRows(leaveColumnNames), "app-1", "PENDING_STAFF_APPROVAL", nil, nil))

	list, err := repo.ListByDateRange(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.LeaveStatusPendingStaffApproval, list[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ANY($1) AND kind = $2 AND requested_by = $3 ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs(pq.Array([]string{"ON_LEAVE"}), "HOME", "wali-1").
		WillReturnRows(homeRow(sqlmock.NewRows(leaveColumnNames), "app-1", "ON_LEAVE", true, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leave_applications WHERE status = ANY($1) AND kind = $2 AND requested_by = $3")).
		WithArgs(pq.Array([]string{"ON_LEAVE"}), "HOME", "wali-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	list, total, err := repo.List(context.Background(), models.LeaveFilter{
		Status:      []models.LeaveStatus{models.LeaveStatusOnLeave},
		Kind:        models.LeaveKindHome,
		RequestedBy: "wali-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 7, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryRejectsUnknownKind(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	rows := sqlmock.NewRows(leaveColumnNames).
		AddRow("app-1", "VACATION", "santri-1", "wali-1", "PENDING_REVIEW", nil, nil, nil,
			nil, nil, nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil, nil, 0, 1, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, kind").WillReturnRows(rows)

	_, err := repo.GetByID(context.Background(), "app-1")
	require.Error(t, err)
}

func TestLeaveRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	allowed := []models.LeaveStatus{models.LeaveStatusPendingStaffApproval}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM leave_applications WHERE id = $1 AND version = $2 AND status = ANY($3)")).
		WithArgs("app-1", 1, pq.Array([]string{"PENDING_STAFF_APPROVAL"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "app-1", 1, allowed))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM leave_applications")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), "app-1", 1, allowed)
	require.True(t, errors.Is(err, ErrVersionConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryIncrementOutstandingBalance(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET outstanding_balance = outstanding_balance + $2")).
		WithArgs("app-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.IncrementOutstandingBalance(context.Background(), "app-1", 1))

	mock.ExpectExec(regexp.QuoteMeta("SET outstanding_balance")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.IncrementOutstandingBalance(context.Background(), "app-sick", 1)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryRejectsSickRowWithHomeColumns(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	returned := time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(leaveColumnNames).
		AddRow("app-sick", "SICK", "santri-1", "wali-1", "UNDER_SICK_LEAVE", true, "ust-1", returned,
			nil, "Demam", nil, nil, nil, nil, nil,
			nil, nil, true, nil, nil,
			true, false, returned, 0, 2, returned, returned)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind")).
		WithArgs("app-sick").
		WillReturnRows(rows)

	app, err := repo.GetByID(context.Background(), "app-sick")
	require.Nil(t, app)
	require.ErrorIs(t, err, ErrCorruptRow)
	require.Contains(t, err.Error(), "ndalem_approval")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryRejectsHomeRowWithoutTravelTimes(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	rows := sqlmock.NewRows(leaveColumnNames).
		AddRow("app-home", "HOME", "santri-1", "wali-1", "PENDING_STAFF_APPROVAL", nil, nil, nil,
			nil, nil, nil, nil, "Acara keluarga", nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil, nil, 0, 1, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind")).WillReturnRows(rows)

	_, err := repo.GetByID(context.Background(), "app-home")
	require.ErrorIs(t, err, ErrCorruptRow)
}
