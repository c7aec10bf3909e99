package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// ErrVersionConflict is returned when a conditional write finds the row at another version.
var ErrVersionConflict = errors.New("leave application was modified concurrently")

// ErrCorruptRow is returned when a stored row mixes or lacks variant columns.
var ErrCorruptRow = errors.New("leave application row is inconsistent")

const leaveColumns = `id, kind, resident_id, requested_by, status, ustadzah_approval, staff_reviewed_by, staff_reviewed_at,
       decision_reason, complaint, recovered_at, recovered_by, reason, departure_time, planned_return_time,
       granted_by_name, granted_by_id, ndalem_approval, supervisor_reviewed_by, supervisor_reviewed_at,
       has_returned, returned_on_time, actual_return_time, outstanding_balance, version, created_at, updated_at`

// leaveRow is the flat table shape of a leave application; variant columns are NULL for the other kind.
type leaveRow struct {
	ID                   string     `db:"id"`
	Kind                 string     `db:"kind"`
	ResidentID           string     `db:"resident_id"`
	RequestedBy          string     `db:"requested_by"`
	Status               string     `db:"status"`
	UstadzahApproval     *bool      `db:"ustadzah_approval"`
	StaffReviewedBy      *string    `db:"staff_reviewed_by"`
	StaffReviewedAt      *time.Time `db:"staff_reviewed_at"`
	DecisionReason       *string    `db:"decision_reason"`
	Complaint            *string    `db:"complaint"`
	RecoveredAt          *time.Time `db:"recovered_at"`
	RecoveredBy          *string    `db:"recovered_by"`
	Reason               *string    `db:"reason"`
	DepartureTime        *time.Time `db:"departure_time"`
	PlannedReturnTime    *time.Time `db:"planned_return_time"`
	GrantedByName        *string    `db:"granted_by_name"`
	GrantedByID          *string    `db:"granted_by_id"`
	NdalemApproval       *bool      `db:"ndalem_approval"`
	SupervisorReviewedBy *string    `db:"supervisor_reviewed_by"`
	SupervisorReviewedAt *time.Time `db:"supervisor_reviewed_at"`
	HasReturned          *bool      `db:"has_returned"`
	ReturnedOnTime       *bool      `db:"returned_on_time"`
	ActualReturnTime     *time.Time `db:"actual_return_time"`
	OutstandingBalance   int        `db:"outstanding_balance"`
	Version              int        `db:"version"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
	ExpectedVersion      int        `db:"expected_version"`
}

func toLeaveRow(app *models.LeaveApplication) leaveRow {
	row := leaveRow{
		ID:               app.ID,
		Kind:             string(app.Kind()),
		ResidentID:       app.ResidentID,
		RequestedBy:      app.RequestedBy,
		Status:           string(app.Status),
		UstadzahApproval: app.UstadzahApproval,
		StaffReviewedBy:  app.StaffReviewedBy,
		StaffReviewedAt:  app.StaffReviewedAt,
		DecisionReason:   app.DecisionReason,
		Version:          app.Version,
		CreatedAt:        app.CreatedAt,
		UpdatedAt:        app.UpdatedAt,
	}
	if sick, ok := app.Sick(); ok {
		row.Complaint = &sick.Complaint
		row.RecoveredAt = sick.RecoveredAt
		row.RecoveredBy = sick.RecoveredBy
	}
	if home, ok := app.Home(); ok {
		departure := home.DepartureTime
		planned := home.PlannedReturnTime
		row.Reason = &home.Reason
		row.DepartureTime = &departure
		row.PlannedReturnTime = &planned
		row.GrantedByName = home.GrantedByName
		row.GrantedByID = home.GrantedByID
		row.NdalemApproval = home.NdalemApproval
		row.SupervisorReviewedBy = home.SupervisorReviewedBy
		row.SupervisorReviewedAt = home.SupervisorReviewedAt
		row.HasReturned = home.HasReturned
		row.ReturnedOnTime = home.ReturnedOnTime
		row.ActualReturnTime = home.ActualReturnTime
		row.OutstandingBalance = home.OutstandingBalance
	}
	return row
}

func (row leaveRow) toModel() (*models.LeaveApplication, error) {
	app := &models.LeaveApplication{
		ID:               row.ID,
		ResidentID:       row.ResidentID,
		RequestedBy:      row.RequestedBy,
		Status:           models.LeaveStatus(row.Status),
		UstadzahApproval: row.UstadzahApproval,
		StaffReviewedBy:  row.StaffReviewedBy,
		StaffReviewedAt:  row.StaffReviewedAt,
		DecisionReason:   row.DecisionReason,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	switch models.LeaveKind(row.Kind) {
	case models.LeaveKindSick:
		if column := row.homeColumnSet(); column != "" {
			return nil, fmt.Errorf("leave application %s: sick leave carries %s: %w", row.ID, column, ErrCorruptRow)
		}
		app.Details = &models.SickLeave{
			Complaint:   deref(row.Complaint),
			RecoveredAt: row.RecoveredAt,
			RecoveredBy: row.RecoveredBy,
		}
	case models.LeaveKindHome:
		if row.DepartureTime == nil || row.PlannedReturnTime == nil {
			return nil, fmt.Errorf("leave application %s: home leave without travel times: %w", row.ID, ErrCorruptRow)
		}
		app.Details = &models.HomeLeave{
			Reason:               deref(row.Reason),
			DepartureTime:        *row.DepartureTime,
			PlannedReturnTime:    *row.PlannedReturnTime,
			GrantedByName:        row.GrantedByName,
			GrantedByID:          row.GrantedByID,
			NdalemApproval:       row.NdalemApproval,
			SupervisorReviewedBy: row.SupervisorReviewedBy,
			SupervisorReviewedAt: row.SupervisorReviewedAt,
			HasReturned:          row.HasReturned,
			ReturnedOnTime:       row.ReturnedOnTime,
			ActualReturnTime:     row.ActualReturnTime,
			OutstandingBalance:   row.OutstandingBalance,
		}
	default:
		return nil, fmt.Errorf("leave application %s: unknown kind %q: %w", row.ID, row.Kind, ErrCorruptRow)
	}
	return app, nil
}

// homeColumnSet names the first home leave column holding a value, or "".
func (row leaveRow) homeColumnSet() string {
	switch {
	case row.Reason != nil:
		return "reason"
	case row.DepartureTime != nil:
		return "departure_time"
	case row.PlannedReturnTime != nil:
		return "planned_return_time"
	case row.GrantedByName != nil:
		return "granted_by_name"
	case row.GrantedByID != nil:
		return "granted_by_id"
	case row.NdalemApproval != nil:
		return "ndalem_approval"
	case row.SupervisorReviewedBy != nil:
		return "supervisor_reviewed_by"
	case row.SupervisorReviewedAt != nil:
		return "supervisor_reviewed_at"
	case row.HasReturned != nil:
		return "has_returned"
	case row.ReturnedOnTime != nil:
		return "returned_on_time"
	case row.ActualReturnTime != nil:
		return "actual_return_time"
	case row.OutstandingBalance != 0:
		return "outstanding_balance"
	}
	return ""
}

func toLeaveModels(rows []leaveRow) ([]models.LeaveApplication, error) {
	apps := make([]models.LeaveApplication, 0, len(rows))
	for _, row := range rows {
		app, err := row.toModel()
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

// LeaveRepository persists leave applications in PostgreSQL.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create inserts a new application and assigns its identifier.
func (r *LeaveRepository) Create(ctx context.Context, app *models.LeaveApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}
	if app.Version == 0 {
		app.Version = 1
	}
	const query = `INSERT INTO leave_applications
	(id, kind, resident_id, requested_by, status, ustadzah_approval, staff_reviewed_by, staff_reviewed_at, decision_reason,
	 complaint, recovered_at, recovered_by, reason, departure_time, planned_return_time, granted_by_name, granted_by_id,
	 ndalem_approval, supervisor_reviewed_by, supervisor_reviewed_at, has_returned, returned_on_time, actual_return_time,
	 outstanding_balance, version, created_at, updated_at)
	VALUES (:id, :kind, :resident_id, :requested_by, :status, :ustadzah_approval, :staff_reviewed_by, :staff_reviewed_at, :decision_reason,
	 :complaint, :recovered_at, :recovered_by, :reason, :departure_time, :planned_return_time, :granted_by_name, :granted_by_id,
	 :ndalem_approval, :supervisor_reviewed_by, :supervisor_reviewed_at, :has_returned, :returned_on_time, :actual_return_time,
	 :outstanding_balance, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, toLeaveRow(app)); err != nil {
		return fmt.Errorf("create leave application: %w", err)
	}
	return nil
}

// GetByID loads an application; missing rows return sql.ErrNoRows.
func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_applications WHERE id = $1", leaveColumns)
	var row leaveRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel()
}

// Save writes the workflow fields of app only if the stored row is still at
// expectedVersion. On success app.Version is advanced to match the row.
// The outstanding balance is owned by IncrementOutstandingBalance and is not written here.
func (r *LeaveRepository) Save(ctx context.Context, app *models.LeaveApplication, expectedVersion int) error {
	row := toLeaveRow(app)
	row.ExpectedVersion = expectedVersion
	const query = `UPDATE leave_applications SET
	status = :status, ustadzah_approval = :ustadzah_approval, staff_reviewed_by = :staff_reviewed_by,
	staff_reviewed_at = :staff_reviewed_at, decision_reason = :decision_reason,
	recovered_at = :recovered_at, recovered_by = :recovered_by,
	granted_by_name = :granted_by_name, granted_by_id = :granted_by_id, ndalem_approval = :ndalem_approval,
	supervisor_reviewed_by = :supervisor_reviewed_by, supervisor_reviewed_at = :supervisor_reviewed_at,
	has_returned = :has_returned, returned_on_time = :returned_on_time, actual_return_time = :actual_return_time,
	updated_at = :updated_at, version = version + 1
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("save leave application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave application save rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	app.Version = expectedVersion + 1
	return nil
}

// ListByStatus returns applications in any of the given statuses, oldest first.
func (r *LeaveRepository) ListByStatus(ctx context.Context, statuses ...models.LeaveStatus) ([]models.LeaveApplication, error) {
	if len(statuses) == 0 {
		return []models.LeaveApplication{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM leave_applications WHERE status = ANY($1) ORDER BY created_at ASC", leaveColumns)
	var rows []leaveRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(statusStrings(statuses))); err != nil {
		return nil, fmt.Errorf("list leave applications by status: %w", err)
	}
	return toLeaveModels(rows)
}

// ListByDateRange returns home leaves departing and sick leaves filed within [start, end].
func (r *LeaveRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.LeaveApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_applications
	WHERE (kind = 'HOME' AND departure_time BETWEEN $1 AND $2)
	   OR (kind = 'SICK' AND created_at BETWEEN $1 AND $2)
	ORDER BY created_at ASC`, leaveColumns)
	var rows []leaveRow
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("list leave applications by date range: %w", err)
	}
	return toLeaveModels(rows)
}

// List returns one page of applications matching the filter, latest first,
// together with the total number of matching rows.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveApplication, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Status)))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.ResidentID != "" {
		args = append(args, filter.ResidentID)
		conditions = append(conditions, fmt.Sprintf("resident_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	base := "FROM leave_applications"
	if len(conditions) > 0 {
		base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", leaveColumns, base, limit, offset)

	var rows []leaveRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leave applications: %w", err)
	}
	apps, err := toLeaveModels(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count leave applications: %w", err)
	}
	return apps, total, nil
}

// Delete removes the row only while it is still at expectedVersion and in one of allowed.
func (r *LeaveRepository) Delete(ctx context.Context, id string, expectedVersion int, allowed []models.LeaveStatus) error {
	const query = `DELETE FROM leave_applications WHERE id = $1 AND version = $2 AND status = ANY($3)`
	result, err := r.db.ExecContext(ctx, query, id, expectedVersion, pq.Array(statusStrings(allowed)))
	if err != nil {
		return fmt.Errorf("delete leave application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave application delete rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// IncrementOutstandingBalance adds delta to a home leave's outstanding balance.
func (r *LeaveRepository) IncrementOutstandingBalance(ctx context.Context, id string, delta int) error {
	const query = `UPDATE leave_applications SET outstanding_balance = outstanding_balance + $2, updated_at = $3
	WHERE id = $1 AND kind = 'HOME'`
	result, err := r.db.ExecContext(ctx, query, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment outstanding balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check outstanding balance rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func statusStrings(statuses []models.LeaveStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
