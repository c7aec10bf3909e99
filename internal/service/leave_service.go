package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/izin-asrama-api/internal/dto"
	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	"github.com/noah-isme/izin-asrama-api/internal/repository"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
	"github.com/noah-isme/izin-asrama-api/pkg/telemetry"
)

type leaveStore interface {
	Create(ctx context.Context, app *models.LeaveApplication) error
	GetByID(ctx context.Context, id string) (*models.LeaveApplication, error)
	Save(ctx context.Context, app *models.LeaveApplication, expectedVersion int) error
	ListByStatus(ctx context.Context, statuses ...models.LeaveStatus) ([]models.LeaveApplication, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveApplication, int, error)
	Delete(ctx context.Context, id string, expectedVersion int, allowed []models.LeaveStatus) error
}

type residentReader interface {
	GetByID(ctx context.Context, id string) (*models.Resident, error)
	List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// reportCachePattern matches every cached leave report.
const reportCachePattern = "leave:report:*"

type transitionFunc func(models.LeaveApplication) (models.LeaveApplication, leave.Event, error)

// LeaveService runs leave workflow operations: it checks authority, loads the
// record, applies the pure engine and persists the result conditionally on
// the version it read.
type LeaveService struct {
	store     leaveStore
	residents residentReader
	audit     auditLogger
	resolver  *leave.Resolver
	listeners []LeaveEventListener
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

// LeaveServiceOption configures the service.
type LeaveServiceOption func(*LeaveService)

// WithLeaveEventListeners subscribes listeners to successful transitions.
func WithLeaveEventListeners(listeners ...LeaveEventListener) LeaveServiceOption {
	return func(s *LeaveService) {
		for _, l := range listeners {
			if l != nil {
				s.listeners = append(s.listeners, l)
			}
		}
	}
}

// WithLeaveCache sets the cache whose report entries are dropped after each change.
func WithLeaveCache(cache *CacheService) LeaveServiceOption {
	return func(s *LeaveService) {
		s.cache = cache
	}
}

// WithLeaveMetrics records transition outcomes.
func WithLeaveMetrics(metrics *MetricsService) LeaveServiceOption {
	return func(s *LeaveService) {
		s.metrics = metrics
	}
}

// WithLeaveValidator overrides the payload validator.
func WithLeaveValidator(v *validator.Validate) LeaveServiceOption {
	return func(s *LeaveService) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithLeaveClock overrides the time source.
func WithLeaveClock(now func() time.Time) LeaveServiceOption {
	return func(s *LeaveService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLeaveService constructs the service with defaults.
func NewLeaveService(store leaveStore, residents residentReader, audit auditLogger, resolver *leave.Resolver, logger *zap.Logger, opts ...LeaveServiceOption) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LeaveService{
		store:     store,
		residents: residents,
		audit:     audit,
		resolver:  resolver,
		validator: validator.New(),
		tracer:    telemetry.Tracer(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit files a new application on behalf of one of the guardian's residents.
func (s *LeaveService) Submit(ctx context.Context, req dto.SubmitLeaveRequest, actor models.Actor) (result *models.LeaveApplication, err error) {
	ctx, span := s.startSpan(ctx, "submit", "", actor)
	defer func() { s.finish(span, "submit", err) }()

	if err := s.authorize(actor, leave.OpSubmit); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave application payload")
	}
	resident, err := s.residents.GetByID(ctx, req.ResidentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load resident")
	}
	if resident.GuardianID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "resident is not under your guardianship")
	}

	sub := leave.Submission{
		ResidentID:  req.ResidentID,
		RequestedBy: actor.UserID,
		Kind:        req.Kind,
		Complaint:   req.Complaint,
		Reason:      req.Reason,
		At:          s.now(),
	}
	if req.DepartureTime != nil {
		sub.DepartureTime = *req.DepartureTime
	}
	if req.PlannedReturnTime != nil {
		sub.PlannedReturnTime = *req.PlannedReturnTime
	}
	app, ev, err := leave.NewApplication(sub)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.store.Create(ctx, &app)
	s.metrics.ObserveDBQuery("leave_create", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create leave application")
	}
	ev.ApplicationID = app.ID

	s.afterChange(ctx, ev, app, nil, models.AuditActionLeaveSubmit)
	return &app, nil
}

// Get returns one application. Guardians only see their own submissions.
func (s *LeaveService) Get(ctx context.Context, id string, actor models.Actor) (*models.LeaveApplication, error) {
	if err := s.authorize(actor, leave.OpView); err != nil {
		return nil, err
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.guardianScoped(actor) && app.RequestedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return app, nil
}

// List returns applications visible to the actor with pagination metadata.
func (s *LeaveService) List(ctx context.Context, query dto.LeaveQuery, actor models.Actor) ([]models.LeaveApplication, *models.Pagination, error) {
	if err := s.authorize(actor, leave.OpView); err != nil {
		return nil, nil, err
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %s", status))
		}
	}
	filter := models.LeaveFilter{
		Status:     query.Status,
		Kind:       query.Kind,
		ResidentID: query.ResidentID,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if s.guardianScoped(actor) {
		filter.RequestedBy = actor.UserID
	}

	start := time.Now()
	apps, total, err := s.store.List(ctx, filter)
	s.metrics.ObserveDBQuery("leave_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list leave applications")
	}
	return apps, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListOverdue returns home leaves still open past their planned return time.
func (s *LeaveService) ListOverdue(ctx context.Context, actor models.Actor) ([]models.LeaveApplication, error) {
	if err := s.authorize(actor, leave.OpReport); err != nil {
		return nil, err
	}
	start := time.Now()
	active, err := s.store.ListByStatus(ctx, models.LeaveStatusOnLeave)
	s.metrics.ObserveDBQuery("leave_list_by_status", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list active leave applications")
	}
	now := s.now()
	overdue := make([]models.LeaveApplication, 0, len(active))
	for _, app := range active {
		if leave.IsOverdue(app, now) {
			overdue = append(overdue, app)
		}
	}
	return overdue, nil
}

// ApproveStaff records the ustadzah decision.
func (s *LeaveService) ApproveStaff(ctx context.Context, id string, req dto.ReviewLeaveRequest, actor models.Actor) (*models.LeaveApplication, error) {
	if err := s.validateReview(req); err != nil {
		return nil, err
	}
	decision := leave.Decision{Approved: *req.Approved, Reason: req.Reason, Actor: actor, At: s.now()}
	return s.transition(ctx, "approve_staff", leave.OpApproveStaff, models.AuditActionLeaveStaffReview, id, actor,
		func(app models.LeaveApplication) (models.LeaveApplication, leave.Event, error) {
			return leave.ApproveStaff(app, decision)
		})
}

// ApproveSupervisor records the ndalem decision on a home leave.
func (s *LeaveService) ApproveSupervisor(ctx context.Context, id string, req dto.ReviewLeaveRequest, actor models.Actor) (*models.LeaveApplication, error) {
	if err := s.validateReview(req); err != nil {
		return nil, err
	}
	decision := leave.Decision{Approved: *req.Approved, Reason: req.Reason, Actor: actor, At: s.now()}
	return s.transition(ctx, "approve_supervisor", leave.OpApproveSupervisor, models.AuditActionLeaveSupervisorReview, id, actor,
		func(app models.LeaveApplication) (models.LeaveApplication, leave.Event, error) {
			return leave.ApproveSupervisor(app, decision)
		})
}

// VerifyReturn closes a home leave; a missing time means the resident is back now.
func (s *LeaveService) VerifyReturn(ctx context.Context, id string, req dto.VerifyReturnRequest, actor models.Actor) (*models.LeaveApplication, error) {
	actual := s.now()
	if req.ActualReturnTime != nil {
		actual = *req.ActualReturnTime
	}
	return s.transition(ctx, "verify_return", leave.OpVerifyReturn, models.AuditActionLeaveReturnVerified, id, actor,
		func(app models.LeaveApplication) (models.LeaveApplication, leave.Event, error) {
			return leave.VerifyReturn(app, actor, actual)
		})
}

// VerifyRecovery closes a sick leave.
func (s *LeaveService) VerifyRecovery(ctx context.Context, id string, req dto.VerifyRecoveryRequest, actor models.Actor) (*models.LeaveApplication, error) {
	at := s.now()
	if req.RecoveredAt != nil {
		at = *req.RecoveredAt
	}
	return s.transition(ctx, "verify_recovery", leave.OpVerifyRecovery, models.AuditActionLeaveRecoveryVerified, id, actor,
		func(app models.LeaveApplication) (models.LeaveApplication, leave.Event, error) {
			return leave.VerifyRecovery(app, actor, at)
		})
}

// Withdraw deletes an application that is still awaiting its first review.
func (s *LeaveService) Withdraw(ctx context.Context, id string, actor models.Actor) (err error) {
	ctx, span := s.startSpan(ctx, "withdraw", id, actor)
	defer func() { s.finish(span, "withdraw", err) }()

	if err := s.authorize(actor, leave.OpWithdraw); err != nil {
		if errors.Is(err, appErrors.ErrForbidden) {
			return appErrors.Clone(appErrors.ErrNotWithdrawable, "only the requester may withdraw a leave application")
		}
		return err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	ev, err := leave.Withdraw(*current, actor)
	if err != nil {
		return err
	}

	allowed := []models.LeaveStatus{models.InitialLeaveStatus(current.Kind())}
	start := time.Now()
	err = s.store.Delete(ctx, current.ID, current.Version, allowed)
	s.metrics.ObserveDBQuery("leave_delete", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return appErrors.Clone(appErrors.ErrNotWithdrawable, "leave application changed before it could be withdrawn")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to withdraw leave application")
	}

	s.afterChange(ctx, ev, *current, current, models.AuditActionLeaveWithdraw)
	return nil
}

func (s *LeaveService) transition(ctx context.Context, operation string, op leave.Operation, action, id string, actor models.Actor, apply transitionFunc) (result *models.LeaveApplication, err error) {
	ctx, span := s.startSpan(ctx, operation, id, actor)
	defer func() { s.finish(span, operation, err) }()

	if err := s.authorize(actor, op); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.resolver.CanPerform(actor.Role, op, current) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("operation does not apply to %s leave", current.Kind()))
	}

	next, ev, err := apply(*current)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.store.Save(ctx, &next, current.Version)
	s.metrics.ObserveDBQuery("leave_save", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, s.explainConflict(ctx, id, apply)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to save leave application")
	}

	s.afterChange(ctx, ev, next, current, action)
	return &next, nil
}

// explainConflict re-reads a record that changed underneath a save. When the
// fresh state no longer admits the operation the engine's own error is
// returned; otherwise the caller gets a plain CONFLICT. Nothing is written.
func (s *LeaveService) explainConflict(ctx context.Context, id string, apply transitionFunc) error {
	conflict := appErrors.Clone(appErrors.ErrConflict, "leave application was modified concurrently")
	fresh, err := s.store.GetByID(ctx, id)
	if err != nil {
		return conflict
	}
	if _, _, err := apply(*fresh); err != nil {
		return err
	}
	return conflict
}

func (s *LeaveService) afterChange(ctx context.Context, ev leave.Event, app models.LeaveApplication, before *models.LeaveApplication, action string) {
	s.emitAudit(ctx, action, app, before, ev.Actor)
	if err := s.cache.Invalidate(ctx, reportCachePattern); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
	for _, listener := range s.listeners {
		if err := listener.HandleLeaveEvent(ctx, ev, app); err != nil {
			s.logger.Warn("leave event listener failed",
				zap.String("event", string(ev.Type)),
				zap.String("application_id", ev.ApplicationID),
				zap.Error(err))
		}
	}
}

func (s *LeaveService) emitAudit(ctx context.Context, action string, app models.LeaveApplication, before *models.LeaveApplication, actor models.Actor) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	appID := app.ID
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "leave_application",
		ResourceID: &appID,
		IPAddress:  "system",
		UserAgent:  "leave-service",
	}
	if payload, err := json.Marshal(app); err == nil {
		entry.NewValues = payload
	}
	if before != nil {
		if payload, err := json.Marshal(before); err == nil {
			entry.OldValues = payload
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *LeaveService) authorize(actor models.Actor, op leave.Operation) error {
	if actor.UserID == "" || actor.Role == "" {
		return appErrors.ErrUnauthorized
	}
	if !s.resolver.CanPerform(actor.Role, op, nil) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not perform %s", actor.Role, op))
	}
	return nil
}

// guardianScoped reports whether the actor only sees their own submissions.
func (s *LeaveService) guardianScoped(actor models.Actor) bool {
	return !s.resolver.CanPerform(actor.Role, leave.OpApproveStaff, nil)
}

func (s *LeaveService) load(ctx context.Context, id string) (*models.LeaveApplication, error) {
	start := time.Now()
	app, err := s.store.GetByID(ctx, id)
	s.metrics.ObserveDBQuery("leave_get", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
		}
		if errors.Is(err, repository.ErrCorruptRow) {
			return nil, appErrors.Wrap(err, appErrors.ErrCorruptRecord.Code, appErrors.ErrCorruptRecord.Status, appErrors.ErrCorruptRecord.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load leave application")
	}
	return app, nil
}

func (s *LeaveService) validateReview(req dto.ReviewLeaveRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	return nil
}

func (s *LeaveService) startSpan(ctx context.Context, operation, id string, actor models.Actor) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "leave."+operation, trace.WithAttributes(
		attribute.String("leave.id", id),
		attribute.String("actor.id", actor.UserID),
		attribute.String("actor.role", string(actor.Role)),
	))
}

func (s *LeaveService) finish(span trace.Span, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.RecordTransition(operation, outcome)
	span.End()
}
