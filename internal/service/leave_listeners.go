package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// LeaveEventListener reacts to a persisted leave transition. Errors are logged
// by the caller and never undo the transition.
type LeaveEventListener interface {
	HandleLeaveEvent(ctx context.Context, ev leave.Event, app models.LeaveApplication) error
}

// LeaveEventListenerFunc adapts a function to LeaveEventListener.
type LeaveEventListenerFunc func(ctx context.Context, ev leave.Event, app models.LeaveApplication) error

// HandleLeaveEvent implements LeaveEventListener.
func (f LeaveEventListenerFunc) HandleLeaveEvent(ctx context.Context, ev leave.Event, app models.LeaveApplication) error {
	return f(ctx, ev, app)
}

type balanceStore interface {
	IncrementOutstandingBalance(ctx context.Context, id string, delta int) error
}

// OutstandingBalanceListener charges penalty units to a home leave returned late.
type OutstandingBalanceListener struct {
	store  balanceStore
	units  int
	logger *zap.Logger
}

// NewOutstandingBalanceListener constructs the listener. Non-positive units disable it.
func NewOutstandingBalanceListener(store balanceStore, units int, logger *zap.Logger) *OutstandingBalanceListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutstandingBalanceListener{store: store, units: units, logger: logger}
}

// HandleLeaveEvent implements LeaveEventListener.
func (l *OutstandingBalanceListener) HandleLeaveEvent(ctx context.Context, ev leave.Event, app models.LeaveApplication) error {
	if ev.Type != leave.EventReturnVerified || ev.ReturnedOnTime == nil || *ev.ReturnedOnTime || l.units <= 0 {
		return nil
	}
	if err := l.store.IncrementOutstandingBalance(ctx, app.ID, l.units); err != nil {
		return fmt.Errorf("charge late return penalty: %w", err)
	}
	l.logger.Info("late return penalty charged", zap.String("application_id", app.ID), zap.Int("units", l.units))
	return nil
}

type notificationSender interface {
	Send(n leave.Notification) error
}

// NotificationListener turns guardian-facing events into queued notifications.
type NotificationListener struct {
	residents residentReader
	sender    notificationSender
}

// NewNotificationListener constructs the listener.
func NewNotificationListener(residents residentReader, sender notificationSender) *NotificationListener {
	return &NotificationListener{residents: residents, sender: sender}
}

// HandleLeaveEvent implements LeaveEventListener.
func (l *NotificationListener) HandleLeaveEvent(ctx context.Context, ev leave.Event, app models.LeaveApplication) error {
	if !ev.Notifiable() {
		return nil
	}
	resident, err := l.residents.GetByID(ctx, app.ResidentID)
	if err != nil {
		return fmt.Errorf("load resident %s: %w", app.ResidentID, err)
	}
	n, ok := leave.BuildNotification(ev, app, *resident)
	if !ok {
		return nil
	}
	return l.sender.Send(n)
}
