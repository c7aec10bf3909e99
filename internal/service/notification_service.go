package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/pkg/jobs"
)

const notificationJobType = "leave.notification"

// Notifier delivers a guardian message through some channel.
type Notifier interface {
	Notify(ctx context.Context, n leave.Notification) error
}

// LogNotifier writes notifications to the log; it is the default channel until a
// messaging gateway is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg leave.Notification) error {
	n.logger.Info("guardian notification",
		zap.String("recipient_id", msg.RecipientID),
		zap.String("application_id", msg.ApplicationID),
		zap.String("body", msg.Body),
	)
	return nil
}

// NotificationService hands guardian messages to a background queue so that
// delivery failures never affect the workflow transition that produced them.
type NotificationService struct {
	queue    *jobs.Queue
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService builds the service and its queue. Call Start before Send.
func NewNotificationService(notifier Notifier, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	svc := &NotificationService{notifier: notifier, metrics: metrics, logger: logger}
	cfg.Logger = logger
	cfg.OnGiveUp = svc.giveUp
	svc.queue = jobs.NewQueue("leave-notifications", svc.deliver, cfg)
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Send enqueues a notification for asynchronous delivery.
func (s *NotificationService) Send(n leave.Notification) error {
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: n}); err != nil {
		s.metrics.RecordNotification(false)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(leave.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return err
	}
	s.metrics.RecordNotification(true)
	return nil
}

func (s *NotificationService) giveUp(job jobs.Job, err error) {
	s.metrics.RecordNotification(false)
	s.logger.Error("guardian notification dropped", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}
