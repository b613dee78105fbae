package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/mailer"
)

const (
	notificationJobType = "timetable.generated"
	notificationSubject = "New Timetable Generated"
	notificationBody    = "Hello,\n\nThe new timetable has been updated successfully please check it.\n\nRegards,\nTimetable System"
)

// TimetableNotice is the payload announcing a generated timetable.
type TimetableNotice struct {
	RunID      string
	Recipients []string
	Filename   string
	Attachment []byte
}

type mailSender interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

// NotificationService dispatches timetable notices onto the notification queue.
type NotificationService struct {
	queue   jobDispatcher
	mailer  mailSender
	metrics *MetricsService
	logger  *zap.Logger
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(queue jobDispatcher, mail mailSender, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, mailer: mail, metrics: metrics, logger: logger}
}

// NotifyGenerated enqueues a notice. Nothing is queued when mail is disabled
// or no faculty member has an address.
func (s *NotificationService) NotifyGenerated(ctx context.Context, notice TimetableNotice) error {
	if s.mailer == nil || !s.mailer.Enabled() {
		s.logger.Debug("mail disabled, skipping timetable notification", zap.String("run_id", notice.RunID))
		s.metrics.RecordNotification("skipped")
		return nil
	}
	if len(notice.Recipients) == 0 {
		s.logger.Info("no faculty email addresses, skipping timetable notification", zap.String("run_id", notice.RunID))
		s.metrics.RecordNotification("skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.queue.Enqueue(jobs.Job{ID: notice.RunID, Type: notificationJobType, Payload: notice}); err != nil {
		s.metrics.RecordNotification("enqueue_failed")
		return fmt.Errorf("enqueue timetable notification: %w", err)
	}
	return nil
}

// NotificationWorker delivers queued notices by mail.
type NotificationWorker struct {
	mailer  mailSender
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(mail mailSender, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{mailer: mail, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(TimetableNotice)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	msg := mailer.Message{
		To:      notice.Recipients,
		Subject: notificationSubject,
		Body:    notificationBody,
	}
	if len(notice.Attachment) > 0 {
		msg.Attachments = []mailer.Attachment{{Filename: notice.Filename, Content: notice.Attachment}}
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrDisabled) {
			w.metrics.RecordNotification("skipped")
			return nil
		}
		w.metrics.RecordNotification("failed")
		return err
	}
	w.metrics.RecordNotification("sent")
	w.logger.Info("timetable notification sent", zap.String("run_id", notice.RunID), zap.Int("recipients", len(notice.Recipients)))
	return nil
}

// DeadLetter logs notices that exhausted their retries.
func (w *NotificationWorker) DeadLetter(job jobs.Job, err error) {
	w.metrics.RecordNotification("dropped")
	w.logger.Error("timetable notification dropped", zap.String("run_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
}
