// internal/notify/notify.go

// Package notify tells customers about loan decisions by email and SMS.
// Delivery runs on a background queue so a slow provider never holds up
// a conversation turn.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loan-advisor/internal/common/config"
	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/common/metrics"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
	"loan-advisor/internal/orchestrator"

	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 2 * time.Second
	defaultQueueSize   = 256
	defaultDrain       = 10 * time.Second
)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender is satisfied by *aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) (string, error)
}

// Notifier is an orchestrator hook. Either sender may be nil, which turns
// that channel off.
type Notifier struct {
	email       EmailSender
	sms         SMSSender
	maxAttempts int
	backoff     time.Duration
	drain       time.Duration
	logger      logger.Logger
	now         func() time.Time

	queue     chan models.Notification
	wg        sync.WaitGroup
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func New(cfg config.NotificationConfig, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	n := &Notifier{
		email:       email,
		sms:         sms,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.BackoffDuration(),
		drain:       cfg.DrainTimeoutDuration(),
		logger:      log.WithFields(map[string]interface{}{"component": "notify"}),
		now:         time.Now,
	}
	if n.maxAttempts <= 0 {
		n.maxAttempts = defaultMaxAttempts
	}
	if n.backoff <= 0 {
		n.backoff = defaultBackoff
	}
	if n.drain <= 0 {
		n.drain = defaultDrain
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	n.queue = make(chan models.Notification, size)
	return n
}

// Start launches the delivery loop. Deliveries outlive ctx so that a
// shutdown signal does not fail the messages Close is still draining.
func (n *Notifier) Start(ctx context.Context) {
	deliverCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		for msg := range n.queue {
			if err := n.Deliver(deliverCtx, msg); err != nil {
				n.logger.Error("Notification dropped after retries", map[string]interface{}{
					"applicationId": msg.ApplicationID,
					"channel":       string(msg.Channel),
					"type":          string(msg.Type),
					"error":         err.Error(),
				})
			}
		}
	}()
}

// Close stops accepting notifications and waits for queued ones to finish.
// Deliveries still running after the drain timeout are cancelled.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.queue) })

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(n.drain)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		n.logger.Warn("Notification drain timed out, cancelling deliveries", map[string]interface{}{
			"pending": len(n.queue),
		})
		if n.cancel != nil {
			n.cancel()
		}
		<-done
	}
}

func (n *Notifier) Name() string { return "notify" }

// AfterTurn queues the messages a committed turn calls for. A full queue
// drops the message rather than blocking the turn.
func (n *Notifier) AfterTurn(_ context.Context, event orchestrator.TurnEvent) error {
	var dropped int
	for _, msg := range n.Compose(event.Before, event.After) {
		select {
		case n.queue <- msg:
		default:
			dropped++
			metrics.NotificationsSent.WithLabelValues(string(msg.Channel), "dropped").Inc()
		}
	}
	if dropped > 0 {
		return fmt.Errorf("notification queue full, dropped %d message(s)", dropped)
	}
	return nil
}

// Compose returns the notifications owed for a transition from before to
// after. Channels without a sender or a recipient are skipped.
func (n *Notifier) Compose(before, after *models.LoanApplication) []models.Notification {
	if after == nil {
		return nil
	}
	var from models.Status
	if before != nil {
		from = before.Status
	}
	if from == after.Status {
		return nil
	}

	var out []models.Notification
	c := after.Customer
	switch after.Status {
	case models.StatusApproved:
		if n.sms != nil && c.Phone != "" {
			out = append(out, n.notification(after, models.NotificationApproved, models.ChannelSMS, c.Phone, "", approvalSMS(after)))
		}
	case models.StatusCompleted:
		if n.email != nil && c.Email != "" {
			out = append(out, n.notification(after, models.NotificationApproved, models.ChannelEmail, c.Email,
				"Your loan has been sanctioned", approvalEmail(after)))
		}
		if from != models.StatusApproved && n.sms != nil && c.Phone != "" {
			out = append(out, n.notification(after, models.NotificationApproved, models.ChannelSMS, c.Phone, "", approvalSMS(after)))
		}
	case models.StatusRejected:
		if n.email != nil && c.Email != "" {
			out = append(out, n.notification(after, models.NotificationRejected, models.ChannelEmail, c.Email,
				"Update on your loan application", rejectionEmail(after)))
		}
	}
	return out
}

// Deliver sends one notification, retrying with a fixed backoff.
func (n *Notifier) Deliver(ctx context.Context, msg models.Notification) error {
	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		var id string
		id, err = n.send(ctx, msg)
		if err == nil {
			metrics.NotificationsSent.WithLabelValues(string(msg.Channel), "sent").Inc()
			n.logger.Info("Notification sent", map[string]interface{}{
				"applicationId": msg.ApplicationID,
				"channel":       string(msg.Channel),
				"messageId":     id,
				"attempt":       attempt,
			})
			return nil
		}
		n.logger.Warn("Notification attempt failed", map[string]interface{}{
			"applicationId": msg.ApplicationID,
			"channel":       string(msg.Channel),
			"attempt":       attempt,
			"error":         err.Error(),
		})
		if attempt == n.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.NotificationsSent.WithLabelValues(string(msg.Channel), "failed").Inc()
			return apperrors.NewNotificationFailedError(string(msg.Channel), ctx.Err())
		case <-time.After(n.backoff):
		}
	}
	metrics.NotificationsSent.WithLabelValues(string(msg.Channel), "failed").Inc()
	return apperrors.NewNotificationFailedError(string(msg.Channel), err)
}

func (n *Notifier) send(ctx context.Context, msg models.Notification) (string, error) {
	switch msg.Channel {
	case models.ChannelEmail:
		if n.email == nil {
			return "", fmt.Errorf("email channel disabled")
		}
		return n.email.SendEmail(ctx, msg.Recipient, msg.Subject, msg.Body)
	case models.ChannelSMS:
		if n.sms == nil {
			return "", fmt.Errorf("sms channel disabled")
		}
		return n.sms.SendSMS(ctx, msg.Recipient, msg.Body)
	default:
		return "", fmt.Errorf("unknown channel %q", msg.Channel)
	}
}

func (n *Notifier) notification(app *models.LoanApplication, typ models.NotificationType, ch models.Channel, to, subject, body string) models.Notification {
	return models.Notification{
		ID:            uuid.New().String(),
		ApplicationID: app.ID,
		Type:          typ,
		Channel:       ch,
		Recipient:     to,
		Subject:       subject,
		Body:          body,
		CreatedAt:     n.now().UTC(),
	}
}

func greeting(app *models.LoanApplication) string {
	if app.Customer.Name == "" {
		return "Dear Customer,"
	}
	return "Dear " + app.Customer.Name + ","
}

func approvalEmail(app *models.LoanApplication) string {
	body := fmt.Sprintf("%s\n\nYour personal loan of %s for %d months at %s%% per annum has been sanctioned. Your monthly EMI is %s.\n",
		greeting(app), finance.FormatINR(app.LoanAmount), app.TenureMonths,
		finance.FormatPercent(app.InterestRate), finance.FormatINR(app.EMI))
	if app.SanctionLetterRef != "" {
		body += "\nYour sanction letter: " + app.SanctionLetterRef + "\n"
	}
	return body + "\nApplication ID: " + app.ID + "\n"
}

func rejectionEmail(app *models.LoanApplication) string {
	reason := app.RejectionReason
	if reason == "" {
		reason = "Eligibility criteria not met"
	}
	return fmt.Sprintf("%s\n\nWe are unable to approve your loan application at this time.\n\nReason: %s\n\nApplication ID: %s\n",
		greeting(app), reason, app.ID)
}

func approvalSMS(app *models.LoanApplication) string {
	return fmt.Sprintf("Your loan of %s is approved. EMI %s for %d months. Ref %s",
		finance.FormatINR(app.LoanAmount), finance.FormatINR(app.EMI), app.TenureMonths, app.ID)
}
