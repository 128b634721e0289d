package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loan-advisor/internal/common/config"
	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
	"loan-advisor/internal/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

type fakeEmail struct {
	mu    sync.Mutex
	fails int
	calls int
	sent  []sent
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return "", errors.New("throttled")
	}
	f.sent = append(f.sent, sent{to: to, subject: subject, body: body})
	return "msg-1", nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: phone, body: body})
	return "sms-1", nil
}

// blockingEmail holds every send until its context ends.
type blockingEmail struct {
	started chan struct{}
	err     chan error
}

func (b *blockingEmail) SendEmail(ctx context.Context, _, _, _ string) (string, error) {
	close(b.started)
	<-ctx.Done()
	b.err <- ctx.Err()
	return "", ctx.Err()
}

func testConfig() config.NotificationConfig {
	return config.NotificationConfig{Enabled: true, MaxAttempts: 3, Backoff: 1, QueueSize: 8}
}

func application(status models.Status) *models.LoanApplication {
	app := models.NewLoanApplication("cust-1")
	app.Customer.Name = "John Doe"
	app.Customer.Email = "john@example.com"
	app.Customer.Phone = "+919876543210"
	app.LoanAmount, app.TenureMonths, app.InterestRate = 500000, 24, 11
	app.EMI = finance.EMI(500000, 11, 24)
	app.Status = status
	return app
}

func transition(from, to models.Status, mutate func(*models.LoanApplication)) (*models.LoanApplication, *models.LoanApplication) {
	before := application(from)
	after := before.Clone()
	after.Status = to
	if mutate != nil {
		mutate(after)
	}
	return before, after
}

// ==========================
// Compose
// ==========================

func TestCompose(t *testing.T) {
	tests := []struct {
		name     string
		from, to models.Status
		mutate   func(*models.LoanApplication)
		validate func(t *testing.T, got []models.Notification)
	}{
		{
			name: "approval sends sms",
			from: models.StatusUnderwriting, to: models.StatusApproved,
			validate: func(t *testing.T, got []models.Notification) {
				require.Len(t, got, 1)
				assert.Equal(t, models.ChannelSMS, got[0].Channel)
				assert.Equal(t, "+919876543210", got[0].Recipient)
				assert.Contains(t, got[0].Body, "₹5,00,000")
			},
		},
		{
			name: "completion emails the letter",
			from: models.StatusApproved, to: models.StatusCompleted,
			mutate: func(a *models.LoanApplication) { a.SanctionLetterRef = "s3://letters/x.pdf" },
			validate: func(t *testing.T, got []models.Notification) {
				require.Len(t, got, 1)
				assert.Equal(t, models.ChannelEmail, got[0].Channel)
				assert.Equal(t, models.NotificationApproved, got[0].Type)
				assert.Contains(t, got[0].Body, "Dear John Doe,")
				assert.Contains(t, got[0].Body, "s3://letters/x.pdf")
			},
		},
		{
			name: "completion without prior approval also texts",
			from: models.StatusUnderwriting, to: models.StatusCompleted,
			validate: func(t *testing.T, got []models.Notification) {
				require.Len(t, got, 2)
				assert.Equal(t, models.ChannelEmail, got[0].Channel)
				assert.Equal(t, models.ChannelSMS, got[1].Channel)
			},
		},
		{
			name: "rejection emails the reason",
			from: models.StatusUnderwriting, to: models.StatusRejected,
			mutate: func(a *models.LoanApplication) { a.RejectionReason = "KYC verification failed" },
			validate: func(t *testing.T, got []models.Notification) {
				require.Len(t, got, 1)
				assert.Equal(t, models.NotificationRejected, got[0].Type)
				assert.Contains(t, got[0].Body, "Reason: KYC verification failed")
			},
		},
		{
			name: "no status change",
			from: models.StatusApproved, to: models.StatusApproved,
			validate: func(t *testing.T, got []models.Notification) {
				assert.Empty(t, got)
			},
		},
		{
			name: "no recipient on record",
			from: models.StatusApproved, to: models.StatusCompleted,
			mutate: func(a *models.LoanApplication) { a.Customer.Email = "" },
			validate: func(t *testing.T, got []models.Notification) {
				assert.Empty(t, got)
			},
		},
	}
	n := New(testConfig(), &fakeEmail{}, &fakeSMS{}, logger.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after := transition(tt.from, tt.to, tt.mutate)
			got := n.Compose(before, after)
			for _, msg := range got {
				assert.NotEmpty(t, msg.ID)
				assert.Equal(t, after.ID, msg.ApplicationID)
			}
			tt.validate(t, got)
		})
	}
}

func TestCompose_DisabledChannels(t *testing.T) {
	n := New(testConfig(), nil, nil, nil)
	before, after := transition(models.StatusUnderwriting, models.StatusCompleted, nil)
	assert.Empty(t, n.Compose(before, after))
}

// ==========================
// Delivery
// ==========================

func TestDeliver_RetriesThenSucceeds(t *testing.T) {
	email := &fakeEmail{fails: 2}
	n := New(testConfig(), email, nil, logger.NewTestLogger(t))

	err := n.Deliver(context.Background(), models.Notification{Channel: models.ChannelEmail, Recipient: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, 3, email.calls)
	assert.Len(t, email.sent, 1)
}

func TestDeliver_GivesUp(t *testing.T) {
	email := &fakeEmail{fails: 10}
	n := New(testConfig(), email, nil, logger.NewTestLogger(t))

	err := n.Deliver(context.Background(), models.Notification{Channel: models.ChannelEmail})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationFailed, apperrors.CodeOf(err))
	assert.Equal(t, 3, email.calls)
}

func TestDeliver_StopsOnCancel(t *testing.T) {
	email := &fakeEmail{fails: 10}
	cfg := testConfig()
	cfg.Backoff = int(time.Hour / time.Millisecond)
	n := New(cfg, email, nil, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Deliver(ctx, models.Notification{Channel: models.ChannelEmail})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, email.calls)
}

func TestDeliver_DisabledChannel(t *testing.T) {
	n := New(config.NotificationConfig{MaxAttempts: 1}, nil, nil, logger.NewTestLogger(t))
	err := n.Deliver(context.Background(), models.Notification{Channel: models.ChannelSMS})
	assert.Error(t, err)
}

// ==========================
// Hook
// ==========================

func TestAfterTurn_DeliversInBackground(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{}
	n := New(testConfig(), email, sms, logger.NewTestLogger(t))
	n.Start(context.Background())

	before, after := transition(models.StatusUnderwriting, models.StatusRejected, nil)
	require.NoError(t, n.AfterTurn(context.Background(), orchestrator.TurnEvent{Before: before, After: after}))
	n.Close()

	require.Len(t, email.sent, 1)
	assert.Equal(t, "john@example.com", email.sent[0].to)
	assert.Equal(t, "Update on your loan application", email.sent[0].subject)
	assert.Empty(t, sms.sent)
	assert.Equal(t, "notify", n.Name())
}

func TestAfterTurn_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	n := New(cfg, &fakeEmail{}, &fakeSMS{}, logger.NewTestLogger(t))

	// Not started, so the second message has nowhere to go.
	before, after := transition(models.StatusUnderwriting, models.StatusCompleted, nil)
	err := n.AfterTurn(context.Background(), orchestrator.TurnEvent{Before: before, After: after})
	assert.Error(t, err)
	assert.Len(t, n.queue, 1)
}

func TestClose_DeliversAfterStartContextCancelled(t *testing.T) {
	email := &fakeEmail{}
	n := New(testConfig(), email, nil, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)
	cancel()

	before, after := transition(models.StatusUnderwriting, models.StatusRejected, nil)
	require.NoError(t, n.AfterTurn(context.Background(), orchestrator.TurnEvent{Before: before, After: after}))
	n.Close()

	require.Len(t, email.sent, 1)
	assert.Equal(t, "john@example.com", email.sent[0].to)
}

func TestClose_CancelsDeliveriesAfterDrainTimeout(t *testing.T) {
	email := &blockingEmail{started: make(chan struct{}), err: make(chan error, 1)}
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.DrainTimeout = 20
	n := New(cfg, email, nil, logger.NewTestLogger(t))
	n.Start(context.Background())

	before, after := transition(models.StatusUnderwriting, models.StatusRejected, nil)
	require.NoError(t, n.AfterTurn(context.Background(), orchestrator.TurnEvent{Before: before, After: after}))
	<-email.started

	done := make(chan struct{})
	go func() {
		n.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the drain timeout")
	}
	assert.ErrorIs(t, <-email.err, context.Canceled)
}
