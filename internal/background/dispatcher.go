package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
)

// AlertSender delivers a ban alert over the configured channel
type AlertSender interface {
	SendBanAlert(ctx context.Context, alert abuse.BanAlert) error
}

// AlertDispatcher queues ban alerts for background delivery with its own
// error boundary. Replaces fire-and-forget sends: the ban path never waits on
// the alert channel, and a failing sender cannot take the login flow down
// with it.
type AlertDispatcher struct {
	queue  chan abuse.BanAlert
	sender AlertSender
	logger *slog.Logger
}

// NewAlertDispatcher creates a dispatcher with a bounded queue
func NewAlertDispatcher(sender AlertSender, queueSize int, logger *slog.Logger) *AlertDispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &AlertDispatcher{
		queue:  make(chan abuse.BanAlert, queueSize),
		sender: sender,
		logger: logger,
	}
}

// Dispatch submits an alert without blocking. A full queue drops the alert
// and logs it; alerting is best-effort by contract.
func (d *AlertDispatcher) Dispatch(alert abuse.BanAlert) {
	select {
	case d.queue <- alert:
	default:
		d.logger.Warn("alert queue full, dropping ban alert",
			slog.String("ip", alert.IP),
			slog.Int("offense_count", alert.OffenseCount))
	}
}

// Start runs the delivery loop until the context is cancelled
func (d *AlertDispatcher) Start(ctx context.Context) {
	for {
		select {
		case alert := <-d.queue:
			d.deliver(ctx, alert)
		case <-ctx.Done():
			d.logger.Info("alert dispatcher stopped")
			return
		}
	}
}

func (d *AlertDispatcher) deliver(ctx context.Context, alert abuse.BanAlert) {
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.sender.SendBanAlert(sendCtx, alert); err != nil {
		d.logger.Error("failed to deliver ban alert",
			slog.String("ip", alert.IP),
			slog.Int("offense_count", alert.OffenseCount),
			slog.Any("error", err))
		return
	}

	d.logger.Info("ban alert delivered",
		slog.String("ip", alert.IP),
		slog.Int("offense_count", alert.OffenseCount))
}
