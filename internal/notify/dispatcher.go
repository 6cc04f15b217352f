// ABOUTME: Dispatcher fans messages out to operators and the announcement chat
// ABOUTME: Every send is bounded by a timeout; fan-out failures are logged and never abort

package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/handoff-gateway/internal/metrics"
	"github.com/2389/handoff-gateway/internal/store"
)

// DefaultTimeout bounds a single send when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Config holds the dispatcher's recipients.
type Config struct {
	Operators    []string      // chat ids that receive staff alerts
	AnnounceChat string        // optional channel for the redacted alert
	Timeout      time.Duration // per-send bound
}

// Report summarizes a fan-out.
type Report struct {
	Delivered []string
	Failed    map[string]error
}

// OK reports whether every send succeeded.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Dispatcher sends notifications through a Messenger.
type Dispatcher struct {
	messenger Messenger
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(messenger Messenger, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		messenger: messenger,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("component", "notify"),
	}
}

// Operators returns the configured staff recipients.
func (d *Dispatcher) Operators() []string {
	return d.cfg.Operators
}

// NotifyNewDialog sends the staff alert to every operator and the channel
// alert to the announcement chat. Failures never roll anything back; a
// missed alert is recoverable from the pending list.
func (d *Dispatcher) NotifyNewDialog(ctx context.Context, dlg *store.Dialog) Report {
	report := d.Broadcast(ctx, "new_dialog", d.cfg.Operators, StaffAlert(dlg))

	if d.cfg.AnnounceChat != "" {
		if err := d.send(ctx, "announce", d.cfg.AnnounceChat, ChannelAlert(dlg)); err != nil {
			report.Failed[d.cfg.AnnounceChat] = err
		} else {
			report.Delivered = append(report.Delivered, d.cfg.AnnounceChat)
		}
	}

	d.logger.Info("new dialog alert dispatched",
		"dialog_id", dlg.ID,
		"delivered", len(report.Delivered),
		"failed", len(report.Failed))
	return report
}

// Broadcast sends msg to each recipient independently. kind labels the
// failure metric and log lines.
func (d *Dispatcher) Broadcast(ctx context.Context, kind string, recipients []string, msg OutgoingMessage) Report {
	report := Report{Failed: make(map[string]error)}
	seen := make(map[string]bool, len(recipients))
	for _, chatID := range recipients {
		if chatID == "" || seen[chatID] {
			continue
		}
		seen[chatID] = true

		if err := d.send(ctx, kind, chatID, msg); err != nil {
			report.Failed[chatID] = err
			continue
		}
		report.Delivered = append(report.Delivered, chatID)
	}
	return report
}

// Deliver sends one message and returns the failure to the caller, who
// decides how to surface it.
func (d *Dispatcher) Deliver(ctx context.Context, kind, chatID string, msg OutgoingMessage) error {
	return d.send(ctx, kind, chatID, msg)
}

func (d *Dispatcher) send(ctx context.Context, kind, chatID string, msg OutgoingMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	err := d.messenger.Send(sendCtx, chatID, msg)
	if err == nil {
		return nil
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		err = &DeliveryError{ChatID: chatID, Err: err}
	}
	d.metrics.DeliveryFailed(kind)
	d.logger.Warn("delivery failed", "kind", kind, "chat_id", chatID, "error", err)
	return err
}
