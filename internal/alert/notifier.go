package alert

import (
	"context"
	"fmt"
)

// Broadcaster pushes events to connected dashboard clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging interface used by the Notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChannelAlertRaised is the websocket channel alerts are pushed on.
const ChannelAlertRaised = "alert.raised"

// Notifier is the production Sink: it persists the alert, then pushes it to
// the dashboard. The push is best-effort; persistence is what matters.
type Notifier struct {
	repo   Repository
	hub    Broadcaster
	logger Logger
}

// NewNotifier creates a Notifier. hub may be nil (alerts are then only
// persisted).
func NewNotifier(repo Repository, hub Broadcaster) *Notifier {
	return &Notifier{repo: repo, hub: hub, logger: noopLogger{}}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// Raise persists the alert and broadcasts it.
func (n *Notifier) Raise(ctx context.Context, a *Alert) error {
	if err := n.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("persisting alert: %w", err)
	}

	n.logger.Warn("alert raised",
		"alert_id", a.ID,
		"type", a.Type,
		"severity", a.Severity,
		"message", a.Message,
	)

	if n.hub != nil {
		n.hub.Broadcast(ChannelAlertRaised, a)
	}
	return nil
}
