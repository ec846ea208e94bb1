// Package alert records and broadcasts security alerts: motion overrides
// that vetoed a scheduled off-action, and auto-off timeouts on protected
// switches that were flagged instead of forced off.
package alert

import (
	"context"
	"time"
)

// Alert types.
const (
	TypeMotionOverride = "motion_override"
	TypeTimeout        = "timeout"
)

// Severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert is a persisted security alert.
type Alert struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink receives alerts as they are raised. The engine talks to this
// interface; the production implementation persists the alert and pushes it
// to connected dashboard clients.
type Sink interface {
	Raise(ctx context.Context, a *Alert) error
}
