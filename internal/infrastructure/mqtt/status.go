package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/classpower/classpower-core/internal/device"
)

// statusPayload is the JSON a board publishes on its status topic.
type statusPayload struct {
	Status string `json:"status"` // "online" or "offline"
	Motion bool   `json:"motion,omitempty"`
}

// BoardEvents receives decoded board status events. Implemented by the
// engine.
type BoardEvents interface {
	// ReplayIntents drains queued intents for a board that came online.
	ReplayIntents(ctx context.Context, mac string) error

	// RecordMotion logs a PIR motion event for a device.
	RecordMotion(ctx context.Context, deviceID string) error
}

// DeviceResolver maps a board MAC to its registered device.
type DeviceResolver interface {
	GetDeviceByMAC(ctx context.Context, mac string) (*device.Device, error)
}

// StatusListener subscribes to every board's status topic and feeds
// reconnects and motion reports into the engine.
type StatusListener struct {
	client  *Client
	events  BoardEvents
	devices DeviceResolver
	qos     byte
}

// NewStatusListener creates a status listener.
func NewStatusListener(client *Client, events BoardEvents, devices DeviceResolver, qos byte) *StatusListener {
	return &StatusListener{
		client:  client,
		events:  events,
		devices: devices,
		qos:     qos,
	}
}

// Start subscribes to classpower/status/+.
func (l *StatusListener) Start() error {
	return l.client.Subscribe(Topics{}.AllStatus(), l.qos, l.handle)
}

// handle processes one status message. Unknown boards are ignored: a freshly
// flashed controller may report before it is registered.
func (l *StatusListener) handle(topic string, payload []byte) error {
	mac, ok := MACFromStatusTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected status topic %q", topic)
	}

	var status statusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("decoding status from %s: %w", mac, err)
	}

	ctx := context.Background()

	if status.Status == "online" {
		if err := l.events.ReplayIntents(ctx, mac); err != nil {
			return fmt.Errorf("replaying intents for %s: %w", mac, err)
		}
	}

	if status.Motion {
		dev, err := l.devices.GetDeviceByMAC(ctx, mac)
		if err != nil {
			// Not registered yet; nothing to attribute the motion to.
			return nil
		}
		if err := l.events.RecordMotion(ctx, dev.ID); err != nil {
			return fmt.Errorf("recording motion for %s: %w", dev.ID, err)
		}
	}

	return nil
}
