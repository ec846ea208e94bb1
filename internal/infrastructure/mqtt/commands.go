package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// commandPayload is the JSON sent to a board's command topic. Firmware uses
// seq to discard stale or replayed commands within a controller session.
type commandPayload struct {
	GPIO      int    `json:"gpio"`
	State     bool   `json:"state"`
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
}

// CommandPublisher adapts the MQTT client to the dispatch layer's transport
// interface.
type CommandPublisher struct {
	client *Client
	qos    byte
}

// NewCommandPublisher creates a command publisher using the given QoS for
// commands.
func NewCommandPublisher(client *Client, qos byte) *CommandPublisher {
	return &CommandPublisher{client: client, qos: qos}
}

// PublishCommand sends one gpio state command to the board with the given MAC.
func (p *CommandPublisher) PublishCommand(mac string, gpio int, state bool, seq uint64) error {
	payload, err := json.Marshal(commandPayload{
		GPIO:      gpio,
		State:     state,
		Seq:       seq,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	// Commands are never retained: a board that reconnects must not replay
	// old commands from the broker; the intent queue covers missed state.
	return p.client.Publish(Topics{}.Command(mac), payload, p.qos, false)
}

// IsConnected reports whether the transport can currently deliver.
func (p *CommandPublisher) IsConnected() bool {
	return p.client.IsConnected()
}
