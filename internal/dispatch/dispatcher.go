package dispatch

import (
	"fmt"
)

// Reasons a command did not reach the broker. Callers branch on these to
// decide whether to queue a delivery intent.
const (
	ReasonNoDeviceMAC          = "no_device_mac"
	ReasonTransportUnavailable = "transport_unavailable"
	reasonExceptionPrefix      = "exception_"
)

// Publisher abstracts the command transport (MQTT in production).
type Publisher interface {
	// PublishCommand sends a gpio state command to the board with the given
	// MAC. Implementations may block briefly waiting on broker ack.
	PublishCommand(mac string, gpio int, state bool, seq uint64) error

	// IsConnected reports whether the transport can currently deliver.
	IsConnected() bool
}

// Result describes one dispatch attempt.
type Result struct {
	// Sent is true when the command was handed to the broker.
	Sent bool

	// Seq is the sequence number stamped on the command (0 when no command
	// was built, i.e. the device has no MAC).
	Seq uint64

	// Reason explains a miss; empty when Sent.
	Reason string
}

// Logger is the logging interface used by the Dispatcher.
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

// Dispatcher sends switch commands to boards. It never returns an error:
// every outcome, including a panicking transport, is reduced to a Result so
// schedule execution can keep walking its switch list.
type Dispatcher struct {
	publisher Publisher
	sequencer *Sequencer
	logger    Logger
}

// NewDispatcher creates a dispatcher over the given transport.
func NewDispatcher(publisher Publisher, sequencer *Sequencer) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		sequencer: sequencer,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Dispatch sends a state command for one gpio to the board with the given
// MAC. A board without a MAC, a disconnected transport, and a transport
// error or panic all yield Sent=false with a reason; the sequence number is
// only consumed when a command is actually attempted.
func (d *Dispatcher) Dispatch(mac string, gpio int, state bool) (result Result) {
	if mac == "" {
		return Result{Reason: ReasonNoDeviceMAC}
	}
	if d.publisher == nil || !d.publisher.IsConnected() {
		return Result{Reason: ReasonTransportUnavailable}
	}

	seq := d.sequencer.Next(mac)
	result.Seq = seq

	// The transport is third-party code talking to a network; a panic there
	// must not take down the scheduler loop.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("transport panic during dispatch",
				"mac", mac,
				"gpio", gpio,
				"panic", fmt.Sprintf("%v", r),
			)
			result.Sent = false
			result.Reason = reasonExceptionPrefix + fmt.Sprintf("%v", r)
		}
	}()

	if err := d.publisher.PublishCommand(mac, gpio, state, seq); err != nil {
		d.logger.Warn("command publish failed",
			"mac", mac,
			"gpio", gpio,
			"seq", seq,
			"error", err,
		)
		return Result{Seq: seq, Reason: reasonExceptionPrefix + err.Error()}
	}

	d.logger.Debug("command dispatched",
		"mac", mac,
		"gpio", gpio,
		"state", state,
		"seq", seq,
	)
	return Result{Sent: true, Seq: seq}
}
