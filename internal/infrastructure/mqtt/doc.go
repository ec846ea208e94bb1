// Package mqtt wraps paho.mqtt.golang for talking to classroom controller
// boards.
//
// Boards subscribe to their own command topic and report connectivity and
// PIR events on their status topic:
//
//	classpower/command/{mac}   switch commands to one board
//	classpower/status/{mac}    online/offline and motion reports from a board
//	classpower/system/status   this service's own presence (retained + LWT)
//
// The Client handles connection management, automatic reconnection with
// re-subscription, and panic recovery around message handlers. The
// CommandPublisher adapts the client to the dispatch layer's transport
// interface; the StatusListener feeds board reconnects and motion events
// into the engine.
package mqtt
