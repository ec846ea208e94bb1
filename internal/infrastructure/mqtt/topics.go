package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base for all classpower topics.
const TopicPrefix = "classpower"

// Topics provides builders for classpower MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	cmd := topics.Command("a4:cf:12:34:56:78")
//	// Returns: "classpower/command/a4:cf:12:34:56:78"
type Topics struct{}

// Command returns the command topic for one board. The MAC is lowercased so
// publisher and firmware agree on the topic regardless of registration case.
func (Topics) Command(mac string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, strings.ToLower(mac))
}

// Status returns the status topic for one board.
func (Topics) Status(mac string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, strings.ToLower(mac))
}

// AllStatus returns a pattern matching every board's status topic.
//
// Pattern: classpower/status/+
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/status/+", TopicPrefix)
}

// SystemStatus returns this service's presence topic.
//
// Example: classpower/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// MACFromStatusTopic extracts the board MAC from a status topic.
// Returns false for topics outside the status hierarchy.
func MACFromStatusTopic(topic string) (string, bool) {
	prefix := TopicPrefix + "/status/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	mac := strings.TrimPrefix(topic, prefix)
	if mac == "" || strings.Contains(mac, "/") {
		return "", false
	}
	return mac, true
}
