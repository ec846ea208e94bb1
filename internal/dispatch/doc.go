// Package dispatch delivers switch commands to classroom controller boards.
//
// The Sequencer stamps every command with a per-board monotonic sequence
// number so firmware can discard stale or replayed commands. The Dispatcher
// wraps the transport and reduces every outcome to a Result: commands either
// reach the broker or they don't, and the caller decides what to do about a
// miss (typically queue a delivery intent on the device).
//
// Dispatch never returns an error and never panics outward. Offline boards
// and broker outages are normal operating conditions here, not failures.
package dispatch
