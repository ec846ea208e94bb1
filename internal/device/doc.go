// Package device manages the classroom device aggregate: a controller board
// with a MAC address, an array of relay-backed switches, an optional PIR
// motion sensor, and a queue of pending delivery intents.
//
// The device row is the single source of truth for switch state. All
// mutations go through Registry.Mutate, which performs a read-modify-write
// with optimistic concurrency (per-device version column, compare-and-swap
// update, bounded retry). Switch state and any fallback intent are part of
// the same row, so they commit atomically.
//
// Persisted state and hardware state may diverge while a device is offline;
// the queued intents exist so the reconnect handler can converge them.
package device
