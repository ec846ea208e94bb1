// Package logging provides structured logging for ClassPower Core.
//
// It wraps log/slog with service-wide default fields and config-driven
// level/format selection. Domain packages do not import this package
// directly; they declare a minimal Logger interface and receive *Logger
// (or a test double) by injection.
package logging
