// Package database provides the SQLite persistence layer for ClassPower Core.
//
// It wraps database/sql with WAL-mode configuration, health checks, and an
// embedded-migration runner. Repositories in the domain packages receive the
// underlying *sql.DB and own their table-specific queries.
package database
