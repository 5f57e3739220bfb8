// Package sqlite is the SQLite implementation of the connection, OAuth state
// and content stores.
//
// It uses modernc.org/sqlite, a pure Go SQLite implementation that needs no
// CGO. All three stores share one database file opened in WAL mode.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory and applied on open. Applied versions are recorded
// in schema_migrations.
//
// # Timestamps
//
// Times are stored as fixed-width UTC text so that range queries compare
// lexically in the same order as chronologically.
package sqlite
