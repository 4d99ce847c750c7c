// Package sqlstore provides a unified relational implementation of the
// driven store interfaces over database/sql.
//
// Two dialects share one schema and one set of queries:
//
//   - sqlite: modernc.org/sqlite, a pure Go driver. Suited to a single host.
//   - postgres: jackc/pgx via its database/sql driver. Required when several
//     replicas share the ingestion lease.
//
// Stores exposed through a single connection:
//
//   - DocumentStore, PageStore: Content store rows
//   - OCRResultStore, EntityStore, IndexStore: Derived data
//   - IngestionStateStore: Pipeline lease, control flags and run history
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory and tracked in schema_migrations. Timestamps are
// stored as Unix milliseconds so lease expiry comparisons are numeric in
// both dialects.
package sqlstore
