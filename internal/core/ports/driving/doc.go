// Package driving defines the interfaces that external actors use to drive the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI, TUI and MCP adapters call these interfaces; core services implement them.
//
//   - SearchService: Keyword, phrase, fuzzy and semantic search plus entity lookup
//   - IngestionControl: Enable/disable, pause/resume, cancel and status of a pipeline
//   - IngestionRunner: Long-running daemon and one-shot runs
//   - MaintenanceService: OCR backfill of pending pages and reindexing
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driving
