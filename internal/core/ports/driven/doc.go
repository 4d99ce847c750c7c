// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Crawler: Discovers and fetches candidate files from a source
//   - Converter: Renders multi-page files into page images
//   - OCREngine: Extracts text and word boxes from one image
//   - BlobStore: Primary storage for originals and page renders
//   - DocumentStore, PageStore: Content store persistence
//   - OCRResultStore, EntityStore, IndexStore: Derived data persistence
//   - IngestionStateStore: Leased pipeline state and run history
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - BlobStore (as mirror): Remote copy of stored bytes. Failures are logged only.
//   - EmbeddingService: Generates vector embeddings. Without it, semantic search is disabled.
//   - VectorIndex: Nearest-neighbour storage. Only used when EmbeddingService is configured.
//   - DocumentHook: Post-index callbacks such as the log and manifest hooks.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or converter package
package driven
