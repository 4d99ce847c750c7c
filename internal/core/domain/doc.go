// Package domain defines the core business entities for pagesift.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source file fetched by a crawler
//   - Page: One raster page of a Document
//   - OCRResult: The selected OCR extraction for a Page
//   - Entity: A structured span detected in an OCRResult
//   - SearchIndexEntry: The derived lexical representation of an OCRResult
//   - IngestionState: The leased, persistent state of a named pipeline
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
