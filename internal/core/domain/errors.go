package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown engine, crawler or search mode.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnsupportedFormat indicates a file the converter cannot rasterise.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDedupCollision indicates two different sources hashed to the same document ID.
	// This is store-level corruption and halts an ingestion run.
	ErrDedupCollision = errors.New("document id collision")

	// Coordination Errors.

	// ErrLeaseHeld indicates another owner holds an unexpired pipeline lease.
	ErrLeaseHeld = errors.New("lease held by another owner")

	// ErrLeaseLost indicates the lease could not be renewed before expiry.
	ErrLeaseLost = errors.New("lease lost")

	// OCR Errors.

	// ErrEngineUnavailable indicates an OCR engine is not usable in this build or environment.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")

	// Search Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates a remote service throttled requests.
	ErrRateLimited = errors.New("rate limited")
)
