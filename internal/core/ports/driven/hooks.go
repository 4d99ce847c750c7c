package driven

import "context"

// DocumentHook is called once per document after its pages are indexed.
// Tagging or summarisation collaborators plug in here; their failures are
// logged and never affect ingestion state.
type DocumentHook interface {
	Name() string
	DocumentIndexed(ctx context.Context, documentID string) error
}
