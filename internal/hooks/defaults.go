package hooks

import (
	"context"
	"errors"

	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/hooks/manifest"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// RegisterDefaults registers the built-in hooks.
func RegisterDefaults(r *Registry) {
	r.Register(LogName, buildLog)
	r.Register(manifest.Name, buildManifest)
}

func buildLog(config.HooksConfig) (driven.DocumentHook, error) {
	return LogHook{}, nil
}

func buildManifest(cfg config.HooksConfig) (driven.DocumentHook, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("hooks.manifest_path is required for the manifest hook")
	}
	return manifest.New(cfg.ManifestPath), nil
}

// LogName is the name of the logging hook.
const LogName = "log"

// LogHook logs each indexed document.
type LogHook struct{}

// Name returns the hook name.
func (LogHook) Name() string { return LogName }

// DocumentIndexed logs the document ID.
func (LogHook) DocumentIndexed(_ context.Context, documentID string) error {
	logger.Info("Document %s indexed", documentID)
	return nil
}
