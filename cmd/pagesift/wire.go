package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/blob/gcs"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/blob/local"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/embedding"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/ocr"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/storage/sqlstore"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/vector"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/cli"
	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/connectors"
	"github.com/custodia-labs/pagesift/internal/converters/pdf"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/core/services"
	"github.com/custodia-labs/pagesift/internal/hooks"
	"github.com/custodia-labs/pagesift/internal/logger"
	"github.com/custodia-labs/pagesift/internal/preprocess"
)

// pingTimeout bounds the startup reachability check of the embedder.
const pingTimeout = 3 * time.Second

// closers releases resources in reverse order of acquisition.
type closers []io.Closer

func (c *closers) add(cl io.Closer) { *c = append(*c, cl) }

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			logger.Warn("Close failed: %v", err)
		}
	}
}

// bootstrap loads configuration from home and wires every service.
func bootstrap(ctx context.Context, home string) (_ *cli.Services, _ func(), err error) {
	config.LoadDotEnv(filepath.Join(home, ".env"), ".env")

	store, err := file.NewConfigStore(home)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	cfg, err := config.Load(home, store)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", store.Path(), err)
	}
	logger.SetFormat(cfg.LogFormat)

	var cl closers
	defer func() {
		if err != nil {
			cl.close()
		}
	}()

	db, err := sqlstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Driver, err)
	}
	cl.add(db)
	logger.Debug("Using %s store %s", db.Dialect(), db.Path())

	docBlobs, err := local.New(cfg.Blobs.DocumentsDir)
	if err != nil {
		return nil, nil, err
	}
	pageBlobs, err := local.New(cfg.Blobs.ImagesDir)
	if err != nil {
		return nil, nil, err
	}

	content := services.NewContentStore(db.DocumentStore(), db.PageStore(), docBlobs, pageBlobs)
	if cfg.Blobs.MirrorBucket != "" {
		mirror, merr := gcs.New(ctx, cfg.Blobs.MirrorBucket, cfg.OCR.VisionCredentials)
		if merr != nil {
			return nil, nil, fmt.Errorf("connecting mirror: %w", merr)
		}
		cl.add(mirror)
		content.WithMirrors(
			mirror.WithPrefix(cfg.Blobs.MirrorDocumentsPrefix),
			mirror.WithPrefix(cfg.Blobs.MirrorImagesPrefix),
		)
	}

	crawler, err := connectors.NewFactory().Create(cfg.Crawler)
	if err != nil {
		return nil, nil, fmt.Errorf("creating crawler: %w", err)
	}
	cl.add(crawler)

	engines, err := ocr.NewRegistry().Build(ctx, cfg.OCR)
	if err != nil {
		return nil, nil, fmt.Errorf("creating OCR engines: %w", err)
	}
	for _, e := range engines {
		cl.add(e)
	}

	prepOpts := preprocess.DefaultOptions()
	prepOpts.Deskew = cfg.OCR.Deskew
	prepOpts.Scales = cfg.OCR.Scales
	prepOpts.MaxVariants = cfg.OCR.MaxVariants

	ocrService := services.NewOCRService(
		db.PageStore(), db.OCRResultStore(), pageBlobs, engines,
		preprocess.New(prepOpts),
		services.OCROptions{BaseWeight: cfg.OCR.BaseWeight, Workers: cfg.Ingestion.Workers},
	)
	text := services.NewTextService(db.OCRResultStore(), db.EntityStore())

	embedder, vectors, err := semanticIndex(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if embedder != nil {
		cl.add(embedder)
		cl.add(vectors)
	}
	indexer := services.NewIndexer(db.OCRResultStore(), db.IndexStore(), embedder, vectors)

	hookRegistry := hooks.NewRegistry()
	hooks.RegisterDefaults(hookRegistry)
	docHooks, err := hookRegistry.BuildEnabled(cfg.Hooks)
	if err != nil {
		return nil, nil, fmt.Errorf("creating hooks: %w", err)
	}

	search := services.NewSearchService(
		db.OCRResultStore(), db.PageStore(), db.IndexStore(), db.EntityStore(),
		embedder, vectors,
		services.SearchSettings{
			DefaultLimit:    cfg.Search.DefaultLimit,
			FuzzyThreshold:  cfg.Search.FuzzyThreshold,
			FuzzyCandidates: cfg.Search.FuzzyCandidates,
		},
	)

	orchestrator := services.NewOrchestrator(
		services.OrchestratorConfig{
			Name:         cfg.Ingestion.Name,
			Owner:        cfg.Ingestion.Owner,
			Poll:         cfg.Ingestion.Poll,
			RunInterval:  cfg.Ingestion.RunInterval,
			LeaseTTL:     cfg.Ingestion.LeaseTTL,
			SkipExisting: cfg.Ingestion.SkipExisting,
			Limit:        cfg.Ingestion.Limit,
			StorageOnly:  cfg.Ingestion.StorageOnlyCollections,
			HistoryKeep:  cfg.Ingestion.HistoryKeep,
			WorkDir:      cfg.Blobs.WorkDir,
		},
		db.IngestionStateStore(),
		services.Pipeline{
			Crawler:   crawler,
			Content:   content,
			Converter: pdf.New().WithDPI(cfg.OCR.DPI),
			OCR:       ocrService,
			Text:      text,
			Indexer:   indexer,
			Documents: db.DocumentStore(),
			Pages:     db.PageStore(),
			Results:   db.OCRResultStore(),
			Hooks:     docHooks,
		},
	)

	return &cli.Services{
		Search:      search,
		Control:     orchestrator,
		Runner:      orchestrator,
		Maintenance: services.NewMaintenance(ocrService, text, indexer),
	}, cl.close, nil
}

// semanticIndex returns the embedder and vector index, or nils when no
// embedding provider is configured.
func semanticIndex(ctx context.Context, cfg *config.Config) (driven.EmbeddingService, driven.VectorIndex, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	if embedder == nil {
		return nil, nil, nil
	}
	vectors, err := vector.New(cfg.Vector)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("creating vector index: %w", err), embedder.Close())
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := embedder.Ping(pingCtx); err != nil {
		logger.Warn("Embedding model %s unreachable, semantic indexing will fail until it is up: %v",
			embedder.ModelName(), err)
	}
	return embedder, vectors, nil
}
