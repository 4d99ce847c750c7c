package connectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/connectors/dropdir"
	"github.com/custodia-labs/pagesift/internal/connectors/interstitial"
	"github.com/custodia-labs/pagesift/internal/connectors/listing"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Builder creates a crawler from configuration.
type Builder func(cfg config.CrawlerConfig) (driven.Crawler, error)

// Factory maps crawler kinds to builders.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewFactory creates a factory with the built-in crawler kinds registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]Builder)}
	f.Register(listing.Name, buildListing)
	f.Register(interstitial.Name, buildInterstitial)
	f.Register(dropdir.Name, buildDropDir)
	return f
}

// Register adds or replaces the builder for kind.
func (f *Factory) Register(kind string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
}

// Create builds the crawler named by cfg.Kind.
// Returns domain.ErrUnsupportedType for unknown kinds.
func (f *Factory) Create(cfg config.CrawlerConfig) (driven.Crawler, error) {
	f.mu.RLock()
	b, ok := f.builders[cfg.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("crawler %q: %w", cfg.Kind, domain.ErrUnsupportedType)
	}
	return b(cfg)
}

// SupportedTypes returns registered kinds in sorted order.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func buildListing(cfg config.CrawlerConfig) (driven.Crawler, error) {
	c, err := listing.New(listing.Config{
		BaseURL:           cfg.BaseURL,
		Source:            cfg.Source,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		ProbeLimit:        cfg.ProbeLimit,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func buildInterstitial(cfg config.CrawlerConfig) (driven.Crawler, error) {
	var rules []interstitial.ExclusionRule
	if cfg.Exclusions != nil {
		rules = make([]interstitial.ExclusionRule, 0, len(cfg.Exclusions))
		for _, e := range cfg.Exclusions {
			rules = append(rules, interstitial.ExclusionRule{
				SectionAny:  e.SectionAny,
				SectionAlso: e.SectionAlso,
				LinkAny:     e.LinkAny,
				HrefAny:     e.HrefAny,
			})
		}
	}
	c, err := interstitial.New(interstitial.Config{
		BaseURL:           cfg.BaseURL,
		PathPrefix:        cfg.PathPrefix,
		RootLabel:         cfg.RootLabel,
		Source:            cfg.Source,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Rules:             rules,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func buildDropDir(cfg config.CrawlerConfig) (driven.Crawler, error) {
	if cfg.DropDir == "" {
		return nil, fmt.Errorf("dropdir crawler: drop_dir required: %w", domain.ErrInvalidInput)
	}
	return dropdir.New(cfg.Source, cfg.DropDir), nil
}
