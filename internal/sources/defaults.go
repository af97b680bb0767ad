package sources

import (
	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/model"
)

// NewDefaultRegistry builds the registry from configuration: the
// CourtListener API (unless disabled), then the enabled legal databases and
// search engines. An empty fallback list enables every built-in fallback.
func NewDefaultRegistry(cfg *model.Config, logger *zap.Logger) *Registry {
	logger = logging.OrNop(logger)
	fetcher := NewFetcher(cfg.HTTP, cfg.Verification.SourceTimeout)
	registry := NewRegistry()

	if !cfg.Sources.DisablePrimary {
		if cfg.Sources.CourtListenerToken == "" {
			logger.Warn("no CourtListener token configured; anonymous requests are heavily rate limited")
		}
		registry.Register(NewCourtListener(fetcher, cfg.Sources.CourtListenerBaseURL, cfg.Sources.CourtListenerToken))
	}

	enabled := make(map[string]bool, len(cfg.Sources.Fallbacks))
	for _, name := range cfg.Sources.Fallbacks {
		enabled[name] = true
	}
	allowed := func(name string) bool { return len(enabled) == 0 || enabled[name] }

	for _, p := range DefaultSiteProfiles() {
		if allowed(p.Name) {
			registry.Register(NewSiteScraper(p, fetcher))
		}
	}
	for _, p := range DefaultEngineProfiles() {
		if allowed(p.Name) {
			registry.Register(NewSearchEngine(p, fetcher))
		}
	}

	for name := range enabled {
		if _, ok := registry.Get(name); !ok {
			logger.Warn("unknown fallback source ignored", zap.String("source", name))
		}
	}

	return registry
}

// KnownSources returns the names of every built-in source
func KnownSources() []string {
	names := []string{courtListenerName}
	for _, p := range DefaultSiteProfiles() {
		names = append(names, p.Name)
	}
	for _, p := range DefaultEngineProfiles() {
		names = append(names, p.Name)
	}
	return names
}
