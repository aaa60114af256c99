package web_search

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rcabanilla/gridseer/config"
	core "github.com/rcabanilla/gridseer/internal/agent/core"
	"github.com/rcabanilla/gridseer/tools/web_fetch"
	"github.com/rcabanilla/gridseer/utils"
)

// EnergySearcher adapts a WebSearcher to the agent's search boundary. When
// fetching is enabled it pulls the readable text of each hit so stored pages
// carry full content rather than snippets.
type EnergySearcher struct {
	inner      WebSearcher
	fetcher    web_fetch.WebFetcher
	maxResults int
	logger     *log.Logger
}

// NewEnergySearcher builds the search collaborator from configuration
func NewEnergySearcher(cfg config.SearchConfig, logger *log.Logger) (*EnergySearcher, error) {
	provider := Provider(cfg.Provider)
	apiKey := cfg.SerperAPIKey
	if provider == BraveProvider {
		apiKey = cfg.BraveAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for search provider %q", cfg.Provider)
	}
	inner, err := NewWebSearcher(provider, apiKey)
	if err != nil {
		return nil, err
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 8
	}
	s := &EnergySearcher{inner: inner, maxResults: maxResults, logger: logger}
	if cfg.FetchContent {
		s.fetcher = web_fetch.NewWebFetcher(cfg.FetchTimeout, web_fetch.MaxCharsDefault)
	}
	return s, nil
}

// SearchEnergySites runs the query against the configured provider and
// returns documents ready for caching.
func (s *EnergySearcher) SearchEnergySites(ctx context.Context, query string) ([]core.EnergyDocument, error) {
	results, err := s.inner.Discover(ctx, query, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	docs := make([]core.EnergyDocument, len(results))
	for i, r := range results {
		source := r.Source
		if source == "" {
			source = utils.Hostname(r.URL)
		}
		docs[i] = core.EnergyDocument{
			Title:   r.Title,
			URL:     r.URL,
			Source:  source,
			Snippet: r.Snippet,
		}
	}

	if s.fetcher != nil {
		s.fetchContent(ctx, docs)
	}
	return docs, nil
}

// fetchContent fills Content for each document in parallel. Failed fetches
// leave Content empty; the snippet stands in.
func (s *EnergySearcher) fetchContent(ctx context.Context, docs []core.EnergyDocument) {
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.fetcher.Exec(ctx, docs[i].URL)
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("content fetch failed for %s: %v", docs[i].URL, err)
				}
				return
			}
			if res.Text == "" {
				return
			}
			docs[i].Content = res.Text
		}(i)
	}
	wg.Wait()
}
