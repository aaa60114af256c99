package web_search

import (
	"context"
	"errors"
	"testing"

	"github.com/rcabanilla/gridseer/config"
	"github.com/rcabanilla/gridseer/tools/web_search/models"
)

type stubSearcher struct {
	results []models.Result
	err     error
}

func (s stubSearcher) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	return s.results, s.err
}

func TestSearchEnergySitesMapsResults(t *testing.T) {
	s := &EnergySearcher{
		inner: stubSearcher{results: []models.Result{
			{Title: "NGCP advisory", URL: "https://www.ngcp.ph/advisory", Snippet: "yellow alert"},
			{Title: "Rappler report", URL: "https://rappler.com/energy", Source: "rappler.com", Snippet: "outage"},
		}},
		maxResults: 8,
	}

	docs, err := s.SearchEnergySites(context.Background(), "grid alerts")
	if err != nil {
		t.Fatalf("SearchEnergySites: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Source != "ngcp.ph" {
		t.Fatalf("missing source should fall back to hostname, got %q", docs[0].Source)
	}
	if docs[1].Source != "rappler.com" || docs[1].Snippet != "outage" {
		t.Fatalf("unexpected document: %+v", docs[1])
	}
}

func TestSearchEnergySitesWrapsProviderError(t *testing.T) {
	s := &EnergySearcher{inner: stubSearcher{err: errors.New("dns failure")}, maxResults: 8}
	if _, err := s.SearchEnergySites(context.Background(), "q"); err == nil {
		t.Fatalf("expected wrapped provider error")
	}
}

func TestNewEnergySearcherRequiresKey(t *testing.T) {
	_, err := NewEnergySearcher(config.SearchConfig{Provider: "serper"}, nil)
	if err == nil {
		t.Fatalf("expected error for missing API key")
	}
}
