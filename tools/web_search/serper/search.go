package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rcabanilla/gridseer/tools/web_search/models"
	"github.com/rcabanilla/gridseer/utils"
)

const defaultBaseURL = "https://google.serper.dev/search"

type Search struct {
	ApiKey string

	// BaseURL overrides the search endpoint; used by tests.
	BaseURL string
}

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)

	url := s.BaseURL
	if url == "" {
		url = defaultBaseURL
	}
	req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(body)))
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Result
	if items, ok := raw["organic"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			link := utils.Str(m["link"])
			out = append(out, models.Result{
				Title:   utils.Str(m["title"]),
				URL:     link,
				Source:  utils.Hostname(link),
				Snippet: utils.Str(m["snippet"]),
			})
		}
	}
	return out, nil
}
