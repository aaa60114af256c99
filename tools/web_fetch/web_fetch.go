package web_fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/rcabanilla/gridseer/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 5 * time.Second
	MaxCharsDefault = 20000
	maxBodyBytes    = 2 << 20
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

// Fetch downloads a page and extracts its readable text. A fetch or extraction
// failure is not an error; it produces a Result with an empty Text so callers
// can fall back to the search snippet.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int

	// Client overrides the HTTP client; used by tests.
	Client *http.Client
}

func NewWebFetcher(timeout time.Duration, maxChars int) WebFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	return &Fetch{Timeout: timeout, MaxChars: maxChars}
}

func (f *Fetch) Exec(ctx context.Context, pageURL string) (models.Result, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return models.Result{URL: pageURL, Status: 599}, nil
	}
	req.Header.Set("User-Agent", "gridseer/1.0 (+energy research)")

	resp, err := client.Do(req)
	if err != nil {
		return models.Result{URL: pageURL, Status: 599, FetchMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	defer resp.Body.Close()

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || resp.StatusCode != http.StatusOK {
		return models.Result{URL: pageURL, Status: resp.StatusCode, FetchMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	article, err := readability.FromReader(strings.NewReader(string(html)), mustParseURL(pageURL))
	if err != nil {
		return models.Result{URL: pageURL, Status: resp.StatusCode, FetchMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return models.Result{
		URL:     pageURL,
		Title:   strings.TrimSpace(article.Title),
		Text:    text,
		Status:  resp.StatusCode,
		FetchMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
