package inspiration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/atelier-ai/atelier/internal/httpkit"
)

// HTTPProvider calls a configured inspiration endpoint. The endpoint
// returns JSON search hits whose pages are fetched and distilled into
// title plus a short text summary.
type HTTPProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPProvider creates a provider for a remote inspiration service.
func NewHTTPProvider(baseURL, token string, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(20 * time.Second),
		),
		logger: logger,
	}
}

// searchHit is the wire format of one remote search result.
type searchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Desc  string `json:"description"`
}

// Search queries the remote service. Hits with no usable title get one
// fetched and extracted from the target page.
func (p *HTTPProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	u := fmt.Sprintf("%s/v1/search?q=%s&limit=%d", p.baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("inspiration API error %d: %s", resp.StatusCode, body)
	}

	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := Result{Title: h.Title, URL: h.URL, Source: "web", Summary: h.Desc}
		if r.Title == "" && h.URL != "" {
			title, text := p.fetchPage(ctx, h.URL)
			r.Title = title
			if r.Summary == "" {
				r.Summary = firstWords(text, 40)
			}
		}
		if r.Title == "" {
			continue
		}
		results = append(results, r)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// fetchPage downloads a result page and extracts its title and text.
// Failures are logged and return empty strings; one bad page should not
// sink the whole search.
func (p *HTTPProvider) fetchPage(ctx context.Context, pageURL string) (string, string) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", ""
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("inspiration page fetch failed", "url", pageURL, "error", err)
		return "", ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpkit.DrainAndClose(resp.Body, 2048)
		return "", ""
	}

	const maxPage = 512 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPage))
	if err != nil {
		return "", ""
	}
	return extractHTML(string(body))
}
