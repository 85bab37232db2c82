package connectors

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"

	"trendscope/internal/models"
)

const (
	maxEnrichedPages = 3
	maxExtractChars  = 1500
)

// WebSearchConnector queries a SearXNG metasearch instance and enriches
// the top hits with readable page content, honoring robots.txt.
type WebSearchConnector struct {
	client  *APIClient
	robots  *RobotsChecker
	baseURL string
}

// NewWebSearchConnector creates the connector against the given SearXNG
// instance URL. An empty URL leaves the connector unconfigured.
func NewWebSearchConnector(client *APIClient, baseURL string) *WebSearchConnector {
	return &WebSearchConnector{
		client:  client,
		robots:  NewRobotsChecker(client.UserAgent()),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (w *WebSearchConnector) Name() string        { return "websearch" }
func (w *WebSearchConnector) DisplayName() string { return "Web Search" }
func (w *WebSearchConnector) IsConfigured() bool  { return w.baseURL != "" }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

func (w *WebSearchConnector) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("safesearch", "1")

	var resp searxngResponse
	err := w.client.GetJSON(ctx, w.baseURL+"/search?"+params.Encode(), nil, &resp)
	if err != nil {
		return models.SourceResult{}, err
	}

	hits := resp.Results
	if len(hits) > limit {
		hits = hits[:limit]
	}

	items := make([]models.SourceItem, 0, len(hits))
	enriched := 0
	for i, hit := range hits {
		item := models.SourceItem{
			Title: hit.Title,
			Text:  hit.Content,
			URL:   hit.URL,
			Meta:  map[string]any{"engine": hit.Engine},
		}
		if i < maxEnrichedPages {
			if text, ok := w.extractPage(ctx, hit.URL); ok {
				item.Text = text
				item.Meta["extracted"] = true
				enriched++
			}
		}
		items = append(items, item)
	}

	return models.SourceResult{
		ItemCount: len(items),
		Items:     items,
		Message:   fmt.Sprintf("collected %d web results (%d pages extracted)", len(items), enriched),
		Metrics: map[string]any{
			"pages_extracted": enriched,
		},
	}, nil
}

// extractPage fetches one result page and pulls out its readable content.
// Any failure (robots disallow, fetch error, empty extraction) is treated
// as non-fatal; the search snippet is kept instead.
func (w *WebSearchConnector) extractPage(ctx context.Context, pageURL string) (string, bool) {
	allowed, _, err := w.robots.CanFetch(ctx, pageURL)
	if err != nil || !allowed {
		return "", false
	}

	body, contentType, err := w.client.GetPage(ctx, pageURL)
	if err != nil {
		return "", false
	}
	if contentType != "" && !strings.Contains(contentType, "html") {
		return "", false
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsedURL,
	})
	if err != nil || result == nil || result.ContentText == "" {
		return "", false
	}

	text := result.ContentText
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars] + "..."
	}
	return text, true
}

func (w *WebSearchConnector) DegradedFallback(query string) models.SourceResult {
	return models.SourceResult{
		ItemCount: 2,
		Items: []models.SourceItem{
			{Title: "[SAMPLE] Industry coverage of \"" + query + "\" points to steady mainstream attention", Meta: map[string]any{"sample": true}},
			{Title: "[SAMPLE] Analyst commentary frames \"" + query + "\" as an emerging opportunity", Meta: map[string]any{"sample": true}},
		},
		Message: "sample web results - live search unavailable",
		Metrics: map[string]any{"sample": true},
	}
}
