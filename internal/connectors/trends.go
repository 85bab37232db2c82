package connectors

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"trendscope/internal/models"
)

// GoogleTrendsConnector queries Google Trends interest data through the
// SerpAPI gateway.
type GoogleTrendsConnector struct {
	client *APIClient
	apiKey string
	geo    string
}

// NewGoogleTrendsConnector reads SERPAPI_KEY and TRENDS_GEO from the
// environment. Geo defaults to Nigeria, the original deployment market.
func NewGoogleTrendsConnector(client *APIClient) *GoogleTrendsConnector {
	geo := os.Getenv("TRENDS_GEO")
	if geo == "" {
		geo = "NG"
	}
	return &GoogleTrendsConnector{
		client: client,
		apiKey: os.Getenv("SERPAPI_KEY"),
		geo:    geo,
	}
}

func (g *GoogleTrendsConnector) Name() string        { return "google_trends" }
func (g *GoogleTrendsConnector) DisplayName() string { return "Google Trends" }
func (g *GoogleTrendsConnector) IsConfigured() bool  { return g.apiKey != "" }

type trendsResponse struct {
	InterestOverTime struct {
		TimelineData []struct {
			Date   string `json:"date"`
			Values []struct {
				Query          string `json:"query"`
				ExtractedValue int    `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
	RelatedQueries struct {
		Rising []struct {
			Query string `json:"query"`
		} `json:"rising"`
	} `json:"related_queries"`
}

func (g *GoogleTrendsConnector) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	params := url.Values{}
	params.Set("engine", "google_trends")
	params.Set("q", query)
	params.Set("geo", g.geo)
	params.Set("date", "today 3-m")
	params.Set("api_key", g.apiKey)

	var resp trendsResponse
	err := g.client.GetJSON(ctx, "https://serpapi.com/search.json?"+params.Encode(), nil, &resp)
	if err != nil {
		return models.SourceResult{}, err
	}

	timeline := resp.InterestOverTime.TimelineData
	if len(timeline) > limit {
		timeline = timeline[len(timeline)-limit:]
	}

	items := make([]models.SourceItem, 0, len(timeline))
	peak, sum := 0, 0
	for _, point := range timeline {
		value := 0
		if len(point.Values) > 0 {
			value = point.Values[0].ExtractedValue
		}
		if value > peak {
			peak = value
		}
		sum += value
		items = append(items, models.SourceItem{
			Title: point.Date,
			Meta:  map[string]any{"interest": value},
		})
	}

	rising := make([]string, 0, len(resp.RelatedQueries.Rising))
	for _, rq := range resp.RelatedQueries.Rising {
		rising = append(rising, rq.Query)
	}

	average := 0
	if len(items) > 0 {
		average = sum / len(items)
	}

	return models.SourceResult{
		ItemCount: len(items),
		Items:     items,
		Message:   fmt.Sprintf("collected %d interest data points (%s)", len(items), g.geo),
		Metrics: map[string]any{
			"peak_interest":    peak,
			"average_interest": average,
			"rising_queries":   rising,
		},
	}, nil
}

func (g *GoogleTrendsConnector) DegradedFallback(query string) models.SourceResult {
	return models.SourceResult{
		ItemCount: 2,
		Items: []models.SourceItem{
			{Title: "[SAMPLE] Search interest for \"" + query + "\" held steady over the past quarter", Meta: map[string]any{"sample": true}},
			{Title: "[SAMPLE] Related queries around \"" + query + "\" suggest growing curiosity", Meta: map[string]any{"sample": true}},
		},
		Message: "sample trend data - live Google Trends fetch unavailable",
		Metrics: map[string]any{"sample": true},
	}
}
