package connectors

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"trendscope/internal/models"
)

// TikTokConnector queries a RapidAPI-hosted TikTok search endpoint.
type TikTokConnector struct {
	client *APIClient
	apiKey string
	host   string
}

// NewTikTokConnector reads TIKTOK_RAPIDAPI_KEY from the environment.
func NewTikTokConnector(client *APIClient) *TikTokConnector {
	return &TikTokConnector{
		client: client,
		apiKey: os.Getenv("TIKTOK_RAPIDAPI_KEY"),
		host:   "tiktok-scraper7.p.rapidapi.com",
	}
}

func (t *TikTokConnector) Name() string        { return "tiktok" }
func (t *TikTokConnector) DisplayName() string { return "TikTok" }
func (t *TikTokConnector) IsConfigured() bool  { return t.apiKey != "" }

type tiktokSearchResponse struct {
	Data struct {
		Videos []struct {
			VideoID   string `json:"video_id"`
			Title     string `json:"title"`
			PlayCount int64  `json:"play_count"`
			DiggCount int64  `json:"digg_count"`
			Author    struct {
				UniqueID string `json:"unique_id"`
			} `json:"author"`
		} `json:"videos"`
	} `json:"data"`
}

func (t *TikTokConnector) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	if limit > 30 {
		limit = 30
	}

	params := url.Values{}
	params.Set("keywords", query)
	params.Set("count", fmt.Sprintf("%d", limit))
	params.Set("region", "ng")

	var resp tiktokSearchResponse
	err := t.client.GetJSON(ctx, "https://"+t.host+"/feed/search?"+params.Encode(), map[string]string{
		"X-RapidAPI-Key":  t.apiKey,
		"X-RapidAPI-Host": t.host,
	}, &resp)
	if err != nil {
		return models.SourceResult{}, err
	}

	items := make([]models.SourceItem, 0, len(resp.Data.Videos))
	var totalPlays int64
	for _, v := range resp.Data.Videos {
		totalPlays += v.PlayCount
		items = append(items, models.SourceItem{
			Title: v.Title,
			URL:   "https://www.tiktok.com/@" + v.Author.UniqueID + "/video/" + v.VideoID,
			Meta: map[string]any{
				"author": v.Author.UniqueID,
				"plays":  v.PlayCount,
				"likes":  v.DiggCount,
			},
		})
	}

	return models.SourceResult{
		ItemCount: len(items),
		Items:     items,
		Message:   fmt.Sprintf("collected %d trending videos", len(items)),
		Metrics: map[string]any{
			"total_plays": totalPlays,
		},
	}, nil
}

func (t *TikTokConnector) DegradedFallback(query string) models.SourceResult {
	return models.SourceResult{
		ItemCount: 2,
		Items: []models.SourceItem{
			{Title: "[SAMPLE] Short-form video creators are driving the \"" + query + "\" conversation", Meta: map[string]any{"sample": true}},
			{Title: "[SAMPLE] Hashtag challenges related to \"" + query + "\" show rising view counts", Meta: map[string]any{"sample": true}},
		},
		Message: "sample video data - live TikTok fetch unavailable",
		Metrics: map[string]any{"sample": true},
	}
}
