package connectors

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"trendscope/internal/models"
)

// TwitterConnector queries the Twitter/X v2 recent search API.
type TwitterConnector struct {
	client      *APIClient
	bearerToken string
	baseURL     string
}

// NewTwitterConnector reads TWITTER_BEARER_TOKEN from the environment.
func NewTwitterConnector(client *APIClient) *TwitterConnector {
	return &TwitterConnector{
		client:      client,
		bearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
		baseURL:     "https://api.twitter.com/2",
	}
}

func (t *TwitterConnector) Name() string        { return "twitter" }
func (t *TwitterConnector) DisplayName() string { return "Twitter/X" }
func (t *TwitterConnector) IsConfigured() bool  { return t.bearerToken != "" }

type twitterSearchResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			LikeCount    int `json:"like_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

func (t *TwitterConnector) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	// v2 recent search accepts 10..100 for max_results
	maxResults := limit
	if maxResults > 100 {
		maxResults = 100
	}
	if maxResults < 10 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("query", query+" -is:retweet lang:en")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")

	var resp twitterSearchResponse
	err := t.client.GetJSON(ctx, t.baseURL+"/tweets/search/recent?"+params.Encode(), map[string]string{
		"Authorization": "Bearer " + t.bearerToken,
	}, &resp)
	if err != nil {
		return models.SourceResult{}, err
	}

	items := make([]models.SourceItem, 0, len(resp.Data))
	totalEngagement := 0
	for _, tw := range resp.Data {
		engagement := tw.PublicMetrics.RetweetCount + tw.PublicMetrics.ReplyCount + tw.PublicMetrics.LikeCount
		totalEngagement += engagement
		items = append(items, models.SourceItem{
			Text: tw.Text,
			URL:  "https://twitter.com/i/status/" + tw.ID,
			Meta: map[string]any{
				"author_id":  tw.AuthorID,
				"created_at": tw.CreatedAt,
				"engagement": engagement,
			},
		})
	}

	return models.SourceResult{
		ItemCount: len(items),
		Items:     items,
		Message:   fmt.Sprintf("collected %d recent tweets", len(items)),
		Metrics: map[string]any{
			"result_count":     resp.Meta.ResultCount,
			"total_engagement": totalEngagement,
		},
	}, nil
}

func (t *TwitterConnector) DegradedFallback(query string) models.SourceResult {
	return models.SourceResult{
		ItemCount: 3,
		Items: []models.SourceItem{
			{Text: "[SAMPLE] Conversations around \"" + query + "\" are trending upward this week", Meta: map[string]any{"sample": true}},
			{Text: "[SAMPLE] Creators and early adopters dominate the \"" + query + "\" discussion", Meta: map[string]any{"sample": true}},
			{Text: "[SAMPLE] Sentiment on \"" + query + "\" skews positive with pockets of skepticism", Meta: map[string]any{"sample": true}},
		},
		Message: "sample social data - live Twitter/X fetch unavailable",
		Metrics: map[string]any{"sample": true},
	}
}
