package connectors

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"trendscope/internal/models"
)

// RedditConnector queries Reddit's public JSON search endpoint using an
// identifying user agent, per Reddit API rules.
type RedditConnector struct {
	client    *APIClient
	userAgent string
}

// NewRedditConnector reads REDDIT_USER_AGENT from the environment.
func NewRedditConnector(client *APIClient) *RedditConnector {
	return &RedditConnector{
		client:    client,
		userAgent: os.Getenv("REDDIT_USER_AGENT"),
	}
}

func (r *RedditConnector) Name() string        { return "reddit" }
func (r *RedditConnector) DisplayName() string { return "Reddit" }
func (r *RedditConnector) IsConfigured() bool  { return r.userAgent != "" }

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				Permalink   string  `json:"permalink"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *RedditConnector) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("sort", "relevance")
	params.Set("t", "month")

	var resp redditSearchResponse
	err := r.client.GetJSON(ctx, "https://www.reddit.com/search.json?"+params.Encode(), map[string]string{
		"User-Agent": r.userAgent,
	}, &resp)
	if err != nil {
		return models.SourceResult{}, err
	}

	items := make([]models.SourceItem, 0, len(resp.Data.Children))
	totalScore := 0
	subreddits := map[string]int{}
	for _, child := range resp.Data.Children {
		post := child.Data
		totalScore += post.Score
		subreddits[post.Subreddit]++
		text := post.Selftext
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		items = append(items, models.SourceItem{
			Title: post.Title,
			Text:  text,
			URL:   "https://www.reddit.com" + post.Permalink,
			Meta: map[string]any{
				"subreddit": post.Subreddit,
				"score":     post.Score,
				"comments":  post.NumComments,
			},
		})
	}

	return models.SourceResult{
		ItemCount: len(items),
		Items:     items,
		Message:   fmt.Sprintf("collected %d discussions across %d subreddits", len(items), len(subreddits)),
		Metrics: map[string]any{
			"total_score": totalScore,
			"subreddits":  len(subreddits),
		},
	}, nil
}

func (r *RedditConnector) DegradedFallback(query string) models.SourceResult {
	return models.SourceResult{
		ItemCount: 2,
		Items: []models.SourceItem{
			{Title: "[SAMPLE] Community threads discussing \"" + query + "\" highlight practical adoption questions", Meta: map[string]any{"sample": true}},
			{Title: "[SAMPLE] Long-form debate on \"" + query + "\" surfaces both enthusiasm and concerns", Meta: map[string]any{"sample": true}},
		},
		Message: "sample discussion data - live Reddit fetch unavailable",
		Metrics: map[string]any{"sample": true},
	}
}
