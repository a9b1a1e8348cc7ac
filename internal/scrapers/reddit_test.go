package scrapers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedditScraper_Enabled(t *testing.T) {
	enabled := NewRedditScraper("id", "secret", []string{"startups"}, 10, 50, 24*time.Hour, time.Second)
	assert.True(t, enabled.Enabled())

	disabled := NewRedditScraper("", "", []string{"startups"}, 10, 50, 24*time.Hour, time.Second)
	assert.False(t, disabled.Enabled())
}

func TestRedditScraper_DisabledScrapeReturnsNothing(t *testing.T) {
	scraper := NewRedditScraper("", "", []string{"startups"}, 10, 50, 24*time.Hour, time.Second)

	results, err := scraper.Scrape(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestRedditScraper_ToResult(t *testing.T) {
	scraper := NewRedditScraper("id", "secret", nil, 10, 50, 24*time.Hour, time.Second)

	post := redditPost{
		ID:          "abc123",
		Title:       "Struggling to find my first customers",
		Selftext:    "I launched a SaaS last month and have zero signups.",
		Author:      "founder42",
		Subreddit:   "startups",
		Permalink:   "/r/startups/comments/abc123/struggling/",
		Created:     1700000000,
		Score:       128,
		NumComments: 45,
	}

	result := scraper.toResult(post)

	assert.Equal(t, "https://reddit.com/r/startups/comments/abc123/struggling/", result.URL)
	assert.Equal(t, "reddit", result.Source)
	assert.Equal(t, "abc123", result.Metadata["post_id"])
	assert.Equal(t, "128", result.Metadata["score"])
	assert.Equal(t, "45", result.Metadata["num_comments"])
	assert.Equal(t, "startups", result.Metadata["subreddit"])
	assert.Contains(t, result.Content, "## Struggling to find my first customers")
	assert.Contains(t, result.Content, "**Subreddit:** r/startups")
	assert.Contains(t, result.Content, "I launched a SaaS last month")
}

func TestTopWindow(t *testing.T) {
	tests := []struct {
		window   time.Duration
		expected string
	}{
		{30 * time.Minute, "hour"},
		{time.Hour, "hour"},
		{6 * time.Hour, "day"},
		{24 * time.Hour, "day"},
		{3 * 24 * time.Hour, "week"},
		{14 * 24 * time.Hour, "month"},
		{90 * 24 * time.Hour, "year"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, topWindow(tt.window))
		})
	}
}

func TestRedditScraper_TokenSafeForConcurrentUse(t *testing.T) {
	scraper := NewRedditScraper("id", "secret", nil, 10, 50, 24*time.Hour, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			scraper.setToken(fmt.Sprintf("token-%d", n))
			_ = scraper.token()
		}(i)
	}
	wg.Wait()

	assert.Contains(t, scraper.token(), "token-")
}
