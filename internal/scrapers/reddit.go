package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/retry"
)

// RedditScraper collects top posts from a configured set of subreddits.
type RedditScraper struct {
	clientID     string
	clientSecret string
	subreddits   []string
	minScore     int
	maxResults   int
	window       string
	client       *resty.Client

	// tokenMu guards accessToken; cron and manual triggers can run Scrape
	// concurrently on the same instance.
	tokenMu     sync.Mutex
	accessToken string
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewRedditScraper creates a Reddit scraper for the given subreddits. The
// window selects which top-post listing to fetch.
func NewRedditScraper(clientID, clientSecret string, subreddits []string, minScore, maxResults int, window, timeout time.Duration) *RedditScraper {
	return &RedditScraper{
		clientID:     clientID,
		clientSecret: clientSecret,
		subreddits:   subreddits,
		minScore:     minScore,
		maxResults:   maxResults,
		window:       topWindow(window),
		client:       resty.New().SetTimeout(timeout),
	}
}

// topWindow maps a scrape window to the nearest listing period the top
// sorting accepts.
func topWindow(window time.Duration) string {
	switch {
	case window <= time.Hour:
		return "hour"
	case window <= 24*time.Hour:
		return "day"
	case window <= 7*24*time.Hour:
		return "week"
	case window <= 31*24*time.Hour:
		return "month"
	default:
		return "year"
	}
}

func (r *RedditScraper) Name() string {
	return "reddit"
}

func (r *RedditScraper) Enabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

// Scrape fetches top posts from every configured subreddit. A failure in one
// subreddit is logged and skipped; only a systemic failure (authentication)
// aborts the run, returning an empty batch.
func (r *RedditScraper) Scrape(ctx context.Context) ([]models.ScrapeResult, error) {
	if !r.Enabled() {
		logrus.Debug("Reddit scraper disabled - missing credentials")
		return nil, nil
	}

	if err := r.authenticate(ctx); err != nil {
		logrus.Errorf("Reddit authentication failed: %v", err)
		return nil, fmt.Errorf("reddit authentication failed: %w", err)
	}

	var items []ranked

	for _, subreddit := range r.subreddits {
		posts, err := r.fetchTopPosts(ctx, subreddit)
		if err != nil {
			logrus.Errorf("Failed to fetch r/%s: %v", subreddit, err)
			continue
		}

		for _, post := range posts {
			if post.Score < r.minScore {
				continue
			}
			items = append(items, ranked{
				ID:     post.ID,
				Score:  post.Score,
				Result: r.toResult(post),
			})
		}
	}

	return dedupeSortCap(items, r.maxResults), nil
}

func (r *RedditScraper) authenticate(ctx context.Context) error {
	return retry.Do(ctx, 3, time.Second, func() error {
		resp, err := r.client.R().
			SetContext(ctx).
			SetHeader("User-Agent", userAgent).
			SetBasicAuth(r.clientID, r.clientSecret).
			SetFormData(map[string]string{
				"grant_type": "client_credentials",
			}).
			Post("https://www.reddit.com/api/v1/access_token")

		if err != nil {
			return err
		}

		if resp.StatusCode() == 429 {
			return fmt.Errorf("reddit auth: %w", retry.ErrRateLimited)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("reddit auth returned status %d", resp.StatusCode())
		}

		var authResp redditAuthResponse
		if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
			return err
		}

		r.setToken(authResp.AccessToken)
		return nil
	})
}

func (r *RedditScraper) setToken(token string) {
	r.tokenMu.Lock()
	r.accessToken = token
	r.tokenMu.Unlock()
}

func (r *RedditScraper) token() string {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()
	return r.accessToken
}

func (r *RedditScraper) fetchTopPosts(ctx context.Context, subreddit string) ([]redditPost, error) {
	url := fmt.Sprintf("https://oauth.reddit.com/r/%s/top.json?t=%s&limit=100", subreddit, r.window)

	var listing redditListing
	err := retry.Do(ctx, 3, time.Second, func() error {
		resp, err := r.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+r.token()).
			SetHeader("User-Agent", userAgent).
			Get(url)

		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode() == 429:
			return fmt.Errorf("r/%s: %w", subreddit, retry.ErrRateLimited)
		case resp.StatusCode() == 404:
			return retry.Permanent{Err: fmt.Errorf("r/%s not found", subreddit)}
		case resp.StatusCode() == 403:
			return retry.Permanent{Err: fmt.Errorf("r/%s is private", subreddit)}
		case resp.StatusCode() != 200:
			return fmt.Errorf("reddit API returned status %d", resp.StatusCode())
		}

		return json.Unmarshal(resp.Body(), &listing)
	})
	if err != nil {
		return nil, err
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}

	return posts, nil
}

func (r *RedditScraper) toResult(post redditPost) models.ScrapeResult {
	createdAt := time.Unix(int64(post.Created), 0).UTC()

	content := FormatContent(post.Title, [][2]string{
		{"Subreddit", "r/" + post.Subreddit},
		{"Score", strconv.Itoa(post.Score)},
		{"Comments", strconv.Itoa(post.NumComments)},
		{"Author", post.Author},
	}, post.Selftext)

	return models.ScrapeResult{
		URL:     "https://reddit.com" + post.Permalink,
		Title:   post.Title,
		Content: content,
		Source:  "reddit",
		Metadata: map[string]string{
			"source":       "reddit",
			"subreddit":    post.Subreddit,
			"post_id":      post.ID,
			"score":        strconv.Itoa(post.Score),
			"num_comments": strconv.Itoa(post.NumComments),
			"author":       post.Author,
			"created_utc":  createdAt.Format(time.RFC3339),
		},
		ScrapedAt: time.Now().UTC(),
	}
}
