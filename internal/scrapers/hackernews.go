package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
)

const hnBaseURL = "https://hacker-news.firebaseio.com/v0"

// HackerNewsScraper collects recent top and Show HN stories. The two lists
// overlap, so results are deduplicated by item ID before being returned.
type HackerNewsScraper struct {
	minScore     int
	maxResults   int
	perListItems int
	client       *resty.Client
}

type hackerNewsItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// NewHackerNewsScraper creates a Hacker News scraper.
func NewHackerNewsScraper(minScore, maxResults int, timeout time.Duration) *HackerNewsScraper {
	return &HackerNewsScraper{
		minScore:     minScore,
		maxResults:   maxResults,
		perListItems: 100,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
	}
}

func (h *HackerNewsScraper) Name() string {
	return "hacker_news"
}

func (h *HackerNewsScraper) Enabled() bool {
	return true // Hacker News API doesn't require authentication
}

// Scrape fetches top and Show HN stories, dropping items below the score
// threshold. A failure on one list or one item is logged and skipped.
func (h *HackerNewsScraper) Scrape(ctx context.Context) ([]models.ScrapeResult, error) {
	var items []ranked
	fetchedLists := 0

	for _, list := range []string{"topstories", "showstories"} {
		ids, err := h.getStoryIDs(ctx, list)
		if err != nil {
			logrus.Errorf("Failed to fetch HN %s: %v", list, err)
			continue
		}
		fetchedLists++

		if len(ids) > h.perListItems {
			ids = ids[:h.perListItems]
		}

		for _, id := range ids {
			select {
			case <-ctx.Done():
				return dedupeSortCap(items, h.maxResults), ctx.Err()
			default:
			}

			item, err := h.getItem(ctx, id)
			if err != nil {
				logrus.Debugf("Failed to fetch HN item %d: %v", id, err)
				continue
			}

			if item == nil || item.Title == "" || item.Score < h.minScore {
				continue
			}

			items = append(items, ranked{
				ID:     strconv.Itoa(item.ID),
				Score:  item.Score,
				Result: h.toResult(item),
			})
		}
	}

	if fetchedLists == 0 {
		logrus.Error("All Hacker News story lists failed")
		return nil, nil
	}

	return dedupeSortCap(items, h.maxResults), nil
}

func (h *HackerNewsScraper) getStoryIDs(ctx context.Context, list string) ([]int, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/%s.json", hnBaseURL, list))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var ids []int
	if err := json.Unmarshal(resp.Body(), &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

func (h *HackerNewsScraper) getItem(ctx context.Context, id int) (*hackerNewsItem, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/item/%d.json", hnBaseURL, id))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d for item %d", resp.StatusCode(), id)
	}

	var item hackerNewsItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, err
	}

	return &item, nil
}

func (h *HackerNewsScraper) toResult(item *hackerNewsItem) models.ScrapeResult {
	itemURL := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID)
	if item.Type == "story" && item.URL != "" {
		itemURL = item.URL
	}

	content := FormatContent(item.Title, [][2]string{
		{"Score", strconv.Itoa(item.Score)},
		{"Comments", strconv.Itoa(item.Descendants)},
		{"Author", item.By},
	}, item.Text)

	return models.ScrapeResult{
		URL:     itemURL,
		Title:   item.Title,
		Content: content,
		Source:  "hacker_news",
		Metadata: map[string]string{
			"source":      "hacker_news",
			"item_id":     strconv.Itoa(item.ID),
			"score":       strconv.Itoa(item.Score),
			"descendants": strconv.Itoa(item.Descendants),
			"by":          item.By,
			"type":        item.Type,
		},
		ScrapedAt: time.Now().UTC(),
	}
}
