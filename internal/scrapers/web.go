package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/retry"
)

// WebScraper fetches competitor landing pages and extracts a normalized
// text summary. Hosts that disallow crawling in robots.txt are skipped.
type WebScraper struct {
	urls   []string
	client *resty.Client

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

// NewWebScraper creates a scraper over the given page URLs.
func NewWebScraper(urls []string, timeout time.Duration) *WebScraper {
	return &WebScraper{
		urls: urls,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		robots: make(map[string]*robotstxt.RobotsData),
	}
}

func (w *WebScraper) Name() string {
	return "web"
}

func (w *WebScraper) Enabled() bool {
	return len(w.urls) > 0
}

// Scrape fetches every configured page, isolating per-page failures.
func (w *WebScraper) Scrape(ctx context.Context) ([]models.ScrapeResult, error) {
	var results []models.ScrapeResult

	for _, pageURL := range w.urls {
		result, err := w.scrapePage(ctx, pageURL)
		if err != nil {
			logrus.Errorf("Failed to scrape %s: %v", pageURL, err)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

func (w *WebScraper) scrapePage(ctx context.Context, pageURL string) (models.ScrapeResult, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return models.ScrapeResult{}, fmt.Errorf("invalid page URL %q", pageURL)
	}

	allowed, err := w.allowedByRobots(ctx, parsed)
	if err != nil {
		logrus.Debugf("robots.txt check failed for %s, proceeding: %v", parsed.Host, err)
	} else if !allowed {
		return models.ScrapeResult{}, fmt.Errorf("disallowed by robots.txt: %s", pageURL)
	}

	var body []byte
	err = retry.Do(ctx, 3, time.Second, func() error {
		resp, err := w.client.R().SetContext(ctx).Get(pageURL)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode() == 429:
			return fmt.Errorf("%s: %w", pageURL, retry.ErrRateLimited)
		case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
			return retry.Permanent{Err: fmt.Errorf("page returned status %d", resp.StatusCode())}
		case resp.StatusCode() != 200:
			return fmt.Errorf("page returned status %d", resp.StatusCode())
		}

		body = resp.Body()
		return nil
	})
	if err != nil {
		return models.ScrapeResult{}, err
	}

	return w.extract(pageURL, body)
}

func (w *WebScraper) extract(pageURL string, body []byte) (models.ScrapeResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return models.ScrapeResult{}, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).Attr("content")

	var sections []string
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			sections = append(sections, "### "+text)
		}
	})
	doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			sections = append(sections, text)
		}
		return i < 20
	})

	content := FormatContent(title, [][2]string{
		{"URL", pageURL},
		{"Description", CleanContent(description)},
	}, strings.Join(sections, "\n\n"))

	return models.ScrapeResult{
		URL:     pageURL,
		Title:   title,
		Content: content,
		Source:  "web",
		Metadata: map[string]string{
			"source":      "web",
			"page_url":    pageURL,
			"description": CleanContent(description),
		},
		ScrapedAt: time.Now().UTC(),
	}, nil
}

func (w *WebScraper) allowedByRobots(ctx context.Context, page *url.URL) (bool, error) {
	w.mu.Lock()
	data, ok := w.robots[page.Host]
	w.mu.Unlock()

	if !ok {
		resp, err := w.client.R().
			SetContext(ctx).
			Get(fmt.Sprintf("%s://%s/robots.txt", page.Scheme, page.Host))
		if err != nil {
			return false, err
		}

		data, err = robotstxt.FromStatusAndBytes(resp.StatusCode(), resp.Body())
		if err != nil {
			return false, err
		}

		w.mu.Lock()
		w.robots[page.Host] = data
		w.mu.Unlock()
	}

	return data.TestAgent(page.Path, userAgent), nil
}
