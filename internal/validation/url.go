package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// URLCacheStats summarizes the validator's cache contents.
type URLCacheStats struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Total   int `json:"total"`
}

// URLValidator checks competitor URLs for syntactic well-formedness and
// live reachability via HEAD requests. Batch validation caps in-flight
// requests to avoid hammering target sites.
type URLValidator struct {
	timeout       time.Duration
	maxRedirects  int
	maxConcurrent int

	mu    sync.RWMutex
	cache map[string]models.URLValidation
	group singleflight.Group
}

// NewURLValidator creates a validator with the given request timeout.
func NewURLValidator(timeout time.Duration) *URLValidator {
	return &URLValidator{
		timeout:       timeout,
		maxRedirects:  5,
		maxConcurrent: 10,
		cache:         make(map[string]models.URLValidation),
	}
}

// NormalizeURL adds a https scheme when missing and strips the trailing
// slash.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	return strings.TrimSuffix(raw, "/")
}

// checkFormat rejects syntactically broken URLs before any network call.
func checkFormat(normalized string) error {
	parsed, err := url.Parse(normalized)
	if err != nil {
		return fmt.Errorf("malformed URL: bad scheme or netloc: %v", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("malformed URL: scheme must be http or https, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("malformed URL: missing netloc")
	}

	if strings.Contains(host, " ") || (!strings.Contains(host, ".") && host != "localhost") {
		return fmt.Errorf("malformed URL: invalid netloc %q", host)
	}

	return nil
}

// Validate normalizes and format-checks a URL, then issues a HEAD request
// following up to maxRedirects redirects. Results are cached by normalized
// URL.
func (v *URLValidator) Validate(ctx context.Context, raw string) models.URLValidation {
	normalized := NormalizeURL(raw)

	if err := checkFormat(normalized); err != nil {
		result := models.URLValidation{
			URL:           raw,
			NormalizedURL: normalized,
			Error:         err.Error(),
		}
		v.store(normalized, result)
		return result
	}

	v.mu.RLock()
	cached, ok := v.cache[normalized]
	v.mu.RUnlock()
	if ok {
		cached.URL = raw
		return cached
	}

	result, _, _ := v.group.Do(normalized, func() (interface{}, error) {
		res := v.head(ctx, normalized)
		v.store(normalized, res)
		return res, nil
	})

	validation := result.(models.URLValidation)
	validation.URL = raw
	return validation
}

func (v *URLValidator) head(ctx context.Context, normalized string) models.URLValidation {
	result := models.URLValidation{NormalizedURL: normalized}

	redirects := 0
	client := resty.New().
		SetTimeout(v.timeout).
		SetHeader("User-Agent", "StartInsight-Pipeline/1.0").
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			redirects = len(via)
			if len(via) >= v.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", v.maxRedirects)
			}
			return nil
		}))

	resp, err := client.R().SetContext(ctx).Head(normalized)
	result.RedirectCount = redirects

	if err != nil {
		result.Error = classifyNetworkError(err, v.maxRedirects)
		logrus.Debugf("URL validation failed for %s: %s", normalized, result.Error)
		return result
	}

	result.StatusCode = resp.StatusCode()
	result.Latency = resp.Time()
	if final := resp.RawResponse.Request.URL; final != nil {
		result.FinalURL = final.String()
	}

	if resp.StatusCode() >= 400 {
		result.Error = fmt.Sprintf("HTTP error: status %d", resp.StatusCode())
		return result
	}

	result.Valid = true
	return result
}

func classifyNetworkError(err error, maxRedirects int) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, fmt.Sprintf("stopped after %d redirects", maxRedirects)):
		return fmt.Sprintf("too many redirects (more than %d)", maxRedirects)
	case isTimeout(err):
		return "timeout"
	default:
		return fmt.Sprintf("connection error: %v", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "Client.Timeout")
}

// ValidateAll validates URLs with bounded concurrency, preserving input
// order in the returned slice.
func (v *URLValidator) ValidateAll(ctx context.Context, urls []string) []models.URLValidation {
	results := make([]models.URLValidation, len(urls))
	sem := make(chan struct{}, v.maxConcurrent)
	var wg sync.WaitGroup

	for i, raw := range urls {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = v.Validate(ctx, raw)
		}(i, raw)
	}

	wg.Wait()
	return results
}

// CacheStats reports how many cached validations are valid and invalid.
func (v *URLValidator) CacheStats() URLCacheStats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	stats := URLCacheStats{Total: len(v.cache)}
	for _, res := range v.cache {
		if res.Valid {
			stats.Valid++
		} else {
			stats.Invalid++
		}
	}
	return stats
}

// ClearCache drops all cached validations.
func (v *URLValidator) ClearCache() {
	v.mu.Lock()
	v.cache = make(map[string]models.URLValidation)
	v.mu.Unlock()
}

func (v *URLValidator) store(key string, result models.URLValidation) {
	v.mu.Lock()
	v.cache[key] = result
	v.mu.Unlock()
}
