package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/retry"
	"github.com/startinsight/signal-pipeline/internal/scrapers"
)

// DefaultGrowthTolerance is the percentage slack allowed between a claimed
// growth figure and the computed one before the claim is flagged.
const DefaultGrowthTolerance = 50.0

// TrendLookup fetches a relative-interest time series (0-100) for a keyword.
// It is satisfied by the same client the trends scraper uses.
type TrendLookup interface {
	Series(ctx context.Context, keyword, timeframe, geo string) ([]float64, error)
}

// TrendKeyword is an LLM-asserted trend claim. Volume and Growth are
// replaced with verified formatted values on success.
type TrendKeyword struct {
	Keyword string `json:"keyword"`
	Volume  string `json:"volume"`
	Growth  string `json:"growth"`
}

// TrendVerifier cross-checks claimed trend keywords against the live trends
// source. A minimum delay is enforced between consecutive outbound calls
// because the upstream API rate-limits per caller.
type TrendVerifier struct {
	lookup    TrendLookup
	timeframe string
	geo       string
	minDelay  time.Duration

	delayMu  sync.Mutex
	lastCall time.Time

	mu    sync.RWMutex
	cache map[string]models.TrendVerification
	group singleflight.Group
}

// NewTrendVerifier creates a verifier over the given lookup.
func NewTrendVerifier(lookup TrendLookup, minDelay time.Duration) *TrendVerifier {
	return &TrendVerifier{
		lookup:    lookup,
		timeframe: "today 3-m",
		geo:       "",
		minDelay:  minDelay,
		cache:     make(map[string]models.TrendVerification),
	}
}

// Verify fetches the interest series for a keyword and computes the actual
// volume (mean interest) and growth (first-half vs second-half mean). API
// errors produce a non-verified result, never an error to the caller.
func (t *TrendVerifier) Verify(ctx context.Context, keyword, timeframe, geo string) models.TrendVerification {
	normalized := strings.ToLower(strings.TrimSpace(keyword))
	if normalized == "" {
		return models.TrendVerification{Keyword: keyword, Error: "empty keyword"}
	}
	if timeframe == "" {
		timeframe = t.timeframe
	}
	if geo == "" {
		geo = t.geo
	}

	// The same keyword queried over a different window or region is a
	// different series, so the key covers all three.
	key := normalized + "|" + timeframe + "|" + geo

	t.mu.RLock()
	cached, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		cached.Keyword = keyword
		return cached
	}

	result, _, _ := t.group.Do(key, func() (interface{}, error) {
		res := t.fetch(ctx, normalized, timeframe, geo)

		t.mu.Lock()
		t.cache[key] = res
		t.mu.Unlock()

		return res, nil
	})

	verification := result.(models.TrendVerification)
	verification.Keyword = keyword
	return verification
}

func (t *TrendVerifier) fetch(ctx context.Context, keyword, timeframe, geo string) models.TrendVerification {
	if t.lookup == nil {
		return models.TrendVerification{Error: ErrNotConfigured.Error()}
	}

	t.waitForSlot(ctx)

	var series []float64
	err := retry.Do(ctx, 3, 2*time.Second, func() error {
		var err error
		series, err = t.lookup.Series(ctx, keyword, timeframe, geo)
		return err
	})
	if err != nil {
		logrus.Warnf("Trend verification failed for %q: %v", keyword, err)
		return models.TrendVerification{Error: err.Error()}
	}

	if len(series) == 0 {
		return models.TrendVerification{Error: "empty interest series"}
	}

	return models.TrendVerification{
		Verified:            true,
		ActualVolume:        scrapers.SeriesMean(series),
		ActualGrowthPercent: scrapers.SeriesGrowthPercent(series),
	}
}

// waitForSlot blocks until the minimum inter-request delay has elapsed.
func (t *TrendVerifier) waitForSlot(ctx context.Context) {
	t.delayMu.Lock()
	wait := t.minDelay - time.Since(t.lastCall)
	t.lastCall = time.Now().Add(wait)
	t.delayMu.Unlock()

	if wait <= 0 {
		return
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// VerifyAll verifies each keyword independently and replaces the claimed
// volume/growth strings with values derived from the live series. Unverified
// keywords keep their claims but are counted so the caller can decide. The
// per-keyword verifications carry the original claims alongside the computed
// values.
func (t *TrendVerifier) VerifyAll(ctx context.Context, keywords []TrendKeyword) ([]TrendKeyword, []models.TrendVerification, int, int) {
	verified := 0
	failed := 0

	out := make([]TrendKeyword, 0, len(keywords))
	results := make([]models.TrendVerification, 0, len(keywords))
	for _, kw := range keywords {
		result := t.Verify(ctx, kw.Keyword, "", "")
		result.ClaimedVolume = kw.Volume
		result.ClaimedGrowth = kw.Growth

		if result.Verified {
			if claimed, ok := parseGrowthClaim(kw.Growth); ok &&
				!CompareGrowthClaims(claimed, result.ActualGrowthPercent, 0) {
				logrus.Warnf("Growth claim %s for %q is far from the computed %s",
					kw.Growth, kw.Keyword, FormatGrowth(result.ActualGrowthPercent))
			}
			kw.Volume = FormatVolume(result.ActualVolume)
			kw.Growth = FormatGrowth(result.ActualGrowthPercent)
			verified++
		} else {
			logrus.Infof("Trend keyword %q left unverified: %s", kw.Keyword, result.Error)
			failed++
		}
		out = append(out, kw)
		results = append(results, result)
	}

	return out, results, verified, failed
}

// parseGrowthClaim extracts the percentage from a claimed growth string such
// as "+500%" or "-25 %".
func parseGrowthClaim(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ClearCache drops all cached verifications.
func (t *TrendVerifier) ClearCache() {
	t.mu.Lock()
	t.cache = make(map[string]models.TrendVerification)
	t.mu.Unlock()
}

// FormatVolume buckets mean relative interest (0-100) into a label.
func FormatVolume(volume float64) string {
	switch {
	case volume >= 60:
		return "High"
	case volume >= 30:
		return "Medium"
	case volume >= 10:
		return "Low"
	default:
		return "Very Low"
	}
}

// FormatGrowth renders a growth percentage as a signed string, or "N/A"
// when the value could not be determined.
func FormatGrowth(percent float64) string {
	if math.IsInf(percent, 0) || math.IsNaN(percent) {
		return "N/A"
	}
	return fmt.Sprintf("%+.0f%%", percent)
}

// CompareGrowthClaims reports whether a claimed growth percentage is within
// tolerancePercent of the actual computed percentage. A non-positive
// tolerance falls back to DefaultGrowthTolerance. Used to flag, not reject,
// suspicious claims.
func CompareGrowthClaims(claimed, actual, tolerancePercent float64) bool {
	if tolerancePercent <= 0 {
		tolerancePercent = DefaultGrowthTolerance
	}

	if math.IsInf(actual, 0) || math.IsNaN(actual) {
		return false
	}

	if actual == 0 {
		return math.Abs(claimed) <= tolerancePercent
	}

	return math.Abs(claimed-actual) <= math.Abs(actual)*tolerancePercent/100
}

// GoogleTrendsClient is the live TrendLookup against the Google Trends
// widget API. It also satisfies the trends scraper's lookup interface.
type GoogleTrendsClient struct {
	client  *resty.Client
	baseURL string
}

type trendsTimelineResponse struct {
	Default struct {
		TimelineData []struct {
			Value []float64 `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}

// NewGoogleTrendsClient creates a trends client with the given timeout.
func NewGoogleTrendsClient(timeout time.Duration) *GoogleTrendsClient {
	return &GoogleTrendsClient{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "StartInsight-Pipeline/1.0"),
		baseURL: "https://trends.google.com/trends/api/widgetdata/multiline",
	}
}

func (c *GoogleTrendsClient) Series(ctx context.Context, keyword, timeframe, geo string) ([]float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"hl":        "en-US",
			"tz":        "0",
			"keyword":   keyword,
			"timeframe": timeframe,
			"geo":       geo,
		}).
		Get(c.baseURL)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode() == 429 {
		return nil, fmt.Errorf("trends API: %w", retry.ErrRateLimited)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}

	// The widget API prefixes its JSON payload with an anti-hijacking
	// sequence that has to be stripped before decoding.
	body := strings.TrimPrefix(string(resp.Body()), ")]}',\n")

	var timeline trendsTimelineResponse
	if err := json.Unmarshal([]byte(body), &timeline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	series := make([]float64, 0, len(timeline.Default.TimelineData))
	for _, point := range timeline.Default.TimelineData {
		if len(point.Value) > 0 {
			series = append(series, point.Value[0])
		}
	}

	return series, nil
}
