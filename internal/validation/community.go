package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// CommunityInfo is the ground truth fetched for one community.
type CommunityInfo struct {
	Name        string
	Subscribers int64
}

// CommunityLookup fetches live community metadata from the authoritative
// source.
type CommunityLookup interface {
	About(ctx context.Context, name string) (*CommunityInfo, error)
}

// CommunitySignal is an LLM-asserted community claim the caller wants
// verified. Members is replaced with the bucketed real count on success.
type CommunitySignal struct {
	Community string `json:"community"`
	Members   string `json:"members"`
}

// CommunityValidator checks claimed communities against live subscriber
// counts. Results are cached by normalized name for the process lifetime.
type CommunityValidator struct {
	lookup CommunityLookup

	mu    sync.RWMutex
	cache map[string]models.CommunityValidation
	group singleflight.Group
}

// NewCommunityValidator creates a validator over the given lookup. A nil
// lookup produces "not configured" results without any network calls.
func NewCommunityValidator(lookup CommunityLookup) *CommunityValidator {
	return &CommunityValidator{
		lookup: lookup,
		cache:  make(map[string]models.CommunityValidation),
	}
}

// NormalizeCommunityName strips source prefixes and whitespace from a
// community name. "r/SaaS", "/r/saas " and "saas" all normalize to "saas".
func NormalizeCommunityName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	name = strings.TrimPrefix(name, "r/")
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks one community claim, hitting the live source at most once
// per normalized name until ClearCache is called.
func (v *CommunityValidator) Validate(ctx context.Context, subject string) models.CommunityValidation {
	key := NormalizeCommunityName(subject)
	if key == "" {
		return models.CommunityValidation{
			Subject: subject,
			Error:   "empty community name",
		}
	}

	v.mu.RLock()
	cached, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		cached.Subject = subject
		return cached
	}

	result, _, _ := v.group.Do(key, func() (interface{}, error) {
		res := v.fetch(ctx, key)

		v.mu.Lock()
		v.cache[key] = res
		v.mu.Unlock()

		return res, nil
	})

	validation := result.(models.CommunityValidation)
	validation.Subject = subject
	return validation
}

func (v *CommunityValidator) fetch(ctx context.Context, key string) models.CommunityValidation {
	if v.lookup == nil {
		return models.CommunityValidation{Error: ErrNotConfigured.Error()}
	}

	info, err := v.lookup.About(ctx, key)
	if err != nil {
		logrus.Warnf("Community validation failed for %q: %v", key, err)
		return models.CommunityValidation{Error: err.Error()}
	}

	return models.CommunityValidation{
		Verified:      true,
		Subscribers:   info.Subscribers,
		FormattedSize: FormatMemberCount(info.Subscribers),
	}
}

// ValidateAll validates each signal independently and returns the verified
// subset with real member counts, the per-signal validations with the
// original claims attached, and valid/invalid tallies. Falling below
// minValidRequired logs a warning; filtering decisions stay with the caller.
func (v *CommunityValidator) ValidateAll(ctx context.Context, signals []CommunitySignal, minValidRequired int) ([]CommunitySignal, []models.CommunityValidation, int, int) {
	var verified []CommunitySignal
	results := make([]models.CommunityValidation, 0, len(signals))
	invalid := 0

	for _, signal := range signals {
		result := v.Validate(ctx, signal.Community)
		result.ClaimedSize = signal.Members
		results = append(results, result)

		if !result.Verified {
			logrus.Infof("Dropping unverified community %q: %s", signal.Community, result.Error)
			invalid++
			continue
		}

		signal.Members = result.FormattedSize
		verified = append(verified, signal)
	}

	if len(verified) < minValidRequired {
		logrus.Warnf("Only %d of %d community signals verified (minimum %d)",
			len(verified), len(signals), minValidRequired)
	}

	return verified, results, len(verified), invalid
}

// ClearCache drops all cached validation results.
func (v *CommunityValidator) ClearCache() {
	v.mu.Lock()
	v.cache = make(map[string]models.CommunityValidation)
	v.mu.Unlock()
}

// FormatMemberCount buckets a real subscriber count into a human-readable
// size string: 2,500,000 becomes "2.5M+ members", 150,000 becomes "150K+
// members", smaller communities show the exact count.
func FormatMemberCount(count int64) string {
	switch {
	case count >= 1_000_000:
		millions := math.Floor(float64(count)/100_000) / 10
		if millions == math.Trunc(millions) {
			return fmt.Sprintf("%.0fM+ members", millions)
		}
		return fmt.Sprintf("%.1fM+ members", millions)
	case count >= 1_000:
		return fmt.Sprintf("%dK+ members", count/1_000)
	default:
		return fmt.Sprintf("%d members", count)
	}
}

// RedditCommunityClient is the live CommunityLookup backed by the Reddit
// API. The underlying client is synchronous; calls are safe to issue from
// concurrent validations.
type RedditCommunityClient struct {
	clientID     string
	clientSecret string
	client       *resty.Client

	mu          sync.Mutex
	accessToken string
}

type redditAboutResponse struct {
	Data struct {
		DisplayName string `json:"display_name"`
		Subscribers int64  `json:"subscribers"`
	} `json:"data"`
}

// NewRedditCommunityClient creates a Reddit-backed lookup. Returns nil when
// credentials are missing so the validator short-circuits to "not
// configured" instead of attempting network calls.
func NewRedditCommunityClient(clientID, clientSecret string, timeout time.Duration) *RedditCommunityClient {
	if clientID == "" || clientSecret == "" {
		return nil
	}

	return &RedditCommunityClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "StartInsight-Pipeline/1.0"),
	}
}

func (c *RedditCommunityClient) About(ctx context.Context, name string) (*CommunityInfo, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		Get(fmt.Sprintf("https://oauth.reddit.com/r/%s/about.json", name))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode() == 404:
		return nil, fmt.Errorf("%w: r/%s", ErrNotFound, name)
	case resp.StatusCode() == 403:
		return nil, fmt.Errorf("%w: r/%s", ErrForbidden, name)
	case resp.StatusCode() >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	case resp.StatusCode() != 200:
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}

	// Reddit answers searches for misspelled names with a redirect to
	// /subreddits/search; treat any rewritten path as a miss.
	if final := resp.RawResponse.Request.URL; final != nil &&
		!strings.Contains(strings.ToLower(final.Path), "/r/"+name) {
		return nil, fmt.Errorf("%w: r/%s", ErrRedirected, name)
	}

	var about redditAboutResponse
	if err := json.Unmarshal(resp.Body(), &about); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if about.Data.DisplayName == "" {
		return nil, fmt.Errorf("%w: r/%s", ErrNotFound, name)
	}

	return &CommunityInfo{
		Name:        about.Data.DisplayName,
		Subscribers: about.Data.Subscribers,
	}, nil
}

func (c *RedditCommunityClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post("https://www.reddit.com/api/v1/access_token")

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("auth returned status %d", resp.StatusCode())
	}

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body(), &auth); err != nil {
		return "", err
	}

	c.accessToken = auth.AccessToken
	return c.accessToken, nil
}
