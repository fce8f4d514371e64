package marketdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/metrics"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

// Client fetches JSON from upstream market data feeds.
// Every failure (rate limiter, transport, non-2xx, decode) is reported as
// errors.ErrUpstreamUnavailable so agents never leak raw transport errors.
type Client struct {
	cfg        config.MarketDataConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient creates a rate limited market data client
func NewClient(cfg config.MarketDataConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    newLimiter(cfg.RequestsPerMin),
		log:        logger.Get().With("component", "marketdata"),
	}
}

// newLimiter converts a per-minute quota into a token bucket with a 10% burst
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

// getJSON issues a GET against rawURL with query and decodes the body into dest
func (c *Client) getJSON(ctx context.Context, feed, rawURL string, query url.Values, dest interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamCall(feed, time.Since(start), err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: rate limiter: %v", feed, err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: bad url %q: %v", feed, rawURL, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: create request: %v", feed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: request failed: %v", feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: status %d: %s", feed, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: decode response: %v", feed, err)
	}

	c.log.Debugw("Fetched upstream feed", "feed", feed, "duration", time.Since(start))
	return nil
}
