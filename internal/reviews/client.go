package reviews

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"ozonscout/internal/extract"
)

const (
	defaultBaseURL = "https://www.ozon.ru"
	entrypointPath = "/api/entrypoint-api.bx/page/json/v2"
)

// Summary is the outcome of one paged review fetch, newest first. Timestamps
// are review creation times; Total is the all-time review count reported by
// the paging section.
type Summary struct {
	Timestamps   []time.Time
	Total        int
	PagesFetched int
}

// Client reads review timestamps through the entrypoint API. Each page holds
// 30 reviews sorted by date; paging continues through the nextButton path
// until the page limit is hit or the reviews get older than 30 days.
type Client struct {
	http    *resty.Client
	baseURL string
	log     *zap.SugaredLogger
}

func NewClient(log *zap.SugaredLogger) *Client {
	client := resty.New().
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetTimeout(30 * time.Second)
	return &Client{http: client, baseURL: defaultBaseURL, log: log}
}

// WithBaseURL points the client at another host, mainly for tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// RecentTimestamps pages through a product's reviews and collects their
// creation times. Paging stops early once the oldest fetched review falls
// outside the monthly estimation window.
func (c *Client) RecentTimestamps(ctx context.Context, sku string, maxPages int) (Summary, error) {
	if maxPages <= 0 {
		maxPages = 5
	}
	var sum Summary
	cutoff := time.Now().AddDate(0, 0, -30)
	nextPath := fmt.Sprintf("/reviews/%s?sort=date_desc", sku)

	for page := 1; page <= maxPages; page++ {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("url", nextPath).
			Get(c.baseURL + entrypointPath)
		if err != nil {
			return sum, err
		}
		if res.StatusCode() != 200 {
			return sum, fmt.Errorf("reviews: page %d: status %d", page, res.StatusCode())
		}

		widgets, err := extract.DecodeEnvelope(res.Body())
		if err != nil {
			return sum, fmt.Errorf("reviews: page %d: %w", page, err)
		}

		stamps, total, nextButton := reviewsFromWidgets(widgets)
		sum.PagesFetched = page
		if total > 0 {
			sum.Total = total
		}
		if len(stamps) == 0 {
			break
		}
		sum.Timestamps = append(sum.Timestamps, stamps...)

		oldest := sum.Timestamps[len(sum.Timestamps)-1]
		if oldest.Before(cutoff) {
			break
		}
		if nextButton == "" {
			break
		}
		nextPath = "/reviews/" + sku + nextButton

		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	c.log.Debugw("reviews fetched",
		"sku", sku,
		"timestamps", len(sum.Timestamps),
		"total", sum.Total,
		"pages", sum.PagesFetched,
	)
	return sum, nil
}

// CountSince reports how many fetched reviews are newer than the given time.
func (s Summary) CountSince(since time.Time) int {
	n := 0
	for _, ts := range s.Timestamps {
		if ts.After(since) {
			n++
		}
	}
	return n
}

// reviewsFromWidgets pulls timestamps and paging data out of the
// webListReviews widget.
func reviewsFromWidgets(widgets map[string]any) (stamps []time.Time, total int, nextButton string) {
	for key, v := range widgets {
		if !strings.Contains(key, "webListReviews") {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if paging, ok := m["paging"].(map[string]any); ok {
			if t, ok := paging["total"].(float64); ok {
				total = int(t)
			}
			if nb, ok := paging["nextButton"].(string); ok {
				nextButton = sanitizeNextButton(nb)
			}
		}
		if list, ok := m["reviews"].([]any); ok {
			for _, r := range list {
				rm, ok := r.(map[string]any)
				if !ok {
					continue
				}
				if ts, ok := rm["createdAt"].(float64); ok && ts > 0 {
					stamps = append(stamps, time.Unix(int64(ts), 0))
				}
			}
		}
	}
	return stamps, total, nextButton
}

// sanitizeNextButton keeps only the query portion of the paging link.
func sanitizeNextButton(nb string) string {
	if nb == "" {
		return ""
	}
	if u, err := url.Parse(nb); err == nil && u.RawQuery != "" {
		return "?" + u.RawQuery
	}
	return nb
}
