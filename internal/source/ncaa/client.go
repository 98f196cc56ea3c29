// Package ncaa is the stats.ncaa.org backend: it lists scoreboard game links
// for a date and extracts box scores from individual-stats pages. It is a
// thin shim over the HTTP client and HTML selectors; all scheduling logic
// lives above it.
package ncaa

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
	"github.com/courtsync-io/courtsync/internal/source"
)

// DefaultBaseURL is the stats.ncaa.org origin.
const DefaultBaseURL = "https://stats.ncaa.org"

// Config configures the client.
type Config struct {
	// BaseURL overrides the origin, for tests against a local server.
	BaseURL string

	// TimeoutMs bounds each HTTP request.
	TimeoutMs int64

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		TimeoutMs: 30000,
		UserAgent: "courtsync/1.0",
	}
}

// Client implements source.Source against stats.ncaa.org.
type Client struct {
	cfg  Config
	http *resty.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 30000
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond).
		SetHeader("User-Agent", cfg.UserAgent)
	return &Client{cfg: cfg, http: http}
}

// sportCode maps a gender to the scoreboard sport code.
func sportCode(g partition.Gender) string {
	if g == partition.GenderWomen {
		return "WBB"
	}
	return "MBB"
}

// divisionNumber maps a division to the scoreboard query value.
func divisionNumber(d partition.Division) string {
	switch d {
	case partition.DivisionD2:
		return "2"
	case partition.DivisionD3:
		return "3"
	default:
		return "1"
	}
}

// scoreboardQuery builds the livestream_scoreboards query for a partition
// and date.
func scoreboardQuery(date chrono.Date, key partition.Key) string {
	q := url.Values{}
	q.Set("utf8", "✓")
	q.Set("sport_code", sportCode(key.Gender))
	q.Set("division", divisionNumber(key.Division))
	q.Set("game_date", date.US())
	q.Set("commit", "Submit")
	return "/contests/livestream_scoreboards?" + q.Encode()
}

var contestLinkRe = regexp.MustCompile(`/contests/(\d+)`)

// ListCandidates fetches the partition's scoreboard page and extracts every
// contest id linked from it.
func (c *Client) ListCandidates(ctx context.Context, date chrono.Date, key partition.Key) ([]record.GameID, error) {
	resp, err := c.http.R().SetContext(ctx).Get(scoreboardQuery(date, key))
	if err != nil {
		return nil, source.Transient(err)
	}
	if resp.IsError() {
		return nil, source.Transient(fmt.Errorf("scoreboard returned %d", resp.StatusCode()))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, source.Transient(fmt.Errorf("parse scoreboard: %w", err))
	}

	seen := make(map[record.GameID]struct{})
	var ids []record.GameID
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := contestLinkRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := record.GameID(m[1])
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})

	return ids, nil
}

var _ source.Source = (*Client)(nil)
