// Package crawl fetches a hotel homepage plus a handful of same-site contact and
// team pages and merges what the extractor finds on each.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/circuit"
	"prospect-workers/internal/prospect/extract"
)

// ServiceKey prefixes the per-host breaker keys of website fetches.
const ServiceKey = "website"

// HostKey is the breaker key for the site serving rawURL. Each hotel site
// gets its own breaker so one blocked host does not stop the others.
func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ServiceKey
	}
	return ServiceKey + ":" + stripWWW(u.Host)
}

const (
	defaultMaxSubpages = 5
	defaultPageTimeout = 10 * time.Second
	maxPhones          = 5
)

var (
	subpagePattern = regexp.MustCompile(`(?i)(contact|kontakt|about|team|management|leadership|staff|imprint|impressum)`)
	teamPattern    = regexp.MustCompile(`(?i)(team|about|management|leadership|staff)`)
	contactPattern = regexp.MustCompile(`(?i)(contact|kontakt)`)
)

// Getter is the slice of the HTTP fetcher the crawler needs.
type Getter interface {
	Get(ctx context.Context, target string, headers map[string]string) (*commonhttp.Response, error)
}

type Crawler struct {
	fetcher     Getter
	breaker     *circuit.Registry
	logger      logger.Logger
	maxSubpages int
	pageTimeout time.Duration
}

type Option func(*Crawler)

func WithMaxSubpages(n int) Option {
	return func(c *Crawler) {
		if n >= 0 {
			c.maxSubpages = n
		}
	}
}

func WithPageTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		if d > 0 {
			c.pageTimeout = d
		}
	}
}

func New(fetcher Getter, breaker *circuit.Registry, log logger.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:     fetcher,
		breaker:     breaker,
		logger:      log.WithFields(map[string]interface{}{"component": "crawler"}),
		maxSubpages: defaultMaxSubpages,
		pageTimeout: defaultPageTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type subpage struct {
	url     string
	team    bool
	contact bool
}

// Crawl never fails: an unreachable or blocked site yields an empty extract.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) models.WebsiteExtract {
	result := models.EmptyWebsiteExtract()

	root, err := normalizeURL(rootURL)
	if err != nil {
		c.logger.Debug("skipping crawl of invalid url", map[string]interface{}{"url": rootURL, "error": err.Error()})
		return result
	}

	home, err := c.fetch(ctx, root.String())
	if err != nil {
		return result
	}

	agg := newAggregate()
	agg.add(extract.Extract(home), true)

	pages := c.discover(root, home)
	for _, p := range pages {
		if p.contact && result.ContactPageURL == "" {
			result.ContactPageURL = p.url
		}
	}
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		body, err := c.fetch(ctx, p.url)
		if err != nil {
			continue
		}
		agg.add(extract.Extract(body), p.team)
	}

	agg.into(&result)
	c.logger.Debug("crawl finished", map[string]interface{}{
		"url":         root.String(),
		"subpages":    len(pages),
		"emails":      len(result.Emails),
		"teamMembers": len(result.TeamMembers),
	})
	return result
}

func (c *Crawler) fetch(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	body, err := circuit.Execute(ctx, c.breaker, HostKey(target), func(ctx context.Context) (string, error) {
		resp, err := c.fetcher.Get(ctx, target, nil)
		if err != nil {
			return "", err
		}
		if err := resp.Err(); err != nil {
			return "", err
		}
		text := resp.Text()
		if circuit.BodyIndicatesBlock(text) {
			return "", circuit.ErrChallengePage
		}
		return text, nil
	})
	if err != nil {
		fields := map[string]interface{}{"url": target, "error": err.Error()}
		if circuit.IsBlockingError(err) || circuit.IsRateLimitError(err) {
			c.logger.Warn("website fetch blocked", fields)
		} else {
			c.logger.Debug("website fetch failed", fields)
		}
	}
	return body, err
}

// discover lists same-host subpages in document order, capped at maxSubpages.
func (c *Crawler) discover(root *url.URL, html string) []subpage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	rootHost := stripWWW(root.Hostname())
	seen := map[string]bool{canonical(root): true}
	var pages []subpage

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(pages) >= c.maxSubpages {
			return false
		}
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		link, err := root.Parse(href)
		if err != nil {
			return true
		}
		if link.Scheme != "http" && link.Scheme != "https" {
			return true
		}
		if stripWWW(link.Hostname()) != rootHost {
			return true
		}
		if !subpagePattern.MatchString(link.Path) {
			return true
		}
		link.Fragment = ""
		key := canonical(link)
		if seen[key] {
			return true
		}
		seen[key] = true
		pages = append(pages, subpage{
			url:     link.String(),
			team:    teamPattern.MatchString(link.Path),
			contact: contactPattern.MatchString(link.Path),
		})
		return true
	})
	return pages
}

// ExtractDomain returns the lowercased host of rawURL without a leading "www.".
func ExtractDomain(rawURL string) (string, bool) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return "", false
	}
	host := stripWWW(strings.ToLower(u.Hostname()))
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	return host, true
}

func normalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("unsupported url %q", raw)
	}
	return u, nil
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func canonical(u *url.URL) string {
	path := strings.TrimRight(u.Path, "/")
	return stripWWW(u.Hostname()) + path + "?" + u.RawQuery
}
