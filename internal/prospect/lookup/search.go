package lookup

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
	"prospect-workers/internal/prospect/names"
)

var searchTitles = []string{
	"Director of Operations",
	"Managing Director",
	"General Manager",
	"Hotel Manager",
	"Geschäftsführer",
	"Direktor",
	"Director",
	"Owner",
	"CEO",
}

const searchName = `([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,4})`

var (
	searchTitle     = `(?i:(` + quoteAll(searchTitles) + `))`
	searchNameTitle = regexp.MustCompile(searchName + `\s*[-–—|]\s*` + searchTitle)
	searchTitleName = regexp.MustCompile(searchTitle + `\s*:\s*` + searchName)
)

type SearchAdapter struct {
	adapter
	baseURL string
}

func NewSearchAdapter(fetcher Fetcher, breaker *circuit.Registry, log logger.Logger, baseURL string, timeout time.Duration) *SearchAdapter {
	a := newAdapter(fetcher, breaker, log, ServiceSearch, timeout)
	a.htmlPages = true
	return &SearchAdapter{adapter: a, baseURL: baseURL}
}

// Query is the search string sent for business.
func Query(business string) string {
	return fmt.Sprintf(`"%s" "general manager" OR "hotel manager" OR "director"`, strings.TrimSpace(business))
}

// FindDecisionMakers searches for named managers of business. Only names that
// pass the person-name heuristic are returned.
func (s *SearchAdapter) FindDecisionMakers(ctx context.Context, business string) []models.CandidateName {
	out := []models.CandidateName{}
	if strings.TrimSpace(business) == "" {
		return out
	}

	target := s.baseURL + "?" + url.Values{"q": {Query(business)}}.Encode()
	resp, err := s.call(ctx, func(ctx context.Context) (*commonhttp.Response, error) {
		return s.fetcher.Get(ctx, target, nil)
	})
	if err != nil || !resp.OK() {
		return out
	}

	out = ParseSearchResults(resp.Text())
	s.logger.Debug("search finished", map[string]interface{}{"business": business, "candidates": len(out)})
	return out
}

// ParseSearchResults scans result titles and snippets for "Name - Title" and
// "Title: Name" pairs.
func ParseSearchResults(html string) []models.CandidateName {
	out := []models.CandidateName{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out
	}

	var blocks []string
	doc.Find(".result__title, .result__snippet").Each(func(_ int, sel *goquery.Selection) {
		blocks = append(blocks, sel.Text())
	})
	if len(blocks) == 0 {
		blocks = append(blocks, doc.Find("body").Text())
	}

	seen := map[string]bool{}
	add := func(rawName, rawTitle string) {
		name := names.TrimToPerson(rawName)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.CandidateName{
			Name:   name,
			Title:  canonicalSearchTitle(rawTitle),
			Source: models.SourceSearch,
		})
	}

	for _, block := range blocks {
		block = strings.Join(strings.Fields(block), " ")
		for _, m := range searchNameTitle.FindAllStringSubmatch(block, -1) {
			add(m[1], m[2])
		}
		for _, m := range searchTitleName.FindAllStringSubmatch(block, -1) {
			add(m[2], m[1])
		}
	}
	return out
}

func canonicalSearchTitle(raw string) string {
	for _, t := range searchTitles {
		if strings.EqualFold(t, raw) {
			return t
		}
	}
	return raw
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(quoted, "|")
}
