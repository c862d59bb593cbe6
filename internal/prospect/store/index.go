package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
)

// ProspectDocument is the search view of an enriched prospect.
type ProspectDocument struct {
	ID           string         `json:"id"`
	PropertyName string         `json:"propertyName"`
	City         string         `json:"city,omitempty"`
	Country      string         `json:"country,omitempty"`
	Website      string         `json:"website,omitempty"`
	ContactName  string         `json:"contactName,omitempty"`
	ContactRole  string         `json:"contactRole,omitempty"`
	Email        string         `json:"email,omitempty"`
	Confidence   string         `json:"confidence"`
	StarRating   int            `json:"starRating,omitempty"`
	ChainBrand   string         `json:"chainBrand,omitempty"`
	Amenities    []string       `json:"amenities,omitempty"`
	Score        int            `json:"score"`
	Breakdown    map[string]int `json:"breakdown"`
	Tier         string         `json:"tier"`
	IndexedAt    time.Time      `json:"indexedAt"`
}

type ProspectIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewProspectIndex(client *elasticsearch.Client, index string, log logger.Logger) *ProspectIndex {
	return &ProspectIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "prospect-index", "index": index}),
		now:    time.Now,
	}
}

func documentFor(ep models.EnrichedProspect, at time.Time) ProspectDocument {
	p := ep.Prospect
	doc := ProspectDocument{
		ID:           p.ID,
		PropertyName: p.PropertyName,
		City:         p.City,
		Country:      p.Country,
		Website:      p.Website,
		ContactName:  ep.Enrichment.ContactName,
		ContactRole:  ep.Enrichment.ContactRole,
		Confidence:   string(ep.Enrichment.ConfidenceScore),
		StarRating:   p.StarRating,
		ChainBrand:   p.ChainBrand,
		Amenities:    ep.Website.PropertyInfo.Amenities,
		Score:        ep.Score.Total,
		Breakdown:    ep.Score.Breakdown,
		Tier:         ep.Tier,
		IndexedAt:    at.UTC(),
	}
	if ep.Enrichment.ValidatedEmail != nil {
		doc.Email = *ep.Enrichment.ValidatedEmail
	}
	return doc
}

// Index upserts the prospect document keyed by prospect id.
func (x *ProspectIndex) Index(ctx context.Context, ep models.EnrichedProspect) error {
	body, err := json.Marshal(documentFor(ep, x.now()))
	if err != nil {
		return fmt.Errorf("marshal prospect document: %w", err)
	}

	res, err := x.client.Index(
		x.index,
		bytes.NewReader(body),
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(ep.Prospect.ID),
	)
	if err != nil {
		return fmt.Errorf("index prospect %s: %w", ep.Prospect.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("index prospect %s: %s: %s", ep.Prospect.ID, res.Status(), bytes.TrimSpace(msg))
	}

	x.logger.Debug("prospect indexed", map[string]interface{}{"prospectId": ep.Prospect.ID, "tier": ep.Tier})
	return nil
}
