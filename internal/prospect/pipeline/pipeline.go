// Package pipeline enriches one prospect end to end: crawl the property website,
// query the lookup adapters in parallel, resolve the decision-maker, score the
// result and hand it to storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/common/metrics"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/crawl"
	"prospect-workers/internal/prospect/lookup"
	"prospect-workers/internal/prospect/names"
	"prospect-workers/internal/prospect/resolve"
	"prospect-workers/internal/prospect/scoring"
)

var (
	ErrInvalidProspect = errors.New("INVALID_PROSPECT")
	ErrPersistFailed   = errors.New("ENRICHMENT_PERSIST_FAILED")
)

const (
	SourceCache = "cache"
	whoisTitle  = "Domain Registrant"
)

type Crawler interface {
	Crawl(ctx context.Context, rootURL string) models.WebsiteExtract
}

type Searcher interface {
	FindDecisionMakers(ctx context.Context, business string) []models.CandidateName
}

type Registrar interface {
	Lookup(ctx context.Context, domain string) *models.WhoisContact
}

type PeopleFinder interface {
	SearchPeople(ctx context.Context, company, domain string) lookup.ApolloResult
}

type PlaceFinder interface {
	FindPlace(ctx context.Context, name, city string) lookup.PlaceResult
}

type ExtractCache interface {
	Get(ctx context.Context, domain string) (models.WebsiteExtract, bool)
	Set(ctx context.Context, domain string, ex models.WebsiteExtract)
}

type Recorder interface {
	SaveEnrichment(ctx context.Context, ep models.EnrichedProspect) error
}

type Indexer interface {
	Index(ctx context.Context, ep models.EnrichedProspect) error
}

// Deps lists the collaborators. Only Crawler is required; a nil adapter is skipped.
type Deps struct {
	Crawler  Crawler
	Search   Searcher
	RDAP     Registrar
	People   PeopleFinder
	Places   PlaceFinder
	Cache    ExtractCache
	Recorder Recorder
	Indexer  Indexer
}

type Pipeline struct {
	deps     Deps
	resolver *resolve.Resolver
	logger   logger.Logger
	newID    func() string
}

func New(deps Deps, resolver *resolve.Resolver, log logger.Logger) *Pipeline {
	return &Pipeline{
		deps:     deps,
		resolver: resolver,
		logger:   log.WithFields(map[string]interface{}{"component": "enrichment-pipeline"}),
		newID:    uuid.NewString,
	}
}

// gathered is what the parallel collection phase produces.
type gathered struct {
	mu      sync.Mutex
	website models.WebsiteExtract
	search  []models.CandidateName
	whois   *models.WhoisContact
	apollo  lookup.ApolloResult
	place   *models.PlaceDetails
	sources []string
}

func (g *gathered) addSource(s string) {
	g.mu.Lock()
	g.sources = append(g.sources, s)
	g.mu.Unlock()
}

// Enrich runs the whole pipeline for p. Adapter failures only lower the quality
// of the result; an error is returned for invalid input, cancellation or when
// the result could not be persisted.
func (p *Pipeline) Enrich(ctx context.Context, prospect models.Prospect) (models.EnrichedProspect, error) {
	if strings.TrimSpace(prospect.PropertyName) == "" {
		return models.EnrichedProspect{}, fmt.Errorf("%w: propertyName is required", ErrInvalidProspect)
	}

	log := p.logger.WithFields(map[string]interface{}{"prospectId": prospect.ID, "hotel": prospect.PropertyName})
	domain, _ := crawl.ExtractDomain(prospect.Website)

	g := p.collect(ctx, prospect, domain)
	if err := ctx.Err(); err != nil {
		return models.EnrichedProspect{}, err
	}

	// No website on file: crawl the one Google knows about.
	if prospect.Website == "" && g.place != nil && g.place.Website != "" {
		prospect.Website = g.place.Website
		domain, _ = crawl.ExtractDomain(prospect.Website)
		g.website = p.crawlSite(ctx, g, prospect.Website, domain)
	}

	result := p.resolver.Resolve(resolve.Input{
		HotelName:        prospect.PropertyName,
		WebsiteURL:       prospect.Website,
		Candidates:       candidates(g),
		ExistingEmails:   existingEmails(g),
		KnownEmail:       prospect.Email,
		KnownEmailSource: models.EmailSource(prospect.EmailSource),
	})

	enriched := merge(prospect, g.website, g.place, result)
	score := scoring.Score(enriched)
	tier := scoring.Tier(score.Total)
	enriched.Score = score.Total
	enriched.Tier = tier
	enriched.Status = models.StatusEnriched

	out := models.EnrichedProspect{
		RunID:      p.newID(),
		Prospect:   enriched,
		Enrichment: result,
		Website:    g.website,
		Score:      score,
		Tier:       tier,
		Sources:    g.sources,
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}

	metrics.EnrichmentConfidence.WithLabelValues(string(result.EmailPatternSource), string(result.ConfidenceScore)).Inc()
	metrics.ProspectTier.WithLabelValues(tier).Inc()

	log.Info("prospect enriched", map[string]interface{}{
		"contact":    result.ContactName,
		"source":     string(result.EmailPatternSource),
		"confidence": string(result.ConfidenceScore),
		"score":      score.Total,
		"tier":       tier,
		"sources":    out.Sources,
	})

	if err := p.persist(ctx, out, log); err != nil {
		return out, err
	}
	return out, nil
}

// collect runs the crawl and every configured adapter concurrently.
func (p *Pipeline) collect(ctx context.Context, prospect models.Prospect, domain string) *gathered {
	g := &gathered{website: models.EmptyWebsiteExtract(), apollo: lookup.ApolloResult{Contacts: []models.CandidateName{}}}
	eg, egCtx := errgroup.WithContext(ctx)

	if prospect.Website != "" {
		eg.Go(func() error {
			g.website = p.crawlSite(egCtx, g, prospect.Website, domain)
			return nil
		})
	}
	if p.deps.Search != nil {
		eg.Go(func() error {
			if found := p.deps.Search.FindDecisionMakers(egCtx, prospect.PropertyName); len(found) > 0 {
				g.search = found
				g.addSource(string(models.SourceSearch))
			}
			return nil
		})
	}
	if p.deps.RDAP != nil && domain != "" {
		eg.Go(func() error {
			if contact := p.deps.RDAP.Lookup(egCtx, domain); contact != nil {
				g.whois = contact
				g.addSource(string(models.SourceWhois))
			}
			return nil
		})
	}
	if p.deps.People != nil {
		eg.Go(func() error {
			res := p.deps.People.SearchPeople(egCtx, prospect.PropertyName, domain)
			g.apollo = res
			if len(res.Contacts) > 0 {
				g.addSource(string(models.SourceApollo))
			}
			return nil
		})
	}
	if p.deps.Places != nil {
		eg.Go(func() error {
			res := p.deps.Places.FindPlace(egCtx, prospect.PropertyName, prospect.City)
			if res.Place != nil {
				g.place = res.Place
				g.addSource(lookup.ServicePlaces)
			}
			return nil
		})
	}

	_ = eg.Wait()
	return g
}

// crawlSite is cache-aside over the crawler. Empty extracts are not cached so a
// temporarily unreachable site is retried on the next run.
func (p *Pipeline) crawlSite(ctx context.Context, g *gathered, website, domain string) models.WebsiteExtract {
	if p.deps.Cache != nil && domain != "" {
		if ex, ok := p.deps.Cache.Get(ctx, domain); ok {
			g.addSource(SourceCache)
			return ex
		}
	}

	ex := p.deps.Crawler.Crawl(ctx, website)
	if isEmpty(ex) {
		return ex
	}
	g.addSource(string(models.SourceWebsite))
	if p.deps.Cache != nil && domain != "" {
		p.deps.Cache.Set(ctx, domain, ex)
	}
	return ex
}

func (p *Pipeline) persist(ctx context.Context, ep models.EnrichedProspect, log logger.Logger) error {
	if p.deps.Recorder != nil && ep.Prospect.ID != "" {
		if err := p.deps.Recorder.SaveEnrichment(ctx, ep); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
	}
	if p.deps.Indexer != nil && ep.Prospect.ID != "" {
		if err := p.deps.Indexer.Index(ctx, ep); err != nil {
			log.Warn("search indexing failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func candidates(g *gathered) []models.CandidateName {
	var out []models.CandidateName
	out = append(out, g.website.TeamMembers...)
	out = append(out, g.apollo.Contacts...)
	out = append(out, g.search...)
	if g.whois != nil && names.IsValidPersonName(g.whois.Name) {
		out = append(out, models.CandidateName{
			Name:   g.whois.Name,
			Title:  whoisTitle,
			Email:  g.whois.Email,
			Source: models.SourceWhois,
		})
	}
	return out
}

func existingEmails(g *gathered) []string {
	out := append([]string{}, g.website.Emails...)
	if g.whois != nil && g.whois.Email != "" {
		out = append(out, g.whois.Email)
	}
	return out
}

// merge copies what enrichment learned onto the prospect without overwriting
// values that were already on file.
func merge(p models.Prospect, ex models.WebsiteExtract, place *models.PlaceDetails, res models.EnrichmentResult) models.Prospect {
	if res.ValidatedEmail != nil {
		p.Email = *res.ValidatedEmail
		p.EmailSource = string(res.EmailPatternSource)
	}
	if res.ContactName != "" {
		p.ContactName = res.ContactName
		p.ContactRole = res.ContactRole
	}

	if p.Phone == "" && len(ex.Phones) > 0 {
		p.Phone = ex.Phones[0]
	}
	if p.LinkedInURL == "" {
		p.LinkedInURL = ex.SocialLinks.LinkedIn
	}
	if p.InstagramURL == "" {
		p.InstagramURL = ex.SocialLinks.Instagram
	}
	if p.StarRating == 0 {
		p.StarRating = ex.PropertyInfo.StarRating
	}
	if p.RoomCount == 0 {
		p.RoomCount = ex.PropertyInfo.RoomCount
	}
	if p.ChainBrand == "" {
		p.ChainBrand = ex.PropertyInfo.ChainBrand
	}

	if place != nil {
		p.GooglePlaceID = place.PlaceID
		if p.Phone == "" {
			p.Phone = place.Phone
		}
		if p.Website == "" {
			p.Website = place.Website
		}
	}
	return p
}

func isEmpty(ex models.WebsiteExtract) bool {
	return len(ex.Emails) == 0 && len(ex.Phones) == 0 && len(ex.TeamMembers) == 0 &&
		ex.SocialLinks == (models.SocialLinks{}) &&
		ex.PropertyInfo.StarRating == 0 && ex.PropertyInfo.RoomCount == 0 &&
		ex.PropertyInfo.ChainBrand == "" && ex.PropertyInfo.Description == "" &&
		len(ex.PropertyInfo.Amenities) == 0
}
