package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/lookup"
	"prospect-workers/internal/prospect/resolve"
)

type fakeCrawler struct {
	mu    sync.Mutex
	sites map[string]models.WebsiteExtract
	calls []string
}

func (f *fakeCrawler) Crawl(_ context.Context, rootURL string) models.WebsiteExtract {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rootURL)
	if ex, ok := f.sites[rootURL]; ok {
		return ex
	}
	return models.EmptyWebsiteExtract()
}

type fakeSearch struct{ found []models.CandidateName }

func (f fakeSearch) FindDecisionMakers(context.Context, string) []models.CandidateName {
	return f.found
}

type fakeRDAP struct{ contact *models.WhoisContact }

func (f fakeRDAP) Lookup(context.Context, string) *models.WhoisContact { return f.contact }

type fakePeople struct{ result lookup.ApolloResult }

func (f fakePeople) SearchPeople(context.Context, string, string) lookup.ApolloResult {
	return f.result
}

type fakePlaces struct{ place *models.PlaceDetails }

func (f fakePlaces) FindPlace(context.Context, string, string) lookup.PlaceResult {
	if f.place == nil {
		return lookup.PlaceResult{Source: "not_found"}
	}
	return lookup.PlaceResult{Source: lookup.ServicePlaces, Place: f.place}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]models.WebsiteExtract
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]models.WebsiteExtract{}}
}

func (c *memoryCache) Get(_ context.Context, domain string) (models.WebsiteExtract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ex, ok := c.entries[domain]
	return ex, ok
}

func (c *memoryCache) Set(_ context.Context, domain string, ex models.WebsiteExtract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = ex
}

type fakeRecorder struct {
	saved []models.EnrichedProspect
	err   error
}

func (f *fakeRecorder) SaveEnrichment(_ context.Context, ep models.EnrichedProspect) error {
	f.saved = append(f.saved, ep)
	return f.err
}

type fakeIndexer struct {
	indexed int
	err     error
}

func (f *fakeIndexer) Index(context.Context, models.EnrichedProspect) error {
	f.indexed++
	return f.err
}

func adlonSite() models.WebsiteExtract {
	ex := models.EmptyWebsiteExtract()
	ex.Emails = []string{"reservations@adlon.de", "anna.weber@adlon.de"}
	ex.Phones = []string{"+49 30 22610"}
	ex.SocialLinks.LinkedIn = "https://www.linkedin.com/company/hotel-adlon"
	ex.PropertyInfo.StarRating = 5
	ex.TeamMembers = []models.CandidateName{{Name: "Anna Weber", Title: "General Manager", Source: models.SourceWebsite}}
	return ex
}

func createTestPipeline(t *testing.T, deps Deps) *Pipeline {
	p := New(deps, resolve.New(resolve.PolicyDecisionMakerOnly, logger.NewTestLogger(t)), logger.NewTestLogger(t))
	p.newID = func() string { return "run-1" }
	return p
}

func TestPipeline_Enrich_FullRun(t *testing.T) {
	crawler := &fakeCrawler{sites: map[string]models.WebsiteExtract{"https://www.adlon.de": adlonSite()}}
	cache := newMemoryCache()
	recorder := &fakeRecorder{}
	indexer := &fakeIndexer{}

	p := createTestPipeline(t, Deps{
		Crawler:  crawler,
		Search:   fakeSearch{found: []models.CandidateName{{Name: "Thomas Becker", Title: "General Manager", Source: models.SourceSearch}}},
		People:   fakePeople{result: lookup.ApolloResult{Source: lookup.SourceNoAPIKey, Contacts: []models.CandidateName{}}},
		Places:   fakePlaces{place: &models.PlaceDetails{PlaceID: "ChIJadlon", Phone: "+49 30 999"}},
		Cache:    cache,
		Recorder: recorder,
		Indexer:  indexer,
	})

	got, err := p.Enrich(context.Background(), models.Prospect{
		ID:           "p-1",
		PropertyName: "Hotel Adlon Kempinski",
		City:         "Berlin",
		Website:      "https://www.adlon.de",
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.RunID)
	require.NotNil(t, got.Enrichment.ValidatedEmail)
	assert.Equal(t, "anna.weber@adlon.de", *got.Enrichment.ValidatedEmail)
	assert.Equal(t, models.ConfidenceHigh, got.Enrichment.ConfidenceScore)

	assert.Equal(t, "anna.weber@adlon.de", got.Prospect.Email)
	assert.Equal(t, "website_scrape", got.Prospect.EmailSource)
	assert.Equal(t, "Anna Weber", got.Prospect.ContactName)
	assert.Equal(t, "+49 30 22610", got.Prospect.Phone, "site phone wins over the places phone")
	assert.Equal(t, "ChIJadlon", got.Prospect.GooglePlaceID)
	assert.Equal(t, 5, got.Prospect.StarRating)

	assert.Equal(t, 75, got.Score.Total)
	assert.Equal(t, "hot", got.Tier)
	assert.Equal(t, 75, got.Prospect.Score)
	assert.Equal(t, models.StatusEnriched, got.Prospect.Status)
	assert.ElementsMatch(t, []string{"website", "search", "google_places"}, got.Sources)

	require.Len(t, recorder.saved, 1)
	assert.Equal(t, got, recorder.saved[0])
	assert.Equal(t, 1, indexer.indexed)

	_, cached := cache.Get(context.Background(), "adlon.de")
	assert.True(t, cached)
}

func TestPipeline_Enrich_UsesCachedExtract(t *testing.T) {
	crawler := &fakeCrawler{}
	cache := newMemoryCache()
	cache.Set(context.Background(), "adlon.de", adlonSite())

	p := createTestPipeline(t, Deps{Crawler: crawler, Cache: cache})
	got, err := p.Enrich(context.Background(), models.Prospect{PropertyName: "Hotel Adlon", Website: "adlon.de"})
	require.NoError(t, err)

	assert.Empty(t, crawler.calls)
	assert.Equal(t, []string{SourceCache}, got.Sources)
	assert.Equal(t, "anna.weber@adlon.de", got.Prospect.Email)
}

func TestPipeline_Enrich_EmptyCrawlIsNotCached(t *testing.T) {
	crawler := &fakeCrawler{}
	cache := newMemoryCache()

	p := createTestPipeline(t, Deps{Crawler: crawler, Cache: cache})
	got, err := p.Enrich(context.Background(), models.Prospect{PropertyName: "Hotel Adlon", Website: "https://adlon.de"})
	require.NoError(t, err)

	assert.Len(t, crawler.calls, 1)
	_, cached := cache.Get(context.Background(), "adlon.de")
	assert.False(t, cached)
	assert.Nil(t, got.Enrichment.ValidatedEmail, "info@ is rejected under the default policy")
	assert.Equal(t, resolve.FallbackCallReception, got.Enrichment.FallbackMethod)
}

func TestPipeline_Enrich_WebsiteFromPlaces(t *testing.T) {
	crawler := &fakeCrawler{sites: map[string]models.WebsiteExtract{"https://www.adlon.de/": adlonSite()}}
	p := createTestPipeline(t, Deps{
		Crawler: crawler,
		Places:  fakePlaces{place: &models.PlaceDetails{PlaceID: "ChIJadlon", Website: "https://www.adlon.de/"}},
	})

	got, err := p.Enrich(context.Background(), models.Prospect{PropertyName: "Hotel Adlon", City: "Berlin"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.adlon.de/"}, crawler.calls)
	assert.Equal(t, "https://www.adlon.de/", got.Prospect.Website)
	assert.Equal(t, "anna.weber@adlon.de", got.Prospect.Email)
}

func TestPipeline_Enrich_WhoisRegistrantBecomesCandidate(t *testing.T) {
	p := createTestPipeline(t, Deps{
		Crawler: &fakeCrawler{},
		RDAP:    fakeRDAP{contact: &models.WhoisContact{Name: "Thomas Becker", Email: "t.becker@adlon.com"}},
	})

	got, err := p.Enrich(context.Background(), models.Prospect{PropertyName: "Hotel Adlon", Website: "https://adlon.com"})
	require.NoError(t, err)

	require.NotNil(t, got.Enrichment.ValidatedEmail)
	assert.Equal(t, "t.becker@adlon.com", *got.Enrichment.ValidatedEmail)
	assert.Equal(t, whoisTitle, got.Enrichment.ContactRole)
	assert.Equal(t, []string{"whois"}, got.Sources)
}

func TestPipeline_Enrich_ApolloContact(t *testing.T) {
	p := createTestPipeline(t, Deps{
		Crawler: &fakeCrawler{},
		People: fakePeople{result: lookup.ApolloResult{Source: "apollo", Contacts: []models.CandidateName{
			{Name: "Sabine Koch", Title: "Owner", Email: "sabine.koch@adlon.de", Source: models.SourceApollo},
		}}},
	})

	got, err := p.Enrich(context.Background(), models.Prospect{PropertyName: "Hotel Adlon", Website: "https://adlon.de"})
	require.NoError(t, err)
	assert.Equal(t, "apollo", got.Prospect.EmailSource)
	assert.Equal(t, models.ConfidenceHigh, got.Enrichment.ConfidenceScore)
}

func TestPipeline_Enrich_RerunKeepsGuessedProvenance(t *testing.T) {
	p := createTestPipeline(t, Deps{
		Crawler: &fakeCrawler{},
		Search:  fakeSearch{found: []models.CandidateName{{Name: "Anna Weber", Title: "General Manager", Source: models.SourceSearch}}},
	})

	first, err := p.Enrich(context.Background(), models.Prospect{ID: "p-7", PropertyName: "Hotel Weber", Website: "https://hotel.com"})
	require.NoError(t, err)
	require.NotNil(t, first.Enrichment.ValidatedEmail)
	assert.Equal(t, "common_patterns", first.Prospect.EmailSource)
	assert.Equal(t, models.ConfidenceMedium, first.Enrichment.ConfidenceScore)

	second, err := p.Enrich(context.Background(), first.Prospect)
	require.NoError(t, err)
	require.NotNil(t, second.Enrichment.ValidatedEmail)
	assert.Equal(t, *first.Enrichment.ValidatedEmail, *second.Enrichment.ValidatedEmail)
	assert.Equal(t, "common_patterns", second.Prospect.EmailSource)
	assert.Equal(t, models.EmailSourceCommonPatterns, second.Enrichment.EmailPatternSource)
	assert.Equal(t, models.ConfidenceMedium, second.Enrichment.ConfidenceScore)
	assert.Equal(t, first.Score.Total, second.Score.Total)
}

func TestPipeline_Enrich_InvalidProspect(t *testing.T) {
	p := createTestPipeline(t, Deps{Crawler: &fakeCrawler{}})
	_, err := p.Enrich(context.Background(), models.Prospect{ID: "p-1"})
	assert.True(t, errors.Is(err, ErrInvalidProspect))
}

func TestPipeline_Enrich_PersistenceFailures(t *testing.T) {
	prospect := models.Prospect{ID: "p-1", PropertyName: "Hotel Adlon", Website: "https://adlon.de"}

	t.Run("recorder failure is returned", func(t *testing.T) {
		p := createTestPipeline(t, Deps{
			Crawler:  &fakeCrawler{},
			Recorder: &fakeRecorder{err: errors.New("connection refused")},
		})
		_, err := p.Enrich(context.Background(), prospect)
		assert.True(t, errors.Is(err, ErrPersistFailed))
	})

	t.Run("indexer failure is only logged", func(t *testing.T) {
		indexer := &fakeIndexer{err: errors.New("cluster red")}
		p := createTestPipeline(t, Deps{Crawler: &fakeCrawler{}, Recorder: &fakeRecorder{}, Indexer: indexer})
		_, err := p.Enrich(context.Background(), prospect)
		assert.NoError(t, err)
		assert.Equal(t, 1, indexer.indexed)
	})

	t.Run("prospects without id are not persisted", func(t *testing.T) {
		recorder := &fakeRecorder{}
		p := createTestPipeline(t, Deps{Crawler: &fakeCrawler{}, Recorder: recorder})
		_, err := p.Enrich(context.Background(), models.Prospect{PropertyName: "Hotel Adlon"})
		assert.NoError(t, err)
		assert.Empty(t, recorder.saved)
	})
}

func TestPipeline_Enrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := createTestPipeline(t, Deps{Crawler: &fakeCrawler{}})
	_, err := p.Enrich(ctx, models.Prospect{PropertyName: "Hotel Adlon"})
	assert.ErrorIs(t, err, context.Canceled)
}
