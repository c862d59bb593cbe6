package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/circuit"
)

const rdapRegistrant = `{
  "objectClassName": "domain",
  "ldhName": "HOTEL.COM",
  "entities": [
    {"roles": ["registrar"],
     "vcardArray": ["vcard", [["version", {}, "text", "4.0"], ["fn", {}, "text", "Registrar Inc"]]],
     "entities": [{"roles": ["abuse"], "vcardArray": ["vcard", [["fn", {}, "text", "Abuse Desk"]]]}]},
    {"roles": ["registrant"],
     "vcardArray": ["vcard", [
       ["version", {}, "text", "4.0"],
       ["fn", {}, "text", "Anna Weber"],
       ["org", {}, "text", "Hotel Adlon GmbH"],
       ["email", {"type": "work"}, "text", "Anna.Weber@hotel.com"]
     ]]}
  ]
}`

func TestRDAPAdapter_Lookup(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		status int
		body   string
		want   *models.WhoisContact
		hits   int32
	}{
		{
			name:   "registrant vcard",
			domain: "hotel.com",
			status: http.StatusOK,
			body:   rdapRegistrant,
			want:   &models.WhoisContact{Name: "Anna Weber", Email: "anna.weber@hotel.com", Organization: "Hotel Adlon GmbH"},
			hits:   1,
		},
		{
			name:   "non-com domain is never queried",
			domain: "hotel.de",
			hits:   0,
		},
		{
			name:   "unknown domain",
			domain: "missing.com",
			status: http.StatusNotFound,
			body:   `{"errorCode":404}`,
			hits:   1,
		},
		{
			name:   "redacted registrant",
			domain: "private.com",
			status: http.StatusOK,
			body:   `{"entities":[{"roles":["registrant"],"vcardArray":["vcard",[["fn",{},"text","REDACTED FOR PRIVACY"]]]}]}`,
			hits:   1,
		},
		{
			name:   "malformed json",
			domain: "broken.com",
			status: http.StatusOK,
			body:   `{"entities": [`,
			hits:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				assert.Equal(t, "/domain/"+tt.domain, r.URL.Path)
				assert.Equal(t, "application/rdap+json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			breaker := circuit.NewRegistry()
			adapter := NewRDAPAdapter(createTestFetcher(t), breaker, logger.NewTestLogger(t), srv.URL+"/", 2*time.Second)

			assert.Equal(t, tt.want, adapter.Lookup(context.Background(), tt.domain))
			assert.Equal(t, tt.hits, hits.Load())
			assert.Equal(t, circuit.StateClosed, breaker.State(ServiceRDAP))
		})
	}
}

func TestApolloAdapter_NoAPIKey(t *testing.T) {
	adapter := NewApolloAdapter(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), "http://127.0.0.1:1", "", time.Second)

	got := adapter.SearchPeople(context.Background(), "Hotel Adlon", "hotel.com")

	assert.Equal(t, SourceNoAPIKey, got.Source)
	assert.NotNil(t, got.Contacts)
	assert.Empty(t, got.Contacts)
}

func TestApolloAdapter_SearchPeople(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mixed_people/search", r.URL.Path)
		assert.Equal(t, "apollo-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req apolloRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "Hotel Adlon", req.OrganizationName)
		assert.Equal(t, []string{"hotel.com"}, req.OrganizationDomains)
		assert.Equal(t, 10, req.PerPage)
		assert.Contains(t, req.PersonTitles, "General Manager")

		people := []map[string]string{
			{"name": "Anna Weber", "title": "General Manager", "email": "Anna.Weber@hotel.com", "linkedin_url": "https://linkedin.com/in/annaweber"},
			{"first_name": "Tom", "last_name": "Berger", "title": "Owner", "email": "email_not_unlocked@domain.com"},
			{"name": "", "title": "Ghost"},
		}
		for i := 0; i < 10; i++ {
			people = append(people, map[string]string{"name": fmt.Sprintf("Person Number%d", i), "title": "Director"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"people": people})
	}))
	defer srv.Close()

	adapter := NewApolloAdapter(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), srv.URL, "apollo-key", 2*time.Second)
	got := adapter.SearchPeople(context.Background(), "Hotel Adlon", "hotel.com")

	assert.Equal(t, "apollo", got.Source)
	require.Len(t, got.Contacts, 10)
	assert.Equal(t, models.CandidateName{
		Name:        "Anna Weber",
		Title:       "General Manager",
		Email:       "anna.weber@hotel.com",
		LinkedInURL: "https://linkedin.com/in/annaweber",
		Source:      models.SourceApollo,
	}, got.Contacts[0])
	assert.Equal(t, "Tom Berger", got.Contacts[1].Name)
	assert.Empty(t, got.Contacts[1].Email, "locked addresses are dropped")
}

func TestApolloAdapter_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := NewApolloAdapter(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), srv.URL, "bad-key", 2*time.Second)
	got := adapter.SearchPeople(context.Background(), "Hotel Adlon", "")

	assert.Equal(t, "error", got.Source)
	assert.Empty(t, got.Contacts)
}

func TestPlacesAdapter_FindPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "places-key", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/textsearch/json":
			assert.Equal(t, "Hotel Adlon Berlin", r.URL.Query().Get("query"))
			fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"ChIJ123","name":"Hotel Adlon Kempinski","formatted_address":"Unter den Linden 77, Berlin","rating":4.7}]}`)
		case "/details/json":
			assert.Equal(t, "ChIJ123", r.URL.Query().Get("place_id"))
			fmt.Fprint(w, `{"status":"OK","result":{"international_phone_number":"+49 30 22610","website":"https://www.kempinski.com/adlon"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	adapter := NewPlacesAdapter(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), srv.URL, "places-key", 2*time.Second)
	got := adapter.FindPlace(context.Background(), "Hotel Adlon", "Berlin")

	assert.Equal(t, ServicePlaces, got.Source)
	require.NotNil(t, got.Place)
	assert.Equal(t, models.PlaceDetails{
		PlaceID: "ChIJ123",
		Name:    "Hotel Adlon Kempinski",
		Phone:   "+49 30 22610",
		Website: "https://www.kempinski.com/adlon",
		Rating:  4.7,
		Address: "Unter den Linden 77, Berlin",
	}, *got.Place)
}

func TestPlacesAdapter_Outcomes(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		adapter := NewPlacesAdapter(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), "http://127.0.0.1:1", "", time.Second)
		assert.Equal(t, PlaceResult{Source: SourceNoAPIKey}, adapter.FindPlace(context.Background(), "Hotel Adlon", "Berlin"))
	})

	t.Run("zero results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
		}))
		defer srv.Close()
		adapter := NewPlacesAdapter(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), srv.URL, "k", time.Second)
		assert.Equal(t, PlaceResult{Source: "not_found"}, adapter.FindPlace(context.Background(), "Nowhere Inn", ""))
	})

	t.Run("quota exceeded backs off", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"OVER_QUERY_LIMIT","results":[]}`)
		}))
		defer srv.Close()
		breaker := circuit.NewRegistry()
		adapter := NewPlacesAdapter(createTestFetcher(t), breaker, logger.NewTestLogger(t), srv.URL, "k", time.Second)

		assert.Equal(t, "error", adapter.FindPlace(context.Background(), "Hotel Adlon", "Berlin").Source)
		assert.False(t, breaker.CanMakeRequest(ServicePlaces))
		assert.InDelta(t, float64(30*time.Second), float64(breaker.RecommendedDelay(ServicePlaces)), float64(time.Second))
	})
}

type fakeMX struct {
	hosts []string
	err   error
	calls int
}

func (f *fakeMX) Lookup(_ context.Context, _ string) ([]string, error) {
	f.calls++
	return f.hosts, f.err
}

func TestHunterVerifier_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email-verifier", r.URL.Path)
		assert.Equal(t, "hunter-key", r.URL.Query().Get("api_key"))
		if r.URL.Query().Get("email") == "down@hotel.com" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":{"status":"valid","result":"deliverable","score":91,"mx_records":true}}`)
	}))
	defer srv.Close()

	mx := &fakeMX{hosts: []string{"mx1.hotel.com"}}
	verifier := NewHunterVerifier(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), srv.URL, "hunter-key", 2*time.Second, mx)

	got := verifier.Verify(context.Background(), " Anna.Weber@Hotel.com ")
	assert.Equal(t, Verification{Email: "anna.weber@hotel.com", Status: "valid", Result: "deliverable", Score: 91, Source: ServiceHunter}, got)
	assert.True(t, got.Deliverable())
	assert.Equal(t, 0, mx.calls)

	got = verifier.Verify(context.Background(), "down@hotel.com")
	assert.Equal(t, StatusMXOnly, got.Status, "hunter failure falls back to dns")
	assert.Equal(t, []string{"mx1.hotel.com"}, got.MXRecords)
	assert.Equal(t, 1, mx.calls)
}

func TestHunterVerifier_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		mx     *fakeMX
		status string
		calls  int
	}{
		{"invalid format", "not-an-email", &fakeMX{}, StatusInvalidFormat, 0},
		{"missing tld", "anna@hotel", &fakeMX{}, StatusInvalidFormat, 0},
		{"mx present", "anna@hotel.com", &fakeMX{hosts: []string{"mx.hotel.com"}}, StatusMXOnly, 1},
		{"no mx", "anna@nomail.com", &fakeMX{}, StatusNoMX, 1},
		{"resolver down", "anna@hotel.com", &fakeMX{err: errors.New("i/o timeout")}, StatusUnknown, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewHunterVerifier(createTestFetcher(t), circuit.NewRegistry(), logger.NewTestLogger(t), "http://127.0.0.1:1", "", time.Second, tt.mx)
			got := verifier.Verify(context.Background(), tt.email)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.calls, tt.mx.calls)
			assert.Equal(t, tt.status == StatusMXOnly, got.Deliverable())
		})
	}
}
