package lookup

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/circuit"
)

type PlaceResult struct {
	Source string               `json:"source"`
	Place  *models.PlaceDetails `json:"place,omitempty"`
}

// PlacesAdapter verifies a property against Google Places: a text search for
// the place id, then a details call for phone and website.
type PlacesAdapter struct {
	adapter
	baseURL string
	apiKey  string
}

func NewPlacesAdapter(fetcher Fetcher, breaker *circuit.Registry, log logger.Logger, baseURL, apiKey string, timeout time.Duration) *PlacesAdapter {
	p := &PlacesAdapter{
		adapter: newAdapter(fetcher, breaker, log, ServicePlaces, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
	p.secret = apiKey
	return p
}

type placesSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string  `json:"place_id"`
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
	} `json:"results"`
}

type placesDetailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedPhoneNumber     string `json:"formatted_phone_number"`
		InternationalPhoneNumber string `json:"international_phone_number"`
		Website                  string `json:"website"`
	} `json:"result"`
}

// FindPlace returns Source "google_places" with a place when one matched,
// "not_found" when the search came back empty and "error" on failure.
func (p *PlacesAdapter) FindPlace(ctx context.Context, name, city string) PlaceResult {
	if p.apiKey == "" {
		return PlaceResult{Source: SourceNoAPIKey}
	}
	query := strings.TrimSpace(strings.TrimSpace(name) + " " + strings.TrimSpace(city))
	if query == "" {
		return PlaceResult{Source: "not_found"}
	}

	var search placesSearchResponse
	if !p.getJSON(ctx, "/textsearch/json", url.Values{"query": {query}, "type": {"lodging"}}, &search) {
		return PlaceResult{Source: "error"}
	}
	switch search.Status {
	case "OVER_QUERY_LIMIT":
		p.breaker.RecordFailure(p.service, errors.New("places: quota exceeded"))
		return PlaceResult{Source: "error"}
	case "REQUEST_DENIED", "INVALID_REQUEST":
		p.logger.Warn("places request rejected", map[string]interface{}{"status": search.Status})
		return PlaceResult{Source: "error"}
	}
	if len(search.Results) == 0 || search.Results[0].PlaceID == "" {
		return PlaceResult{Source: "not_found"}
	}

	top := search.Results[0]
	place := &models.PlaceDetails{
		PlaceID: top.PlaceID,
		Name:    top.Name,
		Rating:  top.Rating,
		Address: top.FormattedAddress,
	}

	// details are optional; the place id alone marks the property verified
	var details placesDetailsResponse
	fields := url.Values{"place_id": {top.PlaceID}, "fields": {"formatted_phone_number,international_phone_number,website"}}
	if p.getJSON(ctx, "/details/json", fields, &details) {
		place.Phone = details.Result.InternationalPhoneNumber
		if place.Phone == "" {
			place.Phone = details.Result.FormattedPhoneNumber
		}
		place.Website = details.Result.Website
	}
	return PlaceResult{Source: ServicePlaces, Place: place}
}

func (p *PlacesAdapter) getJSON(ctx context.Context, path string, params url.Values, out interface{}) bool {
	params.Set("key", p.apiKey)
	target := p.baseURL + path + "?" + params.Encode()

	resp, err := p.call(ctx, func(ctx context.Context) (*commonhttp.Response, error) {
		return p.fetcher.Get(ctx, target, map[string]string{"Accept": "application/json"})
	})
	if err != nil || !resp.OK() {
		return false
	}
	if err := resp.JSON(out); err != nil {
		p.logger.Debug("unparseable places response", map[string]interface{}{"path": path, "error": err.Error()})
		return false
	}
	return true
}
