package lookup

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/circuit"
	"prospect-workers/internal/prospect/extract"
)

const apolloMaxContacts = 10

// ApolloTitles are the roles requested from the people search.
var ApolloTitles = []string{
	"General Manager",
	"Hotel Manager",
	"Managing Director",
	"Owner",
	"Director of Operations",
	"Operations Manager",
	"Front Office Manager",
	"IT Manager",
	"Revenue Manager",
}

type ApolloResult struct {
	Source   string                 `json:"source"`
	Contacts []models.CandidateName `json:"contacts"`
}

type ApolloAdapter struct {
	adapter
	baseURL string
	apiKey  string
}

func NewApolloAdapter(fetcher Fetcher, breaker *circuit.Registry, log logger.Logger, baseURL, apiKey string, timeout time.Duration) *ApolloAdapter {
	a := &ApolloAdapter{
		adapter: newAdapter(fetcher, breaker, log, ServiceApollo, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
	a.secret = apiKey
	return a
}

type apolloRequest struct {
	OrganizationName    string   `json:"q_organization_name"`
	OrganizationDomains []string `json:"q_organization_domains,omitempty"`
	PersonTitles        []string `json:"person_titles"`
	Page                int      `json:"page"`
	PerPage             int      `json:"per_page"`
}

type apolloPerson struct {
	Name        string `json:"name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	Email       string `json:"email"`
	LinkedInURL string `json:"linkedin_url"`
}

type apolloResponse struct {
	People []apolloPerson `json:"people"`
}

// SearchPeople asks Apollo for decision makers at company. A missing key is
// reported as Source "no_api_key", failures as Source "error".
func (a *ApolloAdapter) SearchPeople(ctx context.Context, company, domain string) ApolloResult {
	result := ApolloResult{Source: SourceNoAPIKey, Contacts: []models.CandidateName{}}
	if a.apiKey == "" {
		return result
	}
	result.Source = "error"

	req := apolloRequest{
		OrganizationName: strings.TrimSpace(company),
		PersonTitles:     ApolloTitles,
		Page:             1,
		PerPage:          apolloMaxContacts,
	}
	if domain != "" {
		req.OrganizationDomains = []string{domain}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return result
	}

	resp, err := a.call(ctx, func(ctx context.Context) (*commonhttp.Response, error) {
		return a.fetcher.Post(ctx, a.baseURL+"/mixed_people/search", body, jsonHeaders(map[string]string{"X-Api-Key": a.apiKey}))
	})
	if err != nil || !resp.OK() {
		return result
	}

	var parsed apolloResponse
	if err := resp.JSON(&parsed); err != nil {
		a.logger.Debug("unparseable apollo response", map[string]interface{}{"error": err.Error()})
		return result
	}

	result.Source = string(models.SourceApollo)
	for _, p := range parsed.People {
		if len(result.Contacts) >= apolloMaxContacts {
			break
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = strings.TrimSpace(p.FirstName + " " + p.LastName)
		}
		if name == "" {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(p.Email))
		// Apollo masks locked addresses as email_not_unlocked@domain.com.
		if strings.Contains(email, "not_unlocked") || (email != "" && !extract.IsUsableEmail(email)) {
			email = ""
		}
		result.Contacts = append(result.Contacts, models.CandidateName{
			Name:        name,
			Title:       strings.TrimSpace(p.Title),
			Email:       email,
			LinkedInURL: p.LinkedInURL,
			Source:      models.SourceApollo,
		})
	}
	return result
}
