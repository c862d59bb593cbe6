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
)

// RDAPAdapter reads the registrant of a .com domain from the Verisign RDAP service.
type RDAPAdapter struct {
	adapter
	baseURL string
}

func NewRDAPAdapter(fetcher Fetcher, breaker *circuit.Registry, log logger.Logger, baseURL string, timeout time.Duration) *RDAPAdapter {
	return &RDAPAdapter{
		adapter: newAdapter(fetcher, breaker, log, ServiceRDAP, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type rdapEntity struct {
	Roles      []string        `json:"roles"`
	VCardArray json.RawMessage `json:"vcardArray"`
	Entities   []rdapEntity    `json:"entities"`
}

type rdapDomain struct {
	Entities []rdapEntity `json:"entities"`
}

// Lookup returns nil for non-.com domains, lookup failures and registrants
// with nothing usable.
func (r *RDAPAdapter) Lookup(ctx context.Context, domain string) *models.WhoisContact {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if !strings.HasSuffix(domain, ".com") {
		return nil
	}

	target := r.baseURL + "/domain/" + domain
	resp, err := r.call(ctx, func(ctx context.Context) (*commonhttp.Response, error) {
		return r.fetcher.Get(ctx, target, map[string]string{"Accept": "application/rdap+json"})
	})
	if err != nil || !resp.OK() {
		return nil
	}

	var doc rdapDomain
	if err := resp.JSON(&doc); err != nil {
		r.logger.Debug("unparseable rdap response", map[string]interface{}{"domain": domain, "error": err.Error()})
		return nil
	}

	registrant := findRegistrant(doc.Entities)
	if registrant == nil {
		return nil
	}
	contact := parseVCard(registrant.VCardArray)
	if contact.Name == "" && contact.Email == "" && contact.Organization == "" {
		return nil
	}
	return &contact
}

func findRegistrant(entities []rdapEntity) *rdapEntity {
	for i := range entities {
		for _, role := range entities[i].Roles {
			if strings.EqualFold(role, "registrant") {
				return &entities[i]
			}
		}
		if nested := findRegistrant(entities[i].Entities); nested != nil {
			return nested
		}
	}
	return nil
}

// parseVCard reads fn, email and org from a jCard: ["vcard", [[name, params, type, value], ...]].
func parseVCard(raw json.RawMessage) models.WhoisContact {
	var contact models.WhoisContact
	var card []interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &card) != nil || len(card) < 2 {
		return contact
	}
	props, ok := card[1].([]interface{})
	if !ok {
		return contact
	}

	for _, p := range props {
		prop, ok := p.([]interface{})
		if !ok || len(prop) < 4 {
			continue
		}
		name, _ := prop[0].(string)
		value := vcardValue(prop[3])
		if value == "" || strings.Contains(strings.ToLower(value), "redacted") {
			continue
		}
		switch strings.ToLower(name) {
		case "fn":
			contact.Name = value
		case "email":
			if strings.Contains(value, "@") {
				contact.Email = strings.ToLower(strings.TrimPrefix(value, "mailto:"))
			}
		case "org":
			contact.Organization = value
		}
	}
	return contact
}

func vcardValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
