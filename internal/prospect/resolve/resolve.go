// Package resolve picks the decision-maker contact for a prospect from the
// candidates gathered by the crawler and the lookup adapters.
package resolve

import (
	"strings"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/crawl"
	"prospect-workers/internal/prospect/names"
)

// Policy controls whether generic role addresses may be returned.
type Policy string

const (
	// PolicyDecisionMakerOnly never returns a generic or fake address.
	PolicyDecisionMakerOnly Policy = "decision_maker_only"
	// PolicyAllowGenericFallback lets info@ style addresses through at low
	// confidence. Fake addresses are still rejected.
	PolicyAllowGenericFallback Policy = "allow_generic_fallback"
)

const FallbackCallReception = "Call reception to obtain GM email"

// Input is everything collected for one prospect before resolution.
type Input struct {
	HotelName      string
	WebsiteURL     string
	Candidates     []models.CandidateName
	ExistingEmails []string

	// KnownEmail is the address already on file. It keeps the provenance it
	// was stored with so a guessed address never comes back as scraped.
	KnownEmail       string
	KnownEmailSource models.EmailSource
}

type Resolver struct {
	policy Policy
	logger logger.Logger
}

func New(policy Policy, log logger.Logger) *Resolver {
	if policy != PolicyAllowGenericFallback {
		policy = PolicyDecisionMakerOnly
	}
	return &Resolver{
		policy: policy,
		logger: log.WithFields(map[string]interface{}{"component": "resolver", "policy": string(policy)}),
	}
}

func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve is deterministic for a given input.
func (r *Resolver) Resolve(in Input) models.EnrichmentResult {
	st := newState(in)

	out, name, ok := firstSuccess(st, strategies)
	if !ok {
		result := emptyResult()
		result.FallbackMethod = FallbackCallReception
		if top := st.top(); top != nil {
			result.ContactName = top.Name
			result.ContactRole = top.Title
		}
		result.AllEmailsFound = st.allEmails()
		return result
	}

	out = r.postFilter(in.HotelName, out)

	result := emptyResult()
	if out.candidate != nil {
		result.ContactName = out.candidate.Name
		result.ContactRole = out.candidate.Title
	}
	if out.email != "" {
		email := out.email
		result.ValidatedEmail = &email
	}
	result.EmailPatternSource = out.source
	result.ConfidenceScore = ConfidenceFor(out.source)
	result.FallbackMethod = out.fallbackMethod
	result.Strategy = name
	result.AllEmailsFound = st.allEmails()
	return result
}

// postFilter applies the address policy to the winning outcome.
func (r *Resolver) postFilter(hotel string, out outcome) outcome {
	if out.email == "" {
		return out
	}
	local := localPart(out.email)

	if HasFakeToken(local) {
		r.logger.Info("rejected placeholder address", map[string]interface{}{"hotel": hotel, "email": out.email})
		return rejected(out)
	}
	if !IsGenericLocalPart(local) {
		return out
	}
	if r.policy == PolicyAllowGenericFallback {
		r.logger.Warn("using generic address as last resort", map[string]interface{}{"hotel": hotel, "email": out.email})
		out.source = models.EmailSourceGenericFallback
		if out.fallbackMethod == "" {
			out.fallbackMethod = FallbackCallReception
		}
		return out
	}
	r.logger.Info("rejected generic address", map[string]interface{}{"hotel": hotel, "email": out.email})
	return rejected(out)
}

func rejected(out outcome) outcome {
	out.email = ""
	out.source = models.EmailSourceNone
	out.fallbackMethod = FallbackCallReception
	return out
}

// ConfidenceFor derives confidence from how the address was obtained.
func ConfidenceFor(source models.EmailSource) models.Confidence {
	switch source {
	case models.EmailSourceWebsiteScrape, models.EmailSourceApollo:
		return models.ConfidenceHigh
	case models.EmailSourceCommonPatterns:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func emptyResult() models.EnrichmentResult {
	return models.EnrichmentResult{
		EmailPatternSource: models.EmailSourceNone,
		ConfidenceScore:    models.ConfidenceLow,
		AllEmailsFound:     []string{},
	}
}

// state is the per-call working set shared by the strategies.
type state struct {
	ranked []models.CandidateName
	domain string
	pool   []pooled
}

type pooled struct {
	email  string
	source models.EmailSource
}

func newState(in Input) *state {
	st := &state{}
	if d, ok := crawl.ExtractDomain(in.WebsiteURL); ok {
		st.domain = d
	}

	valid := make([]models.CandidateName, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		c.Name = strings.Join(strings.Fields(c.Name), " ")
		if names.IsValidPersonName(c.Name) {
			valid = append(valid, c)
		}
	}
	st.ranked = Rank(valid)

	seen := map[string]bool{}
	add := func(email string, source models.EmailSource) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || !strings.Contains(email, "@") || seen[email] {
			return
		}
		seen[email] = true
		st.pool = append(st.pool, pooled{email: email, source: source})
	}
	for _, c := range st.ranked {
		if c.Source == models.SourceApollo {
			add(c.Email, models.EmailSourceApollo)
		} else {
			add(c.Email, models.EmailSourceWebsiteScrape)
		}
	}
	for _, e := range in.ExistingEmails {
		add(e, models.EmailSourceWebsiteScrape)
	}
	add(in.KnownEmail, knownSource(in.KnownEmailSource))
	return st
}

// knownSource maps a stored provenance onto the pool. Addresses imported
// without one came from the operator and count as found.
func knownSource(s models.EmailSource) models.EmailSource {
	switch s {
	case models.EmailSourceApollo, models.EmailSourceCommonPatterns, models.EmailSourceGenericFallback:
		return s
	default:
		return models.EmailSourceWebsiteScrape
	}
}

func (st *state) top() *models.CandidateName {
	if len(st.ranked) == 0 {
		return nil
	}
	return &st.ranked[0]
}

// allEmails orders every known address: name matches, generated permutations,
// other discovered addresses, then generic role addresses.
func (st *state) allEmails() []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(e string) {
		if e != "" && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}

	for _, c := range st.ranked {
		_, last, ok := names.Split(c.Name)
		if !ok || len(last) < minLastNameLen {
			continue
		}
		for _, p := range st.pool {
			if strings.Contains(localPart(p.email), last) {
				add(p.email)
			}
		}
	}
	if top := st.top(); top != nil && st.domain != "" {
		for _, e := range Permutations(top.Name, st.domain) {
			add(e)
		}
	}
	var generic []string
	for _, p := range st.pool {
		if IsGenericLocalPart(localPart(p.email)) {
			generic = append(generic, p.email)
			continue
		}
		add(p.email)
	}
	for _, e := range generic {
		add(e)
	}
	if st.domain != "" {
		add("info@" + st.domain)
	}
	return out
}

func localPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
