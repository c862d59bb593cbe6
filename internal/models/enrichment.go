// internal/models/enrichment.go
package models

type CandidateSource string

const (
	SourceWebsite CandidateSource = "website"
	SourceSearch  CandidateSource = "search"
	SourceWhois   CandidateSource = "whois"
	SourceApollo  CandidateSource = "apollo"
)

// CandidateName is transient working state inside one enrichment run.
type CandidateName struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Email       string          `json:"email,omitempty"`
	LinkedInURL string          `json:"linkedinUrl,omitempty"`
	Source      CandidateSource `json:"source"`
}

type SocialLinks struct {
	LinkedIn    string `json:"linkedin,omitempty"`
	Instagram   string `json:"instagram,omitempty"`
	Facebook    string `json:"facebook,omitempty"`
	Twitter     string `json:"twitter,omitempty"`
	TripAdvisor string `json:"tripadvisor,omitempty"`
	Booking     string `json:"booking,omitempty"`
}

type PropertyInfo struct {
	StarRating  int      `json:"starRating,omitempty"`
	RoomCount   int      `json:"roomCount,omitempty"`
	ChainBrand  string   `json:"chainBrand,omitempty"`
	Amenities   []string `json:"amenities"`
	Description string   `json:"description,omitempty"`
}

// WebsiteExtract aggregates everything found on one site. It is not modified after the crawl returns it.
type WebsiteExtract struct {
	Emails         []string        `json:"emails"`
	Phones         []string        `json:"phones"`
	SocialLinks    SocialLinks     `json:"socialLinks"`
	PropertyInfo   PropertyInfo    `json:"propertyInfo"`
	TeamMembers    []CandidateName `json:"teamMembers"`
	ContactPageURL string          `json:"contactPageUrl,omitempty"`
}

// EmptyWebsiteExtract has every collection initialised so it serialises as empty arrays.
func EmptyWebsiteExtract() WebsiteExtract {
	return WebsiteExtract{
		Emails:       []string{},
		Phones:       []string{},
		PropertyInfo: PropertyInfo{Amenities: []string{}},
		TeamMembers:  []CandidateName{},
	}
}

type EmailSource string

const (
	EmailSourceWebsiteScrape   EmailSource = "website_scrape"
	EmailSourceApollo          EmailSource = "apollo"
	EmailSourceCommonPatterns  EmailSource = "common_patterns"
	EmailSourceGenericFallback EmailSource = "generic_fallback"
	EmailSourceNone            EmailSource = "none"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type EnrichmentResult struct {
	ContactName        string      `json:"contactName,omitempty"`
	ContactRole        string      `json:"contactRole,omitempty"`
	ValidatedEmail     *string     `json:"validatedEmail"`
	EmailPatternSource EmailSource `json:"emailPatternSource"`
	ConfidenceScore    Confidence  `json:"confidenceScore"`
	AllEmailsFound     []string    `json:"allEmailsFound"`
	FallbackMethod     string      `json:"fallbackMethod,omitempty"`
	Strategy           string      `json:"strategy,omitempty"`
}

type ScoreBreakdown struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
}

// WhoisContact is the registrant identity returned by RDAP.
type WhoisContact struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}

type PlaceDetails struct {
	PlaceID string  `json:"placeId"`
	Name    string  `json:"name,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Website string  `json:"website,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Address string  `json:"address,omitempty"`
}
