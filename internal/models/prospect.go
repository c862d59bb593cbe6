package models

import "time"

const (
	StatusPending   = "pending"
	StatusEnriched  = "enriched"
	StatusContacted = "contacted"
)

type Prospect struct {
	ID            string    `json:"id"`
	PropertyName  string    `json:"propertyName"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	Website       string    `json:"website,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailSource   string    `json:"emailSource,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ContactName   string    `json:"contactName,omitempty"`
	ContactRole   string    `json:"contactRole,omitempty"`
	LinkedInURL   string    `json:"linkedinUrl,omitempty"`
	InstagramURL  string    `json:"instagramUrl,omitempty"`
	GooglePlaceID string    `json:"googlePlaceId,omitempty"`
	StarRating    int       `json:"starRating,omitempty"`
	RoomCount     int       `json:"roomCount,omitempty"`
	ChainBrand    string    `json:"chainBrand,omitempty"`
	JobTitle      string    `json:"jobTitle,omitempty"` // hiring signal from the job board
	Score         int       `json:"score"`
	Tier          string    `json:"tier,omitempty"`
	Status        string    `json:"status,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// EnrichedProspect is the outcome of one enrichment run, ready for persistence.
type EnrichedProspect struct {
	RunID      string           `json:"runId"`
	Prospect   Prospect         `json:"prospect"`
	Enrichment EnrichmentResult `json:"enrichment"`
	Website    WebsiteExtract   `json:"website"`
	Score      ScoreBreakdown   `json:"score"`
	Tier       string           `json:"tier"`
	Sources    []string         `json:"sources"`
}

// OutreachMessage is a drafted email to a resolved decision-maker.
type OutreachMessage struct {
	ProspectID string `json:"prospectId"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Generator  string `json:"generator"`
}

// OutreachRecord is what gets stored once a message has been handed to the mail provider.
type OutreachRecord struct {
	MessageID  string    `json:"messageId"`
	ProspectID string    `json:"prospectId"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Provider   string    `json:"provider"`
	SentAt     time.Time `json:"sentAt"`
}
