// Package scoring turns an enriched prospect into an additive lead score and tier.
package scoring

import (
	"strings"

	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/resolve"
)

const (
	TierHot  = "hot"
	TierWarm = "warm"
	TierCold = "cold"

	hotThreshold  = 70
	warmThreshold = 40
)

// Reason codes used as breakdown keys.
const (
	ReasonPersonalEmail  = "personal_email"
	ReasonGenericEmail   = "generic_email"
	ReasonNamedContact   = "named_contact"
	ReasonPhone          = "phone"
	ReasonWebsite        = "website"
	ReasonLinkedIn       = "linkedin"
	ReasonInstagram      = "instagram"
	ReasonGoogleVerified = "google_verified"
	ReasonFiveStar       = "five_star"
	ReasonFourStar       = "four_star"
	ReasonLuxuryChain    = "luxury_chain"
	ReasonChain          = "chain"
	ReasonIndependent    = "independent"
	ReasonPremiumMarket  = "premium_market"
	ReasonSeniorHiring   = "hiring_senior"
	ReasonGrowthHiring   = "hiring_growth"
	ReasonOpsHiring      = "hiring_ops"
)

var luxuryBrands = []string{
	"four seasons",
	"ritz carlton",
	"mandarin oriental",
	"peninsula",
	"aman",
	"rosewood",
	"st regis",
	"bulgari",
	"six senses",
}

var premiumMarkets = []string{
	"london", "paris", "dubai", "new york", "singapore", "hong kong", "tokyo", "zurich",
	"geneva", "monaco", "milan", "rome", "barcelona", "munich", "vienna", "miami",
	"los angeles", "sydney",
}

var (
	seniorKeywords = []string{"general manager", "managing director", "director", "head of", "vice president", "vp", "chief", "owner"}
	growthKeywords = []string{"revenue", "marketing", "digital", "sales", "tech", "innovation"}
	opsKeywords    = []string{"operations", "front office", "guest", "reservations", "supervisor", "manager"}
)

// Score is a pure function of p; Total always equals the sum of Breakdown.
func Score(p models.Prospect) models.ScoreBreakdown {
	breakdown := map[string]int{}
	add := func(reason string, points int) {
		if reason != "" && points > 0 {
			breakdown[reason] = points
		}
	}

	add(emailPoints(p))
	if strings.TrimSpace(p.ContactName) != "" {
		add(ReasonNamedContact, 15)
	}
	if strings.TrimSpace(p.Phone) != "" {
		add(ReasonPhone, 5)
	}

	if p.Website != "" {
		add(ReasonWebsite, 5)
	}
	if p.LinkedInURL != "" {
		add(ReasonLinkedIn, 10)
	}
	if p.InstagramURL != "" {
		add(ReasonInstagram, 5)
	}
	if p.GooglePlaceID != "" {
		add(ReasonGoogleVerified, 5)
	}

	add(starPoints(p.StarRating))
	add(brandPoints(p.ChainBrand))

	if containsWord(strings.ToLower(p.City), premiumMarkets) {
		add(ReasonPremiumMarket, 15)
	}
	add(hiringPoints(p.JobTitle))

	total := 0
	for _, pts := range breakdown {
		total += pts
	}
	return models.ScoreBreakdown{Total: total, Breakdown: breakdown}
}

// Tier classifies a total score.
func Tier(total int) string {
	if total >= hotThreshold {
		return TierHot
	} else if total >= warmThreshold {
		return TierWarm
	}
	return TierCold
}

func emailPoints(p models.Prospect) (string, int) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return "", 0
	}
	generated := p.EmailSource == string(models.EmailSourceCommonPatterns) ||
		p.EmailSource == string(models.EmailSourceGenericFallback)
	if resolve.IsGenericEmail(email) || generated {
		return ReasonGenericEmail, 5
	}
	return ReasonPersonalEmail, 15
}

func starPoints(stars int) (string, int) {
	if stars >= 5 {
		return ReasonFiveStar, 15
	} else if stars == 4 {
		return ReasonFourStar, 10
	}
	return "", 0
}

func brandPoints(brand string) (string, int) {
	b := strings.ToLower(strings.TrimSpace(brand))
	if b == "" {
		return ReasonIndependent, 5
	} else if containsWord(b, luxuryBrands) {
		return ReasonLuxuryChain, 15
	}
	return ReasonChain, 5
}

func hiringPoints(title string) (string, int) {
	t := strings.ToLower(title)
	if t == "" {
		return "", 0
	} else if containsWord(t, seniorKeywords) {
		return ReasonSeniorHiring, 15
	} else if containsWord(t, growthKeywords) {
		return ReasonGrowthHiring, 10
	} else if containsWord(t, opsKeywords) {
		return ReasonOpsHiring, 5
	}
	return "", 0
}

// containsWord matches keywords on word boundaries, so "vp" does not hit "mvp".
// Punctuation counts as a boundary: "Ritz-Carlton" matches "ritz carlton".
func containsWord(s string, list []string) bool {
	fields := " " + strings.Join(strings.FieldsFunc(s, isSeparator), " ") + " "
	for _, item := range list {
		if strings.Contains(fields, " "+item+" ") {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}
