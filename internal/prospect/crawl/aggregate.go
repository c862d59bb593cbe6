package crawl

import (
	"strings"

	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/extract"
)

// aggregate merges per-page extracts. The homepage is added first, so it wins
// for single-valued fields.
type aggregate struct {
	emails      []string
	emailSeen   map[string]bool
	phones      []string
	phoneSeen   map[string]bool
	socials     models.SocialLinks
	property    models.PropertyInfo
	amenitySeen map[string]bool
	team        []models.CandidateName
}

func newAggregate() *aggregate {
	return &aggregate{
		emails:      []string{},
		emailSeen:   map[string]bool{},
		phones:      []string{},
		phoneSeen:   map[string]bool{},
		property:    models.PropertyInfo{Amenities: []string{}},
		amenitySeen: map[string]bool{},
		team:        []models.CandidateName{},
	}
}

func (a *aggregate) add(page models.WebsiteExtract, withTeam bool) {
	for _, e := range page.Emails {
		if !a.emailSeen[e] {
			a.emailSeen[e] = true
			a.emails = append(a.emails, e)
		}
	}
	for _, p := range page.Phones {
		key := digits(p)
		if len(a.phones) >= maxPhones || a.phoneSeen[key] {
			continue
		}
		a.phoneSeen[key] = true
		a.phones = append(a.phones, p)
	}

	fill(&a.socials.LinkedIn, page.SocialLinks.LinkedIn)
	fill(&a.socials.Instagram, page.SocialLinks.Instagram)
	fill(&a.socials.Facebook, page.SocialLinks.Facebook)
	fill(&a.socials.Twitter, page.SocialLinks.Twitter)
	fill(&a.socials.TripAdvisor, page.SocialLinks.TripAdvisor)
	fill(&a.socials.Booking, page.SocialLinks.Booking)

	if a.property.StarRating == 0 {
		a.property.StarRating = page.PropertyInfo.StarRating
	}
	if a.property.RoomCount == 0 {
		a.property.RoomCount = page.PropertyInfo.RoomCount
	}
	fill(&a.property.ChainBrand, page.PropertyInfo.ChainBrand)
	fill(&a.property.Description, page.PropertyInfo.Description)
	for _, am := range page.PropertyInfo.Amenities {
		if !a.amenitySeen[am] {
			a.amenitySeen[am] = true
			a.property.Amenities = append(a.property.Amenities, am)
		}
	}

	if withTeam {
		a.team = append(a.team, page.TeamMembers...)
	}
}

func (a *aggregate) into(out *models.WebsiteExtract) {
	out.Emails = a.emails
	out.Phones = a.phones
	out.SocialLinks = a.socials
	out.PropertyInfo = a.property
	out.TeamMembers = extract.DedupeMembers(a.team)
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
