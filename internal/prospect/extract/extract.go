// Package extract pulls contact and property data out of raw hotel website HTML.
// Nothing here does I/O and nothing here panics on malformed input.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"prospect-workers/internal/models"
)

const maxPhones = 5

var (
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s().\-/]{8,22}\d`)

	excludedEmailDomains = []string{
		"example.com", "example.org", "domain.com", "yourdomain", "email.com",
		"sentry", "wixpress", "wix.com", "googleapis", "gstatic", "google-analytics",
		"googletagmanager", "doubleclick", "cloudfront", "cloudinary", "imgix",
		"akamai", "hotjar", "segment.io", "schema.org", "w3.org",
	}
	fakeLocalParts = map[string]bool{
		"test": true, "demo": true, "noreply": true, "no-reply": true,
		"john": true, "jane": true, "admin": true, "user": true,
		"name": true, "email": true, "yourname": true, "example": true,
	}
	artifactSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

	socialPatterns = []struct {
		set     func(*models.SocialLinks, string)
		pattern *regexp.Regexp
	}{
		{func(s *models.SocialLinks, v string) { s.LinkedIn = v }, regexp.MustCompile(`(?i)https?://(?:[a-z]{2,3}\.)?linkedin\.com/(?:company|in)/[a-z0-9_\-%.]+`)},
		{func(s *models.SocialLinks, v string) { s.Instagram = v }, regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/[a-z0-9_.]+`)},
		{func(s *models.SocialLinks, v string) { s.Facebook = v }, regexp.MustCompile(`(?i)https?://(?:www\.|m\.|[a-z]{2}-[a-z]{2}\.)?facebook\.com/[a-z0-9_.\-]+`)},
		{func(s *models.SocialLinks, v string) { s.Twitter = v }, regexp.MustCompile(`(?i)https?://(?:www\.)?(?:twitter|x)\.com/[a-z0-9_]+`)},
		{func(s *models.SocialLinks, v string) { s.TripAdvisor = v }, regexp.MustCompile(`(?i)https?://(?:www\.)?tripadvisor\.[a-z.]+/[^\s"'<>]+`)},
		{func(s *models.SocialLinks, v string) { s.Booking = v }, regexp.MustCompile(`(?i)https?://(?:www\.)?booking\.com/[^\s"'<>]+`)},
	}
	// share widgets and tracking pixels rather than the property's own profile
	socialNoise = map[string]bool{
		"tr": true, "sharer": true, "sharer.php": true, "share": true, "share.php": true,
		"plugins": true, "dialog": true, "intent": true, "home": true, "login": true, "p": true,
	}

	scriptStylePattern = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
	spacePattern       = regexp.MustCompile(`[ \t\f\r\v\x{00a0}]+`)
)

// Extract runs every sub-extraction independently against html.
func Extract(html string) models.WebsiteExtract {
	out := models.EmptyWebsiteExtract()
	if strings.TrimSpace(html) == "" {
		return out
	}

	var doc *goquery.Document
	safely("parse", func() {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			doc = d
		}
	})
	text := ""
	safely("text", func() { text = VisibleText(html) })

	safely("emails", func() { out.Emails = Emails(html, doc) })
	safely("phones", func() { out.Phones = Phones(text, doc) })
	safely("socials", func() { out.SocialLinks = Socials(html) })
	safely("property", func() { out.PropertyInfo = Property(text, doc) })
	safely("team", func() { out.TeamMembers = TeamMembers(html, text, doc) })

	if out.Emails == nil {
		out.Emails = []string{}
	}
	if out.Phones == nil {
		out.Phones = []string{}
	}
	if out.PropertyInfo.Amenities == nil {
		out.PropertyInfo.Amenities = []string{}
	}
	if out.TeamMembers == nil {
		out.TeamMembers = []models.CandidateName{}
	}
	return out
}

// safely runs one extraction step. A panic loses only that step's fields and
// is logged through the global zap logger.
func safely(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("extraction step panicked", zap.String("step", step), zap.Any("panic", r))
		}
	}()
	fn()
}

// VisibleText strips scripts and tags, leaving one text block per line.
func VisibleText(html string) string {
	s := scriptStylePattern.ReplaceAllString(html, "\n")
	s = tagPattern.ReplaceAllString(s, "\n")
	s = unescapeEntities(s)

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&", "&nbsp;", " ", "&#64;", "@", "&commat;", "@", "&quot;", `"`,
	"&#39;", "'", "&apos;", "'", "&lt;", "<", "&gt;", ">", "&ndash;", "–", "&mdash;", "—",
	"&auml;", "ä", "&ouml;", "ö", "&uuml;", "ü", "&szlig;", "ß", "&eacute;", "é", "&egrave;", "è",
	"&#9733;", "★",
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// Emails returns lowercased, de-duplicated addresses in document order, mailto links first.
func Emails(html string, doc *goquery.Document) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(raw string) {
		e := sanitizeEmail(raw)
		if e == "" || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}

	if doc != nil {
		doc.Find(`a[href^="mailto:"], a[href^="MAILTO:"]`).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			add(href)
		})
	}
	for _, m := range emailPattern.FindAllString(unescapeEntities(html), -1) {
		add(m)
	}
	return out
}

func sanitizeEmail(raw string) string {
	clean := strings.TrimSpace(raw)
	if len(clean) >= 7 && strings.EqualFold(clean[:7], "mailto:") {
		clean = clean[7:]
	}
	if idx := strings.Index(clean, "?"); idx != -1 {
		clean = clean[:idx]
	}
	if decoded, err := url.PathUnescape(clean); err == nil {
		clean = decoded
	}
	clean = strings.Trim(clean, "<>()[]{}.,;:\"'` ")

	match := strings.ToLower(emailPattern.FindString(clean))
	if match == "" || !IsUsableEmail(match) {
		return ""
	}
	return match
}

// IsUsableEmail rejects placeholder, tracking and file-artifact addresses.
func IsUsableEmail(email string) bool {
	email = strings.ToLower(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]

	if fakeLocalParts[local] {
		return false
	}
	for _, d := range excludedEmailDomains {
		if strings.Contains(domain, d) {
			return false
		}
	}
	for _, suffix := range artifactSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return false
		}
	}
	// retina asset names like logo@2x.png
	if strings.HasPrefix(domain, "2x.") || strings.HasPrefix(domain, "3x.") {
		return false
	}
	return true
}

// Phones keeps numbers with 10 to 15 digits, de-duplicated by digits, at most five.
func Phones(text string, doc *goquery.Document) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(raw string) {
		if len(out) >= maxPhones {
			return
		}
		phone := strings.TrimSpace(raw)
		digits := digitsOnly(phone)
		if len(digits) < 10 || len(digits) > 15 || seen[digits] {
			return
		}
		seen[digits] = true
		out = append(out, phone)
	}

	if doc != nil {
		doc.Find(`a[href^="tel:"]`).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if decoded, err := url.PathUnescape(strings.TrimPrefix(href, "tel:")); err == nil {
				add(decoded)
			}
		})
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		add(m)
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Socials takes the first profile link per platform.
func Socials(html string) models.SocialLinks {
	var links models.SocialLinks
	for _, p := range socialPatterns {
		for _, m := range p.pattern.FindAllString(html, -1) {
			if isSocialNoise(m) {
				continue
			}
			p.set(&links, strings.TrimRight(m, `.,;)\`))
			break
		}
	}
	return links
}

func isSocialNoise(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	segment := strings.ToLower(strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0])
	return socialNoise[segment]
}
