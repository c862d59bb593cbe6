package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"prospect-workers/internal/models"
)

const maxDescriptionRunes = 300

var (
	starPattern  = regexp.MustCompile(`(?i)\b([1-5])[\s\-]*(?:star|stars|sterne|stern|étoiles|etoiles|étoile)\b`)
	glyphPattern = regexp.MustCompile(`★{2,5}`)
	roomPattern  = regexp.MustCompile(`(?i)\b(\d{1,4})\s+(?:guest\s+)?(?:rooms|zimmer|chambres)\b`)
)

// ChainBrands is ordered; the first brand found in the page text wins.
var ChainBrands = []string{
	"Ritz-Carlton", "Four Seasons", "Mandarin Oriental", "St. Regis", "Waldorf Astoria",
	"Park Hyatt", "Rosewood", "Aman", "Peninsula", "Kempinski",
	"Shangri-La", "Fairmont", "Sofitel", "InterContinental", "Conrad",
	"JW Marriott", "Marriott", "Sheraton", "Westin", "Hilton",
	"Hyatt", "Radisson", "Crowne Plaza", "Holiday Inn", "Novotel",
	"Mercure", "Pullman", "Ibis", "Steigenberger", "Melia",
	"NH Hotels", "Wyndham", "Best Western", "Motel One", "Premier Inn",
}

var amenityKeywords = []struct {
	name     string
	keywords []string
}{
	{"spa", []string{"spa", "wellness"}},
	{"pool", []string{"pool", "swimming"}},
	{"gym", []string{"gym", "fitness"}},
	{"restaurant", []string{"restaurant"}},
	{"bar", []string{"bar"}},
	{"wifi", []string{"wifi", "wi-fi", "wlan"}},
	{"parking", []string{"parking", "parkplatz"}},
	{"conference", []string{"conference", "meeting room", "tagung"}},
	{"concierge", []string{"concierge"}},
	{"room service", []string{"room service", "zimmerservice"}},
	{"airport shuttle", []string{"airport shuttle", "shuttle"}},
	{"sauna", []string{"sauna"}},
	{"beach", []string{"beach", "strand"}},
	{"golf", []string{"golf"}},
	{"kids club", []string{"kids club", "kinderclub"}},
	{"pet friendly", []string{"pet friendly", "pet-friendly", "pets allowed", "haustiere"}},
}

// Property derives star rating, room count, chain brand, description and amenities.
func Property(text string, doc *goquery.Document) models.PropertyInfo {
	info := models.PropertyInfo{Amenities: []string{}}

	safely("star_rating", func() { info.StarRating = starRating(text) })
	safely("room_count", func() { info.RoomCount = roomCount(text) })
	safely("chain_brand", func() { info.ChainBrand = ChainBrand(text) })
	safely("description", func() { info.Description = description(doc) })
	safely("amenities", func() { info.Amenities = amenities(text) })

	return info
}

func starRating(text string) int {
	if m := starPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := glyphPattern.FindString(text); m != "" {
		return utf8.RuneCountInString(m)
	}
	return 0
}

func roomCount(text string) int {
	m := roomPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 || n > 5000 {
		return 0
	}
	return n
}

// ChainBrand reports the first known hospitality chain mentioned in text.
func ChainBrand(text string) string {
	lower := strings.ToLower(text)
	for _, brand := range ChainBrands {
		if containsWord(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	return ""
}

func containsWord(haystack, needle string) bool {
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if (start == 0 || !isLetter(haystack[start-1])) && (end == len(haystack) || !isLetter(haystack[end])) {
			return true
		}
		from = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func description(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	content := ""
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`, `meta[name="Description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			content = strings.TrimSpace(v)
			break
		}
	}
	if utf8.RuneCountInString(content) > maxDescriptionRunes {
		content = string([]rune(content)[:maxDescriptionRunes])
	}
	return content
}

func amenities(text string) []string {
	lower := strings.ToLower(strings.ReplaceAll(text, "\n", " "))
	out := []string{}
	for _, a := range amenityKeywords {
		for _, kw := range a.keywords {
			if containsWord(lower, kw) {
				out = append(out, a.name)
				break
			}
		}
	}
	return out
}
