package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prospect-workers/internal/models"
)

// TitleKeywords are the roles the pattern strategies look for, longest first so
// "General Manager" wins over "Manager"-like fragments.
var TitleKeywords = []string{
	"Director of Operations",
	"Front Office Manager",
	"Managing Director",
	"Operations Manager",
	"Director of Sales",
	"General Manager",
	"Revenue Manager",
	"Hotel Manager",
	"Sales Director",
	"Geschäftsführer",
	"Proprietor",
	"IT Manager",
	"Director",
	"Founder",
	"Owner",
	"CEO",
}

const namePart = `([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){1,3})`

var (
	titlePart = `(?i:(` + joinQuoted(TitleKeywords) + `))`

	nameCommaTitle = regexp.MustCompile(namePart + `[ \t]*,[ \t]*` + titlePart)
	nameDashTitle  = regexp.MustCompile(namePart + `[ \t]+[-–—|][ \t]*` + titlePart)
	titleColonName = regexp.MustCompile(titlePart + `[ \t]*:[ \t]*` + namePart)
	tagAdjacent    = regexp.MustCompile(`>[ \t\r\n]*` + namePart + `[ \t\r\n]*</[a-zA-Z0-9]+>[ \t\r\n]*(?:<[^>]+>[ \t\r\n]*){1,3}` + titlePart)

	leadingNoise = map[string]bool{
		"meet": true, "our": true, "the": true, "team": true, "contact": true, "about": true,
		"by": true, "with": true, "from": true, "dear": true, "mr": true, "mrs": true, "ms": true,
		"dr": true, "welcome": true, "hotel": true, "your": true, "hosts": true, "host": true,
	}
)

// teamStrategy is one named way of finding (name, title) pairs.
type teamStrategy struct {
	name string
	run  func(html, text string) []models.CandidateName
}

var teamStrategies = []teamStrategy{
	{"name_comma_title", func(_, text string) []models.CandidateName { return pairs(nameCommaTitle, text, 1, 2) }},
	{"name_dash_title", func(_, text string) []models.CandidateName { return pairs(nameDashTitle, text, 1, 2) }},
	{"title_colon_name", func(_, text string) []models.CandidateName { return pairs(titleColonName, text, 2, 1) }},
	{"tag_adjacent", func(html, _ string) []models.CandidateName { return pairs(tagAdjacent, html, 1, 2) }},
}

// TeamMembers combines structured data with the pattern strategies. Names are not
// validated here; duplicates collapse onto the entry carrying an email.
func TeamMembers(html, text string, doc *goquery.Document) []models.CandidateName {
	var found []models.CandidateName

	if doc != nil {
		safely("team_jsonld", func() { found = append(found, jsonLDPeople(doc)...) })
	}
	for _, s := range teamStrategies {
		s := s
		safely("team_"+s.name, func() { found = append(found, s.run(html, text)...) })
	}
	return DedupeMembers(found)
}

func pairs(re *regexp.Regexp, s string, nameIdx, titleIdx int) []models.CandidateName {
	var out []models.CandidateName
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		name := trimLeadingNoise(m[nameIdx])
		if name == "" {
			continue
		}
		out = append(out, models.CandidateName{
			Name:   name,
			Title:  canonicalTitle(m[titleIdx]),
			Source: models.SourceWebsite,
		})
	}
	return out
}

func trimLeadingNoise(name string) string {
	words := strings.Fields(name)
	for len(words) > 2 && leadingNoise[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) < 2 {
		return ""
	}
	return strings.Join(words, " ")
}

func canonicalTitle(raw string) string {
	for _, t := range TitleKeywords {
		if strings.EqualFold(t, raw) {
			return t
		}
	}
	return strings.TrimSpace(raw)
}

func jsonLDPeople(doc *goquery.Document) []models.CandidateName {
	var out []models.CandidateName
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var data interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return
		}
		out = append(out, walkLD(data, 0)...)
	})
	return out
}

func walkLD(node interface{}, depth int) []models.CandidateName {
	if depth > 6 {
		return nil
	}
	var out []models.CandidateName
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			out = append(out, walkLD(item, depth+1)...)
		}
	case map[string]interface{}:
		for _, key := range []string{"employee", "employees", "member", "members", "founder", "founders"} {
			if people, ok := v[key]; ok {
				out = append(out, ldPersons(people)...)
			}
		}
		if graph, ok := v["@graph"]; ok {
			out = append(out, walkLD(graph, depth+1)...)
		}
	}
	return out
}

func ldPersons(node interface{}) []models.CandidateName {
	switch v := node.(type) {
	case []interface{}:
		var out []models.CandidateName
		for _, item := range v {
			out = append(out, ldPersons(item)...)
		}
		return out
	case map[string]interface{}:
		name := strings.TrimSpace(ldString(v["name"]))
		if name == "" {
			given, family := ldString(v["givenName"]), ldString(v["familyName"])
			name = strings.TrimSpace(given + " " + family)
		}
		if name == "" {
			return nil
		}
		email := strings.TrimPrefix(strings.ToLower(ldString(v["email"])), "mailto:")
		if email != "" && !IsUsableEmail(email) {
			email = ""
		}
		return []models.CandidateName{{
			Name:   name,
			Title:  strings.TrimSpace(ldString(v["jobTitle"])),
			Email:  email,
			Source: models.SourceWebsite,
		}}
	}
	return nil
}

func ldString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []interface{}:
		if len(s) > 0 {
			return ldString(s[0])
		}
	}
	return ""
}

// DedupeMembers collapses entries by lowercased name, keeping the first one and
// taking email and title from a later duplicate when the first lacks them.
func DedupeMembers(in []models.CandidateName) []models.CandidateName {
	out := []models.CandidateName{}
	index := map[string]int{}
	for _, m := range in {
		key := strings.ToLower(strings.Join(strings.Fields(m.Name), " "))
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			if out[i].Email == "" && m.Email != "" {
				out[i].Email = m.Email
				if m.Title != "" {
					out[i].Title = m.Title
				}
			} else if out[i].Title == "" && m.Title != "" {
				out[i].Title = m.Title
			}
			continue
		}
		index[key] = len(out)
		out = append(out, m)
	}
	return out
}

func joinQuoted(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(quoted, "|")
}
