// Package names decides whether a scraped string plausibly names a person.
package names

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`^[A-Z][a-z]+$`)

var commonFirstNames = toSet(
	// English
	"james", "john", "robert", "michael", "william", "david", "richard", "joseph", "thomas", "charles",
	"christopher", "daniel", "matthew", "anthony", "mark", "donald", "steven", "paul", "andrew", "joshua",
	"kenneth", "kevin", "brian", "george", "timothy", "ronald", "edward", "jason", "jeffrey", "ryan",
	"jacob", "gary", "nicholas", "eric", "jonathan", "stephen", "larry", "justin", "scott", "brandon",
	"benjamin", "samuel", "frank", "gregory", "patrick", "alexander", "jack", "dennis", "peter", "oliver",
	"harry", "simon", "adam", "tom", "ben", "sam", "max", "luke", "mary", "patricia",
	"jennifer", "linda", "elizabeth", "barbara", "susan", "jessica", "sarah", "karen", "nancy", "lisa",
	"betty", "margaret", "sandra", "ashley", "emily", "donna", "michelle", "carol", "amanda", "melissa",
	"deborah", "stephanie", "rebecca", "laura", "sharon", "cynthia", "kathleen", "amy", "helen", "anna",
	"emma", "olivia", "sophie", "charlotte", "lucy", "grace", "chloe", "hannah", "rachel", "claire",
	"kate", "jane", "julia", "victoria", "natalie", "alice",
	// German / Central European
	"hans", "klaus", "jurgen", "stefan", "andreas", "markus", "tobias", "florian", "lukas", "felix",
	"sebastian", "matthias", "christian", "wolfgang", "dieter", "uwe", "jan", "tim", "nina", "katrin",
	"sabine", "petra", "monika", "ursula", "andrea", "birgit", "heike", "claudia", "stefanie", "julia",
	// French / Italian / Spanish
	"jean", "pierre", "louis", "nicolas", "philippe", "antoine", "francois", "marie", "sophie", "camille",
	"marco", "luca", "giovanni", "giuseppe", "alessandro", "francesca", "giulia", "chiara", "carlos", "jose",
	"juan", "javier", "miguel", "pablo", "maria", "carmen", "lucia", "elena", "sofia", "isabel",
	// Other common
	"ahmed", "mohamed", "omar", "ali", "raj", "arjun", "priya", "wei", "li", "kenji",
)

// Words that mark a company, place or hospitality phrase rather than a surname.
var notAPersonPattern = regexp.MustCompile(`(?i)^(hotel|hotels|resort|resorts|spa|suites?|inn|lodge|hostel|motel|apartments?|residence|palace|plaza|tower|towers|villa|villas|beach|bay|park|garden|gardens|grand|royal|boutique|luxury|restaurant|bar|lounge|group|holdings?|hospitality|management|international|collection|company|limited|ltd|gmbh|inc|llc|corp|plc|ag|sa|srl|london|paris|berlin|munich|vienna|zurich|geneva|rome|milan|madrid|barcelona|lisbon|amsterdam|dubai|york|tokyo|singapore|sydney|miami|chicago|boston|marriott|hilton|hyatt|sheraton|westin|ritz|carlton|radisson|novotel|ibis|accor|kempinski|fairmont|intercontinental|mandarin|oriental|four|seasons|peninsula|shangri|wyndham|contact|about|team|staff|manager|director|reservations|reception|general|office|home|welcome|services)$`)

// IsValidPersonName applies all four checks: overall length, word shape,
// a plausible first name and a surname that is not company or place noise.
func IsValidPersonName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 5 || len(s) > 40 {
		return false
	}

	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 {
		return false
	}

	for _, w := range words {
		if len(w) < 2 || len(w) > 15 || !wordPattern.MatchString(w) {
			return false
		}
	}

	first := words[0]
	if _, ok := commonFirstNames[strings.ToLower(first)]; !ok && (len(first) < 3 || len(first) > 10) {
		return false
	}

	last := words[len(words)-1]
	if len(last) < 3 || len(last) > 15 {
		return false
	}
	return !notAPersonPattern.MatchString(last)
}

// TrimToPerson finds the person inside a greedy capitalised run such as
// "Hotel Adlon Anna Weber" or "Anna Weber Hotel". Windows containing noise
// words are skipped. A window starting with a common first name wins;
// otherwise the rightmost valid window is used. It returns "" when none is valid.
func TrimToPerson(s string) string {
	words := strings.Fields(s)
	best := ""
	for start := 0; start+2 <= len(words); start++ {
		for end := len(words); end >= start+2; end-- {
			window := words[start:end]
			if hasNoise(window) {
				continue
			}
			candidate := strings.Join(window, " ")
			if !IsValidPersonName(candidate) {
				continue
			}
			if _, ok := commonFirstNames[strings.ToLower(window[0])]; ok {
				return candidate
			}
			best = candidate
			break
		}
	}
	return best
}

func hasNoise(words []string) bool {
	for _, w := range words {
		if notAPersonPattern.MatchString(w) {
			return true
		}
	}
	return false
}

// Split returns lowercased first and last name, stripped of anything but letters.
// ok is false when the name has fewer than two words.
func Split(full string) (first, last string, ok bool) {
	words := strings.Fields(full)
	if len(words) < 2 {
		return "", "", false
	}
	first = lettersOnly(words[0])
	last = lettersOnly(words[len(words)-1])
	if first == "" || last == "" {
		return "", "", false
	}
	return first, last, true
}

var transliterations = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'å': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ø': "o",
	'ù': "u", 'ú': "u", 'û': "u",
	'ç': "c", 'ñ': "n", 'ý': "y",
}

// lettersOnly lowercases s, folds common accented letters to ASCII and drops the rest.
func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		default:
			if t, ok := transliterations[r]; ok {
				b.WriteString(t)
			}
		}
	}
	return b.String()
}

func toSet(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
