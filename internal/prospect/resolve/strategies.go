package resolve

import (
	"regexp"
	"sort"
	"strings"

	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/names"
)

const minLastNameLen = 3

// TitlePriority orders decision-maker titles, most senior first.
var TitlePriority = []string{
	"general manager",
	"gm",
	"owner",
	"managing director",
	"hotel manager",
	"operations manager",
	"director of operations",
	"front office manager",
	"it manager",
	"revenue manager",
	"geschäftsführer",
	"ceo",
	"founder",
	"proprietor",
	"director of sales",
	"sales director",
	"director",
}

var titlePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(TitlePriority))
	for i, t := range TitlePriority {
		out[i] = regexp.MustCompile(`(?i)(^|[^\pL])` + regexp.QuoteMeta(t) + `($|[^\pL])`)
	}
	return out
}()

var (
	genericPrefixes = []string{"info", "contact", "reservations", "reception", "hello", "enquiries"}
	fakeTokens      = []string{"johndoe", "test", "example", "placeholder"}
)

// TitleRank is the index of title in TitlePriority, or len(TitlePriority) when unknown.
func TitleRank(title string) int {
	for i, p := range titlePatterns {
		if p.MatchString(title) {
			return i
		}
	}
	return len(TitlePriority)
}

// Rank sorts candidates by title priority; equal ranks keep input order.
func Rank(candidates []models.CandidateName) []models.CandidateName {
	out := make([]models.CandidateName, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return TitleRank(out[i].Title) < TitleRank(out[j].Title)
	})
	return out
}

// IsGenericLocalPart reports role mailboxes such as info@ or reservations@.
func IsGenericLocalPart(local string) bool {
	local = strings.ToLower(local)
	for _, p := range genericPrefixes {
		if strings.HasPrefix(local, p) {
			return true
		}
	}
	return false
}

// IsGenericEmail applies IsGenericLocalPart to a full address.
func IsGenericEmail(email string) bool {
	return IsGenericLocalPart(localPart(strings.ToLower(email)))
}

func HasFakeToken(local string) bool {
	local = strings.ToLower(local)
	for _, t := range fakeTokens {
		if strings.Contains(local, t) {
			return true
		}
	}
	return false
}

// Permutations generates the usual corporate address shapes for name at domain,
// most common first.
func Permutations(name, domain string) []string {
	first, last, ok := names.Split(name)
	if !ok || domain == "" {
		return nil
	}
	f := first[:1]
	locals := []string{
		first + "." + last,
		first,
		f + last,
		first + last,
		last + "." + first,
		f + "." + last,
	}
	out := make([]string, len(locals))
	for i, l := range locals {
		out[i] = l + "@" + domain
	}
	return out
}

// outcome is what a strategy proposes before the policy filter runs.
type outcome struct {
	candidate      *models.CandidateName
	email          string
	source         models.EmailSource
	fallbackMethod string
}

type strategy struct {
	name string
	run  func(st *state) (outcome, bool)
}

var strategies = []strategy{
	{"exact_match", exactMatch},
	{"pattern_generation", patternGeneration},
	{"generic_fallback", genericFallback},
}

func firstSuccess(st *state, list []strategy) (outcome, string, bool) {
	for _, s := range list {
		if out, ok := s.run(st); ok {
			return out, s.name, true
		}
	}
	return outcome{}, "", false
}

// exactMatch takes, in rank order, the first candidate whose own address or a
// discovered address carries their last name in the local part.
func exactMatch(st *state) (outcome, bool) {
	for i := range st.ranked {
		c := &st.ranked[i]
		_, last, ok := names.Split(c.Name)
		if !ok || len(last) < minLastNameLen {
			continue
		}
		for _, p := range st.pool {
			if strings.Contains(localPart(p.email), last) {
				return outcome{candidate: c, email: p.email, source: p.source}, true
			}
		}
	}
	return outcome{}, false
}

func patternGeneration(st *state) (outcome, bool) {
	top := st.top()
	if top == nil || st.domain == "" {
		return outcome{}, false
	}
	perms := Permutations(top.Name, st.domain)
	if len(perms) == 0 {
		return outcome{}, false
	}
	return outcome{candidate: top, email: perms[0], source: models.EmailSourceCommonPatterns}, true
}

func genericFallback(st *state) (outcome, bool) {
	if st.top() != nil || st.domain == "" {
		return outcome{}, false
	}
	return outcome{
		email:          "info@" + st.domain,
		source:         models.EmailSourceGenericFallback,
		fallbackMethod: FallbackCallReception,
	}, true
}
