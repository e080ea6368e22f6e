package suppliers

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trading-name suffixes stripped before name comparison.
var legalSuffixes = map[string]struct{}{
	"ltd": {}, "limited": {}, "inc": {}, "incorporated": {}, "llc": {},
	"llp": {}, "plc": {}, "corp": {}, "corporation": {}, "co": {},
	"company": {}, "gmbh": {}, "ag": {}, "sa": {}, "sarl": {}, "srl": {},
	"bv": {}, "nv": {}, "oy": {}, "ab": {}, "as": {}, "aps": {}, "kg": {},
	"kft": {}, "pty": {}, "pte": {}, "sas": {}, "spa": {}, "ug": {},
}

// freeMailDomains are consumer mail providers that never identify a company.
var freeMailDomains = map[string]struct{}{
	"gmail.com": {}, "googlemail.com": {}, "yahoo.com": {}, "yahoo.co.uk": {},
	"hotmail.com": {}, "hotmail.co.uk": {}, "outlook.com": {}, "live.com": {},
	"icloud.com": {}, "aol.com": {}, "protonmail.com": {}, "proton.me": {},
	"gmx.com": {}, "gmx.de": {}, "web.de": {}, "mail.com": {},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldDiacritics strips combining marks so "Société" compares as "Societe".
func foldDiacritics(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName lower-cases, folds diacritics, removes punctuation and strips
// legal suffixes so "ACME Holdings Ltd." compares against "acme holdings".
func NormalizeName(name string) string {
	lowered := strings.ToLower(foldDiacritics(strings.TrimSpace(name)))
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := legalSuffixes[f]; ok {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		// Name consisted only of suffix tokens; fall back to the raw tokens.
		kept = fields
	}
	return strings.Join(kept, " ")
}

// NameSimilarity returns a similarity in [0,1] between two company names
// based on normalized edit distance over suffix-stripped forms.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	dist := levenshtein(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// TrigramSimilarity computes a Jaccard index over character trigrams of the
// normalized names. Used by the bounded global fuzzy scan where edit distance
// over long candidate lists would be too strict on word reordering.
func TrigramSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == nb {
		if na == "" {
			return 0
		}
		return 1
	}
	ga, gb := trigrams(na), trigrams(nb)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	intersection := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			intersection++
		}
	}
	union := len(ga) + len(gb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	out := make(map[string]struct{})
	r := []rune(s)
	if len(r) == 0 {
		return out
	}
	if len(r) < 3 {
		out[string(r)] = struct{}{}
		return out
	}
	for i := 0; i+3 <= len(r); i++ {
		out[string(r[i:i+3])] = struct{}{}
	}
	return out
}

// ExtractDomain pulls the registrable host out of an email address or URL.
// Returns "" when no host can be derived.
func ExtractDomain(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	if at := strings.LastIndex(v, "@"); at >= 0 && at < len(v)-1 {
		return strings.TrimPrefix(v[at+1:], "www.")
	}
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	u, err := url.Parse(v)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// IsCorporateDomain reports whether the domain plausibly identifies a
// company rather than a consumer mail provider.
func IsCorporateDomain(domain string) bool {
	if domain == "" {
		return false
	}
	_, free := freeMailDomains[domain]
	return !free
}
