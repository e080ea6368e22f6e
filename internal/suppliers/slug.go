package suppliers

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugRepeatDash   = regexp.MustCompile(`-{2,}`)
)

// BaseSlug derives the human-readable identifier stem from a supplier name:
// diacritics folded, lower-cased, punctuation stripped, whitespace collapsed
// to single hyphens, truncated to 50 characters.
func BaseSlug(name string) string {
	s := strings.ToLower(foldDiacritics(strings.TrimSpace(name)))
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugRepeatDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > slugMaxLength {
		s = strings.Trim(s[:slugMaxLength], "-")
	}
	if s == "" {
		s = "supplier"
	}
	return s
}

// NextSlug picks the slug for a new supplier given every existing tenant
// slug sharing the base prefix. With no collision the base itself is
// returned; under collision the numeric suffix grows monotonically, so
// concurrent creators converge to base, base-1, base-2, ...
func NextSlug(base string, existing []string) string {
	if len(existing) == 0 {
		return base
	}
	suffixPattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `-(\d+)$`)
	baseTaken := false
	maxSuffix := 0
	for _, slug := range existing {
		if slug == base {
			baseTaken = true
			continue
		}
		if m := suffixPattern.FindStringSubmatch(slug); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxSuffix {
				maxSuffix = n
			}
		}
	}
	if !baseTaken && maxSuffix == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(maxSuffix+1)
}
