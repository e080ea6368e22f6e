package suppliers

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// QualityReport is the outcome of per-field business validation. Warnings
// never block; only blocking errors make the observation unusable.
type QualityReport struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	Confidence int
	Enhanced   EnhancedData
}

// EnhancedData carries normalized, validated values the caller substitutes
// back into the request before matching.
type EnhancedData struct {
	CompanyNumber      string
	VATNumber          string
	Email              string
	Phone              string
	Website            string
	CompanyNumberValid bool
	VATNumberValid     bool
}

// HasIdentifier reports whether at least one identifier survived validation.
func (e EnhancedData) HasIdentifier() bool {
	return e.CompanyNumber != "" || e.VATNumber != ""
}

// Per-country identifier formats. Unknown countries fall back to the length
// heuristics below; invalid formats downgrade to warnings, never errors.
var companyNumberPatterns = map[string]*regexp.Regexp{
	"GB": regexp.MustCompile(`^([0-9]{8}|[A-Z]{2}[0-9]{6})$`),
	"IE": regexp.MustCompile(`^[0-9]{5,7}$`),
	"FR": regexp.MustCompile(`^[0-9]{9}([0-9]{5})?$`),
	"DE": regexp.MustCompile(`^HR[AB][0-9]{1,6}$`),
	"NL": regexp.MustCompile(`^[0-9]{8}$`),
	"BE": regexp.MustCompile(`^0[0-9]{9}$`),
	"ES": regexp.MustCompile(`^[A-Z][0-9]{8}$`),
	"IT": regexp.MustCompile(`^[0-9]{11}$`),
	"US": regexp.MustCompile(`^[0-9]{2}-?[0-9]{7}$`),
}

var vatNumberPatterns = map[string]*regexp.Regexp{
	"GB": regexp.MustCompile(`^GB([0-9]{9}|[0-9]{12})$`),
	"IE": regexp.MustCompile(`^IE[0-9][A-Z0-9][0-9]{5}[A-Z]{1,2}$`),
	"FR": regexp.MustCompile(`^FR[A-Z0-9]{2}[0-9]{9}$`),
	"DE": regexp.MustCompile(`^DE[0-9]{9}$`),
	"NL": regexp.MustCompile(`^NL[0-9]{9}B[0-9]{2}$`),
	"BE": regexp.MustCompile(`^BE0[0-9]{9}$`),
	"ES": regexp.MustCompile(`^ES[A-Z0-9][0-9]{7}[A-Z0-9]$`),
	"IT": regexp.MustCompile(`^IT[0-9]{11}$`),
}

const (
	companyNumberMinLen = 4
	companyNumberMaxLen = 20
	vatNumberMinLen     = 8
	vatNumberMaxLen     = 15

	nameMinLen = 2
	nameMaxLen = 200
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CheckQuality runs per-field business validation over the flattened
// candidate fields of a sanitized request and scores the observation.
func CheckQuality(data IngestData) QualityReport {
	report := QualityReport{Confidence: 100}
	country := data.Identifiers.Country

	validateName(data.Name, &report)
	validateCompanyNumber(data.Identifiers.CompanyNumber, country, &report)
	validateVATNumber(data.Identifiers.VATNumber, country, &report)
	validateContacts(data.Contacts, &report)

	report.Confidence -= 20 * len(report.Errors)
	report.Confidence -= 5 * len(report.Warnings)

	if report.Enhanced.CompanyNumberValid && report.Enhanced.VATNumberValid {
		report.Confidence += 10
	}
	if !report.Enhanced.HasIdentifier() {
		report.Confidence -= 30
	}
	if report.Enhanced.Email != "" {
		report.Confidence += 5
	}
	if report.Enhanced.Phone != "" {
		report.Confidence += 5
	}
	if report.Enhanced.Website != "" {
		report.Confidence += 5
	}

	report.Confidence = clampScore(report.Confidence)
	report.Valid = len(report.Errors) == 0
	return report
}

func validateName(name string, report *QualityReport) {
	runeLen := len([]rune(name))
	if runeLen < nameMinLen || runeLen > nameMaxLen {
		report.Errors = append(report.Errors, "name length must be between 2 and 200 characters")
		return
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		report.Errors = append(report.Errors, "name must contain at least one letter")
	}
}

func validateCompanyNumber(value, country string, report *QualityReport) {
	if value == "" {
		return
	}
	cleaned := strings.ReplaceAll(strings.ReplaceAll(value, " ", ""), "-", "")
	report.Enhanced.CompanyNumber = cleaned

	if pattern, ok := companyNumberPatterns[country]; ok {
		if pattern.MatchString(cleaned) {
			report.Enhanced.CompanyNumberValid = true
			return
		}
		report.Warnings = append(report.Warnings, "company number does not match the "+country+" format")
		return
	}
	if len(cleaned) >= companyNumberMinLen && len(cleaned) <= companyNumberMaxLen {
		report.Enhanced.CompanyNumberValid = true
		return
	}
	report.Warnings = append(report.Warnings, "company number length is implausible")
}

func validateVATNumber(value, country string, report *QualityReport) {
	if value == "" {
		return
	}
	cleaned := strings.ReplaceAll(strings.ReplaceAll(value, " ", ""), ".", "")
	report.Enhanced.VATNumber = cleaned

	if pattern, ok := vatNumberPatterns[country]; ok {
		if pattern.MatchString(cleaned) {
			report.Enhanced.VATNumberValid = true
			return
		}
		report.Warnings = append(report.Warnings, "vat number does not match the "+country+" format")
		return
	}
	if len(cleaned) >= vatNumberMinLen && len(cleaned) <= vatNumberMaxLen {
		report.Enhanced.VATNumberValid = true
		return
	}
	report.Warnings = append(report.Warnings, "vat number length is implausible")
}

func validateContacts(contacts []ContactInput, report *QualityReport) {
	for _, c := range contacts {
		switch c.Type {
		case AttributeEmail:
			email := strings.ToLower(c.Value)
			if emailPattern.MatchString(email) {
				if report.Enhanced.Email == "" || c.IsPrimary {
					report.Enhanced.Email = email
				}
			} else {
				report.Warnings = append(report.Warnings, "email address "+c.Value+" looks malformed")
			}
		case AttributePhone:
			digits := digitsOnly(c.Value)
			if len(digits) >= 7 && len(digits) <= 20 {
				if report.Enhanced.Phone == "" || c.IsPrimary {
					report.Enhanced.Phone = digits
				}
			} else {
				report.Warnings = append(report.Warnings, "phone number "+c.Value+" looks malformed")
			}
		case AttributeWebsite:
			site, ok := normalizeWebsite(c.Value)
			if ok {
				if report.Enhanced.Website == "" || c.IsPrimary {
					report.Enhanced.Website = site
				}
			} else {
				report.Warnings = append(report.Warnings, "website "+c.Value+" is not a valid http(s) URL")
			}
		}
	}
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

// normalizeWebsite adds an implicit https scheme when missing and verifies
// the value parses as an http(s) URL with a dotted host.
func normalizeWebsite(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	u, err := url.Parse(v)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.Contains(u.Hostname(), ".") {
		return "", false
	}
	return u.String(), true
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
