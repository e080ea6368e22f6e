package suppliers

// Signal weights for the composite (non-identifier) score.
const (
	scoreNameExact  = 30
	scoreNameStrong = 25
	scoreNameGood   = 20
	scoreNameWeak   = 10

	scoreAddressFull    = 25
	scoreAddressCity    = 15
	scoreAddressCountry = 10

	scoreDomainMatch = 20
	scorePhoneMatch  = 5
	scoreEmailMatch  = 5

	scoreIBANMatch     = 20
	scoreAccountMatch  = 15
	scoreBankNameMatch = 10

	compositeLabelFloor = 50
)

// MatchInput is the flattened observation handed to the scorer. Identifier
// fields are expected to be the enhanced (cleaned) values.
type MatchInput struct {
	Name            string
	CompanyNumber   string
	VATNumber       string
	Addresses       []AddressInput
	Contacts        []ContactInput
	BankAccounts    []BankAccountInput
	FieldConfidence map[string]int
}

// MatchResult is the winning candidate with its confidence and the signal
// that decided it. Supplier is nil when no candidate scored above zero.
type MatchResult struct {
	Supplier   *Supplier
	Confidence int
	Type       MatchType
}

// BestMatch scores the observation against every candidate in strict
// priority order: exact company number, then exact VAT number, then the
// highest weighted composite score. An identifier hit short-circuits; no
// composite stack on another candidate can outrank it.
func BestMatch(in MatchInput, candidates []Candidate) MatchResult {
	// Priority 1: exact company number. Strongest possible signal, wins
	// regardless of how dissimilar every other field is.
	if in.CompanyNumber != "" {
		for i := range candidates {
			if candidates[i].Supplier.CompanyNumber == in.CompanyNumber {
				return MatchResult{Supplier: &candidates[i].Supplier, Confidence: 100, Type: MatchCompanyNumber}
			}
		}
	}

	// Priority 2: exact VAT number, always confidence 95. Fires only when
	// no company number matched.
	if in.VATNumber != "" {
		for i := range candidates {
			if candidates[i].Supplier.VATNumber == in.VATNumber {
				return MatchResult{Supplier: &candidates[i].Supplier, Confidence: 95, Type: MatchVATNumber}
			}
		}
	}

	best := MatchResult{Type: MatchNone}
	for i := range candidates {
		score, matchType := compositeScore(in, &candidates[i])
		if score > best.Confidence {
			best = MatchResult{Supplier: &candidates[i].Supplier, Confidence: score, Type: matchType}
		}
	}
	if best.Supplier == nil {
		return MatchResult{Type: MatchNone}
	}
	return best
}

func compositeScore(in MatchInput, cand *Candidate) (int, MatchType) {
	namePts := nameTier(NameSimilarity(in.Name, cand.Supplier.LegalName))
	addressPts := bestAddressTier(in.Addresses, cand.addressPayloads())
	domainPts := 0
	if domainsIntersect(inputDomains(in.Contacts), cand.domains()) {
		domainPts = scoreDomainMatch
	}

	contactPts := 0
	candEmails := toSet(cand.contactValues(AttributeEmail))
	candPhones := toSet(cand.contactValues(AttributePhone))
	emailCounted, phoneCounted := false, false
	for _, c := range in.Contacts {
		switch c.Type {
		case AttributeEmail:
			if !emailCounted && contains(candEmails, normalizeContact(c)) {
				contactPts += scoreEmailMatch
				emailCounted = true
			}
		case AttributePhone:
			if !phoneCounted && contains(candPhones, normalizeContact(c)) {
				contactPts += scorePhoneMatch
				phoneCounted = true
			}
		}
	}

	bankPts := bestBankTier(in.BankAccounts, cand.bankPayloads())

	score := namePts + addressPts + domainPts + contactPts + bankPts
	score = applyConfidenceMultiplier(score, in.FieldConfidence)
	if score > 100 {
		score = 100
	}
	if score <= 0 {
		return 0, MatchNone
	}
	return score, labelComposite(score, namePts, domainPts, addressPts)
}

func nameTier(sim float64) int {
	switch {
	case sim >= 1:
		return scoreNameExact
	case sim >= 0.9:
		return scoreNameStrong
	case sim >= 0.7:
		return scoreNameGood
	case sim >= 0.5:
		return scoreNameWeak
	default:
		return 0
	}
}

// bestAddressTier scores the most complete agreement between any observed
// address and any stored address payload.
func bestAddressTier(inputs []AddressInput, stored []map[string]any) int {
	best := 0
	for _, in := range inputs {
		for _, st := range stored {
			tier := addressTier(in, st)
			if tier > best {
				best = tier
			}
		}
	}
	return best
}

func addressTier(in AddressInput, stored map[string]any) int {
	line1 := normField(in.Line1)
	city := normField(in.City)
	country := normField(in.Country)
	sLine1, _ := stored["line1"].(string)
	sCity, _ := stored["city"].(string)
	sCountry, _ := stored["country"].(string)

	switch {
	case line1 != "" && line1 == sLine1 && city != "" && city == sCity && country != "" && country == sCountry:
		return scoreAddressFull
	case city != "" && city == sCity && country != "" && country == sCountry:
		return scoreAddressCity
	case country != "" && country == sCountry:
		return scoreAddressCountry
	default:
		return 0
	}
}

func bestBankTier(inputs []BankAccountInput, stored []map[string]any) int {
	best := 0
	for _, in := range inputs {
		for _, st := range stored {
			tier := bankTier(in, st)
			if tier > best {
				best = tier
			}
		}
	}
	return best
}

func bankTier(in BankAccountInput, stored map[string]any) int {
	sIBAN, _ := stored["iban"].(string)
	sAccount, _ := stored["accountNumber"].(string)
	sBank, _ := stored["bankName"].(string)

	if in.IBAN != "" && normField(in.IBAN) == sIBAN {
		return scoreIBANMatch
	}
	if in.AccountNumber != "" && normField(in.AccountNumber) == sAccount {
		return scoreAccountMatch
	}
	if in.BankName != "" && sBank != "" && NameSimilarity(in.BankName, sBank) >= 0.7 {
		return scoreBankNameMatch
	}
	return 0
}

// applyConfidenceMultiplier scales the composite score by the average
// extraction confidence supplied by the upstream extractor, when present.
func applyConfidenceMultiplier(score int, fieldConfidence map[string]int) int {
	if len(fieldConfidence) == 0 || score == 0 {
		return score
	}
	total := 0
	for _, c := range fieldConfidence {
		total += c
	}
	avg := total / len(fieldConfidence)
	var multiplier float64
	switch {
	case avg >= 80:
		multiplier = 1.0
	case avg >= 60:
		multiplier = 0.8
	case avg >= 40:
		multiplier = 0.6
	default:
		multiplier = 0.4
	}
	return int(float64(score) * multiplier)
}

// labelComposite names the match. A dedicated signal label is used only when
// that signal contributed at least half the total; otherwise the match is a
// composite of weak agreements.
func labelComposite(score, namePts, domainPts, addressPts int) MatchType {
	if score < compositeLabelFloor {
		return MatchComposite
	}
	switch {
	case namePts*2 >= score && namePts >= domainPts && namePts >= addressPts:
		return MatchName
	case domainPts*2 >= score && domainPts >= addressPts:
		return MatchDomain
	case addressPts*2 >= score:
		return MatchAddress
	default:
		return MatchComposite
	}
}

// CreationScore answers whether an unmatched observation carries enough
// information to justify a brand-new supplier, independent of candidates.
func CreationScore(in MatchInput) int {
	score := 0
	if in.Name != "" {
		score += 30
	}
	if in.CompanyNumber != "" {
		score += 15
	}
	if in.VATNumber != "" {
		score += 10
	}
	score += bestAddressTierInput(in.Addresses)

	domainBonus := false
	for _, c := range in.Contacts {
		switch c.Type {
		case AttributeEmail:
			score += scoreEmailMatch
			if !domainBonus && IsCorporateDomain(ExtractDomain(c.Value)) {
				score += scoreDomainMatch
				domainBonus = true
			}
		case AttributePhone:
			score += scorePhoneMatch
		case AttributeWebsite:
			score += scoreDomainMatch
		}
	}

	best := 0
	for _, b := range in.BankAccounts {
		tier := 0
		switch {
		case b.IBAN != "":
			tier = scoreIBANMatch
		case b.AccountNumber != "":
			tier = scoreAccountMatch
		case b.BankName != "":
			tier = scoreBankNameMatch
		}
		if tier > best {
			best = tier
		}
	}
	score += best

	if score > 100 {
		score = 100
	}
	return score
}

func bestAddressTierInput(addresses []AddressInput) int {
	best := 0
	for _, a := range addresses {
		tier := 0
		switch {
		case a.Line1 != "" && a.City != "" && a.Country != "":
			tier = scoreAddressFull
		case a.City != "" && a.Country != "":
			tier = scoreAddressCity
		case a.Country != "":
			tier = scoreAddressCountry
		}
		if tier > best {
			best = tier
		}
	}
	return best
}

// Candidate attribute accessors. Attribute payloads are stored normalized,
// so lookups compare against lower-cased trimmed values.

func (c *Candidate) contactValues(t AttributeType) []string {
	var out []string
	for _, attr := range c.Attributes {
		if attr.Type != t || !attr.Active {
			continue
		}
		if v, ok := attr.Value["value"].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Candidate) addressPayloads() []map[string]any {
	return c.payloads(AttributeAddress)
}

func (c *Candidate) bankPayloads() []map[string]any {
	return c.payloads(AttributeBankAccount)
}

func (c *Candidate) payloads(t AttributeType) []map[string]any {
	var out []map[string]any
	for _, attr := range c.Attributes {
		if attr.Type == t && attr.Active {
			out = append(out, attr.Value)
		}
	}
	return out
}

// domains collects every domain derivable from the candidate's email and
// website attributes.
func (c *Candidate) domains() map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range []AttributeType{AttributeEmail, AttributeWebsite} {
		for _, v := range c.contactValues(t) {
			if d := ExtractDomain(v); d != "" {
				out[d] = struct{}{}
			}
		}
	}
	return out
}

func inputDomains(contacts []ContactInput) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range contacts {
		if c.Type != AttributeEmail && c.Type != AttributeWebsite {
			continue
		}
		if d := ExtractDomain(c.Value); d != "" {
			out[d] = struct{}{}
		}
	}
	return out
}

func domainsIntersect(a, b map[string]struct{}) bool {
	for d := range a {
		if _, ok := b[d]; ok {
			return true
		}
	}
	return false
}

func normalizeContact(c ContactInput) string {
	if c.Type == AttributePhone {
		return digitsOnly(c.Value)
	}
	return normField(c.Value)
}

func normField(s string) string {
	v, _ := Normalize(s).(string)
	return v
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func contains(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}
