package suppliers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func candidateWith(sup Supplier, attrs ...SupplierAttribute) Candidate {
	for i := range attrs {
		attrs[i].SupplierID = sup.ID
		attrs[i].Active = true
	}
	return Candidate{Supplier: sup, Attributes: attrs}
}

func attr(t AttributeType, payload any) SupplierAttribute {
	value, hash, err := NormalizePayload(payload)
	if err != nil {
		panic(err)
	}
	return SupplierAttribute{ID: uuid.New(), Type: t, Value: value, Hash: hash}
}

func TestBestMatchCompanyNumberWins(t *testing.T) {
	exact := candidateWith(Supplier{ID: uuid.New(), CompanyNumber: "01234567", LegalName: "Completely Different Name"})
	similar := candidateWith(Supplier{ID: uuid.New(), LegalName: "Acme Trading Ltd"})

	got := BestMatch(MatchInput{Name: "Acme Trading", CompanyNumber: "01234567"},
		[]Candidate{similar, exact})

	require.NotNil(t, got.Supplier)
	require.Equal(t, exact.Supplier.ID, got.Supplier.ID)
	require.Equal(t, 100, got.Confidence)
	require.Equal(t, MatchCompanyNumber, got.Type)
}

func TestBestMatchVATNumber(t *testing.T) {
	vat := candidateWith(Supplier{ID: uuid.New(), VATNumber: "GB123456789", LegalName: "Acme Group"})

	got := BestMatch(MatchInput{Name: "Something Else", VATNumber: "GB123456789"},
		[]Candidate{vat})

	require.Equal(t, 95, got.Confidence)
	require.Equal(t, MatchVATNumber, got.Type)
}

func TestBestMatchVATBeatsStackedComposite(t *testing.T) {
	vat := candidateWith(Supplier{ID: uuid.New(), VATNumber: "GB123456789", LegalName: "Completely Different Name"})
	stacked := candidateWith(
		Supplier{ID: uuid.New(), LegalName: "Acme Trading Ltd"},
		attr(AttributeAddress, AddressInput{Line1: "1 Main St", City: "London", Country: "GB"}),
		attr(AttributeEmail, map[string]any{"value": "billing@acme.com"}),
		attr(AttributeBankAccount, BankAccountInput{IBAN: "GB82WEST12345698765432"}),
	)

	in := MatchInput{
		Name:      "Acme Trading Ltd",
		VATNumber: "GB123456789",
		Addresses: []AddressInput{{Line1: "1 Main St", City: "London", Country: "GB"}},
		Contacts: []ContactInput{
			{Type: AttributeEmail, Value: "billing@acme.com"},
		},
		BankAccounts: []BankAccountInput{{IBAN: "GB82WEST12345698765432"}},
	}
	got := BestMatch(in, []Candidate{stacked, vat})

	// The stacked candidate composites to 100, but the exact VAT hit has
	// strict priority and always reports exactly 95.
	require.NotNil(t, got.Supplier)
	require.Equal(t, vat.Supplier.ID, got.Supplier.ID)
	require.Equal(t, 95, got.Confidence)
	require.Equal(t, MatchVATNumber, got.Type)
}

func TestBestMatchCompositeName(t *testing.T) {
	cand := candidateWith(Supplier{ID: uuid.New(), LegalName: "Acme Trading Ltd"})

	got := BestMatch(MatchInput{Name: "ACME Trading Limited"}, []Candidate{cand})

	// Exact normalized name alone: 30 points.
	require.Equal(t, 30, got.Confidence)
	require.Equal(t, MatchComposite, got.Type)
}

func TestBestMatchCompositeStacksSignals(t *testing.T) {
	cand := candidateWith(
		Supplier{ID: uuid.New(), LegalName: "Acme Trading Ltd"},
		attr(AttributeAddress, AddressInput{Line1: "1 Main St", City: "London", Country: "GB"}),
		attr(AttributeEmail, map[string]any{"value": "billing@acme.com"}),
	)

	in := MatchInput{
		Name:      "Acme Trading",
		Addresses: []AddressInput{{Line1: "1 Main St", City: "London", Country: "GB"}},
		Contacts: []ContactInput{
			{Type: AttributeEmail, Value: "Billing@ACME.com"},
		},
	}
	got := BestMatch(in, []Candidate{cand})

	// name 30 + address 25 + domain 20 + email 5 = 80; no single signal
	// carries half the total, so the match is labelled composite.
	require.Equal(t, 80, got.Confidence)
	require.Equal(t, MatchComposite, got.Type)
}

func TestBestMatchNameLabel(t *testing.T) {
	cand := candidateWith(
		Supplier{ID: uuid.New(), LegalName: "Acme Trading Ltd"},
		attr(AttributeAddress, AddressInput{Line1: "1 Main St", City: "London", Country: "GB"}),
	)

	got := BestMatch(MatchInput{
		Name:      "Acme Trading",
		Addresses: []AddressInput{{Line1: "1 Main St", City: "London", Country: "GB"}},
	}, []Candidate{cand})

	// name 30 + address 25 = 55; the name carries at least half the total.
	require.Equal(t, 55, got.Confidence)
	require.Equal(t, MatchName, got.Type)
}

func TestBestMatchAddressTiers(t *testing.T) {
	cand := candidateWith(
		Supplier{ID: uuid.New(), LegalName: "Northwind"},
		attr(AttributeAddress, AddressInput{Line1: "5 Quay Rd", City: "Bristol", Country: "GB"}),
	)

	cityOnly := BestMatch(MatchInput{
		Name:      "Northwind",
		Addresses: []AddressInput{{Line1: "99 Other St", City: "Bristol", Country: "GB"}},
	}, []Candidate{cand})
	// name 30 + city+country 15 = 45
	require.Equal(t, 45, cityOnly.Confidence)

	countryOnly := BestMatch(MatchInput{
		Name:      "Northwind",
		Addresses: []AddressInput{{Line1: "99 Other St", City: "Leeds", Country: "GB"}},
	}, []Candidate{cand})
	// name 30 + country 10 = 40
	require.Equal(t, 40, countryOnly.Confidence)
}

func TestBestMatchBankTiers(t *testing.T) {
	cand := candidateWith(
		Supplier{ID: uuid.New(), LegalName: "Acme"},
		attr(AttributeBankAccount, BankAccountInput{
			IBAN:          "GB82WEST12345698765432",
			AccountNumber: "98765432",
			BankName:      "Barclays",
		}),
	)

	iban := BestMatch(MatchInput{
		Name:         "Acme",
		BankAccounts: []BankAccountInput{{IBAN: "GB82WEST12345698765432"}},
	}, []Candidate{cand})
	require.Equal(t, 50, iban.Confidence) // name 30 + IBAN 20

	account := BestMatch(MatchInput{
		Name:         "Acme",
		BankAccounts: []BankAccountInput{{AccountNumber: "98765432"}},
	}, []Candidate{cand})
	require.Equal(t, 45, account.Confidence) // name 30 + account 15
}

func TestBestMatchConfidenceMultiplier(t *testing.T) {
	cand := candidateWith(Supplier{ID: uuid.New(), LegalName: "Acme Trading"})

	in := MatchInput{
		Name:            "Acme Trading",
		FieldConfidence: map[string]int{"name": 65, "address": 70},
	}
	got := BestMatch(in, []Candidate{cand})
	// 30 * 0.8 = 24
	require.Equal(t, 24, got.Confidence)

	in.FieldConfidence = map[string]int{"name": 30}
	got = BestMatch(in, []Candidate{cand})
	// 30 * 0.4 = 12
	require.Equal(t, 12, got.Confidence)
}

func TestBestMatchNoCandidates(t *testing.T) {
	got := BestMatch(MatchInput{Name: "Acme"}, nil)
	require.Nil(t, got.Supplier)
	require.Equal(t, MatchNone, got.Type)
	require.Zero(t, got.Confidence)
}

func TestCreationScore(t *testing.T) {
	// Name only: 30, below the default create threshold of 60.
	require.Equal(t, 30, CreationScore(MatchInput{Name: "Acme"}))

	// Name + company number + full address: 30 + 15 + 25 = 70.
	in := MatchInput{
		Name:          "Acme",
		CompanyNumber: "01234567",
		Addresses:     []AddressInput{{Line1: "1 Main St", City: "London", Country: "GB"}},
	}
	require.Equal(t, 70, CreationScore(in))

	// Corporate email earns the domain bonus on top of the contact point.
	in = MatchInput{
		Name: "Acme",
		Contacts: []ContactInput{
			{Type: AttributeEmail, Value: "billing@acme.com"},
		},
	}
	require.Equal(t, 55, CreationScore(in)) // 30 + 5 + 20

	// Free-mail addresses earn no domain bonus.
	in.Contacts[0].Value = "acme@gmail.com"
	require.Equal(t, 35, CreationScore(in))
}
