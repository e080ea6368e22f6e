package suppliers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStrings(t *testing.T) {
	require.Equal(t, "acme ltd", Normalize("  ACME Ltd "))
	require.Equal(t, "", Normalize(""))
}

func TestNormalizePrunesEmptyLeaves(t *testing.T) {
	in := map[string]any{
		"line1":      "10 Downing St",
		"line2":      "",
		"postalCode": nil,
		"city":       " London ",
	}
	out, ok := Normalize(in).(map[string]any)
	require.True(t, ok)
	require.Equal(t, map[string]any{
		"line1": "10 downing st",
		"city":  "london",
	}, out)
}

func TestNormalizeSortsArrays(t *testing.T) {
	a := Normalize([]any{"Beta", "alpha"})
	b := Normalize([]any{" ALPHA ", "beta"})
	require.Equal(t, a, b)
}

func TestHashSemanticEquality(t *testing.T) {
	a := map[string]any{"iban": "GB82WEST12345698765432", "bankName": " Barclays "}
	b := map[string]any{"bankName": "barclays", "iban": "gb82west12345698765432", "sortCode": nil}
	require.Equal(t, Hash(a), Hash(b))

	c := map[string]any{"iban": "GB82WEST12345698765431"}
	require.NotEqual(t, Hash(a), Hash(c))
}

func TestNormalizePayload(t *testing.T) {
	value, hash, err := NormalizePayload(AddressInput{
		Line1:   " 1 Main Street ",
		City:    "Dublin",
		Country: "IE",
	})
	require.NoError(t, err)
	require.Equal(t, "1 main street", value["line1"])
	require.Equal(t, "dublin", value["city"])
	require.Equal(t, "ie", value["country"])
	require.NotContains(t, value, "line2")
	require.Len(t, hash, 64)

	_, hash2, err := NormalizePayload(AddressInput{
		Line1:   "1 MAIN STREET",
		City:    " dublin",
		Country: "ie",
	})
	require.NoError(t, err)
	require.Equal(t, hash, hash2)
}
