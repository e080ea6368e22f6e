package suppliers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseSlug(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Acme Office Supplies Ltd", "acme-office-supplies-ltd"},
		{"  Société Générale  ", "societe-generale"},
		{"A & B — Trading!", "a-b-trading"},
		{"!!!", "supplier"},
		{"", "supplier"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, BaseSlug(tc.name), tc.name)
	}
}

func TestBaseSlugTruncates(t *testing.T) {
	long := strings.Repeat("verylongname ", 10)
	slug := BaseSlug(long)
	require.LessOrEqual(t, len(slug), 50)
	require.NotEqual(t, "-", slug[len(slug)-1:])
}

func TestNextSlugSequence(t *testing.T) {
	base := "acme"
	var existing []string

	// Three sequential creators converge to base, base-1, base-2.
	for _, want := range []string{"acme", "acme-1", "acme-2"} {
		got := NextSlug(base, existing)
		require.Equal(t, want, got)
		existing = append(existing, got)
	}
}

func TestNextSlugSkipsGaps(t *testing.T) {
	got := NextSlug("acme", []string{"acme", "acme-7"})
	require.Equal(t, "acme-8", got)
}

func TestNextSlugIgnoresUnrelated(t *testing.T) {
	got := NextSlug("acme", []string{"acme-corp", "acmeish"})
	require.Equal(t, "acme", got)
}
