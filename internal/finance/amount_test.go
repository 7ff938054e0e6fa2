package finance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/finance"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		unit finance.Unit
	}{
		{"$2.4M", 2.4e6, finance.UnitCurrency},
		{"$450K", 450e3, finance.UnitCurrency},
		{"15%", 15, finance.UnitPercent},
		{"-3.5%", -3.5, finance.UnitPercent},
		{"(1,200)", -1200, finance.UnitPlain},
		{"3.1 billion", 3.1e9, finance.UnitPlain},
		{"€12", 12, finance.UnitCurrency},
		{"1,250,000", 1250000, finance.UnitPlain},
		{"-$1.2M", -1.2e6, finance.UnitCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, ok := finance.ParseAmount(tt.in)
			require.True(t, ok)
			assert.InDelta(t, tt.want, a.Value, 1e-6)
			assert.Equal(t, tt.unit, a.Unit)
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "$", "12 apples", "n/a"} {
		_, ok := finance.ParseAmount(in)
		assert.False(t, ok, in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$2.4M", finance.FormatCurrency(2.4e6))
	assert.Equal(t, "$450K", finance.FormatCurrency(450e3))
	assert.Equal(t, "-$1.5B", finance.FormatCurrency(-1.5e9))
	assert.Equal(t, "$12", finance.FormatCurrency(12))
	assert.Equal(t, "15%", finance.FormatPercent(0.15))
	assert.Equal(t, "22.5%", finance.FormatPercent(22.5))
	assert.Equal(t, "420", finance.FormatPlain(420))
	assert.Equal(t, "12.5K", finance.FormatPlain(12500))
}

func TestIsYear(t *testing.T) {
	assert.True(t, finance.IsYear("2023"))
	assert.False(t, finance.IsYear("2023.5"))
	assert.False(t, finance.IsYear("3023"))
}

func TestLookup(t *testing.T) {
	term, ok := finance.Lookup("  Total Revenue: ")
	require.True(t, ok)
	assert.Equal(t, "Revenue", term.Canonical)

	term, ok = finance.Lookup("Adj. EBITDA")
	require.True(t, ok)
	assert.Equal(t, "EBITDA", term.Canonical)

	_, ok = finance.Lookup("Office plants")
	assert.False(t, ok)
}

func TestMentions_PrefersLongestAlias(t *testing.T) {
	ms := finance.Mentions("Revenue growth was 15% while revenue reached $2.4M.")
	require.Len(t, ms, 2)
	assert.Equal(t, "Growth Rate", ms[0].Term.Canonical)
	assert.Equal(t, "Revenue", ms[1].Term.Canonical)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "net income", finance.NormalizeLabel("Net   Income:"))
	assert.Equal(t, "p&l", finance.NormalizeLabel("P&L"))
}
