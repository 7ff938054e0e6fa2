package finance

import (
	"regexp"
	"sort"
	"strings"
)

// Term is a canonical metric with the phrasings that refer to it.
type Term struct {
	Canonical string
	Aliases   []string
	Unit      Unit
}

// Vocabulary lists the metrics recognised in documents, in display order.
var Vocabulary = []Term{
	{Canonical: "Revenue", Unit: UnitCurrency, Aliases: []string{"revenue", "total revenue", "net revenue", "revenues", "sales", "net sales", "turnover", "top line"}},
	{Canonical: "EBITDA", Unit: UnitCurrency, Aliases: []string{"ebitda", "adjusted ebitda", "adj. ebitda"}},
	{Canonical: "Net Income", Unit: UnitCurrency, Aliases: []string{"net income", "net profit", "profit after tax", "net earnings"}},
	{Canonical: "Gross Margin", Unit: UnitPercent, Aliases: []string{"gross margin", "gross profit margin"}},
	{Canonical: "Operating Margin", Unit: UnitPercent, Aliases: []string{"operating margin", "ebit margin", "ebitda margin"}},
	{Canonical: "Growth Rate", Unit: UnitPercent, Aliases: []string{"growth rate", "revenue growth", "yoy growth", "growth"}},
	{Canonical: "Cash Flow", Unit: UnitCurrency, Aliases: []string{"cash flow", "free cash flow", "operating cash flow", "fcf"}},
	{Canonical: "ARR", Unit: UnitCurrency, Aliases: []string{"arr", "annual recurring revenue", "recurring revenue"}},
	{Canonical: "Customers", Unit: UnitPlain, Aliases: []string{"customers", "customer count", "clients", "active customers"}},
	{Canonical: "Headcount", Unit: UnitPlain, Aliases: []string{"headcount", "employees", "fte", "ftes"}},
}

type aliasEntry struct {
	alias string
	term  int
	re    *regexp.Regexp
}

var aliasIndex []aliasEntry

func init() {
	for i, t := range Vocabulary {
		for _, a := range t.Aliases {
			aliasIndex = append(aliasIndex, aliasEntry{
				alias: a,
				term:  i,
				re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(a) + `\b`),
			})
		}
	}
	// longest phrasing first so "revenue growth" beats "revenue"
	sort.SliceStable(aliasIndex, func(i, j int) bool {
		return len(aliasIndex[i].alias) > len(aliasIndex[j].alias)
	})
}

// NormalizeLabel lowercases s and collapses punctuation and whitespace.
func NormalizeLabel(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '&', r == '.':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return strings.Trim(b.String(), ".")
}

// Lookup returns the term whose alias equals the normalized label.
func Lookup(label string) (Term, bool) {
	n := NormalizeLabel(label)
	if n == "" {
		return Term{}, false
	}
	for _, e := range aliasIndex {
		if e.alias == n {
			return Vocabulary[e.term], true
		}
	}
	return Term{}, false
}

// Mention is an alias occurrence inside free text.
type Mention struct {
	Term  Term
	Start int
	End   int
}

// Mentions finds non-overlapping alias occurrences in text, ordered by position.
func Mentions(text string) []Mention {
	var out []Mention
	taken := make([]bool, len(text))
	for _, e := range aliasIndex {
		for _, loc := range e.re.FindAllStringIndex(text, -1) {
			if overlaps(taken, loc[0], loc[1]) {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			out = append(out, Mention{Term: Vocabulary[e.term], Start: loc[0], End: loc[1]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func overlaps(taken []bool, from, to int) bool {
	for i := from; i < to; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

// Index returns the display position of a canonical label, or len(Vocabulary).
func Index(canonical string) int {
	for i, t := range Vocabulary {
		if t.Canonical == canonical {
			return i
		}
	}
	return len(Vocabulary)
}
