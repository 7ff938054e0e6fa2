package analysis

import (
	"github.com/agext/levenshtein"

	"dealdossier/internal/finance"
)

type candidate struct {
	phrase    string
	canonical string
}

// Normalizer maps free-form metric labels onto canonical names.
type Normalizer struct {
	aliases    map[string]string
	candidates []candidate
	similarity float64
}

// NewNormalizer builds a normalizer from the finance vocabulary and the policy aliases.
func NewNormalizer(p *Policy) *Normalizer {
	n := &Normalizer{
		aliases:    make(map[string]string, len(p.Aliases)),
		similarity: p.Similarity,
	}
	for _, t := range finance.Vocabulary {
		n.candidates = append(n.candidates, candidate{phrase: finance.NormalizeLabel(t.Canonical), canonical: t.Canonical})
		for _, a := range t.Aliases {
			n.candidates = append(n.candidates, candidate{phrase: a, canonical: t.Canonical})
		}
	}
	for phrase, canonical := range p.Aliases {
		n.aliases[finance.NormalizeLabel(phrase)] = canonical
	}
	return n
}

// Canonical returns the canonical name for label. Labels that match nothing come
// back normalized with ok=false so they can still be grouped.
func (n *Normalizer) Canonical(label string) (string, bool) {
	norm := finance.NormalizeLabel(label)
	if norm == "" {
		return "", false
	}
	if c, ok := n.aliases[norm]; ok {
		return c, true
	}
	if t, ok := finance.Lookup(norm); ok {
		return t.Canonical, true
	}

	best, bestScore := "", 0.0
	for _, c := range n.candidates {
		if s := similarity(norm, c.phrase); s > bestScore {
			best, bestScore = c.canonical, s
		}
	}
	if bestScore >= n.similarity {
		return best, true
	}
	return norm, false
}

func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(maxLen)
}
