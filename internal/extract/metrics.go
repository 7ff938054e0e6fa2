package extract

import (
	"strings"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

const metricWindow = 80

var tightSeparators = map[string]bool{
	"": true, ":": true, "-": true, "=": true, "was": true, "of": true,
	"is": true, "at": true, "reached": true, "totaled": true, "of approximately": true,
}

// scanMetrics finds "label ... value" pairs for the known vocabulary.
// The first occurrence of each metric wins.
func scanMetrics(text string) []domain.KeyMetric {
	mentions := finance.Mentions(text)
	seen := make(map[string]bool)
	var out []domain.KeyMetric

	for i, m := range mentions {
		if seen[m.Term.Canonical] {
			continue
		}
		end := len(text)
		if nl := strings.IndexByte(text[m.End:], '\n'); nl >= 0 {
			end = m.End + nl
		}
		if m.End+metricWindow < end {
			end = m.End + metricWindow
		}
		if i+1 < len(mentions) && mentions[i+1].Start < end {
			end = mentions[i+1].Start
		}
		window := text[m.End:end]

		for _, loc := range finance.AmountPattern.FindAllStringIndex(window, -1) {
			raw := strings.TrimSpace(window[loc[0]:loc[1]])
			if raw == "" || finance.IsYear(raw) {
				continue
			}
			amt, ok := finance.ParseAmount(raw)
			if !ok {
				continue
			}
			prefix := strings.ToLower(strings.TrimSpace(window[:loc[0]]))
			var conf float64
			switch {
			case tightSeparators[prefix]:
				conf = 0.95
			case amt.Unit != finance.UnitPlain:
				conf = 0.92
			default:
				conf = 0.88
			}
			seen[m.Term.Canonical] = true
			out = append(out, domain.KeyMetric{
				Label:      m.Term.Canonical,
				Value:      raw,
				Confidence: domain.Confidence(conf),
			})
			break
		}
	}
	return out
}
