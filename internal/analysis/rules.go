package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

// corpus holds the searchable text of each file, aligned with the folded
// files. Entries are lowercased, single-spaced and padded with a space at
// each end so keywords can be matched on word boundaries.
type corpus []string

func buildCorpus(files []File) corpus {
	c := make(corpus, len(files))
	for i := range files {
		if files[i].Insight == nil {
			continue
		}
		c[i] = " " + tokenize(textOf(files[i].Insight)) + " "
	}
	return c
}

func (c corpus) has(i int, keyword string) bool {
	kw := tokenize(keyword)
	return kw != "" && strings.Contains(c[i], " "+kw+" ")
}

// matching returns the indexes of files mentioning any of keywords.
func (c corpus) matching(keywords []string) []int {
	var out []int
	for i := range c {
		for _, kw := range keywords {
			if c.has(i, kw) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func tokenize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	}), " ")
}

func textOf(in domain.Insight) string {
	var parts []string
	for _, m := range in.Metrics() {
		parts = append(parts, m.Label)
	}
	switch v := in.(type) {
	case *domain.PDFInsight:
		parts = append(parts, v.TextContent)
		for _, t := range v.Tables {
			parts = append(parts, t.Title)
			for _, row := range t.Data {
				if len(row) > 0 {
					parts = append(parts, row[0])
				}
			}
		}
	case *domain.DocxInsight:
		parts = append(parts, v.TextContent)
		parts = append(parts, v.KeyPoints...)
		for _, s := range v.Sections {
			parts = append(parts, s.Title)
		}
	case *domain.SpreadsheetInsight:
		for _, s := range v.Sheets {
			parts = append(parts, s.Name)
		}
		for _, c := range v.Charts {
			parts = append(parts, c.Title)
		}
	case *domain.CSVInsight:
		cols := make([]string, 0, len(v.DataTypes))
		for col := range v.DataTypes {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		parts = append(parts, cols...)
		parts = append(parts, v.Summary.Categories...)
	case *domain.JSONInsight:
		parts = append(parts, v.Structure)
	case *domain.AudioInsight:
		parts = append(parts, v.Transcript)
		for _, t := range v.KeyTopics {
			parts = append(parts, t.Topic)
		}
	}
	return strings.Join(parts, "\n")
}

func (e *Engine) dataQuality(files []File, winners []winner, c corpus) domain.DataQuality {
	var q domain.DataQuality
	if len(files) == 0 {
		return q
	}

	withInsight := 0
	for i := range files {
		if files[i].Insight != nil {
			withInsight++
		}
	}
	q.Completeness = percent(float64(withInsight) / float64(len(files)))

	if len(winners) > 0 {
		sum := 0.0
		for _, w := range winners {
			sum += w.summary.Confidence
		}
		q.Accuracy = percent(sum / float64(len(winners)))
	}

	q.Recency = e.recency(files)

	cov := e.policy.Coverage
	q.Coverage = domain.Coverage{
		Financial:   areaScore(c, cov.Financial),
		Operational: areaScore(c, cov.Operational),
		Market:      areaScore(c, cov.Market),
		Legal:       areaScore(c, cov.Legal),
	}
	return q
}

// recency averages a per-file freshness score measured against the newest
// file, so the result does not depend on the wall clock.
func (e *Engine) recency(files []File) int {
	ref := files[0].UpdatedAt
	for i := range files {
		if files[i].UpdatedAt.After(ref) {
			ref = files[i].UpdatedAt
		}
	}
	full := float64(e.policy.Thresholds.RecencyFullDays)
	zero := float64(e.policy.Thresholds.RecencyZeroDays)

	sum := 0.0
	for i := range files {
		age := ref.Sub(files[i].UpdatedAt).Hours() / 24
		switch {
		case age <= full:
			sum++
		case age < zero:
			sum += (zero - age) / (zero - full)
		}
	}
	return percent(sum / float64(len(files)))
}

func areaScore(c corpus, rule AreaRule) int {
	hits := 0
	for _, kw := range rule.Keywords {
		for i := range c {
			if c.has(i, kw) {
				hits++
				break
			}
		}
	}
	return percent(math.Min(1, float64(hits)/float64(rule.Target)))
}

func percent(ratio float64) int {
	return int(math.Round(100 * ratio))
}

// pct reads a winning value as a percentage. Plain fractions such as 0.185 count as 18.5%.
func pct(o observation) (float64, bool) {
	if !o.parsed {
		return 0, false
	}
	switch o.amount.Unit {
	case finance.UnitPercent:
		return o.amount.Value, true
	case finance.UnitPlain:
		if math.Abs(o.amount.Value) <= 1 {
			return o.amount.Value * 100, true
		}
	}
	return 0, false
}

func isMargin(canonical string) bool {
	return canonical == "Gross Margin" || canonical == "Operating Margin"
}

func (e *Engine) risks(files []File, winners []winner, c corpus, q domain.DataQuality) []domain.RiskFactor {
	th := e.policy.Thresholds
	out := []domain.RiskFactor{}

	for _, w := range winners {
		o := w.obs
		switch {
		case o.canonical == "Revenue" && w.summary.Trend == domain.TrendDown:
			out = append(out, domain.RiskFactor{
				Category:    "Financial",
				Risk:        "Revenue decline",
				Severity:    domain.SeverityMedium,
				Description: fmt.Sprintf("Revenue of %s changed %s against the previous figure.", o.value, w.summary.Change),
				Source:      o.source,
				Mitigation:  "Reconcile the revenue bridge between reporting periods.",
			})
		case o.canonical == "Growth Rate":
			if v, ok := pct(o); ok && v < th.NegativeGrowth {
				out = append(out, domain.RiskFactor{
					Category:    "Financial",
					Risk:        "Declining growth",
					Severity:    domain.SeverityHigh,
					Description: fmt.Sprintf("Growth rate of %s is below %s.", o.value, finance.FormatPercent(th.NegativeGrowth)),
					Source:      o.source,
					Mitigation:  "Validate pipeline and churn assumptions with management.",
				})
			}
		case isMargin(o.canonical):
			if v, ok := pct(o); ok && v < th.LowMargin {
				out = append(out, domain.RiskFactor{
					Category:    "Financial",
					Risk:        "Thin margins",
					Severity:    domain.SeverityMedium,
					Description: fmt.Sprintf("%s of %s is below %s.", o.canonical, o.value, finance.FormatPercent(th.LowMargin)),
					Source:      o.source,
					Mitigation:  "Review cost structure and pricing power.",
				})
			}
		case o.canonical == "Net Income" || o.canonical == "Cash Flow":
			if o.parsed && o.amount.Value < 0 {
				out = append(out, domain.RiskFactor{
					Category:    "Financial",
					Risk:        "Negative " + strings.ToLower(o.canonical),
					Severity:    domain.SeverityHigh,
					Description: fmt.Sprintf("%s is negative at %s.", o.canonical, o.value),
					Source:      o.source,
					Mitigation:  "Assess funding runway and the path to profitability.",
				})
			}
		}
	}

	for i := range files {
		if a, ok := files[i].Insight.(*domain.AudioInsight); ok && a.Sentiment.Overall == "negative" {
			out = append(out, domain.RiskFactor{
				Category:    "Operational",
				Risk:        "Negative tone in recorded discussion",
				Severity:    domain.SeverityMedium,
				Description: fmt.Sprintf("Sentiment analysis rated the recording negative (confidence %s).", finance.FormatPercent(a.Sentiment.Confidence)),
				Source:      files[i].Name,
				Mitigation:  "Follow up on concerns raised in the recording.",
			})
		}
	}

	if len(files) > 0 && q.Coverage.Financial == 0 {
		out = append(out, domain.RiskFactor{
			Category:    "Data",
			Risk:        "Missing financial data",
			Severity:    domain.SeverityHigh,
			Description: "No financial statements or metrics were found in the processed files.",
			Source:      "project",
			Mitigation:  "Request audited financial statements and management accounts.",
		})
	}

	for _, r := range e.policy.Risks {
		idx := c.matching(r.Keywords)
		if len(idx) == 0 {
			continue
		}
		out = append(out, domain.RiskFactor{
			Category:    r.Category,
			Risk:        r.Title,
			Severity:    domain.Severity(r.Level),
			Description: r.Description,
			Source:      sourceList(files, idx),
			Mitigation:  r.Mitigation,
		})
	}
	return out
}

func (e *Engine) opportunities(files []File, winners []winner, c corpus) []domain.Opportunity {
	th := e.policy.Thresholds
	out := []domain.Opportunity{}

	for _, w := range winners {
		o := w.obs
		v, ok := pct(o)
		if !ok {
			continue
		}
		switch {
		case o.canonical == "Growth Rate" && v >= th.HighGrowth:
			out = append(out, domain.Opportunity{
				Category:    "Growth",
				Opportunity: "Strong growth momentum",
				Potential:   "High",
				Description: fmt.Sprintf("Growth rate of %s exceeds %s.", o.value, finance.FormatPercent(th.HighGrowth)),
				Source:      o.source,
				Timeline:    "6-12 months",
			})
		case isMargin(o.canonical) && v >= th.HighMargin:
			out = append(out, domain.Opportunity{
				Category:    "Financial",
				Opportunity: "Healthy margins",
				Potential:   "Medium",
				Description: fmt.Sprintf("%s of %s exceeds %s.", o.canonical, o.value, finance.FormatPercent(th.HighMargin)),
				Source:      o.source,
				Timeline:    "12-18 months",
			})
		}
	}

	for i := range files {
		if a, ok := files[i].Insight.(*domain.AudioInsight); ok && a.Sentiment.Overall == "positive" {
			out = append(out, domain.Opportunity{
				Category:    "Market",
				Opportunity: "Positive management outlook",
				Potential:   "Medium",
				Description: fmt.Sprintf("Sentiment analysis rated the recording positive (confidence %s).", finance.FormatPercent(a.Sentiment.Confidence)),
				Source:      files[i].Name,
				Timeline:    "3-6 months",
			})
		}
	}

	for _, r := range e.policy.Opportunities {
		idx := c.matching(r.Keywords)
		if len(idx) == 0 {
			continue
		}
		out = append(out, domain.Opportunity{
			Category:    r.Category,
			Opportunity: r.Title,
			Potential:   capitalize(r.Level),
			Description: r.Description,
			Source:      sourceList(files, idx),
			Timeline:    r.Timeline,
		})
	}
	return out
}

func sourceList(files []File, idx []int) string {
	s := files[idx[0]].Name
	if len(idx) > 1 {
		s += fmt.Sprintf(" +%d more", len(idx)-1)
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
