package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

const bytesPerGB = 1024 * 1024 * 1024

// File is one completed file as seen by the engine. Insight is nil when the
// stored insight is missing or could not be decoded.
type File struct {
	ID        uuid.UUID
	Name      string
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Insight   domain.Insight
}

// FromRecord decodes the stored insight of rec. On a decode error the returned
// File carries no insight.
func FromRecord(rec domain.FileRecord) (File, error) {
	f := File{
		ID:        rec.ID,
		Name:      rec.Name,
		Size:      rec.Size,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if !rec.HasInsight() {
		return f, nil
	}
	in, err := domain.DecodeInsight(rec.Insights)
	if err != nil {
		return f, err
	}
	f.Insight = in
	return f, nil
}

// Engine is a pure fold from files to a ProjectAnalysis.
type Engine struct {
	policy *Policy
	norm   *Normalizer
}

// NewEngine creates an engine. A nil policy uses the embedded default.
func NewEngine(p *Policy) *Engine {
	if p == nil {
		p = DefaultPolicy()
	}
	return &Engine{policy: p, norm: NewNormalizer(p)}
}

// Policy returns the policy the engine folds with.
func (e *Engine) Policy() *Policy { return e.policy }

type observation struct {
	canonical string
	known     bool
	label     string
	value     string
	amount    finance.Amount
	parsed    bool
	conf      float64
	source    string
	file      *File
	seq       int
}

type winner struct {
	obs     observation
	summary domain.MetricSummary
}

// Fold computes the analysis of files. The result depends only on the set of
// files, not on their order.
func (e *Engine) Fold(files []File) domain.ProjectAnalysis {
	ordered := append([]File(nil), files...)
	sort.SliceStable(ordered, func(i, j int) bool { return newerFirst(&ordered[i], &ordered[j]) })

	winners := e.keyMetrics(ordered)
	metrics := make([]domain.MetricSummary, 0, len(winners))
	for _, w := range winners {
		metrics = append(metrics, w.summary)
	}

	corpus := buildCorpus(ordered)
	quality := e.dataQuality(ordered, winners, corpus)

	return domain.ProjectAnalysis{
		Summary:    summarize(ordered),
		KeyMetrics: metrics,
		FinancialTrends: domain.FinancialTrends{
			Revenue:       e.series(ordered, []string{"revenue"}, []string{"Revenue"}),
			Profitability: e.series(ordered, []string{"ebitda", "margin", "net income", "profit"}, []string{"Operating Margin", "Gross Margin", "EBITDA", "Net Income"}),
		},
		RiskFactors:   e.risks(ordered, winners, corpus, quality),
		Opportunities: e.opportunities(ordered, winners, corpus),
		DataQuality:   quality,
	}
}

func newerFirst(a, b *File) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func summarize(files []File) domain.AnalysisSummary {
	var s domain.AnalysisSummary
	var bytes int64
	for i := range files {
		bytes += files[i].Size
		if files[i].Insight != nil {
			s.ProcessingComplete++
		}
		if files[i].UpdatedAt.After(s.LastUpdated) {
			s.LastUpdated = files[i].UpdatedAt
		}
	}
	s.TotalFiles = len(files)
	s.TotalSizeGB = round2(float64(bytes) / bytesPerGB)
	return s
}

// keyMetrics groups every metric by canonical label and picks one winner per group.
func (e *Engine) keyMetrics(files []File) []winner {
	groups := make(map[string][]observation)
	seq := 0
	for i := range files {
		f := &files[i]
		if f.Insight == nil {
			continue
		}
		for _, m := range f.Insight.Metrics() {
			canonical, known := e.norm.Canonical(m.Label)
			if canonical == "" {
				continue
			}
			amt, ok := finance.ParseAmount(m.Value)
			source := f.Name
			if m.Sheet != "" {
				source = fmt.Sprintf("%s (%s)", f.Name, m.Sheet)
			}
			groups[canonical] = append(groups[canonical], observation{
				canonical: canonical,
				known:     known,
				label:     strings.TrimSpace(m.Label),
				value:     m.Value,
				amount:    amt,
				parsed:    ok,
				conf:      m.EvidenceConfidence(),
				source:    source,
				file:      f,
				seq:       seq,
			})
			seq++
		}
	}

	out := make([]winner, 0, len(groups))
	for canonical, obs := range groups {
		sort.SliceStable(obs, func(i, j int) bool { return e.before(obs[i], obs[j]) })
		w := obs[0]
		label := canonical
		if !w.known {
			label = w.label
		}
		change, trend := compare(w, obs[1:])
		out = append(out, winner{
			obs: w,
			summary: domain.MetricSummary{
				Label:      label,
				Value:      w.value,
				Change:     change,
				Trend:      trend,
				Source:     w.source,
				Confidence: w.conf,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ii, ij := finance.Index(out[i].obs.canonical), finance.Index(out[j].obs.canonical)
		if ii != ij {
			return ii < ij
		}
		return out[i].summary.Label < out[j].summary.Label
	})
	return out
}

// before orders observations of one metric by the dedup policy. Files are
// already newest first, so seq breaks ties by recency.
func (e *Engine) before(a, b observation) bool {
	if e.policy.Dedup == DedupSourcePriority {
		pa, pb := e.policy.priority(a.file.Insight.Strategy()), e.policy.priority(b.file.Insight.Strategy())
		if pa != pb {
			return pa < pb
		}
	}
	return a.seq < b.seq
}

// compare sets change and trend of w against the first earlier observation in the same unit.
func compare(w observation, rest []observation) (string, domain.Trend) {
	if !w.parsed {
		return "", domain.TrendStable
	}
	for _, prev := range rest {
		if !prev.parsed || prev.amount.Unit != w.amount.Unit {
			continue
		}
		var delta float64
		if w.amount.Unit == finance.UnitPercent {
			delta = w.amount.Value - prev.amount.Value
		} else {
			if prev.amount.Value == 0 {
				return "", domain.TrendStable
			}
			delta = (w.amount.Value - prev.amount.Value) / math.Abs(prev.amount.Value) * 100
		}
		delta = math.Round(delta*10) / 10
		trend := domain.TrendStable
		switch {
		case delta > 0:
			trend = domain.TrendUp
		case delta < 0:
			trend = domain.TrendDown
		}
		return fmt.Sprintf("%+.1f%%", delta), trend
	}
	return "", domain.TrendStable
}

var projectedPeriod = regexp.MustCompile(`(?i)(\d\s*[EFPB]$|forecast|projected|projection|budget|plan|est)`)

// series collects trend points from charts whose title contains one of
// keywords. A file with no matching chart contributes its first metric among
// fallback, dated by the year the file was uploaded.
func (e *Engine) series(files []File, keywords, fallback []string) []domain.TrendPoint {
	seen := make(map[string]bool)
	points := []domain.TrendPoint{}
	add := func(period string, v float64) {
		period = strings.Join(strings.Fields(period), " ")
		if period == "" || seen[period] {
			return
		}
		seen[period] = true
		points = append(points, domain.TrendPoint{
			Period: period,
			Value:  displayValue(v),
			Actual: !projectedPeriod.MatchString(period),
		})
	}

	for i := range files {
		f := &files[i]
		if f.Insight == nil {
			continue
		}
		charted := false
		for _, c := range chartsOf(f.Insight) {
			if !containsAny(strings.ToLower(c.Title), keywords) {
				continue
			}
			charted = true
			for _, p := range c.Data {
				add(p.Period, p.Value)
			}
		}
		if charted {
			continue
		}
		if amt, ok := e.firstMetric(f.Insight, fallback); ok {
			add(f.CreatedAt.UTC().Format("2006"), amt.Value)
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return periodLess(points[i].Period, points[j].Period) })
	return points
}

func (e *Engine) firstMetric(in domain.Insight, canonicals []string) (finance.Amount, bool) {
	for _, want := range canonicals {
		for _, m := range in.Metrics() {
			if c, _ := e.norm.Canonical(m.Label); c != want {
				continue
			}
			if amt, ok := finance.ParseAmount(m.Value); ok {
				return amt, true
			}
		}
	}
	return finance.Amount{}, false
}

func chartsOf(in domain.Insight) []domain.Chart {
	switch v := in.(type) {
	case *domain.PDFInsight:
		return v.Charts
	case *domain.SpreadsheetInsight:
		return v.Charts
	}
	return nil
}

// displayValue expresses large amounts in millions, two decimals.
func displayValue(v float64) float64 {
	if math.Abs(v) >= 1e4 {
		v /= 1e6
	}
	return round2(v)
}

var periodYear = regexp.MustCompile(`(?:19|20)\d{2}|FY\s?(\d{2})\b`)

// periodLess orders periods by year first, then by text.
func periodLess(a, b string) bool {
	ya, yb := yearOf(a), yearOf(b)
	if ya != yb {
		return ya < yb
	}
	return a < b
}

func yearOf(p string) string {
	m := periodYear.FindStringSubmatch(p)
	if m == nil {
		return "~" + p
	}
	if m[1] != "" {
		return "20" + m[1]
	}
	return m[0]
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
