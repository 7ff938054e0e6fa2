package analysis_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/analysis"
	"dealdossier/internal/domain"
)

var (
	idA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	idB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	idC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	jan2024 = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	jun2023 = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
)

func pdfFile(id uuid.UUID, name string, at time.Time, text string, metrics ...domain.KeyMetric) analysis.File {
	return analysis.File{
		ID: id, Name: name, Size: 1024, CreatedAt: at, UpdatedAt: at,
		Insight: &domain.PDFInsight{PageCount: 1, TextContent: text, KeyMetrics: metrics},
	}
}

func metric(label, value string) domain.KeyMetric {
	return domain.KeyMetric{Label: label, Value: value}
}

func titles(risks []domain.RiskFactor) []string {
	out := make([]string, 0, len(risks))
	for _, r := range risks {
		out = append(out, r.Risk)
	}
	return out
}

func TestFold_Empty(t *testing.T) {
	got := analysis.NewEngine(nil).Fold(nil)

	assert.Zero(t, got.Summary)
	assert.Empty(t, got.KeyMetrics)
	assert.NotNil(t, got.KeyMetrics)
	assert.NotNil(t, got.FinancialTrends.Revenue)
	assert.NotNil(t, got.RiskFactors)
	assert.Zero(t, got.DataQuality)
}

func TestFold_LatestUploadWins(t *testing.T) {
	files := []analysis.File{
		pdfFile(idA, "old.pdf", jun2023, "", metric("Revenue", "$2.0M")),
		pdfFile(idB, "new.pdf", jan2024, "", metric("Total Revenue", "$2.4M")),
	}

	got := analysis.NewEngine(nil).Fold(files)

	require.Len(t, got.KeyMetrics, 1)
	want := domain.MetricSummary{
		Label:      "Revenue",
		Value:      "$2.4M",
		Change:     "+20.0%",
		Trend:      domain.TrendUp,
		Source:     "new.pdf",
		Confidence: domain.DefaultEvidenceConfidence,
	}
	if diff := cmp.Diff(want, got.KeyMetrics[0]); diff != "" {
		t.Errorf("key metric mismatch (-want +got):\n%s", diff)
	}
}

func TestFold_SourcePriority(t *testing.T) {
	policy, err := analysis.ParsePolicy([]byte("name: pdf-first\ndedup: source_priority\n"))
	require.NoError(t, err)

	sheet := analysis.File{
		ID: idB, Name: "model.xlsx", CreatedAt: jan2024, UpdatedAt: jan2024,
		Insight: &domain.SpreadsheetInsight{KeyMetrics: []domain.KeyMetric{
			{Label: "Revenue", Value: "$3M", Sheet: "P&L"},
		}},
	}
	files := []analysis.File{sheet, pdfFile(idA, "cim.pdf", jun2023, "", metric("Revenue", "$2.4M"))}

	got := analysis.NewEngine(policy).Fold(files)

	require.Len(t, got.KeyMetrics, 1)
	assert.Equal(t, "$2.4M", got.KeyMetrics[0].Value)
	assert.Equal(t, "cim.pdf", got.KeyMetrics[0].Source)
	assert.Equal(t, "-20.0%", got.KeyMetrics[0].Change)
	assert.Equal(t, domain.TrendDown, got.KeyMetrics[0].Trend)
	assert.Contains(t, titles(got.RiskFactors), "Revenue decline")
}

func TestFold_MetricsInVocabularyOrder(t *testing.T) {
	files := []analysis.File{
		pdfFile(idA, "a.pdf", jan2024, "",
			metric("Headcount", "120"),
			metric("Widgets Sold", "4,000"),
			metric("EBITDA", "$400K"),
			metric("Net Incme", "$150K"),
			metric("Revenue", "$2.4M"),
		),
	}

	got := analysis.NewEngine(nil).Fold(files)

	var labels []string
	for _, m := range got.KeyMetrics {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"Revenue", "EBITDA", "Net Income", "Headcount", "Widgets Sold"}, labels)
}

func TestFold_IsOrderIndependentAndStable(t *testing.T) {
	files := []analysis.File{
		pdfFile(idA, "a.pdf", jun2023, "litigation risk", metric("Revenue", "$2.0M"), metric("Growth Rate", "-5%")),
		pdfFile(idB, "b.pdf", jan2024, "subscription model", metric("Revenue", "$2.4M")),
		pdfFile(idC, "c.pdf", jan2024, "", metric("Gross Margin", "40%")),
	}
	reversed := []analysis.File{files[2], files[1], files[0]}
	engine := analysis.NewEngine(nil)

	first := engine.Fold(files)
	second := engine.Fold(reversed)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("fold depends on input order (-first +second):\n%s", diff)
	}

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(engine.Fold(files))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestFold_Summary(t *testing.T) {
	f1 := pdfFile(idA, "a.pdf", jun2023, "")
	f1.Size = 1 << 30
	f2 := analysis.File{ID: idB, Name: "b.json", Size: 1 << 29, CreatedAt: jan2024, UpdatedAt: jan2024}

	got := analysis.NewEngine(nil).Fold([]analysis.File{f1, f2})

	want := domain.AnalysisSummary{
		TotalFiles:         2,
		TotalSizeGB:        1.5,
		ProcessingComplete: 1,
		LastUpdated:        jan2024,
	}
	if diff := cmp.Diff(want, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestFold_FinancialTrends(t *testing.T) {
	sheet := analysis.File{
		ID: idB, Name: "model.xlsx", CreatedAt: jan2024, UpdatedAt: jan2024,
		Insight: &domain.SpreadsheetInsight{Charts: []domain.Chart{{
			Type:  "bar",
			Title: "Revenue by Period",
			Data: []domain.ChartPoint{
				{Period: "2022", Value: 2100000},
				{Period: "2021", Value: 1800000},
				{Period: "2024E", Value: 3000000},
			},
		}}},
	}
	pdf := pdfFile(idA, "cim.pdf", jun2023, "", metric("Revenue", "$2.4M"))

	got := analysis.NewEngine(nil).Fold([]analysis.File{pdf, sheet})

	want := []domain.TrendPoint{
		{Period: "2021", Value: 1.8, Actual: true},
		{Period: "2022", Value: 2.1, Actual: true},
		{Period: "2023", Value: 2.4, Actual: true},
		{Period: "2024E", Value: 3, Actual: false},
	}
	if diff := cmp.Diff(want, got.FinancialTrends.Revenue); diff != "" {
		t.Errorf("revenue trend mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, got.FinancialTrends.Profitability)
}

func TestFold_DataQuality(t *testing.T) {
	scored := pdfFile(idA, "a.pdf", jan2024, "",
		metric("Revenue", "$2.4M"),
		domain.KeyMetric{Label: "Gross Margin", Value: "40%", Confidence: domain.Confidence(0.8)},
	)
	stale := analysis.File{
		ID: idB, Name: "b.pdf", CreatedAt: jun2023,
		UpdatedAt: jan2024.Add(-4740 * time.Hour),
	}

	got := analysis.NewEngine(nil).Fold([]analysis.File{scored, stale})

	want := domain.DataQuality{
		Completeness: 50,
		Accuracy:     85,
		Recency:      75,
		Coverage:     domain.Coverage{Financial: 50},
	}
	if diff := cmp.Diff(want, got.DataQuality); diff != "" {
		t.Errorf("data quality mismatch (-want +got):\n%s", diff)
	}
}

func TestFold_Risks(t *testing.T) {
	files := []analysis.File{
		pdfFile(idA, "memo.pdf", jan2024, "The company faces litigation from a former supplier.",
			metric("Growth Rate", "-5%"),
			metric("Gross Margin", "8%"),
		),
	}

	got := analysis.NewEngine(nil).Fold(files)

	assert.Equal(t, []string{"Thin margins", "Declining growth", "Pending litigation"}, titles(got.RiskFactors))
	assert.Equal(t, domain.SeverityHigh, got.RiskFactors[1].Severity)
	assert.Equal(t, "memo.pdf", got.RiskFactors[2].Source)
	assert.Empty(t, got.Opportunities)
}

func TestFold_Opportunities(t *testing.T) {
	doc := analysis.File{
		ID: idA, Name: "plan.docx", CreatedAt: jan2024, UpdatedAt: jan2024,
		Insight: &domain.DocxInsight{
			TextContent: "Subscription revenue grew strongly.",
			KeyMetrics: []domain.KeyMetric{
				{Label: "Growth Rate", Value: "32%"},
				{Label: "Operating Margin", Value: "30%"},
			},
		},
	}

	got := analysis.NewEngine(nil).Fold([]analysis.File{doc})

	var names []string
	for _, o := range got.Opportunities {
		names = append(names, o.Opportunity)
	}
	assert.Equal(t, []string{"Healthy margins", "Strong growth momentum", "Recurring revenue base"}, names)
	assert.Equal(t, "High", got.Opportunities[2].Potential)
	assert.Equal(t, "6-9 months", got.Opportunities[2].Timeline)
}

func TestFold_MissingFinancialCoverage(t *testing.T) {
	csv := analysis.File{
		ID: idA, Name: "regions.csv", CreatedAt: jan2024, UpdatedAt: jan2024,
		Insight: &domain.CSVInsight{
			DataTypes: map[string]string{"region": "categorical"},
			Summary:   domain.CSVSummary{Categories: []string{"north", "south"}},
		},
	}

	got := analysis.NewEngine(nil).Fold([]analysis.File{csv})

	assert.Equal(t, []string{"Missing financial data"}, titles(got.RiskFactors))
}

func TestFromRecord(t *testing.T) {
	raw, err := domain.EncodeInsight(&domain.JSONInsight{Structure: "Array[2]"})
	require.NoError(t, err)

	f, err := analysis.FromRecord(domain.FileRecord{ID: idA, Name: "a.json", Insights: raw})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyJSON, f.Insight.Strategy())

	f, err = analysis.FromRecord(domain.FileRecord{ID: idB, Insights: []byte(`{"kind":"video"}`)})
	assert.Error(t, err)
	assert.Nil(t, f.Insight)

	f, err = analysis.FromRecord(domain.FileRecord{ID: idC})
	require.NoError(t, err)
	assert.Nil(t, f.Insight)
}
