package domain

import "time"

// ProjectAnalysis is the derived rollup of a project's completed files.
type ProjectAnalysis struct {
	Summary         AnalysisSummary `json:"summary"`
	KeyMetrics      []MetricSummary `json:"keyMetrics"`
	FinancialTrends FinancialTrends `json:"financialTrends"`
	RiskFactors     []RiskFactor    `json:"riskFactors"`
	Opportunities   []Opportunity   `json:"opportunities"`
	DataQuality     DataQuality     `json:"dataQuality"`
}

type AnalysisSummary struct {
	TotalFiles         int       `json:"totalFiles"`
	TotalSizeGB        float64   `json:"totalSizeGB"`
	ProcessingComplete int       `json:"processingComplete"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// MetricSummary is the winning observation of one canonical metric.
type MetricSummary struct {
	Label      string  `json:"label"`
	Value      string  `json:"value"`
	Change     string  `json:"change"`
	Trend      Trend   `json:"trend"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

type FinancialTrends struct {
	Revenue       []TrendPoint `json:"revenue"`
	Profitability []TrendPoint `json:"profitability"`
}

type TrendPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Actual bool    `json:"actual"`
}

type RiskFactor struct {
	Category    string   `json:"category"`
	Risk        string   `json:"risk"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Mitigation  string   `json:"mitigation"`
}

type Opportunity struct {
	Category    string `json:"category"`
	Opportunity string `json:"opportunity"`
	Potential   string `json:"potential"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Timeline    string `json:"timeline"`
}

// DataQuality scores are percentages in [0,100].
type DataQuality struct {
	Completeness int      `json:"completeness"`
	Accuracy     int      `json:"accuracy"`
	Recency      int      `json:"recency"`
	Coverage     Coverage `json:"coverage"`
}

type Coverage struct {
	Financial   int `json:"financial"`
	Operational int `json:"operational"`
	Market      int `json:"market"`
	Legal       int `json:"legal"`
}
