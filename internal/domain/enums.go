package domain

// Strategy identifies the extraction strategy applied to an accepted file type.
type Strategy string

const (
	StrategyPDF         Strategy = "pdf"
	StrategyDocx        Strategy = "docx"
	StrategySpreadsheet Strategy = "spreadsheet"
	StrategyCSV         Strategy = "csv"
	StrategyJSON        Strategy = "json"
	StrategyAudio       Strategy = "audio"
)

// Strategies lists every strategy in a stable order.
var Strategies = []Strategy{
	StrategyPDF,
	StrategyDocx,
	StrategySpreadsheet,
	StrategyCSV,
	StrategyJSON,
	StrategyAudio,
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPDF, StrategyDocx, StrategySpreadsheet, StrategyCSV, StrategyJSON, StrategyAudio:
		return true
	}
	return false
}

// FileStatus represents the lifecycle of an uploaded file.
type FileStatus string

const (
	FileStatusReady     FileStatus = "ready"
	FileStatusUploading FileStatus = "uploading"
	FileStatusCompleted FileStatus = "completed"
	FileStatusError     FileStatus = "error"
)

// Terminal reports whether no further automatic transition follows s.
func (s FileStatus) Terminal() bool {
	return s == FileStatusCompleted || s == FileStatusError
}

// SessionEventKind names a session lifecycle change.
type SessionEventKind string

const (
	SessionSignedIn       SessionEventKind = "SIGNED_IN"
	SessionSignedOut      SessionEventKind = "SIGNED_OUT"
	SessionTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
)

// DedupPolicy decides which observation of a metric wins across files.
type DedupPolicy string

const (
	DedupLatestUploadWins DedupPolicy = "latest_upload_wins"
	DedupSourcePriority   DedupPolicy = "source_priority"
)

// Severity grades a risk factor.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Trend is the direction of a metric against its previous observation.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// DefaultEvidenceConfidence applies to key metrics extracted without a confidence score.
const DefaultEvidenceConfidence = 0.9

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
