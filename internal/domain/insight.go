package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// KeyMetric is a single labeled data point extracted from a file.
type KeyMetric struct {
	Label      string   `json:"label"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
	Sheet      string   `json:"sheet,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// EvidenceConfidence returns the metric confidence, defaulting when absent.
func (m KeyMetric) EvidenceConfidence() float64 {
	if m.Confidence == nil {
		return DefaultEvidenceConfidence
	}
	return ClampConfidence(*m.Confidence)
}

// EvidenceContent renders the metric as an evidence line. NUL bytes are
// dropped; text columns cannot hold them.
func (m KeyMetric) EvidenceContent() string {
	return strings.ReplaceAll(m.Label+": "+m.Value, "\x00", "")
}

// Confidence returns a pointer to c clamped to [0,1].
func Confidence(c float64) *float64 {
	c = ClampConfidence(c)
	return &c
}

// Insight is the type-tagged extraction result for one file.
// The set of implementations is closed to this package.
type Insight interface {
	Strategy() Strategy
	Metrics() []KeyMetric
	sealed()
}

// Table is a tabular block found in a document.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Data    [][]string `json:"data"`
}

// ChartPoint is one period/value pair of a chart series.
type ChartPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// Chart is a series suitable for trend rendering.
type Chart struct {
	Type  string       `json:"type"`
	Title string       `json:"title"`
	Data  []ChartPoint `json:"data"`
}

// PDFInsight is extracted from a PDF: page count, text, figures and a revenue trend.
type PDFInsight struct {
	Kind        Strategy    `json:"kind"`
	PageCount   int         `json:"pageCount"`
	TextContent string      `json:"textContent"`
	KeyMetrics  []KeyMetric `json:"keyMetrics"`
	Tables      []Table     `json:"tables"`
	Charts      []Chart     `json:"charts"`
}

func (i *PDFInsight) Strategy() Strategy   { return StrategyPDF }
func (i *PDFInsight) Metrics() []KeyMetric { return i.KeyMetrics }
func (i *PDFInsight) sealed()              {}

// Section is a headed part of a word-processing document.
type Section struct {
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// DocxInsight is extracted from a Word document.
type DocxInsight struct {
	Kind        Strategy    `json:"kind"`
	WordCount   int         `json:"wordCount"`
	TextContent string      `json:"textContent"`
	KeyPoints   []string    `json:"keyPoints"`
	Sections    []Section   `json:"sections"`
	KeyMetrics  []KeyMetric `json:"keyMetrics,omitempty"`
}

func (i *DocxInsight) Strategy() Strategy   { return StrategyDocx }
func (i *DocxInsight) Metrics() []KeyMetric { return i.KeyMetrics }
func (i *DocxInsight) sealed()              {}

// SheetInfo tags a worksheet by its purpose.
type SheetInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SpreadsheetInsight summarizes a workbook. Metrics carry their source sheet.
type SpreadsheetInsight struct {
	Kind       Strategy    `json:"kind"`
	SheetCount int         `json:"sheetCount"`
	RowCount   int         `json:"rowCount"`
	Sheets     []SheetInfo `json:"sheets"`
	KeyMetrics []KeyMetric `json:"keyMetrics"`
	Charts     []Chart     `json:"charts"`
}

func (i *SpreadsheetInsight) Strategy() Strategy   { return StrategySpreadsheet }
func (i *SpreadsheetInsight) Metrics() []KeyMetric { return i.KeyMetrics }
func (i *SpreadsheetInsight) sealed()              {}

// CSVSummary describes the records of a CSV file.
type CSVSummary struct {
	TotalRecords int      `json:"totalRecords"`
	DateRange    string   `json:"dateRange"`
	Categories   []string `json:"categories"`
}

// CSVInsight profiles a CSV file. Preview[0] is always the header row.
type CSVInsight struct {
	Kind        Strategy          `json:"kind"`
	RowCount    int               `json:"rowCount"`
	ColumnCount int               `json:"columnCount"`
	DataTypes   map[string]string `json:"dataTypes"`
	Preview     [][]string        `json:"preview"`
	Summary     CSVSummary        `json:"summary"`
	KeyMetrics  []KeyMetric       `json:"keyMetrics,omitempty"`
}

func (i *CSVInsight) Strategy() Strategy   { return StrategyCSV }
func (i *CSVInsight) Metrics() []KeyMetric { return i.KeyMetrics }
func (i *CSVInsight) sealed()              {}

// JSONInsight describes the shape of a JSON document.
type JSONInsight struct {
	Kind       Strategy    `json:"kind"`
	Structure  string      `json:"structure"`
	KeyCount   int         `json:"keyCount"`
	Depth      int         `json:"depth"`
	DataTypes  []string    `json:"dataTypes"`
	Preview    string      `json:"preview"`
	KeyMetrics []KeyMetric `json:"keyMetrics,omitempty"`
}

func (i *JSONInsight) Strategy() Strategy   { return StrategyJSON }
func (i *JSONInsight) Metrics() []KeyMetric { return i.KeyMetrics }
func (i *JSONInsight) sealed()              {}

// Speaker summarizes one voice in a recording.
type Speaker struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Segments int    `json:"segments"`
}

// Topic is a recurring subject in a recording.
type Topic struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// SegmentSentiment scores one transcript segment in [-1,1].
type SegmentSentiment struct {
	Timestamp string  `json:"timestamp"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

// Sentiment is the overall tone of a recording.
type Sentiment struct {
	Overall    string             `json:"overall"`
	Confidence float64            `json:"confidence"`
	Segments   []SegmentSentiment `json:"segments"`
}

// AudioInsight holds the duration of a recording and what its transcript yields.
type AudioInsight struct {
	Kind       Strategy    `json:"kind"`
	Duration   float64     `json:"duration"`
	Transcript string      `json:"transcript"`
	Speakers   []Speaker   `json:"speakers"`
	KeyTopics  []Topic     `json:"keyTopics"`
	Sentiment  Sentiment   `json:"sentiment"`
	KeyMetrics []KeyMetric `json:"keyMetrics,omitempty"`
}

func (i *AudioInsight) Strategy() Strategy   { return StrategyAudio }
func (i *AudioInsight) Metrics() []KeyMetric { return i.KeyMetrics }
func (i *AudioInsight) sealed()              {}

// EncodeInsight marshals an insight with its kind tag set.
func EncodeInsight(in Insight) (json.RawMessage, error) {
	switch v := in.(type) {
	case *PDFInsight:
		v.Kind = StrategyPDF
	case *DocxInsight:
		v.Kind = StrategyDocx
	case *SpreadsheetInsight:
		v.Kind = StrategySpreadsheet
	case *CSVInsight:
		v.Kind = StrategyCSV
	case *JSONInsight:
		v.Kind = StrategyJSON
	case *AudioInsight:
		v.Kind = StrategyAudio
	case nil:
		return nil, fmt.Errorf("encode insight: nil insight")
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return stripNULEscapes(raw), nil
}

// stripNULEscapes drops \u0000 escapes from encoded JSON; jsonb rejects them.
func stripNULEscapes(raw []byte) []byte {
	if !bytes.Contains(raw, []byte(`\u0000`)) {
		return raw
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 == len(raw) {
			out = append(out, raw[i])
			continue
		}
		if raw[i+1] == 'u' && i+6 <= len(raw) && string(raw[i+2:i+6]) == "0000" {
			i += 5
			continue
		}
		out = append(out, raw[i], raw[i+1])
		i++
	}
	return out
}

// DecodeInsight restores a stored insight using its kind tag.
func DecodeInsight(raw json.RawMessage) (Insight, error) {
	var head struct {
		Kind Strategy `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode insight: %w", err)
	}

	var in Insight
	switch head.Kind {
	case StrategyPDF:
		in = &PDFInsight{}
	case StrategyDocx:
		in = &DocxInsight{}
	case StrategySpreadsheet:
		in = &SpreadsheetInsight{}
	case StrategyCSV:
		in = &CSVInsight{}
	case StrategyJSON:
		in = &JSONInsight{}
	case StrategyAudio:
		in = &AudioInsight{}
	default:
		return nil, fmt.Errorf("decode insight: unknown kind %q", head.Kind)
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, fmt.Errorf("decode insight %s: %w", head.Kind, err)
	}
	return in, nil
}

// EvidenceFor derives one evidence row per key metric of in.
func EvidenceFor(fileID uuid.UUID, in Insight) []Evidence {
	if in == nil {
		return nil
	}
	metrics := in.Metrics()
	out := make([]Evidence, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, Evidence{
			ID:         uuid.New(),
			FileID:     fileID,
			Content:    m.EvidenceContent(),
			Confidence: m.EvidenceConfidence(),
		})
	}
	return out
}
