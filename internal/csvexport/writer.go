package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dealdossier/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

var evidenceColumns = []string{
	"Evidence ID",
	"File ID",
	"File Name",
	"Metric",
	"Value",
	"Confidence",
	"Created At",
}

var analysisColumns = []string{
	"Section",
	"Item",
	"Value",
	"Detail",
	"Source",
}

// Writer wraps csv.Writer for exporting evidence and analyses as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteEvidenceHeader writes the evidence header row.
func (w *Writer) WriteEvidenceHeader() error {
	return w.csv.Write(evidenceColumns)
}

// WriteEvidence writes one row per evidence item. fileNames maps file IDs to
// display names; unknown IDs leave the name column empty.
func (w *Writer) WriteEvidence(items []domain.Evidence, fileNames map[string]string) error {
	for i := range items {
		if err := w.csv.Write(evidenceToRow(&items[i], fileNames)); err != nil {
			return err
		}
	}
	return nil
}

// WriteAnalysis writes the header and every section of a project analysis.
func (w *Writer) WriteAnalysis(a *domain.ProjectAnalysis) error {
	if err := w.csv.Write(analysisColumns); err != nil {
		return err
	}
	for _, row := range analysisRows(a) {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func evidenceToRow(e *domain.Evidence, fileNames map[string]string) []string {
	row := make([]string, len(evidenceColumns))
	row[0] = e.ID.String()
	row[1] = e.FileID.String()
	row[2] = fileNames[e.FileID.String()]
	row[3], row[4] = splitContent(e.Content)
	row[5] = formatFloat(e.Confidence)
	row[6] = e.CreatedAt.Format(time.RFC3339)
	return row
}

// splitContent separates "<label>: <value>" evidence content. Content without
// the separator goes entirely into the metric column.
func splitContent(content string) (string, string) {
	label, value, ok := strings.Cut(content, ": ")
	if !ok {
		return content, ""
	}
	return label, value
}

func analysisRows(a *domain.ProjectAnalysis) [][]string {
	s := a.Summary
	rows := [][]string{
		{"Summary", "Total Files", strconv.Itoa(s.TotalFiles), "", ""},
		{"Summary", "Total Size (GB)", formatFloat(s.TotalSizeGB), "", ""},
		{"Summary", "Processing Complete", strconv.Itoa(s.ProcessingComplete), "", ""},
		{"Summary", "Last Updated", formatTime(s.LastUpdated), "", ""},
	}

	for _, m := range a.KeyMetrics {
		detail := string(m.Trend)
		if m.Change != "" {
			detail = m.Change + " " + detail
		}
		rows = append(rows, []string{"Key Metric", m.Label, m.Value, detail, m.Source})
	}
	for _, p := range a.FinancialTrends.Revenue {
		rows = append(rows, []string{"Revenue Trend", p.Period, formatFloat(p.Value), actualLabel(p.Actual), ""})
	}
	for _, p := range a.FinancialTrends.Profitability {
		rows = append(rows, []string{"Profitability Trend", p.Period, formatFloat(p.Value), actualLabel(p.Actual), ""})
	}
	for _, r := range a.RiskFactors {
		rows = append(rows, []string{"Risk", r.Risk, string(r.Severity),
			fmt.Sprintf("%s: %s Mitigation: %s", r.Category, r.Description, r.Mitigation), r.Source})
	}
	for _, o := range a.Opportunities {
		rows = append(rows, []string{"Opportunity", o.Opportunity, o.Potential,
			fmt.Sprintf("%s: %s Timeline: %s", o.Category, o.Description, o.Timeline), o.Source})
	}

	q := a.DataQuality
	rows = append(rows,
		[]string{"Data Quality", "Completeness", strconv.Itoa(q.Completeness), "", ""},
		[]string{"Data Quality", "Accuracy", strconv.Itoa(q.Accuracy), "", ""},
		[]string{"Data Quality", "Recency", strconv.Itoa(q.Recency), "", ""},
		[]string{"Coverage", "Financial", strconv.Itoa(q.Coverage.Financial), "", ""},
		[]string{"Coverage", "Operational", strconv.Itoa(q.Coverage.Operational), "", ""},
		[]string{"Coverage", "Market", strconv.Itoa(q.Coverage.Market), "", ""},
		[]string{"Coverage", "Legal", strconv.Itoa(q.Coverage.Legal), "", ""},
	)
	return rows
}

func actualLabel(actual bool) string {
	if actual {
		return "Actual"
	}
	return "Projected"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a project name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "project"
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_project_name}_{kind}_{YYYY-MM-DD}.csv
func BuildFilename(projectName, kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", SanitizeFilename(projectName), kind, now.Format("2006-01-02"))
}
