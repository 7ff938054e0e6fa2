package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

const (
	csvPreviewRows    = 3
	csvMaxCategories  = 10
	csvCategoricalMax = 20
)

// decodeText converts UTF-16 input (by BOM) to UTF-8, strips a UTF-8 BOM and
// drops NUL bytes.
func decodeText(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(out, []byte{0}, nil), nil
}

const (
	colDatetime    = "datetime"
	colNumeric     = "numeric"
	colCategorical = "categorical"
	colText        = "text"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01",
	"Jan 2006",
	"January 2006",
	"02-Jan-2006",
}

func extractCSV(data []byte) (*domain.CSVInsight, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decoding csv: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}

	header := records[0]
	rows := records[1:]
	names := columnNames(header)

	in := &domain.CSVInsight{
		Kind:        domain.StrategyCSV,
		RowCount:    len(rows),
		ColumnCount: len(header),
		DataTypes:   make(map[string]string, len(header)),
		Summary:     domain.CSVSummary{TotalRecords: len(rows), Categories: []string{}},
	}

	in.Preview = append(in.Preview, append([]string(nil), header...))
	for i := 0; i < len(rows) && i < csvPreviewRows; i++ {
		in.Preview = append(in.Preview, append([]string(nil), rows[i]...))
	}

	dateCol, catCol := -1, -1
	for c, name := range names {
		values := column(rows, c)
		kind := inferColumn(values)
		in.DataTypes[name] = kind
		switch {
		case kind == colDatetime && dateCol < 0:
			dateCol = c
			in.Summary.DateRange = dateRange(values)
		case kind == colCategorical && catCol < 0:
			catCol = c
			in.Summary.Categories = categories(values)
		case kind == colNumeric:
			if m, ok := columnMetric(header[c], values); ok {
				in.KeyMetrics = append(in.KeyMetrics, m)
			}
		}
	}
	return in, nil
}

func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		n := strings.TrimSpace(h)
		if n == "" || used[n] {
			n = "column_" + strconv.Itoa(i+1)
		}
		used[n] = true
		names[i] = n
	}
	return names
}

func column(rows [][]string, c int) []string {
	var out []string
	for _, row := range rows {
		if c < len(row) {
			if v := strings.TrimSpace(row[c]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func inferColumn(values []string) string {
	if len(values) == 0 {
		return colText
	}
	allDates, allNums := true, true
	distinct := make(map[string]struct{})
	for _, v := range values {
		if allDates {
			if _, ok := parseDate(v); !ok {
				allDates = false
			}
		}
		if allNums {
			if _, ok := finance.ParseAmount(v); !ok {
				allNums = false
			}
		}
		distinct[v] = struct{}{}
	}
	switch {
	case allDates:
		return colDatetime
	case allNums:
		return colNumeric
	case len(distinct) <= csvCategoricalMax && len(distinct)*2 <= len(values):
		return colCategorical
	default:
		return colText
	}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateRange(values []string) string {
	var (
		minT, maxT time.Time
		minS, maxS string
	)
	for _, v := range values {
		t, ok := parseDate(v)
		if !ok {
			continue
		}
		if minS == "" || t.Before(minT) {
			minT, minS = t, v
		}
		if maxS == "" || t.After(maxT) {
			maxT, maxS = t, v
		}
	}
	if minS == "" {
		return ""
	}
	return minS + " to " + maxS
}

func categories(values []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == csvMaxCategories {
			break
		}
	}
	return out
}

// columnMetric reports the latest value of a numeric column named like a known metric.
func columnMetric(name string, values []string) (domain.KeyMetric, bool) {
	term, ok := finance.Lookup(name)
	if !ok || len(values) == 0 {
		return domain.KeyMetric{}, false
	}
	a, ok := finance.ParseAmount(values[len(values)-1])
	if !ok {
		return domain.KeyMetric{}, false
	}
	return domain.KeyMetric{
		Label:      term.Canonical,
		Value:      formatFor(term, a),
		Confidence: domain.Confidence(0.85),
	}, true
}
