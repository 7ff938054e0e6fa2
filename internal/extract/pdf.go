package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

var periodValue = regexp.MustCompile(`(?i)\b((?:FY\s?|Q[1-4]\s)?(?:19|20)\d{2})\s*[:=\-]?\s*([$€£]\s?\d[\d,]*(?:\.\d+)?\s?[KMB]?|\d[\d,]*(?:\.\d+)?\s?[KMB]\b)`)

const maxPDFText = 20000

func extractPDF(data []byte) (in *domain.PDFInsight, err error) {
	defer func() {
		if r := recover(); r != nil {
			in, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	pages := r.NumPage()
	if pages <= 0 {
		return nil, errors.New("pdf has no pages")
	}

	var lines []string
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		for _, line := range strings.Split(cleanText(text), "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
	}
	text := strings.Join(lines, "\n")
	if len(text) > maxPDFText {
		text = truncateBytes(text, maxPDFText)
	}

	return &domain.PDFInsight{
		Kind:        domain.StrategyPDF,
		PageCount:   pages,
		TextContent: text,
		KeyMetrics:  scanMetrics(text),
		Tables:      figureTables(lines),
		Charts:      revenueCharts(lines),
	}, nil
}

// cleanText drops NUL bytes and invalid UTF-8 left by unmapped font encodings.
func cleanText(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
}

// figureTables collects "label n1 n2 ..." lines into one table.
func figureTables(lines []string) []domain.Table {
	var (
		rows  [][]string
		width int
	)
	for _, line := range lines {
		locs := finance.AmountPattern.FindAllStringIndex(line, -1)
		if len(locs) < 2 {
			continue
		}
		label := strings.TrimSpace(strings.TrimRight(line[:locs[0][0]], ":-"))
		if label == "" || finance.IsYear(label) {
			continue
		}
		row := []string{label}
		for _, loc := range locs {
			if v := strings.TrimSpace(line[loc[0]:loc[1]]); v != "" {
				row = append(row, v)
			}
		}
		if len(row) < 3 {
			continue
		}
		if len(row) > width {
			width = len(row)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return []domain.Table{}
	}

	headers := []string{"Item"}
	for i := 1; i < width; i++ {
		headers = append(headers, "Value "+strconv.Itoa(i))
	}
	return []domain.Table{{Title: "Extracted Figures", Headers: headers, Data: rows}}
}

// revenueCharts builds a line chart from "period value" pairs on revenue lines.
func revenueCharts(lines []string) []domain.Chart {
	var points []domain.ChartPoint
	seen := make(map[string]bool)
	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "revenue") {
			continue
		}
		for _, m := range periodValue.FindAllStringSubmatch(line, -1) {
			period := strings.Join(strings.Fields(m[1]), " ")
			amt, ok := finance.ParseAmount(m[2])
			if !ok || seen[period] {
				continue
			}
			seen[period] = true
			points = append(points, domain.ChartPoint{Period: period, Value: amt.Value})
		}
	}
	if len(points) < 2 {
		return []domain.Chart{}
	}
	return []domain.Chart{{Type: "line", Title: "Revenue Trend", Data: points}}
}
