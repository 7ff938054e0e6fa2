package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

var (
	oleMagic     = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	periodHeader = regexp.MustCompile(`(?i)^(?:FY\s?)?(?:19|20)\d{2}[AEFP]?$|^Q[1-4][\s\-']*(?:FY)?\s?(?:19|20)?\d{2}$|^(?:19|20)\d{2}\s?Q[1-4]$`)

	financialSheet = []string{"p&l", "pnl", "income", "balance", "cash", "revenue", "financial", "profit", "statement"}
	modelSheet     = []string{"model", "forecast", "projection", "dcf", "scenario", "budget", "plan", "valuation"}
)

// xlsMaxCols is the BIFF8 column limit.
const xlsMaxCols = 256

// sheet is one worksheet as rows of raw cell text.
type sheet struct {
	name string
	rows [][]string
}

func extractSpreadsheet(data []byte) (*domain.SpreadsheetInsight, error) {
	var (
		sheets []sheet
		err    error
	)
	if bytes.HasPrefix(data, oleMagic) {
		sheets, err = readXLS(data)
	} else {
		sheets, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return summarizeSheets(sheets), nil
}

func readXLSX(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var out []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		out = append(out, sheet{name: name, rows: rows})
	}
	return out, nil
}

// readXLS reads a BIFF8 workbook from its OLE2 container.
func readXLS(data []byte) (out []sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("malformed xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening xls workbook: %w", err)
	}
	if wb == nil {
		return nil, errors.New("opening xls workbook: no Workbook stream")
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		s := sheet{name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := xlsRow(ws, r)
			if row == nil {
				continue
			}
			last := row.LastCol()
			if last == 0 {
				// cells written without a ROW record
				last = xlsMaxCols
			}
			cells := make([]string, last)
			for c := row.FirstCol(); c < last; c++ {
				cells[c] = row.Col(c)
			}
			for len(cells) > 0 && cells[len(cells)-1] == "" {
				cells = cells[:len(cells)-1]
			}
			s.rows = append(s.rows, cells)
		}
		out = append(out, s)
	}
	return out, nil
}

// xlsRow returns nil for rows the sheet never defined.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func summarizeSheets(sheets []sheet) *domain.SpreadsheetInsight {
	in := &domain.SpreadsheetInsight{
		Kind:       domain.StrategySpreadsheet,
		Sheets:     []domain.SheetInfo{},
		KeyMetrics: []domain.KeyMetric{},
		Charts:     []domain.Chart{},
	}
	seen := make(map[string]bool)

	for _, sh := range sheets {
		name := sh.name
		in.SheetCount++
		in.Sheets = append(in.Sheets, domain.SheetInfo{Name: name, Type: sheetPurpose(name)})

		var periods map[int]string
		for _, row := range sh.rows {
			label, first := firstCell(row)
			if first < 0 {
				continue
			}
			in.RowCount++

			term, ok := finance.Lookup(label)
			if !ok {
				if p := periodColumns(row); len(p) >= 2 {
					periods = p
				}
				continue
			}
			if len(periods) > 0 {
				if c, ok := seriesChart(term, row, periods); ok {
					in.Charts = append(in.Charts, c)
				}
			}
			key := term.Canonical + "\x00" + name
			if seen[key] {
				continue
			}
			if v, ok := lastNumeric(row[first+1:]); ok {
				seen[key] = true
				in.KeyMetrics = append(in.KeyMetrics, domain.KeyMetric{
					Label: term.Canonical,
					Value: formatFor(term, v),
					Sheet: name,
				})
			}
		}
	}
	return in
}

func sheetPurpose(name string) string {
	n := strings.ToLower(name)
	for _, k := range financialSheet {
		if strings.Contains(n, k) {
			return "financial"
		}
	}
	for _, k := range modelSheet {
		if strings.Contains(n, k) {
			return "model"
		}
	}
	return "data"
}

func firstCell(row []string) (string, int) {
	for i, c := range row {
		if s := strings.TrimSpace(c); s != "" {
			return s, i
		}
	}
	return "", -1
}

func periodColumns(row []string) map[int]string {
	out := make(map[int]string)
	for i, c := range row {
		if s := strings.TrimSpace(c); periodHeader.MatchString(s) {
			out[i] = s
		}
	}
	return out
}

func lastNumeric(cells []string) (finance.Amount, bool) {
	for i := len(cells) - 1; i >= 0; i-- {
		if a, ok := finance.ParseAmount(cells[i]); ok {
			return a, true
		}
	}
	return finance.Amount{}, false
}

func seriesChart(term finance.Term, row []string, periods map[int]string) (domain.Chart, bool) {
	var pts []domain.ChartPoint
	for i := range row {
		p, ok := periods[i]
		if !ok {
			continue
		}
		if a, ok := finance.ParseAmount(row[i]); ok {
			pts = append(pts, domain.ChartPoint{Period: p, Value: a.Value})
		}
	}
	if len(pts) < 2 {
		return domain.Chart{}, false
	}
	return domain.Chart{Type: "bar", Title: term.Canonical + " by Period", Data: pts}, true
}

func formatFor(term finance.Term, a finance.Amount) string {
	unit := a.Unit
	if unit == finance.UnitPlain {
		unit = term.Unit
	}
	switch unit {
	case finance.UnitCurrency:
		return finance.FormatCurrency(a.Value)
	case finance.UnitPercent:
		return finance.FormatPercent(a.Value)
	default:
		return finance.FormatPlain(a.Value)
	}
}
