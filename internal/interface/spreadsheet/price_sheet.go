package spreadsheet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"deal-catalog-service/internal/domain/entity"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheet is returned for workbooks without a worksheet
var ErrNoSheet = errors.New("workbook has no sheets")

// ExcelPriceSheetReader reads the first worksheet of an xlsx price sheet.
type ExcelPriceSheetReader struct{}

// NewExcelPriceSheetReader creates a new reader
func NewExcelPriceSheetReader() *ExcelPriceSheetReader {
	return &ExcelPriceSheetReader{}
}

// ReadPriceRows returns every data row below the header. Cell values are raw,
// so dates come back as spreadsheet serial numbers.
func (r *ExcelPriceSheetReader) ReadPriceRows(data []byte) ([]entity.PriceSheetRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	headerAt := -1
	for i, row := range rows {
		if !blank(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, nil
	}

	header := make([]string, len(rows[headerAt]))
	columns := make(map[string]int)
	for i, name := range rows[headerAt] {
		header[i] = strings.TrimSpace(name)
		key := strings.ToLower(header[i])
		if _, ok := columns[key]; !ok && key != "" {
			columns[key] = i
		}
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	out := make([]entity.PriceSheetRow, 0, len(rows)-headerAt-1)
	for i := headerAt + 1; i < len(rows); i++ {
		cells := rows[i]
		get := func(name string) string {
			idx, ok := columns[strings.ToLower(name)]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		out = append(out, entity.PriceSheetRow{
			Number:      i + 1,
			AirportCode: get(entity.ColumnAirportCode),
			AirportID:   get(entity.ColumnAirportID),
			StartDate:   get(entity.ColumnStartDate),
			EndDate:     get(entity.ColumnEndDate),
			Price:       get(entity.ColumnPrice),
			Outbound:    get(entity.ColumnOutbound),
			Return:      get(entity.ColumnReturnFlight),
			Raw:         rawRow(header, cells),
		})
	}
	return out, nil
}

func checkColumns(columns map[string]int) error {
	var missing []string
	for _, name := range []string{entity.ColumnStartDate, entity.ColumnEndDate, entity.ColumnPrice} {
		if _, ok := columns[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	_, hasCode := columns[strings.ToLower(entity.ColumnAirportCode)]
	_, hasID := columns[strings.ToLower(entity.ColumnAirportID)]
	if !hasCode && !hasID {
		missing = append(missing, entity.ColumnAirportCode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// rawRow renders the row as a JSON object keyed by header for reporting.
func rawRow(header, cells []string) string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" || i >= len(cells) {
			continue
		}
		if v := strings.TrimSpace(cells[i]); v != "" {
			m[name] = v
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return strings.Join(cells, ",")
	}
	return string(b)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
