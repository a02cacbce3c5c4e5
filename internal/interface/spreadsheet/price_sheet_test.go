package spreadsheet

import (
	"testing"

	"deal-catalog-service/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadPriceRows(t *testing.T) {
	data := workbook(t,
		[]interface{}{"Airport Code", "Start Date", "End Date", "Price", "Outbound Flight Details"},
		[]interface{}{"LHR", 45839, 45846, 600, "AC 850 18:30-06:45"},
		[]interface{}{" yyz ", 45870, 45877, "$700"},
	)

	rows, err := NewExcelPriceSheetReader().ReadPriceRows(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "LHR", rows[0].AirportCode)
	assert.Equal(t, "45839", rows[0].StartDate)
	assert.Equal(t, "45846", rows[0].EndDate)
	assert.Equal(t, "600", rows[0].Price)
	assert.Equal(t, "AC 850 18:30-06:45", rows[0].Outbound)
	assert.Contains(t, rows[0].Raw, `"Airport Code":"LHR"`)

	assert.Equal(t, "yyz", rows[1].AirportCode)
	assert.Equal(t, "$700", rows[1].Price)
	assert.Empty(t, rows[1].Outbound)
}

func TestReadPriceRows_HeaderCaseInsensitive(t *testing.T) {
	data := workbook(t,
		[]interface{}{"airport id", "start date", "END DATE", "price"},
		[]interface{}{"665f1c2e8f1b2a0012345678", 45839, 45846, 600},
	)

	rows, err := NewExcelPriceSheetReader().ReadPriceRows(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "665f1c2e8f1b2a0012345678", rows[0].AirportID)
}

func TestReadPriceRows_MissingColumns(t *testing.T) {
	data := workbook(t,
		[]interface{}{"Airport Code", "Price"},
		[]interface{}{"LHR", 600},
	)

	_, err := NewExcelPriceSheetReader().ReadPriceRows(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), entity.ColumnStartDate)
	assert.Contains(t, err.Error(), entity.ColumnEndDate)
}

func TestReadPriceRows_NotAWorkbook(t *testing.T) {
	_, err := NewExcelPriceSheetReader().ReadPriceRows([]byte("airport,price\nLHR,600\n"))
	assert.Error(t, err)
}

func TestReadPriceRows_EmptySheet(t *testing.T) {
	rows, err := NewExcelPriceSheetReader().ReadPriceRows(workbook(t))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
