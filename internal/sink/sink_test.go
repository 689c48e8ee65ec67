package sink

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inventory-scrapers/internal/inventory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var columns = []inventory.Column{
	inventory.SkuShopify,
	inventory.Product,
	inventory.Rise,
	inventory.QuantityAvailable,
	inventory.AvailableForSale,
}

func records() []inventory.CanonicalRecord {
	return []inventory.CanonicalRecord{
		{
			SkuShopify:        "56622797685120",
			Product:           `Bridget "Bootcut", 32"`,
			Rise:              decimal.NewNullDecimal(decimal.RequireFromString("10.5")),
			QuantityAvailable: sql.NullInt64{Int64: 3, Valid: true},
			AvailableForSale:  sql.NullBool{Bool: true, Valid: true},
		},
		{
			SkuShopify: "0840123456789",
			Product:    "Farrow",
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
}

func TestCSV(t *testing.T) {
	dir := t.TempDir()
	s := FileSink{Dir: filepath.Join(dir, "out"), Now: fixedNow}

	out, err := s.Write(context.Background(), "DL1961", columns, records())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "out", "DL1961_2024-03-07_09-05-01.csv"), out)

	file, err := os.Open(out)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"SKU - Shopify", "Product", "Rise", "Quantity Available", "Available for Sale"},
		{"56622797685120", `Bridget "Bootcut", 32"`, "10.50", "3", "TRUE"},
		{"0840123456789", "Farrow", "", "", ""},
	}, rows)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestXLSX(t *testing.T) {
	dir := t.TempDir()
	s := FileSink{Dir: dir, Format: FormatXLSX, Prefix: "DL1961_Measurements", Now: fixedNow}

	out, err := s.Write(context.Background(), "dl1961", columns, records())
	require.NoError(t, err)
	require.Equal(t, "DL1961_Measurements_2024-03-07_09-05-01.xlsx", filepath.Base(out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	require.Equal(t, "56622797685120", id)
	barcode, err := f.GetCellValue(sheetName, "A3")
	require.NoError(t, err)
	require.Equal(t, "0840123456789", barcode)

	rise, err := f.GetCellValue(sheetName, "C2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "10.50", rise)
	qty, err := f.GetCellValue(sheetName, "D2")
	require.NoError(t, err)
	require.Equal(t, "3", qty)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Quantity Available", rows[0][3])
}

func TestFailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	_, err := FileSink{Dir: dir, Format: "pdf", Now: fixedNow}.Write(context.Background(), "amo", columns, records())
	require.ErrorContains(t, err, "pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSink{Dir: dir, Now: fixedNow}.Write(ctx, "amo", columns, records())
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
