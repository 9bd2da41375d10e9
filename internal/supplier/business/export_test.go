package business

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suppliersync/internal/supplier/models"
	"suppliersync/metrics"
	"suppliersync/pkg/business/service"
	"suppliersync/pkg/business/service/csv_export"
)

func TestExporter_Row(t *testing.T) {
	e := NewExporter(service.NewTextService())
	row := e.Row(&models.ProductDraft{
		SKU:            "EL-100",
		Name:           `Berry "Blast", 10ml`,
		Tax:            "+ VAT",
		StockLevel:     7,
		Barcode:        "5060123456789",
		Brand:          "Vapeco",
		Flavor:         "Berry",
		Category:       "E-liquids",
		Size:           "10ml",
		WholesalePrice: d("3.2"),
		ImageURL:       "https://www.supplier.example/img/l.jpg",
	})

	require.Len(t, row, len(ExportColumns))
	assert.Equal(t, "7", row[3])
	assert.Equal(t, "3.20", row[10])
	assert.Equal(t, "berry,blast,10ml,vapeco,liquids", row[13])
	assert.Equal(t, `Berry "Blast", 10ml`, row[14])
}

func TestExporter_CSVQuoting(t *testing.T) {
	e := NewExporter(service.NewTextService())
	e.Add(&models.ProductDraft{SKU: "X", Name: "Line one\nline, \"two\""})
	e.Add(nil)

	var buf bytes.Buffer
	require.NoError(t, csv_export.NewWriter(ExportColumns).WriteCSV(&buf, e.Rows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ExportColumns, records[0])
	assert.Equal(t, "Line one\nline, \"two\"", records[1][1])
	assert.Equal(t, "", records[1][10])
}

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	m := &metrics.SyncMetrics{}
	p := NewProgressReporter(&buf, m)

	p.Start(3)
	p.Done(true)
	p.Done(false)
	assert.Equal(t, "Progress: 2/3 | Success: 1", p.Line())
	p.Done(true)
	p.Finish()

	assert.Equal(t,
		"\rProgress: 0/3 | Success: 0\rProgress: 1/3 | Success: 1\rProgress: 2/3 | Success: 1\rProgress: 3/3 | Success: 2\n",
		buf.String())
	assert.Equal(t, int32(1), m.Failed.Load())
}
