package business

import (
	"strconv"
	"sync"

	"suppliersync/internal/supplier/models"
	"suppliersync/pkg/business/service"
)

const trimmedNameLength = 60

// ExportColumns is the header of the run export.
var ExportColumns = []string{
	"SKU", "Name", "Tax", "Stock Level", "Barcode", "Brand", "Flavour", "Category",
	"Nutritional Information", "Size", "Price", "Expiry Date", "Image URL",
	"Keywords", "Trimmed Name",
}

// Exporter collects one row per fetched record, before any dedup or margin
// decision. Safe for concurrent Add.
type Exporter struct {
	text service.ITextService
	mu   sync.Mutex
	rows [][]string
}

func NewExporter(text service.ITextService) *Exporter {
	return &Exporter{text: text}
}

func (e *Exporter) Add(draft *models.ProductDraft) {
	if e == nil || draft == nil {
		return
	}
	row := e.Row(draft)
	e.mu.Lock()
	e.rows = append(e.rows, row)
	e.mu.Unlock()
}

func (e *Exporter) Row(d *models.ProductDraft) []string {
	price := ""
	if d.WholesalePrice.IsPositive() {
		price = d.WholesalePrice.StringFixed(2)
	}
	return []string{
		d.SKU,
		d.Name,
		d.Tax,
		strconv.Itoa(d.StockLevel),
		d.Barcode,
		d.Brand,
		d.Flavor,
		d.Category,
		d.Nutrition,
		d.Size,
		price,
		d.ExpiryDate,
		d.ImageURL,
		e.text.Keywords(d.Name, d.Brand, d.Flavor, d.Category, d.Size),
		e.text.SmartReduceToLength(d.Name, trimmedNameLength),
	}
}

// Rows returns a copy, in arrival order.
func (e *Exporter) Rows() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.rows))
	copy(out, e.rows)
	return out
}

func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}
