package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImageRendition is one size of a product image offered by the supplier.
// Width is zero when the source does not say.
type ImageRendition struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RawRecord is the supplier's representation of a product before
// normalization. It only lives between a fetch and its normalization.
type RawRecord struct {
	Source     string
	Identifier string
	ExternalID string
	SKU        string
	Name       string
	PriceText  string
	TaxText    string
	// StockText is the free-text stock status of listing pages.
	StockText string
	// StockCount is set by the API, nil when the source only gives text.
	StockCount *int
	Category   string
	// Variant is the combined "size / flavour" field of listing pages.
	Variant    string
	Attributes map[string]string
	Images     []ImageRendition
	FetchedAt  time.Time
}

// Attr returns the named attribute or an empty string; a nil bag is fine.
func (r RawRecord) Attr(name string) string {
	return r.Attributes[name]
}

// ProductDraft: нормализованный товар, ещё не записанный в каталог.
type ProductDraft struct {
	ExternalID     string          `json:"external_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	NameKey        string          `json:"-"`
	Brand          string          `json:"brand"`
	Flavor         string          `json:"flavor"`
	Category       string          `json:"category"`
	Size           string          `json:"size"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	MarginPercent  decimal.Decimal `json:"margin_percent"`
	StockLevel     int             `json:"stock_level"`
	InStock        bool            `json:"in_stock"`
	ImageURL       string          `json:"image_url"`
	Barcode        string          `json:"barcode"`
	ExpiryDate     string          `json:"expiry_date"`
	Tax            string          `json:"tax"`
	Nutrition      string          `json:"nutrition"`
}

// PersistedProduct: товар в локальном каталоге.
type PersistedProduct struct {
	ID int64 `json:"id"`
	ProductDraft
	// Featured is curated by hand and never overwritten by a sync.
	Featured       bool      `json:"featured"`
	LocalImagePath string    `json:"local_image_path"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type UpsertMode int

const (
	// ModeInsertOnly never touches an existing row; used by category scrapes.
	ModeInsertOnly UpsertMode = iota
	// ModeInsertOrUpdate overwrites supplier-owned fields; used by the API sync.
	ModeInsertOrUpdate
)

func (m UpsertMode) String() string {
	switch m {
	case ModeInsertOnly:
		return "insert-only"
	case ModeInsertOrUpdate:
		return "insert-or-update"
	}
	return "unknown"
}

type UpsertStatus string

const (
	UpsertCreated   UpsertStatus = "created"
	UpsertUpdated   UpsertStatus = "updated"
	UpsertDuplicate UpsertStatus = "duplicate"
)

type UpsertResult struct {
	Status UpsertStatus
	ID     int64
}
