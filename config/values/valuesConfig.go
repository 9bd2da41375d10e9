package values

// PricingTier is one wholesale price band. Below is the exclusive upper bound
// of the band; zero marks the open top band.
type PricingTier struct {
	Below      float64 `yaml:"below"`
	Multiplier float64 `yaml:"multiplier"`
}

type PricingValues struct {
	// MarginFloor in percent, checked after retail rounding.
	MarginFloor float64                  `yaml:"margin_floor"`
	Tiers       []PricingTier            `yaml:"tiers"`
	Categories  map[string][]PricingTier `yaml:"categories"`
}

// ListingSelectors describe where the fields of one product card live on a
// supplier category page. Only configured selectors are read.
type ListingSelectors struct {
	Item     string `yaml:"item"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Stock    string `yaml:"stock"`
	Variant  string `yaml:"variant"`
	Image    string `yaml:"image"`
	Category string `yaml:"category"`
	SKUAttr  string `yaml:"sku_attr"`
	NextPage string `yaml:"next_page"`
	MaxPages int    `yaml:"max_pages"`
	// DefaultBrand is applied to listing items only when explicitly set.
	DefaultBrand string `yaml:"default_brand"`
}

func DefaultPricing() PricingValues {
	return PricingValues{
		MarginFloor: 25,
		Tiers: []PricingTier{
			{Below: 10, Multiplier: 1.60},
			{Below: 25, Multiplier: 1.45},
			{Below: 50, Multiplier: 1.35},
			{Below: 0, Multiplier: 1.30},
		},
	}
}

func DefaultListingSelectors() ListingSelectors {
	return ListingSelectors{
		Item:     ".product-item",
		Name:     ".product-name",
		Price:    ".price",
		Stock:    ".stock-status",
		Variant:  ".product-variant",
		Image:    "img",
		Category: ".breadcrumb .current",
		SKUAttr:  "data-sku",
		NextPage: "a.next",
		MaxPages: 20,
	}
}
