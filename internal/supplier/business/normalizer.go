package business

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"suppliersync/internal/supplier/models"
	"suppliersync/pkg/business/service"
	"suppliersync/pkg/business/service/converters"
)

// syntheticNamespace scopes the name-based ids of listing items without an
// external id.
var syntheticNamespace = uuid.MustParse("6f1c7c4e-3b0e-5d8a-9a55-2f6d1b8e4c21")

var sizeRe = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:ml|mg|g|kg|l|oz|mah|pcs|pk|pack|puffs|%)`)

// Attribute names differ between supplier endpoints; the first non-empty wins.
var attributeAliases = map[string][]string{
	"brand":     {"brand", "manufacturer"},
	"flavor":    {"flavour", "flavor", "taste"},
	"size":      {"size", "volume", "strength"},
	"barcode":   {"barcode", "ean", "gtin"},
	"expiry":    {"expiry", "expiry_date", "best_before"},
	"nutrition": {"nutrition", "nutritional_information"},
}

type Normalizer struct {
	origin       *url.URL
	defaultBrand string
	text         service.ITextService
}

// NewNormalizer resolves relative image paths against origin. defaultBrand is
// used only when a record carries no brand; leave it empty to keep such
// products brand-less.
func NewNormalizer(origin, defaultBrand string, text service.ITextService) (*Normalizer, error) {
	n := &Normalizer{defaultBrand: strings.TrimSpace(defaultBrand), text: text}
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return nil, err
		}
		n.origin = u
	}
	return n, nil
}

// Normalize maps raw into a draft, or returns false when the record is not a
// sellable product: no name or no positive price.
func (n *Normalizer) Normalize(raw models.RawRecord, categoryHint string) (*models.ProductDraft, bool) {
	draft := n.Extract(raw, categoryHint)
	if !n.Valid(draft) {
		return nil, false
	}
	return draft, true
}

func (n *Normalizer) Valid(draft *models.ProductDraft) bool {
	return draft != nil && draft.Name != "" && draft.WholesalePrice.IsPositive()
}

// Extract maps every field it can without rejecting anything; the export
// needs rows for records Normalize would drop.
func (n *Normalizer) Extract(raw models.RawRecord, categoryHint string) *models.ProductDraft {
	name := n.text.CleanName(raw.Name)
	draft := &models.ProductDraft{
		ExternalID: strings.TrimSpace(raw.ExternalID),
		SKU:        strings.TrimSpace(raw.SKU),
		Name:       name,
		NameKey:    n.text.NameKey(name),
		Brand:      attribute(raw, "brand"),
		Flavor:     attribute(raw, "flavor"),
		Size:       attribute(raw, "size"),
		Category:   n.text.CleanName(raw.Category),
		Barcode:    attribute(raw, "barcode"),
		ExpiryDate: attribute(raw, "expiry"),
		Nutrition:  attribute(raw, "nutrition"),
		Tax:        strings.TrimSpace(raw.TaxText),
		ImageURL:   n.resolve(largestRendition(raw.Images)),
	}

	if price, err := converters.ParsePrice(raw.PriceText); err == nil {
		draft.WholesalePrice = price
	}
	if draft.Tax == "" {
		draft.Tax = converters.TaxSuffix(raw.PriceText)
	}
	if draft.Category == "" {
		draft.Category = categoryHint
	}
	if draft.Brand == "" {
		draft.Brand = n.defaultBrand
	}

	if raw.Variant != "" {
		size, flavor := splitVariant(raw.Variant)
		if draft.Size == "" {
			draft.Size = size
		}
		if draft.Flavor == "" {
			draft.Flavor = flavor
		}
	}

	if raw.StockCount != nil {
		draft.StockLevel = max(*raw.StockCount, 0)
		draft.InStock = draft.StockLevel > 0
	} else {
		draft.StockLevel, draft.InStock = parseStock(raw.StockText)
	}

	if draft.ExternalID == "" && name != "" {
		draft.ExternalID = SyntheticID(name, raw.FetchedAt)
	}
	return draft
}

// SyntheticID derives a stable id from the product name and the fetch time.
func SyntheticID(name string, fetchedAt time.Time) string {
	seed := name + "|" + fetchedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(syntheticNamespace, []byte(seed)).String()
}

func attribute(raw models.RawRecord, field string) string {
	for _, key := range attributeAliases[field] {
		if v := strings.TrimSpace(raw.Attr(key)); v != "" {
			return v
		}
	}
	return ""
}

// splitVariant splits the listing field "20mg / Ice Mint". The part that
// looks like a quantity is the size, whatever its position.
func splitVariant(variant string) (size, flavor string) {
	parts := strings.SplitN(variant, " / ", 2)
	first := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		if sizeRe.MatchString(first) {
			return first, ""
		}
		return "", first
	}

	second := strings.TrimSpace(parts[1])
	if sizeRe.MatchString(second) && !sizeRe.MatchString(first) {
		return second, first
	}
	return first, second
}

// parseStock reads free-text stock status such as "In stock (24)" or
// "Out of stock".
func parseStock(text string) (int, bool) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "out of stock") || strings.Contains(lower, "not in stock") || strings.Contains(lower, "sold out") {
		return 0, false
	}
	quantity, err := converters.ParseQuantity(text)
	if err != nil {
		quantity = 0
	}
	return quantity, strings.Contains(lower, "in stock") || quantity > 0
}

// largestRendition picks the rendition with the biggest area, or width when
// height is unknown. With no sizes at all the first one wins.
func largestRendition(images []models.ImageRendition) string {
	best, bestArea := "", -1
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		area := img.Width
		if img.Height > 0 {
			area = img.Width * img.Height
		}
		if area > bestArea {
			best, bestArea = strings.TrimSpace(img.URL), area
		}
	}
	return best
}

func (n *Normalizer) resolve(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() || n.origin == nil {
		return u.String()
	}
	return n.origin.ResolveReference(u).String()
}

// CategoryHint turns a category URL into a readable category name, e.g.
// ".../c/nic-salts" into "Nic Salts". Plain product codes give "".
func CategoryHint(identifier string) string {
	u, err := url.Parse(identifier)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	segment := path.Base(strings.TrimRight(u.Path, "/"))
	if segment == "." || segment == "/" {
		return ""
	}
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(segment))
	return cases.Title(language.English).String(strings.Join(words, " "))
}
