package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"suppliersync/config"
	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/models/requests"
	"suppliersync/internal/supplier/pkg"
	"suppliersync/pkg/middleware"
)

// ProductClient: структурированный API поставщика: один код товара, один товар.
type ProductClient struct {
	BaseClient
	cfg config.SupplierConfig
	now func() time.Time
}

type productEnvelope struct {
	Product *productPayload `json:"product"`
}

type productPayload struct {
	ID         flexString            `json:"id"`
	Code       flexString            `json:"code"`
	Name       string                `json:"name"`
	Stock      *int                  `json:"stock"`
	Price      flexString            `json:"price"`
	Tax        flexString            `json:"tax"`
	Category   string                `json:"category"`
	Attributes map[string]flexString `json:"attributes"`
	Images     []imagePayload        `json:"images"`
}

type imagePayload struct {
	Renditions []models.ImageRendition `json:"renditions"`
}

func NewProductClient(cfg config.SupplierConfig, writer io.Writer) *ProductClient {
	base := NewBaseClient(cfg.APIURL, cfg.Timeout, writer, "[ SupplierClient ]",
		middleware.SupplierMetrics(config.SourceAPI),
		middleware.Header("X-Api-Key", cfg.APIKey),
	)
	base.UserAgent = cfg.UserAgent
	return &ProductClient{BaseClient: *base, cfg: cfg, now: time.Now}
}

func (c *ProductClient) Name() string {
	return config.SourceAPI
}

// Fetch returns exactly one record, or an error. A 200 answer without the
// product envelope is pkg.ErrMalformedResponse.
func (c *ProductClient) Fetch(ctx context.Context, identifier string) ([]models.RawRecord, error) {
	request := requests.ProductRequest{
		ProductCode: identifier,
		LanguageID:  c.cfg.LanguageID,
		DomainID:    c.cfg.DomainID,
		PriceListID: c.cfg.PriceListID,
	}

	var envelope productEnvelope
	if err := c.doRequest(ctx, http.MethodPost, c.ApiURL, request, &envelope); err != nil {
		return nil, fmt.Errorf("product %s: %w", identifier, err)
	}
	if envelope.Product == nil {
		return nil, fmt.Errorf("product %s: %w: no product envelope", identifier, pkg.ErrMalformedResponse)
	}

	return []models.RawRecord{c.toRaw(identifier, envelope.Product)}, nil
}

func (c *ProductClient) toRaw(identifier string, p *productPayload) models.RawRecord {
	raw := models.RawRecord{
		Source:     config.SourceAPI,
		Identifier: identifier,
		ExternalID: string(p.ID),
		SKU:        string(p.Code),
		Name:       p.Name,
		PriceText:  string(p.Price),
		TaxText:    string(p.Tax),
		StockCount: p.Stock,
		Category:   p.Category,
		FetchedAt:  c.now(),
	}
	if raw.SKU == "" {
		raw.SKU = identifier
	}
	if p.Attributes != nil {
		raw.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			raw.Attributes[k] = string(v)
		}
	}
	// Только основное изображение; галерея не нужна.
	if len(p.Images) > 0 {
		raw.Images = p.Images[0].Renditions
	}
	return raw
}
