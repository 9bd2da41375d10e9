package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"suppliersync/config"
	"suppliersync/config/values"
	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
	"suppliersync/pkg/logger"
	"suppliersync/pkg/middleware"
)

// ListingClient scrapes a supplier category page and its next pages.
// Field locations come from the configured selectors only.
type ListingClient struct {
	cfg       config.SupplierConfig
	selectors values.ListingSelectors
	transport http.RoundTripper
	pacer     pkg.Pacer
	log       logger.Logger
	now       func() time.Time
}

func NewListingClient(cfg config.SupplierConfig, writer io.Writer) *ListingClient {
	return &ListingClient{
		cfg:       cfg,
		selectors: cfg.Listing,
		transport: middleware.Transport(nil, middleware.SupplierMetrics(config.SourceListing)),
		log:       logger.NewLogger(writer, "[ ListingClient ]"),
		now:       time.Now,
	}
}

// WithPacer makes every page after the first wait on p.
func (c *ListingClient) WithPacer(p pkg.Pacer) *ListingClient {
	c.pacer = p
	return c
}

func (c *ListingClient) Name() string {
	return config.SourceListing
}

// pageState collects what the callbacks of one Visit saw.
type pageState struct {
	records  []models.RawRecord
	category string
	next     string
	status   int
	headers  http.Header
}

// Fetch visits categoryURL and follows next-page links up to MaxPages.
// An empty category is a valid answer.
func (c *ListingClient) Fetch(ctx context.Context, categoryURL string) ([]models.RawRecord, error) {
	collector := colly.NewCollector(colly.UserAgent(c.cfg.UserAgent))
	collector.WithTransport(c.transport)
	if c.cfg.Timeout > 0 {
		collector.SetRequestTimeout(c.cfg.Timeout)
	}

	fetchedAt := c.now()
	state := &pageState{}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		state.status = r.StatusCode
		if r.Headers != nil {
			state.headers = *r.Headers
		}
	})
	if c.selectors.Category != "" {
		collector.OnHTML(c.selectors.Category, func(e *colly.HTMLElement) {
			if state.category == "" {
				state.category = strings.TrimSpace(e.Text)
			}
		})
	}
	collector.OnHTML(c.selectors.Item, func(e *colly.HTMLElement) {
		state.records = append(state.records, c.extract(e, categoryURL, fetchedAt))
	})
	if c.selectors.NextPage != "" {
		collector.OnHTML(c.selectors.NextPage, func(e *colly.HTMLElement) {
			if href := strings.TrimSpace(e.Attr("href")); href != "" && state.next == "" {
				state.next = e.Request.AbsoluteURL(href)
			}
		})
	}

	maxPages := c.selectors.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []models.RawRecord
	pageURL := categoryURL
	for page := 1; page <= maxPages && pageURL != ""; page++ {
		if page > 1 && c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return nil, fmt.Errorf("listing %s: pacer: %w", pageURL, err)
			}
		}

		*state = pageState{}
		err := collector.Visit(pageURL)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("listing %s: request was cancelled: %w", pageURL, ctxErr)
		}
		if err != nil {
			if errors.Is(err, colly.ErrAlreadyVisited) {
				break
			}
			return nil, c.visitError(pageURL, state, err)
		}

		for i := range state.records {
			if state.records[i].Category == "" {
				state.records[i].Category = state.category
			}
		}
		all = append(all, state.records...)
		c.log.Log("%s page %d: %d items", categoryURL, page, len(state.records))
		pageURL = state.next
	}
	return all, nil
}

func (c *ListingClient) visitError(pageURL string, state *pageState, err error) error {
	switch state.status {
	case http.StatusTooManyRequests:
		return &pkg.RateLimitError{URL: pageURL, RetryAfter: parseRetryAfter(state.headers.Get("Retry-After"))}
	case http.StatusNotFound:
		return fmt.Errorf("listing %s: %w", pageURL, pkg.ErrNotFound)
	case 0:
		return fmt.Errorf("listing %s: failed to execute request: %w", pageURL, err)
	}
	return fmt.Errorf("listing %s: %w", pageURL, &pkg.StatusError{StatusCode: state.status})
}

func (c *ListingClient) extract(e *colly.HTMLElement, categoryURL string, fetchedAt time.Time) models.RawRecord {
	sel := c.selectors
	raw := models.RawRecord{
		Source:     config.SourceListing,
		Identifier: categoryURL,
		Name:       childText(e, sel.Name),
		PriceText:  childText(e, sel.Price),
		StockText:  childText(e, sel.Stock),
		Variant:    childText(e, sel.Variant),
		FetchedAt:  fetchedAt,
	}
	if sel.SKUAttr != "" {
		raw.SKU = strings.TrimSpace(e.Attr(sel.SKUAttr))
	}
	if sel.Image != "" {
		raw.Images = imageRenditions(e, sel.Image)
	}
	return raw
}

func childText(e *colly.HTMLElement, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(e.ChildText(selector)), " ")
}

// imageRenditions reads src, data-src and every srcset candidate of the
// first matching image, all resolved against the page URL.
func imageRenditions(e *colly.HTMLElement, selector string) []models.ImageRendition {
	var out []models.ImageRendition
	img := e.DOM.Find(selector).First()
	if img.Length() == 0 {
		return nil
	}

	for _, attr := range []string{"src", "data-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			width, _ := strconv.Atoi(img.AttrOr("width", "0"))
			out = append(out, models.ImageRendition{URL: e.Request.AbsoluteURL(strings.TrimSpace(v)), Width: width})
			break
		}
	}

	if srcset, ok := img.Attr("srcset"); ok {
		for _, candidate := range strings.Split(srcset, ",") {
			fields := strings.Fields(candidate)
			if len(fields) == 0 {
				continue
			}
			r := models.ImageRendition{URL: e.Request.AbsoluteURL(fields[0])}
			if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
				r.Width, _ = strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
			}
			out = append(out, r)
		}
	}
	return out
}
