package business

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suppliersync/config"
	"suppliersync/config/values"
	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
	"suppliersync/internal/supplier/storage"
	"suppliersync/metrics"
	"suppliersync/pkg/business/service"
	"suppliersync/pkg/dbconnect/migration"
	"suppliersync/pkg/dbconnect/sqlite"
	"suppliersync/pkg/logger"
)

func newTestRepo(t *testing.T) *storage.ProductRepository {
	t.Helper()
	conn := sqlite.NewSQLiteConnector(&config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "catalog.db")})
	db, err := conn.Connect()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(context.Background(), db, conn.Dialect(), logger.NewLogger(io.Discard, ""), storage.Migrations()...))
	return storage.NewProductRepository(db)
}

// listingFixture serves the same category page on every call.
func listingFixture(ctx context.Context, id string) ([]models.RawRecord, error) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	switch id {
	case "https://www.supplier.example/c/disposables":
		return []models.RawRecord{
			{Source: "listing", Identifier: id, Name: "Ice Mint Bar", PriceText: "£4.00 + VAT", StockText: "In stock (10)", Variant: "20mg / Ice Mint", FetchedAt: at},
			{Source: "listing", Identifier: id, Name: "ice  mint BAR", PriceText: "£4.00", FetchedAt: at},
			{Source: "listing", Identifier: id, Name: "", PriceText: "£9.00", FetchedAt: at},
			{Source: "listing", Identifier: id, SKU: "C-1", Name: "Cola Bar", PriceText: "£2.50", FetchedAt: at},
		}, nil
	case "https://www.supplier.example/c/empty":
		return nil, nil
	}
	return nil, fmt.Errorf("category %s: %w", id, pkg.ErrNotFound)
}

func newTestService(t *testing.T, fetcher pkg.Fetcher, store ProductStore, pricing values.PricingValues) *SyncService {
	t.Helper()
	normalizer, err := NewNormalizer("https://www.supplier.example", "", service.NewTextService())
	require.NoError(t, err)
	pricer, err := NewPriceEngine(pricing)
	require.NoError(t, err)
	retrier := NewRetrier(RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, io.Discard)
	return NewSyncService(fetcher, store, normalizer, pricer, NewScheduler(2, 0, 0, io.Discard), retrier, io.Discard)
}

func TestSyncService_InsertOnlyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(t, stubFetcher{name: "listing", fetch: listingFixture}, repo, values.DefaultPricing())
	ids := []string{"https://www.supplier.example/c/disposables", "https://www.supplier.example/c/empty", "https://www.supplier.example/c/missing"}

	first, err := svc.Run(ctx, "run-1", ids, models.ModeInsertOnly, NewExporter(service.NewTextService()))
	require.NoError(t, err)
	countAfterFirst, err := repo.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, countAfterFirst)
	assert.Equal(t, 2, first.Succeeded)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 4, first.Fetched)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 1, first.SkippedDuplicate)
	assert.Equal(t, 1, first.SkippedInvalid)
	require.Len(t, first.Errors, 1)
	assert.Contains(t, first.Errors[0], "c/missing")

	second, err := svc.Run(ctx, "run-2", ids, models.ModeInsertOnly, nil)
	require.NoError(t, err)
	countAfterSecond, err := repo.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, countAfterFirst, countAfterSecond)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.SkippedDuplicate)
}

func TestSyncService_ExportHasEveryFetchedRecord(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, stubFetcher{name: "listing", fetch: listingFixture}, repo, values.DefaultPricing())
	exporter := NewExporter(service.NewTextService())

	_, err := svc.Run(context.Background(), "run-1", []string{"https://www.supplier.example/c/disposables"}, models.ModeInsertOnly, exporter)
	require.NoError(t, err)

	rows := exporter.Rows()
	require.Len(t, rows, 4)
	var names []string
	for _, row := range rows {
		require.Len(t, row, len(ExportColumns))
		names = append(names, row[1])
	}
	assert.ElementsMatch(t, []string{"Ice Mint Bar", "ice mint BAR", "", "Cola Bar"}, names)
}

func TestSyncService_BelowMarginFloorIsSkipped(t *testing.T) {
	repo := newTestRepo(t)
	pricing := values.PricingValues{MarginFloor: 25, Tiers: []values.PricingTier{{Below: 0, Multiplier: 1.1}}}
	svc := newTestService(t, stubFetcher{name: "listing", fetch: listingFixture}, repo, pricing)

	run, err := svc.Run(context.Background(), "run-1", []string{"https://www.supplier.example/c/disposables"}, models.ModeInsertOnly, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, run.SkippedMarginFloor)
	assert.Equal(t, 1, run.SkippedInvalid)
	assert.Equal(t, 0, run.Failed)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncService_InsertOrUpdateOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	price := "3.00"
	var mu sync.Mutex
	fetcher := stubFetcher{name: "api", fetch: func(ctx context.Context, id string) ([]models.RawRecord, error) {
		mu.Lock()
		defer mu.Unlock()
		stock := 5
		return []models.RawRecord{{Source: "api", Identifier: id, ExternalID: "ext-" + id, SKU: id, Name: "Product " + id, PriceText: price, StockCount: &stock}}, nil
	}}
	svc := newTestService(t, fetcher, repo, values.DefaultPricing())

	run, err := svc.Run(ctx, "r1", []string{"A", "B"}, models.ModeInsertOrUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Created)

	mu.Lock()
	price = "30.00"
	mu.Unlock()
	run, err = svc.Run(ctx, "r2", []string{"A", "B"}, models.ModeInsertOrUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Updated)

	p, err := repo.GetByExternalID(ctx, "ext-A")
	require.NoError(t, err)
	assert.Equal(t, "40.50", p.RetailPrice.StringFixed(2))
	assert.Equal(t, "35.00", p.MarginPercent.StringFixed(2))
}

func TestSyncService_RateLimitedIdentifierFailsAfterRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := map[string]int{}
	fetcher := stubFetcher{name: "api", fetch: func(ctx context.Context, id string) ([]models.RawRecord, error) {
		mu.Lock()
		attempts[id]++
		mu.Unlock()
		if id == "LIMITED" {
			return nil, &pkg.RateLimitError{URL: id}
		}
		return []models.RawRecord{{ExternalID: id, Name: "Item " + id, PriceText: "5.00"}}, nil
	}}
	svc := newTestService(t, fetcher, newTestRepo(t), values.DefaultPricing())
	var out bytes.Buffer
	svc.WithProgress(NewProgressReporter(&out, &metrics.SyncMetrics{}))

	run, err := svc.Run(context.Background(), "r1", []string{"OK-1", "LIMITED", "OK-2"}, models.ModeInsertOrUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 3, attempts["LIMITED"])
	assert.Equal(t, 1, attempts["OK-1"])
	assert.True(t, strings.HasSuffix(out.String(), "\rProgress: 3/3 | Success: 2\n"))
}

type fakeImages struct {
	fail  bool
	calls int
	mu    sync.Mutex
}

func (f *fakeImages) FetchImage(ctx context.Context, imageURL, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", &pkg.StatusError{StatusCode: 503}
	}
	return "data/images/" + key + ".jpg", nil
}

func TestSyncService_ImagesAreBestEffort(t *testing.T) {
	ctx := context.Background()
	fetcher := stubFetcher{name: "api", fetch: func(ctx context.Context, id string) ([]models.RawRecord, error) {
		return []models.RawRecord{{ExternalID: id, Name: "Item " + id, PriceText: "5.00",
			Images: []models.ImageRendition{{URL: "/media/" + id + ".jpg"}}}}, nil
	}}
	imageRetrier := NewRetrier(RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, Retryable: pkg.IsTransient}, io.Discard)

	t.Run("failure keeps product", func(t *testing.T) {
		repo := newTestRepo(t)
		images := &fakeImages{fail: true}
		svc := newTestService(t, fetcher, repo, values.DefaultPricing()).WithImages(images, imageRetrier)

		run, err := svc.Run(ctx, "r1", []string{"A"}, models.ModeInsertOrUpdate, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, run.Created)
		assert.Equal(t, 1, run.ImageFailures)
		assert.Equal(t, 0, run.Failed)
		assert.Equal(t, 2, images.calls)

		p, err := repo.GetByExternalID(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "https://www.supplier.example/media/A.jpg", p.ImageURL)
		assert.Empty(t, p.LocalImagePath)
	})

	t.Run("success stores local path", func(t *testing.T) {
		repo := newTestRepo(t)
		svc := newTestService(t, fetcher, repo, values.DefaultPricing()).WithImages(&fakeImages{}, imageRetrier)

		run, err := svc.Run(ctx, "r1", []string{"A"}, models.ModeInsertOrUpdate, nil)
		require.NoError(t, err)
		assert.Zero(t, run.ImageFailures)

		p, err := repo.GetByExternalID(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "data/images/A.jpg", p.LocalImagePath)
	})
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, *models.ProductDraft, models.UpsertMode) (models.UpsertResult, error) {
	return models.UpsertResult{}, errors.New("database is locked")
}

func (failingStore) SetLocalImage(context.Context, int64, string) error { return nil }

func TestSyncService_StoreErrorsAreRecorded(t *testing.T) {
	fetcher := stubFetcher{name: "api", fetch: func(ctx context.Context, id string) ([]models.RawRecord, error) {
		return []models.RawRecord{{ExternalID: id, Name: "Item", PriceText: "5.00"}}, nil
	}}
	svc := newTestService(t, fetcher, failingStore{}, values.DefaultPricing())

	run, err := svc.Run(context.Background(), "r1", []string{"A"}, models.ModeInsertOrUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.StoreErrors)
	assert.Equal(t, 1, run.Succeeded)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "database is locked")
}
