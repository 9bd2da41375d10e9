package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
)

// ProductRepository: таблица supplier_products. Запросы используют
// плейсхолдеры $N, их понимают и lib/pq, и go-sqlite3.
type ProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const productColumns = `id, external_id, sku, name, name_key, brand, flavor, category, size,
	wholesale_price, retail_price, margin_percent, stock_level, in_stock, image_url,
	barcode, expiry_date, featured, local_image_path, created_at, updated_at`

// Upsert writes draft unless an existing row matches it by external id, name
// key or SKU. In insert-only mode a match is a duplicate; in insert-or-update
// mode the match is overwritten except for featured, local_image_path and
// created_at. The lookup and the write share one transaction, and unique
// index violations are reported as duplicates.
func (r *ProductRepository) Upsert(ctx context.Context, draft *models.ProductDraft, mode models.UpsertMode) (models.UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.UpsertResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id, found, err := r.findMatch(ctx, tx, draft)
	if err != nil {
		return models.UpsertResult{}, err
	}

	result, err := r.write(ctx, tx, draft, mode, id, found)
	if err != nil || result.Status == models.UpsertDuplicate {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.UpsertResult{Status: models.UpsertDuplicate}, nil
		}
		return models.UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// write applies the decision of findMatch. A row written by a concurrent
// transaction after the lookup surfaces here as an empty RETURNING or a
// unique violation, and is reported as a duplicate.
func (r *ProductRepository) write(ctx context.Context, tx *sql.Tx, draft *models.ProductDraft, mode models.UpsertMode, id int64, found bool) (models.UpsertResult, error) {
	var err error
	status := models.UpsertCreated
	switch {
	case found && mode == models.ModeInsertOnly:
		return models.UpsertResult{Status: models.UpsertDuplicate, ID: id}, nil
	case found:
		err = r.update(ctx, tx, id, draft)
		status = models.UpsertUpdated
	default:
		id, err = r.insert(ctx, tx, draft)
	}
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return models.UpsertResult{Status: models.UpsertDuplicate, ID: id}, nil
	}
	if err != nil {
		return models.UpsertResult{}, err
	}
	return models.UpsertResult{Status: status, ID: id}, nil
}

// findMatch prefers an external id match, then SKU, then name.
func (r *ProductRepository) findMatch(ctx context.Context, tx *sql.Tx, draft *models.ProductDraft) (int64, bool, error) {
	const query = `SELECT id FROM supplier_products
		WHERE external_id = $1 OR name_key = $2 OR sku = $3
		ORDER BY CASE WHEN external_id = $1 THEN 0 WHEN sku = $3 THEN 1 ELSE 2 END, id
		LIMIT 1`

	var id int64
	err := tx.QueryRowContext(ctx, query, draft.ExternalID, draft.NameKey, nullString(draft.SKU)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find match: %w", err)
	}
	return id, true, nil
}

func (r *ProductRepository) insert(ctx context.Context, tx *sql.Tx, d *models.ProductDraft) (int64, error) {
	const query = `INSERT INTO supplier_products (
		external_id, sku, name, name_key, brand, flavor, category, size,
		wholesale_price, retail_price, margin_percent, stock_level, in_stock,
		image_url, barcode, expiry_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT DO NOTHING
		RETURNING id`

	now := r.now()
	var id int64
	err := tx.QueryRowContext(ctx, query,
		d.ExternalID, nullString(d.SKU), d.Name, d.NameKey, d.Brand, d.Flavor, d.Category, d.Size,
		d.WholesalePrice, d.RetailPrice, d.MarginPercent, d.StockLevel, d.InStock,
		d.ImageURL, d.Barcode, d.ExpiryDate, now, now,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return 0, err
		}
		return 0, fmt.Errorf("insert %s: %w", d.ExternalID, err)
	}
	return id, nil
}

func (r *ProductRepository) update(ctx context.Context, tx *sql.Tx, id int64, d *models.ProductDraft) error {
	const query = `UPDATE supplier_products SET
		external_id = $1, sku = $2, name = $3, name_key = $4, brand = $5, flavor = $6,
		category = $7, size = $8, wholesale_price = $9, retail_price = $10,
		margin_percent = $11, stock_level = $12, in_stock = $13, image_url = $14,
		barcode = $15, expiry_date = $16, updated_at = $17
		WHERE id = $18`

	_, err := tx.ExecContext(ctx, query,
		d.ExternalID, nullString(d.SKU), d.Name, d.NameKey, d.Brand, d.Flavor,
		d.Category, d.Size, d.WholesalePrice, d.RetailPrice,
		d.MarginPercent, d.StockLevel, d.InStock, d.ImageURL,
		d.Barcode, d.ExpiryDate, r.now(), id,
	)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("update %d: %w", id, err)
	}
	return err
}

func (r *ProductRepository) SetLocalImage(ctx context.Context, id int64, localPath string) error {
	return r.setColumn(ctx, "local_image_path", id, localPath)
}

// SetFeatured is an operator edit; syncs never change it.
func (r *ProductRepository) SetFeatured(ctx context.Context, id int64, featured bool) error {
	return r.setColumn(ctx, "featured", id, featured)
}

func (r *ProductRepository) setColumn(ctx context.Context, column string, id int64, value interface{}) error {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE supplier_products SET %s = $1 WHERE id = $2", column), value, id)
	if err != nil {
		return fmt.Errorf("set %s of %d: %w", column, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("product %d: %w", id, pkg.ErrNotFound)
	}
	return nil
}

func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM supplier_products").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*models.PersistedProduct, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM supplier_products WHERE id = $1", id)
	return scanProduct(row)
}

func (r *ProductRepository) GetByExternalID(ctx context.Context, externalID string) (*models.PersistedProduct, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM supplier_products WHERE external_id = $1", externalID)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (*models.PersistedProduct, error) {
	var (
		p   models.PersistedProduct
		sku sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.ExternalID, &sku, &p.Name, &p.NameKey, &p.Brand, &p.Flavor, &p.Category, &p.Size,
		&p.WholesalePrice, &p.RetailPrice, &p.MarginPercent, &p.StockLevel, &p.InStock, &p.ImageURL,
		&p.Barcode, &p.ExpiryDate, &p.Featured, &p.LocalImagePath, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.SKU = sku.String
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation recognises unique index errors of both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
