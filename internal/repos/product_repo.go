package repos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"shopforge/internal/domain"
)

type ProductRepo struct{ db queryer }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) WithTx(tx *sqlx.Tx) *ProductRepo { return &ProductRepo{db: tx} }

type productRow struct {
	ID          string    `db:"id"`
	StoreID     string    `db:"store_id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	PriceCents  int64     `db:"price_cents"`
	Inventory   int       `db:"inventory"`
	ImagesJSON  string    `db:"images_json"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row productRow) product() domain.Product {
	images := []string{}
	if row.ImagesJSON != "" {
		_ = json.Unmarshal([]byte(row.ImagesJSON), &images)
	}
	return domain.Product{
		ID:          row.ID,
		StoreID:     row.StoreID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		Price:       domain.FromCents(row.PriceCents),
		Inventory:   row.Inventory,
		Images:      images,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func products(rows []productRow) []domain.Product {
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.product())
	}
	return out
}

func imagesJSON(images []string) string {
	if images == nil {
		images = []string{}
	}
	b, _ := json.Marshal(images)
	return string(b)
}

const productColumns = `id, store_id, name, slug, description, price_cents, inventory, images_json, is_active, created_at, updated_at`

// searchText is what Search matches against. It is folded here rather than in
// SQL because SQLite's LOWER only handles ASCII.
func searchText(p *domain.Product) string {
	return strings.ToLower(p.Name + " " + p.Description)
}

// likePattern matches q anywhere, with its own % _ and \ taken literally.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  INSERT INTO products (`+productColumns+`, search_text)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), p.ID, p.StoreID, p.Name, p.Slug, p.Description, domain.Cents(p.Price), p.Inventory,
		imagesJSON(p.Images), p.IsActive, p.CreatedAt, p.UpdatedAt, searchText(p))
	return err
}

// Get returns an active product of the given store.
func (r *ProductRepo) Get(ctx context.Context, storeID, id string) (domain.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
	  SELECT `+productColumns+`
	  FROM products
	  WHERE id = ? AND store_id = ? AND is_active = ?
	`), id, storeID, true)
	if err != nil {
		return domain.Product{}, err
	}
	return row.product(), nil
}

// SlugTaken is scoped to the active products of one store.
func (r *ProductRepo) SlugTaken(ctx context.Context, storeID, slug, exceptID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`
	  SELECT COUNT(*) FROM products
	  WHERE store_id = ? AND slug = ? AND is_active = ? AND id <> ?
	`), storeID, slug, true, exceptID)
	return n > 0, err
}

func searchWhere(storeID, q string) (string, []any) {
	where := `store_id = ? AND is_active = ?`
	args := []any{storeID, true}
	if q != "" {
		where += ` AND search_text LIKE ? ESCAPE '\'`
		args = append(args, likePattern(q))
	}
	return where, args
}

// Search lists active products of a store, newest first. q must already be
// lower-cased; it is matched as a plain substring.
func (r *ProductRepo) Search(ctx context.Context, storeID, q string, limit, offset int) ([]domain.Product, error) {
	where, args := searchWhere(storeID, q)
	args = append(args, limit, offset)

	var rows []productRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
	  SELECT `+productColumns+`
	  FROM products
	  WHERE `+where+`
	  ORDER BY created_at DESC, id
	  LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, err
	}
	return products(rows), nil
}

func (r *ProductRepo) Count(ctx context.Context, storeID, q string) (int, error) {
	where, args := searchWhere(storeID, q)
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM products WHERE `+where), args...)
	return n, err
}

// ActiveByIDs resolves ids within one store in a single query. On Postgres the
// rows are locked in id order until the caller's transaction ends. Pass
// forUpdate when the same transaction will decrement stock.
func (r *ProductRepo) ActiveByIDs(ctx context.Context, storeID string, ids []string, forUpdate bool) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
	  SELECT `+productColumns+`
	  FROM products
	  WHERE store_id = ? AND is_active = ? AND id IN (?)
	  ORDER BY id`, storeID, true, ids)
	if err != nil {
		return nil, err
	}
	if r.db.DriverName() == "pgx" {
		if forUpdate {
			query += ` FOR UPDATE`
		} else {
			query += ` FOR SHARE`
		}
	}
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.product()
	}
	return out, nil
}

// Update writes the mutable columns of an active product; storeId is part of the match, never of the SET.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE products
	  SET name = ?, slug = ?, description = ?, price_cents = ?, inventory = ?, images_json = ?,
	      search_text = ?, updated_at = ?
	  WHERE id = ? AND store_id = ? AND is_active = ?
	`), p.Name, p.Slug, p.Description, domain.Cents(p.Price), p.Inventory, imagesJSON(p.Images),
		searchText(p), p.UpdatedAt, p.ID, p.StoreID, true)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Deactivate soft-deletes so order snapshots keep pointing at a real row.
func (r *ProductRepo) Deactivate(ctx context.Context, storeID, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE products SET is_active = ?, updated_at = ?
	  WHERE id = ? AND store_id = ? AND is_active = ?
	`), false, at, id, storeID, true)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DecrementInventory subtracts qty only if enough stock exists; false means shortfall.
func (r *ProductRepo) DecrementInventory(ctx context.Context, storeID, id string, qty int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE products
	  SET inventory = inventory - ?, updated_at = ?
	  WHERE id = ? AND store_id = ? AND inventory >= ?
	`), qty, at, id, storeID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ProductRepo) CountActive(ctx context.Context, storeID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM products WHERE store_id = ? AND is_active = ?`), storeID, true)
	return n, err
}

// ActiveByStoreSlug lists the active products of an active store, newest first.
func (r *ProductRepo) ActiveByStoreSlug(ctx context.Context, storeSlug string, limit int) ([]domain.Product, error) {
	var rows []productRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
	  SELECT p.id, p.store_id, p.name, p.slug, p.description, p.price_cents, p.inventory,
	         p.images_json, p.is_active, p.created_at, p.updated_at
	  FROM products p
	  JOIN stores s ON s.id = p.store_id
	  WHERE s.slug = ? AND s.is_active = ? AND p.is_active = ?
	  ORDER BY p.created_at DESC, p.id
	  LIMIT ?`), storeSlug, true, true, limit)
	if err != nil {
		return nil, err
	}
	return products(rows), nil
}
