package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"shopforge/internal/domain"
)

type StoreRepo struct{ db queryer }

func NewStoreRepo(db *sqlx.DB) *StoreRepo { return &StoreRepo{db: db} }

// WithTx returns a copy bound to tx.
func (r *StoreRepo) WithTx(tx *sqlx.Tx) *StoreRepo { return &StoreRepo{db: tx} }

const storeColumns = `id, name, slug, description, domain, is_active, created_at, updated_at`

func (r *StoreRepo) Create(ctx context.Context, s *domain.Store) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  INSERT INTO stores (`+storeColumns+`)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), s.ID, s.Name, s.Slug, s.Description, s.Domain, s.IsActive, s.CreatedAt, s.UpdatedAt)
	return err
}

// Get returns the store regardless of its active flag.
func (r *StoreRepo) Get(ctx context.Context, id string) (domain.Store, error) {
	var s domain.Store
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT `+storeColumns+` FROM stores WHERE id = ?`), id)
	return s, err
}

// GetActive returns sql.ErrNoRows for unknown and soft-deleted stores alike.
func (r *StoreRepo) GetActive(ctx context.Context, id string) (domain.Store, error) {
	var s domain.Store
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT `+storeColumns+` FROM stores WHERE id = ? AND is_active = ?`), id, true)
	return s, err
}

func (r *StoreRepo) GetActiveBySlug(ctx context.Context, slug string) (domain.Store, error) {
	var s domain.Store
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT `+storeColumns+` FROM stores WHERE slug = ? AND is_active = ?`), slug, true)
	return s, err
}

// SlugTaken checks every store, active or not: a soft-deleted store keeps its slug.
func (r *StoreRepo) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM stores WHERE slug = ? AND id <> ?`), slug, exceptID)
	return n > 0, err
}

func (r *StoreRepo) ListActive(ctx context.Context) ([]domain.Store, error) {
	out := []domain.Store{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
	  SELECT `+storeColumns+`
	  FROM stores
	  WHERE is_active = ?
	  ORDER BY created_at DESC
	`), true)
	return out, err
}

// Update writes every mutable column; returns false when nothing matched.
func (r *StoreRepo) Update(ctx context.Context, s *domain.Store) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE stores
	  SET name = ?, slug = ?, description = ?, domain = ?, is_active = ?, updated_at = ?
	  WHERE id = ?
	`), s.Name, s.Slug, s.Description, s.Domain, s.IsActive, s.UpdatedAt, s.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
