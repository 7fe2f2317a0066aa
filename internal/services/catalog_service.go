package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shopforge/internal/domain"
	"shopforge/internal/repos"
	"shopforge/internal/slug"
	"shopforge/internal/validate"
)

const (
	maxImages         = 20
	storefrontMaxSize = 500
)

type CatalogService struct {
	Stores *repos.StoreRepo
	Prods  *repos.ProductRepo
	Now    func() time.Time
}

func NewCatalogService(stores *repos.StoreRepo, prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Stores: stores, Prods: prods, Now: time.Now}
}

type ProductInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Inventory   *int             `json:"inventory"`
	Images      []string         `json:"images"`
}

// ProductPatch holds the fields of a partial update; nil means unchanged.
type ProductPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Inventory   *int             `json:"inventory"`
	Images      *[]string        `json:"images"`
}

type ProductList struct {
	Products []domain.Product `json:"products"`
	Meta     domain.Page      `json:"meta"`
}

type Storefront struct {
	Store    domain.Store     `json:"store"`
	Products []domain.Product `json:"products"`
}

func (s *CatalogService) activeStore(ctx context.Context, storeID string) error {
	_, err := s.Stores.GetActive(ctx, storeID)
	if repos.IsNoRows(err) {
		return notFound("store")
	}
	return err
}

// ListProducts pages through a store's active products, optionally filtered by a
// case-insensitive substring of name or description.
func (s *CatalogService) ListProducts(ctx context.Context, storeID, q string, page, limit int) (ProductList, error) {
	if err := s.activeStore(ctx, storeID); err != nil {
		return ProductList{}, err
	}
	q = validate.Q(q)
	offset := (page - 1) * limit

	var (
		items []domain.Product
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.Prods.Search(gctx, storeID, q, limit, offset)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.Prods.Count(gctx, storeID, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProductList{}, err
	}
	return ProductList{Products: items, Meta: domain.NewPage(total, page, limit)}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, storeID, id string) (domain.Product, error) {
	p, err := s.Prods.Get(ctx, storeID, id)
	if repos.IsNoRows(err) {
		return domain.Product{}, notFound("product")
	}
	return p, err
}

func (s *CatalogService) CreateProduct(ctx context.Context, storeID string, in ProductInput) (domain.Product, error) {
	if err := s.activeStore(ctx, storeID); err != nil {
		return domain.Product{}, err
	}

	name, ok := validate.Name(in.Name)
	if !ok {
		return domain.Product{}, invalid("product name is required")
	}
	if in.Price == nil {
		return domain.Product{}, invalid("price is required")
	}
	if err := checkPrice(*in.Price); err != nil {
		return domain.Product{}, err
	}
	inventory := 0
	if in.Inventory != nil {
		inventory = *in.Inventory
	}
	if inventory < 0 {
		return domain.Product{}, invalid("inventory must not be negative")
	}
	desc, ok := validate.Text(in.Description, 5000)
	if !ok {
		return domain.Product{}, invalid("description is too long")
	}
	images, err := cleanImages(in.Images)
	if err != nil {
		return domain.Product{}, err
	}
	sl := slug.Make(name)
	if sl == "" {
		return domain.Product{}, invalid("product name must contain letters or digits")
	}
	if err := s.checkSlug(ctx, storeID, sl, ""); err != nil {
		return domain.Product{}, err
	}

	now := s.Now().UTC()
	p := domain.Product{
		ID:          uuid.NewString(),
		StoreID:     storeID,
		Name:        name,
		Slug:        sl,
		Description: desc,
		Price:       *in.Price,
		Inventory:   inventory,
		Images:      images,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Prods.Create(ctx, &p); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Product{}, productConflict()
		}
		return domain.Product{}, err
	}
	p.Price = domain.FromCents(domain.Cents(p.Price))
	return p, nil
}

// UpdateProduct applies a partial change. The owning store never changes.
func (s *CatalogService) UpdateProduct(ctx context.Context, storeID, id string, patch ProductPatch) (domain.Product, error) {
	if err := s.activeStore(ctx, storeID); err != nil {
		return domain.Product{}, err
	}
	p, err := s.GetProduct(ctx, storeID, id)
	if err != nil {
		return domain.Product{}, err
	}

	if patch.Name != nil {
		name, ok := validate.Name(*patch.Name)
		if !ok {
			return domain.Product{}, invalid("product name is required")
		}
		sl := slug.Make(name)
		if sl == "" {
			return domain.Product{}, invalid("product name must contain letters or digits")
		}
		if sl != p.Slug {
			if err := s.checkSlug(ctx, storeID, sl, p.ID); err != nil {
				return domain.Product{}, err
			}
		}
		p.Name, p.Slug = name, sl
	}
	if patch.Description != nil {
		desc, ok := validate.Text(*patch.Description, 5000)
		if !ok {
			return domain.Product{}, invalid("description is too long")
		}
		p.Description = desc
	}
	if patch.Price != nil {
		if err := checkPrice(*patch.Price); err != nil {
			return domain.Product{}, err
		}
		p.Price = *patch.Price
	}
	if patch.Inventory != nil {
		if *patch.Inventory < 0 {
			return domain.Product{}, invalid("inventory must not be negative")
		}
		p.Inventory = *patch.Inventory
	}
	if patch.Images != nil {
		images, err := cleanImages(*patch.Images)
		if err != nil {
			return domain.Product{}, err
		}
		p.Images = images
	}

	p.UpdatedAt = s.Now().UTC()
	found, err := s.Prods.Update(ctx, &p)
	if err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Product{}, productConflict()
		}
		return domain.Product{}, err
	}
	if !found {
		return domain.Product{}, notFound("product")
	}
	p.Price = domain.FromCents(domain.Cents(p.Price))
	return p, nil
}

// DeleteProduct deactivates the product; existing orders keep their snapshots.
func (s *CatalogService) DeleteProduct(ctx context.Context, storeID, id string) error {
	found, err := s.Prods.Deactivate(ctx, storeID, id, s.Now().UTC())
	if err != nil {
		return err
	}
	if !found {
		return notFound("product")
	}
	return nil
}

// Storefront is the public read of an active store and its active products.
func (s *CatalogService) Storefront(ctx context.Context, storeSlug string) (Storefront, error) {
	storeSlug = strings.ToLower(strings.TrimSpace(storeSlug))
	if _, ok := validate.Slug(storeSlug); !ok {
		return Storefront{}, notFound("store")
	}

	var out Storefront
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.Stores.GetActiveBySlug(gctx, storeSlug)
		if repos.IsNoRows(err) {
			return notFound("store")
		}
		out.Store = st
		return err
	})
	g.Go(func() (err error) {
		out.Products, err = s.Prods.ActiveByStoreSlug(gctx, storeSlug, storefrontMaxSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return Storefront{}, err
	}
	return out, nil
}

func (s *CatalogService) checkSlug(ctx context.Context, storeID, sl, exceptID string) error {
	taken, err := s.Prods.SlugTaken(ctx, storeID, sl, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return productConflict()
	}
	return nil
}

func checkPrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return invalid("price must not be negative")
	}
	if !domain.WithinMax(p) {
		return invalid("price must not exceed %s", domain.MaxAmount.String())
	}
	if !p.Equal(p.Round(2)) {
		return invalid("price must have at most two decimal places")
	}
	return nil
}

func cleanImages(in []string) ([]string, error) {
	if len(in) > maxImages {
		return nil, invalid("at most %d images are allowed", maxImages)
	}
	out := make([]string, 0, len(in))
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if len(u) > 2048 {
			return nil, invalid("image url is too long")
		}
		out = append(out, u)
	}
	return out, nil
}

func productConflict() error {
	return conflict("a product with this name already exists in this store")
}
