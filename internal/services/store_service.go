package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shopforge/internal/domain"
	"shopforge/internal/repos"
	"shopforge/internal/slug"
	"shopforge/internal/validate"
)

type StoreService struct {
	Stores *repos.StoreRepo
	Now    func() time.Time
}

func NewStoreService(stores *repos.StoreRepo) *StoreService {
	return &StoreService{Stores: stores, Now: time.Now}
}

type StoreInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
}

// StorePatch holds the fields of a partial update; nil means unchanged.
type StorePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Domain      *string `json:"domain"`
}

func (s *StoreService) List(ctx context.Context) ([]domain.Store, error) {
	return s.Stores.ListActive(ctx)
}

// Get returns an active store; soft-deleted stores are NotFound.
func (s *StoreService) Get(ctx context.Context, id string) (domain.Store, error) {
	st, err := s.Stores.GetActive(ctx, id)
	if repos.IsNoRows(err) {
		return domain.Store{}, notFound("store")
	}
	return st, err
}

func (s *StoreService) Create(ctx context.Context, in StoreInput) (domain.Store, error) {
	name, ok := validate.Name(in.Name)
	if !ok {
		return domain.Store{}, invalid("store name is required")
	}
	desc, ok := validate.Text(in.Description, 2000)
	if !ok {
		return domain.Store{}, invalid("description is too long")
	}
	host, ok := validate.Domain(in.Domain)
	if !ok {
		return domain.Store{}, invalid("invalid domain")
	}
	sl := slug.Make(name)
	if sl == "" {
		return domain.Store{}, invalid("store name must contain letters or digits")
	}

	if err := s.checkSlug(ctx, sl, ""); err != nil {
		return domain.Store{}, err
	}

	now := s.Now().UTC()
	st := domain.Store{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        sl,
		Description: desc,
		Domain:      host,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Stores.Create(ctx, &st); err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Store{}, slugConflict()
		}
		return domain.Store{}, err
	}
	return st, nil
}

// Update applies a partial change to an active store. A new name re-derives the slug.
func (s *StoreService) Update(ctx context.Context, id string, p StorePatch) (domain.Store, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return domain.Store{}, err
	}

	if p.Name != nil {
		name, ok := validate.Name(*p.Name)
		if !ok {
			return domain.Store{}, invalid("store name is required")
		}
		sl := slug.Make(name)
		if sl == "" {
			return domain.Store{}, invalid("store name must contain letters or digits")
		}
		if sl != st.Slug {
			if err := s.checkSlug(ctx, sl, st.ID); err != nil {
				return domain.Store{}, err
			}
		}
		st.Name, st.Slug = name, sl
	}
	if p.Description != nil {
		desc, ok := validate.Text(*p.Description, 2000)
		if !ok {
			return domain.Store{}, invalid("description is too long")
		}
		st.Description = desc
	}
	if p.Domain != nil {
		host, ok := validate.Domain(*p.Domain)
		if !ok {
			return domain.Store{}, invalid("invalid domain")
		}
		st.Domain = host
	}

	st.UpdatedAt = s.Now().UTC()
	found, err := s.Stores.Update(ctx, &st)
	if err != nil {
		if repos.IsUniqueViolation(err) {
			return domain.Store{}, slugConflict()
		}
		return domain.Store{}, err
	}
	if !found {
		return domain.Store{}, notFound("store")
	}
	return st, nil
}

// Delete soft-deletes the store. Its slug stays reserved.
func (s *StoreService) Delete(ctx context.Context, id string) error {
	st, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	st.IsActive = false
	st.UpdatedAt = s.Now().UTC()
	found, err := s.Stores.Update(ctx, &st)
	if err != nil {
		return err
	}
	if !found {
		return notFound("store")
	}
	return nil
}

func (s *StoreService) checkSlug(ctx context.Context, sl, exceptID string) error {
	taken, err := s.Stores.SlugTaken(ctx, sl, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return slugConflict()
	}
	return nil
}

func slugConflict() error {
	return conflict("a store with this name already exists")
}
