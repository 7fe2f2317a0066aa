package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices and totals go out as JSON numbers (19.98), not strings
	decimal.MarshalJSONWithoutQuotes = true
}

type Store struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	Domain      string    `db:"domain" json:"domain,omitempty"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type Product struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"storeId"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Inventory   int             `json:"inventory"`
	Images      []string        `json:"images"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Page is the pagination block returned next to list results.
type Page struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPage(total, page, limit int) Page {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page{Total: total, Page: page, Limit: limit, TotalPages: pages}
}
