package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
	"shopforge/internal/services"
	"shopforge/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// List serves GET /api/products/:storeId?page&limit&search.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	out, err := h.Catalog.ListProducts(c.UserContext(), c.Params("storeId"), c.Query("search"),
		validate.Page(c.Query("page")), validate.Limit(c.Query("limit")))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	p, err := h.Catalog.GetProduct(c.UserContext(), c.Params("storeId"), c.Params("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	p, err := h.Catalog.CreateProduct(c.UserContext(), c.Params("storeId"), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "product.create", map[string]any{"store_id": p.StoreID, "product_id": p.ID, "price": p.Price.String()})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var in services.ProductPatch
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	p, err := h.Catalog.UpdateProduct(c.UserContext(), c.Params("storeId"), c.Params("itemId"), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "product.update", map[string]any{
		"store_id":   p.StoreID,
		"product_id": p.ID,
		"price":      p.Price.String(),
		"inventory":  p.Inventory,
	})
	return c.JSON(p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	storeID, id := c.Params("storeId"), c.Params("itemId")
	if err := h.Catalog.DeleteProduct(c.UserContext(), storeID, id); err != nil {
		return err
	}
	applog.Audit(c, "product.delete", map[string]any{"store_id": storeID, "product_id": id})
	return c.JSON(fiber.Map{"success": true})
}

type StorefrontHandler struct {
	Catalog *services.CatalogService
}

func (h *StorefrontHandler) Get(c *fiber.Ctx) error {
	sf, err := h.Catalog.Storefront(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(sf)
}
