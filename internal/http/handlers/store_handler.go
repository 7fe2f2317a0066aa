package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
	"shopforge/internal/services"
)

type StoreHandler struct {
	Stores *services.StoreService
}

func (h *StoreHandler) List(c *fiber.Ctx) error {
	stores, err := h.Stores.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stores)
}

func (h *StoreHandler) Get(c *fiber.Ctx) error {
	st, err := h.Stores.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *StoreHandler) Create(c *fiber.Ctx) error {
	var in services.StoreInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	st, err := h.Stores.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "store.create", map[string]any{"store_id": st.ID, "slug": st.Slug})
	return c.Status(fiber.StatusCreated).JSON(st)
}

func (h *StoreHandler) Update(c *fiber.Ctx) error {
	var in services.StorePatch
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	st, err := h.Stores.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	applog.Audit(c, "store.update", map[string]any{"store_id": st.ID, "slug": st.Slug})
	return c.JSON(st)
}

func (h *StoreHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Stores.Delete(c.UserContext(), id); err != nil {
		return err
	}
	applog.Audit(c, "store.delete", map[string]any{"store_id": id})
	return c.JSON(fiber.Map{"success": true})
}
