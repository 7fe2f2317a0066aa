package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
	"shopforge/internal/services"
	"shopforge/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	out, err := h.Orders.ListOrders(c.UserContext(), c.Params("storeId"), c.Query("status"),
		validate.Page(c.Query("page")), validate.Limit(c.Query("limit")))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	o, err := h.Orders.GetOrder(c.UserContext(), c.Params("storeId"), c.Params("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(o)
}

// Create places a pending order. A supplied total that differs from the item
// sum is recorded in the audit log whether or not it was honoured.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in services.OrderInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	storeID := c.Params("storeId")
	o, calculated, err := h.Orders.CreateOrder(c.UserContext(), storeID, in)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"store_id":     storeID,
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"server_total": calculated.StringFixed(2),
		"total":        o.Total.StringFixed(2),
		"mismatch":     false,
	}
	if in.Total != nil {
		fields["client_total"] = in.Total.StringFixed(2)
		fields["mismatch"] = !in.Total.Equal(calculated)
	}
	applog.Audit(c, "order.create", fields)
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var in struct {
		Status string `json:"status"`
	}
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &in); err != nil {
			return err
		}
	}
	o, err := h.Orders.UpdateOrderStatus(c.UserContext(), c.Params("storeId"), c.Params("itemId"), in.Status)
	if err != nil {
		return err
	}
	applog.Audit(c, "order.status", map[string]any{"store_id": o.StoreID, "order_id": o.ID, "status": string(o.Status)})
	return c.JSON(o)
}

type AnalyticsHandler struct {
	Analytics *services.AnalyticsService
}

// Get serves GET /api/analytics/:storeId?period=N (days, default 30).
func (h *AnalyticsHandler) Get(c *fiber.Ctx) error {
	period := services.DefaultPeriodDays
	if raw := c.Query("period"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest("period must be a number of days")
		}
		period = n
	}
	r, err := h.Analytics.ComputeAnalytics(c.UserContext(), c.Params("storeId"), period)
	if err != nil {
		return err
	}
	return c.JSON(r)
}
