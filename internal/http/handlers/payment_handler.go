package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
	"shopforge/internal/services"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	var in services.PaymentInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	order, err := h.Payments.InitiatePayment(c.UserContext(), in)
	if err != nil {
		return err
	}
	applog.Info(c, "payment.initiate", map[string]any{"receipt": in.Receipt, "gateway_order_id": order["id"]})
	return c.JSON(fiber.Map{"success": true, "order": order})
}

func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	var in services.VerifyInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	o, err := h.Payments.VerifyPayment(c.UserContext(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSecurity):
			applog.Security(c, "payment.signature.invalid", map[string]any{
				"order_id":         in.OrderID,
				"store_id":         in.StoreID,
				"gateway_order_id": in.GatewayOrderID,
			})
		case errors.Is(err, services.ErrConflict):
			applog.Security(c, "payment.verify.conflict", map[string]any{
				"order_id":           in.OrderID,
				"gateway_payment_id": in.GatewayPaymentID,
			})
		}
		return err
	}
	applog.Audit(c, "payment.verify", map[string]any{
		"order_id":           o.ID,
		"store_id":           o.StoreID,
		"gateway_order_id":   o.RazorpayOrderID,
		"gateway_payment_id": o.RazorpayPaymentID,
	})
	return c.JSON(fiber.Map{"success": true, "message": "Payment verified successfully", "order": o})
}
