package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/warspaseman/coffee-crm/internal/fulfillment"
	"github.com/warspaseman/coffee-crm/internal/models"
)

// OrderHandler exposes the cashier and barista order flows on top of the
// fulfillment engine.
type OrderHandler struct {
	Orders *fulfillment.Service
}

func NewOrderHandler(orders *fulfillment.Service) *OrderHandler {
	return &OrderHandler{Orders: orders}
}

type orderLineRequest struct {
	MenuItemID  uint   `json:"menu_item_id" validate:"required"`
	Size        string `json:"size" validate:"omitempty,oneof=S M L"`
	Quantity    int    `json:"quantity" validate:"required,gte=1"`
	ModifierIDs []uint `json:"modifier_ids"`
}

type createOrderRequest struct {
	Items []orderLineRequest `json:"items" validate:"required,min=1,dive"`
}

// Create takes the cashier's cart and returns the priced pending order.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	lines := make([]fulfillment.LineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, fulfillment.LineInput{
			MenuItemID:  item.MenuItemID,
			Size:        models.Size(item.Size),
			Quantity:    item.Quantity,
			ModifierIDs: item.ModifierIDs,
		})
	}

	order, err := h.Orders.CreateOrder(c.Context(), lines)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":    order.ID,
		"number":      order.Number,
		"total_price": order.TotalPrice,
	})
}

// Queue lists the barista's open orders, oldest first.
func (h *OrderHandler) Queue(c *fiber.Ctx) error {
	orders, err := h.Orders.Queue(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// Get returns one order with its lines.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID"})
	}

	order, err := h.Orders.Get(c.Context(), uint(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=preparing ready completed"`
}

// UpdateStatus advances an order through the pipeline. Setting it to
// completed triggers the stock deduction.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID"})
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.Orders.UpdateStatus(c.Context(), uint(id), models.OrderStatus(req.Status)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order status updated"})
}

// Complete marks an order sold and deducts its ingredients. Idempotent.
func (h *OrderHandler) Complete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID"})
	}

	if err := h.Orders.CompleteOrder(c.Context(), uint(id)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order completed"})
}

// Cancel deletes a non-completed order.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID"})
	}

	if err := h.Orders.CancelOrder(c.Context(), uint(id)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order cancelled"})
}
