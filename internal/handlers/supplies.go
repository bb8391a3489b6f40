package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
	"github.com/warspaseman/coffee-crm/internal/supply"
)

// SupplyHandler exposes delivery intake. Reads go straight to the DB the
// way the inventory handlers do; every mutation goes through the supply
// service so the ledger stays consistent.
type SupplyHandler struct {
	DB       *gorm.DB
	Supplies *supply.Service
}

func NewSupplyHandler(db *gorm.DB, supplies *supply.Service) *SupplyHandler {
	return &SupplyHandler{DB: db, Supplies: supplies}
}

type supplyItemRequest struct {
	IngredientID uint             `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal  `json:"quantity" validate:"required"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	Cost         *decimal.Decimal `json:"cost"`
}

type recordSupplyRequest struct {
	SupplierID uint                `json:"supplier_id" validate:"required"`
	Items      []supplyItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Record books a delivery and applies its stock.
func (h *SupplyHandler) Record(c *fiber.Ctx) error {
	var req recordSupplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	items := make([]supply.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, supply.ItemInput{
			IngredientID: item.IngredientID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Cost:         item.Cost,
		})
	}

	sup, err := h.Supplies.RecordSupply(c.Context(), req.SupplierID, items)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"supply_id":  sup.ID,
		"reference":  sup.Reference,
		"total_cost": sup.TotalCost,
	})
}

// List returns deliveries newest-first with their lines.
func (h *SupplyHandler) List(c *fiber.Ctx) error {
	var supplies []models.Supply
	if err := h.DB.Preload("Items").Preload("Supplier").
		Order("created_at DESC").
		Find(&supplies).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch supplies"})
	}
	return c.JSON(supplies)
}

// UpdateItem edits one delivery line; stock is netted, not re-added.
func (h *SupplyHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid supply item ID"})
	}

	var req supplyItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	item, err := h.Supplies.UpdateItem(c.Context(), uint(id), supply.ItemInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		Cost:         req.Cost,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

// DeleteItem removes one delivery line and rolls back its stock.
func (h *SupplyHandler) DeleteItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid supply item ID"})
	}

	if err := h.Supplies.DeleteItem(c.Context(), uint(id)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Supply item deleted"})
}
