package handlers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/warspaseman/coffee-crm/internal/fulfillment"
	"github.com/warspaseman/coffee-crm/internal/ledger"
	"github.com/warspaseman/coffee-crm/internal/shift"
	"github.com/warspaseman/coffee-crm/internal/supply"
)

var validate = validator.New()

// respondError translates engine errors into the JSON error bodies the
// API speaks. Validation problems are 400, missing entities 404, and
// business precondition failures (no stock, shift state, bad transition)
// 409 so the register can distinguish "retry after restock" from "you
// sent garbage".
func respondError(c *fiber.Ctx, err error) error {
	var insufficient *ledger.InsufficientStockError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      "Insufficient stock",
			"ingredient": insufficient.Ingredient,
		})
	}

	switch {
	case errors.Is(err, supply.ErrNoPrice),
		errors.Is(err, supply.ErrNonPositiveQuantity),
		errors.Is(err, supply.ErrIngredientMismatch),
		errors.Is(err, fulfillment.ErrEmptyOrder):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, fulfillment.ErrOrderNotFound),
		errors.Is(err, fulfillment.ErrMenuItemNotFound),
		errors.Is(err, fulfillment.ErrModifierNotFound),
		errors.Is(err, supply.ErrItemNotFound),
		errors.Is(err, ledger.ErrIngredientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, shift.ErrShiftAlreadyOpen),
		errors.Is(err, shift.ErrNoActiveShift),
		errors.Is(err, fulfillment.ErrOrderCompleted),
		errors.Is(err, fulfillment.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
