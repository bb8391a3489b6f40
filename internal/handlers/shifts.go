package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/warspaseman/coffee-crm/internal/shift"
)

type ShiftHandler struct {
	Shifts *shift.Service
}

func NewShiftHandler(shifts *shift.Service) *ShiftHandler {
	return &ShiftHandler{Shifts: shifts}
}

// Open starts the working day.
func (h *ShiftHandler) Open(c *fiber.Ctx) error {
	sh, err := h.Shifts.Open(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"shift_id":  sh.ID,
		"opened_at": sh.OpenedAt,
	})
}

// Close ends the active shift and returns its sales rollup.
func (h *ShiftHandler) Close(c *fiber.Ctx) error {
	sh, err := h.Shifts.Close(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"shift_id":    sh.ID,
		"total_sales": sh.TotalSales,
		"order_count": sh.OrderCount,
		"closed_at":   sh.ClosedAt,
	})
}

// Active returns the currently open shift, if any.
func (h *ShiftHandler) Active(c *fiber.Ctx) error {
	sh, err := h.Shifts.Active(c.Context(), nil)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sh)
}

// Report lists closed shifts with their totals.
func (h *ShiftHandler) Report(c *fiber.Ctx) error {
	shifts, err := h.Shifts.Closed(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(shifts)
}
