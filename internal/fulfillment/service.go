// Package fulfillment is the order engine: it prices orders at sale
// time, walks them through the status pipeline and, on completion, turns
// their line items into an all-or-nothing stock deduction against the
// ledger.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/ledger"
	"github.com/warspaseman/coffee-crm/internal/models"
	"github.com/warspaseman/coffee-crm/internal/notifier"
	"github.com/warspaseman/coffee-crm/internal/shift"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrMenuItemNotFound  = errors.New("menu item not found")
	ErrModifierNotFound  = errors.New("modifier not found")
	ErrEmptyOrder        = errors.New("order needs at least one item")
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderCompleted rejects cancelling an order that already sold.
	ErrOrderCompleted = errors.New("order is already completed")
)

// LineInput is one requested order line.
type LineInput struct {
	MenuItemID  uint
	Size        models.Size
	Quantity    int
	ModifierIDs []uint
}

type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	ledger   *ledger.Ledger
	notifier *notifier.Service
	shifts   *shift.Service
}

func NewService(logger *zap.Logger, db *gorm.DB, ldg *ledger.Ledger, ntf *notifier.Service, shifts *shift.Service) *Service {
	return &Service{logger: logger, db: db, ledger: ldg, notifier: ntf, shifts: shifts}
}

// CreateOrder prices and persists a pending order linked to the active
// shift. The price of every line is frozen here: base price scaled by the
// size's price multiplier (0.8 / 1.0 / 1.25), plus chosen modifier
// prices, times quantity. Later catalog changes never reprice it.
//
// Returns shift.ErrNoActiveShift when the register is closed.
func (s *Service) CreateOrder(ctx context.Context, lines []LineInput) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", ErrEmptyOrder)
		}
	}

	order := &models.Order{
		Number: uuid.New().String(),
		Status: models.OrderPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sh, err := s.shifts.Active(ctx, tx)
		if err != nil {
			return err
		}
		order.ShiftID = sh.ID

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		total := decimal.Zero
		for _, line := range lines {
			var mi models.MenuItem
			if err := tx.First(&mi, line.MenuItemID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrMenuItemNotFound
				}
				return fmt.Errorf("failed to find menu item: %w", err)
			}

			var mods []models.Modifier
			if len(line.ModifierIDs) > 0 {
				if err := tx.Find(&mods, line.ModifierIDs).Error; err != nil {
					return fmt.Errorf("failed to find modifiers: %w", err)
				}
				if len(mods) != len(line.ModifierIDs) {
					return ErrModifierNotFound
				}
			}

			size := line.Size
			if size == "" || !mi.HasSizes {
				size = models.SizeMedium
			}

			linePrice := mi.Price.Mul(size.PriceMultiplier())
			for _, mod := range mods {
				linePrice = linePrice.Add(mod.Price)
			}
			linePrice = linePrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)

			item := models.OrderItem{
				OrderID:    order.ID,
				MenuItemID: mi.ID,
				Quantity:   line.Quantity,
				Size:       size,
				Price:      linePrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			if len(mods) > 0 {
				if err := tx.Model(&item).Association("Modifiers").Append(mods); err != nil {
					return fmt.Errorf("failed to attach modifiers: %w", err)
				}
			}

			total = total.Add(linePrice)
		}

		order.TotalPrice = total
		if err := tx.Model(order).Update("total_price", total).Error; err != nil {
			return fmt.Errorf("failed to save order total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("number", order.Number),
		zap.String("total_price", order.TotalPrice.String()))

	return order, nil
}

// CompleteOrder fulfills an order: verify then commit, both phases in one
// transaction that also covers the recipe and modifier reads.
//
// Phase 1 resolves every line's deductions, merges them per ingredient
// and checks each against current stock; any shortfall aborts the whole
// operation with InsufficientStockError and zero side effects. Phase 2
// applies every deduction through the ledger and marks the order sold.
//
// Completing an already-completed order is a no-op, so a double-tap on
// the "done" button never double-deducts. Low-stock reorder checks run
// after the transaction commits.
func (s *Service) CompleteOrder(ctx context.Context, orderID uint) error {
	var affected []uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.
			Preload("Items.MenuItem.Recipes.Ingredient").
			Preload("Items.Modifiers").
			First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to find order: %w", err)
		}

		if order.Status == models.OrderCompleted {
			return nil
		}

		needs := ResolveDeductions(order.Items)

		// Stable ingredient order keeps concurrent completions updating
		// rows in the same sequence.
		ids := make([]uint, 0, len(needs))
		for id := range needs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		// Phase 1: verify the whole order before touching anything.
		for _, id := range ids {
			var ing models.Ingredient
			if err := tx.First(&ing, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ledger.ErrIngredientNotFound
				}
				return fmt.Errorf("failed to find ingredient: %w", err)
			}
			if ing.Amount.LessThan(needs[id]) {
				return &ledger.InsufficientStockError{Ingredient: ing.Name}
			}
		}

		// Phase 2: commit every deduction. The ledger's floor still
		// guards each one, so a concurrent fulfillment that beat our
		// verify rolls this transaction back instead of overselling.
		for _, id := range ids {
			if _, err := s.ledger.Adjust(ctx, tx, id, needs[id].Neg()); err != nil {
				return err
			}
		}
		affected = ids

		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":       models.OrderCompleted,
			"is_completed": true,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark order completed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(affected) > 0 {
		s.notifier.CheckReorder(ctx, affected)
	}

	s.logger.Info("order completed", zap.Uint("order_id", orderID))
	return nil
}

// UpdateStatus advances an order along pending -> preparing -> ready.
// Moving to completed goes through CompleteOrder so the deduction
// protocol cannot be bypassed.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, next models.OrderStatus) error {
	if next == models.OrderCompleted {
		return s.CompleteOrder(ctx, orderID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to find order: %w", err)
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
		}
		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
}

// CancelOrder deletes a non-completed order with its items. Nothing was
// deducted for it, so there is nothing to put back.
func (s *Service) CancelOrder(ctx context.Context, orderID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to find order: %w", err)
		}
		if order.Status == models.OrderCompleted {
			return ErrOrderCompleted
		}

		if err := tx.Exec(
			"DELETE FROM order_item_modifiers WHERE order_item_id IN (SELECT id FROM order_items WHERE order_id = ?)",
			order.ID).Error; err != nil {
			return fmt.Errorf("failed to detach modifiers: %w", err)
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		if err := tx.Delete(&order).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
}

// Queue lists non-completed orders oldest-first for the barista screen.
func (s *Service) Queue(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.MenuItem").
		Preload("Items.Modifiers").
		Where("status <> ?", models.OrderCompleted).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list order queue: %w", err)
	}
	return orders, nil
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.MenuItem").
		Preload("Items.Modifiers").
		First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}
