// Package supply reconciles incoming deliveries with the stock ledger.
// Every create, edit and delete of a delivery line nets out against the
// ledger exactly once, so editing a quantity is rollback-then-apply, not
// a second receipt.
package supply

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/ledger"
	"github.com/warspaseman/coffee-crm/internal/models"
	"github.com/warspaseman/coffee-crm/internal/notifier"
)

var (
	// ErrNoPrice rejects a delivery line carrying neither a unit price
	// nor a total cost. Raised before any ledger mutation.
	ErrNoPrice = errors.New("supply item needs a unit price or a total cost")

	// ErrNonPositiveQuantity rejects zero or negative delivery quantities.
	ErrNonPositiveQuantity = errors.New("supply item quantity must be positive")

	ErrItemNotFound = errors.New("supply item not found")

	// ErrIngredientMismatch rejects an edit that tries to move a delivery
	// line to a different ingredient. Correct the line by deleting and
	// re-recording it instead.
	ErrIngredientMismatch = errors.New("supply item cannot change ingredient")
)

// ItemInput is one requested delivery line. UnitPrice and Cost are
// optional individually but at least one must be set; when both are, the
// unit price wins and the cost is recomputed from it.
type ItemInput struct {
	IngredientID uint
	Quantity     decimal.Decimal
	UnitPrice    *decimal.Decimal
	Cost         *decimal.Decimal
}

type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	ledger   *ledger.Ledger
	notifier *notifier.Service
}

func NewService(logger *zap.Logger, db *gorm.DB, ldg *ledger.Ledger, ntf *notifier.Service) *Service {
	return &Service{logger: logger, db: db, ledger: ldg, notifier: ntf}
}

// deriveMoney fills in the missing money field. Unit price is the source
// of truth when both are present.
func deriveMoney(in ItemInput) (unitPrice, cost decimal.Decimal, err error) {
	if !in.Quantity.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrNonPositiveQuantity
	}
	switch {
	case in.UnitPrice != nil:
		return *in.UnitPrice, in.UnitPrice.Mul(in.Quantity).Round(2), nil
	case in.Cost != nil:
		return in.Cost.Div(in.Quantity).Round(2), *in.Cost, nil
	default:
		return decimal.Zero, decimal.Zero, ErrNoPrice
	}
}

// RecordSupply books a delivery: creates the supply with its lines,
// receives each line's quantity into the ledger, clears the reorder
// dedupe flag on every restocked ingredient and totals the invoice.
// All or nothing: a bad line leaves no stock applied.
func (s *Service) RecordSupply(ctx context.Context, supplierID uint, items []ItemInput) (*models.Supply, error) {
	if len(items) == 0 {
		return nil, errors.New("supply needs at least one item")
	}
	// Validate every line before touching the ledger.
	for _, in := range items {
		if _, _, err := deriveMoney(in); err != nil {
			return nil, err
		}
	}

	sup := &models.Supply{
		Reference:  uuid.New().String(),
		SupplierID: supplierID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sup).Error; err != nil {
			return fmt.Errorf("failed to create supply: %w", err)
		}

		for _, in := range items {
			unitPrice, cost, err := deriveMoney(in)
			if err != nil {
				return err
			}

			item := models.SupplyItem{
				SupplyID:     sup.ID,
				IngredientID: in.IngredientID,
				Quantity:     in.Quantity,
				UnitPrice:    unitPrice,
				Cost:         cost,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create supply item: %w", err)
			}

			if _, err := s.ledger.Adjust(ctx, tx, in.IngredientID, in.Quantity); err != nil {
				return err
			}
			if err := s.clearReorderFlag(ctx, tx, in.IngredientID); err != nil {
				return err
			}
		}

		return s.recomputeTotal(ctx, tx, sup.ID)
	})
	if err != nil {
		return nil, err
	}

	var out models.Supply
	if err := s.db.WithContext(ctx).Preload("Items").First(&out, sup.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload supply: %w", err)
	}

	s.logger.Info("supply recorded",
		zap.Uint("supply_id", out.ID),
		zap.Uint("supplier_id", supplierID),
		zap.String("total_cost", out.TotalCost.String()),
		zap.Int("items", len(out.Items)))

	return &out, nil
}

// UpdateItem edits a delivery line. The old quantity's ledger effect is
// rolled back and the new one applied as a single net movement inside
// one transaction, so the stock effect of the line stays idempotent
// across any number of edits.
func (s *Service) UpdateItem(ctx context.Context, itemID uint, in ItemInput) (*models.SupplyItem, error) {
	unitPrice, cost, err := deriveMoney(in)
	if err != nil {
		return nil, err
	}

	var item models.SupplyItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to find supply item: %w", err)
		}
		if in.IngredientID != 0 && in.IngredientID != item.IngredientID {
			return ErrIngredientMismatch
		}
		oldQuantity := item.Quantity

		// The write is conditional on the quantity read above, so an edit
		// racing a delete or another edit of the same line matches zero
		// rows and aborts instead of double-counting the ledger.
		res := tx.Model(&models.SupplyItem{}).
			Where("id = ? AND quantity = ?", item.ID, oldQuantity).
			Updates(map[string]interface{}{
				"quantity":   in.Quantity,
				"unit_price": unitPrice,
				"cost":       cost,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to save supply item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}
		item.Quantity = in.Quantity
		item.UnitPrice = unitPrice
		item.Cost = cost

		// Rollback and re-apply collapse into one net movement so an
		// upward correction cannot trip the floor on stock already
		// consumed since the delivery.
		delta := in.Quantity.Sub(oldQuantity)
		if !delta.IsZero() {
			if _, err := s.ledger.Adjust(ctx, tx, item.IngredientID, delta); err != nil {
				return err
			}
		}
		// An edit that adds stock is still a restock as far as reorder
		// dedupe is concerned.
		if in.Quantity.GreaterThan(oldQuantity) {
			if err := s.clearReorderFlag(ctx, tx, item.IngredientID); err != nil {
				return err
			}
		}

		return s.recomputeTotal(ctx, tx, item.SupplyID)
	})
	if err != nil {
		return nil, err
	}

	// A shrunk delivery can push the ingredient back under its threshold.
	s.notifier.CheckReorder(ctx, []uint{item.IngredientID})

	return &item, nil
}

// DeleteItem removes a delivery line and rolls its stock effect back.
func (s *Service) DeleteItem(ctx context.Context, itemID uint) error {
	var item models.SupplyItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to find supply item: %w", err)
		}

		// Conditional on the quantity read above: a concurrent delete
		// cannot roll the ledger back twice, and a concurrent edit makes
		// this match zero rows so the stale quantity is never rolled back.
		res := tx.Where("id = ? AND quantity = ?", itemID, item.Quantity).Delete(&models.SupplyItem{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete supply item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}

		if _, err := s.ledger.Adjust(ctx, tx, item.IngredientID, item.Quantity.Neg()); err != nil {
			return err
		}

		return s.recomputeTotal(ctx, tx, item.SupplyID)
	})
	if err != nil {
		return err
	}

	s.notifier.CheckReorder(ctx, []uint{item.IngredientID})
	return nil
}

func (s *Service) clearReorderFlag(ctx context.Context, tx *gorm.DB, ingredientID uint) error {
	if err := tx.WithContext(ctx).Model(&models.Ingredient{}).
		Where("id = ?", ingredientID).
		Update("reorder_sent", false).Error; err != nil {
		return fmt.Errorf("failed to clear reorder flag: %w", err)
	}
	return nil
}

// recomputeTotal keeps the parent invoice total equal to the sum of its
// lines.
func (s *Service) recomputeTotal(ctx context.Context, tx *gorm.DB, supplyID uint) error {
	var total decimal.NullDecimal
	if err := tx.WithContext(ctx).Model(&models.SupplyItem{}).
		Where("supply_id = ?", supplyID).
		Select("SUM(cost)").
		Scan(&total).Error; err != nil {
		return fmt.Errorf("failed to total supply: %w", err)
	}
	sum := decimal.Zero
	if total.Valid {
		sum = total.Decimal
	}
	if err := tx.WithContext(ctx).Model(&models.Supply{}).
		Where("id = ?", supplyID).
		Update("total_cost", sum).Error; err != nil {
		return fmt.Errorf("failed to update supply total: %w", err)
	}
	return nil
}
