package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

// ErrIngredientNotFound is returned when an adjustment targets an unknown
// ingredient.
var ErrIngredientNotFound = errors.New("ingredient not found")

// InsufficientStockError reports which ingredient blocked a deduction.
type InsufficientStockError struct {
	Ingredient string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s", e.Ingredient)
}

// Ledger is the authoritative current-stock record. All stock mutation
// funnels through Adjust so the non-negative invariant holds no matter
// which collaborator is writing.
type Ledger struct {
	logger *zap.Logger
	db     *gorm.DB
}

// New creates a Ledger over db.
func New(logger *zap.Logger, db *gorm.DB) *Ledger {
	return &Ledger{logger: logger, db: db}
}

// Adjust atomically changes an ingredient's stock by delta (positive for
// receipts, negative for deductions) and returns the updated row.
//
// The mutation is a single conditional UPDATE with a non-negative floor:
// the check that the resulting amount stays >= 0 and the write happen in
// one storage operation, so two fulfillments racing for the last unit
// cannot both win. Callers running a multi-ingredient commit are expected
// to have verified sufficiency up front; a floor rejection here still
// surfaces as InsufficientStockError and rolls the caller's transaction
// back.
//
// tx must be the caller's open transaction (or the bare DB for standalone
// adjustments); Adjust never commits.
func (l *Ledger) Adjust(ctx context.Context, tx *gorm.DB, ingredientID uint, delta decimal.Decimal) (*models.Ingredient, error) {
	res := tx.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("id = ? AND amount + ? >= 0", ingredientID, delta).
		Update("amount", gorm.Expr("amount + ?", delta))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var ing models.Ingredient
		if err := tx.WithContext(ctx).First(&ing, ingredientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrIngredientNotFound
			}
			return nil, fmt.Errorf("failed to find ingredient: %w", err)
		}
		return nil, &InsufficientStockError{Ingredient: ing.Name}
	}

	var ing models.Ingredient
	if err := tx.WithContext(ctx).First(&ing, ingredientID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload ingredient: %w", err)
	}

	l.logger.Debug("stock adjusted",
		zap.Uint("ingredient_id", ingredientID),
		zap.String("delta", delta.String()),
		zap.String("amount", ing.Amount.String()))

	return &ing, nil
}

// Peek returns an ingredient's current amount without mutation.
func (l *Ledger) Peek(ctx context.Context, ingredientID uint) (decimal.Decimal, error) {
	var ing models.Ingredient
	if err := l.db.WithContext(ctx).First(&ing, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrIngredientNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to find ingredient: %w", err)
	}
	return ing.Amount, nil
}
