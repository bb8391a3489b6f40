// Package notifier turns post-deduction low-stock conditions into
// purchase requests for suppliers. Delivery is fire-and-forget: a failed
// hand-off is logged and retried on the next deduction below threshold,
// never surfaced to the order that triggered it.
package notifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

// PurchaseRequest is the payload handed to a delivery channel when an
// ingredient runs low.
type PurchaseRequest struct {
	SupplierName    string          `json:"supplier_name"`
	SupplierContact string          `json:"supplier_contact"`
	IngredientName  string          `json:"ingredient_name"`
	Unit            string          `json:"unit"`
	CurrentAmount   decimal.Decimal `json:"current_amount"`
	MinLimit        decimal.Decimal `json:"min_limit"`
	RestockAmount   decimal.Decimal `json:"restock_amount"`
	Deadline        time.Time       `json:"deadline"`
}

// Sink is a delivery channel for purchase requests. Email, message queue
// and log backends are interchangeable.
type Sink interface {
	Notify(ctx context.Context, req PurchaseRequest) error
}

// deliveryWindow is how long a supplier gets to fulfil a reorder.
const deliveryWindow = 24 * time.Hour

// Service evaluates the reorder trigger and dedupes notifications via the
// ingredient's reorder_sent flag.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	sink   Sink
}

func NewService(logger *zap.Logger, db *gorm.DB, sink Sink) *Service {
	return &Service{logger: logger, db: db, sink: sink}
}

// CheckReorder evaluates the low-stock trigger for each ingredient after
// its deduction has committed. Trigger: amount <= min_limit, a supplier
// is set and a threshold is configured. The reorder_sent flag is claimed
// with a conditional update before delivery, so two checks racing past
// the threshold cannot both send; a failed hand-off releases the claim
// and the next deduction below threshold retries.
//
// This runs outside the fulfillment transaction on purpose: a broken
// notification channel must not roll back a sold coffee.
func (s *Service) CheckReorder(ctx context.Context, ingredientIDs []uint) {
	for _, id := range ingredientIDs {
		var ing models.Ingredient
		if err := s.db.WithContext(ctx).Preload("Supplier").First(&ing, id).Error; err != nil {
			s.logger.Warn("reorder check: failed to load ingredient", zap.Uint("ingredient_id", id), zap.Error(err))
			continue
		}

		if ing.Supplier == nil || !ing.MinLimit.IsPositive() {
			continue
		}
		if ing.Amount.GreaterThan(ing.MinLimit) {
			continue
		}

		res := s.db.WithContext(ctx).Model(&models.Ingredient{}).
			Where("id = ? AND reorder_sent = ?", ing.ID, false).
			Update("reorder_sent", true)
		if res.Error != nil {
			s.logger.Warn("failed to claim reorder flag", zap.String("ingredient", ing.Name), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			// A reorder is already in flight.
			continue
		}

		req := PurchaseRequest{
			SupplierName:    ing.Supplier.Name,
			SupplierContact: ing.Supplier.ContactInfo,
			IngredientName:  ing.Name,
			Unit:            ing.Unit,
			CurrentAmount:   ing.Amount,
			MinLimit:        ing.MinLimit,
			RestockAmount:   ing.RestockAmount,
			Deadline:        time.Now().Add(deliveryWindow),
		}

		if err := s.sink.Notify(ctx, req); err != nil {
			s.logger.Warn("reorder notification failed",
				zap.String("ingredient", ing.Name),
				zap.String("supplier", ing.Supplier.Name),
				zap.Error(err))
			if err := s.db.WithContext(ctx).Model(&models.Ingredient{}).
				Where("id = ?", ing.ID).
				Update("reorder_sent", false).Error; err != nil {
				s.logger.Warn("failed to release reorder flag", zap.String("ingredient", ing.Name), zap.Error(err))
			}
			continue
		}

		s.logger.Info("reorder sent",
			zap.String("ingredient", ing.Name),
			zap.String("supplier", ing.Supplier.Name),
			zap.String("amount", ing.Amount.String()),
			zap.String("min_limit", ing.MinLimit.String()))
	}
}
