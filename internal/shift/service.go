// Package shift manages the accounting periods that bound orders. At
// most one shift is open at a time; sales figures are rolled up once, at
// close, from the shift's completed orders.
package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

var (
	ErrShiftAlreadyOpen = errors.New("a shift is already open")
	ErrNoActiveShift    = errors.New("no active shift")
)

type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

func NewService(logger *zap.Logger, db *gorm.DB) *Service {
	return &Service{logger: logger, db: db}
}

// Active returns the currently open shift. tx may be an open transaction
// when the caller needs the read inside its own boundary, or nil.
func (s *Service) Active(ctx context.Context, tx *gorm.DB) (*models.Shift, error) {
	if tx == nil {
		tx = s.db
	}
	var sh models.Shift
	if err := tx.WithContext(ctx).Where("is_active = ?", true).First(&sh).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveShift
		}
		return nil, fmt.Errorf("failed to find active shift: %w", err)
	}
	return &sh, nil
}

// Open starts a new shift. The check-then-insert runs in a transaction
// and the partial unique index on is_active catches whatever races past
// the check.
func (s *Service) Open(ctx context.Context) (*models.Shift, error) {
	sh := &models.Shift{IsActive: true, OpenedAt: time.Now()}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Shift{}).Where("is_active = ?", true).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check active shift: %w", err)
		}
		if count > 0 {
			return ErrShiftAlreadyOpen
		}
		if err := tx.Create(sh).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrShiftAlreadyOpen
			}
			return fmt.Errorf("failed to open shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shift opened", zap.Uint("shift_id", sh.ID))
	return sh, nil
}

// Close ends the active shift and rolls up total sales and order count
// over exactly its completed orders.
func (s *Service) Close(ctx context.Context) (*models.Shift, error) {
	var sh *models.Shift

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sh, err = s.Active(ctx, tx)
		if err != nil {
			return err
		}

		var rollup struct {
			TotalSales decimal.NullDecimal
			OrderCount int
		}
		if err := tx.Model(&models.Order{}).
			Where("shift_id = ? AND status = ?", sh.ID, models.OrderCompleted).
			Select("SUM(total_price) AS total_sales, COUNT(*) AS order_count").
			Scan(&rollup).Error; err != nil {
			return fmt.Errorf("failed to roll up shift sales: %w", err)
		}

		now := time.Now()
		sh.TotalSales = decimal.Zero
		if rollup.TotalSales.Valid {
			sh.TotalSales = rollup.TotalSales.Decimal
		}
		sh.OrderCount = rollup.OrderCount
		sh.ClosedAt = &now
		sh.IsActive = false

		if err := tx.Save(sh).Error; err != nil {
			return fmt.Errorf("failed to close shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shift closed",
		zap.Uint("shift_id", sh.ID),
		zap.String("total_sales", sh.TotalSales.String()),
		zap.Int("order_count", sh.OrderCount))

	return sh, nil
}

// Closed lists finished shifts newest-first, for the sales report.
func (s *Service) Closed(ctx context.Context) ([]models.Shift, error) {
	var shifts []models.Shift
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", false).
		Order("closed_at DESC").
		Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}
