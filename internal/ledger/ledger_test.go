package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

func setupLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Supplier{}, &models.Ingredient{}))
	return New(zap.NewNop(), db), db
}

func seedIngredient(t *testing.T, db *gorm.DB, name, amount string) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{
		Name:   name,
		Unit:   "ml",
		Amount: decimal.RequireFromString(amount),
	}
	require.NoError(t, db.Create(ing).Error)
	return ing
}

func TestAdjustReceiptThenDeduction(t *testing.T) {
	ldg, db := setupLedger(t)
	ing := seedIngredient(t, db, "Milk", "0")
	ctx := context.Background()

	got, err := ldg.Adjust(ctx, db, ing.ID, decimal.RequireFromString("1000"))
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1000")), "got %s", got.Amount)

	got, err = ldg.Adjust(ctx, db, ing.ID, decimal.RequireFromString("-400"))
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("600")), "got %s", got.Amount)

	amount, err := ldg.Peek(ctx, ing.ID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("600")))
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	ldg, db := setupLedger(t)
	ing := seedIngredient(t, db, "Milk", "100")
	ctx := context.Background()

	_, err := ldg.Adjust(ctx, db, ing.ID, decimal.RequireFromString("-200"))
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Milk", insufficient.Ingredient)

	// The floor rejection leaves stock untouched.
	amount, err := ldg.Peek(ctx, ing.ID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("100")))
}

func TestAdjustToExactlyZero(t *testing.T) {
	ldg, db := setupLedger(t)
	ing := seedIngredient(t, db, "Milk", "250")

	got, err := ldg.Adjust(context.Background(), db, ing.ID, decimal.RequireFromString("-250"))
	require.NoError(t, err)
	assert.True(t, got.Amount.IsZero())
}

func TestAdjustUnknownIngredient(t *testing.T) {
	ldg, db := setupLedger(t)

	_, err := ldg.Adjust(context.Background(), db, 999, decimal.RequireFromString("-1"))
	assert.True(t, errors.Is(err, ErrIngredientNotFound))

	_, err = ldg.Peek(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrIngredientNotFound))
}

func TestSequentialDeductionsNeverGoNegative(t *testing.T) {
	ldg, db := setupLedger(t)
	ing := seedIngredient(t, db, "Beans", "50")
	ctx := context.Background()

	var failures int
	for i := 0; i < 10; i++ {
		if _, err := ldg.Adjust(ctx, db, ing.ID, decimal.RequireFromString("-18")); err != nil {
			failures++
		}
	}

	amount, err := ldg.Peek(ctx, ing.ID)
	require.NoError(t, err)
	assert.False(t, amount.IsNegative(), "amount went negative: %s", amount)
	assert.True(t, amount.Equal(decimal.RequireFromString("14")), "got %s", amount)
	assert.Equal(t, 8, failures)
}
