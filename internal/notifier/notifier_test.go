package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

type captureSink struct {
	requests []PurchaseRequest
	failWith error
}

func (s *captureSink) Notify(_ context.Context, req PurchaseRequest) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.requests = append(s.requests, req)
	return nil
}

func setupNotifier(t *testing.T) (*Service, *captureSink, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Supplier{}, &models.Ingredient{}))

	sink := &captureSink{}
	return NewService(zap.NewNop(), db, sink), sink, db
}

func seedLowMilk(t *testing.T, db *gorm.DB) *models.Ingredient {
	t.Helper()
	sup := &models.Supplier{Name: "Metro Dairy", ContactInfo: "orders@metrodairy.example"}
	require.NoError(t, db.Create(sup).Error)
	ing := &models.Ingredient{
		Name:          "Milk",
		Unit:          "ml",
		Amount:        decimal.RequireFromString("150"),
		MinLimit:      decimal.RequireFromString("200"),
		RestockAmount: decimal.RequireFromString("5000"),
		IsMilk:        true,
		SupplierID:    &sup.ID,
	}
	require.NoError(t, db.Create(ing).Error)
	return ing
}

func TestCheckReorderFiresOnceBelowThreshold(t *testing.T) {
	svc, sink, db := setupNotifier(t)
	ctx := context.Background()
	milk := seedLowMilk(t, db)

	svc.CheckReorder(ctx, []uint{milk.ID})

	require.Len(t, sink.requests, 1)
	req := sink.requests[0]
	assert.Equal(t, "Milk", req.IngredientName)
	assert.Equal(t, "Metro Dairy", req.SupplierName)
	assert.Equal(t, "orders@metrodairy.example", req.SupplierContact)
	assert.True(t, req.CurrentAmount.Equal(decimal.RequireFromString("150")))
	assert.True(t, req.RestockAmount.Equal(decimal.RequireFromString("5000")))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), req.Deadline, time.Minute)

	var reloaded models.Ingredient
	require.NoError(t, db.First(&reloaded, milk.ID).Error)
	assert.True(t, reloaded.ReorderSent)

	// The flag dedupes: until a restock clears it, further checks stay
	// quiet no matter how low the stock drops.
	require.NoError(t, db.Model(&reloaded).Update("amount", decimal.Zero).Error)
	svc.CheckReorder(ctx, []uint{milk.ID})
	assert.Len(t, sink.requests, 1)
}

func TestCheckReorderSkipsHealthyStock(t *testing.T) {
	svc, sink, db := setupNotifier(t)
	ctx := context.Background()
	milk := seedLowMilk(t, db)
	require.NoError(t, db.Model(milk).Update("amount", decimal.RequireFromString("201")).Error)

	svc.CheckReorder(ctx, []uint{milk.ID})
	assert.Empty(t, sink.requests)
}

func TestCheckReorderFiresAtExactThreshold(t *testing.T) {
	svc, sink, db := setupNotifier(t)
	ctx := context.Background()
	milk := seedLowMilk(t, db)
	require.NoError(t, db.Model(milk).Update("amount", decimal.RequireFromString("200")).Error)

	svc.CheckReorder(ctx, []uint{milk.ID})
	assert.Len(t, sink.requests, 1)
}

func TestCheckReorderSkipsUnmanagedIngredients(t *testing.T) {
	svc, sink, db := setupNotifier(t)
	ctx := context.Background()

	// No supplier bound.
	ice := &models.Ingredient{
		Name:     "Ice",
		Unit:     "g",
		Amount:   decimal.Zero,
		MinLimit: decimal.RequireFromString("100"),
	}
	require.NoError(t, db.Create(ice).Error)

	// No threshold configured.
	sup := &models.Supplier{Name: "Roastery", ContactInfo: "beans@roastery.example"}
	require.NoError(t, db.Create(sup).Error)
	beans := &models.Ingredient{
		Name:       "Espresso Beans",
		Unit:       "g",
		Amount:     decimal.Zero,
		SupplierID: &sup.ID,
	}
	require.NoError(t, db.Create(beans).Error)

	svc.CheckReorder(ctx, []uint{ice.ID, beans.ID, 99999})
	assert.Empty(t, sink.requests)
}

func TestCheckReorderRetriesAfterSinkFailure(t *testing.T) {
	svc, sink, db := setupNotifier(t)
	ctx := context.Background()
	milk := seedLowMilk(t, db)

	sink.failWith = errors.New("broker unreachable")
	svc.CheckReorder(ctx, []uint{milk.ID})
	assert.Empty(t, sink.requests)

	// The flag stays unset on failure so the condition re-fires.
	var reloaded models.Ingredient
	require.NoError(t, db.First(&reloaded, milk.ID).Error)
	assert.False(t, reloaded.ReorderSent)

	sink.failWith = nil
	svc.CheckReorder(ctx, []uint{milk.ID})
	assert.Len(t, sink.requests, 1)
}
