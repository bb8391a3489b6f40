package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/ledger"
	"github.com/warspaseman/coffee-crm/internal/models"
	"github.com/warspaseman/coffee-crm/internal/notifier"
	"github.com/warspaseman/coffee-crm/internal/shift"
)

// recordingSink captures purchase requests instead of delivering them.
type recordingSink struct {
	mu       sync.Mutex
	requests []notifier.PurchaseRequest
	failWith error
}

func (s *recordingSink) Notify(_ context.Context, req notifier.PurchaseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.requests = append(s.requests, req)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type testEnv struct {
	db     *gorm.DB
	orders *Service
	shifts *shift.Service
	sink   *recordingSink
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Supplier{}, &models.Ingredient{},
		&models.Supply{}, &models.SupplyItem{},
		&models.MenuItem{}, &models.Recipe{}, &models.Modifier{},
		&models.Shift{}, &models.Order{}, &models.OrderItem{},
	))

	logger := zap.NewNop()
	ldg := ledger.New(logger, db)
	sink := &recordingSink{}
	reorders := notifier.NewService(logger, db, sink)
	shifts := shift.NewService(logger, db)
	orders := NewService(logger, db, ldg, reorders, shifts)

	return &testEnv{db: db, orders: orders, shifts: shifts, sink: sink}
}

func (e *testEnv) ingredient(t *testing.T, name, amount, minLimit string, isMilk bool, supplierID *uint) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{
		Name:       name,
		Unit:       "ml",
		Amount:     dec(amount),
		MinLimit:   dec(minLimit),
		IsMilk:     isMilk,
		SupplierID: supplierID,
	}
	require.NoError(t, e.db.Create(ing).Error)
	return ing
}

func (e *testEnv) menuItem(t *testing.T, name, price string, recipe map[uint]string) *models.MenuItem {
	t.Helper()
	mi := &models.MenuItem{Name: name, Price: dec(price), Category: "coffee", HasSizes: true}
	require.NoError(t, e.db.Create(mi).Error)
	for ingID, qty := range recipe {
		require.NoError(t, e.db.Create(&models.Recipe{
			MenuItemID:     mi.ID,
			IngredientID:   ingID,
			QuantityNeeded: dec(qty),
		}).Error)
	}
	return mi
}

func (e *testEnv) supplier(t *testing.T) *models.Supplier {
	t.Helper()
	sup := &models.Supplier{Name: "Metro Dairy", ContactInfo: "orders@metrodairy.example"}
	require.NoError(t, e.db.Create(sup).Error)
	return sup
}

func (e *testEnv) amount(t *testing.T, ingredientID uint) decimal.Decimal {
	t.Helper()
	var ing models.Ingredient
	require.NoError(t, e.db.First(&ing, ingredientID).Error)
	return ing.Amount
}

// TestLatteRunScenario walks the canonical register day: two lattes sell,
// the second one crosses the milk threshold and fires exactly one
// reorder, the third fails with no stock movement.
func TestLatteRunScenario(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	sup := env.supplier(t)
	milk := env.ingredient(t, "Milk", "500", "200", true, &sup.ID)
	beans := env.ingredient(t, "Espresso Beans", "1000", "0", false, nil)
	latte := env.menuItem(t, "Latte", "1500", map[uint]string{milk.ID: "200", beans.ID: "18"})

	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	// First latte: 500 -> 300, above the 200 threshold, no reorder.
	o1, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Size: models.SizeMedium, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, env.orders.CompleteOrder(ctx, o1.ID))
	assert.True(t, env.amount(t, milk.ID).Equal(dec("300")))
	assert.Equal(t, 0, env.sink.count())

	// Second latte: 300 -> 100 <= 200, exactly one reorder fires.
	o2, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Size: models.SizeMedium, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, env.orders.CompleteOrder(ctx, o2.ID))
	assert.True(t, env.amount(t, milk.ID).Equal(dec("100")))
	require.Equal(t, 1, env.sink.count())
	assert.Equal(t, "Milk", env.sink.requests[0].IngredientName)

	var reloaded models.Ingredient
	require.NoError(t, env.db.First(&reloaded, milk.ID).Error)
	assert.True(t, reloaded.ReorderSent)

	// Third latte: not enough milk, order stays pending, stock untouched,
	// no second notification.
	o3, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Size: models.SizeMedium, Quantity: 1}})
	require.NoError(t, err)
	err = env.orders.CompleteOrder(ctx, o3.ID)
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Milk", insufficient.Ingredient)

	assert.True(t, env.amount(t, milk.ID).Equal(dec("100")))
	assert.Equal(t, 1, env.sink.count())

	var o3Reloaded models.Order
	require.NoError(t, env.db.First(&o3Reloaded, o3.ID).Error)
	assert.Equal(t, models.OrderPending, o3Reloaded.Status)
	assert.False(t, o3Reloaded.IsCompleted)
}

func TestCompleteOrderAllOrNothing(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	milk := env.ingredient(t, "Milk", "1000", "0", true, nil)
	cocoa := env.ingredient(t, "Cocoa Powder", "10", "0", false, nil)
	hotChoc := env.menuItem(t, "Hot Chocolate", "1400", map[uint]string{milk.ID: "220", cocoa.ID: "30"})

	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	order, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: hotChoc.ID, Size: models.SizeMedium, Quantity: 1}})
	require.NoError(t, err)

	err = env.orders.CompleteOrder(ctx, order.ID)
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Cocoa Powder", insufficient.Ingredient)

	// The milk was sufficient but must not have been touched either.
	assert.True(t, env.amount(t, milk.ID).Equal(dec("1000")))
	assert.True(t, env.amount(t, cocoa.ID).Equal(dec("10")))
}

func TestCompleteOrderMilkSubstitution(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	milk := env.ingredient(t, "Milk", "500", "0", true, nil)
	oat := env.ingredient(t, "Oat Milk", "3000", "0", true, nil)
	beans := env.ingredient(t, "Espresso Beans", "1000", "0", false, nil)
	latte := env.menuItem(t, "Latte", "1500", map[uint]string{milk.ID: "200", beans.ID: "18"})

	oatMod := &models.Modifier{
		Name:           "Oat Milk",
		Price:          dec("300"),
		Type:           models.ModifierMilk,
		IngredientID:   &oat.ID,
		QuantityNeeded: dec("200"),
	}
	require.NoError(t, env.db.Create(oatMod).Error)

	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	order, err := env.orders.CreateOrder(ctx, []LineInput{{
		MenuItemID:  latte.ID,
		Size:        models.SizeLarge,
		Quantity:    1,
		ModifierIDs: []uint{oatMod.ID},
	}})
	require.NoError(t, err)
	require.NoError(t, env.orders.CompleteOrder(ctx, order.ID))

	// Recipe milk skipped entirely; oat milk deducted, scaled for L.
	assert.True(t, env.amount(t, milk.ID).Equal(dec("500")))
	assert.True(t, env.amount(t, oat.ID).Equal(dec("2740")), "got %s", env.amount(t, oat.ID))
	assert.True(t, env.amount(t, beans.ID).Equal(dec("976.6")), "got %s", env.amount(t, beans.ID))
}

func TestCompleteOrderIdempotent(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	milk := env.ingredient(t, "Milk", "500", "0", true, nil)
	latte := env.menuItem(t, "Latte", "1500", map[uint]string{milk.ID: "200"})

	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	order, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Size: models.SizeMedium, Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, env.orders.CompleteOrder(ctx, order.ID))
	require.NoError(t, env.orders.CompleteOrder(ctx, order.ID), "double-complete is a no-op")

	assert.True(t, env.amount(t, milk.ID).Equal(dec("300")), "deducted exactly once: %s", env.amount(t, milk.ID))
}

func TestCreateOrderPricingFrozenAtSaleTime(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	latte := env.menuItem(t, "Latte", "1500", nil)
	syrup := &models.Modifier{Name: "Caramel Syrup", Price: dec("200"), Type: models.ModifierSyrup}
	require.NoError(t, env.db.Create(syrup).Error)

	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	// Large latte with syrup: 1500 * 1.25 + 200 = 2075.
	order, err := env.orders.CreateOrder(ctx, []LineInput{{
		MenuItemID:  latte.ID,
		Size:        models.SizeLarge,
		Quantity:    2,
		ModifierIDs: []uint{syrup.ID},
	}})
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(dec("4150")), "got %s", order.TotalPrice)

	// A catalog price change must not reprice the sold order.
	require.NoError(t, env.db.Model(&models.MenuItem{}).Where("id = ?", latte.ID).Update("price", dec("9999")).Error)

	reloaded, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.TotalPrice.Equal(dec("4150")))
	require.Len(t, reloaded.Items, 1)
	assert.True(t, reloaded.Items[0].Price.Equal(dec("4150")))
}

func TestCreateOrderRequiresActiveShift(t *testing.T) {
	env := setupEnv(t)
	latte := env.menuItem(t, "Latte", "1500", nil)

	_, err := env.orders.CreateOrder(context.Background(), []LineInput{{MenuItemID: latte.ID, Quantity: 1}})
	assert.True(t, errors.Is(err, shift.ErrNoActiveShift))
}

func TestCreateOrderValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	_, err = env.orders.CreateOrder(ctx, nil)
	assert.True(t, errors.Is(err, ErrEmptyOrder))

	_, err = env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: 12345, Quantity: 1}})
	assert.True(t, errors.Is(err, ErrMenuItemNotFound))
}

func TestStatusPipeline(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	latte := env.menuItem(t, "Latte", "1500", nil)
	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	order, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, env.orders.UpdateStatus(ctx, order.ID, models.OrderPreparing))
	require.NoError(t, env.orders.UpdateStatus(ctx, order.ID, models.OrderReady))

	// No going backwards.
	err = env.orders.UpdateStatus(ctx, order.ID, models.OrderPreparing)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, env.orders.UpdateStatus(ctx, order.ID, models.OrderCompleted))

	var reloaded models.Order
	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderCompleted, reloaded.Status)
	assert.True(t, reloaded.IsCompleted)
}

func TestCancelOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	milk := env.ingredient(t, "Milk", "500", "0", true, nil)
	latte := env.menuItem(t, "Latte", "1500", map[uint]string{milk.ID: "200"})
	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	order, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, env.orders.CancelOrder(ctx, order.ID))

	_, err = env.orders.Get(ctx, order.ID)
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	var itemCount int64
	env.db.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&itemCount)
	assert.Zero(t, itemCount, "order items cascade with the order")

	// A completed order cannot be cancelled.
	sold, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, env.orders.CompleteOrder(ctx, sold.ID))
	err = env.orders.CancelOrder(ctx, sold.ID)
	assert.True(t, errors.Is(err, ErrOrderCompleted))
}

func TestQueueListsOpenOrdersOldestFirst(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	latte := env.menuItem(t, "Latte", "1500", nil)
	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	first, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Quantity: 1}})
	require.NoError(t, err)
	second, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, env.orders.CompleteOrder(ctx, first.ID))

	queue, err := env.orders.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1, "completed orders leave the queue")
	assert.Equal(t, second.ID, queue[0].ID)
}

// TestNotifierFailureDoesNotFailFulfillment pins down the consistency
// boundary: a dead notification channel must not roll back a sale.
func TestNotifierFailureDoesNotFailFulfillment(t *testing.T) {
	env := setupEnv(t)
	env.sink.failWith = errors.New("smtp is down")
	ctx := context.Background()

	sup := env.supplier(t)
	milk := env.ingredient(t, "Milk", "210", "200", true, &sup.ID)
	latte := env.menuItem(t, "Latte", "1500", map[uint]string{milk.ID: "200"})

	_, err := env.shifts.Open(ctx)
	require.NoError(t, err)

	order, err := env.orders.CreateOrder(ctx, []LineInput{{MenuItemID: latte.ID, Size: models.SizeMedium, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, env.orders.CompleteOrder(ctx, order.ID), "fulfillment must survive a sink failure")

	assert.True(t, env.amount(t, milk.ID).Equal(dec("10")))

	// The dedupe flag stays unset so the next deduction retries delivery.
	var reloaded models.Ingredient
	require.NoError(t, env.db.First(&reloaded, milk.ID).Error)
	assert.False(t, reloaded.ReorderSent)
}
