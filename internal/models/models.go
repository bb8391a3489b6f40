package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==========================================
// ENUMS
// ==========================================

// Size of a drink. Ingredient consumption and price scale with size, but
// with two different multiplier tables: a large cup costs 25% more while
// using 30% more ingredients. The tables are intentionally distinct.
type Size string

const (
	SizeSmall  Size = "S"
	SizeMedium Size = "M"
	SizeLarge  Size = "L"
)

var (
	ingredientMultipliers = map[Size]decimal.Decimal{
		SizeSmall:  decimal.RequireFromString("0.7"),
		SizeMedium: decimal.RequireFromString("1.0"),
		SizeLarge:  decimal.RequireFromString("1.3"),
	}
	priceMultipliers = map[Size]decimal.Decimal{
		SizeSmall:  decimal.RequireFromString("0.8"),
		SizeMedium: decimal.RequireFromString("1.0"),
		SizeLarge:  decimal.RequireFromString("1.25"),
	}
)

// IngredientMultiplier scales recipe quantities for this size.
// Unknown sizes fall back to the medium multiplier.
func (s Size) IngredientMultiplier() decimal.Decimal {
	if m, ok := ingredientMultipliers[s]; ok {
		return m
	}
	return ingredientMultipliers[SizeMedium]
}

// PriceMultiplier scales the menu item's base (medium) price for this size.
func (s Size) PriceMultiplier() decimal.Decimal {
	if m, ok := priceMultipliers[s]; ok {
		return m
	}
	return priceMultipliers[SizeMedium]
}

func (s Size) Valid() bool {
	_, ok := ingredientMultipliers[s]
	return ok
}

// ModifierType is a closed set of add-on kinds. Substitution and size
// scaling rules hang off the type, not off string comparisons scattered
// around the order flow.
type ModifierType string

const (
	ModifierSyrup ModifierType = "syrup"
	ModifierMilk  ModifierType = "milk"
	ModifierOther ModifierType = "other"
	ModifierIce   ModifierType = "ice"
)

// ScalesWithSize reports whether the modifier's ingredient consumption
// follows the drink size. A large cup needs more oat milk; it does not
// need more caramel syrup.
func (t ModifierType) ScalesWithSize() bool {
	return t == ModifierMilk
}

// Substitutes reports whether choosing this modifier replaces the milk
// ingredients in the item's recipe instead of adding on top of them.
func (t ModifierType) Substitutes() bool {
	return t == ModifierMilk
}

func (t ModifierType) Valid() bool {
	switch t {
	case ModifierSyrup, ModifierMilk, ModifierOther, ModifierIce:
		return true
	}
	return false
}

// OrderStatus lifecycle: pending -> preparing -> ready -> completed.
// A non-completed order may be deleted at any point (cancellation).
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
)

// CanTransitionTo reports whether the status pipeline allows moving to
// next. Completion is allowed from any non-completed state so the bar can
// hand a drink over without walking every intermediate step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == OrderCompleted {
		return false
	}
	switch next {
	case OrderPreparing:
		return s == OrderPending
	case OrderReady:
		return s == OrderPending || s == OrderPreparing
	case OrderCompleted:
		return true
	}
	return false
}

// ==========================================
// INVENTORY & SUPPLIERS
// ==========================================

type Supplier struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	ContactInfo string `gorm:"not null" json:"contact_info"`
}

// Ingredient is the ledger row for one tracked stock position. Amount is
// the single source of truth for "how much do we have" and must never go
// negative; every mutation goes through the ledger's Adjust.
type Ingredient struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	Name   string          `gorm:"not null;unique" json:"name"`
	Unit   string          `gorm:"not null" json:"unit"`
	Amount decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"amount"`

	// IsMilk marks the ingredient as replaceable by an alternative-milk
	// modifier.
	IsMilk bool `gorm:"not null;default:false" json:"is_milk"`

	MinLimit      decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"min_limit"`
	RestockAmount decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"restock_amount"`

	// ReorderSent dedupes low-stock purchase requests: set when a request
	// is handed to the supplier channel, cleared by the next delivery.
	ReorderSent bool `gorm:"not null;default:false" json:"reorder_sent"`

	SupplierID *uint     `json:"supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Supply is one incoming delivery. TotalCost is always the sum of its
// items' costs and is recomputed whenever an item changes.
type Supply struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Reference  string          `gorm:"not null;unique" json:"reference"`
	SupplierID uint            `gorm:"not null" json:"supplier_id"`
	Supplier   Supplier        `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	TotalCost  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_cost"`
	Items      []SupplyItem    `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SupplyItem is one line of a delivery. UnitPrice and Cost are both
// persisted; the intake service derives the missing one on the way in
// (unit price wins when both are supplied).
type SupplyItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SupplyID     uint            `gorm:"not null" json:"supply_id"`
	IngredientID uint            `gorm:"not null" json:"ingredient_id"`
	Ingredient   Ingredient      `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Cost         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost"`
}

// ==========================================
// MENU & RECIPES
// ==========================================

type MenuItem struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Name     string          `gorm:"not null;unique" json:"name"`
	Price    decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"price"` // base price at medium size
	Category string          `gorm:"type:varchar(20);not null;default:'coffee'" json:"category"`
	HasSizes bool            `gorm:"not null;default:true" json:"has_sizes"`
	Recipes  []Recipe        `gorm:"constraint:OnDelete:CASCADE" json:"recipes,omitempty"`
}

// Recipe binds a menu item to one ingredient with the quantity needed for
// a standard (medium) serving.
type Recipe struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	MenuItemID     uint            `gorm:"not null" json:"menu_item_id"`
	IngredientID   uint            `gorm:"not null" json:"ingredient_id"`
	Ingredient     Ingredient      `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
	QuantityNeeded decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_needed"`
}

// Modifier is a paid add-on. IngredientID may be nil for modifiers that
// consume nothing ("no ice").
type Modifier struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Price          decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"price"`
	Type           ModifierType    `gorm:"type:varchar(20);not null;default:'syrup'" json:"type"`
	IngredientID   *uint           `json:"ingredient_id"`
	Ingredient     *Ingredient     `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
	QuantityNeeded decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"quantity_needed"`
}

// ==========================================
// ORDERS & SHIFTS
// ==========================================

type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Number      string          `gorm:"not null;unique" json:"number"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	IsCompleted bool            `gorm:"not null;default:false" json:"is_completed"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_price"`
	ShiftID     uint            `gorm:"not null" json:"shift_id"`
	Items       []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem freezes the price actually charged at sale time; later menu
// price changes never rewrite history.
type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"not null" json:"order_id"`
	MenuItemID uint            `gorm:"not null" json:"menu_item_id"`
	MenuItem   MenuItem        `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty"`
	Quantity   int             `gorm:"not null;default:1" json:"quantity"`
	Size       Size            `gorm:"type:varchar(1);not null;default:'M'" json:"size"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Modifiers  []Modifier      `gorm:"many2many:order_item_modifiers" json:"modifiers,omitempty"`
}

// Shift is an accounting period. At most one shift is active at any time;
// a partial unique index on is_active backs the invariant at the store
// level. Totals are computed once, at close.
type Shift struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	IsActive   bool            `gorm:"not null;default:true" json:"is_active"`
	OpenedAt   time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt   *time.Time      `json:"closed_at"`
	TotalSales decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_sales"`
	OrderCount int             `gorm:"not null;default:0" json:"order_count"`
}

// ==========================================
// AUTH & USERS
// ==========================================

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
	RoleBarista Role = "barista"
)

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"not null;unique" json:"username"`

	// Stored as a bcrypt hash; json:"-" keeps it out of responses.
	Password string `gorm:"column:password_hash;not null" json:"-"`

	Role Role `gorm:"type:varchar(20);not null" json:"role"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}
