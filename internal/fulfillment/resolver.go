package fulfillment

import (
	"github.com/shopspring/decimal"

	"github.com/warspaseman/coffee-crm/internal/models"
)

// ResolveDeductions computes the ingredient quantities a set of order
// items consumes, merged into one ingredient -> total-need map. An order
// needing the same ingredient through two paths (two lattes, or a recipe
// plus a syrup) is checked and deducted exactly once per unit of total
// need.
//
// Rules:
//   - recipe quantities scale with the drink size (0.7 / 1.0 / 1.3);
//   - choosing an alternative-milk modifier skips the recipe's milk lines
//     entirely, the modifier's own ingredient covers the milk need;
//   - milk-type modifier quantities also scale with size, every other
//     modifier type consumes a fixed amount per unit sold;
//   - modifiers without an ingredient ("no ice") consume nothing.
//
// Items must arrive with MenuItem.Recipes.Ingredient and
// Modifiers.Ingredient populated; the resolver itself never touches
// storage, so the caller controls the transaction boundary around the
// reads.
func ResolveDeductions(items []models.OrderItem) map[uint]decimal.Decimal {
	needs := make(map[uint]decimal.Decimal)

	for _, item := range items {
		mult := item.Size.IngredientMultiplier()
		qty := decimal.NewFromInt(int64(item.Quantity))

		substituted := false
		for _, mod := range item.Modifiers {
			if mod.Type.Substitutes() {
				substituted = true
				break
			}
		}

		for _, recipe := range item.MenuItem.Recipes {
			if substituted && recipe.Ingredient.IsMilk {
				continue
			}
			need := recipe.QuantityNeeded.Mul(mult).Mul(qty)
			needs[recipe.IngredientID] = needs[recipe.IngredientID].Add(need)
		}

		for _, mod := range item.Modifiers {
			if mod.IngredientID == nil {
				continue
			}
			need := mod.QuantityNeeded.Mul(qty)
			if mod.Type.ScalesWithSize() {
				need = need.Mul(mult)
			}
			needs[*mod.IngredientID] = needs[*mod.IngredientID].Add(need)
		}
	}

	return needs
}
