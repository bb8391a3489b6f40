package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

// IngredientRequest defines the structure for creating/updating an ingredient
type IngredientRequest struct {
	Name          string          `json:"name" validate:"required"`
	Unit          string          `json:"unit" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	IsMilk        bool            `json:"is_milk"`
	MinLimit      decimal.Decimal `json:"min_limit"`
	RestockAmount decimal.Decimal `json:"restock_amount"`
	SupplierID    *uint           `json:"supplier_id"`
}

// GetIngredients handles fetching the full stock list
func GetIngredients(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var items []models.Ingredient
		if err := db.Preload("Supplier").Order("name ASC").Find(&items).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch ingredients"})
		}
		return c.JSON(items)
	}
}

// CreateIngredient handles creating a new ingredient
func CreateIngredient(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req IngredientRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		var existing models.Ingredient
		if err := db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Ingredient with this name already exists"})
		}

		item := models.Ingredient{
			Name:          req.Name,
			Unit:          req.Unit,
			Amount:        req.Amount,
			IsMilk:        req.IsMilk,
			MinLimit:      req.MinLimit,
			RestockAmount: req.RestockAmount,
			SupplierID:    req.SupplierID,
		}
		if err := db.Create(&item).Error; err != nil {
			log.Printf("Error creating ingredient: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create ingredient"})
		}

		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// UpdateIngredient handles updating thresholds, supplier binding and the
// milk flag. Stock amount is not editable here; it belongs to the ledger.
func UpdateIngredient(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ingredient ID"})
		}

		var req IngredientRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		var existing models.Ingredient
		if err := db.Where("name = ? AND id != ?", req.Name, id).First(&existing).Error; err == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Another ingredient with this name already exists"})
		}

		result := db.Model(&models.Ingredient{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":           req.Name,
			"unit":           req.Unit,
			"is_milk":        req.IsMilk,
			"min_limit":      req.MinLimit,
			"restock_amount": req.RestockAmount,
			"supplier_id":    req.SupplierID,
		})
		if result.Error != nil {
			log.Printf("Error updating ingredient: %v", result.Error)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update ingredient"})
		}
		if result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ingredient not found"})
		}

		return c.JSON(fiber.Map{"message": "Ingredient updated successfully"})
	}
}

// DeleteIngredient handles deleting an ingredient not referenced by any recipe
func DeleteIngredient(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ingredient ID"})
		}

		var recipeCount int64
		db.Model(&models.Recipe{}).Where("ingredient_id = ?", id).Count(&recipeCount)
		if recipeCount > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Cannot delete ingredient, it is used in one or more recipes"})
		}

		var modifierCount int64
		db.Model(&models.Modifier{}).Where("ingredient_id = ?", id).Count(&modifierCount)
		if modifierCount > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Cannot delete ingredient, it is used by one or more modifiers"})
		}

		result := db.Delete(&models.Ingredient{}, id)
		if result.Error != nil {
			log.Printf("Error deleting ingredient: %v", result.Error)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete ingredient"})
		}
		if result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ingredient not found"})
		}

		return c.JSON(fiber.Map{"message": "Ingredient deleted successfully"})
	}
}

// SupplierRequest defines the structure for creating/updating a supplier
type SupplierRequest struct {
	Name        string `json:"name" validate:"required"`
	ContactInfo string `json:"contact_info" validate:"required"`
}

// GetSuppliers handles fetching all suppliers
func GetSuppliers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var suppliers []models.Supplier
		if err := db.Find(&suppliers).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch suppliers"})
		}
		return c.JSON(suppliers)
	}
}

// CreateSupplier handles creating a new supplier
func CreateSupplier(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SupplierRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		supplier := models.Supplier{Name: req.Name, ContactInfo: req.ContactInfo}
		if err := db.Create(&supplier).Error; err != nil {
			log.Printf("Error creating supplier: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create supplier"})
		}
		return c.Status(fiber.StatusCreated).JSON(supplier)
	}
}

// UpdateSupplier handles updating a supplier's contact details
func UpdateSupplier(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid supplier ID"})
		}

		var req SupplierRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		result := db.Model(&models.Supplier{}).Where("id = ?", id).Updates(models.Supplier{
			Name:        req.Name,
			ContactInfo: req.ContactInfo,
		})
		if result.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update supplier"})
		}
		if result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Supplier not found"})
		}
		return c.JSON(fiber.Map{"message": "Supplier updated successfully"})
	}
}

// DeleteSupplier handles deleting a supplier not bound to any ingredient
func DeleteSupplier(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid supplier ID"})
		}

		var count int64
		db.Model(&models.Ingredient{}).Where("supplier_id = ?", id).Count(&count)
		if count > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Cannot delete supplier, it is the preferred supplier of one or more ingredients"})
		}

		result := db.Delete(&models.Supplier{}, id)
		if result.Error != nil || result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Supplier not found"})
		}
		return c.JSON(fiber.Map{"message": "Supplier deleted successfully"})
	}
}
