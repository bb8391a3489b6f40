package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warspaseman/coffee-crm/internal/models"
)

// MenuItemRequest defines the structure for creating/updating a menu item
// together with its recipe.
type MenuItemRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Category string          `json:"category" validate:"omitempty,oneof=coffee dessert snacks other"`
	HasSizes *bool           `json:"has_sizes"`
	Recipe   []struct {
		IngredientID   uint            `json:"ingredient_id" validate:"required"`
		QuantityNeeded decimal.Decimal `json:"quantity_needed" validate:"required"`
	} `json:"recipe" validate:"dive"`
}

// GetMenu handles fetching all menu items with their recipes
func GetMenu(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var items []models.MenuItem
		if err := db.Preload("Recipes.Ingredient").Order("category, name").Find(&items).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch menu"})
		}
		return c.JSON(items)
	}
}

// CreateMenuItem handles creating a menu item and its recipe in one go
func CreateMenuItem(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req MenuItemRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		category := req.Category
		if category == "" {
			category = "coffee"
		}
		hasSizes := true
		if req.HasSizes != nil {
			hasSizes = *req.HasSizes
		}

		item := models.MenuItem{
			Name:     req.Name,
			Price:    req.Price,
			Category: category,
			HasSizes: hasSizes,
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			for _, r := range req.Recipe {
				recipe := models.Recipe{
					MenuItemID:     item.ID,
					IngredientID:   r.IngredientID,
					QuantityNeeded: r.QuantityNeeded,
				}
				if err := tx.Create(&recipe).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("Error creating menu item: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create menu item"})
		}

		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// UpdateMenuItem handles updating a menu item; when a recipe is supplied
// it replaces the existing one wholesale.
func UpdateMenuItem(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid menu item ID"})
		}

		var req MenuItemRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		var item models.MenuItem
		if err := db.First(&item, id).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Menu item not found"})
		}

		item.Name = req.Name
		item.Price = req.Price
		if req.Category != "" {
			item.Category = req.Category
		}
		if req.HasSizes != nil {
			item.HasSizes = *req.HasSizes
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&item).Error; err != nil {
				return err
			}
			if req.Recipe != nil {
				if err := tx.Where("menu_item_id = ?", item.ID).Delete(&models.Recipe{}).Error; err != nil {
					return err
				}
				for _, r := range req.Recipe {
					recipe := models.Recipe{
						MenuItemID:     item.ID,
						IngredientID:   r.IngredientID,
						QuantityNeeded: r.QuantityNeeded,
					}
					if err := tx.Create(&recipe).Error; err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("Error updating menu item: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update menu item"})
		}

		return c.JSON(fiber.Map{"message": "Menu item updated successfully"})
	}
}

// DeleteMenuItem handles deleting a menu item with its recipe
func DeleteMenuItem(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid menu item ID"})
		}

		var orderCount int64
		db.Model(&models.OrderItem{}).Where("menu_item_id = ?", id).Count(&orderCount)
		if orderCount > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Cannot delete menu item, it appears in existing orders"})
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("menu_item_id = ?", id).Delete(&models.Recipe{}).Error; err != nil {
				return err
			}
			res := tx.Delete(&models.MenuItem{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		})
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Menu item not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete menu item"})
		}

		return c.JSON(fiber.Map{"message": "Menu item deleted successfully"})
	}
}

// ModifierRequest defines the structure for creating/updating a modifier
type ModifierRequest struct {
	Name           string          `json:"name" validate:"required"`
	Price          decimal.Decimal `json:"price"`
	Type           string          `json:"type" validate:"required,oneof=syrup milk other ice"`
	IngredientID   *uint           `json:"ingredient_id"`
	QuantityNeeded decimal.Decimal `json:"quantity_needed"`
}

// GetModifiers handles fetching all modifiers grouped for the register
func GetModifiers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var modifiers []models.Modifier
		if err := db.Preload("Ingredient").Order("type, name").Find(&modifiers).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch modifiers"})
		}
		return c.JSON(modifiers)
	}
}

// CreateModifier handles creating a new modifier
func CreateModifier(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ModifierRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		modifier := models.Modifier{
			Name:           req.Name,
			Price:          req.Price,
			Type:           models.ModifierType(req.Type),
			IngredientID:   req.IngredientID,
			QuantityNeeded: req.QuantityNeeded,
		}
		if err := db.Create(&modifier).Error; err != nil {
			log.Printf("Error creating modifier: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create modifier"})
		}
		return c.Status(fiber.StatusCreated).JSON(modifier)
	}
}

// UpdateModifier handles updating a modifier
func UpdateModifier(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid modifier ID"})
		}

		var req ModifierRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		result := db.Model(&models.Modifier{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":            req.Name,
			"price":           req.Price,
			"type":            req.Type,
			"ingredient_id":   req.IngredientID,
			"quantity_needed": req.QuantityNeeded,
		})
		if result.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update modifier"})
		}
		if result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Modifier not found"})
		}
		return c.JSON(fiber.Map{"message": "Modifier updated successfully"})
	}
}

// DeleteModifier handles deleting a modifier
func DeleteModifier(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid modifier ID"})
		}

		result := db.Delete(&models.Modifier{}, id)
		if result.Error != nil || result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Modifier not found"})
		}
		return c.JSON(fiber.Map{"message": "Modifier deleted successfully"})
	}
}
