package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/warspaseman/coffee-crm/internal/models"
)

var DB *gorm.DB

// Connect opens the Postgres connection from the standard DB_* env vars.
func Connect() {
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	port := os.Getenv("DB_PORT")
	sslmode := os.Getenv("DB_SSLMODE")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to database. \nError: ", err)
	}

	DB = db
}

// Migrate runs the schema migration and, when a seed file is present,
// the data seeding.
func Migrate() {
	if DB == nil {
		Connect()
	}

	log.Println("Running schema migrations (Gorm AutoMigrate)...")
	err := DB.AutoMigrate(
		&models.Supplier{},
		&models.Ingredient{},
		&models.Supply{},
		&models.SupplyItem{},
		&models.MenuItem{},
		&models.Recipe{},
		&models.Modifier{},
		&models.Shift{},
		&models.Order{},
		&models.OrderItem{},
		&models.User{},
	)
	if err != nil {
		log.Fatal("Schema migration failed: ", err)
	}

	// The single-active-shift invariant lives in the store, not in
	// process state: only one row may ever have is_active = true.
	if err := DB.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_single_active ON shifts (is_active) WHERE is_active",
	).Error; err != nil {
		log.Fatal("Failed to create active-shift index: ", err)
	}

	log.Println("Schema migrations completed.")

	seedPath := filepath.Join("migrations", "000001_initial_schema.up.sql")
	seedSQL, err := os.ReadFile(seedPath)
	if err != nil {
		log.Printf("No seed file at %s, skipping seeding", seedPath)
		return
	}

	log.Println("Running data seeding...")
	result := DB.Exec(string(seedSQL))
	if result.Error != nil {
		log.Fatalf("Data seeding failed: %v", result.Error)
	}
	log.Printf("Seeding completed. Rows affected: %d", result.RowsAffected)
}
