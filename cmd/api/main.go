package main

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warspaseman/coffee-crm/internal/database"
	"github.com/warspaseman/coffee-crm/internal/fulfillment"
	"github.com/warspaseman/coffee-crm/internal/handlers"
	"github.com/warspaseman/coffee-crm/internal/ledger"
	"github.com/warspaseman/coffee-crm/internal/middleware"
	"github.com/warspaseman/coffee-crm/internal/models"
	"github.com/warspaseman/coffee-crm/internal/notifier"
	"github.com/warspaseman/coffee-crm/internal/shift"
	"github.com/warspaseman/coffee-crm/internal/supply"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file found, reading environment directly")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	database.Connect()
	db := database.DB

	// Reorder sink: a Kafka purchasing pipeline when brokers are
	// configured, the application log otherwise.
	var sink notifier.Sink
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_REORDER_TOPIC")
		if topic == "" {
			topic = "reorder-requests"
		}
		kafkaSink := notifier.NewKafkaSink(strings.Split(brokers, ","), topic)
		defer kafkaSink.Close()
		sink = kafkaSink
		logger.Info("reorder notifications via kafka", zap.String("topic", topic))
	} else {
		sink = notifier.NewLogSink(logger)
	}

	stockLedger := ledger.New(logger, db)
	reorders := notifier.NewService(logger, db, sink)
	supplies := supply.NewService(logger, db, stockLedger, reorders)
	shifts := shift.NewService(logger, db)
	orders := fulfillment.NewService(logger, db, stockLedger, reorders, shifts)

	authHandler := handlers.NewAuthHandler(db)
	orderHandler := handlers.NewOrderHandler(orders)
	supplyHandler := handlers.NewSupplyHandler(db, supplies)
	shiftHandler := handlers.NewShiftHandler(shifts)

	app := fiber.New()
	app.Use(fiberlogger.New())

	api := app.Group("/api/v1")

	// === PUBLIC ROUTES ===
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "Running", "message": "API Ready"})
	})
	api.Post("/login", authHandler.Login)

	// === PROTECTED ROUTES (JWT) ===
	api.Use(middleware.JWTProtected())

	api.Get("/me", authHandler.GetProfile)

	// Admin: staff accounts
	admin := api.Group("/admin")
	admin.Use(middleware.RoleProtected(models.RoleAdmin))
	admin.Post("/register", authHandler.Register)
	admin.Get("/users", handlers.GetUsers(db))
	admin.Put("/users/:id", handlers.UpdateUser(db))
	admin.Delete("/users/:id", handlers.DeleteUser(db))

	// Inventory: stock list readable by anyone on shift, mutations admin-only
	inventory := api.Group("/inventory")
	inventory.Get("", handlers.GetIngredients(db))
	inventory.Post("", middleware.RoleProtected(models.RoleAdmin), handlers.CreateIngredient(db))
	inventory.Put("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.UpdateIngredient(db))
	inventory.Delete("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.DeleteIngredient(db))

	suppliers := api.Group("/suppliers")
	suppliers.Get("", handlers.GetSuppliers(db))
	suppliers.Post("", middleware.RoleProtected(models.RoleAdmin), handlers.CreateSupplier(db))
	suppliers.Put("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.UpdateSupplier(db))
	suppliers.Delete("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.DeleteSupplier(db))

	// Menu & modifiers
	menu := api.Group("/menu")
	menu.Get("", handlers.GetMenu(db))
	menu.Post("", middleware.RoleProtected(models.RoleAdmin), handlers.CreateMenuItem(db))
	menu.Put("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.UpdateMenuItem(db))
	menu.Delete("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.DeleteMenuItem(db))

	modifiers := api.Group("/modifiers")
	modifiers.Get("", handlers.GetModifiers(db))
	modifiers.Post("", middleware.RoleProtected(models.RoleAdmin), handlers.CreateModifier(db))
	modifiers.Put("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.UpdateModifier(db))
	modifiers.Delete("/:id", middleware.RoleProtected(models.RoleAdmin), handlers.DeleteModifier(db))

	// Supplies (deliveries)
	suppliesGroup := api.Group("/supplies")
	suppliesGroup.Use(middleware.RoleProtected(models.RoleAdmin))
	suppliesGroup.Get("", supplyHandler.List)
	suppliesGroup.Post("", supplyHandler.Record)
	suppliesGroup.Put("/items/:id", supplyHandler.UpdateItem)
	suppliesGroup.Delete("/items/:id", supplyHandler.DeleteItem)

	// POS: cashier side
	pos := api.Group("/pos")
	pos.Use(middleware.RoleProtected(models.RoleCashier, models.RoleAdmin))
	pos.Post("/orders", orderHandler.Create)
	pos.Delete("/orders/:id", orderHandler.Cancel)

	// Bar: barista side
	bar := api.Group("/bar")
	bar.Use(middleware.RoleProtected(models.RoleBarista, models.RoleAdmin))
	bar.Get("/queue", orderHandler.Queue)
	bar.Get("/orders/:id", orderHandler.Get)
	bar.Put("/orders/:id/status", orderHandler.UpdateStatus)
	bar.Post("/orders/:id/complete", orderHandler.Complete)

	// Shifts
	shiftsGroup := api.Group("/shifts")
	shiftsGroup.Get("/active", shiftHandler.Active)
	shiftsGroup.Post("/open", middleware.RoleProtected(models.RoleAdmin, models.RoleCashier), shiftHandler.Open)
	shiftsGroup.Post("/close", middleware.RoleProtected(models.RoleAdmin, models.RoleCashier), shiftHandler.Close)
	shiftsGroup.Get("/report", middleware.RoleProtected(models.RoleAdmin), shiftHandler.Report)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("server listening", zap.String("port", port))
	log.Fatal(app.Listen(":" + port))
}
