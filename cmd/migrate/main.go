package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/warspaseman/coffee-crm/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	database.Connect()
	database.Migrate()
}
