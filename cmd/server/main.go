package main

import (
	"context"
	"log"

	"github.com/CejeJoe/gymcoach-sub001/internal/config"
	"github.com/CejeJoe/gymcoach-sub001/internal/database"
	"github.com/CejeJoe/gymcoach-sub001/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	// 3. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	broadcastService := routes.RegisterRoutes(app, cfg, database.DB)

	// 4. Broadcast sweep: fires due scheduled broadcasts on a fixed cadence.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+cfg.SweepInterval.String(), func() {
		if _, err := broadcastService.Sweep(context.Background()); err != nil {
			log.Printf("Broadcast sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule broadcast sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// 5. Start Server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
