package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/crumb/internal/config"
	"github.com/example/crumb/internal/database"
	"github.com/example/crumb/internal/events"
	"github.com/example/crumb/internal/handlers"
	"github.com/example/crumb/internal/routes"
	"github.com/example/crumb/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)

	publisher := events.NewPublisher(cfg.KafkaBrokers)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("closing event publisher: %v", err)
		}
	}()

	if cfg.StripeSecretKey == "" {
		log.Println("STRIPE_SECRET_KEY not set, checkout will fail with PaymentSessionFailure")
	}
	payments := services.NewStripePayments(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	notifier := services.NewNotifier(
		services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat),
		services.NewEmailService(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom),
		publisher,
	)

	app := fiber.New(fiber.Config{
		AppName:      "Crumb Fulfillment",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, payments, notifier)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
